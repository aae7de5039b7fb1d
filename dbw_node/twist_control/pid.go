package control

import "math"

// PIDConfig holds PID gains and output limits.
type PIDConfig struct {
	PIDGains
	Min float64
	Max float64
}

// PIDController implements a discrete PID controller on an error signal.
// Integration stops while the output is saturated.
type PIDController struct {
	cfg PIDConfig

	// State
	integral    float64
	prevError   float64
	initialized bool
}

// NewPIDController creates a new PID controller with given configuration
func NewPIDController(cfg PIDConfig) *PIDController {
	return &PIDController{cfg: cfg}
}

// Reset clears the PID state
func (pid *PIDController) Reset() {
	pid.integral = 0.0
	pid.prevError = 0.0
	pid.initialized = false
}

// Step advances the controller by dt seconds with the current error and
// returns the clamped output. The first step after a reset has no
// derivative term. A non-finite error or dt leaves the state untouched and
// yields the output clamped from zero.
func (pid *PIDController) Step(err, dt float64) float64 {
	if !isFinite(err) || !isFinite(dt) {
		return ClampFloat(0, pid.cfg.Min, pid.cfg.Max)
	}
	integral := pid.integral
	if dt > 0 {
		integral += err * dt
	}

	var derivative float64
	if pid.initialized && dt > 0 {
		derivative = (err - pid.prevError) / dt
	}

	out := pid.cfg.Kp*err + pid.cfg.Ki*integral + pid.cfg.Kd*derivative
	if !isFinite(out) {
		return ClampFloat(0, pid.cfg.Min, pid.cfg.Max)
	}

	switch {
	case out > pid.cfg.Max:
		out = pid.cfg.Max
	case out < pid.cfg.Min:
		out = pid.cfg.Min
	default:
		pid.integral = integral
	}

	pid.prevError = err
	pid.initialized = true
	return out
}

// GetDiagnostics returns current PID state for logging/debugging
func (pid *PIDController) GetDiagnostics() PIDDiagnostics {
	return PIDDiagnostics{
		Error:    pid.prevError,
		Integral: pid.integral,
		P:        pid.cfg.Kp * pid.prevError,
		I:        pid.cfg.Ki * pid.integral,
	}
}

// PIDDiagnostics contains PID internal state for monitoring
type PIDDiagnostics struct {
	Error    float64
	Integral float64
	P        float64
	I        float64
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
