// Package control is the motion controller of the bridge: it turns the
// velocity error, the requested yaw rate and the cross-track error into
// throttle, brake torque and steering wheel angle.
package control

import (
	"fmt"
	"math"
	"time"
)

// Controller is not safe for concurrent use; the control loop owns it.
type Controller struct {
	cfg Config

	yaw      *YawController
	steering *PIDController
	throttle *PIDController
	lowPass  *LowPassFilter

	totalMass float64

	now      func() time.Time
	lastTime time.Time
}

func NewController(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v := cfg.Vehicle
	return &Controller{
		cfg: cfg,
		yaw: NewYawController(v.WheelBase, v.SteerRatio, MinVelocity, v.MaxLatAccel, v.MaxSteerAngle),
		steering: NewPIDController(PIDConfig{
			PIDGains: cfg.SteeringPID,
			Min:      -v.MaxSteerAngle,
			Max:      v.MaxSteerAngle,
		}),
		throttle: NewPIDController(PIDConfig{
			PIDGains: cfg.ThrottlePID,
			Min:      0,
			Max:      v.MaxThrottle,
		}),
		lowPass:   NewLowPassFilter(cfg.LowPass.Tau, cfg.LowPass.Ts),
		totalMass: v.VehicleMass + v.FuelCapacity*GasDensity,
		now:       time.Now,
	}, nil
}

// Control returns throttle in [0, max_throttle], brake torque in N·m and the
// steering wheel angle in rad.
func (c *Controller) Control(currentVelocity, linearVelocity, angularVelocity, cte float64) (throttle, brake, steering float64) {
	currentVelocity = c.lowPass.Filter(currentVelocity)
	dv := linearVelocity - currentVelocity

	now := c.now()
	dt := c.cfg.LowPass.Ts
	if !c.lastTime.IsZero() {
		dt = now.Sub(c.lastTime).Seconds()
	}
	c.lastTime = now

	steering = c.yaw.Steering(linearVelocity, angularVelocity, currentVelocity)
	steering -= c.steering.Step(cte, dt)
	steering = ClampFloat(steering, -c.cfg.Vehicle.MaxSteerAngle, c.cfg.Vehicle.MaxSteerAngle)

	throttle = c.throttle.Step(dv, dt)

	switch {
	case linearVelocity <= 0 && currentVelocity < MinVelocity:
		throttle = 0
		brake = HoldBrakeTorque
	case throttle < brakeThrottleThreshold && dv < 0:
		throttle = 0
		decel := math.Max(dv, c.cfg.Vehicle.DecelLimit)
		if math.Abs(decel) > c.cfg.Vehicle.BrakeDeadband {
			brake = math.Abs(decel) * c.totalMass * c.cfg.Vehicle.WheelRadius
		}
	}

	return throttle, brake, steering
}

// Reset drops accumulated error, filter state and timing.
func (c *Controller) Reset() {
	c.throttle.Reset()
	c.steering.Reset()
	c.lowPass.Reset()
	c.lastTime = time.Time{}
}

// Diagnostics reports the internal state of both PID loops.
func (c *Controller) Diagnostics() (throttle, steering PIDDiagnostics) {
	return c.throttle.GetDiagnostics(), c.steering.GetDiagnostics()
}

// TotalMass is the vehicle mass with a full tank, kg.
func (c *Controller) TotalMass() float64 { return c.totalMass }

func (c *Controller) String() string {
	thr, steer := c.Diagnostics()
	return fmt.Sprintf("throttle err=%.3f P=%.3f I=%.4f | steer err=%.3f P=%.3f I=%.4f | v_filt=%.2f",
		thr.Error, thr.P, thr.I, steer.Error, steer.P, steer.I, c.lowPass.Value())
}
