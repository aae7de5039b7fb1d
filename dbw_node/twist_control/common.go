package control

const (
	// GasDensity is the mass of one gallon of fuel in kg.
	GasDensity = 2.858

	// MinVelocity is the speed below which the vehicle counts as stopped.
	MinVelocity = 0.1

	// HoldBrakeTorque keeps a stopped vehicle in place, N·m.
	HoldBrakeTorque = 400.0

	// brakeThrottleThreshold is the throttle below which a negative velocity
	// error is handled with the brake instead.
	brakeThrottleThreshold = 0.1
)

// ClampFloat clamps value between min and max
func ClampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
