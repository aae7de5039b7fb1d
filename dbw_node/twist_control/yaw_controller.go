package control

import "math"

// YawController converts a requested yaw rate into a steering wheel angle
// using a kinematic bicycle model.
type YawController struct {
	wheelBase     float64
	steerRatio    float64
	minSpeed      float64
	maxLatAccel   float64
	maxSteerAngle float64
}

func NewYawController(wheelBase, steerRatio, minSpeed, maxLatAccel, maxSteerAngle float64) *YawController {
	return &YawController{
		wheelBase:     wheelBase,
		steerRatio:    steerRatio,
		minSpeed:      minSpeed,
		maxLatAccel:   maxLatAccel,
		maxSteerAngle: maxSteerAngle,
	}
}

// angle returns the steering wheel angle for a turn of the given radius.
func (y *YawController) angle(radius float64) float64 {
	a := math.Atan(y.wheelBase/radius) * y.steerRatio
	return ClampFloat(a, -y.maxSteerAngle, y.maxSteerAngle)
}

// Steering scales the requested yaw rate to the current speed, limits it by
// the allowed lateral acceleration and returns the matching angle.
func (y *YawController) Steering(linearVelocity, angularVelocity, currentVelocity float64) float64 {
	if math.Abs(linearVelocity) > 0 {
		angularVelocity = currentVelocity * angularVelocity / linearVelocity
	} else {
		angularVelocity = 0
	}

	if math.Abs(currentVelocity) > 0.1 {
		maxYawRate := math.Abs(y.maxLatAccel / currentVelocity)
		angularVelocity = ClampFloat(angularVelocity, -maxYawRate, maxYawRate)
	}

	if angularVelocity == 0 {
		return 0
	}
	return y.angle(math.Max(currentVelocity, y.minSpeed) / angularVelocity)
}
