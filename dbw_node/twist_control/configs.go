package control

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid controller config")

// VehicleConfig holds the vehicle parameters the controller is tuned with.
// Units are SI unless noted.
type VehicleConfig struct {
	VehicleMass   float64 `yaml:"vehicle_mass"`    // kg, empty vehicle
	FuelCapacity  float64 `yaml:"fuel_capacity"`   // gallons
	BrakeDeadband float64 `yaml:"brake_deadband"`  // m/s^2
	DecelLimit    float64 `yaml:"decel_limit"`     // m/s^2, negative
	AccelLimit    float64 `yaml:"accel_limit"`     // m/s^2
	WheelRadius   float64 `yaml:"wheel_radius"`    // m
	WheelBase     float64 `yaml:"wheel_base"`      // m
	SteerRatio    float64 `yaml:"steer_ratio"`     // steering wheel : road wheel
	MaxLatAccel   float64 `yaml:"max_lat_accel"`   // m/s^2
	MaxSteerAngle float64 `yaml:"max_steer_angle"` // rad, at the steering wheel
	MaxThrottle   float64 `yaml:"max_throttle"`    // [0, 1]
}

// PIDGains holds the three PID weights.
type PIDGains struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// LowPassConfig sets the velocity filter time constant and sample time.
type LowPassConfig struct {
	Tau float64 `yaml:"tau"`
	Ts  float64 `yaml:"ts"`
}

type Config struct {
	Vehicle     VehicleConfig `yaml:"vehicle"`
	ThrottlePID PIDGains      `yaml:"throttle_pid"`
	SteeringPID PIDGains      `yaml:"steering_pid"`
	LowPass     LowPassConfig `yaml:"low_pass"`
}

func DefaultConfig() Config {
	return Config{
		Vehicle: VehicleConfig{
			VehicleMass:   1736.35,
			FuelCapacity:  13.5,
			BrakeDeadband: 0.1,
			DecelLimit:    -5,
			AccelLimit:    1,
			WheelRadius:   0.2413,
			WheelBase:     2.8498,
			SteerRatio:    14.8,
			MaxLatAccel:   3,
			MaxSteerAngle: 8,
			MaxThrottle:   0.4,
		},
		ThrottlePID: PIDGains{Kp: 0.8, Ki: 0.001, Kd: 0.1},
		SteeringPID: PIDGains{Kp: 0, Ki: 0.001, Kd: 0.1},
		LowPass:     LowPassConfig{Tau: 0.5, Ts: 0.02},
	}
}

func (c Config) Validate() error {
	v := c.Vehicle
	checks := []struct {
		ok  bool
		msg string
	}{
		{v.VehicleMass > 0, "vehicle_mass must be positive"},
		{v.FuelCapacity >= 0, "fuel_capacity must not be negative"},
		{v.BrakeDeadband >= 0, "brake_deadband must not be negative"},
		{v.DecelLimit < 0, "decel_limit must be negative"},
		{v.WheelRadius > 0, "wheel_radius must be positive"},
		{v.WheelBase > 0, "wheel_base must be positive"},
		{v.SteerRatio > 0, "steer_ratio must be positive"},
		{v.MaxLatAccel > 0, "max_lat_accel must be positive"},
		{v.MaxSteerAngle > 0, "max_steer_angle must be positive"},
		{v.MaxThrottle > 0 && v.MaxThrottle <= 1, "max_throttle must be in (0, 1]"},
		{c.LowPass.Tau >= 0, "low_pass.tau must not be negative"},
		{c.LowPass.Ts > 0, "low_pass.ts must be positive"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, chk.msg)
		}
	}
	return nil
}
