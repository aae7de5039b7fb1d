package loop

import (
	"context"
	"math"
)

// PedalCmdType discriminates how a pedal command value is interpreted. The
// numbering follows the DBW command messages.
type PedalCmdType uint8

const (
	CmdNone    PedalCmdType = 0
	CmdPedal   PedalCmdType = 1
	CmdPercent PedalCmdType = 2
	CmdTorque  PedalCmdType = 3
)

func (t PedalCmdType) String() string {
	switch t {
	case CmdPedal:
		return "pedal"
	case CmdPercent:
		return "percent"
	case CmdTorque:
		return "torque"
	default:
		return "none"
	}
}

type ThrottleCmd struct {
	Enable       bool
	PedalCmdType PedalCmdType
	PedalCmd     float64 // [0, 1]
}

type BrakeCmd struct {
	Enable       bool
	PedalCmdType PedalCmdType
	PedalCmd     float64 // N·m, >= 0
}

type SteeringCmd struct {
	Enable                bool
	SteeringWheelAngleCmd float64 // rad
}

// Actuation is the command set of one active tick. Its three commands are
// always published together.
type Actuation struct {
	Throttle ThrottleCmd
	Brake    BrakeCmd
	Steering SteeringCmd
}

// NewActuation packages controller output, bounding throttle to [0, 1] and
// brake to non-negative torque.
func NewActuation(throttle, brake, steering float64) Actuation {
	if math.IsNaN(throttle) {
		throttle = 0
	}
	if math.IsNaN(brake) {
		brake = 0
	}
	if math.IsNaN(steering) {
		steering = 0
	}
	return Actuation{
		Throttle: ThrottleCmd{
			Enable:       true,
			PedalCmdType: CmdPercent,
			PedalCmd:     math.Min(math.Max(throttle, 0), 1),
		},
		Brake: BrakeCmd{
			Enable:       true,
			PedalCmdType: CmdTorque,
			PedalCmd:     math.Max(brake, 0),
		},
		Steering: SteeringCmd{
			Enable:                true,
			SteeringWheelAngleCmd: steering,
		},
	}
}

// Publisher emits actuation and diagnostics. Publication is fire-and-forget:
// the scheduler logs a returned error and moves on to the next tick.
type Publisher interface {
	PublishActuation(ctx context.Context, a Actuation) error
	PublishCTE(ctx context.Context, cte float64) error
}
