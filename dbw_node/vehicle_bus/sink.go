// Package bus connects the control loop to the outside: inbound sources
// that feed vehicle state and motion requests into the loop's inputs, and
// publishers that put actuation commands on the vehicle bus.
package bus

import (
	"errors"

	loop "dbw-bridge/dbw_node/control_loop"
)

var (
	ErrUnknownMessage = errors.New("unknown message")
	ErrMalformed      = errors.New("malformed message")
)

// InputSink receives decoded inputs. Implementations must not block.
type InputSink interface {
	SetEnabled(enabled bool)
	SetMotionRequest(req loop.MotionRequest)
	SetVelocity(v float64)
	SetPose(p loop.Pose)
	SetPath(path loop.Path)
}

var _ InputSink = (*loop.Inputs)(nil)
