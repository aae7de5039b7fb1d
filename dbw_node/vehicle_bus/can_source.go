package bus

import (
	"context"
	"errors"
	"fmt"

	loop "dbw-bridge/dbw_node/control_loop"
	"dbw-bridge/utils"
)

// CANSource decodes inbound frames and writes them into an InputSink.
// Frames not in the map, or not inputs, are ignored.
type CANSource struct {
	cmap   *utils.CANMap
	reader utils.CANReader
	sink   InputSink
	log    *utils.Logger
}

func NewCANSource(cmap *utils.CANMap, reader utils.CANReader, sink InputSink, log *utils.Logger) (*CANSource, error) {
	for frame, signals := range rxSignals {
		if err := cmap.RequireSignals(frame, signals...); err != nil {
			return nil, fmt.Errorf("can map: %w", err)
		}
	}
	return &CANSource{cmap: cmap, reader: reader, sink: sink, log: log}, nil
}

// Run reads until ctx ends or the reader is closed.
func (s *CANSource) Run(ctx context.Context) error {
	s.log.Debug("CAN RX loop started")
	defer s.log.Debug("CAN RX loop stopped")

	for {
		frame, err := s.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, utils.ErrReaderClosed) {
				return nil
			}
			s.log.Error("RX error: %v", err)
			continue
		}

		fd, values, err := s.cmap.DecodeEinrideFrame(frame)
		if err != nil {
			s.log.Trace("RX id=0x%X ignored: %v", frame.ID, err)
			continue
		}
		if fd.Direction != utils.DirectionRX {
			continue
		}
		s.Dispatch(fd.Name, values)
	}
}

// Dispatch writes the decoded values of one frame into the sink and reports
// whether the frame was an input.
func (s *CANSource) Dispatch(frame string, values map[string]float64) bool {
	switch frame {
	case FrameDBWEnabled:
		s.sink.SetEnabled(values[SigDBWEnabled] >= 0.5)
	case FrameTwistCmd:
		s.sink.SetMotionRequest(loop.MotionRequest{
			LinearVelocity:  values[SigLinearVelocity],
			AngularVelocity: values[SigAngularVelocity],
		})
	case FrameVelocity:
		s.sink.SetVelocity(values[SigVelocity])
	case FrameCurrentPose:
		s.sink.SetPose(loop.Pose{X: values[SigPoseX], Y: values[SigPoseY]})
	default:
		return false
	}
	s.log.Trace("RX %s %v", frame, values)
	return true
}
