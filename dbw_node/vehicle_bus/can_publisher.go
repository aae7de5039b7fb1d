package bus

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.einride.tech/can"

	loop "dbw-bridge/dbw_node/control_loop"
	"dbw-bridge/utils"
)

// CANPublisher encodes actuation commands with the CAN map and transmits
// them.
type CANPublisher struct {
	cmap   *utils.CANMap
	writer utils.CANWriter
	log    *utils.Logger
	sent   atomic.Uint64
}

// NewCANPublisher checks that the map carries every outbound frame and
// signal before anything is sent.
func NewCANPublisher(cmap *utils.CANMap, writer utils.CANWriter, log *utils.Logger) (*CANPublisher, error) {
	for frame, signals := range txSignals {
		if err := cmap.RequireSignals(frame, signals...); err != nil {
			return nil, fmt.Errorf("can map: %w", err)
		}
	}
	return &CANPublisher{cmap: cmap, writer: writer, log: log}, nil
}

// PublishActuation sends throttle, brake and steering. All three frames are
// encoded before the first is written.
func (p *CANPublisher) PublishActuation(ctx context.Context, a loop.Actuation) error {
	frames := make([]can.Frame, 0, 3)
	for _, cmd := range []struct {
		name   string
		values map[string]float64
	}{
		{FrameThrottleCmd, map[string]float64{
			SigEnable:       boolToFloat(a.Throttle.Enable),
			SigPedalCmdType: float64(a.Throttle.PedalCmdType),
			SigPedalCmd:     a.Throttle.PedalCmd,
		}},
		{FrameBrakeCmd, map[string]float64{
			SigEnable:       boolToFloat(a.Brake.Enable),
			SigPedalCmdType: float64(a.Brake.PedalCmdType),
			SigPedalCmd:     a.Brake.PedalCmd,
		}},
		{FrameSteeringCmd, map[string]float64{
			SigEnable:        boolToFloat(a.Steering.Enable),
			SigSteeringAngle: a.Steering.SteeringWheelAngleCmd,
		}},
	} {
		f, err := p.cmap.EncodeEinrideFrame(cmd.name, cmd.values)
		if err != nil {
			return fmt.Errorf("encode %s: %w", cmd.name, err)
		}
		frames = append(frames, f)
	}

	for _, f := range frames {
		if err := p.write(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (p *CANPublisher) PublishCTE(ctx context.Context, cte float64) error {
	f, err := p.cmap.EncodeEinrideFrame(FrameCTEDiag, map[string]float64{SigCTE: cte})
	if err != nil {
		return fmt.Errorf("encode %s: %w", FrameCTEDiag, err)
	}
	return p.write(ctx, f)
}

func (p *CANPublisher) write(ctx context.Context, f can.Frame) error {
	if err := p.writer.WriteFrame(ctx, f); err != nil {
		return fmt.Errorf("transmit 0x%X: %w", f.ID, err)
	}
	p.sent.Add(1)
	p.log.Trace("TX id=0x%X len=%d data=% X", f.ID, f.Length, f.Data[:f.Length])
	return nil
}

// Sent is the number of frames written so far.
func (p *CANPublisher) Sent() uint64 { return p.sent.Load() }
