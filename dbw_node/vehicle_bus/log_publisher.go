package bus

import (
	"context"

	loop "dbw-bridge/dbw_node/control_loop"
	"dbw-bridge/utils"
)

// LogPublisher writes commands to the log instead of a bus. Used for dry
// runs without a CAN interface.
type LogPublisher struct {
	log *utils.Logger
}

func NewLogPublisher(log *utils.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) PublishActuation(_ context.Context, a loop.Actuation) error {
	p.log.Debug("DRY throttle=%.3f (%s) brake=%.1f (%s) steer=%.4f",
		a.Throttle.PedalCmd, a.Throttle.PedalCmdType,
		a.Brake.PedalCmd, a.Brake.PedalCmdType,
		a.Steering.SteeringWheelAngleCmd)
	return nil
}

func (p *LogPublisher) PublishCTE(_ context.Context, cte float64) error {
	p.log.Debug("DRY cte=%.4f", cte)
	return nil
}
