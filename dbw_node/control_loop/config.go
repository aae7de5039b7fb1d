package loop

import (
	"errors"
	"fmt"
	"time"

	cte "dbw-bridge/dbw_node/track_error"
)

var ErrInvalidConfig = errors.New("invalid loop config")

type Config struct {
	RateHz float64

	// LookaheadIndex is the waypoint defining the path heading for CTE.
	LookaheadIndex int

	// MaxInputAge bounds how old velocity, motion request, pose and path may
	// be. Zero uses inputs indefinitely.
	MaxInputAge time.Duration

	// LogEveryTicks sets the period of the debug diagnostics line, in active
	// ticks. Zero disables it.
	LogEveryTicks uint64
}

func DefaultConfig() Config {
	return Config{
		RateHz:         50,
		LookaheadIndex: cte.LookaheadIndex,
		MaxInputAge:    0,
		LogEveryTicks:  250,
	}
}

func (c Config) Validate() error {
	if !(c.RateHz > 0) {
		return fmt.Errorf("%w: rate_hz must be positive, got %v", ErrInvalidConfig, c.RateHz)
	}
	if c.LookaheadIndex < 1 {
		return fmt.Errorf("%w: lookahead_index must be at least 1, got %d", ErrInvalidConfig, c.LookaheadIndex)
	}
	if c.MaxInputAge < 0 {
		return fmt.Errorf("%w: max_input_age must not be negative, got %s", ErrInvalidConfig, c.MaxInputAge)
	}
	return nil
}

// Period is the nominal tick period.
func (c Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.RateHz)
}
