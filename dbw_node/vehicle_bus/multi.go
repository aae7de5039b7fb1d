package bus

import (
	"context"
	"errors"

	loop "dbw-bridge/dbw_node/control_loop"
)

// Multi fans every publication out to all of its publishers. A failing
// publisher does not stop the others; their errors are joined.
type Multi []loop.Publisher

func (m Multi) PublishActuation(ctx context.Context, a loop.Actuation) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishActuation(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) PublishCTE(ctx context.Context, cte float64) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishCTE(ctx, cte); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
