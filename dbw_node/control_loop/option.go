package loop

import "time"

// Option is a value that may not have been received yet, stamped with the
// time it was received.
type Option[T any] struct {
	value T
	at    time.Time
	set   bool
}

// Some returns a present option received at at.
func Some[T any](v T, at time.Time) Option[T] {
	return Option[T]{value: v, at: at, set: true}
}

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) { return o.value, o.set }

func (o Option[T]) Present() bool { return o.set }

// Fresh reports whether the option is present and no older than maxAge at
// now. A non-positive maxAge disables the age check.
func (o Option[T]) Fresh(now time.Time, maxAge time.Duration) bool {
	if !o.set {
		return false
	}
	if maxAge <= 0 {
		return true
	}
	return now.Sub(o.at) <= maxAge
}
