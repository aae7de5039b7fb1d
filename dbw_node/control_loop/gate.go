package loop

import "time"

type GateState int

const (
	GatedInactive GateState = iota
	GatedActive
)

func (g GateState) String() string {
	switch g {
	case GatedActive:
		return "GATED_ACTIVE"
	default:
		return "GATED_INACTIVE"
	}
}

// Gate decides whether this tick may actuate. It is defined for every
// combination of present, absent and stale inputs; the reason is empty
// when the gate is active.
func (s Snapshot) Gate(now time.Time, maxAge time.Duration) (GateState, string) {
	enabled, ok := s.Enabled.Get()
	switch {
	case !ok:
		return GatedInactive, "awaiting dbw enable"
	case !enabled:
		return GatedInactive, "dbw disabled"
	case !s.Velocity.Present():
		return GatedInactive, "awaiting current velocity"
	case !s.Motion.Present():
		return GatedInactive, "awaiting motion request"
	case !s.Velocity.Fresh(now, maxAge):
		return GatedInactive, "current velocity stale"
	case !s.Motion.Fresh(now, maxAge):
		return GatedInactive, "motion request stale"
	}
	return GatedActive, ""
}

// Track returns pose and path when both are present and fresh enough to
// compute a CTE.
func (s Snapshot) Track(now time.Time, maxAge time.Duration) (Pose, Path, bool) {
	if !s.Pose.Fresh(now, maxAge) || !s.Path.Fresh(now, maxAge) {
		return Pose{}, nil, false
	}
	pose, _ := s.Pose.Get()
	path, _ := s.Path.Get()
	return pose, path, true
}
