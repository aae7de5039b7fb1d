package loop

import (
	"math"
	"time"

	cte "dbw-bridge/dbw_node/track_error"
)

// MotionRequest is the desired forward speed and yaw rate. Both fields
// always travel together.
type MotionRequest struct {
	LinearVelocity  float64 // m/s
	AngularVelocity float64 // rad/s
}

type Pose = cte.Point

// Path is the upcoming trajectory, nearest waypoint first.
type Path = []cte.Point

// Inputs is the mailbox between asynchronous producers and the scheduler.
// Each field has its own single-slot channel: a producer replaces whatever
// is waiting there and never blocks, and the scheduler drains every slot at
// the start of a tick. Safe for concurrent use by any number of producers.
type Inputs struct {
	enabled  chan Option[bool]
	motion   chan Option[MotionRequest]
	velocity chan Option[float64]
	pose     chan Option[Pose]
	path     chan Option[Path]

	now func() time.Time
}

func NewInputs() *Inputs {
	return &Inputs{
		enabled:  make(chan Option[bool], 1),
		motion:   make(chan Option[MotionRequest], 1),
		velocity: make(chan Option[float64], 1),
		pose:     make(chan Option[Pose], 1),
		path:     make(chan Option[Path], 1),
		now:      time.Now,
	}
}

// offer stores v in the slot, displacing an undrained older value.
func offer[T any](slot chan T, v T) {
	for {
		select {
		case slot <- v:
			return
		default:
		}
		select {
		case <-slot:
		default:
		}
	}
}

// take moves the waiting value, if any, into dst.
func take[T any](slot chan T, dst *T) bool {
	select {
	case v := <-slot:
		*dst = v
		return true
	default:
		return false
	}
}

func (in *Inputs) SetEnabled(enabled bool) {
	offer(in.enabled, Some(enabled, in.now()))
}

func isFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// SetMotionRequest, SetVelocity and SetPose ignore non-finite values; the
// previous value stays in place.
func (in *Inputs) SetMotionRequest(req MotionRequest) {
	if !isFinite(req.LinearVelocity, req.AngularVelocity) {
		return
	}
	offer(in.motion, Some(req, in.now()))
}

func (in *Inputs) SetVelocity(v float64) {
	if !isFinite(v) {
		return
	}
	offer(in.velocity, Some(v, in.now()))
}

func (in *Inputs) SetPose(p Pose) {
	if !isFinite(p.X, p.Y) {
		return
	}
	offer(in.pose, Some(p, in.now()))
}

// SetPath copies path; the caller may reuse its slice.
func (in *Inputs) SetPath(path Path) {
	cp := make(Path, len(path))
	copy(cp, path)
	offer(in.path, Some(cp, in.now()))
}

// Snapshot is the scheduler's view of the inputs. Fields keep their last
// value until a newer one is drained.
type Snapshot struct {
	Enabled  Option[bool]
	Motion   Option[MotionRequest]
	Velocity Option[float64]
	Pose     Option[Pose]
	Path     Option[Path]
}

// Drain folds every waiting update into s without blocking and reports
// whether anything changed.
func (in *Inputs) Drain(s *Snapshot) bool {
	changed := take(in.enabled, &s.Enabled)
	changed = take(in.motion, &s.Motion) || changed
	changed = take(in.velocity, &s.Velocity) || changed
	changed = take(in.pose, &s.Pose) || changed
	changed = take(in.path, &s.Path) || changed
	return changed
}
