package loop

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbw-bridge/utils"
)

type controlCall struct {
	velocity, linear, angular, cte float64
}

type fakeController struct {
	mu     sync.Mutex
	calls  []controlCall
	resets int
}

func (c *fakeController) Control(v, lin, ang, cte float64) (float64, float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, controlCall{v, lin, ang, cte})
	return 0.25, 0, -0.1 * cte
}

func (c *fakeController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
}

func (c *fakeController) lastCall() controlCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[len(c.calls)-1]
}

type fakePublisher struct {
	mu         sync.Mutex
	actuations []Actuation
	ctes       []float64
	err        error
	onPublish  func(n int)
}

func (p *fakePublisher) PublishActuation(_ context.Context, a Actuation) error {
	p.mu.Lock()
	p.actuations = append(p.actuations, a)
	n, hook := len(p.actuations), p.onPublish
	p.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return p.err
}

func (p *fakePublisher) PublishCTE(_ context.Context, v float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctes = append(p.ctes, v)
	return p.err
}

func (p *fakePublisher) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.actuations), len(p.ctes)
}

func straight(n int) Path {
	path := make(Path, n)
	for i := range path {
		path[i] = Pose{X: float64(i)}
	}
	return path
}

func newTestScheduler(t *testing.T, cfg Config) (*Scheduler, *Inputs, *fakeController, *fakePublisher) {
	t.Helper()
	in := NewInputs()
	ctrl := &fakeController{}
	pub := &fakePublisher{}
	s, err := NewScheduler(cfg, utils.NewLogger(io.Discard, utils.TRACE), in, ctrl, pub)
	require.NoError(t, err)
	return s, in, ctrl, pub
}

func makeReady(in *Inputs) {
	in.SetEnabled(true)
	in.SetVelocity(8)
	in.SetMotionRequest(MotionRequest{LinearVelocity: 10, AngularVelocity: 0.05})
}

func TestNewSchedulerValidates(t *testing.T) {
	t.Parallel()

	log := utils.NewLogger(io.Discard, utils.INFO)
	bad := DefaultConfig()
	bad.RateHz = 0
	_, err := NewScheduler(bad, log, NewInputs(), &fakeController{}, &fakePublisher{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewScheduler(DefaultConfig(), log, NewInputs(), nil, &fakePublisher{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	assert.Equal(t, 20*time.Millisecond, DefaultConfig().Period())
}

func TestStepInactiveUntilReady(t *testing.T) {
	t.Parallel()

	s, in, ctrl, pub := newTestScheduler(t, DefaultConfig())
	ctx := context.Background()

	res := s.Step(ctx, time.Now())
	assert.Equal(t, GatedInactive, res.State)

	in.SetEnabled(true)
	in.SetVelocity(8)
	res = s.Step(ctx, time.Now())
	assert.Equal(t, GatedInactive, res.State)
	assert.Equal(t, "awaiting motion request", res.Reason)

	n, _ := pub.counts()
	assert.Zero(t, n)
	assert.Empty(t, ctrl.calls)

	in.SetMotionRequest(MotionRequest{LinearVelocity: 10, AngularVelocity: 0.05})
	res = s.Step(ctx, time.Now())
	require.Equal(t, GatedActive, res.State)
	assert.False(t, res.CTEComputed)

	assert.Equal(t, controlCall{velocity: 8, linear: 10, angular: 0.05, cte: 0}, ctrl.lastCall())
	n, ctes := pub.counts()
	assert.Equal(t, 1, n)
	assert.Zero(t, ctes, "no pose or path means no diagnostic")

	a := pub.actuations[0]
	assert.True(t, a.Throttle.Enable)
	assert.Equal(t, CmdPercent, a.Throttle.PedalCmdType)
	assert.Equal(t, 0.25, a.Throttle.PedalCmd)
	assert.True(t, a.Brake.Enable)
	assert.Equal(t, CmdTorque, a.Brake.PedalCmdType)
	assert.True(t, a.Steering.Enable)
}

func TestStepEnableToggle(t *testing.T) {
	t.Parallel()

	s, in, ctrl, pub := newTestScheduler(t, DefaultConfig())
	ctx := context.Background()
	makeReady(in)

	assert.Equal(t, GatedActive, s.Step(ctx, time.Now()).State)

	in.SetEnabled(false)
	assert.Equal(t, GatedInactive, s.Step(ctx, time.Now()).State)
	assert.Equal(t, GatedInactive, s.Step(ctx, time.Now()).State)
	n, _ := pub.counts()
	assert.Equal(t, 1, n, "no publication while disabled")
	assert.Equal(t, 1, ctrl.resets, "controller reset when the gate closes")

	in.SetEnabled(true)
	assert.Equal(t, GatedActive, s.Step(ctx, time.Now()).State)
	n, _ = pub.counts()
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, ctrl.resets)
	assert.Equal(t, GatedActive, s.State())
}

func TestStepComputesCTE(t *testing.T) {
	t.Parallel()

	s, in, ctrl, pub := newTestScheduler(t, DefaultConfig())
	ctx := context.Background()
	makeReady(in)
	in.SetPath(straight(21))
	in.SetPose(Pose{X: 5, Y: 2})

	res := s.Step(ctx, time.Now())
	require.True(t, res.CTEComputed)
	assert.InDelta(t, 2.0, res.CTE, 1e-9)
	assert.InDelta(t, 2.0, ctrl.lastCall().cte, 1e-9)
	assert.InDelta(t, -0.2, res.Actuation.Steering.SteeringWheelAngleCmd, 1e-9)

	_, ctes := pub.counts()
	require.Equal(t, 1, ctes)
	assert.InDelta(t, 2.0, pub.ctes[0], 1e-9)

	in.SetPose(Pose{X: 5, Y: -2})
	res = s.Step(ctx, time.Now())
	assert.InDelta(t, -2.0, res.CTE, 1e-9)
}

func TestStepShortPathFallsBack(t *testing.T) {
	t.Parallel()

	s, in, ctrl, pub := newTestScheduler(t, DefaultConfig())
	ctx := context.Background()
	makeReady(in)
	in.SetPath(straight(5))
	in.SetPose(Pose{X: 2, Y: 1})

	res := s.Step(ctx, time.Now())
	assert.Equal(t, GatedActive, res.State)
	assert.False(t, res.CTEComputed)
	assert.Zero(t, ctrl.lastCall().cte)

	n, ctes := pub.counts()
	assert.Equal(t, 1, n, "actuation still published")
	assert.Zero(t, ctes, "fallback zero is not emitted")
	assert.Equal(t, uint64(1), s.Stats().CTEFailures)

	// a usable path restores the estimate
	in.SetPath(straight(21))
	res = s.Step(ctx, time.Now())
	assert.True(t, res.CTEComputed)
	assert.InDelta(t, 1.0, res.CTE, 1e-9)
}

func TestStepStaleInputs(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxInputAge = 200 * time.Millisecond
	s, in, _, pub := newTestScheduler(t, cfg)
	ctx := context.Background()
	makeReady(in)
	in.SetPath(straight(21))
	in.SetPose(Pose{X: 5, Y: 2})

	res := s.Step(ctx, time.Now())
	require.Equal(t, GatedActive, res.State)
	assert.True(t, res.CTEComputed)

	res = s.Step(ctx, time.Now().Add(time.Second))
	assert.Equal(t, GatedInactive, res.State)
	assert.Equal(t, "current velocity stale", res.Reason)

	// fresh velocity and request, but pose and path have aged out
	in.SetVelocity(8)
	in.SetMotionRequest(MotionRequest{LinearVelocity: 10})
	time.Sleep(250 * time.Millisecond)
	in.SetVelocity(8)
	in.SetMotionRequest(MotionRequest{LinearVelocity: 10})
	res = s.Step(ctx, time.Now())
	assert.Equal(t, GatedActive, res.State)
	assert.False(t, res.CTEComputed)

	n, _ := pub.counts()
	assert.Equal(t, 2, n)
}

func TestStepPublishErrorsAreNotFatal(t *testing.T) {
	t.Parallel()

	s, in, _, pub := newTestScheduler(t, DefaultConfig())
	pub.err = errors.New("bus off")
	makeReady(in)

	for i := 0; i < 3; i++ {
		assert.Equal(t, GatedActive, s.Step(context.Background(), time.Now()).State)
	}
	assert.Equal(t, uint64(3), s.Stats().PublishErrors)
}

func TestRunTickCadence(t *testing.T) {
	t.Parallel()

	const ticks = 10
	s, in, _, pub := newTestScheduler(t, DefaultConfig())
	makeReady(in)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pub.onPublish = func(n int) {
		if n == ticks {
			cancel()
		}
	}

	period := DefaultConfig().Period()
	start := time.Now()
	err := s.Run(ctx)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, context.Canceled)
	n, _ := pub.counts()
	assert.Equal(t, ticks, n)
	assert.GreaterOrEqual(t, elapsed, (ticks-1)*period)
	assert.Less(t, elapsed, 2*ticks*period+250*time.Millisecond)
}

func TestRunDoesNotSpinWhileDisabled(t *testing.T) {
	t.Parallel()

	s, in, _, pub := newTestScheduler(t, DefaultConfig())
	in.SetEnabled(false)
	in.SetVelocity(8)
	in.SetMotionRequest(MotionRequest{LinearVelocity: 10})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	st := s.Stats()
	assert.LessOrEqual(t, st.Ticks, uint64(12), "disabled loop still waits out each period")
	assert.Zero(t, st.ActiveTicks)
	n, _ := pub.counts()
	assert.Zero(t, n)
}

func TestNewActuationBounds(t *testing.T) {
	t.Parallel()

	a := NewActuation(1.4, -3, 0.2)
	assert.Equal(t, 1.0, a.Throttle.PedalCmd)
	assert.Equal(t, 0.0, a.Brake.PedalCmd)
	assert.Equal(t, 0.2, a.Steering.SteeringWheelAngleCmd)
	assert.Equal(t, "percent", a.Throttle.PedalCmdType.String())
	assert.Equal(t, "torque", a.Brake.PedalCmdType.String())
}
