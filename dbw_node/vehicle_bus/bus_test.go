package bus

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.einride.tech/can"

	loop "dbw-bridge/dbw_node/control_loop"
	"dbw-bridge/utils"
)

func testLogger() *utils.Logger {
	return utils.NewLogger(io.Discard, utils.TRACE)
}

func loadMap(t *testing.T) *utils.CANMap {
	t.Helper()
	m, err := utils.LoadCANMap(filepath.Join("..", "..", "config", "can", "can_map.csv"))
	require.NoError(t, err)
	return m
}

// recordingSink keeps the last value written to each input.
type recordingSink struct {
	mu       sync.Mutex
	enabled  *bool
	motion   *loop.MotionRequest
	velocity *float64
	pose     *loop.Pose
	path     loop.Path
	writes   int
}

func (s *recordingSink) SetEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = &v
	s.writes++
}

func (s *recordingSink) SetMotionRequest(v loop.MotionRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.motion = &v
	s.writes++
}

func (s *recordingSink) SetVelocity(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.velocity = &v
	s.writes++
}

func (s *recordingSink) SetPose(v loop.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pose = &v
	s.writes++
}

func (s *recordingSink) SetPath(v loop.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = v
	s.writes++
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type fakeWriter struct {
	frames []can.Frame
	err    error
}

func (w *fakeWriter) WriteFrame(_ context.Context, f can.Frame) error {
	if w.err != nil {
		return w.err
	}
	w.frames = append(w.frames, f)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// sliceReader replays frames, then reports the reader closed.
type sliceReader struct {
	frames []can.Frame
	errs   []error
}

func (r *sliceReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	if err := ctx.Err(); err != nil {
		return can.Frame{}, err
	}
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return can.Frame{}, err
	}
	if len(r.frames) == 0 {
		return can.Frame{}, utils.ErrReaderClosed
	}
	f := r.frames[0]
	r.frames = r.frames[1:]
	return f, nil
}

func (r *sliceReader) Close() error { return nil }

type stubPublisher struct {
	actuations int
	ctes       []float64
	err        error
}

func (p *stubPublisher) PublishActuation(context.Context, loop.Actuation) error {
	p.actuations++
	return p.err
}

func (p *stubPublisher) PublishCTE(_ context.Context, cte float64) error {
	p.ctes = append(p.ctes, cte)
	return p.err
}

var errBoom = errors.New("boom")
