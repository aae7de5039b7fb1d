package loop

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	cte "dbw-bridge/dbw_node/track_error"
	"dbw-bridge/utils"
)

// MotionController turns velocity errors and CTE into pedal and steering
// commands. It is only called on active ticks.
type MotionController interface {
	Control(currentVelocity, linearVelocity, angularVelocity, cte float64) (throttle, brake, steering float64)
}

// Resetter is implemented by controllers with accumulated state. Reset is
// called when the gate closes so the state does not carry across a manual
// override.
type Resetter interface {
	Reset()
}

type CTEEstimator interface {
	Estimate(path []cte.Point, pose cte.Point) (float64, error)
}

// TickResult describes what one tick did.
type TickResult struct {
	State       GateState
	Reason      string
	CTE         float64
	CTEComputed bool
	Actuation   Actuation
}

type Stats struct {
	Ticks         uint64
	ActiveTicks   uint64
	CTEFailures   uint64
	PublishErrors uint64
}

// Scheduler drives the control loop at a fixed rate.
type Scheduler struct {
	cfg        Config
	log        *utils.Logger
	inputs     *Inputs
	estimator  CTEEstimator
	controller MotionController
	publisher  Publisher

	// owned by the loop goroutine
	snap       Snapshot
	state      GateState
	reason     string
	cteFailing bool

	ticks         atomic.Uint64
	activeTicks   atomic.Uint64
	cteFailures   atomic.Uint64
	publishErrors atomic.Uint64
}

func NewScheduler(cfg Config, log *utils.Logger, inputs *Inputs, controller MotionController, publisher Publisher) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if inputs == nil || controller == nil || publisher == nil {
		return nil, fmt.Errorf("%w: inputs, controller and publisher are required", ErrInvalidConfig)
	}
	return &Scheduler{
		cfg:        cfg,
		log:        log,
		inputs:     inputs,
		estimator:  cte.Estimator{Lookahead: cfg.LookaheadIndex},
		controller: controller,
		publisher:  publisher,
		state:      GatedInactive,
		reason:     "starting",
	}, nil
}

// Run ticks until ctx ends and returns ctx.Err(). The period wait happens
// on every iteration, whether or not the gate is open.
func (s *Scheduler) Run(ctx context.Context) error {
	period := s.cfg.Period()
	s.log.Info("Starting control loop: rate=%.1fHz period=%s lookahead=%d max_input_age=%s",
		s.cfg.RateHz, period, s.cfg.LookaheadIndex, s.cfg.MaxInputAge)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			st := s.Stats()
			s.log.Info("Control loop stopped: ticks=%d active=%d cte_failures=%d publish_errors=%d",
				st.Ticks, st.ActiveTicks, st.CTEFailures, st.PublishErrors)
			return err
		}

		select {
		case <-ctx.Done():
		case now := <-ticker.C:
			s.Step(ctx, now)
		}
	}
}

// Step runs one tick against the inputs drained at now.
func (s *Scheduler) Step(ctx context.Context, now time.Time) TickResult {
	s.ticks.Add(1)
	s.inputs.Drain(&s.snap)

	state, reason := s.snap.Gate(now, s.cfg.MaxInputAge)
	s.transition(state, reason)
	res := TickResult{State: state, Reason: reason}
	if state != GatedActive {
		return res
	}
	n := s.activeTicks.Add(1)

	if pose, path, ok := s.snap.Track(now, s.cfg.MaxInputAge); ok {
		v, err := s.estimator.Estimate(path, pose)
		if err != nil {
			s.cteFailures.Add(1)
			if !s.cteFailing {
				s.log.Warn("CTE unavailable, steering without it: %v", err)
			}
			s.cteFailing = true
		} else {
			if s.cteFailing {
				s.log.Info("CTE available again: cte=%.3f", v)
			}
			s.cteFailing = false
			res.CTE, res.CTEComputed = v, true
			if err := s.publisher.PublishCTE(ctx, v); err != nil {
				s.publishFailed("cte", err)
			}
		}
	}

	vel, _ := s.snap.Velocity.Get()
	req, _ := s.snap.Motion.Get()
	throttle, brake, steering := s.controller.Control(vel, req.LinearVelocity, req.AngularVelocity, res.CTE)

	res.Actuation = NewActuation(throttle, brake, steering)
	if err := s.publisher.PublishActuation(ctx, res.Actuation); err != nil {
		s.publishFailed("actuation", err)
	}

	s.log.Trace("tick v=%.3f v_req=%.3f w_req=%.4f cte=%.3f throttle=%.3f brake=%.1f steer=%.4f",
		vel, req.LinearVelocity, req.AngularVelocity, res.CTE,
		res.Actuation.Throttle.PedalCmd, res.Actuation.Brake.PedalCmd, res.Actuation.Steering.SteeringWheelAngleCmd)

	if every := s.cfg.LogEveryTicks; every > 0 && n%every == 0 {
		st := s.Stats()
		s.log.Debug("Loop: active=%d/%d v=%.2f v_req=%.2f cte=%.3f cte_failures=%d publish_errors=%d",
			st.ActiveTicks, st.Ticks, vel, req.LinearVelocity, res.CTE, st.CTEFailures, st.PublishErrors)
		if d, ok := s.controller.(fmt.Stringer); ok {
			s.log.Debug("Controller: %s", d)
		}
	}
	return res
}

func (s *Scheduler) transition(state GateState, reason string) {
	if state == s.state {
		if state == GatedInactive && reason != s.reason {
			s.log.Debug("Gate inactive: %s", reason)
			s.reason = reason
		}
		return
	}

	prev := s.state
	s.state, s.reason = state, reason
	if state == GatedActive {
		s.log.Info("Gate %s -> %s", prev, state)
		return
	}

	s.log.Info("Gate %s -> %s: %s", prev, state, reason)
	if r, ok := s.controller.(Resetter); ok {
		r.Reset()
	}
}

// publishFailed logs the first failure and then one in every LogEveryTicks.
func (s *Scheduler) publishFailed(what string, err error) {
	n := s.publishErrors.Add(1)
	if every := s.cfg.LogEveryTicks; n == 1 || (every > 0 && n%every == 0) {
		s.log.Error("Publish %s failed (%d so far): %v", what, n, err)
	}
}

// State is the gate state after the most recent tick. Only meaningful from
// the goroutine running the loop.
func (s *Scheduler) State() GateState { return s.state }

func (s *Scheduler) Stats() Stats {
	return Stats{
		Ticks:         s.ticks.Load(),
		ActiveTicks:   s.activeTicks.Load(),
		CTEFailures:   s.cteFailures.Load(),
		PublishErrors: s.publishErrors.Load(),
	}
}
