package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	loop "dbw-bridge/dbw_node/control_loop"
	bus "dbw-bridge/dbw_node/vehicle_bus"
	"dbw-bridge/utils"
)

// errScenarioDone ends the run once a scenario has played out.
var errScenarioDone = errors.New("scenario complete")

// Scenario scripts the node's inputs for bench runs without a vehicle.
type Scenario struct {
	Meta     ScenarioMeta      `json:"meta"`
	Timing   ScenarioTiming    `json:"timing"`
	Path     []loop.Pose       `json:"path"`
	Defaults ScenarioInputs    `json:"defaults"`
	Segments []ScenarioSegment `json:"segments"`
}

type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

type ScenarioTiming struct {
	DtS       float64 `json:"dt_s"`
	DurationS float64 `json:"duration_s"`
}

// ScenarioInputs is the full set of inputs at one instant.
type ScenarioInputs struct {
	DBWEnabled  bool    `json:"dbw_enabled"`
	LinearMPS   float64 `json:"linear_mps"`
	AngularRPS  float64 `json:"angular_rps"`
	VelocityMPS float64 `json:"velocity_mps"`
	PoseX       float64 `json:"pose_x"`
	PoseY       float64 `json:"pose_y"`
}

// ScenarioSegment overrides the defaults over [T0, T1). Only the fields
// present in the JSON override. T1 < 0 runs to the end.
type ScenarioSegment struct {
	T0          float64  `json:"t0"`
	T1          float64  `json:"t1"`
	DBWEnabled  *bool    `json:"dbw_enabled,omitempty"`
	LinearMPS   *float64 `json:"linear_mps,omitempty"`
	AngularRPS  *float64 `json:"angular_rps,omitempty"`
	VelocityMPS *float64 `json:"velocity_mps,omitempty"`
	PoseX       *float64 `json:"pose_x,omitempty"`
	PoseY       *float64 `json:"pose_y,omitempty"`
	Comment     string   `json:"comment,omitempty"`
}

func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read file: %w", err)
	}

	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := scen.Validate(); err != nil {
		return Scenario{}, err
	}
	return scen, nil
}

func (s *Scenario) Validate() error {
	if s.Timing.DurationS <= 0 {
		return fmt.Errorf("invalid duration_s: %f", s.Timing.DurationS)
	}
	if s.Timing.DtS <= 0 || s.Timing.DtS > s.Timing.DurationS {
		return fmt.Errorf("invalid dt_s: %f", s.Timing.DtS)
	}
	for i, seg := range s.Segments {
		if seg.T0 < 0 || (seg.T1 >= 0 && seg.T1 <= seg.T0) {
			return fmt.Errorf("segment %d: invalid window [%g, %g)", i, seg.T0, seg.T1)
		}
	}
	return nil
}

// EvalInputs returns the scripted inputs at time t. The first segment
// covering t wins.
func EvalInputs(scen *Scenario, t float64) ScenarioInputs {
	in := scen.Defaults

	for _, seg := range scen.Segments {
		t1 := seg.T1
		if t1 < 0 {
			t1 = scen.Timing.DurationS
		}
		if t < seg.T0 || t >= t1 {
			continue
		}
		if seg.DBWEnabled != nil {
			in.DBWEnabled = *seg.DBWEnabled
		}
		if seg.LinearMPS != nil {
			in.LinearMPS = *seg.LinearMPS
		}
		if seg.AngularRPS != nil {
			in.AngularRPS = *seg.AngularRPS
		}
		if seg.VelocityMPS != nil {
			in.VelocityMPS = *seg.VelocityMPS
		}
		if seg.PoseX != nil {
			in.PoseX = *seg.PoseX
		}
		if seg.PoseY != nil {
			in.PoseY = *seg.PoseY
		}
		break
	}

	return in
}

// ScenarioSource plays a scenario into the input cache every dt_s.
type ScenarioSource struct {
	scen   Scenario
	sink   bus.InputSink
	log    *utils.Logger
	linger time.Duration
}

func NewScenarioSource(scen Scenario, sink bus.InputSink, log *utils.Logger) *ScenarioSource {
	return &ScenarioSource{scen: scen, sink: sink, log: log}
}

// SetLinger keeps Run alive for d after the final disable so the control
// loop can still act on it.
func (s *ScenarioSource) SetLinger(d time.Duration) { s.linger = d }

// Run returns errScenarioDone after duration_s, having disabled DBW and
// waited out the linger period.
func (s *ScenarioSource) Run(ctx context.Context) error {
	dt := time.Duration(s.scen.Timing.DtS * float64(time.Second))
	endAfter := time.Duration(s.scen.Timing.DurationS * float64(time.Second))

	s.log.Info("Playing scenario %q: duration=%.2fs dt=%.3fs path=%d points",
		s.scen.Meta.Name, s.scen.Timing.DurationS, s.scen.Timing.DtS, len(s.scen.Path))

	start := time.Now()
	s.apply(0)

	ticker := time.NewTicker(dt)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if elapsed > endAfter {
				s.sink.SetEnabled(false)
				s.log.Info("Scenario %q complete after %.2fs", s.scen.Meta.Name, elapsed.Seconds())
				if s.linger > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(s.linger):
					}
				}
				return errScenarioDone
			}
			s.apply(elapsed.Seconds())
		}
	}
}

func (s *ScenarioSource) apply(t float64) {
	in := EvalInputs(&s.scen, t)
	s.sink.SetEnabled(in.DBWEnabled)
	s.sink.SetMotionRequest(loop.MotionRequest{LinearVelocity: in.LinearMPS, AngularVelocity: in.AngularRPS})
	s.sink.SetVelocity(in.VelocityMPS)
	s.sink.SetPose(loop.Pose{X: in.PoseX, Y: in.PoseY})
	if len(s.scen.Path) > 0 {
		s.sink.SetPath(s.scen.Path)
	}
	s.log.Trace("SCN t=%.3f enabled=%v lin=%.2f ang=%.3f v=%.2f pose=(%.2f,%.2f)",
		t, in.DBWEnabled, in.LinearMPS, in.AngularRPS, in.VelocityMPS, in.PoseX, in.PoseY)
}
