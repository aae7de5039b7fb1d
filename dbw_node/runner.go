package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	loop "dbw-bridge/dbw_node/control_loop"
	"dbw-bridge/dbw_node/recorder"
	control "dbw-bridge/dbw_node/twist_control"
	bus "dbw-bridge/dbw_node/vehicle_bus"
	"dbw-bridge/utils"
)

type RunnerConfig struct {
	ConfigPath   string
	Interface    string
	MapPath      string
	SerialDevice string
	SerialBaud   int
	PlannerAddr  string
	ScenarioPath string
	RecordPath   string
}

type source struct {
	name string
	run  func(ctx context.Context) error
}

type Runner struct {
	cfg      RunnerConfig
	log      *utils.Logger
	node     NodeConfig
	inputs   *loop.Inputs
	sched    *loop.Scheduler
	recorder *recorder.Recorder
	sources  []source
	closers  []io.Closer
}

func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	node, err := loadNodeConfig(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	r := &Runner{
		cfg:    cfg,
		log:    log,
		node:   node,
		inputs: loop.NewInputs(),
	}
	if err := r.build(ctx); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Runner) build(ctx context.Context) error {
	cfg := r.cfg

	controller, err := control.NewController(r.node.Control)
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	r.log.Info("Controller ready: total_mass=%.1fkg max_throttle=%.2f max_steer=%.2f",
		controller.TotalMass(), r.node.Control.Vehicle.MaxThrottle, r.node.Control.Vehicle.MaxSteerAngle)

	var pubs bus.Multi
	if cfg.Interface != "" {
		cmap, err := utils.LoadCANMap(cfg.MapPath)
		if err != nil {
			return fmt.Errorf("load can map: %w", err)
		}

		writer, err := utils.NewSocketCANWriter(ctx, cfg.Interface)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, writer)
		pub, err := bus.NewCANPublisher(cmap, writer, r.log)
		if err != nil {
			return err
		}
		pubs = append(pubs, pub)

		reader, err := utils.NewSocketCANReader(ctx, cfg.Interface)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, reader)
		src, err := bus.NewCANSource(cmap, reader, r.inputs, r.log)
		if err != nil {
			return err
		}
		r.sources = append(r.sources, source{"can:" + cfg.Interface, src.Run})
	} else {
		r.log.Warn("No CAN interface configured; commands go to the log only")
		pubs = append(pubs, bus.NewLogPublisher(r.log))
	}

	if cfg.RecordPath != "" {
		rec, err := recorder.Open(cfg.RecordPath, recorder.DefaultQueueSize, r.log)
		if err != nil {
			return fmt.Errorf("recorder: %w", err)
		}
		r.recorder = rec
		r.closers = append(r.closers, rec)
		pubs = append(pubs, rec)
	}

	if cfg.SerialDevice != "" {
		src, err := bus.NewSerialSource(cfg.SerialDevice, cfg.SerialBaud, r.inputs, r.log)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, src)
		r.sources = append(r.sources, source{"serial:" + cfg.SerialDevice, src.Run})
	}

	if cfg.PlannerAddr != "" {
		link := bus.NewPlannerLink(cfg.PlannerAddr, r.inputs, r.log)
		r.sources = append(r.sources, source{"planner:" + cfg.PlannerAddr, link.Run})
	}

	if cfg.ScenarioPath != "" {
		scen, err := LoadScenario(cfg.ScenarioPath)
		if err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
		src := NewScenarioSource(scen, r.inputs, r.log)
		src.SetLinger(3 * r.node.Loop.Period())
		r.sources = append(r.sources, source{"scenario:" + scen.Meta.Name, src.Run})
	}

	if len(r.sources) == 0 {
		return errors.New("no input source configured (need -iface, -serial, -planner or -scenario)")
	}

	var pub loop.Publisher = pubs
	if len(pubs) == 1 {
		pub = pubs[0]
	}
	r.sched, err = loop.NewScheduler(r.node.Loop, r.log, r.inputs, controller, pub)
	return err
}

// Run blocks until ctx ends, a source fails, or a scenario completes.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.sched.Run(ctx) })
	for _, src := range r.sources {
		g.Go(func() error {
			r.log.Info("Source %s started", src.name)
			err := src.run(ctx)
			switch {
			case err == nil:
				r.log.Info("Source %s finished", src.name)
			case ctx.Err() != nil, errors.Is(err, errScenarioDone):
			default:
				r.log.Error("Source %s failed: %v", src.name, err)
				return fmt.Errorf("%s: %w", src.name, err)
			}
			return err
		})
	}

	err := g.Wait()
	st := r.sched.Stats()
	r.log.Info("Run finished: ticks=%d active=%d cte_failures=%d publish_errors=%d",
		st.Ticks, st.ActiveTicks, st.CTEFailures, st.PublishErrors)
	if errors.Is(err, errScenarioDone) {
		return nil
	}
	return err
}

// Close releases sockets, ports and the recorder, newest first.
func (r *Runner) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			r.log.Warn("Close: %v", err)
		}
	}
	r.closers = nil
}
