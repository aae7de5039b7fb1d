package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"dbw-bridge/utils"
)

func main() {
	var (
		cfgPath  = flag.String("config", "config/vehicle.yaml", "Node configuration (YAML); empty for built-in defaults")
		iface    = flag.String("iface", "", "SocketCAN interface name; empty for a dry run")
		mapPath  = flag.String("map", "config/can/can_map.csv", "Path to can_map.csv")
		serDev   = flag.String("serial", "", "Serial device carrying line protocol inputs")
		baud     = flag.Int("baud", 115200, "Serial baud rate")
		planner  = flag.String("planner", "", "Listen address for the planner websocket, e.g. :8765")
		scenPath = flag.String("scenario", "", "Scenario JSON file for bench runs")
		record   = flag.String("record", "", "SQLite file to record commands into")
		logLevel = flag.String("log", "info", "trace|debug|info|warn|error|critical")
	)
	flag.Parse()

	log, err := utils.NewFileLogger("dbw_node.log", utils.ParseLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open dbw_node.log: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	cfg := RunnerConfig{
		ConfigPath:   *cfgPath,
		Interface:    *iface,
		MapPath:      *mapPath,
		SerialDevice: *serDev,
		SerialBaud:   *baud,
		PlannerAddr:  *planner,
		ScenarioPath: *scenPath,
		RecordPath:   *record,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		log.Close()
		os.Exit(1)
	}

	err = runner.Run(ctx)
	runner.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Critical("Run failed: %v", err)
		log.Close()
		os.Exit(1)
	}
}
