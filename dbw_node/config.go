package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	loop "dbw-bridge/dbw_node/control_loop"
	control "dbw-bridge/dbw_node/twist_control"
)

// NodeConfig is everything tunable in the node configuration file.
type NodeConfig struct {
	Loop    loop.Config
	Control control.Config
}

// fileConfig mirrors the YAML layout. It is decoded over the defaults, so
// omitted keys keep their default values.
type fileConfig struct {
	RateHz         float64       `yaml:"rate_hz"`
	LookaheadIndex int           `yaml:"lookahead_index"`
	MaxInputAge    time.Duration `yaml:"max_input_age"`
	LogEveryTicks  uint64        `yaml:"log_every_ticks"`

	control.Config `yaml:",inline"`
}

func defaultNodeConfig() NodeConfig {
	return NodeConfig{Loop: loop.DefaultConfig(), Control: control.DefaultConfig()}
}

// loadNodeConfig reads the YAML file at path. An empty path yields the
// defaults.
func loadNodeConfig(path string) (NodeConfig, error) {
	if path == "" {
		return defaultNodeConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := parseNodeConfig(data)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func parseNodeConfig(data []byte) (NodeConfig, error) {
	def := defaultNodeConfig()
	fc := fileConfig{
		RateHz:         def.Loop.RateHz,
		LookaheadIndex: def.Loop.LookaheadIndex,
		MaxInputAge:    def.Loop.MaxInputAge,
		LogEveryTicks:  def.Loop.LogEveryTicks,
		Config:         def.Control,
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return NodeConfig{}, fmt.Errorf("decode: %w", err)
	}

	cfg := NodeConfig{
		Loop: loop.Config{
			RateHz:         fc.RateHz,
			LookaheadIndex: fc.LookaheadIndex,
			MaxInputAge:    fc.MaxInputAge,
			LogEveryTicks:  fc.LogEveryTicks,
		},
		Control: fc.Config,
	}
	if err := cfg.Loop.Validate(); err != nil {
		return NodeConfig{}, err
	}
	if err := cfg.Control.Validate(); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}
