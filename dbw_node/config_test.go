package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	loop "dbw-bridge/dbw_node/control_loop"
	control "dbw-bridge/dbw_node/twist_control"
)

func TestShippedConfigMatchesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := loadNodeConfig(filepath.Join("..", "config", "vehicle.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultNodeConfig(), cfg)
}

func TestEmptyConfigPathUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := loadNodeConfig("")
	require.NoError(t, err)
	assert.Equal(t, 50.0, cfg.Loop.RateHz)
	assert.Equal(t, control.DefaultConfig(), cfg.Control)
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := parseNodeConfig([]byte(`
rate_hz: 20
max_input_age: 250ms
vehicle:
  max_throttle: 0.2
throttle_pid: {kp: 1.5}
`))
	require.NoError(t, err)

	assert.Equal(t, 20.0, cfg.Loop.RateHz)
	assert.Equal(t, 250*time.Millisecond, cfg.Loop.MaxInputAge)
	assert.Equal(t, loop.DefaultConfig().LookaheadIndex, cfg.Loop.LookaheadIndex)

	def := control.DefaultConfig()
	assert.Equal(t, 0.2, cfg.Control.Vehicle.MaxThrottle)
	assert.Equal(t, def.Vehicle.VehicleMass, cfg.Control.Vehicle.VehicleMass)
	assert.Equal(t, 1.5, cfg.Control.ThrottlePID.Kp)
	assert.Equal(t, def.ThrottlePID.Ki, cfg.Control.ThrottlePID.Ki)
	assert.Equal(t, def.SteeringPID, cfg.Control.SteeringPID)
}

func TestEmptyDocumentUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := parseNodeConfig([]byte("# nothing here\n"))
	require.NoError(t, err)
	assert.Equal(t, defaultNodeConfig(), cfg)
}

func TestConfigRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		doc  string
		want error
	}{
		"zero rate":         {"rate_hz: 0\n", loop.ErrInvalidConfig},
		"zero lookahead":    {"lookahead_index: 0\n", loop.ErrInvalidConfig},
		"negative age":      {"max_input_age: -1s\n", loop.ErrInvalidConfig},
		"throttle above 1":  {"vehicle: {max_throttle: 1.5}\n", control.ErrInvalidConfig},
		"zero wheel radius": {"vehicle: {wheel_radius: 0}\n", control.ErrInvalidConfig},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseNodeConfig([]byte(tc.doc))
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := parseNodeConfig([]byte("rate_hz: 50\nrate_hertz: 20\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = parseNodeConfig([]byte("max_input_age: soon\n"))
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := loadNodeConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
