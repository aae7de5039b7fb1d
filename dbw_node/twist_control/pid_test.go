package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPIDController(t *testing.T) {
	t.Parallel()

	t.Run("proportional and integral", func(t *testing.T) {
		t.Parallel()
		pid := NewPIDController(PIDConfig{PIDGains: PIDGains{Kp: 2, Ki: 1}, Min: -10, Max: 10})
		assert.InDelta(t, 2*1+1*0.5, pid.Step(1, 0.5), 1e-12)
		assert.InDelta(t, 2*1+1*1.0, pid.Step(1, 0.5), 1e-12)
	})

	t.Run("no derivative kick on first step", func(t *testing.T) {
		t.Parallel()
		pid := NewPIDController(PIDConfig{PIDGains: PIDGains{Kd: 1}, Min: -100, Max: 100})
		assert.Zero(t, pid.Step(5, 0.1))
		assert.InDelta(t, (7.0-5.0)/0.1, pid.Step(7, 0.1), 1e-9)
	})

	t.Run("saturation stops integration", func(t *testing.T) {
		t.Parallel()
		pid := NewPIDController(PIDConfig{PIDGains: PIDGains{Ki: 1}, Min: 0, Max: 0.4})
		for i := 0; i < 100; i++ {
			assert.LessOrEqual(t, pid.Step(10, 0.02), 0.4)
		}
		assert.InDelta(t, 0.4, pid.GetDiagnostics().Integral, 1e-9)

		// unwinds as soon as the error changes sign
		assert.Less(t, pid.Step(-10, 0.02), 0.4)
	})

	t.Run("reset", func(t *testing.T) {
		t.Parallel()
		pid := NewPIDController(PIDConfig{PIDGains: PIDGains{Kp: 1, Ki: 1}, Min: -5, Max: 5})
		pid.Step(1, 1)
		pid.Reset()
		assert.Equal(t, PIDDiagnostics{}, pid.GetDiagnostics())
	})
}

func TestLowPassFilter(t *testing.T) {
	t.Parallel()

	f := NewLowPassFilter(0.5, 0.02)
	assert.Equal(t, 10.0, f.Filter(10))

	v := f.Filter(0)
	assert.InDelta(t, 10*25.0/26.0, v, 1e-12)
	assert.Equal(t, v, f.Value())

	f.Reset()
	assert.Equal(t, 3.0, f.Filter(3))

	pass := NewLowPassFilter(0, 0.02)
	pass.Filter(1)
	assert.Equal(t, 7.0, pass.Filter(7))
}

func TestYawController(t *testing.T) {
	t.Parallel()

	y := NewYawController(2.8498, 14.8, MinVelocity, 3, 8)

	assert.Zero(t, y.Steering(10, 0, 10))
	assert.Zero(t, y.Steering(0, 0.5, 10), "no linear request means no yaw")

	left := y.Steering(10, 0.1, 10)
	right := y.Steering(10, -0.1, 10)
	assert.Greater(t, left, 0.0)
	assert.InDelta(t, left, -right, 1e-12)

	// radius = v / w = 100 m
	want := 14.8 * 0.028498
	assert.InDelta(t, want, left, 1e-3)
}

func TestNonFiniteSamplesKeepState(t *testing.T) {
	t.Parallel()

	pid := NewPIDController(PIDConfig{PIDGains: PIDGains{Kp: 1, Ki: 1}, Min: 0, Max: 10})
	pid.Step(2, 0.5)
	before := pid.GetDiagnostics()

	assert.Zero(t, pid.Step(math.NaN(), 0.5))
	assert.Zero(t, pid.Step(1, math.Inf(1)))
	assert.Equal(t, before, pid.GetDiagnostics())
	assert.InDelta(t, 2+2.0, pid.Step(2, 0.5), 1e-12)

	f := NewLowPassFilter(0.5, 0.02)
	f.Filter(10)
	assert.Equal(t, 10.0, f.Filter(math.NaN()))
	assert.Equal(t, 10.0, f.Filter(math.Inf(-1)))
	assert.Equal(t, 10.0, f.Value())
}
