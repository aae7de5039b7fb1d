// Package cte estimates the cross-track error of a vehicle against the
// planned path.
//
// The path is moved into a local frame whose origin is its first waypoint
// and whose x-axis points at the lookahead waypoint. A quadratic fitted to
// the path in that frame gives the expected lateral position at the
// vehicle's longitudinal offset; the CTE is the vehicle's lateral position
// minus that expectation. Positive CTE means the vehicle is to the left of
// the path in the direction of travel.
package cte

import (
	"errors"
	"fmt"
	"math"
)

// LookaheadIndex is the waypoint that defines the path's local heading.
const LookaheadIndex = 10

var (
	ErrPathTooShort  = errors.New("path too short for lookahead")
	ErrDegenerateFit = errors.New("path fit is ill-conditioned")
	ErrNonFinite     = errors.New("non-finite coordinate")
)

// Point is a position on the ground plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

func (p Point) finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// frame is a rigid transform into path-local coordinates.
type frame struct {
	origin   Point
	cos, sin float64
}

// apply translates p by -origin and rotates it by -heading.
func (f frame) apply(p Point) Point {
	t := p.sub(f.origin)
	return Point{
		X: t.X*f.cos + t.Y*f.sin,
		Y: -t.X*f.sin + t.Y*f.cos,
	}
}

// Estimator computes the CTE. The zero value uses LookaheadIndex.
type Estimator struct {
	Lookahead int
}

func (e Estimator) lookahead() int {
	if e.Lookahead <= 0 {
		return LookaheadIndex
	}
	return e.Lookahead
}

// MinPathLen is the fewest waypoints Estimate accepts.
func (e Estimator) MinPathLen() int { return e.lookahead() + 1 }

// Estimate returns the signed lateral deviation of pose from path.
func (e Estimator) Estimate(path []Point, pose Point) (float64, error) {
	la := e.lookahead()
	if len(path) <= la {
		return 0, fmt.Errorf("%w: have %d waypoints, need %d", ErrPathTooShort, len(path), la+1)
	}
	if !pose.finite() {
		return 0, fmt.Errorf("%w: pose (%v, %v)", ErrNonFinite, pose.X, pose.Y)
	}

	ahead := path[la].sub(path[0])
	heading := math.Atan2(ahead.Y, ahead.X)
	f := frame{origin: path[0], cos: math.Cos(heading), sin: math.Sin(heading)}

	xs := make([]float64, len(path))
	ys := make([]float64, len(path))
	for i, p := range path {
		if !p.finite() {
			return 0, fmt.Errorf("%w: waypoint %d", ErrNonFinite, i)
		}
		local := f.apply(p)
		xs[i], ys[i] = local.X, local.Y
	}

	poly, err := fitQuadratic(xs, ys)
	if err != nil {
		return 0, err
	}

	local := f.apply(pose)
	return local.Y - poly.eval(local.X), nil
}

// Estimate uses the default lookahead.
func Estimate(path []Point, pose Point) (float64, error) {
	return Estimator{}.Estimate(path, pose)
}
