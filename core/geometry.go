package core

import (
	"math"

	"github.com/signalsfoundry/building-sim/model"
)

// HeadingTo returns the planar heading (radians, counter-clockwise from +X)
// from s towards target. It returns s.Yaw when the two coincide.
func HeadingTo(s model.ModelState, target model.Vertex) float64 {
	dx := target.X - s.X
	dy := target.Y - s.Y
	if dx == 0 && dy == 0 {
		return s.Yaw
	}
	return math.Atan2(dy, dx)
}

// NormalizeAngle wraps an angle into (-pi, pi].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// stepToward moves (x, y) towards target by at most maxStep and returns the
// new point together with the distance actually covered. It never overshoots.
func stepToward(x, y float64, target model.Vertex, maxStep float64) (float64, float64, float64) {
	dx := target.X - x
	dy := target.Y - y
	dist := math.Hypot(dx, dy)
	if dist == 0 || maxStep <= 0 {
		return x, y, 0
	}
	if maxStep >= dist {
		return target.X, target.Y, dist
	}
	f := maxStep / dist
	return x + dx*f, y + dy*f, maxStep
}
