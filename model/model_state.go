package model

import "math"

// ModelState is the kinematic state of one simulated agent. It is owned by
// the simulation driver; behavior nodes only borrow it during a tick.
type ModelState struct {
	X     float64
	Y     float64
	Z     float64
	Yaw   float64 // radians, counter-clockwise from +X
	Speed float64 // cruise speed in m/s, 0 means "use the kinematics default"
	Level string
}

// Position returns the state's location as a Vertex.
func (s ModelState) Position() Vertex {
	return Vertex{X: s.X, Y: s.Y, Z: s.Z, Level: s.Level}
}

// DistanceTo returns the planar distance from the state to (x, y).
func (s ModelState) DistanceTo(x, y float64) float64 {
	return math.Hypot(x-s.X, y-s.Y)
}

// StateAt builds a ModelState located at v.
func StateAt(v Vertex) ModelState {
	return ModelState{X: v.X, Y: v.Y, Z: v.Z, Level: v.Level}
}
