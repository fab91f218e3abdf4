package model

import "math"

// Vertex is a point in building coordinates (metres). Level is empty for
// points that are not tied to a floor.
type Vertex struct {
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Z     float64 `yaml:"z,omitempty"`
	Level string  `yaml:"level,omitempty"`
	Name  string  `yaml:"name,omitempty"`
}

// DistanceTo returns the planar distance between two vertices.
func (v Vertex) DistanceTo(other Vertex) float64 {
	return math.Hypot(v.X-other.X, v.Y-other.Y)
}
