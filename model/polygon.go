package model

import (
	"errors"
	"fmt"
)

// ErrDegeneratePolygon is returned when a polygon has fewer than three points.
var ErrDegeneratePolygon = errors.New("polygon needs at least 3 points")

// Polygon is a closed region. The last point connects back to the first, so
// the closing point is never stored twice.
type Polygon struct {
	Points []Vertex
}

// Validate checks the polygon invariants.
func (p Polygon) Validate() error {
	if len(p.Points) < 3 {
		return fmt.Errorf("%w: got %d", ErrDegeneratePolygon, len(p.Points))
	}
	first, last := p.Points[0], p.Points[len(p.Points)-1]
	if first.X == last.X && first.Y == last.Y {
		return fmt.Errorf("polygon repeats its first point at the end")
	}
	return nil
}

// Clone returns a deep copy.
func (p Polygon) Clone() Polygon {
	if p.Points == nil {
		return Polygon{}
	}
	pts := make([]Vertex, len(p.Points))
	copy(pts, p.Points)
	return Polygon{Points: pts}
}

// Contains reports whether (x, y) lies inside the polygon using the even-odd
// rule. Points exactly on an edge may land on either side.
func (p Polygon) Contains(x, y float64) bool {
	inside := false
	n := len(p.Points)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p.Points[i], p.Points[j]
		if (a.Y > y) != (b.Y > y) {
			crossX := (b.X-a.X)*(y-a.Y)/(b.Y-a.Y) + a.X
			if x < crossX {
				inside = !inside
			}
		}
	}
	return inside
}

// Centroid returns the area centroid, falling back to the vertex mean for
// zero-area polygons.
func (p Polygon) Centroid() Vertex {
	n := len(p.Points)
	if n == 0 {
		return Vertex{}
	}
	var area, cx, cy float64
	for i := 0; i < n; i++ {
		a := p.Points[i]
		b := p.Points[(i+1)%n]
		cross := a.X*b.Y - b.X*a.Y
		area += cross
		cx += (a.X + b.X) * cross
		cy += (a.Y + b.Y) * cross
	}
	level := p.Points[0].Level
	if area == 0 {
		var sx, sy float64
		for _, v := range p.Points {
			sx += v.X
			sy += v.Y
		}
		return Vertex{X: sx / float64(n), Y: sy / float64(n), Level: level}
	}
	area /= 2
	return Vertex{X: cx / (6 * area), Y: cy / (6 * area), Level: level}
}
