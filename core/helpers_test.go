package core

import (
	"context"
	"sync"

	"github.com/signalsfoundry/building-sim/model"
)

// fakeBuilding resolves names from a mutable map and has no nav graphs.
type fakeBuilding struct {
	mu     sync.Mutex
	places map[string]model.ModelState
}

func newFakeBuilding() *fakeBuilding {
	return &fakeBuilding{places: make(map[string]model.ModelState)}
}

func (b *fakeBuilding) set(name string, s model.ModelState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.places[name] = s
}

func (b *fakeBuilding) Resolve(name string) (model.ModelState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.places[name]
	return s, ok
}

func (b *fakeBuilding) NavGraph(string) (*NavGraph, bool) { return nil, false }

// countingPlanner returns a fixed path and counts calls.
type countingPlanner struct {
	path  []Waypoint
	err   error
	calls int
}

func (p *countingPlanner) Plan(_ context.Context, _, _ model.ModelState, _ Building) ([]Waypoint, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return append([]Waypoint(nil), p.path...), nil
}

func wp(x, y float64) Waypoint {
	return Waypoint{X: x, Y: y, Level: "L1", Vertex: -1}
}

// officeBuilding is a small single-level building:
//
//	start(0,0) <-> (5,0) <-> dock_a(10,0) -> oneway_end(10,5)
//	island(5,5) has no lanes; lobby is a region around (20,20).
func officeBuilding() *BuildingMap {
	b, err := NewBuildingMap("office", &Level{
		Name: "L1",
		Vertices: []model.Vertex{
			{X: 0, Y: 0, Name: "start"},
			{X: 5, Y: 0},
			{X: 10, Y: 0, Name: "dock_a"},
			{X: 5, Y: 5, Name: "island"},
			{X: 10, Y: 5, Name: "oneway_end"},
		},
		Lanes: []Lane{
			{Start: 0, End: 1, Bidirectional: true},
			{Start: 1, End: 2, Bidirectional: true},
			{Start: 2, End: 4},
		},
		Regions: []Region{{
			Name:   "lobby",
			Points: []model.Vertex{{X: 19, Y: 19}, {X: 21, Y: 19}, {X: 21, Y: 21}, {X: 19, Y: 21}},
		}},
	}, &Level{
		Name:      "L2",
		Elevation: 4,
		Vertices:  []model.Vertex{{X: 0, Y: 0, Name: "roof"}},
	})
	if err != nil {
		panic(err)
	}
	return b
}
