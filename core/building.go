package core

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/building-sim/model"
)

// Building is the read-only world model behavior nodes query during a tick.
type Building interface {
	// Resolve maps a destination name to a pose.
	Resolve(name string) (model.ModelState, bool)
	// NavGraph returns the lane graph of a level.
	NavGraph(level string) (*NavGraph, bool)
}

// NavGraph is the traffic lane graph of one level. Vertices keep their
// index in the level's vertex list.
type NavGraph struct {
	Level    string
	Vertices []model.Vertex
	adj      [][]int
}

// Neighbors returns the vertex indices reachable from i in one lane.
func (g *NavGraph) Neighbors(i int) []int {
	if i < 0 || i >= len(g.adj) {
		return nil
	}
	return g.adj[i]
}

// Nearest returns the index of the vertex closest to (x, y), or -1 for an
// empty graph.
func (g *NavGraph) Nearest(x, y float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, v := range g.Vertices {
		d := math.Hypot(v.X-x, v.Y-y)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Lane connects two vertex indices of the same level.
type Lane struct {
	Start         int  `yaml:"start"`
	End           int  `yaml:"end"`
	Bidirectional bool `yaml:"bidirectional"`
}

// Region is a named area on a level. Resolving a region yields its centroid.
type Region struct {
	Name   string         `yaml:"name"`
	Points []model.Vertex `yaml:"points"`
}

// Level holds one floor of the building.
type Level struct {
	Name      string
	Elevation float64
	Vertices  []model.Vertex
	Lanes     []Lane
	Regions   []Region
}

// BuildingMap is the in-memory building used by the simulator. It is
// immutable once built; all methods are safe for concurrent readers.
type BuildingMap struct {
	Name   string
	levels map[string]*Level
	order  []string
	graphs map[string]*NavGraph
}

// NewBuildingMap indexes the given levels. Lanes referencing unknown vertices
// and regions that are not valid polygons are rejected.
func NewBuildingMap(name string, levels ...*Level) (*BuildingMap, error) {
	b := &BuildingMap{
		Name:   name,
		levels: make(map[string]*Level, len(levels)),
		graphs: make(map[string]*NavGraph, len(levels)),
	}
	for _, lvl := range levels {
		if lvl == nil || lvl.Name == "" {
			return nil, fmt.Errorf("building %q: level with empty name", name)
		}
		if _, dup := b.levels[lvl.Name]; dup {
			return nil, fmt.Errorf("building %q: duplicate level %q", name, lvl.Name)
		}
		g, err := buildNavGraph(lvl)
		if err != nil {
			return nil, fmt.Errorf("building %q: %w", name, err)
		}
		for _, r := range lvl.Regions {
			if err := (model.Polygon{Points: r.Points}).Validate(); err != nil {
				return nil, fmt.Errorf("building %q: level %q region %q: %w", name, lvl.Name, r.Name, err)
			}
		}
		b.levels[lvl.Name] = lvl
		b.graphs[lvl.Name] = g
		b.order = append(b.order, lvl.Name)
	}
	sort.Strings(b.order)
	return b, nil
}

func buildNavGraph(lvl *Level) (*NavGraph, error) {
	verts := make([]model.Vertex, len(lvl.Vertices))
	for i, v := range lvl.Vertices {
		v.Level = lvl.Name
		v.Z = lvl.Elevation
		verts[i] = v
	}
	adj := make([][]int, len(verts))
	for _, lane := range lvl.Lanes {
		if lane.Start < 0 || lane.Start >= len(verts) || lane.End < 0 || lane.End >= len(verts) {
			return nil, fmt.Errorf("level %q: lane %d->%d references unknown vertex", lvl.Name, lane.Start, lane.End)
		}
		adj[lane.Start] = append(adj[lane.Start], lane.End)
		if lane.Bidirectional {
			adj[lane.End] = append(adj[lane.End], lane.Start)
		}
	}
	return &NavGraph{Level: lvl.Name, Vertices: verts, adj: adj}, nil
}

// Levels returns the level names in sorted order.
func (b *BuildingMap) Levels() []string {
	return append([]string(nil), b.order...)
}

// NavGraph implements Building.
func (b *BuildingMap) NavGraph(level string) (*NavGraph, bool) {
	g, ok := b.graphs[level]
	return g, ok
}

// Resolve implements Building. Named vertices take precedence over regions;
// levels are searched in name order.
func (b *BuildingMap) Resolve(name string) (model.ModelState, bool) {
	if name == "" {
		return model.ModelState{}, false
	}
	for _, lvl := range b.order {
		for _, v := range b.graphs[lvl].Vertices {
			if v.Name == name {
				return model.StateAt(v), true
			}
		}
	}
	for _, lvl := range b.order {
		for _, r := range b.levels[lvl].Regions {
			if r.Name == name {
				c := model.Polygon{Points: r.Points}.Centroid()
				c.Level = lvl
				c.Z = b.levels[lvl].Elevation
				return model.StateAt(c), true
			}
		}
	}
	return model.ModelState{}, false
}

// ---- YAML ----

type buildingDoc struct {
	Name   string              `yaml:"name"`
	Levels map[string]levelDoc `yaml:"levels"`
}

type levelDoc struct {
	Elevation float64        `yaml:"elevation"`
	Vertices  []model.Vertex `yaml:"vertices"`
	Lanes     []Lane         `yaml:"lanes"`
	Regions   []Region       `yaml:"regions"`
}

// LoadBuildingMap decodes a building YAML document:
//
//	name: office
//	levels:
//	  L1:
//	    elevation: 0
//	    vertices: [{x: 0, y: 0, name: charger}, {x: 10, y: 0, name: dock_a}]
//	    lanes: [{start: 0, end: 1, bidirectional: true}]
//	    regions: [{name: lobby, points: [{x: 0, y: 0}, {x: 2, y: 0}, {x: 2, y: 2}]}]
func LoadBuildingMap(r io.Reader) (*BuildingMap, error) {
	var doc buildingDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("LoadBuildingMap: decode failed: %w", err)
	}
	levels := make([]*Level, 0, len(doc.Levels))
	for name, ld := range doc.Levels {
		levels = append(levels, &Level{
			Name:      name,
			Elevation: ld.Elevation,
			Vertices:  ld.Vertices,
			Lanes:     ld.Lanes,
			Regions:   ld.Regions,
		})
	}
	b, err := NewBuildingMap(doc.Name, levels...)
	if err != nil {
		return nil, fmt.Errorf("LoadBuildingMap: %w", err)
	}
	return b, nil
}
