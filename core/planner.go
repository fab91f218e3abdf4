package core

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/building-sim/model"
)

// ErrNoPath is returned by planners when the goal cannot be reached.
var ErrNoPath = errors.New("no path to goal")

// Waypoint is one point of a planned path. Vertex is the index in the level's
// nav graph, or -1 for points that are not graph vertices.
type Waypoint struct {
	X      float64
	Y      float64
	Level  string
	Vertex int
}

// Position returns the waypoint as a Vertex.
func (w Waypoint) Position() model.Vertex {
	return model.Vertex{X: w.X, Y: w.Y, Level: w.Level}
}

// Planner turns a start/goal pair into an ordered list of waypoints. An empty
// path with a nil error means the start already satisfies the goal; an error
// means no path exists. Planners keep no state between calls.
type Planner interface {
	Plan(ctx context.Context, start, goal model.ModelState, building Building) ([]Waypoint, error)
}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func(ctx context.Context, start, goal model.ModelState, building Building) ([]Waypoint, error)

// Plan calls f.
func (f PlannerFunc) Plan(ctx context.Context, start, goal model.ModelState, building Building) ([]Waypoint, error) {
	return f(ctx, start, goal, building)
}

// GraphPlanner plans over a level's lane graph with A*. Agents enter the
// graph at the vertex nearest to them and leave it at the vertex nearest to
// the goal. Planning never crosses levels; a goal without a level is taken
// to be on the start's level.
type GraphPlanner struct {
	// Tolerance below which the start is considered to already be at the
	// goal (or at a graph vertex). Zero uses DefaultWaypointTolerance.
	Tolerance float64
}

// Plan implements Planner.
func (p *GraphPlanner) Plan(ctx context.Context, start, goal model.ModelState, building Building) ([]Waypoint, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if building == nil {
		return nil, fmt.Errorf("GraphPlanner: building is nil")
	}
	tol := p.Tolerance
	if tol <= 0 {
		tol = DefaultWaypointTolerance
	}
	if goal.Level == "" {
		goal.Level = start.Level
	}
	if start.DistanceTo(goal.X, goal.Y) <= tol && start.Level == goal.Level {
		return nil, nil
	}
	if start.Level != goal.Level {
		return nil, fmt.Errorf("%w: start level %q differs from goal level %q", ErrNoPath, start.Level, goal.Level)
	}
	g, ok := building.NavGraph(start.Level)
	if !ok || len(g.Vertices) == 0 {
		return nil, fmt.Errorf("%w: level %q has no nav graph", ErrNoPath, start.Level)
	}

	from := g.Nearest(start.X, start.Y)
	to := g.Nearest(goal.X, goal.Y)
	indices, err := astar(ctx, g, from, to)
	if err != nil {
		return nil, err
	}

	path := make([]Waypoint, 0, len(indices)+1)
	for i, idx := range indices {
		v := g.Vertices[idx]
		if i == 0 && start.DistanceTo(v.X, v.Y) <= tol {
			continue
		}
		path = append(path, Waypoint{X: v.X, Y: v.Y, Level: g.Level, Vertex: idx})
	}
	last := g.Vertices[to]
	if math.Hypot(last.X-goal.X, last.Y-goal.Y) > tol {
		path = append(path, Waypoint{X: goal.X, Y: goal.Y, Level: goal.Level, Vertex: -1})
	}
	return path, nil
}

type openItem struct {
	vertex int
	f      float64
	index  int
}

type openSet []*openItem

func (o openSet) Len() int           { return len(o) }
func (o openSet) Less(i, j int) bool { return o[i].f < o[j].f }
func (o openSet) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}
func (o *openSet) Push(x any) {
	item := x.(*openItem)
	item.index = len(*o)
	*o = append(*o, item)
}
func (o *openSet) Pop() any {
	old := *o
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*o = old[:n-1]
	return item
}

// astar returns the vertex indices from -> to inclusive.
func astar(ctx context.Context, g *NavGraph, from, to int) ([]int, error) {
	if from == to {
		return []int{from}, nil
	}
	h := func(i int) float64 { return g.Vertices[i].DistanceTo(g.Vertices[to]) }

	gScore := make([]float64, len(g.Vertices))
	for i := range gScore {
		gScore[i] = math.Inf(1)
	}
	cameFrom := make([]int, len(g.Vertices))
	for i := range cameFrom {
		cameFrom[i] = -1
	}
	closed := make([]bool, len(g.Vertices))

	gScore[from] = 0
	open := &openSet{}
	heap.Push(open, &openItem{vertex: from, f: h(from)})

	for open.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("astar: %w", err)
		}
		cur := heap.Pop(open).(*openItem).vertex
		if cur == to {
			return reconstruct(cameFrom, to), nil
		}
		if closed[cur] {
			continue
		}
		closed[cur] = true
		for _, next := range g.Neighbors(cur) {
			if closed[next] {
				continue
			}
			tentative := gScore[cur] + g.Vertices[cur].DistanceTo(g.Vertices[next])
			if tentative < gScore[next] {
				gScore[next] = tentative
				cameFrom[next] = cur
				heap.Push(open, &openItem{vertex: next, f: tentative + h(next)})
			}
		}
	}
	return nil, fmt.Errorf("%w: vertex %d unreachable from %d on level %q", ErrNoPath, to, from, g.Level)
}

func reconstruct(cameFrom []int, to int) []int {
	var rev []int
	for v := to; v != -1; v = cameFrom[v] {
		rev = append(rev, v)
	}
	out := make([]int, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}
