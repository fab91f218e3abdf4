package core

import (
	"context"
	"io"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/signalsfoundry/building-sim/model"
)

// TickFrame carries the arguments of one step to the behavior tree leaves.
// go-behaviortree ticks take no arguments, so a stack fills the frame before
// ticking its tree.
type TickFrame struct {
	Ctx      context.Context
	DT       float64
	State    *model.ModelState
	Building Building
	Active   []*model.Agent
}

// AsNode wraps a BehaviorNode as a go-behaviortree leaf reading its arguments
// from frame. A node that completes during a tick reports Running for that
// tick and Success from the next one, so a sequence never lets two nodes move
// an agent within the same step.
func AsNode(n BehaviorNode, frame *TickFrame) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		if n.IsComplete() {
			return bt.Success, nil
		}
		if nodeFailed(n) {
			return bt.Failure, nil
		}
		n.Tick(frame.Ctx, frame.DT, frame.State, frame.Building, frame.Active)
		if nodeFailed(n) {
			return bt.Failure, nil
		}
		return bt.Running, nil
	})
}

// BehaviorStack runs an agent's behavior nodes in order as a bt.Sequence.
type BehaviorStack struct {
	nodes []BehaviorNode
	frame *TickFrame
	tree  bt.Node
}

// NewBehaviorStack builds a stack over nodes. The stack takes ownership of
// the nodes; callers should pass clones.
func NewBehaviorStack(nodes ...BehaviorNode) *BehaviorStack {
	s := &BehaviorStack{
		nodes: append([]BehaviorNode(nil), nodes...),
		frame: &TickFrame{},
	}
	children := make([]bt.Node, len(s.nodes))
	for i, n := range s.nodes {
		children[i] = AsNode(n, s.frame)
	}
	s.tree = bt.New(bt.Sequence, children...)
	return s
}

// Tick advances the stack by one step and returns the tree status: Running
// while work remains, Success once every node completed, Failure once a node
// failed.
func (s *BehaviorStack) Tick(ctx context.Context, dt float64, state *model.ModelState, building Building, active []*model.Agent) (bt.Status, error) {
	*s.frame = TickFrame{Ctx: ctx, DT: dt, State: state, Building: building, Active: active}
	defer func() { *s.frame = TickFrame{} }()
	return s.tree.Tick()
}

// Current returns the first node that has not completed, or nil.
func (s *BehaviorStack) Current() BehaviorNode {
	for _, n := range s.nodes {
		if !n.IsComplete() {
			return n
		}
	}
	return nil
}

// Nodes returns the stack's nodes.
func (s *BehaviorStack) Nodes() []BehaviorNode {
	return append([]BehaviorNode(nil), s.nodes...)
}

// Print dumps every node.
func (s *BehaviorStack) Print(w io.Writer) {
	for _, n := range s.nodes {
		n.Print(w)
	}
}
