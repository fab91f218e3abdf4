package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/building-sim/model"
)

// scriptedNode completes after a number of ticks, or fails on its first tick.
type scriptedNode struct {
	name          string
	completeAfter int
	fail          bool
	ticks         int
	failed        bool
}

func (n *scriptedNode) Clone() BehaviorNode {
	return &scriptedNode{name: n.name, completeAfter: n.completeAfter, fail: n.fail}
}

func (n *scriptedNode) Tick(_ context.Context, _ float64, state *model.ModelState, _ Building, _ []*model.Agent) {
	n.ticks++
	if n.fail {
		n.failed = true
		return
	}
	state.X++
}

func (n *scriptedNode) IsComplete() bool  { return !n.fail && n.ticks >= n.completeAfter }
func (n *scriptedNode) Failed() bool      { return n.failed }
func (n *scriptedNode) Print(w io.Writer) { fmt.Fprintf(w, "scripted %s\n", n.name) }

func TestBehaviorStackRunsNodesInOrder(t *testing.T) {
	a := &scriptedNode{name: "a", completeAfter: 2}
	b := &scriptedNode{name: "b", completeAfter: 1}
	s := NewBehaviorStack(a, b)
	state := model.ModelState{}

	want := []struct {
		status       bt.Status
		aTicks       int
		bTicks       int
		x            float64
		currentIsB   bool
		currentIsNil bool
	}{
		{bt.Running, 1, 0, 1, false, false},
		{bt.Running, 2, 0, 2, true, false},
		{bt.Running, 2, 1, 3, false, true},
		{bt.Success, 2, 1, 3, false, true},
	}
	for i, w := range want {
		status, err := s.Tick(context.Background(), 0.1, &state, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, w.status, status, "step %d", i)
		assert.Equal(t, w.aTicks, a.ticks, "step %d", i)
		assert.Equal(t, w.bTicks, b.ticks, "step %d", i)
		assert.Equal(t, w.x, state.X, "step %d", i)
		switch {
		case w.currentIsNil:
			assert.Nil(t, s.Current(), "step %d", i)
		case w.currentIsB:
			assert.Same(t, b, s.Current(), "step %d", i)
		default:
			assert.Same(t, a, s.Current(), "step %d", i)
		}
	}
}

func TestBehaviorStackFailureStopsSequence(t *testing.T) {
	bad := &scriptedNode{name: "bad", fail: true}
	after := &scriptedNode{name: "after", completeAfter: 1}
	s := NewBehaviorStack(bad, after)
	state := model.ModelState{}

	status, err := s.Tick(context.Background(), 0.1, &state, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, bt.Failure, status)

	status, err = s.Tick(context.Background(), 0.1, &state, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, bt.Failure, status)
	assert.Equal(t, 1, bad.ticks, "failed nodes are not ticked again")
	assert.Zero(t, after.ticks)
}

func TestBehaviorStackEmpty(t *testing.T) {
	status, err := NewBehaviorStack().Tick(context.Background(), 0.1, &model.ModelState{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, bt.Success, status)
}

func TestBehaviorStackNavigateThenWait(t *testing.T) {
	b := officeBuilding()
	state := model.ModelState{Level: "L1", Speed: 5}
	nav := NewBehaviorNodeNavigate("dock_a")
	wait := NewBehaviorNodeWait(1)
	s := NewBehaviorStack(nav, wait)

	var status bt.Status
	for i := 0; i < 50; i++ {
		var err error
		status, err = s.Tick(context.Background(), 0.5, &state, b, nil)
		require.NoError(t, err)
		if status != bt.Running {
			break
		}
	}
	assert.Equal(t, bt.Success, status)
	assert.True(t, nav.IsComplete())
	assert.True(t, wait.IsComplete())
	assert.Equal(t, 10.0, state.X)

	var buf bytes.Buffer
	s.Print(&buf)
	assert.Contains(t, buf.String(), "navigate:")
	assert.Contains(t, buf.String(), "wait:")
	assert.Len(t, s.Nodes(), 2)
}
