package core

import (
	"context"
	"fmt"
	"io"

	"github.com/signalsfoundry/building-sim/model"
)

// BehaviorNodeWait holds the agent in place for a fixed amount of simulated
// time.
type BehaviorNodeWait struct {
	Seconds float64

	elapsed float64
	ticked  bool
}

var _ BehaviorNode = (*BehaviorNodeWait)(nil)

// NewBehaviorNodeWait returns a wait node. Non-positive durations complete on
// the first tick.
func NewBehaviorNodeWait(seconds float64) *BehaviorNodeWait {
	return &BehaviorNodeWait{Seconds: seconds}
}

// Clone implements BehaviorNode.
func (n *BehaviorNodeWait) Clone() BehaviorNode {
	return &BehaviorNodeWait{Seconds: n.Seconds}
}

// Tick implements BehaviorNode. The agent's state is never touched.
func (n *BehaviorNodeWait) Tick(_ context.Context, dt float64, _ *model.ModelState, _ Building, _ []*model.Agent) {
	if n.IsComplete() {
		return
	}
	n.ticked = true
	if dt > 0 {
		n.elapsed += dt
	}
}

// IsComplete implements BehaviorNode.
func (n *BehaviorNodeWait) IsComplete() bool {
	return n.ticked && n.elapsed >= n.Seconds
}

// Elapsed returns the simulated seconds waited so far.
func (n *BehaviorNodeWait) Elapsed() float64 { return n.elapsed }

// Print implements BehaviorNode.
func (n *BehaviorNodeWait) Print(w io.Writer) {
	fmt.Fprintf(w, "wait:\n  seconds: %g\n  elapsed: %g\n  complete: %t\n", n.Seconds, n.elapsed, n.IsComplete())
}
