package core

import (
	"context"
	"io"

	"github.com/signalsfoundry/building-sim/model"
)

// BehaviorNode is one unit of tick-driven agent logic with completion
// semantics. Implementations must tolerate Tick after completion (no-op) and
// IsComplete must never flip back to false.
type BehaviorNode interface {
	// Clone returns an independent copy with the same authored configuration
	// and reset runtime state.
	Clone() BehaviorNode

	// Tick advances the node by dt seconds. The node may mutate state but
	// must not retain it after returning. building is read-only and active
	// lists every agent in the world, the ticking agent included.
	Tick(ctx context.Context, dt float64, state *model.ModelState, building Building, active []*model.Agent)

	// IsComplete reports whether the node's goal condition holds.
	IsComplete() bool

	// Print writes a diagnostic dump of configuration and runtime state.
	Print(w io.Writer)
}

// Failer is implemented by nodes that can end in a terminal failure, which
// is distinct from completion.
type Failer interface {
	Failed() bool
}

// nodeFailed reports whether n implements Failer and has failed.
func nodeFailed(n BehaviorNode) bool {
	f, ok := n.(Failer)
	return ok && f.Failed()
}
