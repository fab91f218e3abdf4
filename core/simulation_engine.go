package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/signalsfoundry/building-sim/internal/logging"
	"github.com/signalsfoundry/building-sim/kb"
)

// SimulationEngine ticks every agent's behavior stack once per step. Agents
// are ticked in ID order, but each node only sees its own agent's state, so
// results do not depend on that order.
type SimulationEngine struct {
	Agents   *kb.KnowledgeBase
	Building Building

	mu            sync.Mutex
	stacks        map[string]*BehaviorStack
	statuses      map[string]bt.Status
	tick          int
	log           logging.Logger
	recorder      StepRecorder
	tickListeners []func(int)
	unsubscribe   func()
}

// EngineOption configures a SimulationEngine.
type EngineOption func(*SimulationEngine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l logging.Logger) EngineOption {
	return func(se *SimulationEngine) { se.log = l }
}

// WithStepRecorder sets the per-step metrics sink.
func WithStepRecorder(r StepRecorder) EngineOption {
	return func(se *SimulationEngine) { se.recorder = r }
}

// NewSimulationEngine creates an engine over the agents in store. Removing an
// agent from the store discards its behavior stack.
func NewSimulationEngine(store *kb.KnowledgeBase, building Building, opts ...EngineOption) *SimulationEngine {
	se := &SimulationEngine{
		Agents:   store,
		Building: building,
		stacks:   make(map[string]*BehaviorStack),
		statuses: make(map[string]bt.Status),
	}
	for _, opt := range opts {
		opt(se)
	}
	if se.log == nil {
		se.log = logging.Noop()
	}
	if se.recorder == nil {
		se.recorder = noopRecorder{}
	}
	se.unsubscribe = store.Subscribe(func(e kb.Event) {
		if e.Type != kb.EventAgentRemoved {
			return
		}
		se.mu.Lock()
		delete(se.stacks, e.Agent.ID)
		delete(se.statuses, e.Agent.ID)
		se.mu.Unlock()
	})
	return se
}

// Close detaches the engine from the agent store.
func (se *SimulationEngine) Close() {
	if se.unsubscribe != nil {
		se.unsubscribe()
		se.unsubscribe = nil
	}
}

// RegisterTickListener registers fn to run after every step with the step index.
func (se *SimulationEngine) RegisterTickListener(fn func(int)) {
	se.mu.Lock()
	defer se.mu.Unlock()
	se.tickListeners = append(se.tickListeners, fn)
}

// Assign replaces the agent's behavior stack with nodes.
func (se *SimulationEngine) Assign(agentID string, nodes ...BehaviorNode) error {
	if _, ok := se.Agents.GetAgent(agentID); !ok {
		return fmt.Errorf("assign behavior: agent %q not found", agentID)
	}
	se.mu.Lock()
	defer se.mu.Unlock()
	se.stacks[agentID] = NewBehaviorStack(nodes...)
	se.statuses[agentID] = bt.Running
	return nil
}

// Stack returns the agent's behavior stack.
func (se *SimulationEngine) Stack(agentID string) (*BehaviorStack, bool) {
	se.mu.Lock()
	defer se.mu.Unlock()
	s, ok := se.stacks[agentID]
	return s, ok
}

// Status returns the latest tree status for the agent.
func (se *SimulationEngine) Status(agentID string) (bt.Status, bool) {
	se.mu.Lock()
	defer se.mu.Unlock()
	s, ok := se.statuses[agentID]
	return s, ok
}

// Done reports whether every assigned stack has finished, successfully or not.
func (se *SimulationEngine) Done() bool {
	se.mu.Lock()
	defer se.mu.Unlock()
	for _, s := range se.statuses {
		if s == bt.Running {
			return false
		}
	}
	return true
}

// Ticks returns the number of completed steps.
func (se *SimulationEngine) Ticks() int {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.tick
}

// Step advances every running behavior stack by dt seconds.
func (se *SimulationEngine) Step(ctx context.Context, dt float64) {
	if ctx == nil {
		ctx = context.Background()
	}
	began := time.Now()
	agents := se.Agents.ListAgents()

	se.mu.Lock()
	for _, a := range agents {
		stack, ok := se.stacks[a.ID]
		if !ok || se.statuses[a.ID] != bt.Running {
			continue
		}
		state := a.State
		status, err := stack.Tick(ctx, dt, &state, se.Building, agents)
		if err != nil {
			se.log.Warn(ctx, "behavior tree tick error", logging.String("agent", a.ID), logging.Err(err))
		}
		if state != a.State {
			a.State = state
			if err := se.Agents.UpdateAgentState(a.ID, state); err != nil {
				se.log.Warn(ctx, "agent state update failed", logging.String("agent", a.ID), logging.Err(err))
			}
		}
		if status != bt.Running {
			se.recorder.RecordBehaviorOutcome(a.ID, status == bt.Failure)
			se.log.Info(ctx, "agent behavior finished",
				logging.String("agent", a.ID),
				logging.String("status", status.String()),
				logging.Int("tick", se.tick),
			)
		}
		se.statuses[a.ID] = status
	}
	se.tick++
	tick := se.tick
	listeners := append([]func(int){}, se.tickListeners...)
	se.mu.Unlock()

	se.recorder.RecordStep(time.Since(began), len(agents))
	for _, fn := range listeners {
		fn(tick)
	}
}

// Run performs up to ticks steps of dt seconds, stopping early when ctx is
// cancelled or every stack has finished.
func (se *SimulationEngine) Run(ctx context.Context, ticks int, dt float64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		se.Step(ctx, dt)
		if se.Done() {
			return nil
		}
	}
	return nil
}
