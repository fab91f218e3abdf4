package kb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/building-sim/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventAgentAdded EventType = iota
	EventAgentUpdated
	EventAgentRemoved
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type  EventType
	Agent model.Agent
}

// KnowledgeBase is an in-memory, thread-safe store of the active agents.
type KnowledgeBase struct {
	mu sync.RWMutex

	agents map[string]*model.Agent

	subs      []subscriber
	nextSubID uint64
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		agents: make(map[string]*model.Agent),
	}
}

// AddAgent adds a new agent. It returns an error if the ID is empty or already exists.
func (kb *KnowledgeBase) AddAgent(a *model.Agent) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("agent must have a non-empty ID")
	}
	kb.mu.Lock()
	if _, exists := kb.agents[a.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("agent with ID %q already exists", a.ID)
	}
	kb.agents[a.ID] = a
	event := Event{Type: EventAgentAdded, Agent: *a}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, event)
	return nil
}

// GetAgent returns a copy of the agent with the given ID.
func (kb *KnowledgeBase) GetAgent(id string) (model.Agent, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	a, ok := kb.agents[id]
	if !ok {
		return model.Agent{}, false
	}
	return *a, true
}

// ListAgents returns a snapshot of all agents ordered by ID. The returned
// values are copies; mutating them does not affect the KB.
func (kb *KnowledgeBase) ListAgents() []*model.Agent {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.Agent, 0, len(kb.agents))
	for _, a := range kb.agents {
		cp := *a
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Len returns the number of agents.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.agents)
}

// UpdateAgentState replaces an agent's state and notifies subscribers.
func (kb *KnowledgeBase) UpdateAgentState(id string, state model.ModelState) error {
	kb.mu.Lock()
	a, ok := kb.agents[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("agent with ID %q not found", id)
	}
	a.State = state
	event := Event{Type: EventAgentUpdated, Agent: *a}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, event)
	return nil
}

// RemoveAgent deletes an agent and notifies subscribers.
func (kb *KnowledgeBase) RemoveAgent(id string) error {
	kb.mu.Lock()
	a, ok := kb.agents[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("agent with ID %q not found", id)
	}
	delete(kb.agents, id)
	event := Event{Type: EventAgentRemoved, Agent: *a}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, event)
	return nil
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.nextSubID++
	id := kb.nextSubID
	kb.subs = append(kb.subs, subscriber{id: id, fn: fn})

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		for i, sub := range kb.subs {
			if sub.id == id {
				kb.subs = append(kb.subs[:i:i], kb.subs[i+1:]...)
				return
			}
		}
	}
}

func (kb *KnowledgeBase) subscribersLocked() []func(Event) {
	fns := make([]func(Event), 0, len(kb.subs))
	for _, sub := range kb.subs {
		fns = append(fns, sub.fn)
	}
	return fns
}

// notify runs outside the lock so subscribers may call back into the KB.
func notify(subs []func(Event), event Event) {
	for _, sub := range subs {
		sub(event)
	}
}
