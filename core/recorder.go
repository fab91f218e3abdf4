package core

import "time"

// NavigationRecorder receives navigation events. The observability package
// provides a Prometheus-backed implementation; nil recorders are ignored.
type NavigationRecorder interface {
	RecordResolution(found bool)
	RecordPlan(d time.Duration, waypoints int, err error)
	RecordStagnation(policy StagnationPolicy)
	RecordOutcome(status NavigateStatus)
}

// StepRecorder receives per-step simulation measurements.
type StepRecorder interface {
	RecordStep(d time.Duration, activeAgents int)
	RecordBehaviorOutcome(agentID string, failed bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordResolution(bool)                {}
func (noopRecorder) RecordPlan(time.Duration, int, error) {}
func (noopRecorder) RecordStagnation(StagnationPolicy)    {}
func (noopRecorder) RecordOutcome(NavigateStatus)         {}
func (noopRecorder) RecordStep(time.Duration, int)        {}
func (noopRecorder) RecordBehaviorOutcome(string, bool)   {}
