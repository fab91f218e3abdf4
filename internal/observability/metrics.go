package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/building-sim/core"
)

// BehaviorCollector bundles Prometheus metrics for navigation and the
// simulation step loop. It implements core.NavigationRecorder and
// core.StepRecorder.
type BehaviorCollector struct {
	gatherer prometheus.Gatherer

	Resolutions      *prometheus.CounterVec
	Plans            *prometheus.CounterVec
	PlanDuration     prometheus.Histogram
	PlanWaypoints    prometheus.Histogram
	Stagnations      *prometheus.CounterVec
	NavOutcomes      *prometheus.CounterVec
	BehaviorOutcomes *prometheus.CounterVec
	StepDuration     prometheus.Histogram
	ActiveAgents     prometheus.Gauge
	Steps            prometheus.Counter
}

var (
	_ core.NavigationRecorder = (*BehaviorCollector)(nil)
	_ core.StepRecorder       = (*BehaviorCollector)(nil)
)

// NewBehaviorCollector registers the simulator metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewBehaviorCollector(reg prometheus.Registerer) (*BehaviorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	resolutions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navigate_resolutions_total",
		Help: "Destination lookups performed by navigate nodes, labeled by result (found, missing).",
	}, []string{"result"}), "navigate_resolutions_total")
	if err != nil {
		return nil, err
	}

	plans, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navigate_plans_total",
		Help: "Path planning calls, labeled by result (ok, failed).",
	}, []string{"result"}), "navigate_plans_total")
	if err != nil {
		return nil, err
	}

	planDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "navigate_plan_duration_seconds",
		Help:    "Duration of path planning calls.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "navigate_plan_duration_seconds")
	if err != nil {
		return nil, err
	}

	planWaypoints, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "navigate_plan_waypoints",
		Help:    "Number of waypoints in successfully planned paths.",
		Buckets: prometheus.LinearBuckets(0, 4, 10),
	}), "navigate_plan_waypoints")
	if err != nil {
		return nil, err
	}

	stagnations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navigate_stagnations_total",
		Help: "Stall runs detected by navigate nodes, labeled by the policy applied.",
	}, []string{"policy"}), "navigate_stagnations_total")
	if err != nil {
		return nil, err
	}

	navOutcomes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navigate_outcomes_total",
		Help: "Terminal navigate node outcomes, labeled by status.",
	}, []string{"status"}), "navigate_outcomes_total")
	if err != nil {
		return nil, err
	}

	behaviorOutcomes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "behavior_outcomes_total",
		Help: "Finished agent behavior stacks, labeled by result (success, failure).",
	}, []string{"result"}), "behavior_outcomes_total")
	if err != nil {
		return nil, err
	}

	stepDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "simulation_step_duration_seconds",
		Help:    "Wall-clock duration of one simulation step.",
		Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}), "simulation_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	activeAgents, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simulation_active_agents",
		Help: "Number of agents present during the latest step.",
	}), "simulation_active_agents")
	if err != nil {
		return nil, err
	}

	steps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulation_steps_total",
		Help: "Simulation steps performed.",
	}), "simulation_steps_total")
	if err != nil {
		return nil, err
	}

	return &BehaviorCollector{
		gatherer:         gatherer,
		Resolutions:      resolutions,
		Plans:            plans,
		PlanDuration:     planDuration,
		PlanWaypoints:    planWaypoints,
		Stagnations:      stagnations,
		NavOutcomes:      navOutcomes,
		BehaviorOutcomes: behaviorOutcomes,
		StepDuration:     stepDuration,
		ActiveAgents:     activeAgents,
		Steps:            steps,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *BehaviorCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *BehaviorCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordResolution implements core.NavigationRecorder.
func (c *BehaviorCollector) RecordResolution(found bool) {
	if c == nil {
		return
	}
	result := "missing"
	if found {
		result = "found"
	}
	c.Resolutions.WithLabelValues(result).Inc()
}

// RecordPlan implements core.NavigationRecorder.
func (c *BehaviorCollector) RecordPlan(d time.Duration, waypoints int, err error) {
	if c == nil {
		return
	}
	c.PlanDuration.Observe(d.Seconds())
	if err != nil {
		c.Plans.WithLabelValues("failed").Inc()
		return
	}
	c.Plans.WithLabelValues("ok").Inc()
	c.PlanWaypoints.Observe(float64(waypoints))
}

// RecordStagnation implements core.NavigationRecorder.
func (c *BehaviorCollector) RecordStagnation(policy core.StagnationPolicy) {
	if c == nil {
		return
	}
	c.Stagnations.WithLabelValues(policy.String()).Inc()
}

// RecordOutcome implements core.NavigationRecorder.
func (c *BehaviorCollector) RecordOutcome(status core.NavigateStatus) {
	if c == nil {
		return
	}
	c.NavOutcomes.WithLabelValues(status.String()).Inc()
}

// RecordStep implements core.StepRecorder.
func (c *BehaviorCollector) RecordStep(d time.Duration, activeAgents int) {
	if c == nil {
		return
	}
	c.StepDuration.Observe(d.Seconds())
	c.ActiveAgents.Set(float64(activeAgents))
	c.Steps.Inc()
}

// RecordBehaviorOutcome implements core.StepRecorder.
func (c *BehaviorCollector) RecordBehaviorOutcome(_ string, failed bool) {
	if c == nil {
		return
	}
	result := "success"
	if failed {
		result = "failure"
	}
	c.BehaviorOutcomes.WithLabelValues(result).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
