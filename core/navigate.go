package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/building-sim/internal/logging"
	"github.com/signalsfoundry/building-sim/model"
)

const tracerName = "github.com/signalsfoundry/building-sim/core"

// Navigation defaults.
const (
	DefaultWaypointTolerance = 0.05 // metres
	DefaultProgressRate      = 0.01 // metres per second
	DefaultStallTicks        = 20
)

// ErrStagnated is reported by a navigate node that gave up after its error
// stopped improving.
var ErrStagnated = errors.New("navigation stagnated")

// StagnationPolicy selects what a navigate node does once its error has not
// improved for NavigateConfig.StallTicks consecutive ticks.
type StagnationPolicy int

const (
	// StagnationReplan discards the path and plans again from the current pose.
	StagnationReplan StagnationPolicy = iota
	// StagnationFail stops the node in the terminal Stuck status.
	StagnationFail
)

func (p StagnationPolicy) String() string {
	switch p {
	case StagnationReplan:
		return "replan"
	case StagnationFail:
		return "fail"
	default:
		return fmt.Sprintf("StagnationPolicy(%d)", int(p))
	}
}

// ParseStagnationPolicy maps "replan" / "fail" to a policy. Empty means replan.
func ParseStagnationPolicy(s string) (StagnationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replan":
		return StagnationReplan, nil
	case "fail", "stuck":
		return StagnationFail, nil
	default:
		return StagnationReplan, fmt.Errorf("unknown stagnation policy %q", s)
	}
}

// NavigateStatus is the lifecycle state of a navigate node.
type NavigateStatus int

const (
	NavigateUnresolved NavigateStatus = iota
	NavigatePlanned
	NavigateComplete
	NavigatePlanFailed
	NavigateStuck
)

func (s NavigateStatus) String() string {
	switch s {
	case NavigateUnresolved:
		return "unresolved"
	case NavigatePlanned:
		return "planned"
	case NavigateComplete:
		return "complete"
	case NavigatePlanFailed:
		return "plan_failed"
	case NavigateStuck:
		return "stuck"
	default:
		return fmt.Sprintf("NavigateStatus(%d)", int(s))
	}
}

// NavigateConfig tunes waypoint acceptance and stagnation detection.
type NavigateConfig struct {
	// WaypointTolerance is the distance at which a waypoint (or the
	// destination) counts as reached.
	WaypointTolerance float64
	// ProgressRate is the closing speed (m/s) the error must beat to count
	// as progress; a tick of length dt must shrink it by more than
	// ProgressRate*dt.
	ProgressRate float64
	// StallTicks is the run of non-improving ticks that triggers Policy.
	StallTicks int
	Policy     StagnationPolicy
}

// DefaultNavigateConfig returns the documented defaults.
func DefaultNavigateConfig() NavigateConfig {
	return NavigateConfig{
		WaypointTolerance: DefaultWaypointTolerance,
		ProgressRate:      DefaultProgressRate,
		StallTicks:        DefaultStallTicks,
		Policy:            StagnationReplan,
	}
}

// ApplyDefaults replaces zero or negative fields with defaults. Policy is
// kept as is since its zero value is already the default.
func (c NavigateConfig) ApplyDefaults() NavigateConfig {
	if c.WaypointTolerance <= 0 {
		c.WaypointTolerance = DefaultWaypointTolerance
	}
	if c.ProgressRate < 0 {
		c.ProgressRate = DefaultProgressRate
	}
	if c.StallTicks <= 0 {
		c.StallTicks = DefaultStallTicks
	}
	return c
}

// NavigateOption configures a BehaviorNodeNavigate.
type NavigateOption func(*BehaviorNodeNavigate)

// WithPlanner sets the planner. The default is a GraphPlanner.
func WithPlanner(p Planner) NavigateOption {
	return func(n *BehaviorNodeNavigate) { n.planner = p }
}

// WithKinematics sets the motion model. The default is LinearKinematics.
func WithKinematics(k Kinematics) NavigateOption {
	return func(n *BehaviorNodeNavigate) { n.kinematics = k }
}

// WithConfig overrides the navigation tuning.
func WithConfig(cfg NavigateConfig) NavigateOption {
	return func(n *BehaviorNodeNavigate) { n.cfg = cfg.ApplyDefaults() }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) NavigateOption {
	return func(n *BehaviorNodeNavigate) { n.log = l }
}

// WithRecorder sets the navigation event sink.
func WithRecorder(r NavigationRecorder) NavigateOption {
	return func(n *BehaviorNodeNavigate) { n.recorder = r }
}

// BehaviorNodeNavigate drives an agent to a named destination: it resolves the
// name against the building, asks the planner for a path and follows it one
// tick at a time.
type BehaviorNodeNavigate struct {
	DestinationName  string
	DestinationFound bool
	DestinationState model.ModelState
	Path             []Waypoint

	cfg        NavigateConfig
	planner    Planner
	kinematics Kinematics
	log        logging.Logger
	recorder   NavigationRecorder

	status      NavigateStatus
	err         error
	prevError   float64
	stallTicks  int
	lastTarget  model.Vertex
	hasTarget   bool
	lastStep    Step
	ticks       int
	replans     int
	stagnations int
	missLogged  bool
}

var _ BehaviorNode = (*BehaviorNodeNavigate)(nil)
var _ Failer = (*BehaviorNodeNavigate)(nil)

// NewBehaviorNodeNavigate creates an unresolved navigate node.
func NewBehaviorNodeNavigate(destination string, opts ...NavigateOption) *BehaviorNodeNavigate {
	n := &BehaviorNodeNavigate{
		DestinationName: destination,
		cfg:             DefaultNavigateConfig(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.planner == nil {
		n.planner = &GraphPlanner{Tolerance: n.cfg.WaypointTolerance}
	}
	if n.kinematics == nil {
		n.kinematics = &LinearKinematics{}
	}
	if n.log == nil {
		n.log = logging.Noop()
	}
	if n.recorder == nil {
		n.recorder = noopRecorder{}
	}
	n.reset()
	return n
}

func (n *BehaviorNodeNavigate) reset() {
	n.DestinationFound = false
	n.DestinationState = model.ModelState{}
	n.Path = nil
	n.status = NavigateUnresolved
	n.err = nil
	n.prevError = math.Inf(1)
	n.stallTicks = 0
	n.lastTarget = model.Vertex{}
	n.hasTarget = false
	n.lastStep = Step{}
	n.ticks = 0
	n.replans = 0
	n.stagnations = 0
	n.missLogged = false
}

// Clone returns a fresh, unresolved node with the same destination, tuning
// and collaborators. Collaborators are stateless or sinks, so sharing them is
// safe; runtime fields are never shared.
func (n *BehaviorNodeNavigate) Clone() BehaviorNode {
	c := &BehaviorNodeNavigate{
		DestinationName: n.DestinationName,
		cfg:             n.cfg,
		planner:         n.planner,
		kinematics:      n.kinematics,
		log:             n.log,
		recorder:        n.recorder,
	}
	c.reset()
	return c
}

// IsComplete implements BehaviorNode.
func (n *BehaviorNodeNavigate) IsComplete() bool { return n.status == NavigateComplete }

// Failed implements Failer. It is true after a planning failure or, with
// StagnationFail, after stagnating.
func (n *BehaviorNodeNavigate) Failed() bool {
	return n.status == NavigatePlanFailed || n.status == NavigateStuck
}

// Status returns the current lifecycle state.
func (n *BehaviorNodeNavigate) Status() NavigateStatus { return n.status }

// Err returns the failure cause, if any.
func (n *BehaviorNodeNavigate) Err() error { return n.err }

// PrevError returns the error measured during the latest tick, or +Inf
// before the first measurement.
func (n *BehaviorNodeNavigate) PrevError() float64 { return n.prevError }

// Replans returns how many times the node replanned after stagnating.
func (n *BehaviorNodeNavigate) Replans() int { return n.replans }

// Stagnations returns how many stall runs were detected.
func (n *BehaviorNodeNavigate) Stagnations() int { return n.stagnations }

// LastStep returns the motion computed during the latest tick.
func (n *BehaviorNodeNavigate) LastStep() Step { return n.lastStep }

// Config returns the effective tuning.
func (n *BehaviorNodeNavigate) Config() NavigateConfig { return n.cfg }

// Tick implements BehaviorNode.
func (n *BehaviorNodeNavigate) Tick(ctx context.Context, dt float64, state *model.ModelState, building Building, active []*model.Agent) {
	if n.IsComplete() || n.Failed() || state == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	n.ticks++

	if !n.DestinationFound {
		if !n.resolve(ctx, building) {
			return
		}
		if !n.plan(ctx, *state, building) {
			return
		}
	}

	target, targetChanged := n.currentTarget(*state)
	errDist := state.DistanceTo(target.X, target.Y)

	switch {
	case targetChanged:
		n.stallTicks = 0
	case n.prevError-errDist <= n.cfg.ProgressRate*dt:
		n.stallTicks++
	default:
		n.stallTicks = 0
	}
	n.prevError = errDist

	if len(n.Path) == 0 && errDist <= n.cfg.WaypointTolerance {
		n.status = NavigateComplete
		n.lastStep = Step{Heading: state.Yaw, Fraction: 1}
		n.recorder.RecordOutcome(n.status)
		n.log.Info(ctx, "navigation complete",
			logging.String("destination", n.DestinationName),
			logging.Int("ticks", n.ticks),
			logging.Int("replans", n.replans),
		)
		return
	}

	if n.stallTicks >= n.cfg.StallTicks {
		n.stagnate(ctx, *state, building, errDist)
		return
	}

	n.lastStep = n.kinematics.Step(state, target, dt)
}

// resolve maps DestinationName to a pose. Misses are logged once at warn
// level and then at debug level on every retry.
func (n *BehaviorNodeNavigate) resolve(ctx context.Context, building Building) bool {
	var (
		dest  model.ModelState
		found bool
	)
	if building != nil {
		dest, found = building.Resolve(n.DestinationName)
	}
	n.recorder.RecordResolution(found)
	if !found {
		fields := []logging.Field{logging.String("destination", n.DestinationName), logging.Int("ticks", n.ticks)}
		if !n.missLogged {
			n.missLogged = true
			n.log.Warn(ctx, "navigation destination not found; will retry", fields...)
		} else {
			n.log.Debug(ctx, "navigation destination still unresolved", fields...)
		}
		return false
	}
	n.DestinationFound = true
	n.DestinationState = dest
	n.log.Debug(ctx, "navigation destination resolved",
		logging.String("destination", n.DestinationName),
		logging.String("level", dest.Level),
		logging.Float("x", dest.X),
		logging.Float("y", dest.Y),
	)
	return true
}

// plan replaces Path with a fresh plan from start. Planner errors and panics
// become NavigatePlanFailed.
func (n *BehaviorNodeNavigate) plan(ctx context.Context, start model.ModelState, building Building) (ok bool) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "navigate.plan", trace.WithAttributes(
		attribute.String("destination", n.DestinationName),
		attribute.String("level", start.Level),
		attribute.Int("replans", n.replans),
	))
	defer span.End()

	began := time.Now()
	var (
		path []Waypoint
		err  error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("planner panic: %v", r)
			}
		}()
		path, err = n.planner.Plan(ctx, start, n.DestinationState, building)
	}()
	n.recorder.RecordPlan(time.Since(began), len(path), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.status = NavigatePlanFailed
		n.err = fmt.Errorf("plan to %q: %w", n.DestinationName, err)
		n.Path = nil
		n.recorder.RecordOutcome(n.status)
		n.log.Warn(ctx, "navigation planning failed",
			logging.String("destination", n.DestinationName),
			logging.Err(err),
		)
		return false
	}

	span.SetAttributes(attribute.Int("waypoints", len(path)))
	n.Path = append([]Waypoint(nil), path...)
	n.status = NavigatePlanned
	n.hasTarget = false
	n.log.Debug(ctx, "navigation path planned",
		logging.String("destination", n.DestinationName),
		logging.Int("waypoints", len(path)),
	)
	return true
}

// currentTarget pops every waypoint already within tolerance and returns the
// point to head for, plus whether it differs from the previous tick's target.
func (n *BehaviorNodeNavigate) currentTarget(state model.ModelState) (model.Vertex, bool) {
	for len(n.Path) > 0 {
		wp := n.Path[0]
		if state.DistanceTo(wp.X, wp.Y) > n.cfg.WaypointTolerance {
			break
		}
		n.Path = n.Path[1:]
	}

	var target model.Vertex
	if len(n.Path) > 0 {
		target = n.Path[0].Position()
	} else {
		target = n.DestinationState.Position()
	}
	changed := !n.hasTarget || target != n.lastTarget
	n.lastTarget = target
	n.hasTarget = true
	return target, changed
}

func (n *BehaviorNodeNavigate) stagnate(ctx context.Context, state model.ModelState, building Building, errDist float64) {
	n.stagnations++
	n.stallTicks = 0
	n.recorder.RecordStagnation(n.cfg.Policy)
	fields := []logging.Field{
		logging.String("destination", n.DestinationName),
		logging.String("policy", n.cfg.Policy.String()),
		logging.Float("error", errDist),
		logging.Int("stagnations", n.stagnations),
	}

	if n.cfg.Policy == StagnationFail {
		n.status = NavigateStuck
		n.err = fmt.Errorf("%w: %q error %.3f did not improve for %d ticks", ErrStagnated, n.DestinationName, errDist, n.cfg.StallTicks)
		n.recorder.RecordOutcome(n.status)
		n.log.Warn(ctx, "navigation stuck", fields...)
		return
	}

	n.replans++
	n.log.Warn(ctx, "navigation stagnating; replanning", fields...)
	n.plan(ctx, state, building)
}

// String returns a one-line summary.
func (n *BehaviorNodeNavigate) String() string {
	return fmt.Sprintf("navigate(%s) %s, %d waypoints left", n.DestinationName, n.status, len(n.Path))
}

// Print implements BehaviorNode.
func (n *BehaviorNodeNavigate) Print(w io.Writer) {
	fmt.Fprintf(w, "navigate:\n")
	fmt.Fprintf(w, "  destination_name: %s\n", n.DestinationName)
	fmt.Fprintf(w, "  status: %s\n", n.status)
	fmt.Fprintf(w, "  destination_found: %t\n", n.DestinationFound)
	if n.DestinationFound {
		d := n.DestinationState
		fmt.Fprintf(w, "  destination_state: (%.3f, %.3f) level=%s\n", d.X, d.Y, d.Level)
	}
	fmt.Fprintf(w, "  path: %d waypoints", len(n.Path))
	for _, wp := range n.Path {
		fmt.Fprintf(w, " (%.3f, %.3f)", wp.X, wp.Y)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  prev_error: %g\n", n.prevError)
	fmt.Fprintf(w, "  stall_ticks: %d/%d policy=%s\n", n.stallTicks, n.cfg.StallTicks, n.cfg.Policy)
	fmt.Fprintf(w, "  ticks: %d replans: %d stagnations: %d\n", n.ticks, n.replans, n.stagnations)
	fmt.Fprintf(w, "  last_step: heading=%.3f distance=%.3f fraction=%.3f\n", n.lastStep.Heading, n.lastStep.Distance, n.lastStep.Fraction)
	if n.err != nil {
		fmt.Fprintf(w, "  error: %v\n", n.err)
	}
}
