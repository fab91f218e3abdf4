package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/signalsfoundry/building-sim/core"
	"github.com/signalsfoundry/building-sim/internal/config"
	"github.com/signalsfoundry/building-sim/internal/logging"
	"github.com/signalsfoundry/building-sim/internal/store"
	"github.com/signalsfoundry/building-sim/kb"
	"github.com/signalsfoundry/building-sim/model"
	"github.com/signalsfoundry/building-sim/timectrl"
)

type recorder interface {
	core.NavigationRecorder
	core.StepRecorder
}

type summary struct {
	RunID  string
	Ticks  int
	Agents []store.AgentOutcome
}

// runSimulation loads the inputs named by cfg, runs every configured agent
// until its behavior finishes or the duration elapses, and archives the run
// when a store is configured.
func runSimulation(ctx context.Context, cfg config.Config, rec recorder, log logging.Logger) (summary, error) {
	if log == nil {
		log = logging.Noop()
	}

	bmap, err := loadBuilding(cfg.Simulation.Building)
	if err != nil {
		return summary{}, err
	}
	building := core.ScenarioBuilding{Building: bmap}

	navCfg, err := cfg.NavigateConfig()
	if err != nil {
		return summary{}, err
	}
	lib, err := loadBehaviors(cfg.Simulation.Behaviors,
		core.WithConfig(navCfg),
		core.WithLogger(log),
		core.WithRecorder(rec),
	)
	if err != nil {
		return summary{}, err
	}

	var archive *store.Store
	if cfg.Store.Path != "" {
		if archive, err = store.Open(cfg.Store.Path); err != nil {
			return summary{}, err
		}
		defer archive.Close()
	}

	scenarioName := ""
	if path := cfg.Simulation.Scenario; path != "" {
		sc := core.NewScenario(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), path)
		sc.SetLogger(log)
		if !sc.Load() {
			return summary{}, fmt.Errorf("scenario %s could not be loaded", path)
		}
		building.Scenario = sc
		scenarioName = sc.Name
		log.Info(ctx, "scenario loaded",
			logging.String("name", sc.Name),
			logging.Int("vertices", len(sc.Vertices)),
			logging.Int("levels", len(sc.ROI)),
		)
		if archive != nil {
			if err := archive.SaveScenario(ctx, sc); err != nil {
				return summary{}, err
			}
		}
	}

	agents := kb.NewKnowledgeBase()
	engine := core.NewSimulationEngine(agents, building,
		core.WithEngineLogger(log),
		core.WithStepRecorder(rec),
	)
	defer engine.Close()

	behaviorOf := make(map[string]string, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		if err := addAgent(agents, building, ac); err != nil {
			return summary{}, err
		}
		nodes, err := lib.Instantiate(ac.Behavior)
		if err != nil {
			return summary{}, fmt.Errorf("agent %s: %w", ac.ID, err)
		}
		if err := engine.Assign(ac.ID, nodes...); err != nil {
			return summary{}, err
		}
		behaviorOf[ac.ID] = ac.Behavior
	}

	start := time.Now().UTC()
	tick := cfg.Simulation.Tick.Duration
	mode := timectrl.ModeFromFlag(cfg.Simulation.Accelerated)
	tc := timectrl.NewTimeController(start, tick, mode)

	runID := ""
	if archive != nil {
		if runID, err = archive.BeginRun(ctx, scenarioName, bmap.Name, start); err != nil {
			return summary{}, err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	tc.AddListener(func(time.Time) {
		engine.Step(runCtx, tick.Seconds())
		if engine.Done() {
			cancel()
		}
	})

	log.Info(ctx, "starting simulation",
		logging.String("building", bmap.Name),
		logging.Int("agents", agents.Len()),
		logging.String("duration", cfg.Simulation.Duration.String()),
		logging.String("tick", tick.String()),
		logging.String("mode", mode.String()),
	)
	if !engine.Done() {
		<-tc.Start(runCtx, cfg.Simulation.Duration.Duration)
	}

	sum := summary{RunID: runID, Ticks: engine.Ticks()}
	for _, a := range agents.ListAgents() {
		status := "idle"
		if s, ok := engine.Status(a.ID); ok {
			status = statusName(s)
		}
		sum.Agents = append(sum.Agents, store.OutcomeFor(a.ID, behaviorOf[a.ID], status, a.State))

		fields := []logging.Field{
			logging.String("agent", a.ID),
			logging.String("behavior", behaviorOf[a.ID]),
			logging.String("status", status),
			logging.Float("x", a.State.X),
			logging.Float("y", a.State.Y),
			logging.String("level", a.State.Level),
		}
		if building.InROI(a.State) {
			log.Info(ctx, "agent final state", fields...)
		} else {
			log.Warn(ctx, "agent finished outside the region of interest", fields...)
		}
	}

	if archive != nil {
		if err := archive.FinishRun(ctx, runID, sum.Ticks, tc.Now(), sum.Agents); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func loadBuilding(path string) (*core.BuildingMap, error) {
	if path == "" {
		return nil, fmt.Errorf("a building file is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("building: %w", err)
	}
	defer f.Close()
	return core.LoadBuildingMap(f)
}

func loadBehaviors(path string, opts ...core.NavigateOption) (*core.BehaviorLibrary, error) {
	if path == "" {
		return core.NewBehaviorLibrary(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("behaviors: %w", err)
	}
	defer f.Close()
	return core.LoadBehaviorLibrary(f, opts...)
}

func addAgent(agents *kb.KnowledgeBase, building core.Building, ac config.AgentConfig) error {
	state := model.ModelState{X: ac.X, Y: ac.Y, Level: ac.Level}
	if ac.Start != "" {
		s, ok := building.Resolve(ac.Start)
		if !ok {
			return fmt.Errorf("agent %s: start location %q not found", ac.ID, ac.Start)
		}
		state = s
	}
	state.Speed = ac.Speed
	return agents.AddAgent(&model.Agent{
		ID:        ac.ID,
		Name:      ac.Name,
		ModelName: ac.Model,
		State:     state,
	})
}

func statusName(s bt.Status) string {
	switch s {
	case bt.Running:
		return "running"
	case bt.Success:
		return "success"
	case bt.Failure:
		return "failure"
	default:
		return "unknown"
	}
}
