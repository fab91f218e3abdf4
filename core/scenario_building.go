package core

import "github.com/signalsfoundry/building-sim/model"

// ScenarioBuilding layers a scenario's named vertices over a building so
// behaviors can navigate to scenario-defined places. Scenario names shadow
// building names; nav graphs come from the building.
type ScenarioBuilding struct {
	Building
	Scenario *Scenario
}

// Resolve implements Building.
func (b ScenarioBuilding) Resolve(name string) (model.ModelState, bool) {
	if b.Scenario != nil && name != "" {
		for _, v := range b.Scenario.Vertices {
			if v.Name == name {
				if v.Level == "" {
					v.Level = b.levelOf(v)
				}
				return model.StateAt(v), true
			}
		}
	}
	if b.Building == nil {
		return model.ModelState{}, false
	}
	return b.Building.Resolve(name)
}

// levelOf picks the level for a scenario vertex without one: the only
// building level, or else the only level whose region of interest contains
// it. It returns "" when that is ambiguous.
func (b ScenarioBuilding) levelOf(v model.Vertex) string {
	if lv, ok := b.Building.(interface{ Levels() []string }); ok {
		if levels := lv.Levels(); len(levels) == 1 {
			return levels[0]
		}
	}
	match := ""
	for level, roi := range b.Scenario.ROI {
		if !roi.Contains(v.X, v.Y) {
			continue
		}
		if match != "" {
			return ""
		}
		match = level
	}
	return match
}

// NavGraph implements Building.
func (b ScenarioBuilding) NavGraph(level string) (*NavGraph, bool) {
	if b.Building == nil {
		return nil, false
	}
	return b.Building.NavGraph(level)
}

// InROI reports whether state lies inside the scenario's region of interest
// for its level. Levels without a region of interest contain everything.
func (b ScenarioBuilding) InROI(state model.ModelState) bool {
	if b.Scenario == nil {
		return true
	}
	roi, ok := b.Scenario.ROI[state.Level]
	if !ok {
		return true
	}
	return roi.Contains(state.X, state.Y)
}
