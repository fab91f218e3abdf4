package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/building-sim/model"
)

func TestScenarioBuildingResolve(t *testing.T) {
	sc := NewScenario("s", "")
	sc.Vertices = []model.Vertex{
		{X: 5, Y: 0, Level: "L1", Name: "pickup"},
		{X: 9, Y: 0, Level: "L1", Name: "dock_a"},
	}
	b := ScenarioBuilding{Building: officeBuilding(), Scenario: sc}

	s, ok := b.Resolve("pickup")
	require.True(t, ok)
	assert.Equal(t, model.ModelState{X: 5, Level: "L1"}, s)

	s, ok = b.Resolve("dock_a")
	require.True(t, ok)
	assert.Equal(t, 9.0, s.X, "scenario names shadow building names")

	s, ok = b.Resolve("start")
	require.True(t, ok)
	assert.Equal(t, 0.0, s.X)

	_, ok = b.Resolve("")
	assert.False(t, ok)

	_, ok = b.NavGraph("L1")
	assert.True(t, ok)
	_, ok = ScenarioBuilding{}.NavGraph("L1")
	assert.False(t, ok)
}

func TestScenarioBuildingNavigate(t *testing.T) {
	sc := NewScenario("s", "")
	sc.Vertices = []model.Vertex{{X: 5, Y: 0, Level: "L1", Name: "pickup"}}
	b := ScenarioBuilding{Building: officeBuilding(), Scenario: sc}

	state := model.ModelState{Level: "L1", Speed: 1}
	n := NewBehaviorNodeNavigate("pickup")
	for i := 0; i < 50 && !n.IsComplete(); i++ {
		n.Tick(context.Background(), 0.5, &state, b, nil)
	}
	require.True(t, n.IsComplete())
	assert.Equal(t, 5.0, state.X)
}

func TestScenarioBuildingInROI(t *testing.T) {
	sc := NewScenario("s", "")
	sc.ROI["L1"] = model.Polygon{Points: []model.Vertex{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}}}
	b := ScenarioBuilding{Building: officeBuilding(), Scenario: sc}

	assert.True(t, b.InROI(model.ModelState{X: 1, Y: 1, Level: "L1"}))
	assert.False(t, b.InROI(model.ModelState{X: 5, Y: 1, Level: "L1"}))
	assert.True(t, b.InROI(model.ModelState{X: 50, Y: 50, Level: "L2"}))
}

func TestScenarioBuildingLevelLessVertex(t *testing.T) {
	meet := model.Vertex{X: 5, Y: 0, Name: "meet"}

	t.Run("ambiguous level stays empty and still plans", func(t *testing.T) {
		sc := NewScenario("s", "")
		sc.Vertices = []model.Vertex{meet}
		b := ScenarioBuilding{Building: officeBuilding(), Scenario: sc}

		s, ok := b.Resolve("meet")
		require.True(t, ok)
		assert.Empty(t, s.Level)

		state := model.ModelState{Level: "L1", Speed: 1}
		n := NewBehaviorNodeNavigate("meet")
		for i := 0; i < 50 && !n.IsComplete() && !n.Failed(); i++ {
			n.Tick(context.Background(), 0.5, &state, b, nil)
		}
		require.True(t, n.IsComplete(), "status %s: %v", n.Status(), n.Err())
		assert.Equal(t, 5.0, state.X)
		assert.Equal(t, "L1", state.Level)
	})

	t.Run("level taken from the region of interest", func(t *testing.T) {
		sc := NewScenario("s", "")
		sc.Vertices = []model.Vertex{meet}
		sc.ROI["L1"] = model.Polygon{Points: []model.Vertex{{X: 0, Y: -1}, {X: 8, Y: -1}, {X: 8, Y: 1}, {X: 0, Y: 1}}}
		sc.ROI["L2"] = model.Polygon{Points: []model.Vertex{{X: 50, Y: 50}, {X: 60, Y: 50}, {X: 60, Y: 60}}}
		b := ScenarioBuilding{Building: officeBuilding(), Scenario: sc}

		s, ok := b.Resolve("meet")
		require.True(t, ok)
		assert.Equal(t, "L1", s.Level)
	})

	t.Run("level taken from a single-level building", func(t *testing.T) {
		single, err := NewBuildingMap("shed", &Level{Name: "G", Vertices: []model.Vertex{{X: 0, Y: 0}}})
		require.NoError(t, err)
		sc := NewScenario("s", "")
		sc.Vertices = []model.Vertex{meet}
		b := ScenarioBuilding{Building: single, Scenario: sc}

		s, ok := b.Resolve("meet")
		require.True(t, ok)
		assert.Equal(t, "G", s.Level)
	})
}
