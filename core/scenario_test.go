package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/building-sim/model"
)

func sampleScenario(filename string) *Scenario {
	s := NewScenario("morning", filename)
	s.Vertices = []model.Vertex{
		{X: 0, Y: 0, Level: "L1", Name: "charger"},
		{X: 10, Y: 0, Level: "L1", Name: "dock_a"},
		{X: 2.5, Y: -1.25, Z: 4, Level: "L2"},
	}
	s.ROI["L1"] = model.Polygon{Points: []model.Vertex{{X: 0, Y: 0}, {X: 12, Y: 0}, {X: 12, Y: 6}, {X: 0, Y: 6}}}
	s.ROI["L2"] = model.Polygon{Points: []model.Vertex{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 0, Y: 5}}}
	return s
}

func TestScenarioSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	orig := sampleScenario(path)
	require.True(t, orig.Save())

	loaded := NewScenario("", path)
	require.True(t, loaded.Load())

	assert.Equal(t, orig.Name, loaded.Name)
	assert.Equal(t, orig.Vertices, loaded.Vertices)
	assert.Equal(t, orig.ROI, loaded.ROI)
}

func TestScenarioSaveWritesLevelsSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.True(t, sampleScenario(path).Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: morning")
	assert.Contains(t, string(data), "levels:")
	assert.Contains(t, string(data), "roi:")
}

func TestScenarioLoadMissingFile(t *testing.T) {
	s := sampleScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	before := sampleScenario(s.Filename)

	assert.False(t, s.Load())
	assert.Equal(t, before.Vertices, s.Vertices)
	assert.Equal(t, before.ROI, s.ROI)
}

func TestScenarioLoadFailureLeavesScenarioUntouched(t *testing.T) {
	tests := map[string]string{
		"malformed": "vertices: [{x: 1, y: ",
		"short roi": `
name: broken
vertices: [{x: 1, y: 1}]
levels:
  L1:
    roi: [{x: 0, y: 0}, {x: 1, y: 0}]
`,
		"wrong type": "vertices: {x: 1}",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

			s := sampleScenario(path)
			before := sampleScenario(path)
			assert.False(t, s.Load())
			assert.Equal(t, before.Name, s.Name)
			assert.Equal(t, before.Vertices, s.Vertices)
			assert.Equal(t, before.ROI, s.ROI)
		})
	}
}

func TestScenarioSaveFailures(t *testing.T) {
	dir := t.TempDir()

	s := sampleScenario(filepath.Join(dir, "missing-dir", "scenario.yaml"))
	assert.False(t, s.Save(), "unwritable path")

	s = sampleScenario(filepath.Join(dir, "scenario.yaml"))
	s.ROI["L3"] = model.Polygon{Points: []model.Vertex{{X: 0, Y: 0}, {X: 1, Y: 1}}}
	assert.False(t, s.Save(), "invalid roi")
	_, err := os.Stat(s.Filename)
	assert.True(t, os.IsNotExist(err), "nothing should be written")
}

func TestScenarioDocumentRoundTrip(t *testing.T) {
	orig := sampleScenario("")
	data, err := orig.MarshalDocument()
	require.NoError(t, err)

	var got Scenario
	require.NoError(t, got.UnmarshalDocument(data))
	assert.Equal(t, orig.Vertices, got.Vertices)
	assert.Equal(t, orig.ROI, got.ROI)
}

func TestScenarioEmptyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.True(t, NewScenario("empty", path).Save())

	s := sampleScenario(path)
	require.True(t, s.Load())
	assert.Equal(t, "empty", s.Name)
	assert.Empty(t, s.Vertices)
	assert.Empty(t, s.ROI)
}
