package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const libraryYAML = `
behaviors:
  deliver:
    - [navigate, dock_a]
    - [wait, 2.5]
    - [navigate, charger]
  park:
    - [navigate, charger]
`

func TestLoadBehaviorLibrary(t *testing.T) {
	cfg := DefaultNavigateConfig()
	cfg.StallTicks = 7
	lib, err := LoadBehaviorLibrary(strings.NewReader(libraryYAML), WithConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, []string{"deliver", "park"}, lib.Names())

	nodes, err := lib.Instantiate("deliver")
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	nav, ok := nodes[0].(*BehaviorNodeNavigate)
	require.True(t, ok)
	assert.Equal(t, "dock_a", nav.DestinationName)
	assert.Equal(t, 7, nav.Config().StallTicks)

	wait, ok := nodes[1].(*BehaviorNodeWait)
	require.True(t, ok)
	assert.Equal(t, 2.5, wait.Seconds)

	assert.Equal(t, "charger", nodes[2].(*BehaviorNodeNavigate).DestinationName)
}

func TestBehaviorLibraryInstantiateClones(t *testing.T) {
	lib, err := LoadBehaviorLibrary(strings.NewReader(libraryYAML))
	require.NoError(t, err)

	a, err := lib.Instantiate("park")
	require.NoError(t, err)
	b, err := lib.Instantiate("park")
	require.NoError(t, err)

	assert.NotSame(t, a[0], b[0])
	a[0].(*BehaviorNodeNavigate).DestinationFound = true
	assert.False(t, b[0].(*BehaviorNodeNavigate).DestinationFound)

	again, err := lib.Instantiate("park")
	require.NoError(t, err)
	assert.False(t, again[0].(*BehaviorNodeNavigate).DestinationFound)
}

func TestBehaviorLibraryUnknownName(t *testing.T) {
	lib := NewBehaviorLibrary()
	lib.Add("idle", NewBehaviorNodeWait(1))

	_, err := lib.Instantiate("deliver")
	assert.True(t, errors.Is(err, ErrUnknownBehavior))
}

func TestLoadBehaviorLibraryErrors(t *testing.T) {
	tests := map[string]string{
		"unknown kind":       "behaviors:\n  x:\n    - [dance, now]\n",
		"navigate no arg":    "behaviors:\n  x:\n    - [navigate]\n",
		"wait not a number":  "behaviors:\n  x:\n    - [wait, soon]\n",
		"step not sequence":  "behaviors:\n  x:\n    - navigate\n",
		"navigate two args":  "behaviors:\n  x:\n    - [navigate, a, b]\n",
		"behaviors not list": "behaviors:\n  x: {navigate: a}\n",
		"wait nan":           "behaviors:\n  x:\n    - [wait, nan]\n",
		"wait inf":           "behaviors:\n  x:\n    - [wait, +Inf]\n",
		"misspelled section": "behaviours:\n  x:\n    - [wait, 1]\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadBehaviorLibrary(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}

	_, err := LoadBehaviorLibrary(strings.NewReader("behaviors:\n  x:\n    - [dance]\n"))
	assert.True(t, errors.Is(err, ErrUnknownBehavior))
}
