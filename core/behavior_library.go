package core

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrUnknownBehavior is returned for behavior kinds or names the library does
// not know.
var ErrUnknownBehavior = errors.New("unknown behavior")

// BehaviorLibrary holds authored behaviors: named sequences of nodes loaded
// once and instantiated per agent by cloning.
type BehaviorLibrary struct {
	behaviors map[string][]BehaviorNode
}

// NewBehaviorLibrary returns an empty library.
func NewBehaviorLibrary() *BehaviorLibrary {
	return &BehaviorLibrary{behaviors: make(map[string][]BehaviorNode)}
}

// Add registers a named behavior, replacing any previous definition.
func (l *BehaviorLibrary) Add(name string, nodes ...BehaviorNode) {
	l.behaviors[name] = append([]BehaviorNode(nil), nodes...)
}

// Names returns the behavior names in sorted order.
func (l *BehaviorLibrary) Names() []string {
	names := make([]string, 0, len(l.behaviors))
	for name := range l.behaviors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate returns fresh clones of the named behavior's nodes.
func (l *BehaviorLibrary) Instantiate(name string) ([]BehaviorNode, error) {
	authored, ok := l.behaviors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBehavior, name)
	}
	nodes := make([]BehaviorNode, len(authored))
	for i, n := range authored {
		nodes[i] = n.Clone()
	}
	return nodes, nil
}

type behaviorLibraryDoc struct {
	Behaviors map[string][]yaml.Node `yaml:"behaviors"`
}

// LoadBehaviorLibrary decodes a document of the form
//
//	behaviors:
//	  deliver:
//	    - [navigate, dock_a]
//	    - [wait, 2.5]
//
// navOpts are applied to every navigate node.
func LoadBehaviorLibrary(r io.Reader, navOpts ...NavigateOption) (*BehaviorLibrary, error) {
	var doc behaviorLibraryDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("LoadBehaviorLibrary: decode failed: %w", err)
	}
	lib := NewBehaviorLibrary()
	for name, steps := range doc.Behaviors {
		nodes := make([]BehaviorNode, 0, len(steps))
		for i := range steps {
			n, err := ParseBehaviorNode(&steps[i], navOpts...)
			if err != nil {
				return nil, fmt.Errorf("LoadBehaviorLibrary: behavior %q step %d: %w", name, i, err)
			}
			nodes = append(nodes, n)
		}
		lib.Add(name, nodes...)
	}
	return lib, nil
}

// ParseBehaviorNode builds a node from a YAML sequence whose first element is
// the behavior kind: [navigate, <destination>] or [wait, <seconds>].
func ParseBehaviorNode(node *yaml.Node, navOpts ...NavigateOption) (BehaviorNode, error) {
	if node == nil || node.Kind != yaml.SequenceNode || len(node.Content) == 0 {
		return nil, fmt.Errorf("line %d: behavior must be a non-empty sequence", lineOf(node))
	}
	kind := node.Content[0].Value
	args := node.Content[1:]
	switch kind {
	case "navigate":
		if len(args) != 1 || args[0].Kind != yaml.ScalarNode || args[0].Value == "" {
			return nil, fmt.Errorf("line %d: navigate takes one destination name", node.Line)
		}
		return NewBehaviorNodeNavigate(args[0].Value, navOpts...), nil
	case "wait":
		if len(args) != 1 || args[0].Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: wait takes one duration in seconds", node.Line)
		}
		seconds, err := strconv.ParseFloat(args[0].Value, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: wait duration: %w", node.Line, err)
		}
		if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return nil, fmt.Errorf("line %d: wait duration %q is not finite", node.Line, args[0].Value)
		}
		return NewBehaviorNodeWait(seconds), nil
	default:
		return nil, fmt.Errorf("line %d: %w kind %q", node.Line, ErrUnknownBehavior, kind)
	}
}

func lineOf(n *yaml.Node) int {
	if n == nil {
		return 0
	}
	return n.Line
}
