package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/building-sim/internal/logging"
	"github.com/signalsfoundry/building-sim/model"
)

// Scenario is a named set of vertices plus one region of interest per level,
// persisted as YAML under Filename. A Scenario is not safe for concurrent
// Load/Save.
type Scenario struct {
	Name     string
	Filename string
	Vertices []model.Vertex
	ROI      map[string]model.Polygon // keyed by level name

	log logging.Logger
}

// NewScenario returns an empty scenario bound to filename.
func NewScenario(name, filename string) *Scenario {
	return &Scenario{
		Name:     name,
		Filename: filename,
		ROI:      make(map[string]model.Polygon),
	}
}

// SetLogger sets the logger used to report Load/Save failures.
func (s *Scenario) SetLogger(l logging.Logger) { s.log = l }

func (s *Scenario) logger() logging.Logger {
	if s.log == nil {
		return logging.Noop()
	}
	return s.log
}

// on-disk shapes
type scenarioDoc struct {
	Name     string              `yaml:"name"`
	Vertices []model.Vertex      `yaml:"vertices"`
	Levels   map[string]levelROI `yaml:"levels,omitempty"`
}

type levelROI struct {
	ROI []model.Vertex `yaml:"roi,flow"`
}

// Load reads Filename. On any failure it returns false and leaves the
// scenario exactly as it was.
func (s *Scenario) Load() bool {
	f, err := os.Open(s.Filename)
	if err != nil {
		s.logger().Warn(context.Background(), "scenario load failed", logging.String("filename", s.Filename), logging.Err(err))
		return false
	}
	defer f.Close()

	if err := s.Decode(f); err != nil {
		s.logger().Warn(context.Background(), "scenario load failed", logging.String("filename", s.Filename), logging.Err(err))
		return false
	}
	return true
}

// Save writes the scenario to Filename, returning false on any error.
func (s *Scenario) Save() bool {
	data, err := s.MarshalDocument()
	if err != nil {
		s.logger().Warn(context.Background(), "scenario save failed", logging.String("filename", s.Filename), logging.Err(err))
		return false
	}
	if err := os.WriteFile(s.Filename, data, 0o644); err != nil {
		s.logger().Warn(context.Background(), "scenario save failed", logging.String("filename", s.Filename), logging.Err(err))
		return false
	}
	return true
}

// Decode parses a scenario document from r. The scenario is only modified
// when the whole document is valid.
func (s *Scenario) Decode(r io.Reader) error {
	var doc scenarioDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("scenario: decode failed: %w", err)
	}

	roi := make(map[string]model.Polygon, len(doc.Levels))
	for level, l := range doc.Levels {
		poly := model.Polygon{Points: l.ROI}
		if err := poly.Validate(); err != nil {
			return fmt.Errorf("scenario: level %q roi: %w", level, err)
		}
		roi[level] = poly
	}

	if doc.Name != "" {
		s.Name = doc.Name
	}
	s.Vertices = doc.Vertices
	s.ROI = roi
	return nil
}

// Encode writes the scenario document to w.
func (s *Scenario) Encode(w io.Writer) error {
	doc := scenarioDoc{
		Name:     s.Name,
		Vertices: s.Vertices,
	}
	if doc.Vertices == nil {
		doc.Vertices = []model.Vertex{}
	}
	if len(s.ROI) > 0 {
		levels := make([]string, 0, len(s.ROI))
		for level := range s.ROI {
			levels = append(levels, level)
		}
		sort.Strings(levels)
		doc.Levels = make(map[string]levelROI, len(levels))
		for _, level := range levels {
			poly := s.ROI[level]
			if err := poly.Validate(); err != nil {
				return fmt.Errorf("scenario: level %q roi: %w", level, err)
			}
			doc.Levels[level] = levelROI{ROI: poly.Points}
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("scenario: encode failed: %w", err)
	}
	return enc.Close()
}

// MarshalDocument returns the YAML document for the scenario.
func (s *Scenario) MarshalDocument() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalDocument replaces the scenario contents with data.
func (s *Scenario) UnmarshalDocument(data []byte) error {
	return s.Decode(bytes.NewReader(data))
}
