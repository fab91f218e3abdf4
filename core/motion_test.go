package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/building-sim/model"
)

func TestLinearKinematics_StepsAtSpeed(t *testing.T) {
	k := &LinearKinematics{}
	s := model.ModelState{X: 0, Y: 0, Speed: 2}

	step := k.Step(&s, model.Vertex{X: 0, Y: 10}, 0.5)

	if s.X != 0 || s.Y != 1 {
		t.Fatalf("pose after step: got (%v, %v), want (0, 1)", s.X, s.Y)
	}
	if math.Abs(s.Yaw-math.Pi/2) > 1e-12 {
		t.Fatalf("yaw: got %v, want pi/2", s.Yaw)
	}
	if step.Distance != 1 {
		t.Fatalf("distance: got %v, want 1", step.Distance)
	}
	if math.Abs(step.Fraction-0.1) > 1e-12 {
		t.Fatalf("fraction: got %v, want 0.1", step.Fraction)
	}
}

func TestLinearKinematics_NeverOvershoots(t *testing.T) {
	k := &LinearKinematics{DefaultSpeed: 100}
	s := model.ModelState{X: 1, Y: 1}

	step := k.Step(&s, model.Vertex{X: 4, Y: 5}, 1)

	if s.X != 4 || s.Y != 5 {
		t.Fatalf("expected to land exactly on target, got (%v, %v)", s.X, s.Y)
	}
	if step.Distance != 5 || step.Fraction != 1 {
		t.Fatalf("step: got %+v, want distance 5 fraction 1", step)
	}
}

func TestLinearKinematics_SpeedFallbacks(t *testing.T) {
	s := model.ModelState{}
	(&LinearKinematics{DefaultSpeed: 3}).Step(&s, model.Vertex{X: 10}, 1)
	if s.X != 3 {
		t.Fatalf("kinematics default speed: got x=%v, want 3", s.X)
	}

	s = model.ModelState{}
	(&LinearKinematics{}).Step(&s, model.Vertex{X: 10}, 1)
	if s.X != DefaultSpeed {
		t.Fatalf("package default speed: got x=%v, want %v", s.X, DefaultSpeed)
	}
}

func TestLinearKinematics_ZeroDtDoesNothing(t *testing.T) {
	s := model.ModelState{X: 2, Y: 2, Yaw: 1, Speed: 1}
	before := s
	(&LinearKinematics{}).Step(&s, model.Vertex{X: 5, Y: 2}, 0)
	if s != before {
		t.Fatalf("zero dt should not move, got %+v", s)
	}
}

func TestStaticKinematics_NoChange(t *testing.T) {
	s := model.ModelState{X: 1, Y: 2, Z: 3, Yaw: 0.5, Speed: 1}
	before := s
	step := StaticKinematics{}.Step(&s, model.Vertex{X: 1, Y: 10}, 5)
	if s != before {
		t.Fatalf("static kinematics should not change state, got %+v", s)
	}
	if step.Distance != 0 {
		t.Fatalf("static distance: got %v, want 0", step.Distance)
	}
	if math.Abs(step.Heading-math.Pi/2) > 1e-12 {
		t.Fatalf("heading: got %v, want pi/2", step.Heading)
	}
}
