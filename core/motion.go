package core

import (
	"github.com/signalsfoundry/building-sim/model"
)

// Step describes what a Kinematics implementation did during one tick.
type Step struct {
	Heading  float64 // radians
	Distance float64 // metres covered this tick
	Fraction float64 // Distance / remaining distance to the target before the step, in [0, 1]
}

// Kinematics advances an agent's pose towards a target for one tick.
type Kinematics interface {
	Step(state *model.ModelState, target model.Vertex, dt float64) Step
}

// DefaultSpeed is the cruise speed used when neither the agent nor the
// kinematics model specify one (m/s).
const DefaultSpeed = 0.5

// LinearKinematics moves in a straight line at constant speed and turns
// instantly to face the target.
type LinearKinematics struct {
	// DefaultSpeed applies when ModelState.Speed is zero.
	DefaultSpeed float64
}

// Step moves state by at most speed*dt towards target.
func (k *LinearKinematics) Step(state *model.ModelState, target model.Vertex, dt float64) Step {
	heading := HeadingTo(*state, target)
	remaining := state.DistanceTo(target.X, target.Y)
	if dt <= 0 || remaining == 0 {
		return Step{Heading: heading, Fraction: fractionOf(0, remaining)}
	}

	speed := state.Speed
	if speed <= 0 {
		speed = k.DefaultSpeed
	}
	if speed <= 0 {
		speed = DefaultSpeed
	}

	x, y, moved := stepToward(state.X, state.Y, target, speed*dt)
	state.X, state.Y = x, y
	state.Yaw = heading
	return Step{Heading: heading, Distance: moved, Fraction: fractionOf(moved, remaining)}
}

// StaticKinematics never moves the agent. It stands in for a blocked or
// parked agent.
type StaticKinematics struct{}

// Step for static kinematics reports the intended heading and does nothing.
func (StaticKinematics) Step(state *model.ModelState, target model.Vertex, dt float64) Step {
	return Step{Heading: HeadingTo(*state, target)}
}

func fractionOf(moved, remaining float64) float64 {
	if remaining <= 0 {
		return 1
	}
	return moved / remaining
}
