package model

// Agent is one active model in the simulated building (robot, cart,
// pedestrian, ...). The simulation loop owns State and hands it to the
// agent's behavior nodes once per step.
type Agent struct {
	ID        string
	Name      string
	ModelName string // e.g. "MiR100", "pedestrian"

	State ModelState
}
