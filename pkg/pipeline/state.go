package pipeline

import "fmt"

// DriverState is a state of the pipeline driver.
type DriverState string

// Driver states. RUNNING loops orchestrator and sub-agent calls; DONE runs
// the refiner once and is terminal.
const (
	StateRunning DriverState = "RUNNING"
	StateDone    DriverState = "DONE"
)

// Transitions is the driver's transition table.
//
//nolint:gochecknoglobals // static transition table
var Transitions = map[DriverState][]DriverState{
	StateRunning: {StateRunning, StateDone},
	StateDone:    {},
}

// ValidateTransition reports whether from -> to is allowed.
func ValidateTransition(from, to DriverState) error {
	for _, s := range Transitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid driver transition %s -> %s", from, to)
}

// Exchange is one sub-task prompt and its result, in history order.
type Exchange struct {
	Prompt      string
	Result      string
	SearchQuery string
}

// TaskRecord is the sub-agent's memory of one completed task.
type TaskRecord struct {
	Task   string
	Result string
}

// State is the mutable state of one run, owned by the Driver.
type State struct {
	Objective   string
	FileContent string
	UseSearch   bool
	Exchanges   []Exchange
	Tasks       []TaskRecord
	Phase       DriverState
}

// Results returns the exchange results in order.
func (s *State) Results() []string {
	out := make([]string, len(s.Exchanges))
	for i := range s.Exchanges {
		out[i] = s.Exchanges[i].Result
	}
	return out
}

func (s *State) transition(to DriverState) error {
	if err := ValidateTransition(s.Phase, to); err != nil {
		return err
	}
	s.Phase = to
	return nil
}
