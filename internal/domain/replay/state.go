package replay

import "fmt"

// State is the coarse per-entity play state.
type State int

const (
	StateActive State = iota
	StateDown
	StateResettable
	StateEliminated
)

// Reason qualifies StateDown.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonZapped
	ReasonMissiled
	ReasonNuked
	ReasonResupply
	ReasonOther
)

func (r Reason) String() string {
	switch r {
	case ReasonZapped:
		return "zapped"
	case ReasonMissiled:
		return "missiled"
	case ReasonNuked:
		return "nuked"
	case ReasonResupply:
		return "resupply"
	case ReasonOther:
		return "other"
	}
	return "none"
}

// Status is a state plus its reason.
type Status struct {
	State  State  `json:"state"`
	Reason Reason `json:"reason,omitempty"`
}

// Class is the row style class rendered for the status.
func (s Status) Class() string {
	switch s.State {
	case StateDown:
		return fmt.Sprintf("down-%s", s.Reason)
	case StateResettable:
		return "resettable"
	case StateEliminated:
		return "eliminated"
	}
	return "active"
}
