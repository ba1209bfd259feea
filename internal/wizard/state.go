package wizard

import (
	"errors"
	"fmt"
)

// State identifies a step of the project creation flow.
type State string

const (
	StateRoleSelect         State = "role_select"
	StateCategoryBrowse     State = "category_browse"
	StateCategoryConfirm    State = "category_confirm"
	StateDescription        State = "description"
	StateLocationKind       State = "location_kind"
	StateLocationCoordinate State = "location_coordinate"
	StateDetailsHub         State = "details_hub"
	StateDetailsFiles       State = "details_files"
	StateDetailsDate        State = "details_date"
	StateDetailsDeadline    State = "details_deadline"
	StateDetailsBudget      State = "details_budget"
	StateDetailsQuantity    State = "details_quantity"
	StateSubmit             State = "submit"
)

// States lists every state in flow order.
var States = []State{
	StateRoleSelect,
	StateCategoryBrowse,
	StateCategoryConfirm,
	StateDescription,
	StateLocationKind,
	StateLocationCoordinate,
	StateDetailsHub,
	StateDetailsFiles,
	StateDetailsDate,
	StateDetailsDeadline,
	StateDetailsBudget,
	StateDetailsQuantity,
	StateSubmit,
}

// ErrIllegalTransition reports a state change that is not in the transition table.
var ErrIllegalTransition = errors.New("wizard: illegal transition")

// transitions lists the allowed next states for every state. Staying in the same
// state is always allowed and not listed. Every state may also be reset to
// StateRoleSelect by cancel or restart.
var transitions = map[State][]State{
	StateRoleSelect:         {StateCategoryBrowse},
	StateCategoryBrowse:     {StateCategoryConfirm, StateRoleSelect},
	StateCategoryConfirm:    {StateDescription, StateCategoryBrowse},
	StateDescription:        {StateLocationKind, StateCategoryConfirm},
	StateLocationKind:       {StateLocationCoordinate, StateDetailsHub, StateDescription},
	StateLocationCoordinate: {StateDetailsHub, StateLocationKind},
	StateDetailsHub: {
		StateDetailsFiles, StateDetailsDate, StateDetailsDeadline,
		StateDetailsBudget, StateDetailsQuantity, StateSubmit,
		StateLocationCoordinate, StateLocationKind,
	},
	StateDetailsFiles:    {StateDetailsHub},
	StateDetailsDate:     {StateDetailsHub},
	StateDetailsDeadline: {StateDetailsHub},
	StateDetailsBudget:   {StateDetailsHub},
	StateDetailsQuantity: {StateDetailsHub},
	StateSubmit:          {StateRoleSelect, StateDetailsHub, StateDetailsBudget},
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the table allows moving from one state to another.
func CanTransition(from, to State) bool {
	if from == to {
		return from.Valid()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// Outcome classifies the result of handling one input.
type Outcome string

const (
	// OutcomeOK means the input was accepted.
	OutcomeOK Outcome = "ok"
	// OutcomeInvalidInput means the input was rejected; session untouched.
	OutcomeInvalidInput Outcome = "invalid_input"
	// OutcomePrecondition means a required field is missing for the requested action.
	OutcomePrecondition Outcome = "precondition"
	// OutcomeUnavailable means an external call failed; session preserved.
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeNeedsRegistration means the user must register before continuing.
	OutcomeNeedsRegistration Outcome = "needs_registration"
	// OutcomeSubmitted means the project was created and the session was reset.
	OutcomeSubmitted Outcome = "submitted"
	// OutcomeCancelled means the conversation was cancelled and the session dropped.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeRestarted means the session was reset to the role menu.
	OutcomeRestarted Outcome = "restarted"
)
