package formviewer

import "github.com/tbxark/formviewer/types"

// State is one immutable snapshot of a form-filling session. It is only
// ever replaced through the transition functions below, each a pure
// function of the current snapshot.
type State struct {
	Stage                  types.Stage `json:"stage"`
	Busy                   bool        `json:"busy"`
	LastAnsweredFieldIndex int         `json:"last_answered_field_index"`
	Submitted              bool        `json:"submitted"`
	CurrentFieldName       string      `json:"current_field_name"`
}

// NewState returns the initial snapshot: welcome stage, no field answered.
func NewState() State {
	return State{
		Stage:                  types.StageWelcome,
		LastAnsweredFieldIndex: -1,
	}
}

// begin advances welcome to fields. ok is false when the session already
// left the welcome stage; the snapshot is returned unchanged then.
func (s State) begin() (State, bool) {
	if s.Stage != types.StageWelcome {
		return s, false
	}
	s.Stage = types.StageFields
	return s, true
}

// complete advances fields to end. The stage never moves directly from
// welcome to end, and end has no outgoing transitions.
func (s State) complete() (State, bool) {
	if s.Stage != types.StageFields {
		return s, false
	}
	s.Stage = types.StageEnd
	return s, true
}

// reset returns the session to the initial snapshot from any stage.
func (s State) reset() State {
	return NewState()
}

func (s State) withProgress(fieldName string, fieldIndex int) State {
	s.CurrentFieldName = fieldName
	s.LastAnsweredFieldIndex = fieldIndex
	return s
}

func (s State) withBusy(busy bool) State {
	s.Busy = busy
	return s
}

func (s State) withSubmitted(submitted bool) State {
	s.Submitted = submitted
	return s
}
