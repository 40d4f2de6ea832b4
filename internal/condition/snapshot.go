package condition

import "github.com/gopcua/opcua/ua"

// ConditionSnapshot is a mutable copy of a Condition's properties for one
// branch (spec.md C8). BranchID nil denotes the condition's current
// branch; any other value denotes a historical branch awaiting
// acknowledgement/confirmation, addressed by EventID.
type ConditionSnapshot struct {
	BranchID *ua.NodeID
	EventID  []byte
	Comment  ua.LocalizedText
	Retain   bool

	AckedState     TwoStateVariableValue
	ConfirmedState *TwoStateVariableValue
}

// NewConditionSnapshot creates a snapshot in the Unacknowledged state
// (spec.md §4.2 "Instantiation": ackedState mandatory, false="Unacknowledged").
func NewConditionSnapshot(branchID *ua.NodeID, eventID []byte, ackedDef TwoStateVariableDef, hasConfirmed bool, confirmedDef TwoStateVariableDef) *ConditionSnapshot {
	s := &ConditionSnapshot{
		BranchID:   branchID,
		EventID:    eventID,
		Retain:     true,
		AckedState: ackedDef.Render(false),
	}
	if hasConfirmed {
		v := confirmedDef.Render(false)
		s.ConfirmedState = &v
	}
	return s
}

// IsCurrent reports whether this snapshot is the condition's live branch.
func (s *ConditionSnapshot) IsCurrent() bool {
	return s.BranchID == nil
}

// setTwoStateVariable implements spec.md §4.2 "Setting a TwoStateVariable
// on a snapshot": render the new text, propagate to the live node if this
// is the current branch, then notify onChange ("value_changed").
func (s *ConditionSnapshot) setTwoStateVariable(target *TwoStateVariableValue, def TwoStateVariableDef, b bool, propagate func(bool), onChange func(TwoStateVariableValue)) {
	*target = def.Render(b)
	if s.IsCurrent() && propagate != nil {
		propagate(b)
	}
	if onChange != nil {
		onChange(*target)
	}
}

// SetAcked implements `_setAckedState`: BadConditionBranchAlreadyAcked if
// already acknowledged, otherwise applies the TwoStateVariable update and
// returns Good.
func (s *ConditionSnapshot) SetAcked(def TwoStateVariableDef, propagate func(bool), onChange func(TwoStateVariableValue)) ua.StatusCode {
	if s.AckedState.ID {
		return ua.StatusBadConditionBranchAlreadyAcked
	}
	s.setTwoStateVariable(&s.AckedState, def, true, propagate, onChange)
	return ua.StatusOK
}

// SetConfirmed applies the TwoStateVariable update to ConfirmedState,
// initializing it if the condition did not previously carry one.
func (s *ConditionSnapshot) SetConfirmed(def TwoStateVariableDef, b bool, propagate func(bool), onChange func(TwoStateVariableValue)) {
	if s.ConfirmedState == nil {
		s.ConfirmedState = &TwoStateVariableValue{}
	}
	s.setTwoStateVariable(s.ConfirmedState, def, b, propagate, onChange)
}
