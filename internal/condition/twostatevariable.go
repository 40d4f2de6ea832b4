// Package condition implements the Acknowledgeable Condition / Alarm
// branch state overlay (spec.md §4.2, C7-C9): two-state variables,
// condition branch snapshots, and the acknowledge/confirm protocol with
// its audit event emission.
//
// Grounded on the teacher's internal/adapter/opcua/subscription.go
// notion of a mutable, mutex-guarded aggregate raising events
// synchronously from the transition site, generalized from a
// subscription's data-change delivery to a condition's branch state
// machine.
package condition

import "github.com/gopcua/opcua/ua"

// TwoStateVariableDef names the localized labels a boolean condition
// variable displays (spec.md C7): true renders TrueState, false renders
// FalseState.
type TwoStateVariableDef struct {
	TrueState  ua.LocalizedText
	FalseState ua.LocalizedText
}

// TwoStateVariableValue is the (id, rendered text) pair a
// ConditionSnapshot stores for one TwoStateVariable (spec.md §3
// invariant: "the snapshot stores both V.id (bool) and V (localized
// text...)").
type TwoStateVariableValue struct {
	ID    bool
	Value ua.LocalizedText
}

// Render computes the TwoStateVariableValue for id under def, per
// spec.md §4.2 "Setting a TwoStateVariable on a snapshot" steps 1-2.
func (def TwoStateVariableDef) Render(id bool) TwoStateVariableValue {
	text := def.FalseState
	if id {
		text = def.TrueState
	}
	return TwoStateVariableValue{ID: id, Value: text}
}
