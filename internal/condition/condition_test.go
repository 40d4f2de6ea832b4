package condition_test

import (
	"testing"
	"time"

	"github.com/gopcua/opcua/ua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-edge/opcua-subscription-engine/internal/condition"
)

type recordingSink struct {
	events []condition.AuditEvent
}

func (s *recordingSink) Emit(e condition.AuditEvent) {
	s.events = append(s.events, e)
}

func (s *recordingSink) countOf(kind condition.AuditEventKind) int {
	n := 0
	for _, e := range s.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type fakeLiveNodeSink struct {
	acked, confirmed []bool
}

func (s *fakeLiveNodeSink) AckedStateChanged(b bool)     { s.acked = append(s.acked, b) }
func (s *fakeLiveNodeSink) ConfirmedStateChanged(b bool) { s.confirmed = append(s.confirmed, b) }

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

func ackedDef() condition.TwoStateVariableDef {
	return condition.TwoStateVariableDef{
		TrueState:  ua.NewLocalizedText("Acknowledged", "en"),
		FalseState: ua.NewLocalizedText("Unacknowledged", "en"),
	}
}

func confirmedDef() condition.TwoStateVariableDef {
	return condition.TwoStateVariableDef{
		TrueState:  ua.NewLocalizedText("Confirmed", "en"),
		FalseState: ua.NewLocalizedText("Unconfirmed", "en"),
	}
}

func newTestCondition(t *testing.T, hasConfirmed bool) (*condition.AcknowledgeableCondition, *recordingSink, *fakeLiveNodeSink) {
	t.Helper()
	sink := &recordingSink{}
	live := &fakeLiveNodeSink{}
	eventID := []byte("event-1")
	c := condition.NewAcknowledgeableCondition(
		ua.NewStringNodeID(1, "alarm-1"),
		ackedDef(),
		hasConfirmed,
		confirmedDef(),
		func() []byte { return eventID },
		fakeClock{now: time.Unix(1000, 0)},
		live,
		sink,
	)
	return c, sink, live
}

// TestAcknowledgeAlreadyAcked is Scenario S5: acknowledging a branch twice
// returns Good then BadConditionBranchAlreadyAcked, and only one
// AuditConditionAcknowledgeEventType is ever emitted.
func TestAcknowledgeAlreadyAcked(t *testing.T) {
	c, sink, live := newTestCondition(t, false)
	eventID := c.Current().EventID

	status := c.Acknowledge(eventID, ua.NewLocalizedText("first", "en"))
	require.Equal(t, ua.StatusOK, status)
	assert.True(t, c.Current().AckedState.ID)
	assert.Equal(t, []bool{true}, live.acked)

	status = c.Acknowledge(eventID, ua.NewLocalizedText("second", "en"))
	assert.Equal(t, ua.StatusBadConditionBranchAlreadyAcked, status)

	assert.Equal(t, 1, sink.countOf(condition.AuditConditionAcknowledgeEventType))
	assert.Equal(t, []bool{true}, live.acked, "second acknowledge must not re-propagate")
}

// TestAcknowledgeUnknownEventID covers addressing a branch that does not
// exist.
func TestAcknowledgeUnknownEventID(t *testing.T) {
	c, _, _ := newTestCondition(t, false)
	status := c.Acknowledge([]byte("bogus"), ua.NewLocalizedText("x", "en"))
	assert.Equal(t, ua.StatusBadEventIDUnknown, status)
}

// TestConfirmFlow is Scenario S6: a condition with ConfirmedState.
// Acknowledge sets confirmedState=false/retain=true/ackedState=true;
// Confirm sets confirmedState=true/retain=false and emits
// AuditConditionCommentEventType then AuditConditionConfirmEventType;
// a second Confirm returns BadConditionBranchAlreadyConfirmed.
func TestConfirmFlow(t *testing.T) {
	c, sink, live := newTestCondition(t, true)
	eventID := c.Current().EventID

	status := c.Acknowledge(eventID, ua.NewLocalizedText("ack", "en"))
	require.Equal(t, ua.StatusOK, status)

	branch := c.Current()
	require.NotNil(t, branch.ConfirmedState)
	assert.False(t, branch.ConfirmedState.ID)
	assert.True(t, branch.Retain)
	assert.True(t, branch.AckedState.ID)

	status = c.Confirm(eventID, ua.NewLocalizedText("confirmed", "en"))
	require.Equal(t, ua.StatusOK, status)

	branch = c.Current()
	assert.True(t, branch.ConfirmedState.ID)
	assert.False(t, branch.Retain)
	assert.Equal(t, []bool{false, true}, live.confirmed)

	require.Len(t, sink.events, 3)
	assert.Equal(t, condition.AuditConditionAcknowledgeEventType, sink.events[0].Kind)
	assert.Equal(t, condition.AuditConditionCommentEventType, sink.events[1].Kind)
	assert.Equal(t, condition.AuditConditionConfirmEventType, sink.events[2].Kind)

	status = c.Confirm(eventID, ua.NewLocalizedText("again", "en"))
	assert.Equal(t, ua.StatusBadConditionBranchAlreadyConfirmed, status)
}

// TestAcknowledgeAndAutoConfirmBranch covers the server-initiated helper
// that runs both protocols against a branch in one call.
func TestAcknowledgeAndAutoConfirmBranch(t *testing.T) {
	c, sink, _ := newTestCondition(t, true)
	branch := c.Current()

	status := c.AcknowledgeAndAutoConfirmBranch(branch, ua.NewLocalizedText("auto", "en"))
	require.Equal(t, ua.StatusOK, status)

	assert.True(t, branch.AckedState.ID)
	assert.True(t, branch.ConfirmedState.ID)
	assert.False(t, branch.Retain)
	assert.Equal(t, 1, sink.countOf(condition.AuditConditionAcknowledgeEventType))
	assert.Equal(t, 1, sink.countOf(condition.AuditConditionConfirmEventType))
}

// TestWithoutConfirmedState covers a condition instantiated with
// hasConfirmed=false: acknowledging sets retain=false and never
// initializes ConfirmedState.
func TestWithoutConfirmedState(t *testing.T) {
	c, _, _ := newTestCondition(t, false)
	eventID := c.Current().EventID

	status := c.Acknowledge(eventID, ua.NewLocalizedText("ack", "en"))
	require.Equal(t, ua.StatusOK, status)

	branch := c.Current()
	assert.False(t, branch.Retain)
	assert.Nil(t, branch.ConfirmedState)
}
