package condition

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/gopcua/opcua/ua"

	"github.com/nexus-edge/opcua-subscription-engine/internal/domain"
)

// Clock abstracts wall-clock time for audit event timestamps, mirroring
// subscription.Clock so tests can drive deterministic actionTimeStamps
// without this package depending on the subscription package.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the production Clock backed by time.Now.
var RealClock Clock = realClock{}

// LiveNodeSink receives value_changed notifications when a TwoStateVariable
// on the condition's *current* branch changes (spec.md §4.2 step 3: "If the
// snapshot is on the current branch, propagate b to the live node").
type LiveNodeSink interface {
	AckedStateChanged(b bool)
	ConfirmedStateChanged(b bool)
}

// Handlers are the optional event callbacks for acknowledge/confirm
// transitions (spec.md §4.2 steps 7 and 5: "emit acknowledged(...)",
// "emit confirmed(...)").
type Handlers struct {
	Acknowledged func(eventID []byte, comment ua.LocalizedText, branch *ConditionSnapshot)
	Confirmed    func(eventID []byte, comment ua.LocalizedText, branch *ConditionSnapshot)
	// NewBranchState fires whenever raiseNewBranchState would publish the
	// branch to the event pipeline.
	NewBranchState func(branch *ConditionSnapshot)
}

// AcknowledgeableCondition is the acknowledge/confirm state overlay of
// spec.md C9: a Condition node carrying mandatory AckedState and optional
// ConfirmedState TwoStateVariables, a current branch, and zero or more
// historical branches awaiting acknowledgement.
//
// Grounded on the teacher's internal/adapter/opcua/subscription.go
// Subscription type: a single mutex-guarded aggregate, event callbacks
// fired synchronously from the transition site, generalized from
// publishing-cycle state to condition branch state per spec.md §9's
// "variant-arm, not open-class-surgery" resolution of the source's
// dynamic method attachment.
type AcknowledgeableCondition struct {
	mu sync.Mutex

	nodeID *ua.NodeID

	ackedDef     TwoStateVariableDef
	hasConfirmed bool
	confirmedDef TwoStateVariableDef

	current  *ConditionSnapshot
	branches map[string]*ConditionSnapshot

	eventIDGen func() []byte
	clock      Clock
	sink       LiveNodeSink
	audit      AuditSink

	handlers Handlers
}

// NewAcknowledgeableCondition instantiates a Condition with its mandatory
// AckedState TwoStateVariable and, if hasConfirmed, an optional
// ConfirmedState (spec.md §4.2 "Instantiation").
func NewAcknowledgeableCondition(nodeID *ua.NodeID, ackedDef TwoStateVariableDef, hasConfirmed bool, confirmedDef TwoStateVariableDef, eventIDGen func() []byte, clock Clock, sink LiveNodeSink, audit AuditSink) *AcknowledgeableCondition {
	if clock == nil {
		clock = RealClock
	}
	if audit == nil {
		audit = NopAuditSink{}
	}
	c := &AcknowledgeableCondition{
		nodeID:       nodeID,
		ackedDef:     ackedDef,
		hasConfirmed: hasConfirmed,
		confirmedDef: confirmedDef,
		branches:     make(map[string]*ConditionSnapshot),
		eventIDGen:   eventIDGen,
		clock:        clock,
		sink:         sink,
		audit:        audit,
	}
	c.current = NewConditionSnapshot(nil, c.nextEventID(), ackedDef, hasConfirmed, confirmedDef)
	return c
}

// SetHandlers installs the event callbacks.
func (c *AcknowledgeableCondition) SetHandlers(h Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

// NodeID returns the condition's node identifier.
func (c *AcknowledgeableCondition) NodeID() *ua.NodeID {
	return c.nodeID
}

// Current returns the condition's live branch snapshot.
func (c *AcknowledgeableCondition) Current() *ConditionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *AcknowledgeableCondition) nextEventID() []byte {
	if c.eventIDGen != nil {
		return c.eventIDGen()
	}
	return []byte(time.Now().String())
}

func branchKey(eventID []byte) string {
	return hex.EncodeToString(eventID)
}

// Branch captures the current branch's state into a new historical
// snapshot with a fresh eventId, registers it, and returns it. Used when
// the condition transitions (e.g. activates) while a prior unacknowledged
// state must remain addressable.
func (c *AcknowledgeableCondition) Branch() *ConditionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	eventID := c.nextEventID()
	branch := &ConditionSnapshot{
		BranchID:   c.nodeID,
		EventID:    eventID,
		Comment:    c.current.Comment,
		Retain:     c.current.Retain,
		AckedState: c.current.AckedState,
	}
	if c.current.ConfirmedState != nil {
		confirmed := *c.current.ConfirmedState
		branch.ConfirmedState = &confirmed
	}
	c.branches[branchKey(eventID)] = branch
	return branch
}

// resolveBranch finds the branch addressed by eventID: the current branch
// or a historical one. Caller holds c.mu.
func (c *AcknowledgeableCondition) resolveBranch(eventID []byte) (*ConditionSnapshot, error) {
	if branchKey(eventID) == branchKey(c.current.EventID) {
		return c.current, nil
	}
	if b, ok := c.branches[branchKey(eventID)]; ok {
		return b, nil
	}
	return nil, domain.ErrConditionBranchNotFound
}

// acknowledgeBranchLocked implements `_acknowledge_branch` (spec.md §4.2).
// Caller holds c.mu.
func (c *AcknowledgeableCondition) acknowledgeBranchLocked(branch *ConditionSnapshot, comment ua.LocalizedText, message string) ua.StatusCode {
	if c.hasConfirmed {
		branch.SetConfirmed(c.confirmedDef, false, c.propagateConfirmed, c.notifyValueChanged)
		branch.Retain = true
	} else {
		branch.Retain = false
	}

	status := branch.SetAcked(c.ackedDef, c.propagateAcked, c.notifyValueChanged)
	if status != ua.StatusOK {
		return status
	}

	branch.Comment = comment
	c.raiseNewBranchStateLocked(branch)
	c.audit.Emit(AuditEvent{
		Kind:            AuditConditionAcknowledgeEventType,
		EventID:         branch.EventID,
		ActionTimestamp: c.clock.Now(),
		Status:          ua.StatusOK,
		Comment:         comment,
		Message:         ua.NewLocalizedText(message, "en"),
	})
	if c.handlers.Acknowledged != nil {
		c.handlers.Acknowledged(branch.EventID, comment, branch)
	}
	return ua.StatusOK
}

// confirmBranchLocked implements `_confirm_branch` (spec.md §4.2).
// Caller holds c.mu.
//
// spec.md §9 Open Question 2 flags that the source reassigns
// eventId := branch.getEventId() immediately after accepting it as a
// parameter, making the subsequent equality assertion trivially true.
// This function takes no eventID parameter and makes no such comparison:
// every audit event and callback it raises carries branch.EventID.
func (c *AcknowledgeableCondition) confirmBranchLocked(branch *ConditionSnapshot, comment ua.LocalizedText, message string) {
	branch.SetConfirmed(c.confirmedDef, true, c.propagateConfirmed, c.notifyValueChanged)
	branch.Retain = false
	branch.Comment = comment

	c.audit.Emit(AuditEvent{
		Kind:            AuditConditionCommentEventType,
		EventID:         branch.EventID,
		ActionTimestamp: c.clock.Now(),
		Status:          ua.StatusOK,
		Comment:         comment,
		Message:         ua.NewLocalizedText(message, "en"),
	})
	c.audit.Emit(AuditEvent{
		Kind:            AuditConditionConfirmEventType,
		EventID:         branch.EventID,
		ActionTimestamp: c.clock.Now(),
		Status:          ua.StatusOK,
		Comment:         comment,
		Message:         ua.NewLocalizedText(message, "en"),
	})

	c.raiseNewBranchStateLocked(branch)
	if c.handlers.Confirmed != nil {
		c.handlers.Confirmed(branch.EventID, comment, branch)
	}
}

func (c *AcknowledgeableCondition) raiseNewBranchStateLocked(branch *ConditionSnapshot) {
	if c.handlers.NewBranchState != nil {
		c.handlers.NewBranchState(branch)
	}
}

func (c *AcknowledgeableCondition) propagateAcked(b bool) {
	if c.sink != nil {
		c.sink.AckedStateChanged(b)
	}
}

func (c *AcknowledgeableCondition) propagateConfirmed(b bool) {
	if c.sink != nil {
		c.sink.ConfirmedStateChanged(b)
	}
}

func (c *AcknowledgeableCondition) notifyValueChanged(TwoStateVariableValue) {
	// Hook point for a "value_changed" event bus; this engine does not
	// own wire-level event delivery (spec.md §1 out of scope), so nothing
	// beyond the LiveNodeSink propagation above is required here.
}

// Acknowledge is the client-invoked method handler (spec.md §4.2 "Method
// handlers"). It resolves the branch by eventID and runs the acknowledge
// protocol with message "Method/Acknowledged", surfacing whatever status
// the protocol produces (Good, or BadConditionBranchAlreadyAcked on a
// repeat acknowledgement — spec.md §8 Scenario S5).
func (c *AcknowledgeableCondition) Acknowledge(eventID []byte, comment ua.LocalizedText) ua.StatusCode {
	c.mu.Lock()
	defer c.mu.Unlock()

	branch, err := c.resolveBranch(eventID)
	if err != nil {
		return ua.StatusBadEventIDUnknown
	}
	return c.acknowledgeBranchLocked(branch, comment, "Method/Acknowledged")
}

// Confirm is the client-invoked method handler (spec.md §4.2). Returns
// BadConditionBranchAlreadyConfirmed if the branch's ConfirmedState is
// already true (spec.md §8 Scenario S6).
func (c *AcknowledgeableCondition) Confirm(eventID []byte, comment ua.LocalizedText) ua.StatusCode {
	c.mu.Lock()
	defer c.mu.Unlock()

	branch, err := c.resolveBranch(eventID)
	if err != nil {
		return ua.StatusBadEventIDUnknown
	}
	if branch.ConfirmedState != nil && branch.ConfirmedState.ID {
		return ua.StatusBadConditionBranchAlreadyConfirmed
	}
	c.confirmBranchLocked(branch, comment, "Method/Confirm")
	return ua.StatusOK
}

// AutoConfirmBranch is the server-initiated confirm helper (spec.md §4.2
// "Server-initiated helpers"). Precondition: branch.ConfirmedState is
// false; callers must check this themselves, matching the source's
// unchecked precondition style.
func (c *AcknowledgeableCondition) AutoConfirmBranch(branch *ConditionSnapshot, comment ua.LocalizedText) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmBranchLocked(branch, comment, "Server/Confirm")
}

// AcknowledgeAndAutoConfirmBranch runs the acknowledge protocol followed
// immediately by the auto-confirm protocol (spec.md §4.2).
func (c *AcknowledgeableCondition) AcknowledgeAndAutoConfirmBranch(branch *ConditionSnapshot, comment ua.LocalizedText) ua.StatusCode {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.acknowledgeBranchLocked(branch, comment, "Server/Acknowledge")
	if status != ua.StatusOK {
		return status
	}
	c.confirmBranchLocked(branch, comment, "Server/Confirm")
	return ua.StatusOK
}
