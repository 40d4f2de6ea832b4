package condition

import (
	"time"

	"github.com/gopcua/opcua/ua"
)

// AuditEventKind names the three audit event types AcknowledgeableCondition
// emits, using the OPC UA nodeset names bit-exact (spec.md §6).
type AuditEventKind int

const (
	AuditConditionAcknowledgeEventType AuditEventKind = iota
	AuditConditionConfirmEventType
	AuditConditionCommentEventType
)

func (k AuditEventKind) String() string {
	switch k {
	case AuditConditionAcknowledgeEventType:
		return "AuditConditionAcknowledgeEventType"
	case AuditConditionConfirmEventType:
		return "AuditConditionConfirmEventType"
	case AuditConditionCommentEventType:
		return "AuditConditionCommentEventType"
	default:
		return "AuditEventUnknown"
	}
}

// AuditEvent is the common shape of every audit event AcknowledgeableCondition
// raises (spec.md §6: "eventId, actionTimeStamp, status, comment; optional
// server/client/user/method/input fields").
type AuditEvent struct {
	Kind            AuditEventKind
	EventID         []byte
	ActionTimestamp time.Time
	Status          ua.StatusCode
	Comment         ua.LocalizedText
	Message         ua.LocalizedText

	ServerID     string
	ClientUserID string
	MethodID     *ua.NodeID
	InputArgs    []*ua.Variant
}

// AuditSink receives every audit event a Condition raises. Wire-level
// event delivery to the address space is out of scope (spec.md §1); this
// is the seam a server implementation hangs its own event notifier on.
type AuditSink interface {
	Emit(AuditEvent)
}

// NopAuditSink discards every audit event; useful in tests and as a
// zero-value-safe default.
type NopAuditSink struct{}

func (NopAuditSink) Emit(AuditEvent) {}
