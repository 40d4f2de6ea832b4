package opcua

import (
	"sync"

	"github.com/gopcua/opcua/ua"

	"github.com/nexus-edge/opcua-subscription-engine/internal/subscription"
)

// SampledItem is a subscription.MonitoredItem backed by an in-memory
// ring-style queue, filled either by the SamplingScheduler (data-change
// monitored items) or by an external event producer calling PushEvent
// directly. Grounded on the teacher's devicePoller
// (internal/service/polling.go): a small mutex-guarded struct carrying
// its own last-value/stats state, generalized from "last poll result per
// device" to "buffered notifications per monitored item".
type SampledItem struct {
	mu sync.Mutex

	id               uint32
	clientHandle     uint32
	nodeID           *ua.NodeID
	attributeID      ua.AttributeID
	mode             ua.MonitoringMode
	samplingInterval float64
	queueSize        uint32
	discardOldest    bool

	buffer []subscription.MonitoredItemNotificationElement

	terminated bool
	disposed   bool
}

// NewSampledItem constructs a SampledItem from a validated
// createMonitoredItem request plus the id/revised parameters
// subscription.CreateMonitoredItem computed for it.
func NewSampledItem(req subscription.CreateMonitoredItemRequest, id uint32, revisedSamplingInterval float64, revisedQueueSize uint32) *SampledItem {
	return &SampledItem{
		id:               id,
		clientHandle:     req.ClientHandle,
		nodeID:           req.NodeID,
		attributeID:      req.AttributeID,
		mode:             req.MonitoringMode,
		samplingInterval: revisedSamplingInterval,
		queueSize:        revisedQueueSize,
		discardOldest:    req.DiscardOldest,
	}
}

func (s *SampledItem) MonitoredItemID() uint32       { return s.id }
func (s *SampledItem) ClientHandle() uint32          { return s.clientHandle }
func (s *SampledItem) MonitoringMode() ua.MonitoringMode { return s.mode }
func (s *SampledItem) SamplingInterval() float64     { return s.samplingInterval }
func (s *SampledItem) QueueSize() uint32             { return s.queueSize }
func (s *SampledItem) NodeID() *ua.NodeID            { return s.nodeID }
func (s *SampledItem) AttributeID() ua.AttributeID   { return s.attributeID }

// SetMonitoringMode implements subscription.MonitoredItem. Switching to
// Disabled does not clear the buffer: notifications already queued are
// still returned by ExtractNotifications; only new samples are dropped
// while the mode is neither Reporting nor Sampling.
func (s *SampledItem) SetMonitoringMode(mode ua.MonitoringMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// PushDataChange enqueues a sampled value, applying the queue's
// discard-oldest/discard-newest overflow policy once QueueSize is
// reached. (subscription.RetransmissionQueue has only the first of the
// two: its DiscardOld drops the oldest entries.)
func (s *SampledItem) PushDataChange(value *ua.DataValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ua.MonitoringModeReporting && s.mode != ua.MonitoringModeSampling {
		return
	}
	s.enqueueLocked(subscription.MonitoredItemNotification{ClientHandle: s.clientHandle, Value: value})
}

// PushEvent enqueues an event sample.
func (s *SampledItem) PushEvent(fields []*ua.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ua.MonitoringModeReporting && s.mode != ua.MonitoringModeSampling {
		return
	}
	s.enqueueLocked(subscription.EventFieldList{ClientHandle: s.clientHandle, EventFields: fields})
}

func (s *SampledItem) enqueueLocked(elem subscription.MonitoredItemNotificationElement) {
	max := int(s.queueSize)
	if max <= 0 {
		max = 1
	}
	if len(s.buffer) >= max {
		if s.discardOldest {
			s.buffer = s.buffer[1:]
		} else {
			return
		}
	}
	s.buffer = append(s.buffer, elem)
}

// HasNotifications implements subscription.MonitoredItem.
func (s *SampledItem) HasNotifications() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer) > 0
}

// ExtractNotifications drains and returns the buffered notifications.
func (s *SampledItem) ExtractNotifications() []subscription.MonitoredItemNotificationElement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buffer
	s.buffer = nil
	return out
}

func (s *SampledItem) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminated = true
}

func (s *SampledItem) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.buffer = nil
}

func (s *SampledItem) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

func (s *SampledItem) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
