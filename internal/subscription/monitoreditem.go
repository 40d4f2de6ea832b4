package subscription

import (
	"sync/atomic"

	"github.com/gopcua/opcua/ua"
)

// MonitoredItemNotification is a single data-change sample produced by a
// value-monitoring monitored item.
type MonitoredItemNotification struct {
	ClientHandle uint32
	Value        *ua.DataValue
}

func (MonitoredItemNotification) isMonitoredItemNotificationElement() {}

// EventFieldList is a single event sample produced by an event-monitoring
// monitored item.
type EventFieldList struct {
	ClientHandle uint32
	EventFields  []*ua.Variant
}

func (EventFieldList) isMonitoredItemNotificationElement() {}

// MonitoredItemNotificationElement is implemented by MonitoredItemNotification
// and EventFieldList, the two concrete notification kinds a MonitoredItem's
// ExtractNotifications can produce (spec.md §6). Consumers partition on
// the concrete type, never on a discriminator field.
type MonitoredItemNotificationElement interface {
	isMonitoredItemNotificationElement()
}

// MonitoredItem is the external contract the subscription depends on
// (spec.md C4, §6). The sampling/event-delivery internals of a monitored
// item are owned entirely outside this package.
type MonitoredItem interface {
	MonitoredItemID() uint32
	ClientHandle() uint32
	MonitoringMode() ua.MonitoringMode
	SamplingInterval() float64
	QueueSize() uint32

	HasNotifications() bool
	ExtractNotifications() []MonitoredItemNotificationElement

	SetMonitoringMode(mode ua.MonitoringMode)
	Terminate()
	Dispose()
}

// MonitoredItemIDAllocator hands out globally unique monitored item IDs
// across every subscription one Manager owns (spec.md: "assign a fresh
// globally unique monitored-item id").
type MonitoredItemIDAllocator struct {
	next atomic.Uint32
}

// NewMonitoredItemIDAllocator creates an allocator starting at 1.
func NewMonitoredItemIDAllocator() *MonitoredItemIDAllocator {
	a := &MonitoredItemIDAllocator{}
	a.next.Store(1)
	return a
}

// Next returns a fresh, never-reused monitored item ID.
func (a *MonitoredItemIDAllocator) Next() uint32 {
	return a.next.Add(1) - 1
}
