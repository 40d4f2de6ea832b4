// Package subscriptiontest provides deterministic test doubles for the
// subscription package's external collaborators (Clock, PublishEngine,
// MonitoredItem), grounded on the teacher's own test doubles pattern in
// internal/adapter/opcua (table-driven fakes rather than a mocking
// framework).
package subscriptiontest

import (
	"context"
	"sync"
	"time"

	"github.com/gopcua/opcua/ua"

	"github.com/nexus-edge/opcua-subscription-engine/internal/subscription"
)

// FakeClock is a manually-advanced subscription.Clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock starting at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ManualScheduler is a subscription.Scheduler whose only advancement is an
// explicit call to Fire, letting tests drive Subscription.Tick directly
// without racing a goroutine.
type ManualScheduler struct {
	mu       sync.Mutex
	interval time.Duration
	tick     func(time.Time)
	stopped  bool
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) Start(_ context.Context, interval time.Duration, tick func(time.Time)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = interval
	m.tick = tick
}

func (m *ManualScheduler) Reschedule() {}

func (m *ManualScheduler) SetInterval(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = interval
}

func (m *ManualScheduler) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// Fire invokes the installed tick callback with now, as if the interval
// had just elapsed.
func (m *ManualScheduler) Fire(now time.Time) {
	m.mu.Lock()
	tick := m.tick
	m.mu.Unlock()
	if tick != nil {
		tick(now)
	}
}

// Stopped reports whether Stop has been called.
func (m *ManualScheduler) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// FakePublishEngine is a subscription.PublishEngine recording every call
// for assertions.
type FakePublishEngine struct {
	mu sync.Mutex

	PendingRequests int
	AllowSend       bool

	SentMessages []subscription.PublishNotification
	KeepAlives   []uint32
	Closed       []uint32
}

func NewFakePublishEngine() *FakePublishEngine {
	return &FakePublishEngine{AllowSend: true}
}

func (f *FakePublishEngine) PendingPublishRequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PendingRequests
}

func (f *FakePublishEngine) SendNotificationMessage(n subscription.PublishNotification, initial bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.AllowSend {
		return false
	}
	f.SentMessages = append(f.SentMessages, n)
	if f.PendingRequests > 0 {
		f.PendingRequests--
	}
	return true
}

func (f *FakePublishEngine) SendKeepAliveResponse(subscriptionID uint32, futureSeq uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.AllowSend {
		return false
	}
	f.KeepAlives = append(f.KeepAlives, futureSeq)
	if f.PendingRequests > 0 {
		f.PendingRequests--
	}
	return true
}

func (f *FakePublishEngine) OnCloseSubscription(subscriptionID uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = append(f.Closed, subscriptionID)
}

// AddRequest increments the pending publish request count, simulating an
// incoming PublishRequest from the client.
func (f *FakePublishEngine) AddRequest() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PendingRequests++
}

// FakeMonitoredItem is a subscription.MonitoredItem double whose
// notification queue is populated directly by test code.
type FakeMonitoredItem struct {
	mu sync.Mutex

	id               uint32
	clientHandle     uint32
	mode             ua.MonitoringMode
	samplingInterval float64
	queueSize        uint32

	queue []subscription.MonitoredItemNotificationElement

	terminated bool
	disposed   bool
}

func NewFakeMonitoredItem(id, clientHandle uint32) *FakeMonitoredItem {
	return &FakeMonitoredItem{
		id:           id,
		clientHandle: clientHandle,
		mode:         ua.MonitoringModeReporting,
		queueSize:    1,
	}
}

func (f *FakeMonitoredItem) MonitoredItemID() uint32       { return f.id }
func (f *FakeMonitoredItem) ClientHandle() uint32          { return f.clientHandle }
func (f *FakeMonitoredItem) MonitoringMode() ua.MonitoringMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}
func (f *FakeMonitoredItem) SamplingInterval() float64 { return f.samplingInterval }
func (f *FakeMonitoredItem) QueueSize() uint32         { return f.queueSize }

func (f *FakeMonitoredItem) HasNotifications() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) > 0
}

func (f *FakeMonitoredItem) ExtractNotifications() []subscription.MonitoredItemNotificationElement {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.queue
	f.queue = nil
	return out
}

func (f *FakeMonitoredItem) SetMonitoringMode(mode ua.MonitoringMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = mode
}

func (f *FakeMonitoredItem) Terminate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = true
}

func (f *FakeMonitoredItem) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposed = true
}

// PushDataChange enqueues a data-change sample for the next harvest.
func (f *FakeMonitoredItem) PushDataChange(value *ua.DataValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, subscription.MonitoredItemNotification{
		ClientHandle: f.clientHandle,
		Value:        value,
	})
}

// PushEvent enqueues an event sample for the next harvest.
func (f *FakeMonitoredItem) PushEvent(fields []*ua.Variant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, subscription.EventFieldList{
		ClientHandle: f.clientHandle,
		EventFields:  fields,
	})
}

// Terminated reports whether Terminate was called.
func (f *FakeMonitoredItem) Terminated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

// Disposed reports whether Dispose was called.
func (f *FakeMonitoredItem) Disposed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disposed
}
