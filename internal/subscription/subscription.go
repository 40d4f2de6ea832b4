package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/gopcua/opcua/ua"
	"github.com/rs/zerolog"

	"github.com/nexus-edge/opcua-subscription-engine/internal/metrics"
)

// Subscription is the server-side publishing state machine of spec.md C5:
// it owns a set of MonitoredItems, harvests their pending notifications on
// a fixed tick, and drives the six-state lifecycle (Closed, Creating,
// Normal, Late, KeepAlive, Terminated) that decides whether a tick sends a
// NotificationMessage, a keep-alive, or neither.
//
// Grounded on the teacher's internal/adapter/opcua/subscription.go
// Subscription/SubscriptionManager pair: same mutex-guarded struct shape,
// same "one goroutine drives state, callers only read/enqueue" discipline,
// generalized from a client-side data-change consumer into the full
// server-side publishing engine.
type Subscription struct {
	mu sync.Mutex

	id        uint32
	sessionID *ua.NodeID
	priority  uint8

	publishingInterval     time.Duration
	maxKeepAliveCount      uint32
	lifeTimeCount          uint32
	maxNotificationsPerPub uint32

	publishingEnabled bool
	messageSent       bool
	keepAliveCounter  uint32
	lifeTimeCounter   uint32
	publishIntervalCount uint64

	state State
	aborted bool

	// pending holds one slice per not-yet-sent NotificationMessage; each
	// inner slice carries the 1-2 NotificationData objects (data-change
	// and/or event) spec.md C2 allows in a single message.
	pending [][]NotificationData
	sent    *RetransmissionQueue

	monitoredItems map[uint32]MonitoredItem

	seq      *SequenceNumberGenerator
	engine   PublishEngine
	clock    Clock
	scheduler Scheduler

	logger  zerolog.Logger
	metrics *metrics.Registry

	handlers Handlers
}

// NewSubscription constructs a Subscription in StateCreating, with its
// parameters already clamped per spec.md §4.1. The subscription does not
// begin ticking until Start is called.
func NewSubscription(id uint32, params CreateParams, engine PublishEngine, seq *SequenceNumberGenerator, clock Clock, scheduler Scheduler, registry *metrics.Registry, logger zerolog.Logger) *Subscription {
	pi, mka, ltc, maxNotif := adjustedParams(
		params.RequestedPublishingInterval,
		params.RequestedMaxKeepAliveCount,
		params.RequestedLifetimeCount,
		params.RequestedMaxNotificationsPerPublish,
	)

	s := &Subscription{
		id:                     id,
		sessionID:              params.SessionID,
		priority:               params.Priority,
		publishingInterval:     pi,
		maxKeepAliveCount:      mka,
		lifeTimeCount:          ltc,
		maxNotificationsPerPub: maxNotif,
		publishingEnabled:      params.PublishingEnabled,
		state:                  StateCreating,
		sent:                   NewRetransmissionQueue(params.MaxRetransmissionQueue),
		monitoredItems:         make(map[uint32]MonitoredItem),
		seq:                    seq,
		engine:                 engine,
		clock:                  clock,
		scheduler:              scheduler,
		metrics:                registry,
		logger: logger.With().
			Str("component", "subscription").
			Uint32("subscription_id", id).
			Logger(),
	}
	if s.clock == nil {
		s.clock = RealClock
	}
	if registry != nil {
		registry.IncSubscriptionsCreated()
	}
	return s
}

// ID returns the subscription's identifier.
func (s *Subscription) ID() uint32 {
	return s.id
}

// Start begins the tick loop. ctx cancellation stops the scheduler but
// does not by itself transition the subscription to Terminated; callers
// should call Terminate explicitly during shutdown.
func (s *Subscription) Start(ctx context.Context) {
	s.scheduler.Start(ctx, s.publishingInterval, s.Tick)
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetHandlers installs the event callbacks; must be called before Start.
func (s *Subscription) SetHandlers(h Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = h
}

// Tick runs one publishing cycle, following spec.md §4.1's seven-step
// procedure exactly: discard-old pass, counter increment, lifetime
// expiration check, LATE transition on unavailable requests, then the
// send/keep-alive decision, finally an immediate reschedule if more
// pending material remains after a NORMAL-state send.
func (s *Subscription) Tick(now time.Time) {
	start := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Step 1.
	if s.state == StateClosed {
		return
	}

	// Step 2.
	s.sent.DiscardOld()

	// Step 3.
	s.publishIntervalCount++
	s.lifeTimeCounter++

	// Step 4.
	if s.lifeTimeCounter >= s.lifeTimeCount {
		s.expireLocked()
		return
	}

	if hook, ok := s.engine.(OnTickHook); ok {
		hook.OnTick()
	}

	requestAvailable := s.engine.PendingPublishRequestCount() > 0
	hasMaterial := len(s.pending) > 0 || s.hasMonitoredItemNotificationsLocked()

	// Step 5.
	if !requestAvailable && hasMaterial {
		s.state = StateLate
		s.observeCycleLocked(start)
		return
	}

	// Step 6.
	if requestAvailable {
		switch {
		case s.publishingEnabled && len(s.pending) > 0:
			s.sendOneLocked(now)
		case s.publishingEnabled && s.hasMonitoredItemNotificationsLocked():
			s.harvestLocked()
			if len(s.pending) > 0 {
				s.sendOneLocked(now)
			} else {
				s.keepAliveProcedureLocked(now)
			}
		default:
			s.keepAliveProcedureLocked(now)
		}
	}

	// Step 7.
	if len(s.pending) > 0 && s.state == StateNormal {
		s.scheduler.Reschedule()
	}

	s.observeCycleLocked(start)
}

// hasMonitoredItemNotificationsLocked reports whether any monitored item
// holds notifications, asking every item on each call; no cached flag is
// kept between calls. Caller holds s.mu.
func (s *Subscription) hasMonitoredItemNotificationsLocked() bool {
	return hasMonitoredItemNotificationsPending(s.monitoredItems)
}

func hasMonitoredItemNotificationsPending(items map[uint32]MonitoredItem) bool {
	for _, item := range items {
		if item.HasNotifications() {
			return true
		}
	}
	return false
}

func (s *Subscription) observeCycleLocked(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObservePublishCycle(s.clock.Now().Sub(start).Seconds())
	}
}

// keepAliveProcedureLocked implements spec.md §4.1's keep-alive procedure.
// Caller holds s.mu and has already established a publish request is
// available. On a successful send, messageSent is set, the subscription
// moves to KEEPALIVE, and both counters reset. On failure (no publish
// request actually consumed, e.g. a raced request count or an open
// circuit breaker) the subscription moves to LATE instead, leaving the
// counters untouched so the next tick re-attempts.
func (s *Subscription) keepAliveProcedureLocked(now time.Time) {
	s.keepAliveCounter++
	if s.keepAliveCounter < s.maxKeepAliveCount {
		return
	}
	if s.sendKeepAliveLocked() {
		s.messageSent = true
		s.state = StateKeepAlive
		s.resetCountersLocked()
		return
	}
	s.state = StateLate
}

// resetCountersLocked implements resetLifeTimeAndKeepAliveCounters().
func (s *Subscription) resetCountersLocked() {
	s.lifeTimeCounter = 0
	s.keepAliveCounter = 0
}

// harvestLocked pulls every monitored item's pending notifications into
// s.pending, splitting data-change entries and events into chunks of at
// most maxNotificationsPerPub, and regrouping them the way spec.md
// Scenario S4 requires: every data-change chunk but the last is sent
// alone; the last data-change chunk is merged with the first event chunk
// into a single combined NotificationData pair; every remaining event
// chunk after the first is sent alone. Caller holds s.mu.
func (s *Subscription) harvestLocked() {
	var dataChanges []MonitoredItemNotification
	var events []EventFieldList

	for _, item := range s.monitoredItems {
		if !item.HasNotifications() {
			continue
		}
		for _, elem := range item.ExtractNotifications() {
			switch v := elem.(type) {
			case MonitoredItemNotification:
				dataChanges = append(dataChanges, v)
			case EventFieldList:
				events = append(events, v)
			}
		}
	}

	if len(dataChanges) == 0 && len(events) == 0 {
		return
	}

	max := int(s.maxNotificationsPerPub)
	dcChunks := chunk(dataChanges, max)
	evChunks := chunk(events, max)

	emit := func(dc []MonitoredItemNotification, ev []EventFieldList) {
		var data []NotificationData
		if len(dc) > 0 {
			data = append(data, DataChangeNotification{MonitoredItems: dc})
		}
		if len(ev) > 0 {
			data = append(data, EventNotificationList{Events: ev})
		}
		if len(data) == 0 {
			return
		}
		for _, d := range data {
			if s.handlers.Notification != nil {
				s.handlers.Notification(d)
			}
		}
		s.pending = append(s.pending, data)
	}

	switch {
	case len(dcChunks) == 0:
		for _, c := range evChunks {
			emit(nil, c)
		}
	case len(evChunks) == 0:
		for _, c := range dcChunks {
			emit(c, nil)
		}
	default:
		for i := 0; i < len(dcChunks)-1; i++ {
			emit(dcChunks[i], nil)
		}
		emit(dcChunks[len(dcChunks)-1], evChunks[0])
		for i := 1; i < len(evChunks); i++ {
			emit(nil, evChunks[i])
		}
	}
}

// chunk splits items into groups of at most max, preserving order. max<=0
// means "unbounded": a single chunk containing everything.
func chunk[T any](items []T, max int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if max <= 0 {
		return [][]T{items}
	}
	var chunks [][]T
	for i := 0; i < len(items); i += max {
		end := i + max
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

// sendOneLocked dequeues exactly one pending NotificationData batch,
// wraps it in a sequenced NotificationMessage, hands it to the publish
// engine, and pushes it onto the retransmission queue. Caller holds s.mu.
func (s *Subscription) sendOneLocked(now time.Time) {
	initial := s.state == StateCreating

	data := s.pending[0]
	s.pending = s.pending[1:]

	msg := &NotificationMessage{
		SequenceNumber:   s.seq.Next(),
		PublishTime:      now,
		NotificationData: data,
	}
	s.sent.Push(msg)

	sent := s.engine.SendNotificationMessage(PublishNotification{
		SubscriptionID:    s.id,
		SequenceNumber:    msg.SequenceNumber,
		NotificationData:  msg.NotificationData,
		MoreNotifications: len(s.pending) > 0,
	}, initial)

	s.messageSent = true
	s.resetCountersLocked()
	if s.state != StateClosed {
		s.state = StateNormal
	}

	if sent && s.metrics != nil {
		s.metrics.IncNotificationsSent()
	}
	if s.handlers.NotificationMessage != nil {
		s.handlers.NotificationMessage(msg)
	}
}

// sendKeepAliveLocked sends a keep-alive publish response and reports
// whether the engine actually consumed a publish request to do so.
// Caller holds s.mu.
func (s *Subscription) sendKeepAliveLocked() bool {
	sent := s.engine.SendKeepAliveResponse(s.id, s.seq.Future())
	if sent && s.metrics != nil {
		s.metrics.IncKeepAlivesSent()
	}
	if sent && s.handlers.KeepAlive != nil {
		s.handlers.KeepAlive()
	}
	return sent
}

// expireLocked enqueues a BadTimeout StatusChangeNotification and
// terminates the subscription, per spec.md §4.1 step 4. Caller holds s.mu.
func (s *Subscription) expireLocked() {
	s.pending = append(s.pending, []NotificationData{StatusChangeNotification{Status: ua.StatusBadTimeout}})
	s.logger.Warn().Msg("subscription expired: lifetime counter reached lifeTimeCount with no acknowledged publish")
	if s.metrics != nil {
		s.metrics.IncSubscriptionsExpired()
	}
	if s.handlers.Expired != nil {
		s.handlers.Expired()
	}
	s.terminateLocked()
}

// Terminate disposes every monitored item and transitions the subscription
// to StateClosed. Safe to call multiple times; only the first call has
// an effect.
func (s *Subscription) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminateLocked()
}

func (s *Subscription) terminateLocked() {
	if s.state.Terminal() {
		return
	}
	for id, item := range s.monitoredItems {
		item.Terminate()
		item.Dispose()
		delete(s.monitoredItems, id)
	}
	s.scheduler.Stop()
	s.engine.OnCloseSubscription(s.id)
	// spec.md §4.1's terminate() procedure sets state := CLOSED.
	s.state = StateClosed

	if s.metrics != nil {
		s.metrics.IncSubscriptionsClosed()
	}
	if s.handlers.Terminated != nil {
		s.handlers.Terminated()
	}
}

// SetPublishingMode enables or disables publishing without affecting
// monitored item sampling (spec.md §4.1 "setPublishingMode").
func (s *Subscription) SetPublishingMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishingEnabled = enabled
}

// Modify re-clamps the subscription's timing parameters and restarts the
// scheduler at the new interval (spec.md §4.1: "the timer always restarts").
func (s *Subscription) Modify(params ModifyParams) {
	s.mu.Lock()
	pi, mka, ltc, maxNotif := adjustedParams(
		params.RequestedPublishingInterval,
		params.RequestedMaxKeepAliveCount,
		params.RequestedLifetimeCount,
		params.RequestedMaxNotificationsPerPublish,
	)
	s.publishingInterval = pi
	s.maxKeepAliveCount = mka
	s.lifeTimeCount = ltc
	s.maxNotificationsPerPub = maxNotif
	s.resetCountersLocked()
	s.mu.Unlock()

	s.scheduler.SetInterval(pi)
}

// Acknowledge removes seq from the retransmission queue.
func (s *Subscription) Acknowledge(seq uint32) ua.StatusCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.sent.Acknowledge(seq)
	if status != ua.StatusOK && s.metrics != nil {
		s.metrics.IncAcknowledgeErrors()
	}
	return status
}

// AvailableSequenceNumbers reports the retransmission queue's contents,
// exposed on every publish response (spec.md C3).
func (s *Subscription) AvailableSequenceNumbers() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent.SequenceNumbers()
}
