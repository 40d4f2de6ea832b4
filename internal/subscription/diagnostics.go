package subscription

import "time"

// Diagnostics is a point-in-time snapshot of a Subscription's internal
// counters (spec.md C6 SubscriptionDiagnostics), safe to read concurrently
// with the subscription's own tick loop.
type Diagnostics struct {
	SubscriptionID             uint32
	Priority                   uint8
	PublishingInterval         time.Duration
	MaxKeepAliveCount          uint32
	LifeTimeCount              uint32
	MaxNotificationsPerPublish uint32
	PublishingEnabled          bool
	CurrentKeepAliveCount      uint32
	CurrentLifetimeCount       uint32
	MessageSent                bool
	State                      State
	MonitoredItemCount         int
	NextSequenceNumber         uint32
	UnacknowledgedMessageCount int
	EventQueueOverflowCount    uint32
}

// Diagnostics returns a consistent snapshot of the subscription's state
// (spec.md C6).
func (s *Subscription) Diagnostics() Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Diagnostics{
		SubscriptionID:             s.id,
		Priority:                   s.priority,
		PublishingInterval:         s.publishingInterval,
		MaxKeepAliveCount:          s.maxKeepAliveCount,
		LifeTimeCount:              s.lifeTimeCount,
		MaxNotificationsPerPublish: s.maxNotificationsPerPub,
		PublishingEnabled:          s.publishingEnabled,
		CurrentKeepAliveCount:      s.keepAliveCounter,
		CurrentLifetimeCount:       s.lifeTimeCounter,
		MessageSent:                s.messageSent,
		State:                      s.state,
		MonitoredItemCount:         len(s.monitoredItems),
		NextSequenceNumber:         s.seq.Future(),
		UnacknowledgedMessageCount: s.sent.Len(),
	}
}

// HasPendingNotifications reports whether the subscription holds harvested
// NotificationData batches not yet sent, or any monitored item currently
// holds a notification not yet harvested, used by diagnostics tooling to
// distinguish "quiet" from "about to publish" (spec.md C6).
func (s *Subscription) HasPendingNotifications() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) > 0 {
		return true
	}
	for _, item := range s.monitoredItems {
		if item.HasNotifications() {
			return true
		}
	}
	return false
}

// TimeToExpiration estimates the wall-clock time remaining before the
// subscription would expire if no further publish requests arrive,
// computed as the remaining lifetime ticks times the publishing interval.
func (s *Subscription) TimeToExpiration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.lifeTimeCount
	if s.lifeTimeCounter < remaining {
		remaining -= s.lifeTimeCounter
	} else {
		remaining = 0
	}
	return time.Duration(remaining) * s.publishingInterval
}

// Aborted reports whether this subscription was torn down abnormally
// (session closed underneath it, transport fault) rather than via a
// client-requested deleteSubscription.
func (s *Subscription) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// MarkAborted flags the subscription as abnormally terminated. Callers
// typically follow this with Terminate.
func (s *Subscription) MarkAborted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
}
