package subscription

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// PublishNotification is the payload handed to PublishEngine.SendNotificationMessage.
type PublishNotification struct {
	SubscriptionID    uint32
	SequenceNumber    uint32
	NotificationData  []NotificationData
	MoreNotifications bool
}

// PublishEngine is the external collaborator that owns wire-level publish
// responses (spec.md §6, "Out of scope"). The subscription state machine
// never encodes a message itself; it only calls these methods.
type PublishEngine interface {
	PendingPublishRequestCount() int
	SendNotificationMessage(notification PublishNotification, initial bool) bool
	SendKeepAliveResponse(subscriptionID uint32, futureSequenceNumber uint32) bool
	OnCloseSubscription(subscriptionID uint32)
}

// OnTickHook is implemented optionally by a PublishEngine wanting a
// once-per-subscription-tick callback (spec.md §6 "_on_tick()").
type OnTickHook interface {
	OnTick()
}

// GuardedPublishEngine wraps a PublishEngine's send calls in a circuit
// breaker. Calls are not bounded in time: a send that blocks also blocks
// the subscription's tick. A false return from the inner engine is not
// counted as a failure; only a panic is, and the panic is re-raised to the
// caller. After five consecutive panics the breaker opens, and sends return
// false without calling the inner engine until its 30s timeout elapses.
// Grounded on the teacher's modbus.ConnectionPool,
// which names a CircuitBreakerName per pool to guard flaky device I/O;
// here the guarded collaborator is the publish engine instead of a device.
type GuardedPublishEngine struct {
	inner  PublishEngine
	cb     *gobreaker.CircuitBreaker
	logger zerolog.Logger
}

// NewGuardedPublishEngine wraps inner with a named circuit breaker.
func NewGuardedPublishEngine(inner PublishEngine, name string, logger zerolog.Logger) *GuardedPublishEngine {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &GuardedPublishEngine{
		inner:  inner,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger.With().Str("component", "publish-engine-breaker").Logger(),
	}
}

// PendingPublishRequestCount passes through uninstrumented: it is a cheap
// read with no failure mode worth guarding.
func (g *GuardedPublishEngine) PendingPublishRequestCount() int {
	return g.inner.PendingPublishRequestCount()
}

func (g *GuardedPublishEngine) SendNotificationMessage(notification PublishNotification, initial bool) bool {
	result, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.SendNotificationMessage(notification, initial), nil
	})
	if err != nil {
		g.logger.Warn().Err(err).Uint32("subscription_id", notification.SubscriptionID).
			Msg("publish engine unavailable, treating as no publish request consumed")
		return false
	}
	return result.(bool)
}

func (g *GuardedPublishEngine) SendKeepAliveResponse(subscriptionID uint32, futureSequenceNumber uint32) bool {
	result, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.SendKeepAliveResponse(subscriptionID, futureSequenceNumber), nil
	})
	if err != nil {
		g.logger.Warn().Err(err).Uint32("subscription_id", subscriptionID).
			Msg("publish engine unavailable, treating as no publish request consumed")
		return false
	}
	return result.(bool)
}

func (g *GuardedPublishEngine) OnCloseSubscription(subscriptionID uint32) {
	g.inner.OnCloseSubscription(subscriptionID)
}
