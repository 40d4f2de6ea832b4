package opcua

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/nexus-edge/opcua-subscription-engine/internal/metrics"
	"github.com/nexus-edge/opcua-subscription-engine/internal/subscription"
)

// LoggingPublishEngine is a minimal subscription.PublishEngine that logs
// every dispatched message instead of encoding a real PublishResponse.
// Wire-level publish response encoding is out of scope for this engine
// (spec.md §6, "Out of scope"); a server binds its own transport here.
//
// AddRequest/requests models the server's count of outstanding Publish
// service calls a client has queued — the one piece of transport state
// Subscription.Tick needs (PendingPublishRequestCount).
type LoggingPublishEngine struct {
	requests atomic.Int64
	registry *metrics.Registry
	logger   zerolog.Logger
}

// NewLoggingPublishEngine creates a publish engine with zero queued
// requests.
func NewLoggingPublishEngine(registry *metrics.Registry, logger zerolog.Logger) *LoggingPublishEngine {
	return &LoggingPublishEngine{
		registry: registry,
		logger:   logger.With().Str("component", "publish-engine").Logger(),
	}
}

// AddRequest simulates a client's Publish request arriving; a real
// transport calls this from its Publish service handler.
func (e *LoggingPublishEngine) AddRequest(n int) {
	e.requests.Add(int64(n))
}

func (e *LoggingPublishEngine) PendingPublishRequestCount() int {
	return int(e.requests.Load())
}

func (e *LoggingPublishEngine) consumeRequest() bool {
	for {
		cur := e.requests.Load()
		if cur <= 0 {
			return false
		}
		if e.requests.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

func (e *LoggingPublishEngine) SendNotificationMessage(notification subscription.PublishNotification, initial bool) bool {
	if !e.consumeRequest() {
		return false
	}
	e.logger.Debug().
		Uint32("subscription_id", notification.SubscriptionID).
		Uint32("sequence_number", notification.SequenceNumber).
		Int("notification_count", len(notification.NotificationData)).
		Bool("initial", initial).
		Msg("dispatched notification message")
	if e.registry != nil {
		e.registry.IncNotificationsSent()
	}
	return true
}

func (e *LoggingPublishEngine) SendKeepAliveResponse(subscriptionID uint32, futureSequenceNumber uint32) bool {
	if !e.consumeRequest() {
		return false
	}
	e.logger.Debug().
		Uint32("subscription_id", subscriptionID).
		Uint32("future_sequence_number", futureSequenceNumber).
		Msg("dispatched keep-alive")
	if e.registry != nil {
		e.registry.IncKeepAlivesSent()
	}
	return true
}

func (e *LoggingPublishEngine) OnCloseSubscription(subscriptionID uint32) {
	e.logger.Info().Uint32("subscription_id", subscriptionID).Msg("subscription closed")
}
