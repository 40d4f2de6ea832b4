package subscription

import (
	"math"
	"time"

	"github.com/gopcua/opcua/ua"
)

// Clamp bounds from spec.md §4.1 "Parameter adjustment".
const (
	minPublishingInterval     = 50 * time.Millisecond
	maxPublishingInterval     = 15 * 24 * time.Hour
	defaultPublishingInterval = 1 * time.Second

	minMaxKeepAliveCount     uint32 = 2
	maxMaxKeepAliveCount     uint32 = 12000
	defaultMaxKeepAliveCount uint32 = 2
)

// CreateParams are the client-requested parameters for creating a
// subscription (spec.md §3 Subscription identity/timing fields).
type CreateParams struct {
	SessionID                           *ua.NodeID
	Priority                            uint8
	RequestedPublishingInterval         time.Duration
	RequestedMaxKeepAliveCount          uint32
	RequestedLifetimeCount              uint32
	RequestedMaxNotificationsPerPublish uint32
	PublishingEnabled                   bool
	MaxRetransmissionQueue              int
}

// ModifyParams are the client-requested parameters for Subscription.Modify.
type ModifyParams struct {
	RequestedPublishingInterval         time.Duration
	RequestedMaxKeepAliveCount          uint32
	RequestedLifetimeCount              uint32
	RequestedMaxNotificationsPerPublish uint32
}

// clampPublishingInterval applies the [50ms, 15 days] bound, substituting
// the 1000ms default for a zero request.
func clampPublishingInterval(requested time.Duration) time.Duration {
	if requested <= 0 {
		requested = defaultPublishingInterval
	}
	if requested < minPublishingInterval {
		return minPublishingInterval
	}
	if requested > maxPublishingInterval {
		return maxPublishingInterval
	}
	return requested
}

// clampMaxKeepAliveCount applies the [2, 12000] bound, substituting 2 for
// a zero request.
func clampMaxKeepAliveCount(requested uint32) uint32 {
	if requested == 0 {
		requested = defaultMaxKeepAliveCount
	}
	if requested < minMaxKeepAliveCount {
		return minMaxKeepAliveCount
	}
	if requested > maxMaxKeepAliveCount {
		return maxMaxKeepAliveCount
	}
	return requested
}

// computeLifeTimeCount applies
// lifeTimeCount := max(input or 1, 3*maxKeepAliveCount, ceil(5000/publishingInterval)).
func computeLifeTimeCount(requested uint32, maxKeepAliveCount uint32, publishingInterval time.Duration) uint32 {
	if requested == 0 {
		requested = 1
	}
	result := requested

	floor := 3 * maxKeepAliveCount
	if floor > result {
		result = floor
	}

	intervalMS := float64(publishingInterval.Milliseconds())
	if intervalMS > 0 {
		msFloor := uint32(math.Ceil(5000 / intervalMS))
		if msFloor > result {
			result = msFloor
		}
	}

	return result
}

// adjustedParams returns the fully clamped (publishingInterval,
// maxKeepAliveCount, lifeTimeCount, maxNotificationsPerPublish) tuple for
// either a CreateParams or ModifyParams request.
func adjustedParams(publishingInterval time.Duration, maxKeepAliveCount, lifeTimeCount, maxNotificationsPerPublish uint32) (time.Duration, uint32, uint32, uint32) {
	pi := clampPublishingInterval(publishingInterval)
	mka := clampMaxKeepAliveCount(maxKeepAliveCount)
	ltc := computeLifeTimeCount(lifeTimeCount, mka, pi)
	return pi, mka, ltc, maxNotificationsPerPublish
}
