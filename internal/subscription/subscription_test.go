package subscription_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gopcua/opcua/ua"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-edge/opcua-subscription-engine/internal/subscription"
	"github.com/nexus-edge/opcua-subscription-engine/internal/subscription/subscriptiontest"
)

func newTestSubscription(t *testing.T, params subscription.CreateParams) (*subscription.Subscription, *subscriptiontest.FakePublishEngine, *subscriptiontest.ManualScheduler) {
	t.Helper()
	engine := subscriptiontest.NewFakePublishEngine()
	scheduler := subscriptiontest.NewManualScheduler()
	seq := subscription.NewSequenceNumberGenerator()
	sub := subscription.NewSubscription(1, params, engine, seq, subscriptiontest.NewFakeClock(time.Unix(0, 0)), scheduler, nil, zerolog.Nop())
	sub.Start(context.Background())
	return sub, engine, scheduler
}

// S1: keep-alive fires once the keep-alive counter reaches maxKeepAliveCount,
// with no monitored items and publish requests always available.
func TestKeepAliveFiresAfterSilentInterval(t *testing.T) {
	params := subscription.CreateParams{
		RequestedPublishingInterval: 100 * time.Millisecond,
		RequestedMaxKeepAliveCount:  3,
		RequestedLifetimeCount:      9,
		PublishingEnabled:           true,
	}
	sub, engine, scheduler := newTestSubscription(t, params)

	now := time.Unix(0, 0)
	for i := 0; i < 3; i++ {
		engine.AddRequest()
		now = now.Add(100 * time.Millisecond)
		scheduler.Fire(now)
	}

	require.Len(t, engine.KeepAlives, 1, "keep-alive should fire exactly once after maxKeepAliveCount silent ticks")
	assert.Equal(t, subscription.StateKeepAlive, sub.State())
	assert.Equal(t, uint32(1), engine.KeepAlives[0], "future sequence number previews the next allocation")
}

// keepAliveProcedureLocked must not claim success when the engine fails
// to actually send: a request-count race or an open circuit breaker can
// make SendKeepAliveResponse return false even though a publish request
// was available. The subscription should fall back to LATE rather than
// resetting counters and entering KEEPALIVE.
func TestKeepAliveSendFailureFallsBackToLate(t *testing.T) {
	params := subscription.CreateParams{
		RequestedPublishingInterval: 100 * time.Millisecond,
		RequestedMaxKeepAliveCount:  3,
		RequestedLifetimeCount:      9,
		PublishingEnabled:           true,
	}
	sub, engine, scheduler := newTestSubscription(t, params)
	engine.AllowSend = false

	now := time.Unix(0, 0)
	for i := 0; i < 3; i++ {
		engine.AddRequest()
		now = now.Add(100 * time.Millisecond)
		scheduler.Fire(now)
	}

	assert.Empty(t, engine.KeepAlives, "a failed send must not be recorded as a sent keep-alive")
	assert.Equal(t, subscription.StateLate, sub.State())
}

// S2: with no publish requests ever available, the subscription expires
// once the lifetime counter reaches lifeTimeCount.
func TestExpirationTerminatesSubscription(t *testing.T) {
	params := subscription.CreateParams{
		RequestedPublishingInterval: 100 * time.Millisecond,
		RequestedMaxKeepAliveCount:  3,
		RequestedLifetimeCount:      9,
		PublishingEnabled:           true,
	}
	sub, engine, scheduler := newTestSubscription(t, params)

	var expired, terminated bool
	sub.SetHandlers(subscription.Handlers{
		Expired:    func() { expired = true },
		Terminated: func() { terminated = true },
	})

	// The requested lifetime of 9 is raised to ceil(5000ms/100ms) = 50 ticks
	// by computeLifeTimeCount's five-second floor.
	now := time.Unix(0, 0)
	for i := 0; i < 50; i++ {
		now = now.Add(100 * time.Millisecond)
		scheduler.Fire(now)
	}

	assert.True(t, expired, "expired handler must fire on lifetime exhaustion")
	assert.True(t, terminated, "terminated handler must fire as part of terminate()")
	assert.Equal(t, subscription.StateClosed, sub.State())
	assert.Empty(t, engine.KeepAlives)
	assert.Empty(t, engine.SentMessages)
	assert.Len(t, engine.Closed, 1)
}

// S3: a data-change notification with no publish request available puts
// the subscription into LATE; the next tick with a request recovers to
// NORMAL and sends sequenceNumber=1 with moreNotifications=false.
func TestLateRecovery(t *testing.T) {
	params := subscription.CreateParams{
		RequestedPublishingInterval: 50 * time.Millisecond,
		RequestedMaxKeepAliveCount:  2,
		RequestedLifetimeCount:      6,
		PublishingEnabled:           true,
	}
	sub, engine, scheduler := newTestSubscription(t, params)

	item := subscriptiontest.NewFakeMonitoredItem(1, 100)
	item.PushDataChange(&ua.DataValue{})

	result, err := registerItem(sub, item)
	require.NoError(t, err)
	_ = result

	now := time.Unix(0, 0)
	now = now.Add(50 * time.Millisecond)
	scheduler.Fire(now) // no publish request available yet

	assert.Equal(t, subscription.StateLate, sub.State())
	assert.Empty(t, engine.SentMessages)

	engine.AddRequest()
	now = now.Add(50 * time.Millisecond)
	scheduler.Fire(now)

	require.Len(t, engine.SentMessages, 1)
	assert.Equal(t, uint32(1), engine.SentMessages[0].SequenceNumber)
	assert.False(t, engine.SentMessages[0].MoreNotifications)
	assert.Equal(t, subscription.StateNormal, sub.State())
}

// S4: harvest chunks data-change and event entries into (2,0),(2,0),(1,2),(0,1)
// when maxNotificationsPerPublish=2, given 5 data-change entries and 3 events.
func TestChunkingByMaxNotificationsPerPublish(t *testing.T) {
	params := subscription.CreateParams{
		RequestedPublishingInterval:         50 * time.Millisecond,
		RequestedMaxKeepAliveCount:          2,
		RequestedLifetimeCount:              100,
		RequestedMaxNotificationsPerPublish: 2,
		PublishingEnabled:                   true,
	}
	sub, engine, scheduler := newTestSubscription(t, params)

	dcItem := subscriptiontest.NewFakeMonitoredItem(1, 100)
	for i := 0; i < 5; i++ {
		dcItem.PushDataChange(&ua.DataValue{})
	}
	evItem := subscriptiontest.NewFakeMonitoredItem(2, 200)
	for i := 0; i < 3; i++ {
		evItem.PushEvent(nil)
	}

	_, err := registerItem(sub, dcItem)
	require.NoError(t, err)
	_, err = registerItem(sub, evItem)
	require.NoError(t, err)

	now := time.Unix(0, 0)
	for i := 0; i < 4; i++ {
		engine.AddRequest()
		now = now.Add(50 * time.Millisecond)
		scheduler.Fire(now)
	}

	require.Len(t, engine.SentMessages, 4)

	wantSizes := [][2]int{{2, 0}, {2, 0}, {1, 2}, {0, 1}}
	for i, msg := range engine.SentMessages {
		dc, ev := sizesOf(msg.NotificationData)
		assert.Equalf(t, wantSizes[i][0], dc, "message %d data-change count", i)
		assert.Equalf(t, wantSizes[i][1], ev, "message %d event count", i)
	}
}

// Round-trip law (§8): create → enqueue N notifications → N publish
// requests → N messages in allocation order → acknowledge each → sent
// empty.
func TestRoundTripAcknowledgement(t *testing.T) {
	const n = 5
	params := subscription.CreateParams{
		RequestedPublishingInterval:         10 * time.Millisecond,
		RequestedMaxKeepAliveCount:          2,
		RequestedLifetimeCount:              100,
		RequestedMaxNotificationsPerPublish: 1,
		PublishingEnabled:                   true,
	}
	sub, engine, scheduler := newTestSubscription(t, params)

	item := subscriptiontest.NewFakeMonitoredItem(1, 100)
	for i := 0; i < n; i++ {
		item.PushDataChange(&ua.DataValue{})
	}
	_, err := registerItem(sub, item)
	require.NoError(t, err)

	now := time.Unix(0, 0)
	for i := 0; i < n; i++ {
		engine.AddRequest()
		now = now.Add(10 * time.Millisecond)
		scheduler.Fire(now)
	}

	require.Len(t, engine.SentMessages, n)
	for i := 1; i < len(engine.SentMessages); i++ {
		assert.Greater(t, engine.SentMessages[i].SequenceNumber, engine.SentMessages[i-1].SequenceNumber)
	}

	for _, msg := range engine.SentMessages {
		status := sub.Acknowledge(msg.SequenceNumber)
		assert.Equal(t, ua.StatusOK, status)
	}

	diag := sub.Diagnostics()
	assert.Equal(t, 0, diag.UnacknowledgedMessageCount)
	assert.Empty(t, sub.AvailableSequenceNumbers())
}

// acknowledge(seq) on a nonexistent sequence number is idempotent: it
// returns BadSequenceNumberUnknown without mutating the sent queue.
func TestAcknowledgeUnknownSequenceNumber(t *testing.T) {
	sub, _, _ := newTestSubscription(t, subscription.CreateParams{
		RequestedPublishingInterval: 100 * time.Millisecond,
		RequestedMaxKeepAliveCount:  2,
		RequestedLifetimeCount:      10,
		PublishingEnabled:           true,
	})

	status := sub.Acknowledge(999)
	assert.Equal(t, ua.StatusBadSequenceNumberUnknown, status)

	status = sub.Acknowledge(999)
	assert.Equal(t, ua.StatusBadSequenceNumberUnknown, status, "repeating the call must be idempotent")
}

func sizesOf(data []subscription.NotificationData) (dc int, ev int) {
	for _, d := range data {
		switch v := d.(type) {
		case subscription.DataChangeNotification:
			dc += len(v.MonitoredItems)
		case subscription.EventNotificationList:
			ev += len(v.Events)
		}
	}
	return dc, ev
}

// testItemIDs is shared by every registerItem call so that items registered
// on one subscription get distinct IDs, as they do under a Manager.
var testItemIDs = subscription.NewMonitoredItemIDAllocator()

func registerItem(sub *subscription.Subscription, item *subscriptiontest.FakeMonitoredItem) (subscription.CreateMonitoredItemResult, error) {
	dir := fakeNodeDirectory{}
	ids := testItemIDs
	factory := func(req subscription.CreateMonitoredItemRequest, id uint32, revisedSamplingInterval float64, revisedQueueSize uint32) subscription.MonitoredItem {
		return item
	}
	result := sub.CreateMonitoredItem(dir, ids, factory, subscription.CreateMonitoredItemRequest{
		NodeID:         ua.NewStringNodeID(1, "test"),
		AttributeID:    ua.AttributeIDValue,
		MonitoringMode: ua.MonitoringModeReporting,
		ClientHandle:   item.ClientHandle(),
	})
	if result.StatusCode != ua.StatusOK {
		return result, fmt.Errorf("createMonitoredItem failed with status %v", result.StatusCode)
	}
	return result, nil
}

type fakeNodeDirectory struct{}

func (fakeNodeDirectory) Lookup(nodeID *ua.NodeID) (subscription.Node, bool) {
	return fakeNode{}, true
}

type fakeNode struct{}

func (fakeNode) IsVariable() bool { return true }
func (fakeNode) MinimumSamplingInterval() (float64, ua.StatusCode) {
	return 0, ua.StatusBadAttributeIDInvalid
}
func (fakeNode) MaximumSamplingInterval() (float64, ua.StatusCode) {
	return 0, ua.StatusBadAttributeIDInvalid
}
