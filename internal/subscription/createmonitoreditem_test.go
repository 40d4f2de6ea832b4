package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/gopcua/opcua/ua"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/nexus-edge/opcua-subscription-engine/internal/subscription"
	"github.com/nexus-edge/opcua-subscription-engine/internal/subscription/subscriptiontest"
)

type rejectingDirectory struct{}

func (rejectingDirectory) Lookup(nodeID *ua.NodeID) (subscription.Node, bool) {
	return nil, false
}

// boundedNode carries real per-node sampling interval bounds, unlike
// fakeNode (which reports neither bound present).
type boundedNodeDirectory struct{ node boundedNode }

func (d boundedNodeDirectory) Lookup(nodeID *ua.NodeID) (subscription.Node, bool) {
	return d.node, true
}

type boundedNode struct {
	min, max float64
}

func (boundedNode) IsVariable() bool { return true }
func (n boundedNode) MinimumSamplingInterval() (float64, ua.StatusCode) {
	return n.min, ua.StatusOK
}
func (n boundedNode) MaximumSamplingInterval() (float64, ua.StatusCode) {
	return n.max, ua.StatusOK
}

func newCreateTestSubscription(t *testing.T) *subscription.Subscription {
	t.Helper()
	engine := subscriptiontest.NewFakePublishEngine()
	scheduler := subscriptiontest.NewManualScheduler()
	seq := subscription.NewSequenceNumberGenerator()
	sub := subscription.NewSubscription(1, subscription.CreateParams{
		RequestedPublishingInterval: 100 * time.Millisecond,
		RequestedMaxKeepAliveCount:  3,
		RequestedLifetimeCount:      9,
		PublishingEnabled:           true,
	}, engine, seq, subscriptiontest.NewFakeClock(time.Unix(0, 0)), scheduler, nil, zerolog.Nop())
	sub.Start(context.Background())
	return sub
}

func TestCreateMonitoredItemUnknownNode(t *testing.T) {
	sub := newCreateTestSubscription(t)
	ids := subscription.NewMonitoredItemIDAllocator()
	factory := func(req subscription.CreateMonitoredItemRequest, id uint32, ri float64, rq uint32) subscription.MonitoredItem {
		t.Fatal("factory must not be called when node lookup fails")
		return nil
	}

	result := sub.CreateMonitoredItem(rejectingDirectory{}, ids, factory, subscription.CreateMonitoredItemRequest{
		NodeID:      ua.NewStringNodeID(1, "missing"),
		AttributeID: ua.AttributeIDValue,
	})

	assert.Equal(t, ua.StatusBadNodeIDUnknown, result.StatusCode)
}

func TestCreateMonitoredItemInvalidAttribute(t *testing.T) {
	sub := newCreateTestSubscription(t)
	ids := subscription.NewMonitoredItemIDAllocator()
	factory := func(req subscription.CreateMonitoredItemRequest, id uint32, ri float64, rq uint32) subscription.MonitoredItem {
		t.Fatal("factory must not be called for an invalid attribute")
		return nil
	}

	result := sub.CreateMonitoredItem(fakeNodeDirectory{}, ids, factory, subscription.CreateMonitoredItemRequest{
		NodeID: ua.NewStringNodeID(1, "present"),
	})

	assert.Equal(t, ua.StatusBadAttributeIDInvalid, result.StatusCode)
}

func TestCreateMonitoredItemInvalidIndexRange(t *testing.T) {
	sub := newCreateTestSubscription(t)
	ids := subscription.NewMonitoredItemIDAllocator()
	factory := func(req subscription.CreateMonitoredItemRequest, id uint32, ri float64, rq uint32) subscription.MonitoredItem {
		t.Fatal("factory must not be called for an invalid index range")
		return nil
	}

	result := sub.CreateMonitoredItem(fakeNodeDirectory{}, ids, factory, subscription.CreateMonitoredItemRequest{
		NodeID:      ua.NewStringNodeID(1, "present"),
		AttributeID: ua.AttributeIDValue,
		IndexRange:  "5:2",
	})

	assert.Equal(t, ua.StatusBadIndexRangeInvalid, result.StatusCode)
}

func TestCreateMonitoredItemSuccess(t *testing.T) {
	sub := newCreateTestSubscription(t)
	ids := subscription.NewMonitoredItemIDAllocator()
	item := subscriptiontest.NewFakeMonitoredItem(0, 42)
	factory := func(req subscription.CreateMonitoredItemRequest, id uint32, ri float64, rq uint32) subscription.MonitoredItem {
		return item
	}

	result := sub.CreateMonitoredItem(fakeNodeDirectory{}, ids, factory, subscription.CreateMonitoredItemRequest{
		NodeID:         ua.NewStringNodeID(1, "present"),
		AttributeID:    ua.AttributeIDValue,
		MonitoringMode: ua.MonitoringModeReporting,
		ClientHandle:   42,
	})

	assert.Equal(t, ua.StatusOK, result.StatusCode)
	assert.Equal(t, uint32(1), result.MonitoredItemID)
	assert.Equal(t, uint32(1), result.RevisedQueueSize)

	status := sub.DeleteMonitoredItem(result.MonitoredItemID)
	assert.Equal(t, ua.StatusOK, status)
	assert.True(t, item.Terminated())
	assert.True(t, item.Disposed())

	status = sub.DeleteMonitoredItem(result.MonitoredItemID)
	assert.Equal(t, ua.StatusBadMonitoredItemIDInvalid, status)
}

// spec.md:133 clamps the revised sampling interval to the target node's
// own [minimumSamplingInterval, maximumSamplingInterval] bounds, not any
// subscription-wide setting.
func TestCreateMonitoredItemClampsToNodeSamplingBounds(t *testing.T) {
	sub := newCreateTestSubscription(t)
	ids := subscription.NewMonitoredItemIDAllocator()
	factory := func(req subscription.CreateMonitoredItemRequest, id uint32, ri float64, rq uint32) subscription.MonitoredItem {
		return subscriptiontest.NewFakeMonitoredItem(id, req.ClientHandle)
	}

	dir := boundedNodeDirectory{node: boundedNode{min: 100, max: 1000}}

	result := sub.CreateMonitoredItem(dir, ids, factory, subscription.CreateMonitoredItemRequest{
		NodeID:           ua.NewStringNodeID(1, "bounded"),
		AttributeID:      ua.AttributeIDValue,
		MonitoringMode:   ua.MonitoringModeReporting,
		SamplingInterval: 5000,
	})
	assert.Equal(t, ua.StatusOK, result.StatusCode)
	assert.Equal(t, float64(1000), result.RevisedSamplingInterval, "above the node's maximum must clamp down to it")

	ids2 := subscription.NewMonitoredItemIDAllocator()
	result2 := sub.CreateMonitoredItem(dir, ids2, factory, subscription.CreateMonitoredItemRequest{
		NodeID:           ua.NewStringNodeID(1, "bounded"),
		AttributeID:      ua.AttributeIDValue,
		MonitoringMode:   ua.MonitoringModeReporting,
		SamplingInterval: 10,
	})
	assert.Equal(t, ua.StatusOK, result2.StatusCode)
	assert.Equal(t, float64(100), result2.RevisedSamplingInterval, "below the node's minimum must clamp up to it")
}
