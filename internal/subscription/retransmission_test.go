package subscription_test

import (
	"testing"

	"github.com/gopcua/opcua/ua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-edge/opcua-subscription-engine/internal/subscription"
)

func TestRetransmissionQueueAcknowledge(t *testing.T) {
	q := subscription.NewRetransmissionQueue(10)
	q.Push(&subscription.NotificationMessage{SequenceNumber: 1})
	q.Push(&subscription.NotificationMessage{SequenceNumber: 2})

	require.Equal(t, []uint32{1, 2}, q.SequenceNumbers())

	status := q.Acknowledge(1)
	assert.Equal(t, ua.StatusOK, status)
	assert.Equal(t, []uint32{2}, q.SequenceNumbers())

	status = q.Acknowledge(1)
	assert.Equal(t, ua.StatusBadSequenceNumberUnknown, status)
}

// spec.md §9 Open Question 1: DiscardOld keeps the most recent max entries,
// not the oldest, matching the observed source behavior rather than its
// comment's stated intent.
func TestRetransmissionQueueDiscardOldKeepsNewest(t *testing.T) {
	q := subscription.NewRetransmissionQueue(3)
	for i := uint32(1); i <= 5; i++ {
		q.Push(&subscription.NotificationMessage{SequenceNumber: i})
		q.DiscardOld()
	}

	assert.Equal(t, []uint32{3, 4, 5}, q.SequenceNumbers())
}

func TestSequenceNumberGeneratorNeverAllocatesZero(t *testing.T) {
	g := subscription.NewSequenceNumberGenerator()
	assert.Equal(t, uint32(1), g.Future())

	first := g.Next()
	assert.Equal(t, uint32(1), first)
	assert.Equal(t, uint32(2), g.Future())

	second := g.Next()
	assert.Equal(t, uint32(2), second)
}
