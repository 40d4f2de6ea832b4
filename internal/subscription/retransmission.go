package subscription

import "github.com/gopcua/opcua/ua"

// DefaultMaxRetransmissionQueue bounds the retransmission queue
// ("maxInQueue" in spec.md §4.1's discard-old pass) when the caller
// doesn't override it.
const DefaultMaxRetransmissionQueue = 100

// RetransmissionQueue is the bounded FIFO of sent NotificationMessages
// awaiting client acknowledgement (spec.md C3).
type RetransmissionQueue struct {
	max  int
	sent []*NotificationMessage
}

// NewRetransmissionQueue creates a queue bounded at max entries. max<=0
// falls back to DefaultMaxRetransmissionQueue.
func NewRetransmissionQueue(max int) *RetransmissionQueue {
	if max <= 0 {
		max = DefaultMaxRetransmissionQueue
	}
	return &RetransmissionQueue{max: max}
}

// Push appends a newly-sent message to the tail of the queue.
func (q *RetransmissionQueue) Push(msg *NotificationMessage) {
	q.sent = append(q.sent, msg)
}

// Len reports the number of unacknowledged sent messages.
func (q *RetransmissionQueue) Len() int {
	return len(q.sent)
}

// SequenceNumbers returns the availableSequenceNumbers reported on each
// publish response: the current contents of sent, in dispatch order.
func (q *RetransmissionQueue) SequenceNumbers() []uint32 {
	nums := make([]uint32, len(q.sent))
	for i, m := range q.sent {
		nums[i] = m.SequenceNumber
	}
	return nums
}

// Acknowledge removes the message with the given sequence number.
func (q *RetransmissionQueue) Acknowledge(seq uint32) ua.StatusCode {
	for i, m := range q.sent {
		if m.SequenceNumber == seq {
			q.sent = append(q.sent[:i:i], q.sent[i+1:]...)
			return ua.StatusOK
		}
	}
	return ua.StatusBadSequenceNumberUnknown
}

// DiscardOld trims the queue once it has reached max, keeping the most
// recent max entries.
//
// spec.md §9 Open Question 1 flags the source's discardOldSentNotifications
// as keeping the tail rather than the head despite a comment claiming
// "oldest gets deleted". SPEC_FULL.md §5 resolves this explicitly: this
// queue implements the observed keep-newest behavior, not the stated intent.
func (q *RetransmissionQueue) DiscardOld() {
	if len(q.sent) < q.max {
		return
	}
	q.sent = append([]*NotificationMessage(nil), q.sent[len(q.sent)-q.max:]...)
}
