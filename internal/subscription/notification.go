package subscription

import (
	"time"

	"github.com/gopcua/opcua/ua"
)

// NotificationMessage is a sequenced payload containing 1-2 notification
// objects (spec.md C2).
type NotificationMessage struct {
	SequenceNumber   uint32
	PublishTime      time.Time
	NotificationData []NotificationData
}

// NotificationData is implemented by every payload kind a NotificationMessage
// may carry: DataChangeNotification, EventNotificationList and
// StatusChangeNotification.
type NotificationData interface {
	isNotificationData()
}

// DataChangeNotification collects the data-change entries harvested from
// value-monitoring monitored items for one chunk.
type DataChangeNotification struct {
	MonitoredItems []MonitoredItemNotification
}

func (DataChangeNotification) isNotificationData() {}

// EventNotificationList collects the event entries harvested from
// event-monitoring monitored items for one chunk.
type EventNotificationList struct {
	Events []EventFieldList
}

func (EventNotificationList) isNotificationData() {}

// StatusChangeNotification carries a subscription-wide status transition:
// BadTimeout on lifetime expiration, GoodSubscriptionTransferred on
// transfer to a new session (spec.md §7).
type StatusChangeNotification struct {
	Status ua.StatusCode
}

func (StatusChangeNotification) isNotificationData() {}
