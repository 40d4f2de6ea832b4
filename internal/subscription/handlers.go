package subscription

// Handlers are the optional event callbacks a Subscription owner can
// install to observe lifecycle events (spec.md §6: "notification",
// "notificationMessage", "keepalive", "expired", "terminated",
// "monitoredItem", "removeMonitoredItem"). Every field is optional; a nil
// callback is simply skipped.
type Handlers struct {
	// Notification fires once per harvested NotificationData chunk, before
	// it is wrapped into a NotificationMessage.
	Notification func(data NotificationData)
	// NotificationMessage fires once per NotificationMessage handed to the
	// publish engine.
	NotificationMessage func(msg *NotificationMessage)
	// KeepAlive fires when a keep-alive response is sent.
	KeepAlive func()
	// Expired fires when the subscription's lifetime counter reaches
	// lifeTimeCount with no message sent in time.
	Expired func()
	// Terminated fires exactly once, when Terminate (or lifetime expiry)
	// moves the subscription to StateClosed.
	Terminated func()
	// MonitoredItem fires when a monitored item is successfully created.
	MonitoredItem func(item MonitoredItem)
	// RemoveMonitoredItem fires when a monitored item is deleted.
	RemoveMonitoredItem func(item MonitoredItem)
}
