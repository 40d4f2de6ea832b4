// Package metrics exposes the subscription engine's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all Prometheus collectors for the subscription engine.
type Registry struct {
	notificationsSent     prometheus.Counter
	keepAlivesSent        prometheus.Counter
	subscriptionsExpired  prometheus.Counter
	subscriptionsCreated  prometheus.Counter
	subscriptionsClosed   prometheus.Counter
	acknowledgeErrors     prometheus.Counter
	activeSubscriptions   prometheus.Gauge
	unacknowledgedTotal   prometheus.Gauge
	conditionsAcked       prometheus.Counter
	conditionsConfirmed   prometheus.Counter
	publishCycleDuration  prometheus.Histogram
}

// NewRegistry creates and registers the subscription engine's metrics.
func NewRegistry() *Registry {
	return &Registry{
		notificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "opcua_subscription_notifications_sent_total",
			Help: "Total number of NotificationMessages dispatched to the publish engine",
		}),
		keepAlivesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "opcua_subscription_keepalives_sent_total",
			Help: "Total number of keep-alive responses sent",
		}),
		subscriptionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "opcua_subscription_expired_total",
			Help: "Total number of subscriptions terminated due to lifetime expiration",
		}),
		subscriptionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "opcua_subscription_created_total",
			Help: "Total number of subscriptions created",
		}),
		subscriptionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "opcua_subscription_closed_total",
			Help: "Total number of subscriptions terminated for any reason",
		}),
		acknowledgeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "opcua_subscription_acknowledge_errors_total",
			Help: "Total number of acknowledge() calls that returned a non-Good status",
		}),
		activeSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "opcua_subscription_active",
			Help: "Current number of subscriptions registered with the manager",
		}),
		unacknowledgedTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "opcua_subscription_unacknowledged_messages",
			Help: "Sum of unacknowledged message counts across all subscriptions",
		}),
		conditionsAcked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "opcua_condition_acknowledged_total",
			Help: "Total number of condition branches acknowledged",
		}),
		conditionsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "opcua_condition_confirmed_total",
			Help: "Total number of condition branches confirmed",
		}),
		publishCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "opcua_subscription_publish_cycle_duration_seconds",
			Help:    "Duration of a single Subscription.Tick call",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
}

func (r *Registry) IncNotificationsSent()    { r.notificationsSent.Inc() }
func (r *Registry) IncKeepAlivesSent()       { r.keepAlivesSent.Inc() }
func (r *Registry) IncSubscriptionsExpired() { r.subscriptionsExpired.Inc() }
func (r *Registry) IncSubscriptionsCreated() { r.subscriptionsCreated.Inc() }
func (r *Registry) IncSubscriptionsClosed()  { r.subscriptionsClosed.Inc() }
func (r *Registry) IncAcknowledgeErrors()    { r.acknowledgeErrors.Inc() }
func (r *Registry) IncConditionsAcked()      { r.conditionsAcked.Inc() }
func (r *Registry) IncConditionsConfirmed()  { r.conditionsConfirmed.Inc() }

func (r *Registry) SetActiveSubscriptions(n int)   { r.activeSubscriptions.Set(float64(n)) }
func (r *Registry) SetUnacknowledgedTotal(n int)   { r.unacknowledgedTotal.Set(float64(n)) }
func (r *Registry) ObservePublishCycle(seconds float64) { r.publishCycleDuration.Observe(seconds) }
