package subscription

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nexus-edge/opcua-subscription-engine/internal/domain"
	"github.com/nexus-edge/opcua-subscription-engine/internal/metrics"
)

// Manager owns every live Subscription plus the cross-subscription
// allocators (monitored item IDs, sequence numbers are per-subscription,
// monitored item IDs are global per spec.md). Subscriptions never hold a
// direct pointer back to the Manager; callers address a subscription by
// ID through the Manager, which sidesteps the cyclic
// Manager-owns-Subscription / Subscription-needs-Manager-for-lookups
// reference the teacher's SubscriptionManager avoids the same way: an
// index (map[uint32]*Subscription) rather than back-pointers.
//
// Grounded on the teacher's internal/adapter/opcua/subscription.go
// SubscriptionManager, which keeps exactly this "registry of IDs,
// subscriptions never reference the registry" shape.
type Manager struct {
	mu sync.RWMutex

	subscriptions map[uint32]*Subscription
	nextID        uint32

	itemIDs   *MonitoredItemIDAllocator
	engine    PublishEngine
	dir       NodeDirectory
	factory   MonitoredItemFactory
	registry  *metrics.Registry
	logger    zerolog.Logger
	running   bool
}

// NewManager constructs an empty Manager. engine is the shared publish
// engine every subscription will send through (typically a
// *GuardedPublishEngine); dir resolves NodeIDs for CreateMonitoredItem;
// factory builds the concrete MonitoredItem implementation.
func NewManager(engine PublishEngine, dir NodeDirectory, factory MonitoredItemFactory, registry *metrics.Registry, logger zerolog.Logger) *Manager {
	return &Manager{
		subscriptions: make(map[uint32]*Subscription),
		nextID:        1,
		itemIDs:       NewMonitoredItemIDAllocator(),
		engine:        engine,
		dir:           dir,
		factory:       factory,
		registry:      registry,
		logger:        logger.With().Str("component", "subscription-manager").Logger(),
		running:       true,
	}
}

// Create allocates a new Subscription, registers it, and starts its tick
// loop under ctx.
func (m *Manager) Create(ctx context.Context, params CreateParams, handlers Handlers) *Subscription {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.mu.Unlock()

	seq := NewSequenceNumberGenerator()
	scheduler := NewTickerScheduler(RealClock)

	sub := NewSubscription(id, params, m.engine, seq, RealClock, scheduler, m.registry, m.logger)
	sub.SetHandlers(handlers)

	m.mu.Lock()
	m.subscriptions[id] = sub
	count := len(m.subscriptions)
	m.mu.Unlock()

	if m.registry != nil {
		m.registry.SetActiveSubscriptions(count)
	}

	sub.Start(ctx)
	return sub
}

// Get looks up a subscription by ID.
func (m *Manager) Get(id uint32) (*Subscription, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subscriptions[id]
	return s, ok
}

// Delete terminates and unregisters a subscription.
func (m *Manager) Delete(id uint32) error {
	m.mu.Lock()
	sub, ok := m.subscriptions[id]
	if ok {
		delete(m.subscriptions, id)
	}
	count := len(m.subscriptions)
	m.mu.Unlock()

	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	sub.Terminate()

	if m.registry != nil {
		m.registry.SetActiveSubscriptions(count)
	}
	return nil
}

// CreateMonitoredItem dispatches to the named subscription using the
// Manager's shared NodeDirectory, ID allocator, and MonitoredItemFactory.
func (m *Manager) CreateMonitoredItem(subscriptionID uint32, req CreateMonitoredItemRequest) (CreateMonitoredItemResult, error) {
	sub, ok := m.Get(subscriptionID)
	if !ok {
		return CreateMonitoredItemResult{}, domain.ErrSubscriptionNotFound
	}
	return sub.CreateMonitoredItem(m.dir, m.itemIDs, m.factory, req), nil
}

// Diagnostics returns a snapshot for every registered subscription,
// exposing C6 across the whole Manager for a health/metrics endpoint.
func (m *Manager) Diagnostics() []Diagnostics {
	m.mu.RLock()
	subs := make([]*Subscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		subs = append(subs, s)
	}
	m.mu.RUnlock()

	diags := make([]Diagnostics, len(subs))
	for i, s := range subs {
		diags[i] = s.Diagnostics()
	}
	return diags
}

// Running reports false once Shutdown has been called and true before,
// satisfying the health.Registry interface. Create does not consult it:
// a subscription created after Shutdown is still registered and started.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// SubscriptionCount reports the number of currently registered
// subscriptions, satisfying the health.Registry interface.
func (m *Manager) SubscriptionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Shutdown terminates every registered subscription, for use during
// graceful process shutdown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.running = false
	subs := make([]*Subscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		subs = append(subs, s)
	}
	m.subscriptions = make(map[uint32]*Subscription)
	m.mu.Unlock()

	for _, s := range subs {
		s.Terminate()
	}
}
