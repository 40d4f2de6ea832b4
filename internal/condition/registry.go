package condition

import (
	"sync"

	"github.com/gopcua/opcua/ua"

	"github.com/nexus-edge/opcua-subscription-engine/internal/domain"
)

// Registry indexes every AcknowledgeableCondition the server exposes by a
// string condition ID, the same "registry of IDs, never a back-pointer"
// shape subscription.Manager uses for subscriptions.
type Registry struct {
	mu         sync.RWMutex
	conditions map[string]*AcknowledgeableCondition
}

// NewRegistry creates an empty condition registry.
func NewRegistry() *Registry {
	return &Registry{conditions: make(map[string]*AcknowledgeableCondition)}
}

// Register adds a condition under conditionID, replacing any existing
// entry with the same ID.
func (r *Registry) Register(conditionID string, c *AcknowledgeableCondition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditions[conditionID] = c
}

// Unregister removes a condition from the registry.
func (r *Registry) Unregister(conditionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conditions, conditionID)
}

// Get looks up a condition by ID.
func (r *Registry) Get(conditionID string) (*AcknowledgeableCondition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conditions[conditionID]
	return c, ok
}

// Acknowledge satisfies command.ConditionRegistry: resolve conditionID
// and run its Acknowledge method handler.
func (r *Registry) Acknowledge(conditionID string, eventID []byte, comment ua.LocalizedText) (ua.StatusCode, error) {
	c, ok := r.Get(conditionID)
	if !ok {
		return 0, domain.ErrConditionNotFound
	}
	return c.Acknowledge(eventID, comment), nil
}

// Confirm satisfies command.ConditionRegistry: resolve conditionID and
// run its Confirm method handler.
func (r *Registry) Confirm(conditionID string, eventID []byte, comment ua.LocalizedText) (ua.StatusCode, error) {
	c, ok := r.Get(conditionID)
	if !ok {
		return 0, domain.ErrConditionNotFound
	}
	return c.Confirm(eventID, comment), nil
}

// Count reports how many conditions are registered, for health/metrics
// surfaces.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conditions)
}
