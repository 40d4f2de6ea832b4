// Package health provides HTTP health check endpoints for the
// subscription engine process.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Registry is the minimal view of the subscription manager the health
// checker needs: whether it is accepting ticks and how many subscriptions
// it currently owns.
type Registry interface {
	Running() bool
	SubscriptionCount() int
}

// Checker serves /health, /health/live and /health/ready.
type Checker struct {
	registry Registry
	logger   zerolog.Logger
}

// NewChecker creates a health checker bound to a subscription registry.
func NewChecker(registry Registry, logger zerolog.Logger) *Checker {
	return &Checker{
		registry: registry,
		logger:   logger.With().Str("component", "health-checker").Logger(),
	}
}

// HealthResponse is the JSON body returned by HealthHandler.
type HealthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	Subscriptions int    `json:"subscriptions"`
}

// HealthHandler reports overall health.
func (c *Checker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if !c.registry.Running() {
		status = "degraded"
	}

	resp := HealthResponse{
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Subscriptions: c.registry.SubscriptionCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}

// LivenessHandler reports whether the process is running at all.
func (c *Checker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessHandler reports whether the manager is ready to accept ticks.
func (c *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ready := c.registry.Running()

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "not_ready",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
