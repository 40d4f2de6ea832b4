// Package opcua adapts an in-memory address space and sampling loop to
// the subscription engine's external collaborator interfaces
// (subscription.NodeDirectory, subscription.Node, subscription.MonitoredItem,
// subscription.PublishEngine). None of these concerns are owned by the
// subscription state machine itself (spec.md §1, §6); a real server
// binds its own address space and transport here instead.
package opcua

import (
	"sync"

	"github.com/gopcua/opcua/ua"

	"github.com/nexus-edge/opcua-subscription-engine/internal/subscription"
)

// StaticNode is a Node backed by fixed IsVariable/sampling-interval-bounds
// values, sufficient for createMonitoredItem's validation needs (spec.md
// C4, spec.md:133).
type StaticNode struct {
	Variable            bool
	MinSamplingInterval float64
	HasMinSampling      bool
	MaxSamplingInterval float64
	HasMaxSampling      bool
}

func (n StaticNode) IsVariable() bool { return n.Variable }

func (n StaticNode) MinimumSamplingInterval() (float64, ua.StatusCode) {
	if !n.HasMinSampling {
		return 0, ua.StatusBadNotFound
	}
	return n.MinSamplingInterval, ua.StatusOK
}

func (n StaticNode) MaximumSamplingInterval() (float64, ua.StatusCode) {
	if !n.HasMaxSampling {
		return 0, ua.StatusBadNotFound
	}
	return n.MaxSamplingInterval, ua.StatusOK
}

// Directory is an in-memory subscription.NodeDirectory keyed by the
// string form of a NodeID. Grounded on the teacher's
// opcua.SubscriptionManager registry (internal/adapter/opcua/subscription.go
// in its pre-adaptation form): a mutex-guarded map, looked up by ID,
// indexed once at registration time rather than re-resolved from a live
// server connection.
type Directory struct {
	mu    sync.RWMutex
	nodes map[string]StaticNode
}

// NewDirectory creates an empty node directory.
func NewDirectory() *Directory {
	return &Directory{nodes: make(map[string]StaticNode)}
}

// Register adds or replaces a node in the directory.
func (d *Directory) Register(nodeID *ua.NodeID, node StaticNode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes[nodeID.String()] = node
}

// Unregister removes a node from the directory.
func (d *Directory) Unregister(nodeID *ua.NodeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.nodes, nodeID.String())
}

// Lookup implements subscription.NodeDirectory.
func (d *Directory) Lookup(nodeID *ua.NodeID) (subscription.Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[nodeID.String()]
	if !ok {
		return nil, false
	}
	return n, true
}
