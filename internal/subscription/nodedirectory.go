package subscription

import "github.com/gopcua/opcua/ua"

// NodeDirectory is the opaque address-space collaborator consulted when
// creating a monitored item (spec.md §1: "the address space ... consumed
// as an opaque directory of nodes").
type NodeDirectory interface {
	Lookup(nodeID *ua.NodeID) (Node, bool)
}

// Node is the minimal view of an address-space node createMonitoredItem
// needs: whether it is a Variable (for AttributeID validation) and its
// configured sampling interval bounds (for sampling interval adjustment,
// spec.md:133 — clamped per node, not per subscription).
type Node interface {
	IsVariable() bool
	// MinimumSamplingInterval returns the node's configured minimum and
	// ua.StatusOK, or a non-Good status if the node has none.
	MinimumSamplingInterval() (float64, ua.StatusCode)
	// MaximumSamplingInterval returns the node's configured maximum and
	// ua.StatusOK, or a non-Good status if the node has none (no upper
	// bound beyond the minimum).
	MaximumSamplingInterval() (float64, ua.StatusCode)
}

// MonitoringFilter validates a client-requested monitoring filter
// (deadband, event filter, ...) against the target node and attribute.
type MonitoringFilter interface {
	Validate(node Node, attributeID ua.AttributeID) ua.StatusCode
}

// MonitoredItemFactory constructs the concrete MonitoredItem once
// createMonitoredItem has validated the request and assigned an ID; the
// monitored item's sampling/event-delivery internals are owned entirely by
// whatever implements this factory (spec.md C4: external contract).
type MonitoredItemFactory func(req CreateMonitoredItemRequest, id uint32, revisedSamplingInterval float64, revisedQueueSize uint32) MonitoredItem
