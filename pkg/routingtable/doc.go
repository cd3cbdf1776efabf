// Package routingtable provides interfaces for routing-key based event routing.
//
// This package defines the core abstractions used by the eventsd server side:
//   - Subscriber: an entity that receives events (a websocket or gRPC session)
//   - Binding: a routing-key pattern bound by a subscriber, optionally in a shared group
//   - RoutingTable: the set of bindings and the lookup from routing key to subscribers
//
// The interfaces use Go idioms:
//   - context.Context for cancellation and timeouts
//   - Explicit error returns following Go conventions
//   - io.Closer for resource cleanup
//   - Slice returns for multiple results
//
// Example usage:
//
//	// Bind a session to a pattern
//	err := table.Bind(ctx, routingtable.Binding{
//		Pattern:    "orders.*",
//		Subscriber: session,
//	})
//	if err != nil {
//		return err
//	}
//
//	// Find every subscriber that should receive an event
//	subscribers, err := table.Route(ctx, "orders.created")
//	if err != nil {
//		return err
//	}
//	for _, sub := range subscribers {
//		deliver(sub, event)
//	}
//
// Pattern syntax:
//   - Routing keys and patterns are "."-separated segments
//   - "*" matches exactly one segment: "orders.*" matches "orders.created"
//   - "#" matches zero or more segments: "orders.#" matches "orders" and "orders.eu.created"
//
// Shared groups: bindings with the same pattern and the same non-empty Group
// share delivery. Each event routed to the group reaches exactly one of its
// members, chosen round-robin.
package routingtable
