// Package eventlog provides interfaces for retaining recently published events.
//
// This package defines the abstractions for the eventsd event log:
//   - Event: a published event as pushed to subscribers (time, microtime, msg, id, routingKey)
//   - Record: an Event with the offset the log assigned to it
//   - EventLog: a bounded, append-only log the server keeps for inspection
//
// The log is not a delivery mechanism. Subscribers only ever receive events
// published while they are bound; the log lets operators look at what went
// through the bus recently.
//
// Example usage:
//
//	// Append an event
//	record, err := log.Append(ctx, eventlog.NewEvent("orders.created", payload))
//	if err != nil {
//		return err
//	}
//
//	// The 50 most recent events matching a pattern
//	records, err := log.Recent(ctx, "orders.#", 50)
//	if err != nil {
//		return err
//	}
package eventlog
