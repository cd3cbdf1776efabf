// Package eventsclient is a subscription client for the eventsd routing-key
// event bus.
//
// The client keeps the set of routing-key interests the caller wants in a
// local registry that outlives any single connection:
//   - AddKey / RemoveKey mutate the registry and, while connected, send one
//     incremental bind ("consume") or unbind ("stop") to the server
//   - every time the transport (re)connects, the whole registry is replayed
//     as binds, in insertion order, before the connected observers run
//   - Stop unbinds every entry, closes the connection and calls back
//
// Events pushed by the server are delivered unmodified to the OnEvent
// observers in arrival order. The client never matches patterns itself.
//
// Example usage:
//
//	client, err := eventsclient.NewClient(eventsclient.Config{
//		Keys: []eventsclient.Interest{{RoutingKey: "event.testEvent.#"}},
//	})
//	if err != nil {
//		return err
//	}
//
//	client.OnEvent(func(e eventsclient.Event) {
//		fmt.Println(e.RoutingKey, e.Msg)
//	})
//	client.Start()
//
//	// Interests may change at any time; they survive reconnects.
//	client.AddKey(map[string]any{"routingKey": "orders.*", "id": "billing"})
//	client.RemoveKey("event.testEvent.#")
//
//	client.Stop(func() { fmt.Println("stopped") })
package eventsclient
