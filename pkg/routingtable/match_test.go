package routingtable

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"orders.created", "orders.created", true},
		{"orders.created", "orders.updated", false},
		{"orders.*", "orders.created", true},
		{"orders.*", "orders", false},
		{"orders.*", "orders.eu.created", false},
		{"*.created", "orders.created", true},
		{"*", "orders", true},
		{"*", "", true},
		{"#", "anything.at.all", true},
		{"#", "", true},
		{"orders.#", "orders", true},
		{"orders.#", "orders.eu.created", true},
		{"orders.#", "payments.created", false},
		{"event.testEvent.#", "event.testEvent", true},
		{"event.testEvent.#", "event.testEvent.a.b", true},
		{"#.created", "orders.eu.created", true},
		{"#.created", "created", true},
		{"#.created", "orders.updated", false},
		{"a.#.z", "a.z", true},
		{"a.#.z", "a.b.c.z", true},
		{"a.#.z", "a.b.c", false},
		{"a.*.#", "a", false},
		{"a.*.#", "a.b", true},
		{"a.#.#", "a.b", true},
		{"orders", "orders.created", false},
	}

	for _, tt := range tests {
		if got := Match(tt.pattern, tt.key); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.key, got, tt.want)
		}
	}
}

func TestSubscriberType_String(t *testing.T) {
	if WebSocketClient.String() != "websocket" {
		t.Errorf("Expected websocket, got %s", WebSocketClient)
	}
	if GRPCClient.String() != "grpc" {
		t.Errorf("Expected grpc, got %s", GRPCClient)
	}
	if SubscriberType(9).String() != "unknown" {
		t.Errorf("Expected unknown, got %s", SubscriberType(9))
	}
}
