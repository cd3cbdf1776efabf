package eventlog

import (
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	event := NewEvent("orders.created", "payload")

	if event.RoutingKey != "orders.created" {
		t.Errorf("Expected routing key orders.created, got %s", event.RoutingKey)
	}
	if event.Msg != "payload" {
		t.Errorf("Expected msg payload, got %v", event.Msg)
	}
	if event.ID == "" {
		t.Error("Expected an event ID")
	}
	if time.Since(time.UnixMilli(event.Time)) > time.Second {
		t.Error("Expected timestamp to be recent")
	}
}

func TestNewEventAt(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)
	event := NewEventAt("a", nil, now)

	if event.Time != now.UnixMilli() {
		t.Errorf("Expected time %d, got %d", now.UnixMilli(), event.Time)
	}
	want := float64(now.Unix()) + 0.123456
	if diff := event.Microtime - want; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("Expected microtime %f, got %f", want, event.Microtime)
	}

	other := NewEventAt("a", nil, now)
	if other.ID == event.ID {
		t.Error("Expected distinct IDs")
	}
}
