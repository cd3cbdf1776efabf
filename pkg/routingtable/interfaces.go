package routingtable

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNilSubscriber is returned when binding without a subscriber.
	ErrNilSubscriber = errors.New("subscriber cannot be nil")
	// ErrEmptyPattern is returned when binding an empty pattern.
	ErrEmptyPattern = errors.New("pattern cannot be empty")
	// ErrBindingNotFound is returned by Unbind when nothing matched.
	ErrBindingNotFound = errors.New("binding not found")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("routing table closed")
)

// Binding is one routing-key pattern bound by a subscriber.
type Binding struct {
	// Pattern is the routing-key pattern, possibly with wildcards.
	Pattern string

	// Group is the shared-delivery group. Empty means the subscriber gets
	// every matching event on its own.
	Group string

	// Subscriber receives the matching events.
	Subscriber Subscriber
}

// RoutingTable manages pattern bindings and resolves routing keys to subscribers.
type RoutingTable interface {
	io.Closer

	// Bind adds a binding. A subscriber may bind the same pattern several
	// times; every binding delivers independently.
	Bind(ctx context.Context, b Binding) error

	// Unbind removes the first binding of subscriberID with the given
	// pattern. An empty group matches a binding in any group.
	Unbind(ctx context.Context, pattern, group, subscriberID string) error

	// RemoveSubscriber removes every binding of a subscriber and returns
	// how many were removed.
	RemoveSubscriber(ctx context.Context, subscriberID string) (int, error)

	// Route returns the subscribers an event with routingKey goes to: one
	// entry per matching ungrouped binding plus one member per matching
	// shared group.
	Route(ctx context.Context, routingKey string) ([]Subscriber, error)

	// Bindings returns all current bindings in bind order.
	Bindings(ctx context.Context) ([]Binding, error)

	// PatternCount returns the number of distinct bound patterns.
	PatternCount(ctx context.Context) (int, error)

	// SubscriberCount returns the number of distinct subscribers with bindings.
	SubscriberCount(ctx context.Context) (int, error)
}
