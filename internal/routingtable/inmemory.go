package routingtable

import (
	"context"
	"sync"

	"github.com/rmacdonaldsmith/eventsd-go/pkg/routingtable"
)

type groupKey struct {
	pattern string
	group   string
}

// InMemoryRoutingTable implements the routingtable.RoutingTable interface
// with an ordered list of bindings. Lookups scan every binding, which is
// fine for the number of bindings a single eventsd process carries.
// It is safe for concurrent use.
type InMemoryRoutingTable struct {
	mu       sync.Mutex
	bindings []routingtable.Binding
	cursors  map[groupKey]uint64 // round-robin position per shared group
	closed   bool
}

// NewInMemoryRoutingTable creates an empty routing table.
func NewInMemoryRoutingTable() *InMemoryRoutingTable {
	return &InMemoryRoutingTable{
		cursors: make(map[groupKey]uint64),
	}
}

// Bind adds a binding.
func (rt *InMemoryRoutingTable) Bind(ctx context.Context, b routingtable.Binding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.Subscriber == nil {
		return routingtable.ErrNilSubscriber
	}
	if b.Pattern == "" {
		return routingtable.ErrEmptyPattern
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return routingtable.ErrClosed
	}
	rt.bindings = append(rt.bindings, b)
	return nil
}

// Unbind removes the first binding of subscriberID with pattern. An empty
// group matches any group.
func (rt *InMemoryRoutingTable) Unbind(ctx context.Context, pattern, group, subscriberID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return routingtable.ErrClosed
	}
	for i, b := range rt.bindings {
		if b.Pattern != pattern || b.Subscriber.ID() != subscriberID {
			continue
		}
		if group != "" && b.Group != group {
			continue
		}
		rt.bindings = append(rt.bindings[:i], rt.bindings[i+1:]...)
		rt.pruneCursor(groupKey{pattern: b.Pattern, group: b.Group})
		return nil
	}
	return routingtable.ErrBindingNotFound
}

// RemoveSubscriber removes every binding of subscriberID.
func (rt *InMemoryRoutingTable) RemoveSubscriber(ctx context.Context, subscriberID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return 0, routingtable.ErrClosed
	}

	kept := rt.bindings[:0]
	var removed []routingtable.Binding
	for _, b := range rt.bindings {
		if b.Subscriber.ID() == subscriberID {
			removed = append(removed, b)
			continue
		}
		kept = append(kept, b)
	}
	// Clear the tail so removed subscribers can be collected.
	for i := len(kept); i < len(rt.bindings); i++ {
		rt.bindings[i] = routingtable.Binding{}
	}
	rt.bindings = kept

	for _, b := range removed {
		rt.pruneCursor(groupKey{pattern: b.Pattern, group: b.Group})
	}
	return len(removed), nil
}

// Route resolves routingKey to subscribers. Ungrouped bindings each yield
// their subscriber; each matching shared group yields one member in turn.
func (rt *InMemoryRoutingTable) Route(ctx context.Context, routingKey string) ([]routingtable.Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil, routingtable.ErrClosed
	}

	var out []routingtable.Subscriber
	var groupOrder []groupKey
	members := make(map[groupKey][]routingtable.Subscriber)

	for _, b := range rt.bindings {
		if !routingtable.Match(b.Pattern, routingKey) {
			continue
		}
		if b.Group == "" {
			out = append(out, b.Subscriber)
			continue
		}
		key := groupKey{pattern: b.Pattern, group: b.Group}
		if _, seen := members[key]; !seen {
			groupOrder = append(groupOrder, key)
		}
		members[key] = append(members[key], b.Subscriber)
	}

	for _, key := range groupOrder {
		group := members[key]
		cursor := rt.cursors[key]
		out = append(out, group[cursor%uint64(len(group))])
		rt.cursors[key] = cursor + 1
	}
	return out, nil
}

// Bindings returns a copy of all bindings in bind order.
func (rt *InMemoryRoutingTable) Bindings(ctx context.Context) ([]routingtable.Binding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil, routingtable.ErrClosed
	}
	out := make([]routingtable.Binding, len(rt.bindings))
	copy(out, rt.bindings)
	return out, nil
}

// PatternCount returns the number of distinct patterns.
func (rt *InMemoryRoutingTable) PatternCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return 0, routingtable.ErrClosed
	}
	patterns := make(map[string]struct{})
	for _, b := range rt.bindings {
		patterns[b.Pattern] = struct{}{}
	}
	return len(patterns), nil
}

// SubscriberCount returns the number of distinct subscribers with bindings.
func (rt *InMemoryRoutingTable) SubscriberCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return 0, routingtable.ErrClosed
	}
	ids := make(map[string]struct{})
	for _, b := range rt.bindings {
		ids[b.Subscriber.ID()] = struct{}{}
	}
	return len(ids), nil
}

// Close clears the table. Further calls return routingtable.ErrClosed.
func (rt *InMemoryRoutingTable) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil // Already closed, idempotent
	}
	rt.bindings = nil
	rt.cursors = make(map[groupKey]uint64)
	rt.closed = true
	return nil
}

// pruneCursor drops the round-robin position of a group with no bindings left.
func (rt *InMemoryRoutingTable) pruneCursor(key groupKey) {
	if key.group == "" {
		return
	}
	for _, b := range rt.bindings {
		if b.Pattern == key.pattern && b.Group == key.group {
			return
		}
	}
	delete(rt.cursors, key)
}

// Verify that InMemoryRoutingTable implements the RoutingTable interface at compile time
var _ routingtable.RoutingTable = (*InMemoryRoutingTable)(nil)
