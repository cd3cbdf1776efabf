package eventlog

import (
	"context"
	"errors"
	"sync"

	"github.com/rmacdonaldsmith/eventsd-go/pkg/eventlog"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/routingtable"
)

// DefaultCapacity is used when NewInMemoryEventLog gets a capacity <= 0.
const DefaultCapacity = 1000

var (
	// ErrNegativeOffset is returned when a negative offset is provided
	ErrNegativeOffset = errors.New("offset cannot be negative")
	// ErrNegativeMaxCount is returned when a negative max count is provided
	ErrNegativeMaxCount = errors.New("max count cannot be negative")
	// ErrEmptyRoutingKey is returned when appending an event without routing key
	ErrEmptyRoutingKey = errors.New("routing key cannot be empty")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("event log closed")
)

// InMemoryEventLog implements the eventlog.EventLog interface with a bounded
// in-memory window. Offsets keep growing across evictions.
// It is safe for concurrent use.
type InMemoryEventLog struct {
	mu         sync.RWMutex
	capacity   int
	records    []eventlog.Record // oldest first, at most capacity
	nextOffset int64
	keyCounts  map[string]int64
	closed     bool
}

// NewInMemoryEventLog creates a log retaining up to capacity events.
func NewInMemoryEventLog(capacity int) *InMemoryEventLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemoryEventLog{
		capacity:  capacity,
		keyCounts: make(map[string]int64),
	}
}

// Append stores an event, evicting the oldest one when full.
func (log *InMemoryEventLog) Append(ctx context.Context, event eventlog.Event) (eventlog.Record, error) {
	if event.RoutingKey == "" {
		return eventlog.Record{}, ErrEmptyRoutingKey
	}

	// Check if context is cancelled
	if err := ctx.Err(); err != nil {
		return eventlog.Record{}, err
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	if log.closed {
		return eventlog.Record{}, ErrClosed
	}

	record := eventlog.Record{Offset: log.nextOffset, Event: event}
	log.nextOffset++
	log.keyCounts[event.RoutingKey]++

	if len(log.records) == log.capacity {
		copy(log.records, log.records[1:])
		log.records[len(log.records)-1] = record
	} else {
		log.records = append(log.records, record)
	}
	return record, nil
}

// ReadFrom returns retained records starting at startOffset.
func (log *InMemoryEventLog) ReadFrom(ctx context.Context, startOffset int64, maxCount int) ([]eventlog.Record, error) {
	if startOffset < 0 {
		return nil, ErrNegativeOffset
	}
	if maxCount < 0 {
		return nil, ErrNegativeMaxCount
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.mu.RLock()
	defer log.mu.RUnlock()

	if log.closed {
		return nil, ErrClosed
	}

	results := make([]eventlog.Record, 0, min(maxCount, len(log.records)))
	for _, r := range log.records {
		if len(results) >= maxCount {
			break
		}
		if r.Offset >= startOffset {
			results = append(results, r)
		}
	}
	return results, nil
}

// Recent returns the newest records matching pattern, oldest first.
func (log *InMemoryEventLog) Recent(ctx context.Context, pattern string, maxCount int) ([]eventlog.Record, error) {
	if maxCount < 0 {
		return nil, ErrNegativeMaxCount
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.mu.RLock()
	defer log.mu.RUnlock()

	if log.closed {
		return nil, ErrClosed
	}

	var newestFirst []eventlog.Record
	for i := len(log.records) - 1; i >= 0 && len(newestFirst) < maxCount; i-- {
		r := log.records[i]
		if pattern == "" || routingtable.Match(pattern, r.RoutingKey) {
			newestFirst = append(newestFirst, r)
		}
	}

	results := make([]eventlog.Record, len(newestFirst))
	for i, r := range newestFirst {
		results[len(newestFirst)-1-i] = r
	}
	return results, nil
}

// EndOffset returns the offset of the next appended event.
func (log *InMemoryEventLog) EndOffset(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	log.mu.RLock()
	defer log.mu.RUnlock()
	return log.nextOffset, nil
}

// GetStatistics returns aggregate statistics.
func (log *InMemoryEventLog) GetStatistics(ctx context.Context) (eventlog.Statistics, error) {
	if err := ctx.Err(); err != nil {
		return eventlog.Statistics{}, err
	}

	log.mu.RLock()
	defer log.mu.RUnlock()

	counts := make(map[string]int64, len(log.keyCounts))
	for k, v := range log.keyCounts {
		counts[k] = v
	}
	return eventlog.Statistics{
		TotalEvents:    log.nextOffset,
		RetainedEvents: len(log.records),
		KeyCounts:      counts,
	}, nil
}

// Close drops all retained events.
func (log *InMemoryEventLog) Close() error {
	log.mu.Lock()
	defer log.mu.Unlock()

	if log.closed {
		return nil // Already closed, idempotent
	}
	log.records = nil
	log.keyCounts = make(map[string]int64)
	log.closed = true
	return nil
}

// Verify that InMemoryEventLog implements the EventLog interface at compile time
var _ eventlog.EventLog = (*InMemoryEventLog)(nil)
