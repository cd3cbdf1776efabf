package eventlog

import (
	"context"
	"io"
)

// EventLog retains the most recent published events.
type EventLog interface {
	io.Closer

	// Append stores an event and returns it with its assigned offset.
	// The oldest events are evicted once the log is full.
	Append(ctx context.Context, event Event) (Record, error)

	// ReadFrom returns retained records with offset >= startOffset, oldest
	// first, up to maxCount.
	ReadFrom(ctx context.Context, startOffset int64, maxCount int) ([]Record, error)

	// Recent returns up to maxCount of the newest records whose routing key
	// matches pattern, oldest first. An empty pattern matches everything.
	Recent(ctx context.Context, pattern string, maxCount int) ([]Record, error)

	// EndOffset returns the offset the next appended event will get.
	EndOffset(ctx context.Context) (int64, error)

	// GetStatistics returns aggregate statistics about the log.
	GetStatistics(ctx context.Context) (Statistics, error)
}

// Statistics provides aggregate statistics about the event log
type Statistics struct {
	TotalEvents    int64            `json:"totalEvents"`    // Events appended since start
	RetainedEvents int              `json:"retainedEvents"` // Events currently held
	KeyCounts      map[string]int64 `json:"keyCounts"`      // Events appended per routing key
}
