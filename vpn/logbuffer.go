package vpn

import (
	"time"

	"github.com/google/uuid"
)

// LogEntry is one line of the session event log. Entries are never
// modified after Append returns them.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
}

// LogBuffer is a bounded FIFO of log entries, oldest first.
// It is not safe for concurrent use; the Manager serializes access.
type LogBuffer struct {
	entries  []LogEntry
	capacity int
	now      func() time.Time
}

// NewLogBuffer creates a buffer holding at most capacity entries.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &LogBuffer{
		entries:  make([]LogEntry, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Append stamps a new entry and evicts from the front while over capacity.
func (b *LogBuffer) Append(message string, severity Severity) LogEntry {
	entry := LogEntry{
		ID:        uuid.NewString(),
		Timestamp: b.now(),
		Message:   message,
		Severity:  severity,
	}

	b.entries = append(b.entries, entry)
	if over := len(b.entries) - b.capacity; over > 0 {
		// Shift down instead of reslicing so the backing array stays bounded.
		n := copy(b.entries, b.entries[over:])
		clear(b.entries[n:])
		b.entries = b.entries[:n]
	}
	return entry
}

// Snapshot returns a copy of the entries, oldest to newest.
func (b *LogBuffer) Snapshot() []LogEntry {
	out := make([]LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of entries held.
func (b *LogBuffer) Len() int {
	return len(b.entries)
}

// Cap returns the buffer capacity.
func (b *LogBuffer) Cap() int {
	return b.capacity
}
