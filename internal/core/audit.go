package core

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// DefaultAuditCapacity bounds the in-memory audit log when no explicit
// capacity is supplied.
const DefaultAuditCapacity = 1024

// MemoryAuditLog is an append-only, capped audit sink. Once the bound is
// reached the oldest entries are dropped first.
type MemoryAuditLog struct {
	mu       sync.Mutex
	capacity int
	entries  []AuditEntry
}

// NewMemoryAuditLog constructs a capped audit log. Non-positive capacities
// fall back to DefaultAuditCapacity.
func NewMemoryAuditLog(capacity int) *MemoryAuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &MemoryAuditLog{capacity: capacity}
}

// Record appends an entry, evicting the oldest entry when full.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries[len(l.entries)-1] = entry
		return
	}
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of all retained entries, oldest first.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// FilterByCategory returns retained entries matching the category, oldest first.
func (l *MemoryAuditLog) FilterByCategory(category AuditCategory) []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []AuditEntry
	for _, entry := range l.entries {
		if entry.Category == category {
			out = append(out, entry)
		}
	}
	return out
}

// ExportJSON writes the retained entries as a JSON array.
func (l *MemoryAuditLog) ExportJSON(w io.Writer) error {
	entries := l.Entries()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
