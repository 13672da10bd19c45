package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation names a kind of store operation in the audit log.
type Operation string

const (
	// OpWrite records the creation of a new entry.
	OpWrite Operation = "write"

	// OpUpdate records an in-place rewrite of an existing entry.
	OpUpdate Operation = "update"

	// OpRetrieve records one retrieval call (not each returned entry,
	// to bound log growth).
	OpRetrieve Operation = "retrieve"

	// OpDelete records the removal of an entry by ID.
	OpDelete Operation = "delete"

	// OpEvict records one eviction pass.
	OpEvict Operation = "evict"
)

// MemoryLog is one immutable record in the append-only operation log.
//
// Records are owned exclusively by the store instance that produced them
// and are never mutated after append.
type MemoryLog struct {
	// RecordID uniquely identifies this log record.
	RecordID string `json:"record_id"`

	// Operation is the kind of operation recorded.
	Operation Operation `json:"operation"`

	// Timestamp is when the operation happened.
	Timestamp time.Time `json:"timestamp"`

	// EntryID identifies the affected entry. Zero for operations that
	// touch multiple entries (retrieve, evict); details carry the rest.
	EntryID int64 `json:"entry_id,omitempty"`

	// EntryKey is the canonical key of the affected entry, or the query
	// for retrieve records.
	EntryKey string `json:"entry_key"`

	// Namespace is the namespace the operation targeted. Empty for
	// cross-namespace operations.
	Namespace Namespace `json:"namespace,omitempty"`

	// Details carries free-form operation context (source, result
	// counts, eviction policy, ...).
	Details map[string]interface{} `json:"details,omitempty"`
}

// AuditLog is the append-only operation log shared by all backends.
//
// Appends and reads take the same lock; Tail hands out a copied slice so
// readers never observe a record mid-append.
type AuditLog struct {
	mu      sync.Mutex
	records []MemoryLog
}

// Append adds one record to the log.
func (l *AuditLog) Append(op Operation, entryID int64, entryKey string, ns Namespace, details map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, MemoryLog{
		RecordID:  uuid.NewString(),
		Operation: op,
		Timestamp: time.Now(),
		EntryID:   entryID,
		EntryKey:  entryKey,
		Namespace: ns,
		Details:   details,
	})
}

// Tail returns a copy of the last n records, or all records if n <= 0.
func (l *AuditLog) Tail(n int) []MemoryLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := 0
	if n > 0 && n < len(l.records) {
		start = len(l.records) - n
	}
	out := make([]MemoryLog, len(l.records)-start)
	copy(out, l.records[start:])
	return out
}
