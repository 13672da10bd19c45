package store

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/agentmem/memcore-go/pkg/keys"
	"github.com/agentmem/memcore-go/pkg/ranking"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidNamespace indicates a namespace outside the fixed set
	// was passed. This is a caller contract violation, not a runtime
	// condition, and fails fast.
	ErrInvalidNamespace = errors.New("invalid namespace")

	// ErrStorageOperation indicates that a backend storage operation failed.
	ErrStorageOperation = errors.New("storage operation failed")
)

// globalEvictBatch is how many entries a cross-namespace eviction pass
// removes once the aggregate capacity is exceeded.
const globalEvictBatch = 10

// Capacities maps each namespace to its maximum entry count. Exceeding
// a namespace's capacity is the only trigger for eviction; there is no
// background sweeper.
//
// The map may be partial: namespaces left out fall back to the Limit
// default for per-namespace eviction, but do not contribute to Total.
// A partial map therefore sets a global eviction threshold below the
// sum of the effective per-namespace limits; a full map (such as
// DefaultCapacities, or the merged map the core config produces) keeps
// the two aligned.
type Capacities map[Namespace]int

// DefaultCapacities returns the standard per-namespace limits.
func DefaultCapacities() Capacities {
	return Capacities{
		NamespaceEpisodic:    100,
		NamespaceSemantic:    100,
		NamespacePreferences: 50,
		NamespaceToolTraces:  100,
		NamespaceSkills:      50,
		NamespaceWorking:     20,
	}
}

// Limit returns the capacity for ns, defaulting to 100 when unset.
func (c Capacities) Limit(ns Namespace) int {
	if limit, ok := c[ns]; ok {
		return limit
	}
	return 100
}

// Total returns the aggregate of the explicitly configured limits.
// This is the budget the global eviction pass enforces; namespaces
// absent from the map do not contribute.
func (c Capacities) Total() int {
	total := 0
	for _, limit := range c {
		total += limit
	}
	return total
}

// Store is the capability set every memory backend provides.
//
// Backend selection happens once at construction and is never switched
// at runtime. All implementations guard every operation with internal
// locking: retrieval mutates access metrics as a side effect of a
// nominally read operation, so even reads need the same exclusion as
// writes.
type Store interface {
	// Write stores value under (ns, key) and returns the entry ID.
	//
	// Writing to an already-occupied slot is a latest-write-wins
	// overwrite, unless the content hash is unchanged, in which case
	// the write is an idempotent duplicate and the existing ID is
	// returned. Every write appends a log record, and a write that
	// pushes the namespace over its capacity triggers an eviction pass
	// before returning. An invalid namespace fails fast.
	Write(ctx context.Context, ns Namespace, key, value string, opts ...WriteOption) (int64, error)

	// Retrieve returns up to k entries matching query, best first.
	//
	// Matching strategy and result ordering are backend-specific.
	// Expired entries are excluded. An empty or unmatched query returns
	// an empty slice, never an error; there is no fallback to
	// recency-only browsing. Every returned entry has its access
	// metrics bumped, and one retrieve record is appended per call.
	Retrieve(ctx context.Context, query string, k int, namespaces ...Namespace) ([]*MemoryEntry, error)

	// Update rewrites the value and timestamp of the entry with the
	// given ID. Returns false if no such entry exists; not-found is a
	// boolean signal, never an error.
	Update(ctx context.Context, id int64, newValue string) bool

	// Delete removes the entry with the given ID. Returns false if no
	// such entry exists.
	Delete(ctx context.Context, id int64) bool

	// AllEntries lists entries, optionally filtered to one namespace.
	//
	// This is an administrative listing: no log record, no metric
	// mutation, so introspection is never confused with genuine agent
	// reads.
	AllEntries(namespaces ...Namespace) []*MemoryEntry

	// Evict runs one eviction pass and returns the evicted entry IDs.
	//
	// With a namespace it removes the least-recently-accessed entries
	// down past that namespace's limit; without one it removes a fixed
	// batch of the globally least-recently-accessed entries, and only
	// when the configured aggregate budget (Capacities.Total) is
	// exceeded. Returns an empty slice when at or under capacity.
	Evict(namespaces ...Namespace) []int64

	// Logs returns a snapshot of the last n operation records, or all
	// of them if n <= 0.
	Logs(lastN int) []MemoryLog

	// Close releases any resources held by the backend.
	Close() error
}

// baseStore carries the state shared by every backend: capacity limits,
// the audit log, and the entry ID generator.
type baseStore struct {
	caps Capacities
	log  *AuditLog
	node *snowflake.Node
}

// newBaseStore builds the shared backend state. A nil caps map gets the
// default limits.
func newBaseStore(caps Capacities) (baseStore, error) {
	if caps == nil {
		caps = DefaultCapacities()
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		return baseStore{}, err
	}
	return baseStore{
		caps: caps,
		log:  &AuditLog{},
		node: node,
	}, nil
}

// newEntry assembles a MemoryEntry for a write, deriving its slot and
// content hashes and seeding fresh metrics.
func (b *baseStore) newEntry(ns Namespace, key, value string, o WriteOptions) *MemoryEntry {
	now := time.Now()
	slot := keys.SlotHash(slotType(ns), key)
	metrics := ranking.NewMetrics(o.Importance)
	metrics.CreatedAt = now
	metrics.LastAccessed = now
	return &MemoryEntry{
		ID:          b.node.Generate().Int64(),
		Namespace:   ns,
		Key:         key,
		Value:       value,
		SlotHash:    slot,
		ContentHash: keys.ContentHash(slot, value, o.Metadata),
		Metadata:    o.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
		TTLSeconds:  o.TTLSeconds,
		Source:      o.Source,
		TrustScore:  o.TrustScore,
		Metrics:     metrics,
	}
}

// rewriteValue applies an Update to an existing entry: new value, new
// timestamp, recomputed content hash. The slot hash never changes.
func rewriteValue(e *MemoryEntry, newValue string) {
	e.Value = newValue
	e.UpdatedAt = time.Now()
	e.ContentHash = keys.ContentHash(e.SlotHash, newValue, e.Metadata)
}

// validateNamespaces fails fast on any namespace outside the fixed set.
func validateNamespaces(namespaces []Namespace) error {
	for _, ns := range namespaces {
		if !ns.Valid() {
			return ErrInvalidNamespace
		}
	}
	return nil
}

// truncate shortens s for log details.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
