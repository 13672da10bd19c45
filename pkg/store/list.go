package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentmem/memcore-go/pkg/keys"
)

// ListStore is the list-based backend: a single ordered sequence of
// entries across all namespaces, with case-insensitive substring
// matching against entry values.
//
// Retrieval scores a match by how early and how long it is; entries
// whose value does not contain the query are excluded entirely rather
// than scored at zero, so an unmatched query returns nothing.
type ListStore struct {
	baseStore

	// mu guards entries and every operation, retrieval included.
	mu sync.Mutex

	entries []*MemoryEntry
}

// NewListStore creates a list-based store with the given capacity
// limits. A nil caps map uses DefaultCapacities.
func NewListStore(caps Capacities) (*ListStore, error) {
	base, err := newBaseStore(caps)
	if err != nil {
		return nil, err
	}
	return &ListStore{baseStore: base}, nil
}

// Write stores value under (ns, key), overwriting in place when the slot
// is already occupied.
func (s *ListStore) Write(ctx context.Context, ns Namespace, key, value string, opts ...WriteOption) (int64, error) {
	if !ns.Valid() {
		return 0, ErrInvalidNamespace
	}
	o := NewWriteOptions(opts...)

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *MemoryEntry
	for _, e := range s.entries {
		if e.Namespace == ns && e.Key == key {
			existing = e
			break
		}
	}

	if existing != nil {
		content := keys.ContentHash(existing.SlotHash, value, o.Metadata)
		if content == existing.ContentHash {
			// Same slot, same content: an idempotent duplicate.
			s.log.Append(OpWrite, existing.ID, key, ns, map[string]interface{}{
				"duplicate":    true,
				"content_hash": content,
			})
			return existing.ID, nil
		}
		s.overwrite(existing, value, content, o)
		s.log.Append(OpUpdate, existing.ID, key, ns, map[string]interface{}{
			"action": "overwrite_same_key",
		})
		return existing.ID, nil
	}

	entry := s.newEntry(ns, key, value, o)
	s.entries = append(s.entries, entry)
	s.log.Append(OpWrite, entry.ID, key, ns, map[string]interface{}{
		"source":      string(o.Source),
		"trust_score": o.TrustScore,
	})

	count := 0
	for _, e := range s.entries {
		if e.Namespace == ns {
			count++
		}
	}
	if count > s.caps.Limit(ns) {
		s.evictLocked(&ns)
	}
	return entry.ID, nil
}

// overwrite rewrites an occupied slot in place: the entry keeps its ID,
// creation time, and accumulated metrics, while value, metadata, and
// provenance take the new write's values.
func (s *ListStore) overwrite(e *MemoryEntry, value, contentHash string, o WriteOptions) {
	e.Value = value
	e.ContentHash = contentHash
	e.Metadata = o.Metadata
	e.TTLSeconds = o.TTLSeconds
	e.Source = o.Source
	e.TrustScore = o.TrustScore
	e.UpdatedAt = time.Now()
	if e.Metrics != nil {
		e.Metrics.ImportanceScore = o.Importance
	}
}

// Retrieve returns up to k entries whose value contains query,
// case-insensitively, ranked by how early and how long the match is,
// with ties broken by recency.
func (s *ListStore) Retrieve(ctx context.Context, query string, k int, namespaces ...Namespace) ([]*MemoryEntry, error) {
	if err := validateNamespaces(namespaces); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	queryLower := strings.ToLower(query)

	type scoredEntry struct {
		score int
		entry *MemoryEntry
	}
	var scored []scoredEntry
	if query != "" && k > 0 {
		for _, e := range s.entries {
			if !inNamespaces(e.Namespace, namespaces) || e.IsExpired(now) {
				continue
			}
			valueLower := strings.ToLower(e.Value)
			pos := strings.Index(valueLower, queryLower)
			if pos < 0 {
				continue
			}
			// Earlier and longer matches rank first.
			scored = append(scored, scoredEntry{
				score: -pos - len(queryLower),
				entry: e,
			})
		}
		sort.SliceStable(scored, func(i, j int) bool {
			if scored[i].score != scored[j].score {
				return scored[i].score > scored[j].score
			}
			return scored[i].entry.UpdatedAt.After(scored[j].entry.UpdatedAt)
		})
		if len(scored) > k {
			scored = scored[:k]
		}
	}

	result := make([]*MemoryEntry, 0, len(scored))
	for _, se := range scored {
		se.entry.touch(now)
		result = append(result, se.entry)
	}

	s.log.Append(OpRetrieve, 0, query, "", map[string]interface{}{
		"query":   query,
		"k":       k,
		"results": len(result),
	})
	return result, nil
}

// Update rewrites the value of the entry with the given ID. Returns
// false if no such entry exists.
func (s *ListStore) Update(ctx context.Context, id int64, newValue string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ID == id {
			oldValue := e.Value
			rewriteValue(e, newValue)
			s.log.Append(OpUpdate, id, e.Key, e.Namespace, map[string]interface{}{
				"old": truncate(oldValue, 50),
				"new": truncate(newValue, 50),
			})
			return true
		}
	}
	return false
}

// Delete removes the entry with the given ID. Returns false if no such
// entry exists.
func (s *ListStore) Delete(ctx context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			s.log.Append(OpDelete, id, e.Key, e.Namespace, nil)
			return true
		}
	}
	return false
}

// AllEntries lists entries without touching access metrics or the log.
func (s *ListStore) AllEntries(namespaces ...Namespace) []*MemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*MemoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if inNamespaces(e.Namespace, namespaces) {
			out = append(out, e)
		}
	}
	return out
}

// Evict runs one eviction pass, per-namespace when one is given and
// global otherwise, and returns the evicted entry IDs.
func (s *ListStore) Evict(namespaces ...Namespace) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(namespaces) > 0 {
		ns := namespaces[0]
		return s.evictLocked(&ns)
	}
	return s.evictLocked(nil)
}

// evictLocked removes the least-recently-accessed entries. Callers hold mu.
func (s *ListStore) evictLocked(ns *Namespace) []int64 {
	var candidates []*MemoryEntry
	var keep int
	if ns != nil {
		for _, e := range s.entries {
			if e.Namespace == *ns {
				candidates = append(candidates, e)
			}
		}
		limit := s.caps.Limit(*ns)
		if len(candidates) <= limit {
			return []int64{}
		}
		keep = len(candidates) - (len(candidates) - limit + 1)
	} else {
		if len(s.entries) <= s.caps.Total() {
			return []int64{}
		}
		candidates = append(candidates, s.entries...)
		keep = len(candidates) - globalEvictBatch
		if keep < 0 {
			keep = 0
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return lastAccess(candidates[i]).Before(lastAccess(candidates[j]))
	})
	toEvict := candidates[:len(candidates)-keep]

	evicted := make(map[int64]bool, len(toEvict))
	evictedIDs := make([]int64, 0, len(toEvict))
	for _, e := range toEvict {
		evicted[e.ID] = true
		evictedIDs = append(evictedIDs, e.ID)
	}

	remaining := s.entries[:0]
	for _, e := range s.entries {
		if !evicted[e.ID] {
			remaining = append(remaining, e)
		}
	}
	s.entries = remaining

	logNS := Namespace("")
	if ns != nil {
		logNS = *ns
	}
	s.log.Append(OpEvict, 0, "eviction", logNS, map[string]interface{}{
		"evicted_count": len(evictedIDs),
		"policy":        "lru",
	})
	return evictedIDs
}

// Logs returns a snapshot of the last n operation records.
func (s *ListStore) Logs(lastN int) []MemoryLog {
	return s.log.Tail(lastN)
}

// Close is a no-op for the in-memory list backend.
func (s *ListStore) Close() error {
	return nil
}

// inNamespaces reports whether ns passes the filter; an empty filter
// passes everything.
func inNamespaces(ns Namespace, filter []Namespace) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == ns {
			return true
		}
	}
	return false
}

// lastAccess returns the timestamp LRU eviction orders by.
func lastAccess(e *MemoryEntry) time.Time {
	if e.Metrics != nil && !e.Metrics.LastAccessed.IsZero() {
		return e.Metrics.LastAccessed
	}
	return e.CreatedAt
}
