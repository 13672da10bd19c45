package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentmem/memcore-go/pkg/keys"
)

// KVStore is the keyed-map backend: one key-to-entry map per namespace,
// with O(1) latest-write-wins upserts and case-insensitive substring
// matching against keys (not values).
//
// Results are ordered by descending trust score, then by recency. That
// ordering is a deliberate test surface: a highly trusted-looking
// injected entry can out-rank a legitimate low-trust entry, because the
// store performs no independent safety filtering. That responsibility
// sits above this layer.
type KVStore struct {
	baseStore

	// mu guards store and every operation, retrieval included.
	mu sync.Mutex

	store map[Namespace]map[string]*MemoryEntry
}

// NewKVStore creates a keyed-map store with the given capacity limits.
// A nil caps map uses DefaultCapacities.
func NewKVStore(caps Capacities) (*KVStore, error) {
	base, err := newBaseStore(caps)
	if err != nil {
		return nil, err
	}
	maps := make(map[Namespace]map[string]*MemoryEntry, len(Namespaces()))
	for _, ns := range Namespaces() {
		maps[ns] = make(map[string]*MemoryEntry)
	}
	return &KVStore{baseStore: base, store: maps}, nil
}

// Write upserts value under (ns, key), latest write wins.
func (s *KVStore) Write(ctx context.Context, ns Namespace, key, value string, opts ...WriteOption) (int64, error) {
	if !ns.Valid() {
		return 0, ErrInvalidNamespace
	}
	o := NewWriteOptions(opts...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.store[ns][key]; ok {
		content := keys.ContentHash(existing.SlotHash, value, o.Metadata)
		if content == existing.ContentHash {
			s.log.Append(OpWrite, existing.ID, key, ns, map[string]interface{}{
				"duplicate":    true,
				"content_hash": content,
			})
			return existing.ID, nil
		}
		existing.Value = value
		existing.ContentHash = content
		existing.Metadata = o.Metadata
		existing.TTLSeconds = o.TTLSeconds
		existing.Source = o.Source
		existing.TrustScore = o.TrustScore
		existing.UpdatedAt = time.Now()
		if existing.Metrics != nil {
			existing.Metrics.ImportanceScore = o.Importance
		}
		s.log.Append(OpUpdate, existing.ID, key, ns, map[string]interface{}{
			"source":    string(o.Source),
			"is_update": true,
		})
		return existing.ID, nil
	}

	entry := s.newEntry(ns, key, value, o)
	s.store[ns][key] = entry
	s.log.Append(OpWrite, entry.ID, key, ns, map[string]interface{}{
		"source":    string(o.Source),
		"is_update": false,
	})

	if len(s.store[ns]) > s.caps.Limit(ns) {
		s.evictLocked(&ns)
	}
	return entry.ID, nil
}

// Retrieve returns up to k entries whose key contains query,
// case-insensitively, ordered by descending trust score and then by
// recency.
func (s *KVStore) Retrieve(ctx context.Context, query string, k int, namespaces ...Namespace) ([]*MemoryEntry, error) {
	if err := validateNamespaces(namespaces); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	queryLower := strings.ToLower(query)

	var candidates []*MemoryEntry
	if query != "" && k > 0 {
		search := namespaces
		if len(search) == 0 {
			search = Namespaces()
		}
		for _, ns := range search {
			for key, entry := range s.store[ns] {
				if entry.IsExpired(now) {
					continue
				}
				if strings.Contains(strings.ToLower(key), queryLower) {
					candidates = append(candidates, entry)
				}
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].TrustScore != candidates[j].TrustScore {
				return candidates[i].TrustScore > candidates[j].TrustScore
			}
			return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
		})
		if len(candidates) > k {
			candidates = candidates[:k]
		}
	}

	for _, e := range candidates {
		e.touch(now)
	}

	s.log.Append(OpRetrieve, 0, query, "", map[string]interface{}{
		"query":   query,
		"k":       k,
		"results": len(candidates),
	})
	return candidates, nil
}

// Update rewrites the value of the entry with the given ID. Returns
// false if no such entry exists.
func (s *KVStore) Update(ctx context.Context, id int64, newValue string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, nsMap := range s.store {
		for _, e := range nsMap {
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
	}
	return false
}

// Delete removes the entry with the given ID. Returns false if no such
// entry exists.
func (s *KVStore) Delete(ctx context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ns, nsMap := range s.store {
		for key, e := range nsMap {
			if e.ID == id {
				delete(nsMap, key)
				s.log.Append(OpDelete, id, key, ns, nil)
				return true
			}
		}
	}
	return false
}

// AllEntries lists entries without touching access metrics or the log.
func (s *KVStore) AllEntries(namespaces ...Namespace) []*MemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*MemoryEntry
	search := namespaces
	if len(search) == 0 {
		search = Namespaces()
	}
	for _, ns := range search {
		for _, e := range s.store[ns] {
			out = append(out, e)
		}
	}
	return out
}

// Evict runs one eviction pass, per-namespace when one is given and
// global otherwise, and returns the evicted entry IDs.
func (s *KVStore) Evict(namespaces ...Namespace) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(namespaces) > 0 {
		ns := namespaces[0]
		return s.evictLocked(&ns)
	}
	return s.evictLocked(nil)
}

// evictLocked removes the least-recently-accessed entries. Callers hold mu.
func (s *KVStore) evictLocked(ns *Namespace) []int64 {
	var candidates []*MemoryEntry
	var evictCount int
	if ns != nil {
		nsMap := s.store[*ns]
		limit := s.caps.Limit(*ns)
		if len(nsMap) <= limit {
			return []int64{}
		}
		for _, e := range nsMap {
			candidates = append(candidates, e)
		}
		evictCount = len(candidates) - limit + 1
	} else {
		total := 0
		for _, nsMap := range s.store {
			total += len(nsMap)
			for _, e := range nsMap {
				candidates = append(candidates, e)
			}
		}
		if total <= s.caps.Total() {
			return []int64{}
		}
		evictCount = globalEvictBatch
		if evictCount > len(candidates) {
			evictCount = len(candidates)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return lastAccess(candidates[i]).Before(lastAccess(candidates[j]))
	})

	evictedIDs := make([]int64, 0, evictCount)
	for _, e := range candidates[:evictCount] {
		delete(s.store[e.Namespace], e.Key)
		evictedIDs = append(evictedIDs, e.ID)
	}

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
func (s *KVStore) Logs(lastN int) []MemoryLog {
	return s.log.Tail(lastN)
}

// Close is a no-op for the in-memory keyed-map backend.
func (s *KVStore) Close() error {
	return nil
}
