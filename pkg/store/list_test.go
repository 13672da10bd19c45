package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/memcore-go/pkg/store"
)

func newListStore(t *testing.T, caps store.Capacities) *store.ListStore {
	t.Helper()
	s, err := store.NewListStore(caps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestListStoreWriteAndRetrieve(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	id, err := s.Write(ctx, store.NamespaceSemantic, "user|alice|language", "Alice prefers Go")
	require.NoError(t, err)
	assert.NotZero(t, id)

	results, err := s.Retrieve(ctx, "prefers", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.Equal(t, "Alice prefers Go", results[0].Value)
	assert.NotEmpty(t, results[0].SlotHash)
	assert.NotEmpty(t, results[0].ContentHash)
}

func TestListStoreRejectsInvalidNamespace(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	_, err := s.Write(ctx, store.Namespace("bogus"), "k", "v")
	assert.ErrorIs(t, err, store.ErrInvalidNamespace)

	_, err = s.Retrieve(ctx, "q", 5, store.Namespace("bogus"))
	assert.ErrorIs(t, err, store.ErrInvalidNamespace)
}

func TestListStoreRetrieveScoring(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	// The query appears later in the first value than in the second, so
	// the second ranks first.
	_, err := s.Write(ctx, store.NamespaceSemantic, "k1", "the database runs postgres")
	require.NoError(t, err)
	_, err = s.Write(ctx, store.NamespaceSemantic, "k2", "postgres is the database")
	require.NoError(t, err)

	results, err := s.Retrieve(ctx, "postgres", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "postgres is the database", results[0].Value)
	assert.Equal(t, "the database runs postgres", results[1].Value)
}

func TestListStoreRetrieveCaseInsensitive(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	_, err := s.Write(ctx, store.NamespaceSemantic, "k", "Alice Prefers GO")
	require.NoError(t, err)

	results, err := s.Retrieve(ctx, "prefers go", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestListStoreRetrieveEmptyResults(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	_, err := s.Write(ctx, store.NamespaceSemantic, "k", "some fact")
	require.NoError(t, err)

	tests := []struct {
		name  string
		query string
		k     int
	}{
		{name: "no match", query: "unrelated", k: 5},
		{name: "empty query", query: "", k: 5},
		{name: "zero k", query: "fact", k: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.Retrieve(ctx, tt.query, tt.k)
			require.NoError(t, err)
			assert.Empty(t, results, "unmatched retrieval returns empty, never errors")
		})
	}
}

func TestListStoreNamespaceIsolation(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	// The same key string under three namespaces yields three
	// independent entries.
	for _, ns := range []store.Namespace{
		store.NamespaceSemantic, store.NamespaceEpisodic, store.NamespacePreferences,
	} {
		_, err := s.Write(ctx, ns, "shared|key", fmt.Sprintf("shared term in %s", ns))
		require.NoError(t, err)
	}
	assert.Len(t, s.AllEntries(), 3)

	results, err := s.Retrieve(ctx, "shared term", 10, store.NamespaceSemantic)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, store.NamespaceSemantic, results[0].Namespace)

	results, err = s.Retrieve(ctx, "shared term", 10)
	require.NoError(t, err)
	assert.Len(t, results, 3, "no filter searches every namespace")
}

func TestListStoreTTLExclusion(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	_, err := s.Write(ctx, store.NamespaceWorking, "thread:t1|turns:0-4",
		"ephemeral context", store.WithTTL(1))
	require.NoError(t, err)

	// Backdate creation past the TTL instead of sleeping through it.
	entries := s.AllEntries(store.NamespaceWorking)
	require.Len(t, entries, 1)
	entries[0].CreatedAt = time.Now().Add(-2 * time.Second)

	results, err := s.Retrieve(ctx, "ephemeral", 5)
	require.NoError(t, err)
	assert.Empty(t, results, "expired entries are excluded from retrieval")

	assert.Len(t, s.AllEntries(store.NamespaceWorking), 1,
		"expiry excludes, it does not delete")
}

func TestListStoreRetrieveBumpsMetrics(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	_, err := s.Write(ctx, store.NamespaceSemantic, "k", "a fact")
	require.NoError(t, err)

	before := len(s.Logs(0))
	results, err := s.Retrieve(ctx, "fact", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Metrics.AccessCount)

	logs := s.Logs(0)
	assert.Len(t, logs, before+1, "one retrieve record per call, not per result")
	assert.Equal(t, store.OpRetrieve, logs[len(logs)-1].Operation)

	_, err = s.Retrieve(ctx, "fact", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, results[0].Metrics.AccessCount)
}

func TestListStoreAllEntriesIsPure(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	_, err := s.Write(ctx, store.NamespaceSemantic, "k", "a fact")
	require.NoError(t, err)

	logsBefore := len(s.Logs(0))
	entries := s.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Metrics.AccessCount, "listing never counts as access")
	assert.Len(t, s.Logs(0), logsBefore, "listing appends no log record")
}

func TestListStoreDuplicateWriteIsIdempotent(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	id1, err := s.Write(ctx, store.NamespaceSemantic, "k", "same value")
	require.NoError(t, err)
	id2, err := s.Write(ctx, store.NamespaceSemantic, "k", "same value")
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "identical content returns the existing ID")
	assert.Len(t, s.AllEntries(), 1)

	logs := s.Logs(1)
	require.Len(t, logs, 1)
	assert.Equal(t, store.OpWrite, logs[0].Operation)
	assert.Equal(t, true, logs[0].Details["duplicate"])
}

func TestListStoreOverwriteSameKey(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	id1, err := s.Write(ctx, store.NamespaceSemantic, "k", "old value")
	require.NoError(t, err)

	original := s.AllEntries()[0]
	createdAt := original.CreatedAt
	slotHash := original.SlotHash
	contentHash := original.ContentHash

	id2, err := s.Write(ctx, store.NamespaceSemantic, "k", "new value")
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "overwriting a slot preserves the entry ID")
	entries := s.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "new value", entries[0].Value)
	assert.Equal(t, createdAt, entries[0].CreatedAt)
	assert.Equal(t, slotHash, entries[0].SlotHash, "slot hash survives overwrites")
	assert.NotEqual(t, contentHash, entries[0].ContentHash)

	logs := s.Logs(1)
	require.Len(t, logs, 1)
	assert.Equal(t, store.OpUpdate, logs[0].Operation)
}

func TestListStoreUpdateAndDelete(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	id, err := s.Write(ctx, store.NamespaceSemantic, "k", "v1")
	require.NoError(t, err)

	assert.True(t, s.Update(ctx, id, "v2"))
	entries := s.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "v2", entries[0].Value)

	assert.False(t, s.Update(ctx, 999999, "v3"), "unknown ID is a boolean miss")
	assert.True(t, s.Delete(ctx, id))
	assert.False(t, s.Delete(ctx, id), "second delete misses")
	assert.Empty(t, s.AllEntries())
}

func TestListStoreCapacityEviction(t *testing.T) {
	s := newListStore(t, store.Capacities{store.NamespaceSemantic: 5})
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := s.Write(ctx, store.NamespaceSemantic,
			fmt.Sprintf("key-%d", i), fmt.Sprintf("fact number %d", i))
		require.NoError(t, err)
	}

	entries := s.AllEntries(store.NamespaceSemantic)
	assert.Len(t, entries, 4, "the overflow pass removes down past the limit")

	keys := make(map[string]bool)
	for _, e := range entries {
		keys[e.Key] = true
	}
	assert.False(t, keys["key-0"], "oldest entries go first")
	assert.False(t, keys["key-1"])
	assert.True(t, keys["key-5"], "the newest write survives")

	logs := s.Logs(1)
	require.Len(t, logs, 1)
	assert.Equal(t, store.OpEvict, logs[0].Operation)
	assert.Equal(t, "lru", logs[0].Details["policy"])
}

func TestListStoreEvictPrefersLeastRecentlyAccessed(t *testing.T) {
	s := newListStore(t, store.Capacities{store.NamespaceSemantic: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Write(ctx, store.NamespaceSemantic,
			fmt.Sprintf("key-%d", i), fmt.Sprintf("unique-%d", i))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	// Refresh key-0 so key-1 becomes the coldest entry.
	_, err := s.Retrieve(ctx, "unique-0", 1)
	require.NoError(t, err)

	_, err = s.Write(ctx, store.NamespaceSemantic, "key-3", "unique-3")
	require.NoError(t, err)

	keys := make(map[string]bool)
	for _, e := range s.AllEntries(store.NamespaceSemantic) {
		keys[e.Key] = true
	}
	assert.True(t, keys["key-0"], "recently accessed entries survive eviction")
	assert.False(t, keys["key-1"])
	assert.False(t, keys["key-2"])
	assert.True(t, keys["key-3"])
}

func TestListStoreExplicitEvictUnderCapacityIsNoop(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	_, err := s.Write(ctx, store.NamespaceSemantic, "k", "v")
	require.NoError(t, err)

	assert.Empty(t, s.Evict(store.NamespaceSemantic))
	assert.Empty(t, s.Evict())
	assert.Len(t, s.AllEntries(), 1)
}

func TestListStoreGlobalEviction(t *testing.T) {
	// A tiny aggregate makes the global pass reachable: only semantic has
	// an explicit limit, so Total() is 2 while writes land elsewhere.
	s := newListStore(t, store.Capacities{store.NamespaceSemantic: 2})
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		_, err := s.Write(ctx, store.NamespaceEpisodic,
			fmt.Sprintf("key-%d", i), fmt.Sprintf("event %d", i))
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	evicted := s.Evict()
	assert.Len(t, evicted, 10, "the global pass removes a fixed batch")
	assert.Len(t, s.AllEntries(), 5)

	keys := make(map[string]bool)
	for _, e := range s.AllEntries() {
		keys[e.Key] = true
	}
	assert.True(t, keys["key-14"], "the freshest entries survive")
	assert.False(t, keys["key-0"])
}

func TestListStoreWriteOptions(t *testing.T) {
	s := newListStore(t, nil)
	ctx := context.Background()

	_, err := s.Write(ctx, store.NamespaceSemantic, "k", "v",
		store.WithSource(store.SourceTool),
		store.WithTrustScore(0.4),
		store.WithImportance(0.9),
		store.WithMetadata(map[string]interface{}{"origin": "search"}),
	)
	require.NoError(t, err)

	entries := s.AllEntries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, store.SourceTool, e.Source)
	assert.Equal(t, 0.4, e.TrustScore)
	assert.Equal(t, 0.9, e.Metrics.ImportanceScore)
	assert.Equal(t, "search", e.Metadata["origin"])
}

func TestListStoreSustainedWritesStayBounded(t *testing.T) {
	s := newListStore(t, store.Capacities{store.NamespaceSemantic: 100})
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_, err := s.Write(ctx, store.NamespaceSemantic,
			fmt.Sprintf("key-%d", i), fmt.Sprintf("fact %d about the project", i))
		require.NoError(t, err)
		count := len(s.AllEntries(store.NamespaceSemantic))
		assert.LessOrEqual(t, count, 100, "count never exceeds the limit after a write")
	}

	assert.Len(t, s.AllEntries(store.NamespaceSemantic), 100)

	results, err := s.Retrieve(ctx, "about the project", 100)
	require.NoError(t, err)
	assert.Len(t, results, 100)
}
