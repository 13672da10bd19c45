package core

import (
	"context"

	"github.com/agentmem/memcore-go/pkg/ranking"
	"github.com/agentmem/memcore-go/pkg/store"
	"github.com/agentmem/memcore-go/pkg/store/sqlite"
)

// Client is the main memcore client for associative memory management.
//
// It owns one store backend, selected once at construction and never
// switched at runtime, and one ranker. The store handles writes,
// retrieval, eviction, and the audit log; the ranker can re-score and
// re-order any collection of entries independent of which backend
// produced them.
//
// There is no process-wide implicit state: the client is an explicitly
// constructed, passed-by-reference instance owned by the calling
// orchestration layer.
//
// Example usage:
//
//	config := core.DefaultConfig()
//	client, _ := core.New(config)
//	defer client.Close()
//
//	id, _ := client.Write(ctx, store.NamespaceSemantic,
//	    keys.SemanticKey("user", "alice", "language"),
//	    "Alice prefers Go",
//	    store.WithImportance(0.8),
//	)
type Client struct {
	// config contains the client configuration.
	config *Config

	// store is the selected backend.
	store store.Store

	// ranker computes composite retrieval scores.
	ranker *ranking.Ranker
}

// New creates a new memcore client.
//
// The client is initialized with:
//   - A store backend (list, kv, or sqlite) per cfg.Store.Provider
//   - A ranker built from cfg.Ranking
//
// A nil cfg uses DefaultConfig.
//
// Returns a new Client instance, or an error if the configuration is
// invalid or backend initialization fails.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(cfg)
	if err != nil {
		return nil, NewMemoryError("New", err)
	}

	r := cfg.Ranking
	return &Client{
		config: cfg,
		store:  st,
		ranker: ranking.NewRanker(
			r.RecencyWeight,
			r.FrequencyWeight,
			r.ImportanceWeight,
			r.RelevanceWeight,
			r.DecayDays,
		),
	}, nil
}

// initStore builds the configured store backend.
func initStore(cfg *Config) (store.Store, error) {
	caps := cfg.capacities()
	switch cfg.Store.Provider {
	case "list":
		return store.NewListStore(caps)
	case "kv":
		return store.NewKVStore(caps)
	case "sqlite":
		return sqlite.NewClient(&sqlite.Config{
			DSN:        cfg.Store.SQLiteDSN,
			Capacities: caps,
		})
	default:
		return nil, ErrUnknownProvider
	}
}

// Store exposes the underlying backend for callers that need the raw
// store contract.
func (c *Client) Store() store.Store {
	return c.store
}

// Ranker exposes the configured ranker.
func (c *Client) Ranker() *ranking.Ranker {
	return c.ranker
}

// Write stores value under (ns, key) and returns the entry ID.
func (c *Client) Write(ctx context.Context, ns store.Namespace, key, value string, opts ...store.WriteOption) (int64, error) {
	id, err := c.store.Write(ctx, ns, key, value, opts...)
	if err != nil {
		return 0, NewMemoryError("Write", err)
	}
	return id, nil
}

// Retrieve returns up to k entries matching query, best first, per the
// backend's matching strategy.
func (c *Client) Retrieve(ctx context.Context, query string, k int, namespaces ...store.Namespace) ([]*store.MemoryEntry, error) {
	entries, err := c.store.Retrieve(ctx, query, k, namespaces...)
	if err != nil {
		return nil, NewMemoryError("Retrieve", err)
	}
	return entries, nil
}

// Update rewrites the value of the entry with the given ID. Returns
// false if no such entry exists.
func (c *Client) Update(ctx context.Context, id int64, newValue string) bool {
	return c.store.Update(ctx, id, newValue)
}

// Delete removes the entry with the given ID. Returns false if no such
// entry exists.
func (c *Client) Delete(ctx context.Context, id int64) bool {
	return c.store.Delete(ctx, id)
}

// AllEntries lists entries without touching access metrics or the audit
// log.
func (c *Client) AllEntries(namespaces ...store.Namespace) []*store.MemoryEntry {
	return c.store.AllEntries(namespaces...)
}

// Evict runs one eviction pass and returns the evicted entry IDs.
func (c *Client) Evict(namespaces ...store.Namespace) []int64 {
	return c.store.Evict(namespaces...)
}

// Logs returns a snapshot of the last n audit records, or all of them
// if n <= 0.
func (c *Client) Logs(lastN int) []store.MemoryLog {
	return c.store.Logs(lastN)
}

// Rank scores and orders entries with the client's ranker.
//
// Entries without metrics are skipped, results below minScore are
// filtered out, and topK > 0 truncates the result. The entries may come
// from any backend, or from none.
func (c *Client) Rank(entries []*store.MemoryEntry, queryContext string, minScore float64, topK int) []ranking.ScoredMemory {
	rankables := make([]ranking.Rankable, len(entries))
	for i, e := range entries {
		rankables[i] = e
	}
	return c.ranker.RankMemories(rankables, queryContext, minScore, topK)
}

// Explain formats a human-readable breakdown of one ranked memory.
func (c *Client) Explain(sm ranking.ScoredMemory) string {
	return ranking.ExplainRanking(sm)
}

// Close releases the backend's resources.
func (c *Client) Close() error {
	return c.store.Close()
}
