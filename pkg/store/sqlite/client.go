// Package sqlite provides a SQL-indexed store backend on SQLite.
//
// The backend keeps the same contract as the in-memory backends and
// matches like the list backend (case-insensitive substring over
// values). By default it opens a shared in-memory database, so the core
// stays process-local; a file DSN is accepted, but durability across
// restarts is not part of the store contract.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agentmem/memcore-go/pkg/keys"
	"github.com/agentmem/memcore-go/pkg/ranking"
	"github.com/agentmem/memcore-go/pkg/store"
)

// DefaultDSN opens a private shared-cache in-memory database.
const DefaultDSN = "file:memcore?mode=memory&cache=shared&_foreign_keys=1"

// Config contains configuration for creating a SQLite-backed store.
type Config struct {
	// DSN is the SQLite data source name. Empty uses DefaultDSN.
	DSN string

	// TableName is the name of the table storing entries. Empty uses
	// "memories".
	TableName string

	// Capacities are the per-namespace entry limits. Nil uses
	// store.DefaultCapacities.
	Capacities store.Capacities
}

// Client implements store.Store using SQLite as the backend index.
type Client struct {
	// mu serializes all operations; retrieval mutates access metrics,
	// so reads need the same exclusion as writes.
	mu sync.Mutex

	db        *sql.DB
	tableName string
	caps      store.Capacities
	log       *store.AuditLog
	node      *snowflake.Node
}

// NewClient creates a SQLite-backed store and initializes its schema.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	dsn := cfg.DSN
	if dsn == "" {
		dsn = DefaultDSN
	}
	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memories"
	}
	caps := cfg.Capacities
	if caps == nil {
		caps = store.DefaultCapacities()
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}
	// The shared-cache in-memory database disappears once its last
	// connection closes; a single connection also serializes access at
	// the driver level.
	db.SetMaxOpenConns(1)

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}

	c := &Client{
		db:        db,
		tableName: tableName,
		caps:      caps,
		log:       &store.AuditLog{},
		node:      node,
	}
	if err := c.initTables(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// initTables initializes the entry table and its indexes.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			slot_hash TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			ttl_seconds INTEGER DEFAULT 0,
			source TEXT NOT NULL,
			trust_score REAL DEFAULT 1.0,
			access_count INTEGER DEFAULT 0,
			last_accessed TIMESTAMP NOT NULL,
			importance REAL DEFAULT 0.5,
			relevance REAL DEFAULT 0.0,
			confidence REAL DEFAULT 0.8,
			UNIQUE(namespace, key)
		)
	`, c.tableName)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_ns_accessed ON %s(namespace, last_accessed)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}
	return nil
}

// Write upserts value under (ns, key), latest write wins, preserving the
// slot's ID and access statistics across overwrites.
func (c *Client) Write(ctx context.Context, ns store.Namespace, key, value string, opts ...store.WriteOption) (int64, error) {
	if !ns.Valid() {
		return 0, store.ErrInvalidNamespace
	}
	o := store.NewWriteOptions(opts...)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	slot := keys.SlotHash(keys.MemoryType(ns), key)
	content := keys.ContentHash(slot, value, o.Metadata)
	metadataJSON, err := json.Marshal(o.Metadata)
	if err != nil {
		return 0, fmt.Errorf("Write: %w", err)
	}

	var existingID int64
	var existingContent string
	row := c.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, content_hash FROM %s WHERE namespace = ? AND key = ?`, c.tableName),
		string(ns), key)
	err = row.Scan(&existingID, &existingContent)
	switch {
	case err == nil:
		if existingContent == content {
			c.log.Append(store.OpWrite, existingID, key, ns, map[string]interface{}{
				"duplicate":    true,
				"content_hash": content,
			})
			return existingID, nil
		}
		_, err = c.db.ExecContext(ctx, fmt.Sprintf(`
			UPDATE %s SET value = ?, content_hash = ?, metadata = ?, updated_at = ?,
				ttl_seconds = ?, source = ?, trust_score = ?, importance = ?
			WHERE id = ?
		`, c.tableName),
			value, content, string(metadataJSON), now,
			o.TTLSeconds, string(o.Source), o.TrustScore, o.Importance, existingID)
		if err != nil {
			return 0, fmt.Errorf("Write: %w: %v", store.ErrStorageOperation, err)
		}
		c.log.Append(store.OpUpdate, existingID, key, ns, map[string]interface{}{
			"action": "overwrite_same_key",
		})
		return existingID, nil
	case err != sql.ErrNoRows:
		return 0, fmt.Errorf("Write: %w: %v", store.ErrStorageOperation, err)
	}

	id := c.node.Generate().Int64()
	_, err = c.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s
		(id, namespace, key, value, slot_hash, content_hash, metadata,
		 created_at, updated_at, ttl_seconds, source, trust_score,
		 access_count, last_accessed, importance, relevance, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, 0.0, 0.8)
	`, c.tableName),
		id, string(ns), key, value, slot, content, string(metadataJSON),
		now, now, o.TTLSeconds, string(o.Source), o.TrustScore, now, o.Importance)
	if err != nil {
		return 0, fmt.Errorf("Write: %w: %v", store.ErrStorageOperation, err)
	}
	c.log.Append(store.OpWrite, id, key, ns, map[string]interface{}{
		"source":      string(o.Source),
		"trust_score": o.TrustScore,
	})

	var count int
	if err := c.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE namespace = ?`, c.tableName),
		string(ns)).Scan(&count); err == nil && count > c.caps.Limit(ns) {
		c.evictLocked(ctx, &ns)
	}
	return id, nil
}

// Retrieve returns up to k entries whose value contains query,
// case-insensitively, ranked like the list backend: earlier and longer
// matches first, ties broken by recency.
func (c *Client) Retrieve(ctx context.Context, query string, k int, namespaces ...store.Namespace) ([]*store.MemoryEntry, error) {
	for _, ns := range namespaces {
		if !ns.Valid() {
			return nil, store.ErrInvalidNamespace
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	queryLower := strings.ToLower(query)

	type scoredEntry struct {
		score int
		entry *store.MemoryEntry
	}
	var scored []scoredEntry
	if query != "" && k > 0 {
		entries, err := c.selectEntries(ctx, namespaces)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsExpired(now) {
				continue
			}
			pos := strings.Index(strings.ToLower(e.Value), queryLower)
			if pos < 0 {
				continue
			}
			scored = append(scored, scoredEntry{score: -pos - len(queryLower), entry: e})
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

	result := make([]*store.MemoryEntry, 0, len(scored))
	for _, se := range scored {
		e := se.entry
		e.Metrics.AccessCount++
		e.Metrics.LastAccessed = now
		if _, err := c.db.ExecContext(ctx, fmt.Sprintf(`
			UPDATE %s SET access_count = ?, last_accessed = ? WHERE id = ?
		`, c.tableName), e.Metrics.AccessCount, now, e.ID); err != nil {
			return nil, fmt.Errorf("Retrieve: %w: %v", store.ErrStorageOperation, err)
		}
		result = append(result, e)
	}

	c.log.Append(store.OpRetrieve, 0, query, "", map[string]interface{}{
		"query":   query,
		"k":       k,
		"results": len(result),
	})
	return result, nil
}

// Update rewrites the value and timestamp of the entry with the given
// ID. Returns false if no such entry exists.
func (c *Client) Update(ctx context.Context, id int64, newValue string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ns, key, slot, oldValue, metadataJSON string
	row := c.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT namespace, key, slot_hash, value, metadata FROM %s WHERE id = ?`, c.tableName), id)
	if err := row.Scan(&ns, &key, &slot, &oldValue, &metadataJSON); err != nil {
		if err != sql.ErrNoRows {
			log.Printf("memcore: sqlite update %d: %v", id, err)
		}
		return false
	}

	var metadata map[string]interface{}
	_ = json.Unmarshal([]byte(metadataJSON), &metadata)
	content := keys.ContentHash(slot, newValue, metadata)

	if _, err := c.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET value = ?, content_hash = ?, updated_at = ? WHERE id = ?
	`, c.tableName), newValue, content, time.Now(), id); err != nil {
		log.Printf("memcore: sqlite update %d: %v", id, err)
		return false
	}

	c.log.Append(store.OpUpdate, id, key, store.Namespace(ns), map[string]interface{}{
		"old": shorten(oldValue, 50),
		"new": shorten(newValue, 50),
	})
	return true
}

// Delete removes the entry with the given ID. Returns false if no such
// entry exists.
func (c *Client) Delete(ctx context.Context, id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ns, key string
	row := c.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT namespace, key FROM %s WHERE id = ?`, c.tableName), id)
	if err := row.Scan(&ns, &key); err != nil {
		if err != sql.ErrNoRows {
			log.Printf("memcore: sqlite delete %d: %v", id, err)
		}
		return false
	}

	if _, err := c.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.tableName), id); err != nil {
		log.Printf("memcore: sqlite delete %d: %v", id, err)
		return false
	}
	c.log.Append(store.OpDelete, id, key, store.Namespace(ns), nil)
	return true
}

// AllEntries lists entries without touching access metrics or the log.
func (c *Client) AllEntries(namespaces ...store.Namespace) []*store.MemoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.selectEntries(context.Background(), namespaces)
	if err != nil {
		log.Printf("memcore: sqlite list: %v", err)
		return nil
	}
	return entries
}

// Evict runs one eviction pass, per-namespace when one is given and
// global otherwise, and returns the evicted entry IDs.
func (c *Client) Evict(namespaces ...store.Namespace) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(namespaces) > 0 {
		ns := namespaces[0]
		return c.evictLocked(context.Background(), &ns)
	}
	return c.evictLocked(context.Background(), nil)
}

// evictLocked removes the least-recently-accessed entries. Callers hold mu.
func (c *Client) evictLocked(ctx context.Context, ns *store.Namespace) []int64 {
	var rows *sql.Rows
	var err error
	if ns != nil {
		var count int
		if err := c.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE namespace = ?`, c.tableName),
			string(*ns)).Scan(&count); err != nil {
			log.Printf("memcore: sqlite evict: %v", err)
			return []int64{}
		}
		limit := c.caps.Limit(*ns)
		if count <= limit {
			return []int64{}
		}
		rows, err = c.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT id FROM %s WHERE namespace = ? ORDER BY last_accessed ASC LIMIT ?
		`, c.tableName), string(*ns), count-limit+1)
	} else {
		var total int
		if err := c.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.tableName)).Scan(&total); err != nil {
			log.Printf("memcore: sqlite evict: %v", err)
			return []int64{}
		}
		if total <= c.caps.Total() {
			return []int64{}
		}
		rows, err = c.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT id FROM %s ORDER BY last_accessed ASC LIMIT ?
		`, c.tableName), 10)
	}
	if err != nil {
		log.Printf("memcore: sqlite evict: %v", err)
		return []int64{}
	}
	defer rows.Close()

	var evictedIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			log.Printf("memcore: sqlite evict: %v", err)
			return evictedIDs
		}
		evictedIDs = append(evictedIDs, id)
	}
	if evictedIDs == nil {
		return []int64{}
	}

	for _, id := range evictedIDs {
		if _, err := c.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.tableName), id); err != nil {
			log.Printf("memcore: sqlite evict %d: %v", id, err)
		}
	}

	logNS := store.Namespace("")
	if ns != nil {
		logNS = *ns
	}
	c.log.Append(store.OpEvict, 0, "eviction", logNS, map[string]interface{}{
		"evicted_count": len(evictedIDs),
		"policy":        "lru",
	})
	return evictedIDs
}

// Logs returns a snapshot of the last n operation records.
func (c *Client) Logs(lastN int) []store.MemoryLog {
	return c.log.Tail(lastN)
}

// Close closes the database connection. For the default in-memory DSN
// this discards all entries.
func (c *Client) Close() error {
	return c.db.Close()
}

// selectEntries loads entries, optionally filtered to the given
// namespaces, in insertion order.
func (c *Client) selectEntries(ctx context.Context, namespaces []store.Namespace) ([]*store.MemoryEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, namespace, key, value, slot_hash, content_hash, metadata,
		       created_at, updated_at, ttl_seconds, source, trust_score,
		       access_count, last_accessed, importance, relevance, confidence
		FROM %s
	`, c.tableName)
	var args []interface{}
	if len(namespaces) > 0 {
		placeholders := make([]string, len(namespaces))
		for i, ns := range namespaces {
			placeholders[i] = "?"
			args = append(args, string(ns))
		}
		query += fmt.Sprintf(" WHERE namespace IN (%s)", strings.Join(placeholders, ", "))
	}
	query += " ORDER BY rowid ASC"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selectEntries: %w: %v", store.ErrStorageOperation, err)
	}
	defer rows.Close()

	var entries []*store.MemoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// scanEntry reads one entry row into a MemoryEntry.
func scanEntry(rows *sql.Rows) (*store.MemoryEntry, error) {
	var e store.MemoryEntry
	var ns, source, metadataJSON string
	var metrics ranking.Metrics
	err := rows.Scan(
		&e.ID, &ns, &e.Key, &e.Value, &e.SlotHash, &e.ContentHash, &metadataJSON,
		&e.CreatedAt, &e.UpdatedAt, &e.TTLSeconds, &source, &e.TrustScore,
		&metrics.AccessCount, &metrics.LastAccessed,
		&metrics.ImportanceScore, &metrics.RelevanceScore, &metrics.Confidence,
	)
	if err != nil {
		return nil, fmt.Errorf("scanEntry: %w: %v", store.ErrStorageOperation, err)
	}
	e.Namespace = store.Namespace(ns)
	e.Source = store.Source(source)
	if metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &e.Metadata); err != nil {
			return nil, fmt.Errorf("scanEntry: %w: %v", store.ErrStorageOperation, err)
		}
	}
	metrics.CreatedAt = e.CreatedAt
	e.Metrics = &metrics
	return &e, nil
}

// shorten truncates s for log details.
func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
