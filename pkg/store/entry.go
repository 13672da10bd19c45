// Package store provides the memory store contract and its in-memory
// backends, with namespace-scoped capacity limits, LRU eviction, and an
// append-only audit log of every operation.
package store

import (
	"fmt"
	"time"

	"github.com/agentmem/memcore-go/pkg/keys"
	"github.com/agentmem/memcore-go/pkg/ranking"
)

// Namespace identifies which class of memory an entry belongs to.
//
// The set is fixed; names outside it are a caller contract violation and
// fail fast. An entry's namespace never changes after creation.
type Namespace string

const (
	// NamespaceEpisodic holds events and experiences.
	NamespaceEpisodic Namespace = "episodic"

	// NamespaceSemantic holds facts about entities.
	NamespaceSemantic Namespace = "semantic"

	// NamespacePreferences holds user preferences.
	NamespacePreferences Namespace = "preferences"

	// NamespaceToolTraces holds tool invocation traces.
	NamespaceToolTraces Namespace = "tool_traces"

	// NamespaceSkills holds learned skills and procedures.
	NamespaceSkills Namespace = "skills"

	// NamespaceWorking holds short-lived working context.
	NamespaceWorking Namespace = "working"
)

// Namespaces returns the fixed namespace set in declaration order.
func Namespaces() []Namespace {
	return []Namespace{
		NamespaceEpisodic,
		NamespaceSemantic,
		NamespacePreferences,
		NamespaceToolTraces,
		NamespaceSkills,
		NamespaceWorking,
	}
}

// Valid reports whether n is one of the fixed namespaces.
func (n Namespace) Valid() bool {
	switch n {
	case NamespaceEpisodic, NamespaceSemantic, NamespacePreferences,
		NamespaceToolTraces, NamespaceSkills, NamespaceWorking:
		return true
	}
	return false
}

// ParseNamespace converts a string into a Namespace, failing fast on
// names outside the fixed set.
func ParseNamespace(s string) (Namespace, error) {
	n := Namespace(s)
	if !n.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidNamespace, s)
	}
	return n, nil
}

// Source identifies where a memory entry came from.
//
// The store records the source and makes it available for downstream
// ranking and filtering; it never rejects writes based on it.
type Source string

const (
	// SourceUser marks content stated by the user.
	SourceUser Source = "user"

	// SourceTool marks content produced by a tool call.
	SourceTool Source = "tool"

	// SourceSystem marks content produced by the system itself.
	SourceSystem Source = "system"

	// SourceAttacker marks attacker-controlled input, carried for
	// downstream security analysis.
	SourceAttacker Source = "attacker"
)

// MemoryEntry is the atomic unit of stored knowledge.
type MemoryEntry struct {
	// ID is the unique identity handle of the entry, used by keyed
	// lookups for update and delete.
	ID int64 `json:"id"`

	// Namespace is the memory class this entry belongs to. Never
	// changes after creation.
	Namespace Namespace `json:"namespace"`

	// Key is the canonical key identifying the conceptual slot, not
	// the content. See the keys package for the builder functions.
	Key string `json:"key"`

	// Value is the free-text payload. Mutable on update.
	Value string `json:"value"`

	// SlotHash is stable across updates to the same (namespace, key)
	// slot.
	SlotHash string `json:"slot_hash"`

	// ContentHash changes whenever Value or Metadata changes. Equal
	// slot and content hashes identify a true duplicate; equal slot
	// hash with a different content hash identifies an overwrite.
	ContentHash string `json:"content_hash"`

	// Metadata contains additional structured information about the
	// entry. Key conventions are documented but not enforced;
	// validating unexpected keys is a caller concern.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the entry was created. TTL expiry is measured
	// from this timestamp.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the entry's value was last rewritten.
	UpdatedAt time.Time `json:"updated_at"`

	// TTLSeconds is the optional time-to-live. Zero means no expiry.
	// Expired entries are excluded from retrieval but not proactively
	// deleted.
	TTLSeconds int `json:"ttl_seconds,omitempty"`

	// Source records where the entry came from.
	Source Source `json:"source"`

	// TrustScore (0.0-1.0) records how much to trust this entry. The
	// store only carries it; filtering on it sits above this layer.
	TrustScore float64 `json:"trust_score"`

	// Metrics is the quantitative snapshot used for ranking. Access
	// statistics live here and are mutated on every retrieval that
	// returns the entry.
	Metrics *ranking.Metrics `json:"metrics,omitempty"`
}

// RankMetrics exposes the entry's metrics snapshot for ranking.
//
// Safe on a nil receiver: a nil entry has no snapshot, so the ranker
// skips it like any other metrics-less value. A nil *MemoryEntry inside
// an interface value is not a nil interface, so the guard has to live
// here.
func (e *MemoryEntry) RankMetrics() *ranking.Metrics {
	if e == nil {
		return nil
	}
	return e.Metrics
}

// IsExpired reports whether the entry's TTL has elapsed at the given time.
func (e *MemoryEntry) IsExpired(now time.Time) bool {
	if e.TTLSeconds <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > time.Duration(e.TTLSeconds)*time.Second
}

// touch records one retrieval access on the entry.
func (e *MemoryEntry) touch(now time.Time) {
	if e.Metrics == nil {
		e.Metrics = ranking.NewMetrics(0.5)
		e.Metrics.CreatedAt = e.CreatedAt
	}
	e.Metrics.AccessCount++
	e.Metrics.LastAccessed = now
}

// slotType maps a namespace onto the memory-type dimension of the slot
// hash. The namespace string itself is the type, keeping SlotHash a pure
// function of (namespace, key).
func slotType(ns Namespace) keys.MemoryType {
	return keys.MemoryType(ns)
}
