// Package keys provides the canonical key scheme and content-addressed
// hashing for memory entries.
//
// Every memory has two identities:
//   - Slot identity: which conceptual slot it occupies (memory type +
//     canonical key). Stable across updates to the same slot.
//   - Content identity: the exact content currently held by the slot
//     (value + metadata). Changes whenever either changes.
//
// Separating the two makes overwrites, true duplicates, and history
// distinguishable: two writes to the same slot always share a slot hash,
// and share a content hash only when their content is identical.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// MemoryType identifies the kind of memory a canonical key addresses.
//
// Types follow the form.substrate naming of the memory taxonomy:
//   - TypeWorking: per-thread working context
//   - TypeSemantic: facts about entities
//   - TypeEpisodic: events and experiences
//   - TypeProcedural: procedures and skills
//   - TypeParametric: knowledge baked into model weights
type MemoryType string

const (
	// TypeWorking addresses per-thread working context.
	TypeWorking MemoryType = "working.token"

	// TypeSemantic addresses facts about entities.
	TypeSemantic MemoryType = "semantic.latent"

	// TypeEpisodic addresses events and experiences.
	TypeEpisodic MemoryType = "episodic.latent"

	// TypeProcedural addresses procedures and skills.
	TypeProcedural MemoryType = "procedural.latent"

	// TypeParametric addresses knowledge held in model parameters.
	TypeParametric MemoryType = "parametric.model"
)

// hashVersion is prefixed into every hashed string so the scheme can be
// evolved without silently colliding with hashes from older layouts.
const hashVersion = "v1"

// hashWidth is the number of hex characters kept from the SHA-256 digest.
//
// Hashes are truncated for human-readable logs; the shortened width is a
// documented trade-off, not a cryptographic guarantee.
const hashWidth = 16

// shortHash returns the truncated SHA-256 hex digest of text.
func shortHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:hashWidth]
}

// SlotHash derives the stable slot identifier for a (type, key) pair.
//
// The result is a pure function of its inputs: the same memory type and
// canonical key always produce the same slot hash, in any process.
func SlotHash(memType MemoryType, canonicalKey string) string {
	return shortHash(fmt.Sprintf("%s|%s|%s", hashVersion, memType, canonicalKey))
}

// ContentHash derives the content identifier for the exact value and
// metadata currently held by a slot.
//
// Metadata is canonicalized to JSON with sorted keys before hashing, so
// maps with equal contents always hash identically. Identical
// (slotHash, value, metadata) inputs always yield identical output,
// which is what makes duplicate detection idempotent.
func ContentHash(slotHash, value string, metadata map[string]interface{}) string {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	// encoding/json marshals map keys in sorted order.
	meta, err := json.Marshal(metadata)
	if err != nil {
		// Non-serializable metadata still needs a stable identity;
		// fall back to the fmt rendering of the map.
		meta = []byte(fmt.Sprintf("%v", metadata))
	}
	return shortHash(fmt.Sprintf("%s|%s|%s|%s", hashVersion, slotHash, value, meta))
}

// SemanticKey builds the canonical key for a fact: (scope, entity, attribute).
//
// Fields are joined with a fixed delimiter in a fixed order so keys stay
// stable and comparable across processes. Empty fields are accepted
// verbatim; stability, not validation, is the contract.
func SemanticKey(scope, entity, attribute string) string {
	return fmt.Sprintf("%s|%s|%s", scope, entity, attribute)
}

// EpisodicKey builds the canonical key for an event:
// (scope, event type, time bucket, participants).
func EpisodicKey(scope, eventType, timeBucket, participants string) string {
	return fmt.Sprintf("%s|%s|%s|%s", scope, eventType, timeBucket, participants)
}

// ProceduralKey builds the canonical key for a procedure:
// (scope, procedure name, version).
func ProceduralKey(scope, procedureName, version string) string {
	return fmt.Sprintf("%s|%s|%s", scope, procedureName, version)
}

// WorkingKey builds the canonical key for working context:
// (thread id, turn range).
func WorkingKey(threadID, turnRange string) string {
	return fmt.Sprintf("thread:%s|turns:%s", threadID, turnRange)
}
