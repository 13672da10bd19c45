package keys_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentmem/memcore-go/pkg/keys"
)

func TestSlotHashStability(t *testing.T) {
	h1 := keys.SlotHash(keys.TypeSemantic, "user|alice|language")
	h2 := keys.SlotHash(keys.TypeSemantic, "user|alice|language")
	assert.Equal(t, h1, h2, "identical inputs must yield identical slot hashes")
	assert.Len(t, h1, 16)
}

func TestSlotHashSeparatesTypeAndKey(t *testing.T) {
	base := keys.SlotHash(keys.TypeSemantic, "user|alice|language")

	assert.NotEqual(t, base, keys.SlotHash(keys.TypeEpisodic, "user|alice|language"),
		"same key under a different type is a different slot")
	assert.NotEqual(t, base, keys.SlotHash(keys.TypeSemantic, "user|bob|language"))
}

func TestContentHashSensitivity(t *testing.T) {
	slot := keys.SlotHash(keys.TypeSemantic, "user|alice|language")

	h1 := keys.ContentHash(slot, "Alice prefers Go", nil)
	h2 := keys.ContentHash(slot, "Alice prefers Python", nil)
	assert.NotEqual(t, h1, h2, "different values must yield different content hashes")

	h3 := keys.ContentHash(slot, "Alice prefers Go", map[string]interface{}{"source": "chat"})
	assert.NotEqual(t, h1, h3, "different metadata must yield different content hashes")
}

func TestContentHashDeduplication(t *testing.T) {
	slot := keys.SlotHash(keys.TypeSemantic, "user|alice|language")
	meta := map[string]interface{}{"source": "chat", "turn": 3}

	h1 := keys.ContentHash(slot, "Alice prefers Go", meta)
	h2 := keys.ContentHash(slot, "Alice prefers Go", map[string]interface{}{"turn": 3, "source": "chat"})
	assert.Equal(t, h1, h2, "metadata key order must not affect the content hash")
	assert.Len(t, h1, 16)
}

func TestUpdatePreservesSlotIdentity(t *testing.T) {
	// Two writes to the same slot with different values: the slot hash
	// stays, the content hash moves.
	slot1 := keys.SlotHash(keys.TypeSemantic, "user|alice|language")
	slot2 := keys.SlotHash(keys.TypeSemantic, "user|alice|language")
	assert.Equal(t, slot1, slot2)

	c1 := keys.ContentHash(slot1, "v1", nil)
	c2 := keys.ContentHash(slot2, "v2", nil)
	assert.NotEqual(t, c1, c2)
}

func TestNilMetadataMatchesEmpty(t *testing.T) {
	slot := keys.SlotHash(keys.TypeWorking, "thread:t1|turns:0-4")
	assert.Equal(t,
		keys.ContentHash(slot, "context", nil),
		keys.ContentHash(slot, "context", map[string]interface{}{}))
}

func TestKeyBuilders(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{
			name: "semantic",
			key:  keys.SemanticKey("user", "alice", "language"),
			want: "user|alice|language",
		},
		{
			name: "episodic",
			key:  keys.EpisodicKey("team", "deploy", "2024-06-01", "alice,bob"),
			want: "team|deploy|2024-06-01|alice,bob",
		},
		{
			name: "procedural",
			key:  keys.ProceduralKey("ops", "rollback", "v2"),
			want: "ops|rollback|v2",
		},
		{
			name: "working",
			key:  keys.WorkingKey("t-42", "10-14"),
			want: "thread:t-42|turns:10-14",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key)
		})
	}
}

func TestEmptyFieldsAcceptedVerbatim(t *testing.T) {
	// Stability, not validation, is the contract.
	assert.Equal(t, "||", keys.SemanticKey("", "", ""))
	h := keys.SlotHash(keys.TypeSemantic, "||")
	assert.Len(t, h, 16)
	assert.Equal(t, h, keys.SlotHash(keys.TypeSemantic, keys.SemanticKey("", "", "")))
}
