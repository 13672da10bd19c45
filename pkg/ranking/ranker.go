// Package ranking provides quantitative scoring and ordering of memory
// candidates for retrieval.
//
// The ranker combines four normalized component scores (recency,
// frequency, importance, relevance) into a weighted composite, then
// applies confidence as a penalty factor for unverified memories. Every
// score comes with a full component breakdown so a ranking decision can
// always be explained.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// neutralRecency is returned when a metrics snapshot carries no usable
// last-accessed timestamp. Ranking must stay total even over partially
// corrupt metrics, so recency fails soft instead of propagating.
const neutralRecency = 0.5

// defaultMaxFreq caps the access count used by frequency scoring.
const defaultMaxFreq = 100

// Metrics is the quantitative snapshot used to rank one memory.
type Metrics struct {
	// AccessCount is how many times the memory has been retrieved.
	AccessCount int `json:"access_count"`

	// LastAccessed is when the memory was last retrieved. A zero value
	// means the timestamp is unknown and recency scores neutrally.
	LastAccessed time.Time `json:"last_accessed"`

	// CreatedAt is when the memory was created.
	CreatedAt time.Time `json:"created_at"`

	// ImportanceScore is the caller-assigned importance (0.0-1.0).
	ImportanceScore float64 `json:"importance_score"`

	// RelevanceScore is the precomputed context relevance (0.0-1.0).
	// Computing it from a query is a caller responsibility; the ranker
	// only clamps and forwards it.
	RelevanceScore float64 `json:"relevance_score"`

	// Confidence is how verified the memory is (0.0-1.0). Applied as a
	// multiplier on the composite score.
	Confidence float64 `json:"confidence"`
}

// NewMetrics returns a fresh metrics snapshot for a newly written memory.
//
// Defaults: zero accesses, created/accessed now, relevance 0, confidence 0.8.
func NewMetrics(importance float64) *Metrics {
	now := time.Now()
	return &Metrics{
		LastAccessed:    now,
		CreatedAt:       now,
		ImportanceScore: importance,
		Confidence:      0.8,
	}
}

// Rankable is anything that can expose a metrics snapshot for ranking.
//
// RankMemories skips values whose RankMetrics returns nil, so callers can
// pass mixed collections without pre-filtering.
type Rankable interface {
	RankMetrics() *Metrics
}

// Components holds the four normalized component scores of a composite.
type Components struct {
	Recency    float64 `json:"recency"`
	Frequency  float64 `json:"frequency"`
	Importance float64 `json:"importance"`
	Relevance  float64 `json:"relevance"`
}

// RankScore is a composite score with its full breakdown.
type RankScore struct {
	// Total is the confidence-adjusted composite score, clamped to [0,1].
	Total float64 `json:"total_score"`

	// Components are the individual normalized scores before weighting.
	Components Components `json:"components"`

	// ConfidenceAdjusted is the weighted sum after the confidence
	// multiplier, before clamping.
	ConfidenceAdjusted float64 `json:"confidence_adjusted"`

	// Confidence is the confidence factor that was applied.
	Confidence float64 `json:"confidence"`
}

// ScoredMemory pairs a ranked value with its score breakdown.
type ScoredMemory struct {
	// Memory is the value that was scored.
	Memory Rankable

	// Score is the composite score used for ordering.
	Score float64

	// Breakdown is the full component breakdown behind Score.
	Breakdown RankScore
}

// Ranker computes composite retrieval scores from metrics snapshots.
//
// Weights are normalized once at construction so they always sum to 1
// regardless of the raw values supplied. Scoring calls are
// side-effect-free; a Ranker is safe for concurrent use.
type Ranker struct {
	// recencyWeight is the normalized weight of the recency component.
	recencyWeight float64

	// frequencyWeight is the normalized weight of the frequency component.
	frequencyWeight float64

	// importanceWeight is the normalized weight of the importance component.
	importanceWeight float64

	// relevanceWeight is the normalized weight of the relevance component.
	relevanceWeight float64

	// decayDays is the half-life of the recency decay, in days.
	decayDays float64
}

// NewRanker creates a Ranker with the given raw weights and decay half-life.
//
// Each raw weight is divided by the sum of all four, so the effective
// weights sum to 1.0 for any positive inputs. A non-positive decayDays
// falls back to the 7-day default.
func NewRanker(recencyWeight, frequencyWeight, importanceWeight, relevanceWeight, decayDays float64) *Ranker {
	total := recencyWeight + frequencyWeight + importanceWeight + relevanceWeight
	if total <= 0 {
		// Degenerate weights rank everything equally.
		recencyWeight, frequencyWeight, importanceWeight, relevanceWeight = 1, 1, 1, 1
		total = 4
	}
	if decayDays <= 0 {
		decayDays = 7.0
	}
	return &Ranker{
		recencyWeight:    recencyWeight / total,
		frequencyWeight:  frequencyWeight / total,
		importanceWeight: importanceWeight / total,
		relevanceWeight:  relevanceWeight / total,
		decayDays:        decayDays,
	}
}

// NewDefaultRanker creates a Ranker with the default weights
// (recency 0.3, frequency 0.2, importance 0.3, relevance 0.2) and a
// 7-day recency half-life.
func NewDefaultRanker() *Ranker {
	return NewRanker(0.3, 0.2, 0.3, 0.2, 7.0)
}

// Weights returns the effective (normalized) component weights in the
// order recency, frequency, importance, relevance.
func (r *Ranker) Weights() (recency, frequency, importance, relevance float64) {
	return r.recencyWeight, r.frequencyWeight, r.importanceWeight, r.relevanceWeight
}

// ScoreRecency scores how recently a memory was accessed, as of now.
func (r *Ranker) ScoreRecency(m *Metrics) float64 {
	return r.ScoreRecencyAt(m, time.Now())
}

// ScoreRecencyAt scores how recently a memory was accessed, as of a
// fixed instant.
//
// The score decays exponentially with age:
//
//	score = 2^(-ageDays / decayDays)
//
// Scoring is a pure function of (metrics, now): identical inputs yield
// bit-identical scores. A zero LastAccessed timestamp fails soft to the
// neutral 0.5 rather than propagating an error.
func (r *Ranker) ScoreRecencyAt(m *Metrics, now time.Time) float64 {
	if m.LastAccessed.IsZero() {
		return neutralRecency
	}
	ageDays := now.Sub(m.LastAccessed).Hours() / 24.0
	if ageDays < 0 {
		ageDays = 0
	}
	return clamp01(math.Pow(2, -ageDays/r.decayDays))
}

// ScoreFrequency scores how often a memory has been accessed.
//
// The scale is logarithmic so frequency cannot dominate the composite:
//
//	score = log(min(accessCount, maxFreq) + 1) / log(maxFreq + 1)
func (r *Ranker) ScoreFrequency(m *Metrics) float64 {
	count := m.AccessCount
	if count < 0 {
		count = 0
	}
	if count > defaultMaxFreq {
		count = defaultMaxFreq
	}
	score := math.Log(float64(count)+1) / math.Log(float64(defaultMaxFreq)+1)
	return clamp01(score)
}

// ScoreImportance passes through the caller-assigned importance, clamped.
func (r *Ranker) ScoreImportance(m *Metrics) float64 {
	return clamp01(m.ImportanceScore)
}

// ScoreRelevance passes through the precomputed relevance, clamped.
//
// queryContext is accepted for signature symmetry with callers that
// compute relevance upstream; the ranker itself does not match text.
func (r *Ranker) ScoreRelevance(m *Metrics, queryContext string) float64 {
	return clamp01(m.RelevanceScore)
}

// ComputeRankScore computes the composite score for one metrics
// snapshot, as of now.
func (r *Ranker) ComputeRankScore(m *Metrics, queryContext string) RankScore {
	return r.ComputeRankScoreAt(m, queryContext, time.Now())
}

// ComputeRankScoreAt computes the composite score for one metrics
// snapshot, as of a fixed instant.
//
// The composite is the weighted sum of the four component scores
// multiplied by the snapshot's confidence, so unverified memories are
// penalized proportionally. Identical (metrics, now) inputs yield
// identical scores.
func (r *Ranker) ComputeRankScoreAt(m *Metrics, queryContext string, now time.Time) RankScore {
	recency := r.ScoreRecencyAt(m, now)
	frequency := r.ScoreFrequency(m)
	importance := r.ScoreImportance(m)
	relevance := r.ScoreRelevance(m, queryContext)

	weighted := recency*r.recencyWeight +
		frequency*r.frequencyWeight +
		importance*r.importanceWeight +
		relevance*r.relevanceWeight
	adjusted := weighted * m.Confidence

	return RankScore{
		Total: clamp01(adjusted),
		Components: Components{
			Recency:    recency,
			Frequency:  frequency,
			Importance: importance,
			Relevance:  relevance,
		},
		ConfidenceAdjusted: adjusted,
		Confidence:         m.Confidence,
	}
}

// RankMemories scores and orders a collection of memories.
//
// The whole collection is scored against one time snapshot, so entries
// with identical metrics tie exactly. Values without a metrics snapshot
// are silently skipped. Results below minScore are filtered out, the
// rest are sorted by descending score with ties keeping their input
// order (stable sort), and topK > 0 truncates the result.
func (r *Ranker) RankMemories(memories []Rankable, queryContext string, minScore float64, topK int) []ScoredMemory {
	now := time.Now()
	scored := make([]ScoredMemory, 0, len(memories))
	for _, mem := range memories {
		if mem == nil {
			continue
		}
		metrics := mem.RankMetrics()
		if metrics == nil {
			continue
		}
		breakdown := r.ComputeRankScoreAt(metrics, queryContext, now)
		if breakdown.Total < minScore {
			continue
		}
		scored = append(scored, ScoredMemory{
			Memory:    mem,
			Score:     breakdown.Total,
			Breakdown: breakdown,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// ExplainRanking formats a human-readable explanation of why a memory
// ranked as it did. It has no side effects and exists purely for
// observability and debugging.
func ExplainRanking(sm ScoredMemory) string {
	b := sm.Breakdown
	return fmt.Sprintf(
		"Overall Score: %.3f\n"+
			"Confidence: %.1f%%\n"+
			"Component Scores:\n"+
			"  Recency:    %.3f\n"+
			"  Frequency:  %.3f\n"+
			"  Importance: %.3f\n"+
			"  Relevance:  %.3f",
		sm.Score,
		b.Confidence*100,
		b.Components.Recency,
		b.Components.Frequency,
		b.Components.Importance,
		b.Components.Relevance,
	)
}

// clamp01 clamps v into the [0, 1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
