package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"videoDigest/config"
	"videoDigest/core"
)

// VectorStore indexes transcript items per video and answers similarity
// queries over them.
type VectorStore interface {
	Upsert(ctx context.Context, videoID string, items []core.Item) (int, error)
	Search(ctx context.Context, videoID, query string, topK int) ([]core.Hit, error)
}

// NewVectorStore builds the configured backend. Backend trouble degrades to
// the in-memory store with a warning rather than blocking startup; search
// then works for videos processed during this process lifetime.
func NewVectorStore(ctx context.Context, cfg *config.Config) VectorStore {
	switch cfg.Store {
	case "pgvector":
		emb := newEmbedder(cfg)
		if emb == nil {
			config.Log.Warn("pgvector store needs an embedding provider, falling back to memory store")
			return NewMemoryVectorStore()
		}
		store, err := NewPgVectorStore(ctx, cfg, emb)
		if err != nil {
			config.Log.WithError(err).Warn("pgvector unavailable, falling back to memory store")
			return NewMemoryVectorStore()
		}
		config.Log.Info("using pgvector store")
		return store
	case "milvus":
		emb := newEmbedder(cfg)
		if emb == nil {
			config.Log.Warn("milvus store needs an embedding provider, falling back to memory store")
			return NewMemoryVectorStore()
		}
		store, err := NewMilvusVectorStore(ctx, cfg, emb)
		if err != nil {
			config.Log.WithError(err).Warn("milvus unavailable, falling back to memory store")
			return NewMemoryVectorStore()
		}
		config.Log.Info("using milvus store")
		return store
	default:
		return NewMemoryVectorStore()
	}
}

// ========== Memory implementation ==========

// MemoryVectorStore keeps term-weight vectors per video in process memory.
// It needs no credentials and is fully deterministic, which also makes it
// the test backend.
type MemoryVectorStore struct {
	mu   sync.RWMutex
	docs map[string][]memoryDoc
}

type memoryDoc struct {
	item  core.Item
	terms map[string]float64
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{docs: make(map[string][]memoryDoc)}
}

func (m *MemoryVectorStore) Upsert(_ context.Context, videoID string, items []core.Item) (int, error) {
	docs := make([]memoryDoc, 0, len(items))
	for _, it := range items {
		docs = append(docs, memoryDoc{item: it, terms: termWeights(it.Text + " " + it.Summary)})
	}
	m.mu.Lock()
	m.docs[videoID] = docs
	m.mu.Unlock()
	return len(docs), nil
}

func (m *MemoryVectorStore) Search(_ context.Context, videoID, query string, topK int) ([]core.Hit, error) {
	queryTerms := termWeights(query)

	m.mu.RLock()
	docs := m.docs[videoID]
	m.mu.RUnlock()

	hits := make([]core.Hit, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, core.Hit{
			Score:     cosineSparse(queryTerms, d.terms),
			Start:     d.item.Start,
			End:       d.item.End,
			Text:      d.item.Text,
			Summary:   d.item.Summary,
			FramePath: d.item.FramePath,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func termWeights(text string) map[string]float64 {
	weights := make(map[string]float64)
	for _, tok := range core.Tokenize(text) {
		weights[tok]++
	}
	var norm float64
	for _, w := range weights {
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for t := range weights {
			weights[t] /= norm
		}
	}
	return weights
}

func cosineSparse(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for t, w := range a {
		dot += w * b[t]
	}
	return dot
}

// ========== Index building ==========

// BuildIndexItems flattens an artifact into store rows, pairing each
// transcript segment with the captured frame nearest its midpoint.
func BuildIndexItems(artifact *core.SummaryArtifact) []core.Item {
	items := make([]core.Item, 0, len(artifact.Segments))
	for _, seg := range artifact.Segments {
		items = append(items, core.Item{
			Start:     seg.Start,
			End:       seg.End,
			Text:      seg.Text,
			Summary:   artifact.Summary.Summary,
			FramePath: closestFramePath(artifact.Keyframes, seg),
		})
	}
	return items
}

func closestFramePath(frames []core.Keyframe, seg core.Segment) string {
	if len(frames) == 0 {
		return ""
	}
	mid := (seg.Start + seg.End) / 2
	best := frames[0]
	bestDist := math.Abs(frames[0].TimestampSec - mid)
	for _, f := range frames[1:] {
		if d := math.Abs(f.TimestampSec - mid); d < bestDist {
			best, bestDist = f, d
		}
	}
	return best.Path
}

// ========== Answer synthesis ==========

// SynthesizeAnswer renders search hits into a readable reply with timestamp
// citations.
func SynthesizeAnswer(question string, hits []core.Hit) string {
	if len(hits) == 0 {
		return "No relevant content found for this question."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Relevant moments for %q:\n", question)
	for _, h := range hits {
		fmt.Fprintf(&b, "- [%s - %s] %s\n", core.FormatTime(h.Start), core.FormatTime(h.End), snippet(h.Text, 160))
	}
	return b.String()
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "..."
}
