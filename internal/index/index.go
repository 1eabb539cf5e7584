// Package index provides the semantic retrieval index over tasks.
//
// The index is rebuilt from the full task set before queries so results are
// never stale. Relevance is reported as 1 - cosine distance, clamped to [0,1].
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// Embedder turns texts into vectors. Vectors for one call share a dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// corpusFitter is implemented by embedders whose vector space depends on the corpus.
type corpusFitter interface {
	Fit(texts []string)
}

type entry struct {
	task models.Task
	vec  []float64
}

// VectorIndex is an in-memory nearest-neighbor index.
type VectorIndex struct {
	embedder Embedder

	mu      sync.RWMutex
	entries []entry
}

// NewVectorIndex creates an index using the given embedder.
func NewVectorIndex(embedder Embedder) *VectorIndex {
	return &VectorIndex{embedder: embedder}
}

// Rebuild replaces the indexed set with tasks.
func (ix *VectorIndex) Rebuild(ctx context.Context, tasks []models.Task) error {
	texts := make([]string, len(tasks))
	for i, t := range tasks {
		texts[i] = t.IndexText()
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if f, ok := ix.embedder.(corpusFitter); ok {
		f.Fit(texts)
	}

	if len(tasks) == 0 {
		ix.entries = nil
		return nil
	}

	vecs, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d documents: %w", len(texts), err)
	}
	if len(vecs) != len(tasks) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vecs), len(tasks))
	}

	entries := make([]entry, len(tasks))
	for i, t := range tasks {
		entries[i] = entry{task: t, vec: vecs[i]}
	}
	ix.entries = entries
	return nil
}

// Len returns the number of indexed tasks.
func (ix *VectorIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Query returns up to limit hits ordered by descending relevance.
// An empty index yields an empty result, not an error.
func (ix *VectorIndex) Query(ctx context.Context, text string, limit int) ([]models.SearchHit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make([]models.SearchHit, 0)
	if len(ix.entries) == 0 || limit <= 0 {
		return hits, nil
	}

	vecs, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vecs))
	}
	q := vecs[0]

	for _, e := range ix.entries {
		distance := 1 - cosine(q, e.vec)
		hits = append(hits, models.SearchHit{
			ID:             e.task.ID,
			Title:          e.task.Title,
			Description:    e.task.DescriptionText(),
			CreatedAt:      e.task.CreatedAt,
			RelevanceScore: clamp01(1 - distance),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].RelevanceScore > hits[j].RelevanceScore
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
