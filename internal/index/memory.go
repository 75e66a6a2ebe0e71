package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is a brute-force cosine-similarity index. It backs tests and
// single-process deployments where running SurrealDB is overkill.
type Memory struct {
	mu         sync.RWMutex
	dimension  int
	namespaces map[string]map[string]Record
}

var _ VectorIndex = (*Memory)(nil)

// NewMemory creates an empty in-memory index for vectors of the given
// dimension.
func NewMemory(dimension int) *Memory {
	return &Memory{
		dimension:  dimension,
		namespaces: make(map[string]map[string]Record),
	}
}

func (m *Memory) Upsert(ctx context.Context, namespace string, records []Record) error {
	if err := ValidateNamespace(namespace); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]Record)
		m.namespaces[namespace] = ns
	}

	for _, rec := range records {
		if len(rec.Vector) != m.dimension {
			return fmt.Errorf("%w: record %s has %d, index wants %d",
				ErrDimensionMismatch, rec.ID, len(rec.Vector), m.dimension)
		}
		ns[rec.ID] = rec
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, namespace string, vector []float32, k int) ([]Scored, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d, index wants %d",
			ErrDimensionMismatch, len(vector), m.dimension)
	}
	if k <= 0 {
		return []Scored{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Scored, 0, len(m.namespaces[namespace]))
	for _, rec := range m.namespaces[namespace] {
		results = append(results, Scored{Record: rec, Score: cosine(vector, rec.Vector)})
	}

	// Descending by score; id breaks ties so ranking is stable.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ID < results[j].Record.ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *Memory) DeleteDocument(ctx context.Context, namespace, documentID string) (int, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, rec := range m.namespaces[namespace] {
		if rec.Meta.DocumentID == documentID {
			delete(m.namespaces[namespace], id)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) Count(ctx context.Context, namespace string) (int, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace]), nil
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
