// Package learned persists the label-to-answer mappings the form filler has
// been taught. A label has at most one active mapping; writing a label that
// already exists replaces its mapping and bumps the revision.
package learned

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/entrhq/autofill/pkg/label"
	"github.com/entrhq/autofill/pkg/types"
)

var (
	ErrNotFound = errors.New("learned: mapping not found")

	// ErrDuplicateLabel guards the one-mapping-per-label invariant. Put
	// resolves it by replacing the existing mapping; callers never see it.
	ErrDuplicateLabel = errors.New("learned: label already mapped")
)

// timeNow is injected for testability
var timeNow = time.Now

// Lookup is the read side of the store, used by the matcher.
type Lookup interface {
	Get(label string) (types.LearnedMapping, bool)
}

// Store is the read/write interface for learned mappings.
type Store interface {
	Lookup
	Put(ctx context.Context, m types.LearnedMapping) (types.LearnedMapping, error)
	Delete(ctx context.Context, label string) error
	List() []types.LearnedMapping
	Len() int
}

// index is the in-memory table both store implementations share.
type index struct {
	mu       sync.RWMutex
	mappings map[string]types.LearnedMapping
}

func newIndex() *index {
	return &index{mappings: make(map[string]types.LearnedMapping)}
}

func (ix *index) Get(l string) (types.LearnedMapping, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	m, ok := ix.mappings[label.Normalize(l)]
	return m, ok
}

func (ix *index) List() []types.LearnedMapping {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]types.LearnedMapping, 0, len(ix.mappings))
	for _, m := range ix.mappings {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func (ix *index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.mappings)
}

// insert adds m and fails with ErrDuplicateLabel if the label is taken.
// Callers hold ix.mu.
func (ix *index) insert(m types.LearnedMapping) error {
	if _, exists := ix.mappings[m.Label]; exists {
		return ErrDuplicateLabel
	}
	ix.mappings[m.Label] = m
	return nil
}

// upsert stores m, replacing any mapping for the same label. It returns the
// stored mapping with timestamps and revision filled in. Callers hold ix.mu.
func (ix *index) upsert(m types.LearnedMapping) (types.LearnedMapping, error) {
	m.Label = label.Normalize(m.Label)
	if err := validate(m); err != nil {
		return types.LearnedMapping{}, err
	}

	now := timeNow().UTC()
	m.UpdatedAt = now
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.Revision == 0 {
		m.Revision = 1
	}

	err := ix.insert(m)
	if errors.Is(err, ErrDuplicateLabel) {
		prev := ix.mappings[m.Label]
		m.CreatedAt = prev.CreatedAt
		m.Revision = prev.Revision + 1
		ix.mappings[m.Label] = m
		err = nil
	}
	return m, err
}

// MemoryStore keeps mappings in memory only.
type MemoryStore struct {
	*index
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(seed ...types.LearnedMapping) *MemoryStore {
	s := &MemoryStore{index: newIndex()}
	for _, m := range seed {
		_, _ = s.Put(context.Background(), m)
	}
	return s
}

// Put stores m, replacing any mapping for the same label.
func (s *MemoryStore) Put(_ context.Context, m types.LearnedMapping) (types.LearnedMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsert(m)
}

// Delete removes the mapping for l.
func (s *MemoryStore) Delete(_ context.Context, l string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := label.Normalize(l)
	if _, ok := s.mappings[key]; !ok {
		return ErrNotFound
	}
	delete(s.mappings, key)
	return nil
}
