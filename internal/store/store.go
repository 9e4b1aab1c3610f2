// Package store holds the in-memory snapshot of enrolled faces for one scope.
//
// A KnownFaceSet is built wholesale from the people repository and is never
// mutated afterwards; reloads publish a new set by swapping a pointer, so a
// reader always sees either the old or the new set in full.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/andresmejia3/memento/internal/types"
	"github.com/andresmejia3/memento/internal/utils"
)

// PeopleRepository is the external source of enrolled people.
type PeopleRepository interface {
	PeopleInScope(ctx context.Context, scope string) ([]types.PersonRecord, error)
}

// KnownFaceSet is an immutable snapshot of the enrolled identities of a scope.
type KnownFaceSet struct {
	scope   string
	records []types.PersonRecord // sorted by ID, embeddings unit-norm
}

// NewKnownFaceSet builds a snapshot from repository records. Records without a
// usable embedding are dropped; the rest are copied and normalized.
func NewKnownFaceSet(scope string, people []types.PersonRecord) (*KnownFaceSet, []types.PersonRecord) {
	set := &KnownFaceSet{scope: scope}
	seen := make(map[string]bool, len(people))
	var skipped []types.PersonRecord

	for _, p := range people {
		if !p.HasEmbedding() {
			skipped = append(skipped, p)
			continue
		}
		emb := utils.Normalize(p.Embedding)
		if !utils.IsUnit(emb, 1e-6) {
			skipped = append(skipped, p) // zero vector
			continue
		}
		if seen[p.ID] {
			skipped = append(skipped, p)
			continue
		}
		seen[p.ID] = true
		p.Embedding = emb
		set.records = append(set.records, p)
	}

	sort.SliceStable(set.records, func(i, j int) bool {
		return set.records[i].ID < set.records[j].ID
	})
	return set, skipped
}

// EmptySet returns a snapshot with no identities.
func EmptySet(scope string) *KnownFaceSet {
	return &KnownFaceSet{scope: scope}
}

// Scope returns the scope the set was loaded for.
func (s *KnownFaceSet) Scope() string { return s.scope }

// Len returns the number of enrolled identities.
func (s *KnownFaceSet) Len() int { return len(s.records) }

// Records returns the identities in ascending ID order. Callers must not modify them.
func (s *KnownFaceSet) Records() []types.PersonRecord { return s.records }

// EmbeddingStore loads KnownFaceSets and publishes the active one.
type EmbeddingStore struct {
	repo    PeopleRepository
	log     *slog.Logger
	current atomic.Pointer[KnownFaceSet]
}

// New creates a store whose active snapshot is empty until the first Load succeeds.
func New(repo PeopleRepository, log *slog.Logger) *EmbeddingStore {
	if log == nil {
		log = slog.Default()
	}
	s := &EmbeddingStore{repo: repo, log: log}
	s.current.Store(EmptySet(""))
	return s
}

// Snapshot returns the active set. It never returns nil.
func (s *EmbeddingStore) Snapshot() *KnownFaceSet {
	return s.current.Load()
}

// Load queries the repository for scope and replaces the active set wholesale.
// On a repository error the active set is left untouched and returned with the error.
func (s *EmbeddingStore) Load(ctx context.Context, scope string) (*KnownFaceSet, error) {
	people, err := s.repo.PeopleInScope(ctx, scope)
	if err != nil {
		return s.Snapshot(), fmt.Errorf("load embeddings for scope %q: %w", scope, err)
	}

	set, skipped := NewKnownFaceSet(scope, people)
	for _, p := range skipped {
		s.log.Warn("skipping person without usable embedding", "person_id", p.ID, "name", p.Name)
	}

	s.current.Store(set)
	return set, nil
}
