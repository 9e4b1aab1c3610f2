package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/andresmejia3/memento/internal/types"
	"github.com/andresmejia3/memento/internal/utils"
)

// fakeRepo returns canned people per scope, or err when set.
type fakeRepo struct {
	mu     sync.Mutex
	people map[string][]types.PersonRecord
	err    error
	calls  int
}

func (f *fakeRepo) PeopleInScope(ctx context.Context, scope string) ([]types.PersonRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.people[scope], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_NormalizesAndSorts(t *testing.T) {
	repo := &fakeRepo{people: map[string][]types.PersonRecord{
		"user-1": {
			{ID: "b", Name: "Bob", Embedding: []float64{0, 3}},
			{ID: "a", Name: "Alice", Embedding: []float64{4, 0}},
		},
	}}
	s := New(repo, quietLogger())

	set, err := s.Load(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("Expected 2 records, got %d", set.Len())
	}
	if set.Records()[0].ID != "a" || set.Records()[1].ID != "b" {
		t.Errorf("Expected records sorted by ID, got %s, %s", set.Records()[0].ID, set.Records()[1].ID)
	}
	for _, r := range set.Records() {
		if !utils.IsUnit(r.Embedding, 1e-5) {
			t.Errorf("Embedding of %s is not unit-norm: %v", r.Name, r.Embedding)
		}
	}
	if s.Snapshot() != set {
		t.Error("Snapshot should return the loaded set")
	}
	if alice, ok := recordByID(set, "a"); !ok || alice.Name != "Alice" {
		t.Errorf("record a = %+v, %v", alice, ok)
	}
}

func TestLoad_DoesNotAliasRepositoryVectors(t *testing.T) {
	raw := []float64{3, 4}
	repo := &fakeRepo{people: map[string][]types.PersonRecord{
		"u": {{ID: "1", Name: "Alice", Embedding: raw}},
	}}
	s := New(repo, quietLogger())
	if _, err := s.Load(context.Background(), "u"); err != nil {
		t.Fatal(err)
	}
	if raw[0] != 3 || raw[1] != 4 {
		t.Errorf("repository slice mutated: %v", raw)
	}
}

func TestLoad_SkipsUnusableRecords(t *testing.T) {
	repo := &fakeRepo{people: map[string][]types.PersonRecord{
		"u": {
			{ID: "1", Name: "NoPhoto"},
			{ID: "2", Name: "Zero", Embedding: []float64{0, 0}},
			{ID: "3", Name: "Ok", Embedding: []float64{1, 1}},
			{ID: "3", Name: "Duplicate", Embedding: []float64{1, 0}},
		},
	}}
	s := New(repo, quietLogger())
	set, err := s.Load(context.Background(), "u")
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 1 || set.Records()[0].Name != "Ok" {
		t.Errorf("Expected only Ok, got %+v", set.Records())
	}
}

func TestLoad_EmptyScopeIsNotAnError(t *testing.T) {
	s := New(&fakeRepo{}, quietLogger())
	set, err := s.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Expected no error on empty scope, got %v", err)
	}
	if set.Len() != 0 || set.Scope() != "nobody" {
		t.Errorf("Expected empty set for scope nobody, got %d records in %q", set.Len(), set.Scope())
	}
}

func TestLoad_InitialFailureYieldsEmptySet(t *testing.T) {
	s := New(&fakeRepo{err: errors.New("connection refused")}, quietLogger())
	set, err := s.Load(context.Background(), "u")
	if err == nil {
		t.Fatal("Expected error")
	}
	if set == nil || set.Len() != 0 {
		t.Errorf("Expected empty set after failed initial load, got %v", set)
	}
	if s.Snapshot().Len() != 0 {
		t.Error("Snapshot should be empty")
	}
}

func TestLoad_FailedReloadKeepsSnapshot(t *testing.T) {
	repo := &fakeRepo{people: map[string][]types.PersonRecord{
		"u": {
			{ID: "1", Name: "Alice", Embedding: []float64{1, 0}},
			{ID: "2", Name: "Bob", Embedding: []float64{0, 1}},
		},
	}}
	s := New(repo, quietLogger())
	before, err := s.Load(context.Background(), "u")
	if err != nil {
		t.Fatal(err)
	}

	repo.err = errors.New("timeout")
	after, err := s.Load(context.Background(), "u")
	if err == nil {
		t.Fatal("Expected reload error")
	}
	if !errors.Is(err, repo.err) {
		t.Errorf("Expected wrapped repository error, got %v", err)
	}
	if after != before || s.Snapshot() != before {
		t.Error("Failed reload must leave the previous snapshot active")
	}
	if before.Len() != 2 {
		t.Errorf("Previous snapshot was modified: %d records", before.Len())
	}
}

func TestLoad_ReloadReplacesWholesale(t *testing.T) {
	repo := &fakeRepo{people: map[string][]types.PersonRecord{
		"u": {
			{ID: "1", Name: "Alice", Embedding: []float64{1, 0}},
			{ID: "2", Name: "Bob", Embedding: []float64{0, 1}},
		},
	}}
	s := New(repo, quietLogger())
	first, _ := s.Load(context.Background(), "u")

	// Bob deleted, Carol enrolled
	repo.people["u"] = []types.PersonRecord{
		{ID: "1", Name: "Alice", Embedding: []float64{1, 0}},
		{ID: "3", Name: "Carol", Embedding: []float64{1, 1}},
	}
	second, err := s.Load(context.Background(), "u")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := recordByID(second, "2"); ok {
		t.Error("Deleted enrollee should vanish after reload")
	}
	if _, ok := recordByID(second, "3"); !ok {
		t.Error("New enrollee should appear after reload")
	}
	if _, ok := recordByID(first, "2"); !ok {
		t.Error("Old snapshot must stay intact for readers still holding it")
	}
}

func TestSnapshot_ConcurrentReadersSeeWholeSets(t *testing.T) {
	small := []types.PersonRecord{{ID: "1", Name: "A", Embedding: []float64{1, 0}}}
	large := []types.PersonRecord{
		{ID: "1", Name: "A", Embedding: []float64{1, 0}},
		{ID: "2", Name: "B", Embedding: []float64{0, 1}},
		{ID: "3", Name: "C", Embedding: []float64{1, 1}},
	}
	repo := &fakeRepo{people: map[string][]types.PersonRecord{"u": small}}
	s := New(repo, quietLogger())

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				n := s.Snapshot().Len()
				if n != 0 && n != 1 && n != 3 {
					t.Errorf("Observed partially built set with %d records", n)
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		repo.mu.Lock()
		if i%2 == 0 {
			repo.people["u"] = large
		} else {
			repo.people["u"] = small
		}
		repo.mu.Unlock()
		if _, err := s.Load(context.Background(), "u"); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}

func recordByID(set *KnownFaceSet, id string) (types.PersonRecord, bool) {
	for _, r := range set.Records() {
		if r.ID == id {
			return r, true
		}
	}
	return types.PersonRecord{}, false
}
