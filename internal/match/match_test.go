package match

import (
	"math"
	"testing"

	"github.com/andresmejia3/memento/internal/store"
	"github.com/andresmejia3/memento/internal/types"
)

func aliceBobSet() *store.KnownFaceSet {
	set, _ := store.NewKnownFaceSet("user-1", []types.PersonRecord{
		{ID: "1", Name: "Alice", Relation: "Daughter", Summary: "Visits on Sundays", Embedding: []float64{1, 0, 0}},
		{ID: "2", Name: "Bob", Relation: "Son", Embedding: []float64{0, 1, 0}},
	})
	return set
}

func TestMatchOne(t *testing.T) {
	set := aliceBobSet()

	tests := []struct {
		name      string
		query     []float64
		threshold float64
		wantMatch bool
		wantName  string
		wantScore float64
	}{
		{
			name:      "Exact Alice",
			query:     []float64{1, 0, 0},
			threshold: DefaultThreshold,
			wantMatch: true,
			wantName:  "Alice",
			wantScore: 1.0,
		},
		{
			name:      "Scaled query still Alice",
			query:     []float64{9, 0.5, 0},
			threshold: DefaultThreshold,
			wantMatch: true,
			wantName:  "Alice",
			wantScore: 9 / math.Sqrt(81.25),
		},
		{
			name:      "Mostly Bob",
			query:     []float64{0.2, 0.9, 0.1},
			threshold: DefaultThreshold,
			wantMatch: true,
			wantName:  "Bob",
			wantScore: 0.9 / math.Sqrt(0.86),
		},
		{
			name:      "Orthogonal to everyone",
			query:     []float64{0, 0, 1},
			threshold: DefaultThreshold,
			wantMatch: false,
			wantName:  types.UnknownLabel,
			wantScore: 0,
		},
		{
			name:      "Below a strict threshold",
			query:     []float64{1, 1, 1},
			threshold: 0.9,
			wantMatch: false,
			wantName:  types.UnknownLabel,
			wantScore: 1 / math.Sqrt(3),
		},
		{
			name:      "Score equal to threshold matches",
			query:     []float64{1, 0, 0},
			threshold: 1.0,
			wantMatch: true,
			wantName:  "Alice",
			wantScore: 1.0,
		},
		{
			name:      "Dimension mismatch scores zero",
			query:     []float64{1, 0},
			threshold: DefaultThreshold,
			wantMatch: false,
			wantName:  types.UnknownLabel,
			wantScore: 0,
		},
		{
			name:      "NaN embedding never matches",
			query:     []float64{math.NaN(), 0, 0},
			threshold: 1.0,
			wantMatch: false,
			wantName:  types.UnknownLabel,
			wantScore: 0,
		},
		{
			name:      "NaN embedding with the loosest threshold",
			query:     []float64{math.NaN(), 0, 0},
			threshold: -1.0,
			wantMatch: false,
			wantName:  types.UnknownLabel,
			wantScore: 0,
		},
		{
			name:      "Infinite embedding never matches",
			query:     []float64{math.Inf(1), 0, 0},
			threshold: DefaultThreshold,
			wantMatch: false,
			wantName:  types.UnknownLabel,
			wantScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchOne(tt.query, set, tt.threshold)
			if got.Matched != tt.wantMatch {
				t.Errorf("Matched = %v, want %v", got.Matched, tt.wantMatch)
			}
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if math.Abs(got.Score-tt.wantScore) > 1e-9 {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
		})
	}
}

func TestMatchOne_CarriesIdentityFields(t *testing.T) {
	got := MatchOne([]float64{1, 0, 0}, aliceBobSet(), DefaultThreshold)
	if got.PersonID != "1" || got.Relation != "Daughter" || got.Summary != "Visits on Sundays" {
		t.Errorf("Unexpected result: %+v", got)
	}

	unknown := MatchOne([]float64{0, 0, 1}, aliceBobSet(), DefaultThreshold)
	if unknown.Relation != types.UnknownLabel || unknown.PersonID != "" {
		t.Errorf("Unknown result should carry no identity: %+v", unknown)
	}
}

func TestMatchOne_EmptySet(t *testing.T) {
	for _, set := range []*store.KnownFaceSet{store.EmptySet("u"), nil} {
		got := MatchOne([]float64{1, 0, 0}, set, DefaultThreshold)
		if got.Matched || got.Name != types.UnknownLabel || got.Score != 0 {
			t.Errorf("Expected Unknown with score 0, got %+v", got)
		}
	}
}

func TestMatchOne_TieBreakLowestID(t *testing.T) {
	// Same embedding enrolled twice, inserted out of order
	set, _ := store.NewKnownFaceSet("u", []types.PersonRecord{
		{ID: "b", Name: "Twin B", Embedding: []float64{0, 1}},
		{ID: "a", Name: "Twin A", Embedding: []float64{0, 1}},
	})
	for i := 0; i < 10; i++ {
		got := MatchOne([]float64{0, 2}, set, DefaultThreshold)
		if got.PersonID != "a" {
			t.Fatalf("Expected lowest ID to win the tie, got %q", got.PersonID)
		}
	}
}

func TestMatchOne_ThresholdMonotonic(t *testing.T) {
	set := aliceBobSet()
	queries := [][]float64{
		{1, 0, 0},
		{0.7, 0.7, 0.1},
		{0.3, 0.1, 0.9},
		{-1, 0, 0},
		{math.NaN(), 1, 0},
	}
	thresholds := []float64{-1, 0, 0.1, 0.3, 0.5, 0.7, 0.9, 1.0}

	for _, q := range queries {
		prev := true
		for _, th := range thresholds {
			got := MatchOne(q, set, th).Matched
			if got && !prev {
				t.Errorf("query %v matched at %v but not at a lower threshold", q, th)
			}
			prev = got
		}
	}
}

func TestMatchAll(t *testing.T) {
	faces := []types.DetectedFace{
		{Embedding: []float64{1, 0, 0}},
		{Embedding: []float64{0, 1, 0}},
		{Embedding: []float64{0, 0, 1}},
	}
	got := MatchAll(faces, aliceBobSet(), DefaultThreshold)
	want := []string{"Alice", "Bob", types.UnknownLabel}
	if len(got) != len(want) {
		t.Fatalf("Expected %d results, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Errorf("face %d: got %q, want %q", i, got[i].Name, want[i])
		}
	}
}
