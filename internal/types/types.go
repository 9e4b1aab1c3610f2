package types

import "image"

// UnknownLabel is the name and relation reported for faces without a match.
const UnknownLabel = "Unknown"

// PersonRecord is an enrolled person as returned by the people repository.
// Embedding is nil for people enrolled without a usable photo.
type PersonRecord struct {
	ID        string
	Scope     string
	Name      string
	Relation  string
	Summary   string
	Embedding []float64
}

// HasEmbedding reports whether the record can take part in matching.
func (p PersonRecord) HasEmbedding() bool {
	return len(p.Embedding) > 0
}

// DetectedFace is a single face produced by a detection cycle.
type DetectedFace struct {
	Box       image.Rectangle // pixel rect, Min = top-left
	Embedding []float64       // raw detector output, not normalized
}

// MatchResult is the outcome of matching one face against the enrolled set.
// Score is reported for unmatched faces too.
type MatchResult struct {
	Matched  bool
	PersonID string
	Name     string
	Relation string
	Summary  string
	Score    float64
}

// FrameState tracks the frame being processed and the detections it reuses.
type FrameState struct {
	Frame *image.RGBA
	Index int
	Faces []DetectedFace
	Age   int // frames since Faces was produced
}
