package engine

import "fmt"

// Kind classifies failures of the live loop.
type Kind string

const (
	KindCapture    Kind = "capture"    // fatal, the loop stops
	KindDisplay    Kind = "display"    // fatal, the loop stops
	KindRepository Kind = "repository" // recovered, previous faces stay active
	KindDetection  Kind = "detection"  // recovered, previous detections are reused
)

// Error is returned (or logged) by the engine with the failing operation attached.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether the error stops the loop.
func (e *Error) Fatal() bool {
	return e.Kind == KindCapture || e.Kind == KindDisplay
}
