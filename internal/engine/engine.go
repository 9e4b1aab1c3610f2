// Package engine runs the live recognition loop: capture a frame, detect faces
// every Nth frame, match them against the loaded scope, draw the overlay, show
// the frame and react to one key press.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/andresmejia3/memento/internal/match"
	"github.com/andresmejia3/memento/internal/overlay"
	"github.com/andresmejia3/memento/internal/store"
	"github.com/andresmejia3/memento/internal/types"
)

// Detector finds faces and their embeddings in a frame.
type Detector interface {
	Detect(ctx context.Context, frame *image.RGBA) ([]types.DetectedFace, error)
}

// CaptureSource yields frames. Read blocks until a frame is available and
// returns io.EOF when a finite source is exhausted.
type CaptureSource interface {
	Open(ctx context.Context) error
	Read(ctx context.Context) (*image.RGBA, error)
	Close() error
}

// DisplaySink presents frames and reports at most one pending key per poll.
type DisplaySink interface {
	Show(frame *image.RGBA) error
	PollKey() (rune, bool)
	Close() error
}

// State is the lifecycle state of an Engine.
type State int32

const (
	StateIdle State = iota
	StateLoaded
	StateRunning
	StateReloading
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateReloading:
		return "reloading"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Keys understood by the loop.
const (
	KeyQuit   = 'q'
	KeyReload = 'r'
)

// Deps are the collaborators owned by one Engine.
type Deps struct {
	Detector Detector
	Store    *store.EmbeddingStore
	Capture  CaptureSource
	Display  DisplaySink
	Renderer overlay.Renderer
	Logger   *slog.Logger
}

// Options tune the loop. The zero value is usable.
type Options struct {
	ShowStats       bool
	RefreshOnReload bool
	FPSWindow       int

	// OnLoad is called after every successful load of the face set.
	OnLoad func(set *store.KnownFaceSet)
	// BeforeRun is called once with the active set after the initial load,
	// failed or not. Returning false stops the engine before the capture opens.
	BeforeRun func(set *store.KnownFaceSet) bool
	// OnFrame is called once per cycle after the frame was shown.
	OnFrame func(state types.FrameState, results []types.MatchResult)
}

// Stats summarizes a run.
type Stats struct {
	Frames          int
	Detections      int
	DetectionErrors int
	Reloads         int
	FPS             float64
}

// Engine owns one recognition session.
type Engine struct {
	deps  Deps
	opts  Options
	log   *slog.Logger
	state atomic.Int32

	monitor *PerformanceMonitor
	stats   Stats
}

// New wires an engine. Detector, Store, Capture, Display and Renderer are required.
func New(deps Deps, opts Options) (*Engine, error) {
	switch {
	case deps.Detector == nil:
		return nil, errors.New("engine: detector is required")
	case deps.Store == nil:
		return nil, errors.New("engine: store is required")
	case deps.Capture == nil:
		return nil, errors.New("engine: capture source is required")
	case deps.Display == nil:
		return nil, errors.New("engine: display is required")
	case deps.Renderer == nil:
		return nil, errors.New("engine: renderer is required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		deps:    deps,
		opts:    opts,
		log:     log,
		monitor: NewPerformanceMonitor(opts.FPSWindow),
	}, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) {
	prev := State(e.state.Swap(int32(s)))
	if prev != s {
		e.log.Debug("state change", "from", prev.String(), "to", s.String())
	}
}

// Stats returns the counters of the last run.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.FPS = e.monitor.Mean()
	return s
}

// Start loads the faces of scope, opens the capture source and runs cycles until
// the quit key, cancellation of ctx, the end of a finite source or a fatal error.
// Capture and display are closed on every exit path.
func (e *Engine) Start(ctx context.Context, scope string, threshold float64, skipInterval int) error {
	if e.State() != StateIdle {
		return fmt.Errorf("engine: already started (state %s)", e.State())
	}

	opened := false
	defer func() {
		if opened {
			if cerr := e.deps.Capture.Close(); cerr != nil {
				e.log.Warn("failed to release capture", "error", cerr)
			}
		}
		if derr := e.deps.Display.Close(); derr != nil {
			e.log.Warn("failed to release display", "error", derr)
		}
		e.setState(StateStopped)
	}()

	// A failed initial load leaves the empty set active.
	e.load(ctx, scope)
	e.setState(StateLoaded)
	if e.opts.BeforeRun != nil && !e.opts.BeforeRun(e.deps.Store.Snapshot()) {
		e.log.Info("live loop not started", "scope", scope)
		return nil
	}

	if err := e.deps.Capture.Open(ctx); err != nil {
		return e.fatal(&Error{Kind: KindCapture, Op: "open", Err: err})
	}
	opened = true

	e.setState(StateRunning)
	cache := NewDetectionCache(skipInterval)
	e.log.Info("live loop started", "scope", scope, "threshold", threshold, "skip_interval", cache.Interval())

	for index := 0; ; index++ {
		select {
		case <-ctx.Done():
			e.log.Info("live loop interrupted", "frames", e.stats.Frames)
			return nil
		default:
		}

		quit, reload, err := e.cycle(ctx, cache, index, threshold)
		if err != nil {
			return err
		}
		if quit {
			e.log.Info("live loop finished", "frames", e.stats.Frames, "fps", e.monitor.Mean())
			return nil
		}
		if reload {
			e.reload(ctx, scope, cache)
		}
	}
}

// cycle processes one frame. quit is set on the quit key, at the end of a finite
// source and when a read fails because ctx was cancelled.
func (e *Engine) cycle(ctx context.Context, cache *DetectionCache, index int, threshold float64) (quit, reload bool, err error) {
	start := time.Now()

	frame, err := e.deps.Capture.Read(ctx)
	if errors.Is(err, io.EOF) {
		return true, false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation kills the source, its read error is not a capture failure
			return true, false, nil
		}
		return false, false, e.fatal(&Error{Kind: KindCapture, Op: "read", Err: err})
	}
	if frame == nil {
		return false, false, e.fatal(&Error{Kind: KindCapture, Op: "read", Err: errors.New("empty frame")})
	}

	faces, ran, derr := cache.Step(index, func() ([]types.DetectedFace, error) {
		return e.deps.Detector.Detect(ctx, frame)
	})
	if ran {
		e.stats.Detections++
	}
	if derr != nil {
		e.stats.DetectionErrors++
		derr = &Error{Kind: KindDetection, Op: "detect", Err: derr}
		e.log.Warn("detection failed, reusing previous faces", "kind", string(KindDetection), "frame", index, "error", derr)
	}

	// One snapshot per cycle so every face of the frame sees the same set.
	snapshot := e.deps.Store.Snapshot()
	results := match.MatchAll(faces, snapshot, threshold)
	for i, face := range faces {
		e.deps.Renderer.Render(frame, face, results[i])
	}
	if e.opts.ShowStats {
		overlay.DrawStats(frame, e.monitor.Mean(), len(faces))
	}

	if err := e.deps.Display.Show(frame); err != nil {
		return false, false, e.fatal(&Error{Kind: KindDisplay, Op: "show", Err: err})
	}
	e.stats.Frames++
	if e.opts.OnFrame != nil {
		e.opts.OnFrame(types.FrameState{Frame: frame, Index: index, Faces: faces, Age: cache.Age()}, results)
	}

	if key, ok := e.deps.Display.PollKey(); ok {
		switch key {
		case KeyQuit, 'Q':
			quit = true
		case KeyReload, 'R':
			reload = true
		}
	}

	e.monitor.Add(time.Since(start))
	return quit, reload, nil
}

func (e *Engine) reload(ctx context.Context, scope string, cache *DetectionCache) {
	e.setState(StateReloading)
	defer e.setState(StateRunning)

	e.stats.Reloads++
	if !e.load(ctx, scope) {
		return
	}
	if e.opts.RefreshOnReload {
		cache.Invalidate()
	}
}

// load reports whether a new set became active.
func (e *Engine) load(ctx context.Context, scope string) bool {
	set, err := e.deps.Store.Load(ctx, scope)
	if err != nil {
		err = &Error{Kind: KindRepository, Op: "load", Err: err}
		e.log.Warn("keeping previously loaded faces", "kind", string(KindRepository), "scope", scope, "known", set.Len(), "error", err)
		return false
	}
	e.log.Info("faces loaded", "scope", set.Scope(), "known", set.Len())
	if e.opts.OnLoad != nil {
		e.opts.OnLoad(set)
	}
	return true
}

func (e *Engine) fatal(err *Error) error {
	e.log.Error("live loop stopped", "kind", string(err.Kind), "op", err.Op, "error", err.Err)
	return err
}
