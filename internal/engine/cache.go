package engine

import "github.com/andresmejia3/memento/internal/types"

// DefaultSkipInterval runs detection on every third frame.
const DefaultSkipInterval = 3

// DetectFunc runs one detection on the current frame.
type DetectFunc func() ([]types.DetectedFace, error)

// DetectionCache decides which frames run the detector and keeps the latest
// face list for the frames in between.
//
// Detection runs at indices phase, phase+N, phase+2N, ... where phase is the
// first index seen (normally 0). Invalidate moves the phase to the next index.
type DetectionCache struct {
	interval int
	phase    int
	primed   bool
	force    bool

	faces []types.DetectedFace
	age   int
}

// NewDetectionCache returns a cache detecting every interval frames.
// Intervals below 1 fall back to DefaultSkipInterval.
func NewDetectionCache(interval int) *DetectionCache {
	if interval < 1 {
		interval = DefaultSkipInterval
	}
	return &DetectionCache{interval: interval}
}

// Interval returns N.
func (c *DetectionCache) Interval() int { return c.interval }

// Due reports whether the frame at index would run the detector.
func (c *DetectionCache) Due(index int) bool {
	if !c.primed || c.force {
		return true
	}
	d := index - c.phase
	return d >= 0 && d%c.interval == 0
}

// Step returns the faces to use for the frame at index, calling detect when the
// frame is due. ran reports whether detect was called. When detect fails the
// previous list is returned together with the error.
func (c *DetectionCache) Step(index int, detect DetectFunc) (faces []types.DetectedFace, ran bool, err error) {
	if !c.Due(index) {
		c.age++
		return c.faces, false, nil
	}

	if !c.primed || c.force {
		c.phase = index
		c.primed = true
		c.force = false
	}

	detected, err := detect()
	if err != nil {
		c.age++
		return c.faces, true, err
	}
	c.faces = detected
	c.age = 0
	return c.faces, true, nil
}

// Invalidate forces detection on the next Step and restarts the schedule there.
func (c *DetectionCache) Invalidate() {
	c.force = true
}

// Age is the number of frames since the cached list was produced.
func (c *DetectionCache) Age() int { return c.age }
