package engine

import (
	"time"

	"gonum.org/v1/gonum/floats"
)

// DefaultFPSWindow is the number of samples averaged by PerformanceMonitor.
const DefaultFPSWindow = 30

// PerformanceMonitor keeps a rolling window of instantaneous frame rates.
type PerformanceMonitor struct {
	samples []float64
	next    int
	full    bool
}

// NewPerformanceMonitor returns a monitor averaging the last window samples.
func NewPerformanceMonitor(window int) *PerformanceMonitor {
	if window < 1 {
		window = DefaultFPSWindow
	}
	return &PerformanceMonitor{samples: make([]float64, window)}
}

// Add records one cycle and returns the current mean. Non-positive durations are ignored.
func (m *PerformanceMonitor) Add(processing time.Duration) float64 {
	if processing <= 0 {
		return m.Mean()
	}
	fps := 1 / processing.Seconds()

	m.samples[m.next] = fps
	m.next++
	if m.next == len(m.samples) {
		m.next = 0
		m.full = true
	}
	return m.Mean()
}

// Len returns the number of samples in the window.
func (m *PerformanceMonitor) Len() int {
	if m.full {
		return len(m.samples)
	}
	return m.next
}

// Mean returns the arithmetic mean of the window, or 0 when empty.
func (m *PerformanceMonitor) Mean() float64 {
	n := m.Len()
	if n == 0 {
		return 0
	}
	return floats.Sum(m.samples[:n]) / float64(n)
}
