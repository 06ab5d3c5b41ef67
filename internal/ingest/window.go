package ingest

import "github.com/synheart/synheart-guard/internal/models"

// DefaultWindowSize is the number of samples kept when no size is configured.
const DefaultWindowSize = 60

// Window is a fixed-capacity ring of the most recent samples.
// It is not safe for concurrent use; the engine loop owns it.
type Window struct {
	buf  []models.BiometricSample
	next int
	size int
}

// NewWindow creates a window holding at most capacity samples.
// A non-positive capacity falls back to DefaultWindowSize.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{buf: make([]models.BiometricSample, capacity)}
}

// Push appends a sample, evicting the oldest one when full.
func (w *Window) Push(s models.BiometricSample) {
	w.buf[w.next] = s
	w.next = (w.next + 1) % len(w.buf)
	if w.size < len(w.buf) {
		w.size++
	}
}

// Len returns the number of samples held.
func (w *Window) Len() int { return w.size }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Latest returns the most recent sample.
func (w *Window) Latest() (models.BiometricSample, bool) {
	if w.size == 0 {
		return models.BiometricSample{}, false
	}
	return w.buf[w.index(0)], true
}

// Snapshot returns every held sample, most recent first.
func (w *Window) Snapshot() []models.BiometricSample {
	return w.Recent(w.size)
}

// Recent returns up to n samples, most recent first.
func (w *Window) Recent(n int) []models.BiometricSample {
	if n > w.size {
		n = w.size
	}
	if n <= 0 {
		return []models.BiometricSample{}
	}
	out := make([]models.BiometricSample, n)
	for i := 0; i < n; i++ {
		out[i] = w.buf[w.index(i)]
	}
	return out
}

// Reset empties the window.
func (w *Window) Reset() {
	clear(w.buf)
	w.next = 0
	w.size = 0
}

// index maps an age (0 = newest) to a buffer slot.
func (w *Window) index(age int) int {
	return (w.next - 1 - age + 2*len(w.buf)) % len(w.buf)
}
