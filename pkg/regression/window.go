package regression

import (
	"math"
	"slices"
	"time"
)

type sample struct {
	latencyMs float64
	at        time.Time
}

// window is a fixed-capacity ring of samples with running sums, so mean and
// standard deviation cost O(1).
type window struct {
	buf   []sample
	head  int // next write position
	n     int
	sum   float64
	sumSq float64
}

func newWindow(capacity int) *window {
	return &window{buf: make([]sample, capacity)}
}

func (w *window) add(s sample) {
	if w.n == len(w.buf) {
		old := w.buf[w.head].latencyMs
		w.sum -= old
		w.sumSq -= old * old
	} else {
		w.n++
	}
	w.buf[w.head] = s
	w.head = (w.head + 1) % len(w.buf)
	w.sum += s.latencyMs
	w.sumSq += s.latencyMs * s.latencyMs
}

func (w *window) reset() {
	clear(w.buf)
	w.head, w.n = 0, 0
	w.sum, w.sumSq = 0, 0
}

func (w *window) mean() float64 {
	if w.n == 0 {
		return 0
	}
	return w.sum / float64(w.n)
}

// stddev is the population standard deviation of the window.
func (w *window) stddev() float64 {
	if w.n == 0 {
		return 0
	}
	m := w.mean()
	v := w.sumSq/float64(w.n) - m*m
	if v < 0 {
		// rounding drift in the running sums
		return 0
	}
	return math.Sqrt(v)
}

func (w *window) sorted() []float64 {
	out := make([]float64, 0, w.n)
	for i := range w.n {
		out = append(out, w.buf[i].latencyMs)
	}
	slices.Sort(out)
	return out
}

// Percentile returns the nearest-rank p-th percentile of sorted:
// sorted[ceil(p/100*n)-1], clamped to the slice. It returns 0 for an empty
// slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(n))) - 1
	idx = max(0, min(idx, n-1))
	return sorted[idx]
}
