package reorder_point

import "math"

// window is a fixed-capacity trailing window over the most recent values.
// Before it fills, mean covers only the values seen so far.
type window struct {
	values []float64
	next   int
	filled bool
}

func newWindow(size int) *window {
	if size < 1 {
		size = 1
	}
	return &window{values: make([]float64, size)}
}

func (w *window) push(v float64) {
	w.values[w.next] = v
	w.next++
	if w.next == len(w.values) {
		w.next = 0
		w.filled = true
	}
}

func (w *window) len() int {
	if w.filled {
		return len(w.values)
	}
	return w.next
}

// mean sums the live values directly so long histories do not accumulate
// running-sum drift.
func (w *window) mean() float64 {
	n := w.len()
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += w.values[i]
	}
	return sum / float64(n)
}

// finiteOrZero returns v and true when v is finite, otherwise 0 and false.
func finiteOrZero(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
