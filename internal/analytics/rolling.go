package analytics

// Windows are the rolling window sizes, in entries, of the statistics table.
var Windows = []int{6, 12, 24}

// ring is a fixed-size buffer over the most recent values of a series. It
// tracks how many of the buffered values are defined and their running sum.
type ring struct {
	buf     []Null
	next    int
	filled  int
	defined int
	sum     float64
}

func newRing(size int) *ring {
	return &ring{buf: make([]Null, size)}
}

func (r *ring) push(v Null) {
	if r.filled == len(r.buf) {
		old := r.buf[r.next]
		if old.Valid {
			r.defined--
			r.sum -= old.Float64
		}
	} else {
		r.filled++
	}
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if v.Valid {
		r.defined++
		r.sum += v.Float64
	}
}

// full reports whether the window holds k defined values.
func (r *ring) full() bool {
	return r.filled == len(r.buf) && r.defined == len(r.buf)
}

// oldest returns the first value of the window.
func (r *ring) oldest() Null {
	if r.filled < len(r.buf) {
		return r.buf[0]
	}
	return r.buf[r.next]
}

// mean of the window, undefined until k defined values are buffered.
func (r *ring) mean() Null {
	if !r.full() {
		return None
	}
	return Some(r.sum / float64(len(r.buf)))
}

// span is last minus first over the window, undefined until the window is full.
func (r *ring) span(last float64) Null {
	if !r.full() {
		return None
	}
	return Some(last - r.oldest().Float64)
}
