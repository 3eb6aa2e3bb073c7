package stats

import "sync/atomic"

// bucket counts receives within one unix second.
type bucket struct {
	second atomic.Int64
	count  atomic.Int64
	bytes  atomic.Int64
}

// window is a lock-free ring of per-second buckets. Writers racing on a
// bucket rollover may lose a few increments; Tracker totals stay exact.
type window struct {
	buckets []bucket
}

func newWindow(seconds int) *window {
	if seconds < 1 {
		seconds = 1
	}
	// +1 for the second currently being filled
	return &window{buckets: make([]bucket, seconds+1)}
}

func (w *window) slot(sec int64) *bucket {
	return &w.buckets[uint64(sec)%uint64(len(w.buckets))]
}

func (w *window) add(sec int64, size int) {
	b := w.slot(sec)
	if cur := b.second.Load(); cur != sec {
		if b.second.CompareAndSwap(cur, sec) {
			b.count.Store(0)
			b.bytes.Store(0)
		}
	}
	b.count.Add(1)
	b.bytes.Add(int64(size))
}

// at returns the counts recorded for sec, or zeros if the bucket has rolled.
func (w *window) at(sec int64) (count, bytes int64) {
	b := w.slot(sec)
	if b.second.Load() != sec {
		return 0, 0
	}
	return b.count.Load(), b.bytes.Load()
}

// entries returns how many of the completed seconds before now have data.
func (w *window) entries(now int64) int {
	n := 0
	for sec := now - int64(len(w.buckets)-1); sec < now; sec++ {
		if c, _ := w.at(sec); c > 0 {
			n++
		}
	}
	return n
}

func (w *window) reset() {
	for i := range w.buckets {
		w.buckets[i].second.Store(0)
		w.buckets[i].count.Store(0)
		w.buckets[i].bytes.Store(0)
	}
}
