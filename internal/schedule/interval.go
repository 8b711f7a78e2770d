package schedule

import (
	"sort"

	"cloud.google.com/go/civil"
)

// interval is a half-open [start, end) span in minutes since midnight.
type interval struct {
	start int
	end   int
}

func (iv interval) empty() bool { return iv.end <= iv.start }

func (iv interval) overlaps(o interval) bool {
	return iv.start < o.end && o.start < iv.end
}

func minuteOf(t civil.Time) int {
	return t.Hour*60 + t.Minute
}

func clockOf(m int) civil.Time {
	return civil.Time{Hour: m / 60, Minute: m % 60}
}

func intervalOf(start, end civil.Time) interval {
	return interval{start: minuteOf(start), end: minuteOf(end)}
}

// normalize sorts spans and merges the ones that overlap or touch.
func normalize(spans []interval) []interval {
	out := make([]interval, 0, len(spans))
	for _, iv := range spans {
		if !iv.empty() {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].end < out[j].end
	})

	merged := out[:0]
	for _, iv := range out {
		if n := len(merged); n > 0 && iv.start <= merged[n-1].end {
			if iv.end > merged[n-1].end {
				merged[n-1].end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func union(a, b []interval) []interval {
	all := make([]interval, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return normalize(all)
}

// subtract removes every cut from spans. A cut inside a span splits it in two.
func subtract(spans, cuts []interval) []interval {
	out := normalize(spans)
	for _, cut := range normalize(cuts) {
		next := make([]interval, 0, len(out)+1)
		for _, iv := range out {
			if !iv.overlaps(cut) {
				next = append(next, iv)
				continue
			}
			if iv.start < cut.start {
				next = append(next, interval{start: iv.start, end: cut.start})
			}
			if cut.end < iv.end {
				next = append(next, interval{start: cut.end, end: iv.end})
			}
		}
		out = next
	}
	return out
}

// tile cuts each span into consecutive pieces of exactly size minutes,
// dropping any shorter remainder, and keeps at most limit pieces.
func tile(spans []interval, size, limit int) []interval {
	if size <= 0 || limit <= 0 {
		return nil
	}
	var out []interval
	for _, iv := range spans {
		for start := iv.start; start+size <= iv.end; start += size {
			if len(out) == limit {
				return out
			}
			out = append(out, interval{start: start, end: start + size})
		}
	}
	return out
}
