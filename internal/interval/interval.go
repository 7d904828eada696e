package interval

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End). Back-to-back intervals
// (one ending exactly where the next begins) do not overlap.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether Start is strictly before End.
func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

// Overlaps reports whether the two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether t falls inside [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// OverlapsAny reports whether candidate overlaps at least one of blocks.
func OverlapsAny(candidate Interval, blocks []Interval) bool {
	for _, b := range blocks {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// Merge returns the blocks coalesced into a sorted set of disjoint
// intervals. The input is not modified.
func Merge(blocks []Interval) []Interval {
	if len(blocks) < 2 {
		return append([]Interval(nil), blocks...)
	}

	sorted := append([]Interval(nil), blocks...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Interval{sorted[0]}
	for _, b := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !b.Start.After(last.End) {
			if b.End.After(last.End) {
				last.End = b.End
			}
			continue
		}
		merged = append(merged, b)
	}

	return merged
}

// Clip returns the blocks trimmed to the window, dropping anything fully
// outside it. Used to slice a month-wide busy fetch into per-day views.
func Clip(window Interval, blocks []Interval) []Interval {
	var out []Interval
	for _, b := range blocks {
		if !b.Overlaps(window) {
			continue
		}
		clipped := b
		if clipped.Start.Before(window.Start) {
			clipped.Start = window.Start
		}
		if clipped.End.After(window.End) {
			clipped.End = window.End
		}
		out = append(out, clipped)
	}
	return out
}
