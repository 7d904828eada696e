package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func TestOverlapsIsSymmetric(t *testing.T) {
	a := Interval{Start: at(14, 0), End: at(15, 0)}
	b := Interval{Start: at(14, 30), End: at(15, 30)}

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
}

func TestBackToBackIntervalsDoNotOverlap(t *testing.T) {
	a := Interval{Start: at(9, 0), End: at(10, 0)}
	b := Interval{Start: at(10, 0), End: at(11, 0)}

	assert.False(t, a.Overlaps(b))
	assert.False(t, b.Overlaps(a))
}

func TestOverlapsAny(t *testing.T) {
	blocks := []Interval{
		{Start: at(10, 0), End: at(11, 0)},
		{Start: at(13, 0), End: at(13, 30)},
	}

	assert.True(t, OverlapsAny(Interval{Start: at(10, 30), End: at(11, 30)}, blocks))
	assert.False(t, OverlapsAny(Interval{Start: at(11, 0), End: at(12, 0)}, blocks))
	assert.False(t, OverlapsAny(Interval{Start: at(9, 0), End: at(10, 0)}, blocks))
}

func TestMergeCoalescesOverlapping(t *testing.T) {
	blocks := []Interval{
		{Start: at(13, 0), End: at(14, 0)},
		{Start: at(9, 0), End: at(10, 30)},
		{Start: at(10, 0), End: at(11, 0)},
	}

	merged := Merge(blocks)

	assert.Len(t, merged, 2)
	assert.Equal(t, at(9, 0), merged[0].Start)
	assert.Equal(t, at(11, 0), merged[0].End)
	assert.Equal(t, at(13, 0), merged[1].Start)
}

func TestMergeLeavesInputAlone(t *testing.T) {
	blocks := []Interval{
		{Start: at(12, 0), End: at(13, 0)},
		{Start: at(9, 0), End: at(10, 0)},
	}

	Merge(blocks)

	assert.Equal(t, at(12, 0), blocks[0].Start)
}

func TestClip(t *testing.T) {
	window := Interval{Start: at(0, 0), End: at(23, 59)}
	blocks := []Interval{
		{Start: at(10, 0), End: at(11, 0)},
		{Start: time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC), End: at(1, 0)},
		{Start: time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)},
	}

	clipped := Clip(window, blocks)

	assert.Len(t, clipped, 2)
	assert.Equal(t, at(10, 0), clipped[0].Start)
	assert.Equal(t, at(0, 0), clipped[1].Start)
	assert.Equal(t, at(1, 0), clipped[1].End)
}
