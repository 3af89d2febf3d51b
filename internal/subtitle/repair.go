package subtitle

import "time"

const (
	DefaultGap         = 50 * time.Millisecond
	DefaultMinDuration = 1000 * time.Millisecond
)

// RepairOverlaps makes the timeline monotonic. A block starting before the
// previous one ends is moved to previous end + gap; if that leaves it with
// no duration its end is pushed to start + minDuration. It returns the
// repaired copy and the number of blocks changed.
func RepairOverlaps(blocks []Block, gap, minDuration time.Duration) ([]Block, int) {
	out := make([]Block, len(blocks))
	copy(out, blocks)

	fixed := 0
	var prevEnd time.Duration
	for i := range out {
		b := &out[i]
		changed := false
		if i > 0 && b.Start < prevEnd {
			b.Start = prevEnd + gap
			changed = true
		}
		if b.Start >= b.End {
			b.End = b.Start + minDuration
			changed = true
		}
		if changed {
			fixed++
		}
		prevEnd = b.End
	}
	return out, fixed
}
