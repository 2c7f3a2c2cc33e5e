package prefetch

// BuildPattern walks the key chain backward from slot and returns the
// address deltas between consecutive chained entries, most recent first.
// The walk stops at an invalid link, at a stale link whose predecessor slot
// has been overwritten since the link was made, or after PatternLength
// deltas. It reports false if no delta was collected.
func (h *History) BuildPattern(slot int, key CorrelationKey) ([]int64, bool) {
	return h.BuildPatternInto(nil, slot, key)
}

// BuildPatternInto is BuildPattern appending into dst[:0].
func (h *History) BuildPatternInto(
	dst []int64,
	slot int,
	key CorrelationKey,
) ([]int64, bool) {
	deltas := dst[:0]
	if slot < 0 || slot >= len(h.entries) || key >= NumCorrelationKeys {
		return deltas, false
	}

	current := slot
	for len(deltas) < h.patternLength {
		entry := &h.entries[current]
		l := entry.links[key]
		if !l.valid || l.prev < 0 {
			break
		}

		prev := &h.entries[l.prev]
		if prev.seq != l.prevSeq {
			break
		}

		deltas = append(deltas, int64(entry.addr)-int64(prev.addr))
		current = l.prev
	}

	return deltas, len(deltas) > 0
}

// Chronological returns deltas in reverse order, oldest first.
func Chronological(deltas []int64) []int64 {
	out := make([]int64, len(deltas))
	for i, d := range deltas {
		out[len(deltas)-1-i] = d
	}
	return out
}
