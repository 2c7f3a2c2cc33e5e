package prefetch

// DeltaPair keys the pattern table with two consecutive deltas.
type DeltaPair struct {
	First  int64
	Second int64
}

// Distribution counts the deltas observed after a delta pair.
type Distribution struct {
	Counts map[int64]uint32
	Total  uint32
}

type patternEntry struct {
	counts   map[int64]uint32
	lastSeen map[int64]uint64
	total    uint32
}

// PatternTable maps a delta pair to the distribution of deltas that followed
// it. It grows until Reset and never evicts.
type PatternTable struct {
	entries map[DeltaPair]*patternEntry
	clock   uint64
}

// NewPatternTable creates an empty table.
func NewPatternTable() *PatternTable {
	return &PatternTable{
		entries: make(map[DeltaPair]*patternEntry),
	}
}

// Len returns the number of learned delta pairs.
func (t *PatternTable) Len() int {
	return len(t.entries)
}

// Reset forgets every learned pattern.
func (t *PatternTable) Reset() {
	clear(t.entries)
	t.clock = 0
}

// Update learns from chronological deltas (oldest first). Every consecutive
// triple (a, b, c) counts one observation of c following (a, b). Fewer than
// three deltas teach nothing.
func (t *PatternTable) Update(chronological []int64) {
	if len(chronological) < 3 {
		return
	}

	for i := 0; i+2 < len(chronological); i++ {
		key := DeltaPair{First: chronological[i], Second: chronological[i+1]}
		entry, ok := t.entries[key]
		if !ok {
			entry = &patternEntry{
				counts:   make(map[int64]uint32),
				lastSeen: make(map[int64]uint64),
			}
			t.entries[key] = entry
		}

		next := chronological[i+2]
		t.clock++
		entry.counts[next]++
		entry.lastSeen[next] = t.clock
		entry.total++
	}
}

// Match predicts the delta that most often followed the last two deltas.
// When several deltas share the highest count, the one observed most
// recently wins. It reports false for fewer than two deltas or an unseen
// pair.
func (t *PatternTable) Match(chronological []int64) ([]int64, bool) {
	n := len(chronological)
	if n < 2 {
		return nil, false
	}

	entry, ok := t.entries[DeltaPair{
		First:  chronological[n-2],
		Second: chronological[n-1],
	}]
	if !ok || entry.total == 0 {
		return nil, false
	}

	var (
		best      int64
		bestCount uint32
		bestSeen  uint64
		found     bool
	)
	for delta, count := range entry.counts {
		seen := entry.lastSeen[delta]
		if !found || count > bestCount || (count == bestCount && seen > bestSeen) {
			best, bestCount, bestSeen, found = delta, count, seen, true
		}
	}
	if !found {
		return nil, false
	}

	return []int64{best}, true
}

// Fallback predicts a repeat of the most recent delta. A zero delta carries
// no direction and yields nothing.
func (t *PatternTable) Fallback(chronological []int64) []int64 {
	if len(chronological) == 0 {
		return nil
	}

	delta := chronological[len(chronological)-1]
	if delta == 0 {
		return nil
	}
	return []int64{delta}
}

// Distribution returns a copy of what followed the pair (first, second).
func (t *PatternTable) Distribution(first, second int64) (Distribution, bool) {
	entry, ok := t.entries[DeltaPair{First: first, Second: second}]
	if !ok {
		return Distribution{}, false
	}

	d := Distribution{
		Counts: make(map[int64]uint32, len(entry.counts)),
		Total:  entry.total,
	}
	for delta, count := range entry.counts {
		d.Counts[delta] = count
	}
	return d, true
}
