// Package prefetch provides a global history buffer (GHB) address prefetcher.
//
// The predictor keeps a circular log of recent block accesses. Each entry is
// chained to the previous entry that shares a correlation key (the
// instruction PC, or the containing page). Walking a chain yields the deltas
// between related accesses, which train a delta-pair frequency table used to
// predict the next delta.
package prefetch

// CorrelationKey selects which attribute chains history entries together.
type CorrelationKey uint8

const (
	// KeyPC chains accesses issued by the same instruction.
	KeyPC CorrelationKey = iota
	// KeyPage chains accesses that fall into the same page.
	KeyPage
)

// NumCorrelationKeys is the number of correlation key kinds.
const NumCorrelationKeys = 2

// NoSlot is returned by Insert when the history is disabled.
const NoSlot = -1

// String returns the key name.
func (k CorrelationKey) String() string {
	switch k {
	case KeyPC:
		return "pc"
	case KeyPage:
		return "page"
	default:
		return "unknown"
	}
}

// Access is one observed, block-aligned memory access.
type Access struct {
	Addr  uint64
	PC    uint64
	HasPC bool
}

// HistoryConfig sizes a History.
type HistoryConfig struct {
	// Size is the number of history slots. Zero disables the history.
	Size int
	// PatternLength bounds the number of deltas a pattern walk collects.
	PatternLength int
	// Degree is the look-ahead degree. Only single-step prediction is
	// implemented.
	Degree int
	// UsePC enables PC correlation.
	UsePC bool
	// PageBytes is the page size used for page correlation.
	PageBytes uint64
	// ConfidenceThreshold in percent. Reported only.
	ConfidenceThreshold int
}

// link records the previous entry that shares a correlation key.
type link struct {
	prev     int
	prevSeq  uint64
	keyValue uint64
	valid    bool
}

var noLink = link{prev: -1}

type historyEntry struct {
	addr  uint64
	seq   uint64
	links [NumCorrelationKeys]link
}

// History is the circular access log, its correlation indices and the
// learned pattern table.
type History struct {
	size                int
	patternLength       int
	degree              int
	usePC               bool
	pageBytes           uint64
	confidenceThreshold int

	entries   []historyEntry
	lastIndex [NumCorrelationKeys]map[uint64]int
	head      int
	filled    bool
	seq       uint64

	table *PatternTable
}

// NewHistory creates a History. Size is used as given; a zero size yields a
// disabled history on which every operation is a no-op.
func NewHistory(cfg HistoryConfig) *History {
	size := cfg.Size
	if size < 0 {
		size = 0
	}

	h := &History{
		size:                size,
		patternLength:       max(1, cfg.PatternLength),
		degree:              max(1, cfg.Degree),
		usePC:               cfg.UsePC,
		pageBytes:           max(1, cfg.PageBytes),
		confidenceThreshold: min(100, max(0, cfg.ConfidenceThreshold)),
		entries:             make([]historyEntry, size),
		table:               NewPatternTable(),
	}
	for i := range h.lastIndex {
		h.lastIndex[i] = make(map[uint64]int)
	}
	h.Reset()

	return h
}

// Disabled reports whether the history has zero capacity.
func (h *History) Disabled() bool {
	return h.size == 0
}

// Capacity returns the number of slots.
func (h *History) Capacity() int {
	return h.size
}

// Len returns the number of slots holding a recorded access.
func (h *History) Len() int {
	if h.filled {
		return h.size
	}
	return h.head
}

// PatternLength returns the maximum number of deltas per pattern.
func (h *History) PatternLength() int {
	return h.patternLength
}

// Degree returns the configured look-ahead degree.
func (h *History) Degree() int {
	return h.degree
}

// ConfidenceThreshold returns the configured threshold in percent.
func (h *History) ConfidenceThreshold() int {
	return h.confidenceThreshold
}

// Table returns the learned pattern table.
func (h *History) Table() *PatternTable {
	return h.table
}

// Reset clears the buffer, the indices and the pattern table, and restarts
// sequence numbering at 1.
func (h *History) Reset() {
	for i := range h.entries {
		h.entries[i] = historyEntry{}
		for k := range h.entries[i].links {
			h.entries[i].links[k] = noLink
		}
	}
	for k := range h.lastIndex {
		clear(h.lastIndex[k])
	}
	h.head = 0
	h.filled = false
	h.seq = 1
	h.table.Reset()
}

// Insert records an access at the write head and returns its slot, or
// NoSlot if the history is disabled.
func (h *History) Insert(a Access) int {
	if h.Disabled() {
		return NoSlot
	}

	if h.filled {
		h.evict(h.head)
	}

	slot := h.head
	entry := &h.entries[slot]
	entry.addr = a.Addr
	entry.seq = h.seq
	h.seq++

	if h.usePC && a.HasPC {
		h.correlate(slot, KeyPC, a.PC)
	} else {
		entry.links[KeyPC] = noLink
	}

	h.correlate(slot, KeyPage, a.Addr/h.pageBytes)

	h.head = (h.head + 1) % h.size
	if h.head == 0 {
		h.filled = true
	}

	return slot
}

// evict drops the index mappings that still point at slot and invalidates
// the slot's links.
func (h *History) evict(slot int) {
	victim := &h.entries[slot]
	for k := range victim.links {
		l := &victim.links[k]
		if !l.valid {
			continue
		}
		if cur, ok := h.lastIndex[k][l.keyValue]; ok && cur == slot {
			delete(h.lastIndex[k], l.keyValue)
		}
		l.valid = false
	}
}

// correlate links slot to the latest entry sharing value under key and makes
// slot the latest entry for that value.
func (h *History) correlate(slot int, key CorrelationKey, value uint64) {
	l := link{prev: -1, keyValue: value, valid: true}

	index := h.lastIndex[key]
	if prev, ok := index[value]; ok {
		l.prev = prev
		l.prevSeq = h.entries[prev].seq
	}
	h.entries[slot].links[key] = l
	index[value] = slot
}

// Latest returns the slot the correlation index currently maps value to.
func (h *History) Latest(key CorrelationKey, value uint64) (int, bool) {
	slot, ok := h.lastIndex[key][value]
	return slot, ok
}

// UpdatePatternTable trains the pattern table with chronological deltas.
func (h *History) UpdatePatternTable(chronological []int64) {
	h.table.Update(chronological)
}

// FindPatternMatch predicts the next delta from the pattern table.
func (h *History) FindPatternMatch(chronological []int64) ([]int64, bool) {
	return h.table.Match(chronological)
}

// FallbackPattern predicts a repeat of the most recent delta.
func (h *History) FallbackPattern(chronological []int64) []int64 {
	return h.table.Fallback(chronological)
}
