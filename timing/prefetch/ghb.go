package prefetch

import (
	"github.com/rs/zerolog"
)

// MinPriority is the priority attached to every candidate. Ordering among
// candidates is left to the issuer.
const MinPriority int32 = 0

// AccessInfo is an access reported by the memory-access observer.
type AccessInfo struct {
	Addr  uint64
	PC    uint64
	HasPC bool
}

// AddrPriority is a prefetch candidate.
type AddrPriority struct {
	Addr     uint64
	Priority int32
}

// GHB turns observed accesses into prefetch candidates.
type GHB struct {
	config  Config
	history *History
	logger  zerolog.Logger
	stats   Statistics

	deltas []int64
}

// Option configures a GHB.
type Option func(*GHB)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *GHB) {
		g.logger = logger
	}
}

// WithHistory replaces the history built from the configuration. It allows
// a zero-capacity history, which disables prediction.
func WithHistory(h *History) Option {
	return func(g *GHB) {
		g.history = h
	}
}

// New creates a GHB prefetcher. The configuration is normalized first.
func New(config Config, opts ...Option) *GHB {
	config = config.Normalize()

	g := &GHB{
		config:  config,
		history: NewHistory(config.HistoryConfig()),
		logger:  zerolog.Nop(),
		deltas:  make([]int64, 0, config.PatternLength),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.logger.Debug().
		Int("history_size", g.history.Capacity()).
		Int("pattern_length", g.history.PatternLength()).
		Bool("use_pc", config.UsePC).
		Uint64("page_bytes", config.PageBytes).
		Msg("ghb prefetcher created")

	return g
}

// Config returns the normalized configuration.
func (g *GHB) Config() Config {
	return g.config
}

// History exposes the underlying history buffer.
func (g *GHB) History() *History {
	return g.history
}

// Stats returns prefetcher statistics.
func (g *GHB) Stats() Statistics {
	return g.stats
}

// ResetStats clears prefetcher statistics.
func (g *GHB) ResetStats() {
	g.stats = Statistics{}
}

// Reset forgets all history, learned patterns and statistics.
func (g *GHB) Reset() {
	g.history.Reset()
	g.stats = Statistics{}
	g.logger.Debug().Msg("ghb prefetcher reset")
}

// BlockAddress aligns addr down to the configured block size.
func (g *GHB) BlockAddress(addr uint64) uint64 {
	return addr - addr%g.config.BlockBytes
}

// SamePage reports whether a and b fall into the same page.
func (g *GHB) SamePage(a, b uint64) bool {
	return a/g.config.PageBytes == b/g.config.PageBytes
}

// CalculatePrefetch records the access and returns the candidates to
// prefetch. A nil result means no prefetch this cycle.
func (g *GHB) CalculatePrefetch(info AccessInfo) []AddrPriority {
	if g.history.Disabled() {
		return nil
	}
	g.stats.Accesses++

	blockAddr := g.BlockAddress(info.Addr)
	access := Access{Addr: blockAddr}
	if g.config.UsePC && info.HasPC {
		access.PC = info.PC
		access.HasPC = true
	}

	slot := g.history.Insert(access)
	if slot == NoSlot {
		return nil
	}

	var ok bool
	g.deltas, ok = g.history.BuildPatternInto(g.deltas, slot, KeyPC)
	if ok {
		g.stats.PCPatterns++
	} else {
		g.deltas, ok = g.history.BuildPatternInto(g.deltas, slot, KeyPage)
		if !ok {
			g.stats.NoPattern++
			return nil
		}
		g.stats.PagePatterns++
	}

	chronological := Chronological(g.deltas)
	g.history.UpdatePatternTable(chronological)

	predicted, matched := g.history.FindPatternMatch(chronological)
	if matched {
		g.stats.TableMatches++
	} else {
		predicted = g.history.FallbackPattern(chronological)
		if len(predicted) == 0 {
			g.stats.NoPrediction++
			return nil
		}
		g.stats.Fallbacks++
	}

	return g.generate(blockAddr, predicted)
}

// generate applies the predicted deltas cumulatively from blockAddr and
// keeps the candidates that stay on blockAddr's page.
func (g *GHB) generate(blockAddr uint64, predicted []int64) []AddrPriority {
	var out []AddrPriority

	next := blockAddr
	for _, delta := range predicted {
		if delta == 0 {
			continue
		}

		next = uint64(int64(next) + delta)
		if !g.SamePage(blockAddr, next) {
			g.stats.CrossPage++
			continue
		}

		out = append(out, AddrPriority{Addr: next, Priority: MinPriority})
		g.stats.Candidates++
	}

	if e := g.logger.Trace(); e.Enabled() {
		e.Uint64("block", blockAddr).
			Ints64("deltas", predicted).
			Int("candidates", len(out)).
			Msg("ghb prediction")
	}

	return out
}
