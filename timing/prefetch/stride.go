package prefetch

import (
	"fmt"

	"github.com/rs/zerolog"
)

// StrideConfig holds stride prefetcher parameters.
type StrideConfig struct {
	// TableSize is the number of tracked instructions. Default: 64. Floor: 1.
	TableSize int `json:"table_size" yaml:"table_size"`

	// Degree is how many strides ahead to prefetch. Default: 2. Floor: 1.
	Degree int `json:"degree" yaml:"degree"`

	// MinConfidence is the number of consecutive repeats of a stride needed
	// before it is trusted. Default: 2.
	MinConfidence int `json:"min_confidence" yaml:"min_confidence"`

	// PageBytes is the page size. Candidates never cross a page.
	// Default: 4096. Floor: 1.
	PageBytes uint64 `json:"page_bytes" yaml:"page_bytes"`

	// BlockBytes is the cache block size used to align accesses.
	// Default: 64. Floor: 1.
	BlockBytes uint64 `json:"block_bytes" yaml:"block_bytes"`
}

// DefaultStrideConfig returns the default stride prefetcher configuration.
func DefaultStrideConfig() StrideConfig {
	return StrideConfig{
		TableSize:     64,
		Degree:        2,
		MinConfidence: 2,
		PageBytes:     4096,
		BlockBytes:    64,
	}
}

// Normalize returns a copy with every field clamped to its legal range.
func (c StrideConfig) Normalize() StrideConfig {
	c.TableSize = max(1, c.TableSize)
	c.Degree = max(1, c.Degree)
	c.MinConfidence = max(0, c.MinConfidence)
	c.PageBytes = max(1, c.PageBytes)
	c.BlockBytes = max(1, c.BlockBytes)
	return c
}

// Validate checks values that clamping cannot repair.
func (c StrideConfig) Validate() error {
	if c.BlockBytes != 0 && c.BlockBytes&(c.BlockBytes-1) != 0 {
		return fmt.Errorf("block_bytes must be a power of two, got %d", c.BlockBytes)
	}
	if c.PageBytes != 0 && c.BlockBytes > c.PageBytes {
		return fmt.Errorf("page_bytes (%d) must be >= block_bytes (%d)",
			c.PageBytes, c.BlockBytes)
	}
	if c.MinConfidence < 0 {
		return fmt.Errorf("min_confidence must be >= 0")
	}
	return nil
}

// StrideStatistics holds stride prefetcher counters.
type StrideStatistics struct {
	// Accesses is the number of observed accesses.
	Accesses uint64
	// Allocations counts table entries created for new instructions.
	Allocations uint64
	// Evictions counts entries replaced to make room.
	Evictions uint64
	// Retrains counts stride changes that reset confidence.
	Retrains uint64
	// Predictions counts accesses whose stride was trusted.
	Predictions uint64
	// CrossPage counts predictions cut short at a page boundary.
	CrossPage uint64
	// Candidates is the number of addresses handed to the issuer.
	Candidates uint64
}

type strideEntry struct {
	lastAddr   uint64
	stride     int64
	confidence int
	lastUse    uint64
}

// Stride is a per-instruction constant-stride prefetcher. Accesses without a
// PC share a single entry.
type Stride struct {
	config  StrideConfig
	entries map[uint64]*strideEntry
	clock   uint64
	logger  zerolog.Logger
	stats   StrideStatistics
}

// StrideOption configures a Stride prefetcher.
type StrideOption func(*Stride)

// WithStrideLogger sets the logger. The default discards everything.
func WithStrideLogger(logger zerolog.Logger) StrideOption {
	return func(s *Stride) {
		s.logger = logger
	}
}

// NewStride creates a stride prefetcher. The configuration is normalized
// first.
func NewStride(config StrideConfig, opts ...StrideOption) *Stride {
	config = config.Normalize()

	s := &Stride{
		config:  config,
		entries: make(map[uint64]*strideEntry, config.TableSize),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Debug().
		Int("table_size", config.TableSize).
		Int("degree", config.Degree).
		Int("min_confidence", config.MinConfidence).
		Msg("stride prefetcher created")

	return s
}

// Config returns the normalized configuration.
func (s *Stride) Config() StrideConfig {
	return s.config
}

// Len returns the number of tracked instructions.
func (s *Stride) Len() int {
	return len(s.entries)
}

// Stats returns prefetcher statistics.
func (s *Stride) Stats() StrideStatistics {
	return s.stats
}

// ResetStats clears prefetcher statistics.
func (s *Stride) ResetStats() {
	s.stats = StrideStatistics{}
}

// Reset forgets every tracked stride and clears statistics.
func (s *Stride) Reset() {
	clear(s.entries)
	s.clock = 0
	s.stats = StrideStatistics{}
}

// CalculatePrefetch trains the entry of the accessing instruction and returns
// up to Degree candidates along its stride once the stride is trusted.
func (s *Stride) CalculatePrefetch(info AccessInfo) []AddrPriority {
	s.stats.Accesses++
	s.clock++

	blockAddr := info.Addr - info.Addr%s.config.BlockBytes
	var key uint64
	if info.HasPC {
		key = info.PC
	}

	e, ok := s.entries[key]
	if !ok {
		s.allocate(key, blockAddr)
		return nil
	}
	e.lastUse = s.clock

	delta := int64(blockAddr) - int64(e.lastAddr)
	if delta == 0 {
		return nil
	}
	e.lastAddr = blockAddr

	if delta == e.stride {
		e.confidence = min(e.confidence+1, s.config.MinConfidence)
	} else {
		e.stride = delta
		e.confidence = 0
		s.stats.Retrains++
	}
	if e.confidence < s.config.MinConfidence {
		return nil
	}
	s.stats.Predictions++

	out := make([]AddrPriority, 0, s.config.Degree)
	page := blockAddr / s.config.PageBytes
	next := blockAddr
	for i := 0; i < s.config.Degree; i++ {
		next = uint64(int64(next) + e.stride)
		if next/s.config.PageBytes != page {
			s.stats.CrossPage++
			break
		}
		out = append(out, AddrPriority{Addr: next, Priority: MinPriority})
	}
	s.stats.Candidates += uint64(len(out))

	if ev := s.logger.Trace(); ev.Enabled() {
		ev.Uint64("block", blockAddr).
			Int64("stride", e.stride).
			Int("candidates", len(out)).
			Msg("stride prediction")
	}

	return out
}

// allocate tracks a new instruction, replacing the least recently used entry
// when the table is full.
func (s *Stride) allocate(key, blockAddr uint64) {
	if len(s.entries) >= s.config.TableSize {
		var (
			victim  uint64
			oldest  uint64
			started bool
		)
		for k, e := range s.entries {
			if !started || e.lastUse < oldest {
				victim, oldest, started = k, e.lastUse, true
			}
		}
		delete(s.entries, victim)
		s.stats.Evictions++
	}

	s.entries[key] = &strideEntry{lastAddr: blockAddr, lastUse: s.clock}
	s.stats.Allocations++
}
