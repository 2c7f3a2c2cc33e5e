// Package cache provides cache modeling using Akita cache components, with an
// optional hardware prefetcher feeding a prefetch issue queue.
package cache

import (
	"github.com/rs/zerolog"
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/ghbsim/timing/prefetch"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `json:"size" yaml:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity" yaml:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size" yaml:"block_size"`
	// HitLatency in cycles
	HitLatency uint64 `json:"hit_latency" yaml:"hit_latency"`
	// MissLatency in cycles (includes memory access time)
	MissLatency uint64 `json:"miss_latency" yaml:"miss_latency"`
}

// DefaultL1DConfig returns a default L1 data cache configuration.
// - 32KB, 8-way, 64B line
// - 4-cycle load-to-use latency
func DefaultL1DConfig() Config {
	return Config{
		Size:          32 * 1024, // 32KB
		Associativity: 8,         // 8-way
		BlockSize:     64,        // 64B cache line
		HitLatency:    4,         // 4-cycle load-to-use latency
		MissLatency:   100,       // ~100 cycles to memory
	}
}

// DefaultL2Config returns a default unified L2 configuration.
func DefaultL2Config() Config {
	return Config{
		Size:          1024 * 1024, // 1MB
		Associativity: 16,          // 16-way
		BlockSize:     64,          // 64B cache line
		HitLatency:    12,          // ~12 cycles
		MissLatency:   150,         // ~150 cycles
	}
}

// NumSets returns the number of sets implied by the configuration.
func (c Config) NumSets() int {
	if c.Associativity <= 0 || c.BlockSize <= 0 {
		return 0
	}
	return c.Size / (c.Associativity * c.BlockSize)
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Data is the data read (for load operations).
	Data uint64
	// Evicted is true if a valid block was evicted.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted is true).
	EvictedAddr uint64
	// PrefetchHit is true if the access was the first use of a prefetched block.
	PrefetchHit bool
	// Prefetched is the number of prefetches issued after this access.
	Prefetched int
}

// Cache represents a cache using Akita cache components.
type Cache struct {
	// Configuration
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Data storage - indexed by (setID * associativity + wayID)
	dataStore [][]byte

	// Statistics
	stats Statistics

	// Backing store interface (for fetching on miss and writeback)
	backing BackingStore

	// Prefetching
	prefetcher Prefetcher
	queue      *PrefetchQueue
	onAccess   bool
	// Blocks filled by a prefetch and not yet touched by a demand access.
	prefetched map[uint64]struct{}

	logger zerolog.Logger
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64

	// PrefetchIssued counts prefetch fills.
	PrefetchIssued uint64
	// PrefetchUseful counts prefetched blocks later hit by a demand access.
	PrefetchUseful uint64
	// PrefetchUnused counts prefetched blocks evicted before any use.
	PrefetchUnused uint64
	// PrefetchRedundant counts candidates that were already cached at issue.
	PrefetchRedundant uint64
	// PrefetchDropped counts candidates lost to queue overflow.
	PrefetchDropped uint64
}

// Accesses returns the number of demand accesses.
func (s Statistics) Accesses() uint64 {
	return s.Reads + s.Writes
}

// HitRate returns the demand hit rate in percent.
func (s Statistics) HitRate() float64 {
	if s.Accesses() == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Accesses()) * 100
}

// PrefetchAccuracy returns the share of issued prefetches that were used,
// in percent.
func (s Statistics) PrefetchAccuracy() float64 {
	if s.PrefetchIssued == 0 {
		return 0
	}
	return float64(s.PrefetchUseful) / float64(s.PrefetchIssued) * 100
}

// PrefetchCoverage returns the share of would-be misses removed by
// prefetching, in percent.
func (s Statistics) PrefetchCoverage() float64 {
	total := s.Misses + s.PrefetchUseful
	if total == 0 {
		return 0
	}
	return float64(s.PrefetchUseful) / float64(total) * 100
}

// BackingStore interface for the next level in the memory hierarchy.
type BackingStore interface {
	// Read fetches data from the backing store.
	Read(addr uint64, size int) []byte
	// Write stores data to the backing store.
	Write(addr uint64, data []byte)
}

// Prefetcher observes accesses and proposes addresses to prefetch.
type Prefetcher interface {
	CalculatePrefetch(info prefetch.AccessInfo) []prefetch.AddrPriority
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefetcher attaches a prefetcher and a default prefetch queue.
func WithPrefetcher(p Prefetcher) Option {
	return func(c *Cache) {
		c.prefetcher = p
	}
}

// WithPrefetchQueue configures the prefetch issue queue.
func WithPrefetchQueue(config QueueConfig) Option {
	return func(c *Cache) {
		c.queue = NewPrefetchQueue(config)
		c.onAccess = config.OnAccess
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a new cache with the given configuration.
func New(config Config, backing BackingStore, opts ...Option) *Cache {
	numSets := config.NumSets()
	totalBlocks := numSets * config.Associativity

	// Initialize data storage
	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	c := &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore:  dataStore,
		backing:    backing,
		prefetched: make(map[uint64]struct{}),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.prefetcher != nil && c.queue == nil {
		c.queue = NewPrefetchQueue(DefaultQueueConfig())
	}

	return c
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// Prefetcher returns the attached prefetcher, or nil.
func (c *Cache) Prefetcher() Prefetcher {
	return c.prefetcher
}

// blockIndex computes the index into dataStore for a block.
func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// blockAddress aligns addr down to the block size.
func (c *Cache) blockAddress(addr uint64) uint64 {
	return (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
}

// lookup returns the valid block holding blockAddr, or nil.
func (c *Cache) lookup(blockAddr uint64) *akitacache.Block {
	block := c.directory.Lookup(0, blockAddr) // PID=0 for now
	if block == nil || !block.IsValid {
		return nil
	}
	return block
}

// Contains reports whether the block holding addr is cached.
func (c *Cache) Contains(addr uint64) bool {
	return c.lookup(c.blockAddress(addr)) != nil
}

// Read performs a cache read operation without an instruction PC.
func (c *Cache) Read(addr uint64, size int) AccessResult {
	return c.access(addr, 0, false, size, false, 0)
}

// ReadPC performs a cache read operation issued by the instruction at pc.
func (c *Cache) ReadPC(pc, addr uint64, size int) AccessResult {
	return c.access(addr, pc, true, size, false, 0)
}

// Write performs a cache write operation without an instruction PC.
// Uses write-allocate policy: on miss, fetch the block first, then write.
func (c *Cache) Write(addr uint64, size int, data uint64) AccessResult {
	return c.access(addr, 0, false, size, true, data)
}

// WritePC performs a cache write operation issued by the instruction at pc.
func (c *Cache) WritePC(pc, addr uint64, size int, data uint64) AccessResult {
	return c.access(addr, pc, true, size, true, data)
}

func (c *Cache) access(
	addr, pc uint64,
	hasPC bool,
	size int,
	isWrite bool,
	data uint64,
) AccessResult {
	if isWrite {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}

	blockAddr := c.blockAddress(addr)

	var result AccessResult
	if block := c.lookup(blockAddr); block != nil {
		c.stats.Hits++
		c.directory.Visit(block) // Update LRU

		offset := addr % uint64(c.config.BlockSize)
		blockData := c.dataStore[c.blockIndex(block)]
		if isWrite {
			storeData(blockData, offset, size, data)
			block.IsDirty = true
		} else {
			result.Data = extractData(blockData, offset, size)
		}

		result.Hit = true
		result.Latency = c.config.HitLatency
		if _, ok := c.prefetched[blockAddr]; ok {
			delete(c.prefetched, blockAddr)
			c.stats.PrefetchUseful++
			result.PrefetchHit = true
		}
	} else {
		c.stats.Misses++
		result = c.handleMiss(addr, size, isWrite, data)
	}

	if c.prefetcher != nil && (c.onAccess || !result.Hit || result.PrefetchHit) {
		c.notify(addr, pc, hasPC)
		result.Prefetched = c.issuePrefetches()
	}

	return result
}

// handleMiss handles a cache miss by fetching from backing store.
func (c *Cache) handleMiss(addr uint64, size int, isWrite bool, writeData uint64) AccessResult {
	result := AccessResult{
		Hit:     false,
		Latency: c.config.MissLatency,
	}

	victim, evictedAddr, evicted := c.fill(c.blockAddress(addr))
	if victim == nil {
		return result
	}
	result.Evicted = evicted
	result.EvictedAddr = evictedAddr

	victimData := c.dataStore[c.blockIndex(victim)]
	offset := addr % uint64(c.config.BlockSize)
	if isWrite {
		storeData(victimData, offset, size, writeData)
		victim.IsDirty = true
	} else {
		result.Data = extractData(victimData, offset, size)
	}

	return result
}

// fill installs blockAddr into a victim way, writing back a dirty victim.
// It returns the filled block and the address of the evicted block, if any.
func (c *Cache) fill(blockAddr uint64) (*akitacache.Block, uint64, bool) {
	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		// This shouldn't happen with proper directory setup
		return nil, 0, false
	}

	victimData := c.dataStore[c.blockIndex(victim)]

	var (
		evictedAddr uint64
		evicted     bool
	)
	if victim.IsValid {
		evicted = true
		evictedAddr = victim.Tag // Tag stores block-aligned address
		c.stats.Evictions++

		if _, ok := c.prefetched[evictedAddr]; ok {
			delete(c.prefetched, evictedAddr)
			c.stats.PrefetchUnused++
		}

		// Writeback if dirty
		if victim.IsDirty && c.backing != nil {
			c.stats.Writebacks++
			c.backing.Write(evictedAddr, victimData)
		}
	}

	// Fetch from backing store
	if c.backing != nil {
		copy(victimData, c.backing.Read(blockAddr, c.config.BlockSize))
	} else {
		clear(victimData)
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim) // Update LRU

	return victim, evictedAddr, evicted
}

// notify reports a demand access to the prefetcher and queues its
// candidates.
func (c *Cache) notify(addr, pc uint64, hasPC bool) {
	candidates := c.prefetcher.CalculatePrefetch(prefetch.AccessInfo{
		Addr:  addr,
		PC:    pc,
		HasPC: hasPC,
	})
	for _, cand := range candidates {
		_, dropped := c.queue.Push(Request{
			Addr:     c.blockAddress(cand.Addr),
			Priority: cand.Priority,
		})
		if dropped {
			c.stats.PrefetchDropped++
		}
	}
}

// issuePrefetches drains up to the queue's issue width and fills the
// blocks that are not already cached. It returns the number of fills.
func (c *Cache) issuePrefetches() int {
	issued := 0
	for _, req := range c.queue.Pop(c.queue.IssueWidth()) {
		if c.lookup(req.Addr) != nil {
			c.stats.PrefetchRedundant++
			continue
		}

		victim, _, _ := c.fill(req.Addr)
		if victim == nil {
			continue
		}
		c.prefetched[req.Addr] = struct{}{}
		c.stats.PrefetchIssued++
		issued++

		if e := c.logger.Trace(); e.Enabled() {
			e.Uint64("addr", req.Addr).Msg("prefetch fill")
		}
	}
	return issued
}

// Invalidate marks a cache line as invalid.
func (c *Cache) Invalidate(addr uint64) {
	blockAddr := c.blockAddress(addr)
	if block := c.lookup(blockAddr); block != nil {
		block.IsValid = false
		block.IsDirty = false
		delete(c.prefetched, blockAddr)
	}
}

// Flush writes back all dirty blocks and invalidates them.
func (c *Cache) Flush() {
	sets := c.directory.GetSets()
	for _, set := range sets {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty && c.backing != nil {
				// Tag stores block-aligned address directly
				blockData := c.dataStore[c.blockIndex(block)]
				c.backing.Write(block.Tag, blockData)
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
	clear(c.prefetched)
}

// Reset invalidates all cache lines without writeback and forgets all
// prefetcher state.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
	clear(c.prefetched)
	if c.queue != nil {
		c.queue.Reset()
	}
	if r, ok := c.prefetcher.(interface{ Reset() }); ok {
		r.Reset()
	}
}

// extractData extracts a value of the given size from a byte slice.
func extractData(data []byte, offset uint64, size int) uint64 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}

	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

// storeData stores a value of the given size into a byte slice.
func storeData(data []byte, offset uint64, size int, value uint64) {
	if data == nil || int(offset)+size > len(data) {
		return
	}

	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
