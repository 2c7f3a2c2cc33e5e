// Package config loads and validates simulator configuration files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/ghbsim/timing/cache"
	"github.com/sarchlab/ghbsim/timing/prefetch"
)

// Prefetcher kinds selectable in SimConfig.
const (
	PrefetcherNone   = "none"
	PrefetcherStride = "stride"
	PrefetcherGHB    = "ghb"
)

// PrefetcherKinds lists the accepted values of SimConfig.Prefetcher.
func PrefetcherKinds() []string {
	return []string{PrefetcherNone, PrefetcherStride, PrefetcherGHB}
}

// SimConfig holds everything needed to build a simulated data cache.
type SimConfig struct {
	// Cache is the L1 data cache geometry and latency.
	Cache cache.Config `json:"cache" yaml:"cache"`

	// Prefetcher selects the prefetcher attached to the cache: none, stride
	// or ghb. Default: ghb.
	Prefetcher string `json:"prefetcher" yaml:"prefetcher"`

	// Prefetch configures the GHB prefetcher.
	Prefetch prefetch.Config `json:"prefetch" yaml:"prefetch"`

	// Stride configures the stride prefetcher.
	Stride prefetch.StrideConfig `json:"stride" yaml:"stride"`

	// Queue configures the prefetch issue queue.
	Queue cache.QueueConfig `json:"queue" yaml:"queue"`
}

// Default returns the default simulator configuration.
func Default() *SimConfig {
	return &SimConfig{
		Cache:      cache.DefaultL1DConfig(),
		Prefetcher: PrefetcherGHB,
		Prefetch:   prefetch.DefaultConfig(),
		Stride:     prefetch.DefaultStrideConfig(),
		Queue:      cache.DefaultQueueConfig(),
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads a configuration file over the defaults. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON.
func Load(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Marshal encodes the configuration as YAML.
func (c *SimConfig) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	return data, nil
}

// Save writes the configuration, choosing the format by extension.
func (c *SimConfig) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = c.Marshal()
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a buildable cache.
func (c *SimConfig) Validate() error {
	cc := c.Cache
	if cc.Size <= 0 {
		return fmt.Errorf("cache.size must be > 0")
	}
	if cc.Associativity <= 0 {
		return fmt.Errorf("cache.associativity must be > 0")
	}
	if cc.BlockSize <= 0 || cc.BlockSize&(cc.BlockSize-1) != 0 {
		return fmt.Errorf("cache.block_size must be a power of two, got %d", cc.BlockSize)
	}
	if cc.Size%(cc.Associativity*cc.BlockSize) != 0 {
		return fmt.Errorf("cache.size must be a multiple of associativity * block_size")
	}
	if cc.HitLatency == 0 {
		return fmt.Errorf("cache.hit_latency must be > 0")
	}
	if cc.MissLatency < cc.HitLatency {
		return fmt.Errorf("cache.miss_latency must be >= hit_latency")
	}

	if c.Queue.Size <= 0 {
		return fmt.Errorf("queue.size must be > 0")
	}
	if c.Queue.IssueWidth <= 0 {
		return fmt.Errorf("queue.issue_width must be > 0")
	}

	switch c.Prefetcher {
	case PrefetcherNone, PrefetcherStride, PrefetcherGHB:
	default:
		return fmt.Errorf("prefetcher must be one of %s, got %q",
			strings.Join(PrefetcherKinds(), ", "), c.Prefetcher)
	}

	if err := c.Prefetch.Validate(); err != nil {
		return fmt.Errorf("invalid prefetch config: %w", err)
	}
	if c.Prefetch.BlockBytes != uint64(cc.BlockSize) {
		return fmt.Errorf("prefetch.block_bytes (%d) must match cache.block_size (%d)",
			c.Prefetch.BlockBytes, cc.BlockSize)
	}

	if err := c.Stride.Validate(); err != nil {
		return fmt.Errorf("invalid stride config: %w", err)
	}
	if c.Stride.BlockBytes != uint64(cc.BlockSize) {
		return fmt.Errorf("stride.block_bytes (%d) must match cache.block_size (%d)",
			c.Stride.BlockBytes, cc.BlockSize)
	}

	return nil
}

// Clone returns a copy of the configuration.
func (c *SimConfig) Clone() *SimConfig {
	clone := *c
	return &clone
}

// NewCache builds the configured cache over backing. The attached
// prefetcher, if any, is available from Cache.Prefetcher.
func (c *SimConfig) NewCache(backing cache.BackingStore, logger zerolog.Logger) *cache.Cache {
	opts := []cache.Option{cache.WithLogger(logger)}

	var p cache.Prefetcher
	switch c.Prefetcher {
	case PrefetcherGHB:
		p = prefetch.New(c.Prefetch, prefetch.WithLogger(logger))
	case PrefetcherStride:
		p = prefetch.NewStride(c.Stride, prefetch.WithStrideLogger(logger))
	}
	if p != nil {
		opts = append(opts,
			cache.WithPrefetcher(p),
			cache.WithPrefetchQueue(c.Queue))
	}

	return cache.New(c.Cache, backing, opts...)
}
