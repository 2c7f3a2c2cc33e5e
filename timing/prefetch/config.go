package prefetch

import (
	"fmt"
)

// Config holds GHB prefetcher parameters.
type Config struct {
	// HistorySize is the number of global history buffer entries.
	// Default: 256. Floor: 1.
	HistorySize int `json:"history_size" yaml:"history_size"`

	// PatternLength is the maximum number of deltas collected per chain walk.
	// Default: 4. Floor: 1.
	PatternLength int `json:"pattern_length" yaml:"pattern_length"`

	// Degree is the prefetch look-ahead degree. Default: 2. Floor: 1.
	// Prediction is currently single-step regardless of this value.
	Degree int `json:"degree" yaml:"degree"`

	// UsePC enables correlation by instruction PC. Default: true.
	UsePC bool `json:"use_pc" yaml:"use_pc"`

	// ConfidenceThreshold in percent, clamped to [0, 100]. Default: 50.
	// Reported but not used to gate predictions.
	ConfidenceThreshold int `json:"confidence_threshold" yaml:"confidence_threshold"`

	// PageBytes is the page size. Candidates never cross a page.
	// Default: 4096. Floor: 1.
	PageBytes uint64 `json:"page_bytes" yaml:"page_bytes"`

	// BlockBytes is the cache block size used to align accesses.
	// Default: 64. Floor: 1.
	BlockBytes uint64 `json:"block_bytes" yaml:"block_bytes"`
}

// DefaultConfig returns the default GHB configuration.
func DefaultConfig() Config {
	return Config{
		HistorySize:         256,
		PatternLength:       4,
		Degree:              2,
		UsePC:               true,
		ConfidenceThreshold: 50,
		PageBytes:           4096,
		BlockBytes:          64,
	}
}

// Normalize returns a copy with every field clamped to its legal range.
func (c Config) Normalize() Config {
	c.HistorySize = max(1, c.HistorySize)
	c.PatternLength = max(1, c.PatternLength)
	c.Degree = max(1, c.Degree)
	c.ConfidenceThreshold = min(100, max(0, c.ConfidenceThreshold))
	c.PageBytes = max(1, c.PageBytes)
	c.BlockBytes = max(1, c.BlockBytes)
	return c
}

// Validate checks values that clamping cannot repair.
func (c Config) Validate() error {
	if c.BlockBytes != 0 && c.BlockBytes&(c.BlockBytes-1) != 0 {
		return fmt.Errorf("block_bytes must be a power of two, got %d", c.BlockBytes)
	}
	if c.PageBytes != 0 && c.BlockBytes > c.PageBytes {
		return fmt.Errorf("page_bytes (%d) must be >= block_bytes (%d)",
			c.PageBytes, c.BlockBytes)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		return fmt.Errorf("confidence_threshold must be within [0, 100]")
	}
	return nil
}

// HistoryConfig converts the normalized configuration for NewHistory.
func (c Config) HistoryConfig() HistoryConfig {
	n := c.Normalize()
	return HistoryConfig{
		Size:                n.HistorySize,
		PatternLength:       n.PatternLength,
		Degree:              n.Degree,
		UsePC:               n.UsePC,
		PageBytes:           n.PageBytes,
		ConfidenceThreshold: n.ConfidenceThreshold,
	}
}
