// Package core replays memory access traces through a cache model.
// It turns a trace into cycle counts the way an in-order core that blocks on
// every access would.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/ghbsim/timing/cache"
	"github.com/sarchlab/ghbsim/trace"
)

// accessSize is the width of every replayed access in bytes.
const accessSize = 8

// checkInterval is how many records Run replays between context checks.
const checkInterval = 4096

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total memory latency accumulated.
	Cycles uint64
	// Accesses is the number of records replayed.
	Accesses uint64
	// Loads is the number of load records replayed.
	Loads uint64
	// Stores is the number of store records replayed.
	Stores uint64
}

// AMAT returns the average memory access time in cycles.
func (s Stats) AMAT() float64 {
	if s.Accesses == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Accesses)
}

// Core drives a cache with trace records.
type Core struct {
	cache *cache.Cache
	stats Stats
}

// NewCore creates a Core in front of c.
func NewCore(c *cache.Cache) *Core {
	return &Core{cache: c}
}

// Cache returns the cache the core drives.
func (c *Core) Cache() *cache.Cache {
	return c.cache
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// Step replays one record and returns the cache's answer.
func (c *Core) Step(rec trace.Record) cache.AccessResult {
	var result cache.AccessResult

	switch rec.Op {
	case trace.Store:
		if rec.HasPC {
			result = c.cache.WritePC(rec.PC, rec.Addr, accessSize, rec.Addr)
		} else {
			result = c.cache.Write(rec.Addr, accessSize, rec.Addr)
		}
		c.stats.Stores++
	default:
		if rec.HasPC {
			result = c.cache.ReadPC(rec.PC, rec.Addr, accessSize)
		} else {
			result = c.cache.Read(rec.Addr, accessSize)
		}
		c.stats.Loads++
	}

	c.stats.Accesses++
	c.stats.Cycles += result.Latency
	return result
}

// Run replays src until it is drained or ctx is cancelled.
func (c *Core) Run(ctx context.Context, src trace.Source) error {
	for n := 0; ; n++ {
		if n%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to replay record %d: %w", n, err)
		}

		c.Step(rec)
	}
}

// Reset clears core statistics and the cache.
func (c *Core) Reset() {
	c.stats = Stats{}
	c.cache.Reset()
}
