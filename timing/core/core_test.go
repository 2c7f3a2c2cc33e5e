package core_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ghbsim/mem"
	"github.com/sarchlab/ghbsim/timing/cache"
	"github.com/sarchlab/ghbsim/timing/core"
	"github.com/sarchlab/ghbsim/timing/prefetch"
	"github.com/sarchlab/ghbsim/trace"
)

var testConfig = cache.Config{
	Size:          4 * 1024,
	Associativity: 4,
	BlockSize:     64,
	HitLatency:    1,
	MissLatency:   10,
}

var _ = Describe("Core", func() {
	var (
		memory *mem.Memory
		c      *core.Core
	)

	BeforeEach(func() {
		memory = mem.NewMemory()
		c = core.NewCore(cache.New(testConfig, cache.NewMemoryBacking(memory)))
	})

	It("should accumulate access latency", func() {
		c.Step(trace.Record{Op: trace.Load, Addr: 0x1000})
		c.Step(trace.Record{Op: trace.Load, Addr: 0x1008})
		c.Step(trace.Record{Op: trace.Store, Addr: 0x1010, PC: 0x400, HasPC: true})

		stats := c.Stats()
		Expect(stats.Accesses).To(Equal(uint64(3)))
		Expect(stats.Loads).To(Equal(uint64(2)))
		Expect(stats.Stores).To(Equal(uint64(1)))
		Expect(stats.Cycles).To(Equal(uint64(12)))
		Expect(stats.AMAT()).To(BeNumerically("~", 4.0))
	})

	It("should store the address as data", func() {
		c.Step(trace.Record{Op: trace.Store, Addr: 0x2000})
		c.Cache().Flush()
		Expect(memory.Read64(0x2000)).To(Equal(uint64(0x2000)))
	})

	It("should report zero AMAT before any access", func() {
		Expect(c.Stats().AMAT()).To(Equal(0.0))
	})

	It("should replay a whole source", func() {
		src := trace.NewSliceSource(trace.Stream(0x10000, 64, 8))
		Expect(c.Run(context.Background(), src)).To(Succeed())

		Expect(c.Stats().Accesses).To(Equal(uint64(64)))
		Expect(c.Cache().Stats().Misses).To(Equal(uint64(8)))
	})

	It("should stop when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := c.Run(ctx, trace.NewSliceSource(trace.Stream(0, 16, 8)))
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(c.Stats().Accesses).To(Equal(uint64(0)))
	})

	It("should surface malformed records", func() {
		src := trace.NewReader(strings.NewReader("L 0x10\nQ 0x20\n"))

		err := c.Run(context.Background(), src)
		var perr *trace.ParseError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(c.Stats().Accesses).To(Equal(uint64(1)))
	})

	It("should cut misses when a GHB prefetcher is attached", func() {
		ghb := prefetch.New(prefetch.DefaultConfig())
		c = core.NewCore(cache.New(testConfig, cache.NewMemoryBacking(memory),
			cache.WithPrefetcher(ghb)))

		Expect(c.Run(context.Background(),
			trace.NewSliceSource(trace.Strided(0x10000, 64, 64)))).To(Succeed())
		Expect(c.Cache().Stats().Misses).To(Equal(uint64(2)))
	})

	It("should reset statistics and the cache", func() {
		c.Step(trace.Record{Op: trace.Load, Addr: 0x1000})
		c.Reset()

		Expect(c.Stats()).To(Equal(core.Stats{}))
		Expect(c.Cache().Contains(0x1000)).To(BeFalse())
	})
})
