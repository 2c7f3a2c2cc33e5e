package prefetch_test

import (
	"github.com/prometheus/client_golang/prometheus/testutil"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ghbsim/timing/prefetch"
)

var _ = Describe("Stride", func() {
	var stride *prefetch.Stride

	BeforeEach(func() {
		stride = prefetch.NewStride(prefetch.DefaultStrideConfig())
	})

	loadPC := func(pc, addr uint64) []uint64 {
		return addrs(stride.CalculatePrefetch(prefetch.AccessInfo{Addr: addr, PC: pc, HasPC: true}))
	}
	load := func(addr uint64) []uint64 {
		return loadPC(0x400, addr)
	}

	It("should wait until the stride repeats", func() {
		Expect(load(0x1000)).To(BeEmpty())
		Expect(load(0x1040)).To(BeEmpty())
		Expect(load(0x1080)).To(BeEmpty())
		Expect(load(0x10c0)).To(Equal([]uint64{0x1100, 0x1140}))

		stats := stride.Stats()
		Expect(stats.Allocations).To(Equal(uint64(1)))
		Expect(stats.Predictions).To(Equal(uint64(1)))
		Expect(stats.Candidates).To(Equal(uint64(2)))
	})

	It("should align accesses to blocks", func() {
		load(0x1008)
		load(0x1050)
		load(0x1088)
		Expect(load(0x10f8)).To(Equal([]uint64{0x1100, 0x1140}))
	})

	It("should stop at the page boundary", func() {
		load(0x1ec0)
		load(0x1f00)
		load(0x1f40)
		Expect(load(0x1f80)).To(Equal([]uint64{0x1fc0}))
		Expect(stride.Stats().CrossPage).To(Equal(uint64(1)))
	})

	It("should follow negative strides", func() {
		load(0x1fc0)
		load(0x1f80)
		load(0x1f40)
		Expect(load(0x1f00)).To(Equal([]uint64{0x1ec0, 0x1e80}))
	})

	It("should retrain when the stride changes", func() {
		load(0x1000)
		load(0x1040)
		load(0x1080)
		load(0x10c0)

		Expect(load(0x1200)).To(BeEmpty())
		Expect(stride.Stats().Retrains).To(Equal(uint64(2)))
	})

	It("should ignore repeated accesses to one block", func() {
		load(0x1000)
		load(0x1040)
		load(0x1080)
		Expect(load(0x1090)).To(BeEmpty())
		Expect(load(0x10c0)).To(Equal([]uint64{0x1100, 0x1140}))
	})

	It("should track instructions separately", func() {
		for i := uint64(0); i < 3; i++ {
			loadPC(0x400, 0x1000+i*0x40)
			loadPC(0x404, 0x8000+i*0x80)
		}

		Expect(loadPC(0x400, 0x10c0)).To(Equal([]uint64{0x1100, 0x1140}))
		Expect(loadPC(0x404, 0x8180)).To(Equal([]uint64{0x8200, 0x8280}))
		Expect(stride.Len()).To(Equal(2))
	})

	It("should replace the least recently used entry", func() {
		config := prefetch.DefaultStrideConfig()
		config.TableSize = 2
		stride = prefetch.NewStride(config)

		loadPC(1, 0x1000)
		loadPC(2, 0x2000)
		loadPC(1, 0x1040)
		loadPC(3, 0x3000)

		Expect(stride.Len()).To(Equal(2))
		Expect(stride.Stats().Evictions).To(Equal(uint64(1)))

		loadPC(1, 0x1080)
		Expect(stride.Stats().Allocations).To(Equal(uint64(3)))

		loadPC(2, 0x2040)
		Expect(stride.Stats().Allocations).To(Equal(uint64(4)))
	})

	It("should predict at once with zero confidence", func() {
		config := prefetch.DefaultStrideConfig()
		config.MinConfidence = 0
		config.Degree = 1
		stride = prefetch.NewStride(config)

		load(0x1000)
		Expect(load(0x1100)).To(Equal([]uint64{0x1200}))
	})

	It("should forget everything on reset", func() {
		load(0x1000)
		load(0x1040)
		load(0x1080)

		stride.Reset()
		Expect(stride.Len()).To(Equal(0))
		Expect(stride.Stats()).To(Equal(prefetch.StrideStatistics{}))
		Expect(load(0x10c0)).To(BeEmpty())
	})

	It("should clear statistics", func() {
		load(0x1000)
		stride.ResetStats()
		Expect(stride.Stats()).To(Equal(prefetch.StrideStatistics{}))
		Expect(stride.Len()).To(Equal(1))
	})

	It("should export counters", func() {
		load(0x1000)
		collector := prefetch.NewStrideCollector("ghbsim", stride)
		Expect(testutil.CollectAndCount(collector)).To(Equal(7))
		Expect(testutil.CollectAndCount(collector, "ghbsim_stride_accesses_total")).
			To(Equal(1))
	})

	Describe("StrideConfig", func() {
		It("should clamp out-of-range values", func() {
			config := prefetch.StrideConfig{MinConfidence: -1}.Normalize()
			Expect(config.TableSize).To(Equal(1))
			Expect(config.Degree).To(Equal(1))
			Expect(config.MinConfidence).To(Equal(0))
			Expect(config.PageBytes).To(Equal(uint64(1)))
			Expect(config.BlockBytes).To(Equal(uint64(1)))
		})

		It("should accept the defaults", func() {
			Expect(prefetch.DefaultStrideConfig().Validate()).To(Succeed())
		})

		It("should reject a non power-of-two block", func() {
			config := prefetch.DefaultStrideConfig()
			config.BlockBytes = 48
			Expect(config.Validate()).To(MatchError(ContainSubstring("power of two")))
		})

		It("should reject a block larger than a page", func() {
			config := prefetch.DefaultStrideConfig()
			config.PageBytes = 32
			Expect(config.Validate()).To(MatchError(ContainSubstring("page_bytes")))
		})
	})
})
