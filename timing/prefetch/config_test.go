package prefetch_test

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ghbsim/timing/prefetch"
)

var _ = Describe("Config", func() {
	It("should provide defaults", func() {
		config := prefetch.DefaultConfig()
		Expect(config.HistorySize).To(Equal(256))
		Expect(config.PatternLength).To(Equal(4))
		Expect(config.Degree).To(Equal(2))
		Expect(config.UsePC).To(BeTrue())
		Expect(config.ConfidenceThreshold).To(Equal(50))
		Expect(config.PageBytes).To(Equal(uint64(4096)))
		Expect(config.BlockBytes).To(Equal(uint64(64)))
		Expect(config.Validate()).To(Succeed())
	})

	It("should clamp out of range values", func() {
		config := prefetch.Config{
			HistorySize:         -3,
			PatternLength:       0,
			Degree:              0,
			ConfidenceThreshold: 250,
		}.Normalize()

		Expect(config.HistorySize).To(Equal(1))
		Expect(config.PatternLength).To(Equal(1))
		Expect(config.Degree).To(Equal(1))
		Expect(config.ConfidenceThreshold).To(Equal(100))
		Expect(config.PageBytes).To(Equal(uint64(1)))
		Expect(config.BlockBytes).To(Equal(uint64(1)))

		Expect(prefetch.Config{ConfidenceThreshold: -5}.Normalize().ConfidenceThreshold).
			To(Equal(0))
	})

	It("should reject a block size that is not a power of two", func() {
		config := prefetch.DefaultConfig()
		config.BlockBytes = 48
		Expect(config.Validate()).To(MatchError(ContainSubstring("power of two")))
	})

	It("should reject a page smaller than a block", func() {
		config := prefetch.DefaultConfig()
		config.PageBytes = 32
		Expect(config.Validate()).To(MatchError(ContainSubstring("page_bytes")))
	})

	It("should carry settings into the history", func() {
		config := prefetch.DefaultConfig()
		config.PatternLength = 6
		config.Degree = 3

		h := prefetch.NewHistory(config.HistoryConfig())
		Expect(h.Capacity()).To(Equal(256))
		Expect(h.PatternLength()).To(Equal(6))
		Expect(h.Degree()).To(Equal(3))
		Expect(h.ConfidenceThreshold()).To(Equal(50))
	})
})

var _ = Describe("Collector", func() {
	It("should export one counter per statistic", func() {
		ghb := prefetch.New(prefetch.DefaultConfig())
		ghb.CalculatePrefetch(prefetch.AccessInfo{Addr: 0x1000, PC: 0x4, HasPC: true})
		ghb.CalculatePrefetch(prefetch.AccessInfo{Addr: 0x1040, PC: 0x4, HasPC: true})

		collector := prefetch.NewCollector("ghbsim", ghb)
		Expect(testutil.CollectAndCount(collector)).To(Equal(9))

		registry := prometheus.NewPedanticRegistry()
		Expect(registry.Register(collector)).To(Succeed())
		Expect(testutil.CollectAndCount(collector, "ghbsim_ghb_candidates_total")).
			To(Equal(1))
	})
})
