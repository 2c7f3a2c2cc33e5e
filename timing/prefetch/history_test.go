package prefetch_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ghbsim/timing/prefetch"
)

func newHistory(usePC bool) *prefetch.History {
	return prefetch.NewHistory(prefetch.HistoryConfig{
		Size:                16,
		PatternLength:       4,
		Degree:              2,
		UsePC:               usePC,
		PageBytes:           64,
		ConfidenceThreshold: 50,
	})
}

var _ = Describe("History", func() {
	var h *prefetch.History

	BeforeEach(func() {
		h = newHistory(true)
	})

	Describe("PC correlation", func() {
		It("should build a sequential stride pattern most recent first", func() {
			h.Insert(prefetch.Access{Addr: 0x0, PC: 0x100, HasPC: true})
			h.Insert(prefetch.Access{Addr: 0x40, PC: 0x100, HasPC: true})
			slot := h.Insert(prefetch.Access{Addr: 0x80, PC: 0x100, HasPC: true})

			deltas, ok := h.BuildPattern(slot, prefetch.KeyPC)
			Expect(ok).To(BeTrue())
			Expect(deltas).To(Equal([]int64{0x40, 0x40}))
		})

		It("should keep chains of different PCs apart", func() {
			h.Insert(prefetch.Access{Addr: 0x1000, PC: 0x100, HasPC: true})
			h.Insert(prefetch.Access{Addr: 0x8000, PC: 0x200, HasPC: true})
			h.Insert(prefetch.Access{Addr: 0x1100, PC: 0x100, HasPC: true})
			slot := h.Insert(prefetch.Access{Addr: 0x8040, PC: 0x200, HasPC: true})

			deltas, ok := h.BuildPattern(slot, prefetch.KeyPC)
			Expect(ok).To(BeTrue())
			Expect(deltas).To(Equal([]int64{0x40}))
		})

		It("should record negative deltas", func() {
			h.Insert(prefetch.Access{Addr: 0x200, PC: 0x100, HasPC: true})
			slot := h.Insert(prefetch.Access{Addr: 0x100, PC: 0x100, HasPC: true})

			deltas, ok := h.BuildPattern(slot, prefetch.KeyPC)
			Expect(ok).To(BeTrue())
			Expect(deltas).To(Equal([]int64{-0x100}))
		})

		It("should not link accesses without a PC", func() {
			h.Insert(prefetch.Access{Addr: 0x0})
			slot := h.Insert(prefetch.Access{Addr: 0x40})

			_, ok := h.BuildPattern(slot, prefetch.KeyPC)
			Expect(ok).To(BeFalse())
		})

		It("should stop at the pattern length", func() {
			var slot int
			for i := uint64(0); i < 10; i++ {
				slot = h.Insert(prefetch.Access{Addr: i * 0x40, PC: 0x100, HasPC: true})
			}

			deltas, ok := h.BuildPattern(slot, prefetch.KeyPC)
			Expect(ok).To(BeTrue())
			Expect(deltas).To(HaveLen(4))
		})
	})

	Describe("Page correlation", func() {
		It("should chain accesses on the same page when PC correlation is off", func() {
			h = newHistory(false)
			h.Insert(prefetch.Access{Addr: 0x100})
			h.Insert(prefetch.Access{Addr: 0x108})
			slot := h.Insert(prefetch.Access{Addr: 0x110})

			deltas, ok := h.BuildPattern(slot, prefetch.KeyPage)
			Expect(ok).To(BeTrue())
			Expect(deltas[0]).To(Equal(int64(0x8)))
			Expect(deltas).To(HaveEach(int64(0x8)))

			_, ok = h.BuildPattern(slot, prefetch.KeyPC)
			Expect(ok).To(BeFalse())
		})

		It("should ignore the PC when PC correlation is off", func() {
			h = newHistory(false)
			h.Insert(prefetch.Access{Addr: 0x100, PC: 0x10, HasPC: true})
			slot := h.Insert(prefetch.Access{Addr: 0x140, PC: 0x10, HasPC: true})

			_, ok := h.BuildPattern(slot, prefetch.KeyPC)
			Expect(ok).To(BeFalse())
		})

		It("should fail for the first access on a page", func() {
			slot := h.Insert(prefetch.Access{Addr: 0x100})

			deltas, ok := h.BuildPattern(slot, prefetch.KeyPage)
			Expect(ok).To(BeFalse())
			Expect(deltas).To(BeEmpty())
		})
	})

	Describe("Wraparound", func() {
		BeforeEach(func() {
			h = prefetch.NewHistory(prefetch.HistoryConfig{
				Size:          4,
				PatternLength: 8,
				UsePC:         true,
				PageBytes:     4096,
			})
		})

		It("should never follow a link into an overwritten slot", func() {
			var slot int
			for i := uint64(0); i < 10; i++ {
				slot = h.Insert(prefetch.Access{Addr: i * 0x40, PC: 0x100, HasPC: true})
			}

			deltas, ok := h.BuildPattern(slot, prefetch.KeyPC)
			Expect(ok).To(BeTrue())
			Expect(deltas).To(HaveLen(3))
			Expect(deltas).To(HaveEach(int64(0x40)))
		})

		It("should report a full buffer after wrapping", func() {
			for i := uint64(0); i < 3; i++ {
				h.Insert(prefetch.Access{Addr: i * 0x40})
			}
			Expect(h.Len()).To(Equal(3))

			h.Insert(prefetch.Access{Addr: 0x1000})
			h.Insert(prefetch.Access{Addr: 0x2000})
			Expect(h.Len()).To(Equal(4))
			Expect(h.Capacity()).To(Equal(4))
		})

		It("should drop index mappings of an evicted slot", func() {
			h.Insert(prefetch.Access{Addr: 0x0, PC: 0x1, HasPC: true})
			for i := uint64(1); i <= 4; i++ {
				h.Insert(prefetch.Access{Addr: i * 0x10000, PC: 0x10 + i, HasPC: true})
			}

			_, ok := h.Latest(prefetch.KeyPC, 0x1)
			Expect(ok).To(BeFalse())
			_, ok = h.Latest(prefetch.KeyPage, 0)
			Expect(ok).To(BeFalse())

			slot, ok := h.Latest(prefetch.KeyPC, 0x14)
			Expect(ok).To(BeTrue())
			Expect(slot).To(Equal(0))
		})

		It("should keep a mapping that moved to a newer slot", func() {
			h.Insert(prefetch.Access{Addr: 0x0, PC: 0x1, HasPC: true})
			h.Insert(prefetch.Access{Addr: 0x40, PC: 0x1, HasPC: true})
			h.Insert(prefetch.Access{Addr: 0x10000, PC: 0x2, HasPC: true})
			h.Insert(prefetch.Access{Addr: 0x20000, PC: 0x3, HasPC: true})
			h.Insert(prefetch.Access{Addr: 0x30000, PC: 0x4, HasPC: true})

			slot, ok := h.Latest(prefetch.KeyPC, 0x1)
			Expect(ok).To(BeTrue())
			Expect(slot).To(Equal(1))

			_, ok = h.BuildPattern(1, prefetch.KeyPC)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Disabled history", func() {
		It("should turn every operation into a no-op", func() {
			h = prefetch.NewHistory(prefetch.HistoryConfig{Size: 0, PatternLength: 4})
			Expect(h.Disabled()).To(BeTrue())

			slot := h.Insert(prefetch.Access{Addr: 0x40, PC: 0x1, HasPC: true})
			Expect(slot).To(Equal(prefetch.NoSlot))
			Expect(h.Len()).To(Equal(0))

			_, ok := h.BuildPattern(0, prefetch.KeyPage)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Reset", func() {
		insertStride := func() ([]int64, int) {
			h.Insert(prefetch.Access{Addr: 0x0, PC: 0x100, HasPC: true})
			h.Insert(prefetch.Access{Addr: 0x40, PC: 0x100, HasPC: true})
			slot := h.Insert(prefetch.Access{Addr: 0x80, PC: 0x100, HasPC: true})
			deltas, _ := h.BuildPattern(slot, prefetch.KeyPC)
			return deltas, slot
		}

		It("should reproduce a fresh history", func() {
			freshDeltas, freshSlot := insertStride()
			h.UpdatePatternTable([]int64{1, 2, 3})
			Expect(h.Table().Len()).To(Equal(1))

			h.Reset()
			Expect(h.Len()).To(Equal(0))
			Expect(h.Table().Len()).To(Equal(0))
			_, ok := h.Latest(prefetch.KeyPC, 0x100)
			Expect(ok).To(BeFalse())

			deltas, slot := insertStride()
			Expect(slot).To(Equal(freshSlot))
			Expect(deltas).To(Equal(freshDeltas))
		})
	})

	It("should reject out of range slots", func() {
		_, ok := h.BuildPattern(-1, prefetch.KeyPage)
		Expect(ok).To(BeFalse())
		_, ok = h.BuildPattern(16, prefetch.KeyPage)
		Expect(ok).To(BeFalse())
	})

	It("should reverse deltas into chronological order", func() {
		Expect(prefetch.Chronological([]int64{3, 2, 1})).To(Equal([]int64{1, 2, 3}))
		Expect(prefetch.Chronological(nil)).To(BeEmpty())
	})
})
