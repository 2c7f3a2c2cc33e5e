package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ghbsim/timing/cache"
)

var _ = Describe("PrefetchQueue", func() {
	var q *cache.PrefetchQueue

	BeforeEach(func() {
		q = cache.NewPrefetchQueue(cache.QueueConfig{Size: 3, IssueWidth: 2})
	})

	It("should fall back to defaults for non-positive sizes", func() {
		q = cache.NewPrefetchQueue(cache.QueueConfig{})
		Expect(q.IssueWidth()).To(Equal(cache.DefaultQueueConfig().IssueWidth))
	})

	It("should queue an address only once", func() {
		queued, _ := q.Push(cache.Request{Addr: 0x40})
		Expect(queued).To(BeTrue())

		queued, dropped := q.Push(cache.Request{Addr: 0x40})
		Expect(queued).To(BeFalse())
		Expect(dropped).To(BeFalse())
		Expect(q.Len()).To(Equal(1))
	})

	It("should issue newest first within a priority", func() {
		q.Push(cache.Request{Addr: 0x40})
		q.Push(cache.Request{Addr: 0x80})
		q.Push(cache.Request{Addr: 0xC0})

		Expect(q.Pop(2)).To(Equal([]cache.Request{{Addr: 0xC0}, {Addr: 0x80}}))
		Expect(q.Len()).To(Equal(1))
		Expect(q.Contains(0xC0)).To(BeFalse())
		Expect(q.Contains(0x40)).To(BeTrue())
	})

	It("should issue higher priorities first", func() {
		q.Push(cache.Request{Addr: 0x40, Priority: 1})
		q.Push(cache.Request{Addr: 0x80})

		Expect(q.Pop(1)).To(Equal([]cache.Request{{Addr: 0x40, Priority: 1}}))
	})

	It("should drop the oldest request when full", func() {
		q.Push(cache.Request{Addr: 0x40})
		q.Push(cache.Request{Addr: 0x80})
		q.Push(cache.Request{Addr: 0xC0})

		queued, dropped := q.Push(cache.Request{Addr: 0x100})
		Expect(queued).To(BeTrue())
		Expect(dropped).To(BeTrue())
		Expect(q.Contains(0x40)).To(BeFalse())
		Expect(q.Len()).To(Equal(3))
	})

	It("should reject a lower priority request when full of higher ones", func() {
		q.Push(cache.Request{Addr: 0x40, Priority: 2})
		q.Push(cache.Request{Addr: 0x80, Priority: 2})
		q.Push(cache.Request{Addr: 0xC0, Priority: 2})

		queued, dropped := q.Push(cache.Request{Addr: 0x100, Priority: 1})
		Expect(queued).To(BeFalse())
		Expect(dropped).To(BeTrue())
		Expect(q.Contains(0x100)).To(BeFalse())
	})

	It("should return nothing when empty", func() {
		Expect(q.Pop(4)).To(BeNil())
	})

	It("should clear pending requests on reset", func() {
		q.Push(cache.Request{Addr: 0x40})
		q.Reset()

		Expect(q.Len()).To(Equal(0))
		Expect(q.Contains(0x40)).To(BeFalse())
	})
})
