package trace_test

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ghbsim/trace"
)

var _ = Describe("Reader", func() {
	It("should parse loads, stores and optional PCs", func() {
		input := `# header
L 0x1000 0x400
S 2000

r 0X3000 404
W 0x4000
`
		records, err := trace.ReadAll(trace.NewReader(strings.NewReader(input)))
		Expect(err).ToNot(HaveOccurred())
		Expect(records).To(Equal([]trace.Record{
			{Op: trace.Load, Addr: 0x1000, PC: 0x400, HasPC: true},
			{Op: trace.Store, Addr: 0x2000},
			{Op: trace.Load, Addr: 0x3000, PC: 0x404, HasPC: true},
			{Op: trace.Store, Addr: 0x4000},
		}))
	})

	It("should report the line of a malformed record", func() {
		r := trace.NewReader(strings.NewReader("L 0x10\nX 0x20\n"))

		_, err := r.Next()
		Expect(err).ToNot(HaveOccurred())

		_, err = r.Next()
		var perr *trace.ParseError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(perr.Line).To(Equal(2))
		Expect(perr.Error()).To(ContainSubstring("unknown op"))
	})

	It("should reject bad addresses and field counts", func() {
		_, err := trace.ParseLine("L zz")
		Expect(err).To(MatchError(ContainSubstring("bad address")))

		_, err = trace.ParseLine("L 0x10 0x20 0x30")
		Expect(err).To(HaveOccurred())

		_, err = trace.ParseLine("L 0x10 0xq")
		Expect(err).To(MatchError(ContainSubstring("bad pc")))
	})

	It("should return io.EOF once drained", func() {
		_, err := trace.NewReader(strings.NewReader("")).Next()
		Expect(err).To(MatchError(io.EOF))
	})
})

var _ = Describe("Writer", func() {
	records := []trace.Record{
		{Op: trace.Load, Addr: 0x1000, PC: 0x400, HasPC: true},
		{Op: trace.Store, Addr: 0x1040},
	}

	It("should format records as trace lines", func() {
		var buf bytes.Buffer
		w := trace.NewWriter(&buf)
		Expect(w.WriteAll(records)).To(Succeed())
		Expect(w.Flush()).To(Succeed())

		Expect(buf.String()).To(Equal("L 0x1000 0x400\nS 0x1040\n"))
	})

	DescribeTable("should round-trip through files",
		func(name string) {
			path := filepath.Join(GinkgoT().TempDir(), name)

			w, err := trace.Create(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(w.WriteAll(records)).To(Succeed())
			Expect(w.Close()).To(Succeed())

			r, err := trace.Open(path)
			Expect(err).ToNot(HaveOccurred())
			defer func() { _ = r.Close() }()

			got, err := trace.ReadAll(r)
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal(records))
		},
		Entry("plain text", "t.trace"),
		Entry("gzip", "t.trace.gz"),
		Entry("zstd", "t.trace.zst"),
	)

	It("should fail to open a missing file", func() {
		_, err := trace.Open(filepath.Join(GinkgoT().TempDir(), "missing.trace"))
		Expect(err).To(MatchError(ContainSubstring("failed to open trace")))
	})
})

var _ = Describe("SliceSource", func() {
	It("should replay records in order", func() {
		src := trace.NewSliceSource([]trace.Record{{Addr: 1}, {Addr: 2}})

		got, err := trace.ReadAll(src)
		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(HaveLen(2))

		_, err = src.Next()
		Expect(err).To(MatchError(io.EOF))
	})
})
