package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Next implements Source.
func (s *SliceSource) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return Record{}, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

// Reader parses the text trace format.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over uncompressed text.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Next returns the next record, or io.EOF at the end of the trace.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		rec, err := ParseLine(text)
		if err != nil {
			return Record{}, &ParseError{Line: r.line, Text: text, Err: err}
		}
		return rec, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("failed to read trace: %w", err)
	}
	return Record{}, io.EOF
}

// ReadAll drains src into a slice.
func ReadAll(src Source) ([]Record, error) {
	var records []Record
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

// ParseLine parses a single non-empty trace line.
func ParseLine(text string) (Record, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 || len(fields) > 3 {
		return Record{}, fmt.Errorf("expected 2 or 3 fields, got %d", len(fields))
	}

	var rec Record
	switch strings.ToUpper(fields[0]) {
	case "L", "R":
		rec.Op = Load
	case "S", "W":
		rec.Op = Store
	default:
		return Record{}, fmt.Errorf("unknown op %q", fields[0])
	}

	addr, err := parseHex(fields[1])
	if err != nil {
		return Record{}, fmt.Errorf("bad address: %w", err)
	}
	rec.Addr = addr

	if len(fields) == 3 {
		pc, err := parseHex(fields[2])
		if err != nil {
			return Record{}, fmt.Errorf("bad pc: %w", err)
		}
		rec.PC = pc
		rec.HasPC = true
	}

	return rec, nil
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}

// FileReader is a Reader over a possibly compressed file.
type FileReader struct {
	*Reader
	closers []func() error
}

// Open opens a trace file, decompressing .gz and .zst files.
func Open(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}

	fr := &FileReader{closers: []func() error{f.Close}}

	var src io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to open gzip trace: %w", err)
		}
		fr.closers = append(fr.closers, zr.Close)
		src = zr
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to open zstd trace: %w", err)
		}
		fr.closers = append(fr.closers, func() error {
			zr.Close()
			return nil
		})
		src = zr
	}

	fr.Reader = NewReader(src)
	return fr, nil
}

// Close releases the decompressor and the file.
func (f *FileReader) Close() error {
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
