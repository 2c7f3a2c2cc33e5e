package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Writer emits the text trace format.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write appends one record.
func (w *Writer) Write(r Record) error {
	if _, err := fmt.Fprintln(w.w, r.String()); err != nil {
		return fmt.Errorf("failed to write trace record: %w", err)
	}
	return nil
}

// WriteAll appends records.
func (w *Writer) WriteAll(records []Record) error {
	for _, r := range records {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// FileWriter is a Writer over a possibly compressed file.
type FileWriter struct {
	*Writer
	closers []func() error
}

// Create creates a trace file, compressing .gz and .zst files.
func Create(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace: %w", err)
	}

	fw := &FileWriter{closers: []func() error{f.Close}}

	var dst io.Writer = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zw := gzip.NewWriter(f)
		fw.closers = append(fw.closers, zw.Close)
		dst = zw
	case ".zst":
		zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create zstd trace: %w", err)
		}
		fw.closers = append(fw.closers, zw.Close)
		dst = zw
	}

	fw.Writer = NewWriter(dst)
	return fw, nil
}

// Close flushes buffered records, finishes the compressed stream and closes
// the file.
func (f *FileWriter) Close() error {
	var errs []error
	if err := f.Flush(); err != nil {
		errs = append(errs, err)
	}
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
