// Package trace reads, writes and synthesizes memory access traces.
//
// The text format holds one access per line:
//
//	<op> <addr> [pc]
//
// where op is L or R for a load and S or W for a store, and addr and pc are
// hexadecimal with an optional 0x prefix. Blank lines and lines starting
// with # are ignored. Files ending in .gz or .zst are compressed.
package trace

import (
	"fmt"
)

// Op is the kind of a memory access.
type Op uint8

const (
	// Load reads memory.
	Load Op = iota
	// Store writes memory.
	Store
)

// String returns the single-letter trace mnemonic.
func (o Op) String() string {
	switch o {
	case Load:
		return "L"
	case Store:
		return "S"
	default:
		return "?"
	}
}

// Record is one traced access.
type Record struct {
	Op    Op
	Addr  uint64
	PC    uint64
	HasPC bool
}

// String formats r as a trace line.
func (r Record) String() string {
	if r.HasPC {
		return fmt.Sprintf("%s 0x%x 0x%x", r.Op, r.Addr, r.PC)
	}
	return fmt.Sprintf("%s 0x%x", r.Op, r.Addr)
}

// Source yields records until it returns io.EOF.
type Source interface {
	Next() (Record, error)
}

// SliceSource replays an in-memory record slice.
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource creates a Source over records.
func NewSliceSource(records []Record) *SliceSource {
	return &SliceSource{records: records}
}

// ParseError reports a malformed trace line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
