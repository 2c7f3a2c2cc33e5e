// Package mem provides a sparse, page-granular byte-addressable memory used
// as the last level of the simulated hierarchy.
package mem

import (
	"encoding/binary"
)

// PageSize is the allocation granularity in bytes.
const PageSize = 4096

// Memory is a sparse little-endian memory. Unwritten bytes read as zero.
type Memory struct {
	pages map[uint64]*[PageSize]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64]*[PageSize]byte)}
}

// Pages returns the number of allocated pages.
func (m *Memory) Pages() int {
	return len(m.pages)
}

func (m *Memory) page(addr uint64, alloc bool) *[PageSize]byte {
	pn := addr / PageSize
	p, ok := m.pages[pn]
	if !ok && alloc {
		p = new([PageSize]byte)
		m.pages[pn] = p
	}
	return p
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) byte {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr%PageSize]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint64, value byte) {
	m.page(addr, true)[addr%PageSize] = value
}

// ReadBytes fills buf with the bytes starting at addr.
func (m *Memory) ReadBytes(addr uint64, buf []byte) {
	for len(buf) > 0 {
		off := addr % PageSize
		n := min(uint64(len(buf)), PageSize-off)
		if p := m.page(addr, false); p != nil {
			copy(buf[:n], p[off:off+n])
		} else {
			clear(buf[:n])
		}
		buf = buf[n:]
		addr += n
	}
}

// WriteBytes stores data starting at addr.
func (m *Memory) WriteBytes(addr uint64, data []byte) {
	for len(data) > 0 {
		off := addr % PageSize
		n := min(uint64(len(data)), PageSize-off)
		copy(m.page(addr, true)[off:off+n], data[:n])
		data = data[n:]
		addr += n
	}
}

// Read32 reads a little-endian 32-bit value.
func (m *Memory) Read32(addr uint64) uint32 {
	var buf [4]byte
	m.ReadBytes(addr, buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

// Write32 writes a little-endian 32-bit value.
func (m *Memory) Write32(addr uint64, value uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	m.WriteBytes(addr, buf[:])
}

// Read64 reads a little-endian 64-bit value.
func (m *Memory) Read64(addr uint64) uint64 {
	var buf [8]byte
	m.ReadBytes(addr, buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// Write64 writes a little-endian 64-bit value.
func (m *Memory) Write64(addr uint64, value uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	m.WriteBytes(addr, buf[:])
}
