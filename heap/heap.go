package heap

import (
	"fmt"

	"github.com/membrane-wasm/membrane/errors"
)

const (
	pageSize = 64 * 1024

	// DefaultLimit is the memory ceiling when none is configured.
	DefaultLimit = 256 * 1024 * 1024

	// nullGuard keeps offset 0 (the null pointer) and its neighborhood
	// out of the allocatable range.
	nullGuard = 8
)

// Stats reports allocator activity, mainly for tests and diagnostics.
type Stats struct {
	Allocs    uint64 // real allocations performed
	Frees     uint64 // real frees performed
	InUse     uint32 // bytes currently allocated
	HighWater uint32 // peak bump offset
}

type block struct {
	ptr  uint32
	size uint32
}

// Linear is an emulated linear memory with a single process-wide-style
// allocator. Not safe for concurrent use: one instance, one thread.
type Linear struct {
	data    []byte
	next    uint32
	freed   []block
	granted map[uint32]uint32
	limit   uint32
	stats   Stats
}

// Option configures a Linear.
type Option func(*Linear)

// WithLimit caps the memory at n bytes. Allocations beyond the cap panic.
func WithLimit(n uint32) Option {
	return func(l *Linear) { l.limit = n }
}

// New creates a Linear with one page of initial memory.
func New(opts ...Option) *Linear {
	l := &Linear{
		data:    make([]byte, pageSize),
		next:    nullGuard,
		granted: make(map[uint32]uint32),
		limit:   DefaultLimit,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Size returns the current memory size in bytes.
func (l *Linear) Size() uint32 {
	return uint32(len(l.data))
}

// Stats returns a snapshot of allocator activity.
func (l *Linear) Stats() Stats {
	return l.stats
}

// Realloc implements the canonical realloc contract. newSize==0 returns
// the align value itself as a sentinel: non-null, never to be
// dereferenced, backed by no allocation. Exhausting the memory limit
// panics with a structured allocation error.
func (l *Linear) Realloc(ptr, oldSize, align, newSize uint32) (uint32, error) {
	if newSize == 0 {
		if ptr != 0 && oldSize > 0 {
			l.Free(ptr, oldSize, align)
		}
		return align, nil
	}

	newPtr := l.alloc(newSize, align)
	if ptr != 0 && oldSize > 0 {
		copy(l.data[newPtr:newPtr+min(oldSize, newSize)], l.data[ptr:ptr+oldSize])
		l.Free(ptr, oldSize, align)
	}
	return newPtr, nil
}

// Free returns a block to the free pool. size==0 is a no-op: the pointer
// is the zero-size sentinel and no real allocation backs it.
func (l *Linear) Free(ptr, size, align uint32) {
	if size == 0 || ptr == 0 {
		return
	}
	// A reused block may be larger than the caller asked for; release
	// and account the size that was actually granted.
	if g, ok := l.granted[ptr]; ok {
		size = g
		delete(l.granted, ptr)
	}
	l.freed = append(l.freed, block{ptr: ptr, size: size})
	l.stats.Frees++
	l.stats.InUse -= size
}

func (l *Linear) alloc(size, align uint32) uint32 {
	if align == 0 {
		align = 1
	}

	// first fit from the free pool
	for i, b := range l.freed {
		if b.size >= size && b.ptr%align == 0 {
			l.freed = append(l.freed[:i], l.freed[i+1:]...)
			l.granted[b.ptr] = b.size
			l.stats.Allocs++
			l.stats.InUse += b.size
			return b.ptr
		}
	}

	ptr := alignUp(l.next, align)
	end := ptr + size
	if end < ptr || end > l.limit {
		// Out of memory is unrecoverable for this layer: no error return.
		panic(errors.AllocationFailed(errors.PhaseAlloc, size, align))
	}
	for end > uint32(len(l.data)) {
		l.grow()
	}

	l.next = end
	l.stats.Allocs++
	l.stats.InUse += size
	if l.next > l.stats.HighWater {
		l.stats.HighWater = l.next
	}
	return ptr
}

func (l *Linear) grow() {
	grown := make([]byte, len(l.data)+pageSize)
	copy(grown, l.data)
	l.data = grown
}

func alignUp(offset, align uint32) uint32 {
	return (offset + align - 1) &^ (align - 1)
}

func (l *Linear) check(offset, length uint32) error {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(l.data)) {
		return fmt.Errorf("memory access out of bounds: offset=%d, length=%d, size=%d",
			offset, length, len(l.data))
	}
	return nil
}

func (l *Linear) Read(offset uint32, length uint32) ([]byte, error) {
	if err := l.check(offset, length); err != nil {
		return nil, err
	}
	return l.data[offset : offset+length], nil
}

func (l *Linear) Write(offset uint32, data []byte) error {
	if err := l.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(l.data[offset:], data)
	return nil
}

func (l *Linear) ReadU8(offset uint32) (uint8, error) {
	if err := l.check(offset, 1); err != nil {
		return 0, err
	}
	return l.data[offset], nil
}

func (l *Linear) ReadU16(offset uint32) (uint16, error) {
	if err := l.check(offset, 2); err != nil {
		return 0, err
	}
	return uint16(l.data[offset]) | uint16(l.data[offset+1])<<8, nil
}

func (l *Linear) ReadU32(offset uint32) (uint32, error) {
	if err := l.check(offset, 4); err != nil {
		return 0, err
	}
	return uint32(l.data[offset]) | uint32(l.data[offset+1])<<8 |
		uint32(l.data[offset+2])<<16 | uint32(l.data[offset+3])<<24, nil
}

func (l *Linear) ReadU64(offset uint32) (uint64, error) {
	lo, err := l.ReadU32(offset)
	if err != nil {
		return 0, err
	}
	hi, err := l.ReadU32(offset + 4)
	if err != nil {
		return 0, err
	}
	return uint64(lo) | uint64(hi)<<32, nil
}

func (l *Linear) WriteU8(offset uint32, value uint8) error {
	if err := l.check(offset, 1); err != nil {
		return err
	}
	l.data[offset] = value
	return nil
}

func (l *Linear) WriteU16(offset uint32, value uint16) error {
	if err := l.check(offset, 2); err != nil {
		return err
	}
	l.data[offset] = byte(value)
	l.data[offset+1] = byte(value >> 8)
	return nil
}

func (l *Linear) WriteU32(offset uint32, value uint32) error {
	if err := l.check(offset, 4); err != nil {
		return err
	}
	l.data[offset] = byte(value)
	l.data[offset+1] = byte(value >> 8)
	l.data[offset+2] = byte(value >> 16)
	l.data[offset+3] = byte(value >> 24)
	return nil
}

func (l *Linear) WriteU64(offset uint32, value uint64) error {
	if err := l.WriteU32(offset, uint32(value)); err != nil {
		return err
	}
	return l.WriteU32(offset+4, uint32(value>>32))
}
