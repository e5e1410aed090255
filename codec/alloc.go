package codec

import (
	"sync"

	membrane "github.com/membrane-wasm/membrane"
)

// Memory is the linear memory the codec reads and writes.
type Memory = membrane.Memory

// Allocator owns the guest buffers the encoder creates.
type Allocator = membrane.Allocator

// Allocation records one guest buffer created while encoding.
type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// AllocationList tracks the guest buffers an encode produced, so a caller
// can free encoded arguments after a call completes, or roll back after a
// failed encode.
type AllocationList struct {
	allocations []Allocation
}

var allocationListPool = sync.Pool{
	New: func() any {
		return &AllocationList{allocations: make([]Allocation, 0, 8)}
	},
}

const maxPooledAllocations = 128

// NewAllocationList returns a pooled, empty list.
func NewAllocationList() *AllocationList {
	return allocationListPool.Get().(*AllocationList)
}

func (al *AllocationList) Add(ptr, size, align uint32) {
	al.allocations = append(al.allocations, Allocation{Ptr: ptr, Size: size, Align: align})
}

func (al *AllocationList) Count() int {
	return len(al.allocations)
}

// Free returns every tracked buffer to the allocator.
func (al *AllocationList) Free(alloc Allocator) {
	if alloc == nil {
		return
	}
	for _, a := range al.allocations {
		alloc.Free(a.Ptr, a.Size, a.Align)
	}
	al.allocations = al.allocations[:0]
}

// Release returns the list to the pool. The list is invalid afterwards.
func (al *AllocationList) Release() {
	if cap(al.allocations) > maxPooledAllocations {
		return
	}
	al.allocations = al.allocations[:0]
	allocationListPool.Put(al)
}

// FreeAndRelease frees every tracked buffer, then pools the list.
func (al *AllocationList) FreeAndRelease(alloc Allocator) {
	al.Free(alloc)
	al.Release()
}

// uint64 buffer pool for flattening
const (
	poolInitCap64 = 16
	poolMaxCap64  = 1024
)

var buf64Pool = sync.Pool{
	New: func() any {
		buf := make([]uint64, 0, poolInitCap64)
		return &buf
	},
}

func getBuf64() *[]uint64 {
	return buf64Pool.Get().(*[]uint64)
}

func putBuf64(buf *[]uint64) {
	if buf == nil || cap(*buf) > poolMaxCap64 {
		return
	}
	*buf = (*buf)[:0]
	buf64Pool.Put(buf)
}
