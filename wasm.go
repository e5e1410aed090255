package membrane

// Memory represents WASM linear memory
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of WASM linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator manages guest-owned blocks in WASM linear memory.
//
// Realloc follows the canonical_abi_realloc contract: ptr==0 with oldSize==0
// allocates fresh, newSize==0 performs no allocation and returns the align
// value itself as a non-dereferenceable sentinel, and anything else moves the
// block. Free with size==0 is a no-op and must never reach the underlying
// deallocator, because no real allocation backed the sentinel.
type Allocator interface {
	Realloc(ptr, oldSize, align, newSize uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// Alloc is shorthand for a fresh allocation through a.
func Alloc(a Allocator, size, align uint32) (uint32, error) {
	return a.Realloc(0, 0, align, size)
}
