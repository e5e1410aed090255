package heap

import (
	"bytes"
	"testing"

	membrane "github.com/membrane-wasm/membrane"
	"github.com/membrane-wasm/membrane/errors"
)

var (
	_ membrane.Memory      = (*Linear)(nil)
	_ membrane.MemorySizer = (*Linear)(nil)
	_ membrane.Allocator   = (*Linear)(nil)
)

func TestRealloc_ZeroSizeSentinel(t *testing.T) {
	l := New()
	before := l.Stats()

	for _, align := range []uint32{1, 2, 4, 8} {
		ptr, err := l.Realloc(0, 0, align, 0)
		if err != nil {
			t.Fatalf("Realloc: %v", err)
		}
		if ptr != align {
			t.Errorf("zero-size realloc: got %d, want sentinel %d", ptr, align)
		}
	}

	if got := l.Stats().Allocs; got != before.Allocs {
		t.Errorf("zero-size realloc performed %d real allocations", got-before.Allocs)
	}
}

func TestFree_ZeroSizeNoop(t *testing.T) {
	l := New()
	l.Free(4, 0, 4) // the sentinel from a zero-size alloc

	if got := l.Stats().Frees; got != 0 {
		t.Errorf("zero-size free reached the deallocator (%d frees)", got)
	}
}

func TestRealloc_FreshAllocation(t *testing.T) {
	l := New()

	ptr, err := l.Realloc(0, 0, 8, 64)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if ptr == 0 {
		t.Fatal("allocated null pointer")
	}
	if ptr%8 != 0 {
		t.Errorf("pointer %d not 8-aligned", ptr)
	}
	if got := l.Stats().Allocs; got != 1 {
		t.Errorf("Allocs = %d, want 1", got)
	}
}

func TestRealloc_MovesContents(t *testing.T) {
	l := New()

	ptr, err := l.Realloc(0, 0, 1, 4)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := l.Write(ptr, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	grown, err := l.Realloc(ptr, 4, 1, 16)
	if err != nil {
		t.Fatalf("Realloc grow: %v", err)
	}
	data, err := l.Read(grown, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("contents lost across realloc: %x", data)
	}
}

func TestFree_BlockIsReused(t *testing.T) {
	l := New()

	ptr, err := l.Realloc(0, 0, 4, 128)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	l.Free(ptr, 128, 4)

	again, err := l.Realloc(0, 0, 4, 128)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if again != ptr {
		t.Errorf("freed block not reused: got %d, want %d", again, ptr)
	}
}

func TestFree_ReusedBlockAccounting(t *testing.T) {
	l := New()

	// Reuse a 128-byte block for a 16-byte request; freeing with the
	// requested size must still return InUse to zero.
	ptr, err := l.Realloc(0, 0, 4, 128)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	l.Free(ptr, 128, 4)

	small, err := l.Realloc(0, 0, 4, 16)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if small != ptr {
		t.Fatalf("freed block not reused: got %d, want %d", small, ptr)
	}
	l.Free(small, 16, 4)

	if got := l.Stats().InUse; got != 0 {
		t.Errorf("InUse = %d after all frees, want 0", got)
	}

	// The full block stays reusable after the round trip.
	again, err := l.Realloc(0, 0, 4, 128)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if again != ptr {
		t.Errorf("block shrank on reuse: got %d, want %d", again, ptr)
	}
	l.Free(again, 128, 4)
	if got := l.Stats().InUse; got != 0 {
		t.Errorf("InUse = %d, want 0", got)
	}
}

func TestAlloc_GrowsMemory(t *testing.T) {
	l := New()
	initial := l.Size()

	if _, err := membrane.Alloc(l, initial+pageSize, 8); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if l.Size() <= initial {
		t.Errorf("memory did not grow: %d", l.Size())
	}
}

func TestAlloc_LimitPanics(t *testing.T) {
	l := New(WithLimit(2 * pageSize))

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("allocation beyond the limit did not panic")
		}
		err, ok := r.(*errors.Error)
		if !ok || err.Kind != errors.KindAllocation {
			t.Errorf("panic value = %v, want allocation error", r)
		}
	}()
	_, _ = membrane.Alloc(l, 4*pageSize, 8)
}

func TestMemory_ReadWriteRoundTrip(t *testing.T) {
	l := New()

	if err := l.WriteU8(100, 0xab); err != nil {
		t.Fatal(err)
	}
	if err := l.WriteU16(102, 0xbeef); err != nil {
		t.Fatal(err)
	}
	if err := l.WriteU32(104, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	if err := l.WriteU64(108, 0x0123456789abcdef); err != nil {
		t.Fatal(err)
	}

	if v, _ := l.ReadU8(100); v != 0xab {
		t.Errorf("u8 = %#x", v)
	}
	if v, _ := l.ReadU16(102); v != 0xbeef {
		t.Errorf("u16 = %#x", v)
	}
	if v, _ := l.ReadU32(104); v != 0xdeadbeef {
		t.Errorf("u32 = %#x", v)
	}
	if v, _ := l.ReadU64(108); v != 0x0123456789abcdef {
		t.Errorf("u64 = %#x", v)
	}
}

func TestMemory_LittleEndian(t *testing.T) {
	l := New()
	if err := l.WriteU32(64, 0x11223344); err != nil {
		t.Fatal(err)
	}
	data, err := l.Read(64, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0x44, 0x33, 0x22, 0x11}) {
		t.Errorf("not little-endian: %x", data)
	}
}

func TestMemory_OutOfBounds(t *testing.T) {
	l := New()
	size := l.Size()

	if _, err := l.Read(size-2, 4); err == nil {
		t.Error("read past the end succeeded")
	}
	if err := l.WriteU64(size-4, 1); err == nil {
		t.Error("write past the end succeeded")
	}
	// offset+length overflow must not wrap
	if _, err := l.Read(^uint32(0)-1, 8); err == nil {
		t.Error("overflowing read succeeded")
	}
}
