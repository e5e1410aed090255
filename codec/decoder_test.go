package codec

import (
	"testing"

	"github.com/membrane-wasm/membrane/errors"
	"github.com/membrane-wasm/membrane/heap"
	"github.com/membrane-wasm/membrane/schema"
)

func TestLoadInvalidDiscriminant(t *testing.T) {
	v := schema.Variant(
		schema.Case("a", nil),
		schema.Case("b", schema.U32()),
		schema.Case("c", nil),
	)

	mem := heap.New()
	addr, err := mem.Realloc(0, 0, v.Align(), v.Size())
	if err != nil {
		t.Fatalf("Realloc() error = %v", err)
	}

	dec := NewDecoder(mem)
	for _, tag := range []uint8{3, 4, 255} {
		if err := mem.WriteU8(addr, tag); err != nil {
			t.Fatalf("WriteU8() error = %v", err)
		}
		_, err := dec.Load(v, addr)
		if err == nil {
			t.Fatalf("Load() accepted tag %d of 3-case variant", tag)
		}
		if kindOf(err) != errors.KindInvalidDiscriminant {
			t.Errorf("tag %d: error kind = %v, want %v", tag, kindOf(err), errors.KindInvalidDiscriminant)
		}
	}
}

func TestLiftInvalidDiscriminant(t *testing.T) {
	opt := schema.Option(schema.U32())
	mem := heap.New()
	dec := NewDecoder(mem)

	_, err := dec.Lift(opt, []uint64{2, 0})
	if err == nil {
		t.Fatal("Lift() accepted option tag 2")
	}
	if kindOf(err) != errors.KindInvalidDiscriminant {
		t.Errorf("error kind = %v, want %v", kindOf(err), errors.KindInvalidDiscriminant)
	}
}

func TestLoadInvalidUTF8(t *testing.T) {
	mem := heap.New()
	enc := NewEncoder(mem, mem)
	dec := NewDecoder(mem)

	owned, err := enc.Encode(schema.String(), "ok")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	// corrupt the string bytes in place
	ptr, _ := mem.ReadU32(owned.Addr())
	if err := mem.WriteU8(ptr, 0xFF); err != nil {
		t.Fatalf("WriteU8() error = %v", err)
	}

	_, err = dec.Load(schema.String(), owned.Addr())
	if err == nil {
		t.Fatal("Load() accepted invalid UTF-8")
	}
	if kindOf(err) != errors.KindInvalidUTF8 {
		t.Errorf("error kind = %v, want %v", kindOf(err), errors.KindInvalidUTF8)
	}
}

func TestLoadInvalidChar(t *testing.T) {
	mem := heap.New()
	addr, _ := mem.Realloc(0, 0, 4, 4)
	if err := mem.WriteU32(addr, 0xD800); err != nil {
		t.Fatalf("WriteU32() error = %v", err)
	}
	_, err := NewDecoder(mem).Load(schema.Char(), addr)
	if err == nil {
		t.Fatal("Load() accepted surrogate code point")
	}
}

func TestLoadOutOfBounds(t *testing.T) {
	mem := heap.New()
	_, err := NewDecoder(mem).Load(schema.U64(), 1<<30)
	if err == nil {
		t.Fatal("Load() succeeded past end of memory")
	}
	if kindOf(err) != errors.KindOutOfBounds {
		t.Errorf("error kind = %v, want %v", kindOf(err), errors.KindOutOfBounds)
	}
}

func TestLiftInsufficientSlots(t *testing.T) {
	mem := heap.New()
	dec := NewDecoder(mem)
	_, err := dec.Lift(schema.String(), []uint64{0})
	if err == nil {
		t.Fatal("Lift() succeeded with one slot for a two-slot type")
	}
}

func TestZeroCopyByteLists(t *testing.T) {
	mem := heap.New()
	enc := NewEncoder(mem, mem)

	typ := schema.List(schema.U8())
	owned, err := enc.Encode(typ, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	ptr, _ := mem.ReadU32(owned.Addr())

	borrowed, err := NewDecoder(mem, WithZeroCopy()).Load(typ, owned.Addr())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	copied, err := NewDecoder(mem).Load(typ, owned.Addr())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := mem.WriteU8(ptr, 99); err != nil {
		t.Fatalf("WriteU8() error = %v", err)
	}
	if b := borrowed.([]byte); b[0] != 99 {
		t.Error("zero-copy load did not alias memory")
	}
	if c := copied.([]byte); c[0] != 1 {
		t.Error("default load aliased memory")
	}
}

func TestLiftTypedScalarLists(t *testing.T) {
	mem := heap.New()
	enc := NewEncoder(mem, mem)
	dec := NewDecoder(mem)
	track := NewAllocationList()
	defer track.FreeAndRelease(mem)

	typ := schema.List(schema.F64())
	var flat []uint64
	if err := enc.Flatten(typ, []float64{1.5, -2.25}, &flat, track); err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}
	got, err := dec.Lift(typ, flat)
	if err != nil {
		t.Fatalf("Lift() error = %v", err)
	}
	fs, ok := got.([]float64)
	if !ok {
		t.Fatalf("Lift() returned %T, want []float64", got)
	}
	if len(fs) != 2 || fs[0] != 1.5 || fs[1] != -2.25 {
		t.Errorf("Lift() = %v", fs)
	}
}
