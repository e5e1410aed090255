package codec

import (
	"testing"

	"github.com/membrane-wasm/membrane/errors"
	"github.com/membrane-wasm/membrane/heap"
	"github.com/membrane-wasm/membrane/schema"
)

func TestReturnAreaSizing(t *testing.T) {
	small := schema.Result(schema.U32(), schema.String()) // needs memory
	big := schema.Result(schema.U64(), schema.Tuple(schema.String(), schema.String()))
	flatOnly := schema.U64() // fits in a flat slot

	mem := heap.New()
	area, err := NewReturnArea(mem, small, big, flatOnly)
	if err != nil {
		t.Fatalf("NewReturnArea() error = %v", err)
	}
	defer area.Close()

	if area.Size() != big.Size() {
		t.Errorf("Size() = %d, want %d (largest memory-bound result)", area.Size(), big.Size())
	}
	if area.Ptr() == 0 {
		t.Error("Ptr() = 0 for a sized area")
	}
}

func TestReturnAreaFlatOnlySignatures(t *testing.T) {
	mem := heap.New()
	area, err := NewReturnArea(mem, schema.U32(), schema.F64())
	if err != nil {
		t.Fatalf("NewReturnArea() error = %v", err)
	}
	if area.Ptr() != 0 || area.Size() != 0 {
		t.Errorf("flat-only area = (ptr %d, size %d), want unallocated", area.Ptr(), area.Size())
	}
	if _, err := area.Acquire(); err == nil {
		t.Error("Acquire() succeeded on an unallocated area")
	}
}

func TestReturnAreaOverlapRejected(t *testing.T) {
	mem := heap.New()
	area, err := NewReturnArea(mem, schema.Result(schema.U64(), schema.String()))
	if err != nil {
		t.Fatalf("NewReturnArea() error = %v", err)
	}
	defer area.Close()

	if _, err := area.Acquire(); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	if !area.Populated() {
		t.Fatal("area not marked populated after Acquire")
	}

	_, err = area.Acquire()
	if err == nil {
		t.Fatal("second Acquire() succeeded while populated")
	}
	if kindOf(err) != errors.KindProtocol {
		t.Errorf("error kind = %v, want %v", kindOf(err), errors.KindProtocol)
	}

	area.Consume()
	if _, err := area.Acquire(); err != nil {
		t.Errorf("Acquire() after Consume() error = %v", err)
	}
}

func TestReturnAreaReuseAcrossCalls(t *testing.T) {
	result := schema.Result(schema.U64(), schema.String())

	mem := heap.New()
	enc := NewEncoder(mem, mem)
	dec := NewDecoder(mem)

	area, err := NewReturnArea(mem, result)
	if err != nil {
		t.Fatalf("NewReturnArea() error = %v", err)
	}
	defer area.Close()

	first := area.Ptr()
	for i := 0; i < 3; i++ {
		ptr, err := area.Acquire()
		if err != nil {
			t.Fatalf("call %d: Acquire() error = %v", i, err)
		}
		if ptr != first {
			t.Fatalf("call %d: ptr = %d, want stable %d", i, ptr, first)
		}

		if err := enc.Store(result, Ok(uint64(i)), ptr, nil); err != nil {
			t.Fatalf("call %d: Store() error = %v", i, err)
		}
		got, err := dec.Load(result, ptr)
		if err != nil {
			t.Fatalf("call %d: Load() error = %v", i, err)
		}
		if r := got.(Result); r.IsErr || r.Value != uint64(i) {
			t.Errorf("call %d: result = %#v", i, r)
		}

		if err := Release(result, ptr, mem, mem); err != nil {
			t.Fatalf("call %d: Release() error = %v", i, err)
		}
		area.Consume()
	}
}
