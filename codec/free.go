package codec

import (
	"github.com/membrane-wasm/membrane/errors"
	"github.com/membrane-wasm/membrane/schema"
)

// Release recursively frees the guest allocations referenced by the value
// of type t stored at addr, depth-first: a variant's active payload is
// released before anything else, a record's fields are released in
// declaration order, and a list releases each element before handing the
// backing buffer back to the allocator. addr itself is the caller's to
// free. Types that own no indirect storage are a no-op.
func Release(t *schema.Type, addr uint32, mem Memory, alloc Allocator) error {
	if !t.Owns() {
		return nil
	}

	switch t.Kind() {
	case schema.KindString:
		ptr, err := mem.ReadU32(addr)
		if err != nil {
			return freeOOB(err)
		}
		length, err := mem.ReadU32(addr + 4)
		if err != nil {
			return freeOOB(err)
		}
		alloc.Free(ptr, length, 1)
		return nil

	case schema.KindList:
		ptr, err := mem.ReadU32(addr)
		if err != nil {
			return freeOOB(err)
		}
		length, err := mem.ReadU32(addr + 4)
		if err != nil {
			return freeOOB(err)
		}
		elem := t.Elem()
		if elem.Owns() {
			stride := elem.Size()
			for i := uint32(0); i < length; i++ {
				if err := Release(elem, ptr+i*stride, mem, alloc); err != nil {
					return err
				}
			}
		}
		size, ok := safeMul(length, elem.Size())
		if !ok {
			return errors.New(errors.PhaseAlloc, errors.KindOverflow).
				Detail("list byte size overflows: %d elements of %d bytes", length, elem.Size()).
				Build()
		}
		alloc.Free(ptr, size, elem.Align())
		return nil

	case schema.KindRecord, schema.KindTuple:
		for i, f := range t.Fields() {
			if err := Release(f.Type, addr+t.FieldOffset(i), mem, alloc); err != nil {
				return err
			}
		}
		return nil

	case schema.KindVariant, schema.KindOption, schema.KindResult:
		tag, err := readTagMem(mem, addr, t.TagSize())
		if err != nil {
			return err
		}
		cases := t.Cases()
		if int(tag) >= len(cases) {
			return errors.InvalidDiscriminant(errors.PhaseAlloc, nil, tag, uint32(len(cases)-1))
		}
		if pt := cases[tag].Type; pt != nil {
			return Release(pt, addr+t.PayloadOffset(), mem, alloc)
		}
		return nil

	default:
		return nil
	}
}

func readTagMem(mem Memory, addr, tagSize uint32) (uint32, error) {
	switch tagSize {
	case 1:
		v, err := mem.ReadU8(addr)
		if err != nil {
			return 0, freeOOB(err)
		}
		return uint32(v), nil
	case 2:
		v, err := mem.ReadU16(addr)
		if err != nil {
			return 0, freeOOB(err)
		}
		return uint32(v), nil
	default:
		v, err := mem.ReadU32(addr)
		if err != nil {
			return 0, freeOOB(err)
		}
		return v, nil
	}
}

func freeOOB(cause error) error {
	return errors.New(errors.PhaseAlloc, errors.KindOutOfBounds).
		Cause(cause).
		Build()
}

// Owned is a guest-memory value produced by Encoder.Encode. It tracks the
// top-level allocation so the whole structure, indirect buffers included,
// can be handed back with a single Release call.
type Owned struct {
	typ      *schema.Type
	addr     uint32
	mem      Memory
	alloc    Allocator
	released bool
}

// Addr is the guest address of the stored value.
func (o *Owned) Addr() uint32 { return o.addr }

// Type is the schema the value was encoded against.
func (o *Owned) Type() *schema.Type { return o.typ }

// Release frees the value's indirect allocations and then its top-level
// block. Calling Release more than once is a no-op.
func (o *Owned) Release() error {
	if o.released {
		return nil
	}
	o.released = true
	if err := Release(o.typ, o.addr, o.mem, o.alloc); err != nil {
		return err
	}
	o.alloc.Free(o.addr, o.typ.Size(), o.typ.Align())
	return nil
}
