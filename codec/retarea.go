package codec

import (
	"github.com/membrane-wasm/membrane/errors"
	"github.com/membrane-wasm/membrane/schema"
)

// ReturnArea is a single guest-memory block reused across calls whose
// results do not fit in flat return slots. It is allocated once, sized
// for the largest result among the signatures it serves, and cycles
// between idle and populated: a call populates it by passing its pointer
// as the final argument, and the host marks it idle again after lifting
// the result. Overlapping use is a protocol violation, not silent reuse.
type ReturnArea struct {
	alloc     Allocator
	ptr       uint32
	size      uint32
	align     uint32
	populated bool
}

// NewReturnArea allocates a return area sized to hold any of the given
// result types. Types whose results travel in flat slots contribute
// nothing; if no type needs memory the area stays unallocated and Ptr
// reports 0.
func NewReturnArea(alloc Allocator, results ...*schema.Type) (*ReturnArea, error) {
	var size, align uint32
	for _, t := range results {
		if t == nil || t.FlatCount() <= MaxFlatResults {
			continue
		}
		if s := t.Size(); s > size {
			size = s
		}
		if a := t.Align(); a > align {
			align = a
		}
	}

	ra := &ReturnArea{alloc: alloc, size: size, align: align}
	if size == 0 {
		return ra, nil
	}

	ptr, err := alloc.Realloc(0, 0, align, size)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, err, "return area allocation failed")
	}
	ra.ptr = ptr
	return ra, nil
}

// Acquire marks the area populated and returns its pointer for use as a
// call's retptr argument. It fails if a previous result has not been
// consumed yet.
func (ra *ReturnArea) Acquire() (uint32, error) {
	if ra.populated {
		return 0, errors.Protocol(errors.PhaseCall, "return area still holds an unconsumed result")
	}
	if ra.size == 0 {
		return 0, errors.Protocol(errors.PhaseCall, "return area holds no memory: all results fit in flat slots")
	}
	ra.populated = true
	return ra.ptr, nil
}

// Consume marks the current result as read, making the area available
// for the next call. The caller is responsible for releasing any
// indirect allocations the result owned before the next call overwrites
// the area.
func (ra *ReturnArea) Consume() {
	ra.populated = false
}

// Ptr is the area's guest address, or 0 when no result needed memory.
func (ra *ReturnArea) Ptr() uint32 { return ra.ptr }

// Size is the area's byte size.
func (ra *ReturnArea) Size() uint32 { return ra.size }

// Populated reports whether the area holds a result that has not been
// consumed.
func (ra *ReturnArea) Populated() bool { return ra.populated }

// Close returns the area's memory to the allocator.
func (ra *ReturnArea) Close() {
	if ra.size > 0 {
		ra.alloc.Free(ra.ptr, ra.size, ra.align)
		ra.ptr, ra.size = 0, 0
	}
	ra.populated = false
}
