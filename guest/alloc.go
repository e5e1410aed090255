package guest

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/membrane-wasm/membrane/errors"
	"github.com/membrane-wasm/membrane/schema"
)

// Allocator export names probed in order. Component-model toolchains emit
// cabi_realloc; older wit-bindgen guests export the canonical_abi pair.
const (
	reallocExport       = "cabi_realloc"
	reallocLegacyExport = "canonical_abi_realloc"
	freeLegacyExport    = "canonical_abi_free"
)

// FuncAllocator drives the guest's own exported allocator, so every
// pointer it returns is valid in the guest's heap.
type FuncAllocator struct {
	ctx     context.Context
	realloc api.Function
	free    api.Function // nil when the guest exports no free
}

// NewAllocator resolves the guest's allocator exports. The realloc
// export is required; free is optional and its absence makes Free a
// no-op, which matches guests whose allocator reclaims on instance
// teardown.
func NewAllocator(ctx context.Context, mod api.Module) (*FuncAllocator, error) {
	realloc := mod.ExportedFunction(reallocExport)
	if realloc == nil {
		realloc = mod.ExportedFunction(reallocLegacyExport)
	}
	if realloc == nil {
		return nil, errors.NotFound(errors.PhaseAlloc, "guest realloc export")
	}
	return &FuncAllocator{
		ctx:     ctx,
		realloc: realloc,
		free:    mod.ExportedFunction(freeLegacyExport),
	}, nil
}

func (a *FuncAllocator) Realloc(ptr, oldSize, align, newSize uint32) (uint32, error) {
	// The zero-size sentinel never crosses the boundary: the guest's
	// allocator applies the same convention, but short-circuiting here
	// avoids a wasm call per empty string or list.
	if newSize == 0 && ptr == 0 {
		return align, nil
	}
	results, err := a.realloc.Call(a.ctx, uint64(ptr), uint64(oldSize), uint64(align), uint64(newSize))
	if err != nil {
		return 0, errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, err, "guest realloc trapped")
	}
	if len(results) != 1 {
		return 0, errors.Protocol(errors.PhaseAlloc, "guest realloc returned no pointer")
	}
	return uint32(results[0]), nil
}

func (a *FuncAllocator) Free(ptr, size, align uint32) {
	if a.free == nil || ptr == 0 || size == 0 {
		return
	}
	if _, err := a.free.Call(a.ctx, uint64(ptr), uint64(size), uint64(align)); err != nil {
		Logger().Warn("guest free trapped",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

// BumpAllocator carves allocations out of a wazero memory from a fixed
// base, growing the memory as needed. It never reclaims: Free is a
// no-op. Meant for guests that export a memory but no allocator.
type BumpAllocator struct {
	mem  api.Memory
	next uint32
}

// NewBumpAllocator starts allocating at the current end of mem.
func NewBumpAllocator(mem api.Memory) *BumpAllocator {
	return &BumpAllocator{mem: mem, next: mem.Size()}
}

func (b *BumpAllocator) Realloc(ptr, oldSize, align, newSize uint32) (uint32, error) {
	if newSize == 0 {
		return align, nil
	}

	addr := schema.AlignTo(b.next, align)
	end := uint64(addr) + uint64(newSize)
	if end > uint64(b.mem.Size()) {
		const pageSize = 65536
		pages := uint32((end - uint64(b.mem.Size()) + pageSize - 1) / pageSize)
		if _, ok := b.mem.Grow(pages); !ok {
			return 0, errors.AllocationFailed(errors.PhaseAlloc, newSize, align)
		}
	}
	b.next = uint32(end)

	if ptr != 0 && oldSize > 0 {
		data, ok := b.mem.Read(ptr, min(oldSize, newSize))
		if !ok {
			return 0, errors.New(errors.PhaseAlloc, errors.KindOutOfBounds).
				Detail("stale block %d..%d unreadable", ptr, ptr+oldSize).
				Build()
		}
		if !b.mem.Write(addr, data) {
			return 0, errors.AllocationFailed(errors.PhaseAlloc, newSize, align)
		}
	}
	return addr, nil
}

func (b *BumpAllocator) Free(ptr, size, align uint32) {}
