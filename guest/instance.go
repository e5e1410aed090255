package guest

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	membrane "github.com/membrane-wasm/membrane"
	"github.com/membrane-wasm/membrane/codec"
	"github.com/membrane-wasm/membrane/errors"
	"github.com/membrane-wasm/membrane/schema"
)

// Signature describes one boundary function: its export (or import)
// name, parameter types in order, and result type. A nil Result means
// the function returns nothing.
type Signature struct {
	Name   string
	Params []*schema.Type
	Result *schema.Type
}

// Instance binds a wazero module to the codec: its memory and allocator
// exports wrapped, a shared return area sized for the given signatures,
// and encode/decode state ready for calls. Not safe for concurrent use;
// wasm instances are single-threaded anyway.
type Instance struct {
	mod   api.Module
	mem   membrane.Memory
	alloc membrane.Allocator
	enc   *codec.Encoder
	dec   *codec.Decoder
	area  *codec.ReturnArea
}

// Bind wraps mod for calling the given signatures. The guest must
// export a linear memory; if it exports no allocator, a host-managed
// bump allocator over that memory is used instead.
func Bind(ctx context.Context, mod api.Module, sigs ...Signature) (*Instance, error) {
	raw := mod.Memory()
	if raw == nil {
		return nil, errors.NotFound(errors.PhaseCall, "guest memory export")
	}

	var alloc membrane.Allocator
	fa, err := NewAllocator(ctx, mod)
	switch {
	case err == nil:
		alloc = fa
	default:
		Logger().Debug("guest exports no allocator, using bump allocation",
			zap.String("module", mod.Name()))
		alloc = NewBumpAllocator(raw)
	}

	results := make([]*schema.Type, 0, len(sigs))
	for _, sig := range sigs {
		results = append(results, sig.Result)
	}
	area, err := codec.NewReturnArea(alloc, results...)
	if err != nil {
		return nil, err
	}

	mem := Wrap(raw)
	return &Instance{
		mod:   mod,
		mem:   mem,
		alloc: alloc,
		enc:   codec.NewEncoder(mem, alloc),
		dec:   codec.NewDecoder(mem),
		area:  area,
	}, nil
}

// Memory is the bound guest memory.
func (inst *Instance) Memory() membrane.Memory { return inst.mem }

// Allocator is the bound guest allocator.
func (inst *Instance) Allocator() membrane.Allocator { return inst.alloc }

// Call invokes the guest export named by sig with the given arguments,
// following the export convention: parameters are lowered into guest
// memory and passed as flattened scalars, and a result that does not fit
// in flat slots comes back as a single i32 pointer into the guest's own
// return area. Guest allocations made for the parameters and the
// result's buffers are released before Call returns; the returned value
// is a host-owned copy.
func (inst *Instance) Call(ctx context.Context, sig Signature, args ...any) (any, error) {
	fn := inst.mod.ExportedFunction(sig.Name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseCall, "guest export "+sig.Name)
	}
	if len(args) != len(sig.Params) {
		return nil, errors.New(errors.PhaseCall, errors.KindTypeMismatch).
			Detail("%s takes %d parameters, got %d", sig.Name, len(sig.Params), len(args)).
			Build()
	}

	track := codec.NewAllocationList()
	defer track.FreeAndRelease(inst.alloc)

	flat, err := inst.enc.EncodeParams(sig.Params, args, track)
	if err != nil {
		return nil, err
	}

	indirect := sig.Result != nil && sig.Result.FlatCount() > codec.MaxFlatResults

	Logger().Debug("calling guest export",
		zap.String("name", sig.Name),
		zap.Int("flat_params", len(flat)),
		zap.Bool("indirect_result", indirect))

	results, err := fn.Call(ctx, flat...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCall, errors.KindProtocol, err, "guest call "+sig.Name+" trapped")
	}

	if sig.Result == nil {
		return nil, nil
	}

	if indirect {
		if len(results) != 1 {
			return nil, errors.Protocol(errors.PhaseCall, sig.Name+" returned no result pointer")
		}
		retptr := uint32(results[0])
		value, err := inst.dec.Load(sig.Result, retptr)
		if err != nil {
			return nil, err
		}
		// The guest's return area itself is static; only the buffers
		// the result points at are ours to hand back.
		if err := codec.Release(sig.Result, retptr, inst.mem, inst.alloc); err != nil {
			return nil, err
		}
		return value, nil
	}
	return inst.dec.Lift(sig.Result, results)
}

// Callee is a numerically-typed boundary function: it consumes and
// produces flattened core scalars. Guest functions, host handlers, and
// test closures all fit.
type Callee interface {
	Invoke(ctx context.Context, flat []uint64) ([]uint64, error)
}

// CalleeFunc adapts a closure into a Callee.
type CalleeFunc func(ctx context.Context, flat []uint64) ([]uint64, error)

func (f CalleeFunc) Invoke(ctx context.Context, flat []uint64) ([]uint64, error) {
	return f(ctx, flat)
}

// Func adapts a guest function into a Callee.
func Func(fn api.Function) Callee {
	return CalleeFunc(func(ctx context.Context, flat []uint64) ([]uint64, error) {
		return fn.Call(ctx, flat...)
	})
}

// ImportCall drives callee with the import convention: parameters are
// lowered (spilling past the flat limit), a pointer into the instance's
// return area is appended as the final argument when the result does not
// fit in flat slots, and the result is lifted from the call's scalars or
// from the return area. Parameter and result allocations are released
// before ImportCall returns.
func (inst *Instance) ImportCall(ctx context.Context, callee Callee, sig Signature, args ...any) (any, error) {
	if len(args) != len(sig.Params) {
		return nil, errors.New(errors.PhaseCall, errors.KindTypeMismatch).
			Detail("%s takes %d parameters, got %d", sig.Name, len(sig.Params), len(args)).
			Build()
	}

	track := codec.NewAllocationList()
	defer track.FreeAndRelease(inst.alloc)

	flat, err := inst.enc.EncodeParams(sig.Params, args, track)
	if err != nil {
		return nil, err
	}

	var retptr uint32
	indirect := sig.Result != nil && sig.Result.FlatCount() > codec.MaxFlatResults
	if indirect {
		retptr, err = inst.area.Acquire()
		if err != nil {
			return nil, err
		}
		flat = append(flat, uint64(retptr))
	}

	results, err := callee.Invoke(ctx, flat)
	if err != nil {
		if indirect {
			inst.area.Consume()
		}
		return nil, errors.Wrap(errors.PhaseCall, errors.KindProtocol, err, "import call "+sig.Name+" failed")
	}

	if sig.Result == nil {
		return nil, nil
	}

	if indirect {
		value, err := inst.dec.Load(sig.Result, retptr)
		if err != nil {
			inst.area.Consume()
			return nil, err
		}
		relErr := codec.Release(sig.Result, retptr, inst.mem, inst.alloc)
		inst.area.Consume()
		if relErr != nil {
			return nil, relErr
		}
		return value, nil
	}
	return inst.dec.Lift(sig.Result, results)
}

// Close releases the instance's return area.
func (inst *Instance) Close() {
	inst.area.Close()
}

// Handler is a Go function serving a guest import. Parameters arrive
// decoded per the signature; the returned value is encoded back per the
// signature's result type.
type Handler func(ctx context.Context, params []any) (any, error)

// HostFunc adapts a Handler into a wazero host function implementing
// the boundary convention for sig: flat parameters are lifted (reading
// through the spill pointer when they exceed the flat limit), and the
// result is either returned in the single flat slot or stored through
// the trailing return-area pointer the guest passed. Handler errors and
// encode failures close the calling module, surfacing as a trap.
func HostFunc(sig Signature, h Handler) api.GoModuleFunction {
	return api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
		mem := Wrap(mod.Memory())

		var alloc membrane.Allocator
		if fa, err := NewAllocator(ctx, mod); err == nil {
			alloc = fa
		} else {
			alloc = NewBumpAllocator(mod.Memory())
		}

		dec := codec.NewDecoder(mem)
		params, err := dec.LiftParams(sig.Params, stack)
		if err != nil {
			trap(ctx, mod, sig.Name, err)
			return
		}

		result, err := h(ctx, params)
		if err != nil {
			trap(ctx, mod, sig.Name, err)
			return
		}
		if sig.Result == nil {
			return
		}

		enc := codec.NewEncoder(mem, alloc)
		if sig.Result.FlatCount() > codec.MaxFlatResults {
			retptr := uint32(stack[len(stack)-1])
			if err := enc.Store(sig.Result, result, retptr, nil); err != nil {
				trap(ctx, mod, sig.Name, err)
			}
			return
		}

		var flat []uint64
		if err := enc.Flatten(sig.Result, result, &flat, nil); err != nil {
			trap(ctx, mod, sig.Name, err)
			return
		}
		// Zero-size results (empty record, empty flags) flatten to
		// nothing and leave the stack untouched.
		if len(flat) > 0 {
			stack[0] = flat[0]
		}
	})
}

// FlatParamTypes returns the wazero value types for sig's lowered
// parameters, for registering a HostFunc with a module builder.
func FlatParamTypes(sig Signature) []api.ValueType {
	total := 0
	for _, p := range sig.Params {
		total += p.FlatCount()
	}
	var types []api.ValueType
	if total > codec.MaxFlatParams {
		types = []api.ValueType{api.ValueTypeI32} // spill pointer
	} else {
		types = make([]api.ValueType, 0, total+1)
		for _, p := range sig.Params {
			types = appendFlatTypes(types, p)
		}
	}
	if sig.Result != nil && sig.Result.FlatCount() > codec.MaxFlatResults {
		types = append(types, api.ValueTypeI32) // retptr
	}
	return types
}

// FlatResultTypes returns the wazero value types for sig's flat result.
func FlatResultTypes(sig Signature) []api.ValueType {
	if sig.Result == nil || sig.Result.FlatCount() > codec.MaxFlatResults {
		return nil
	}
	return appendFlatTypes(nil, sig.Result)
}

func appendFlatTypes(out []api.ValueType, t *schema.Type) []api.ValueType {
	for _, f := range t.Flat() {
		switch f {
		case schema.FlatI64:
			out = append(out, api.ValueTypeI64)
		case schema.FlatF32:
			out = append(out, api.ValueTypeF32)
		case schema.FlatF64:
			out = append(out, api.ValueTypeF64)
		default:
			out = append(out, api.ValueTypeI32)
		}
	}
	return out
}

func trap(ctx context.Context, mod api.Module, name string, err error) {
	Logger().Error("host handler failed",
		zap.String("name", name),
		zap.Error(err))
	_ = mod.CloseWithExitCode(ctx, 1)
}
