package codec

import (
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/membrane-wasm/membrane/errors"
	"github.com/membrane-wasm/membrane/schema"
)

// Decoder lifts canonical ABI data back into host values, either from
// flattened core scalars or from bytes in linear memory. Decoded values
// are host-owned copies by default: the decoder never allocates guest
// memory and never frees what it reads. Not safe for concurrent use.
type Decoder struct {
	mem      Memory
	zeroCopy bool
}

type DecoderOption func(*Decoder)

// WithZeroCopy makes byte-list loads return views aliasing the
// underlying memory instead of copies. Views are invalidated by any
// later guest execution, allocation, or release; callers take the
// borrow for the duration of one host-side read.
func WithZeroCopy() DecoderOption {
	return func(d *Decoder) { d.zeroCopy = true }
}

func NewDecoder(mem Memory, opts ...DecoderOption) *Decoder {
	d := &Decoder{mem: mem}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load reads the memory-resident value of type t at addr.
func (d *Decoder) Load(t *schema.Type, addr uint32) (any, error) {
	return d.load(t, addr, nil)
}

// Lift reconstructs a value of type t from its flattened scalars.
// Exactly t.FlatCount() slots are consumed; the slots of inactive variant
// cases are skipped without being interpreted.
func (d *Decoder) Lift(t *schema.Type, flat []uint64) (any, error) {
	if len(flat) < t.FlatCount() {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("insufficient flat values: need %d, have %d", t.FlatCount(), len(flat)).
			Build()
	}
	return d.lift(t, flat, nil)
}

// LiftParams reconstructs a call's parameter list from its flat
// arguments, reading through the spill pointer when the combined shape
// exceeds MaxFlatParams.
func (d *Decoder) LiftParams(types []*schema.Type, flat []uint64) ([]any, error) {
	total := 0
	for _, t := range types {
		total += t.FlatCount()
	}

	if total > MaxFlatParams {
		if len(flat) < 1 {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Detail("missing spill pointer argument").
				Build()
		}
		tup := schema.Tuple(types...)
		v, err := d.load(tup, uint32(flat[0]), []string{"params"})
		if err != nil {
			return nil, err
		}
		return v.([]any), nil
	}

	if len(flat) < total {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("insufficient flat arguments: need %d, have %d", total, len(flat)).
			Build()
	}

	values := make([]any, len(types))
	offset := 0
	for i, t := range types {
		v, err := d.lift(t, flat[offset:offset+t.FlatCount()], []string{"param[" + strconv.Itoa(i) + "]"})
		if err != nil {
			return nil, err
		}
		values[i] = v
		offset += t.FlatCount()
	}
	return values, nil
}

func (d *Decoder) load(t *schema.Type, addr uint32, path []string) (any, error) {
	switch t.Kind() {
	case schema.KindBool:
		v, err := d.mem.ReadU8(addr)
		if err != nil {
			return nil, d.oob(err, path)
		}
		return v != 0, nil

	case schema.KindU8:
		v, err := d.mem.ReadU8(addr)
		if err != nil {
			return nil, d.oob(err, path)
		}
		return v, nil

	case schema.KindS8:
		v, err := d.mem.ReadU8(addr)
		if err != nil {
			return nil, d.oob(err, path)
		}
		return int8(v), nil

	case schema.KindU16:
		v, err := d.mem.ReadU16(addr)
		if err != nil {
			return nil, d.oob(err, path)
		}
		return v, nil

	case schema.KindS16:
		v, err := d.mem.ReadU16(addr)
		if err != nil {
			return nil, d.oob(err, path)
		}
		return int16(v), nil

	case schema.KindU32:
		v, err := d.mem.ReadU32(addr)
		if err != nil {
			return nil, d.oob(err, path)
		}
		return v, nil

	case schema.KindS32:
		v, err := d.mem.ReadU32(addr)
		if err != nil {
			return nil, d.oob(err, path)
		}
		return int32(v), nil

	case schema.KindU64:
		v, err := d.mem.ReadU64(addr)
		if err != nil {
			return nil, d.oob(err, path)
		}
		return v, nil

	case schema.KindS64:
		v, err := d.mem.ReadU64(addr)
		if err != nil {
			return nil, d.oob(err, path)
		}
		return int64(v), nil

	case schema.KindF32:
		v, err := d.mem.ReadU32(addr)
		if err != nil {
			return nil, d.oob(err, path)
		}
		return math.Float32frombits(v), nil

	case schema.KindF64:
		v, err := d.mem.ReadU64(addr)
		if err != nil {
			return nil, d.oob(err, path)
		}
		return math.Float64frombits(v), nil

	case schema.KindChar:
		v, err := d.mem.ReadU32(addr)
		if err != nil {
			return nil, d.oob(err, path)
		}
		r := rune(v)
		if !validChar(r) {
			return nil, errors.InvalidData(errors.PhaseDecode, path,
				"invalid Unicode scalar value "+strconv.FormatUint(uint64(v), 10))
		}
		return r, nil

	case schema.KindString:
		ptr, length, err := d.readPair(addr, path)
		if err != nil {
			return nil, err
		}
		return d.loadString(ptr, length, path)

	case schema.KindList:
		ptr, length, err := d.readPair(addr, path)
		if err != nil {
			return nil, err
		}
		return d.loadList(t.Elem(), ptr, length, path)

	case schema.KindRecord:
		m := make(map[string]any, len(t.Fields()))
		for i, f := range t.Fields() {
			fieldPath := append(append([]string{}, path...), f.Name)
			v, err := d.load(f.Type, addr+t.FieldOffset(i), fieldPath)
			if err != nil {
				return nil, err
			}
			m[f.Name] = v
		}
		return m, nil

	case schema.KindTuple:
		elems := make([]any, len(t.Fields()))
		for i, f := range t.Fields() {
			elemPath := append(append([]string{}, path...), "["+strconv.Itoa(i)+"]")
			v, err := d.load(f.Type, addr+t.FieldOffset(i), elemPath)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return elems, nil

	case schema.KindVariant, schema.KindOption, schema.KindResult:
		tag, err := d.readTag(addr, t.TagSize(), path)
		if err != nil {
			return nil, err
		}
		cases := t.Cases()
		if int(tag) >= len(cases) {
			return nil, errors.InvalidDiscriminant(errors.PhaseDecode, path, tag, uint32(len(cases)-1))
		}
		// Only the active case's payload bytes are meaningful; nothing
		// else in the payload area is touched.
		var payload any
		if pt := cases[tag].Type; pt != nil {
			casePath := append(append([]string{}, path...), cases[tag].Name)
			payload, err = d.load(pt, addr+t.PayloadOffset(), casePath)
			if err != nil {
				return nil, err
			}
		}
		return wrapTagged(t, tag, payload), nil

	case schema.KindEnum:
		tag, err := d.readTag(addr, t.TagSize(), path)
		if err != nil {
			return nil, err
		}
		if int(tag) >= t.CaseCount() {
			return nil, errors.InvalidDiscriminant(errors.PhaseDecode, path, tag, uint32(t.CaseCount()-1))
		}
		return tag, nil

	case schema.KindFlags:
		var bits uint64
		switch t.Size() {
		case 0:
		case 1:
			v, err := d.mem.ReadU8(addr)
			if err != nil {
				return nil, d.oob(err, path)
			}
			bits = uint64(v)
		case 2:
			v, err := d.mem.ReadU16(addr)
			if err != nil {
				return nil, d.oob(err, path)
			}
			bits = uint64(v)
		case 4:
			v, err := d.mem.ReadU32(addr)
			if err != nil {
				return nil, d.oob(err, path)
			}
			bits = uint64(v)
		default:
			v, err := d.mem.ReadU64(addr)
			if err != nil {
				return nil, d.oob(err, path)
			}
			bits = v
		}
		return bits, nil

	default:
		return nil, errors.New(errors.PhaseDecode, errors.KindUnsupported).
			Path(path...).
			Detail("cannot decode kind %s", t.Kind()).
			Build()
	}
}

func (d *Decoder) lift(t *schema.Type, flat []uint64, path []string) (any, error) {
	switch t.Kind() {
	case schema.KindBool:
		return flat[0] != 0, nil
	case schema.KindU8:
		return uint8(flat[0]), nil
	case schema.KindS8:
		return int8(flat[0]), nil
	case schema.KindU16:
		return uint16(flat[0]), nil
	case schema.KindS16:
		return int16(flat[0]), nil
	case schema.KindU32:
		return uint32(flat[0]), nil
	case schema.KindS32:
		return int32(uint32(flat[0])), nil
	case schema.KindU64:
		return flat[0], nil
	case schema.KindS64:
		return int64(flat[0]), nil
	case schema.KindF32:
		return math.Float32frombits(uint32(flat[0])), nil
	case schema.KindF64:
		return math.Float64frombits(flat[0]), nil

	case schema.KindChar:
		r := rune(uint32(flat[0]))
		if !validChar(r) {
			return nil, errors.InvalidData(errors.PhaseDecode, path,
				"invalid Unicode scalar value "+strconv.FormatUint(flat[0], 10))
		}
		return r, nil

	case schema.KindString:
		return d.loadString(uint32(flat[0]), uint32(flat[1]), path)

	case schema.KindList:
		return d.loadList(t.Elem(), uint32(flat[0]), uint32(flat[1]), path)

	case schema.KindRecord:
		m := make(map[string]any, len(t.Fields()))
		offset := 0
		for _, f := range t.Fields() {
			fieldPath := append(append([]string{}, path...), f.Name)
			v, err := d.lift(f.Type, flat[offset:offset+f.Type.FlatCount()], fieldPath)
			if err != nil {
				return nil, err
			}
			m[f.Name] = v
			offset += f.Type.FlatCount()
		}
		return m, nil

	case schema.KindTuple:
		elems := make([]any, len(t.Fields()))
		offset := 0
		for i, f := range t.Fields() {
			elemPath := append(append([]string{}, path...), "["+strconv.Itoa(i)+"]")
			v, err := d.lift(f.Type, flat[offset:offset+f.Type.FlatCount()], elemPath)
			if err != nil {
				return nil, err
			}
			elems[i] = v
			offset += f.Type.FlatCount()
		}
		return elems, nil

	case schema.KindVariant, schema.KindOption, schema.KindResult:
		tag := uint32(flat[0])
		cases := t.Cases()
		if int(tag) >= len(cases) {
			return nil, errors.InvalidDiscriminant(errors.PhaseDecode, path, tag, uint32(len(cases)-1))
		}
		var payload any
		if pt := cases[tag].Type; pt != nil {
			casePath := append(append([]string{}, path...), cases[tag].Name)
			v, err := d.lift(pt, flat[1:1+pt.FlatCount()], casePath)
			if err != nil {
				return nil, err
			}
			payload = v
		}
		return wrapTagged(t, tag, payload), nil

	case schema.KindEnum:
		tag := uint32(flat[0])
		if int(tag) >= t.CaseCount() {
			return nil, errors.InvalidDiscriminant(errors.PhaseDecode, path, tag, uint32(t.CaseCount()-1))
		}
		return tag, nil

	case schema.KindFlags:
		switch t.FlatCount() {
		case 0:
			return uint64(0), nil
		case 2:
			return flat[0]&0xffffffff | flat[1]<<32, nil
		}
		return flat[0], nil

	default:
		return nil, errors.New(errors.PhaseDecode, errors.KindUnsupported).
			Path(path...).
			Detail("cannot lift kind %s", t.Kind()).
			Build()
	}
}

func (d *Decoder) loadString(ptr, length uint32, path []string) (string, error) {
	if length == 0 {
		return "", nil
	}
	if length > MaxStringSize {
		return "", errors.New(errors.PhaseDecode, errors.KindOverflow).
			Path(path...).
			Detail("string length %d exceeds limit", length).
			Build()
	}
	data, err := d.mem.Read(ptr, length)
	if err != nil {
		return "", d.oob(err, path)
	}
	if !utf8.Valid(data) {
		return "", errors.InvalidUTF8(errors.PhaseDecode, path, data)
	}
	return string(data), nil
}

func (d *Decoder) loadList(elem *schema.Type, ptr, length uint32, path []string) (any, error) {
	if length > MaxListLength {
		return nil, errors.New(errors.PhaseDecode, errors.KindOverflow).
			Path(path...).
			Detail("list length %d exceeds limit", length).
			Build()
	}

	// typed slices for scalar elements
	switch elem.Kind() {
	case schema.KindU8:
		if length == 0 {
			return []byte{}, nil
		}
		data, err := d.mem.Read(ptr, length)
		if err != nil {
			return nil, d.oob(err, path)
		}
		if d.zeroCopy {
			return data, nil
		}
		out := make([]byte, length)
		copy(out, data)
		return out, nil
	case schema.KindBool:
		return loadScalarList(d, elem, ptr, length, path, func(v any) bool { return v.(bool) })
	case schema.KindS8:
		return loadScalarList(d, elem, ptr, length, path, func(v any) int8 { return v.(int8) })
	case schema.KindU16:
		return loadScalarList(d, elem, ptr, length, path, func(v any) uint16 { return v.(uint16) })
	case schema.KindS16:
		return loadScalarList(d, elem, ptr, length, path, func(v any) int16 { return v.(int16) })
	case schema.KindU32:
		return loadScalarList(d, elem, ptr, length, path, func(v any) uint32 { return v.(uint32) })
	case schema.KindS32:
		return loadScalarList(d, elem, ptr, length, path, func(v any) int32 { return v.(int32) })
	case schema.KindU64:
		return loadScalarList(d, elem, ptr, length, path, func(v any) uint64 { return v.(uint64) })
	case schema.KindS64:
		return loadScalarList(d, elem, ptr, length, path, func(v any) int64 { return v.(int64) })
	case schema.KindF32:
		return loadScalarList(d, elem, ptr, length, path, func(v any) float32 { return v.(float32) })
	case schema.KindF64:
		return loadScalarList(d, elem, ptr, length, path, func(v any) float64 { return v.(float64) })
	case schema.KindString:
		return loadScalarList(d, elem, ptr, length, path, func(v any) string { return v.(string) })
	}

	out := make([]any, length)
	stride := elem.Size()
	for i := uint32(0); i < length; i++ {
		elemPath := append(append([]string{}, path...), "["+strconv.FormatUint(uint64(i), 10)+"]")
		v, err := d.load(elem, ptr+i*stride, elemPath)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func loadScalarList[T any](d *Decoder, elem *schema.Type, ptr, length uint32, path []string, conv func(any) T) ([]T, error) {
	out := make([]T, length)
	stride := elem.Size()
	for i := uint32(0); i < length; i++ {
		v, err := d.load(elem, ptr+i*stride, path)
		if err != nil {
			return nil, err
		}
		out[i] = conv(v)
	}
	return out, nil
}

func (d *Decoder) readPair(addr uint32, path []string) (uint32, uint32, error) {
	ptr, err := d.mem.ReadU32(addr)
	if err != nil {
		return 0, 0, d.oob(err, path)
	}
	length, err := d.mem.ReadU32(addr + 4)
	if err != nil {
		return 0, 0, d.oob(err, path)
	}
	return ptr, length, nil
}

func (d *Decoder) readTag(addr, tagSize uint32, path []string) (uint32, error) {
	switch tagSize {
	case 1:
		v, err := d.mem.ReadU8(addr)
		if err != nil {
			return 0, d.oob(err, path)
		}
		return uint32(v), nil
	case 2:
		v, err := d.mem.ReadU16(addr)
		if err != nil {
			return 0, d.oob(err, path)
		}
		return uint32(v), nil
	default:
		v, err := d.mem.ReadU32(addr)
		if err != nil {
			return 0, d.oob(err, path)
		}
		return v, nil
	}
}

func (d *Decoder) oob(cause error, path []string) error {
	return errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
		Path(path...).
		Cause(cause).
		Build()
}

// wrapTagged picks the host wrapper for a tagged value.
func wrapTagged(t *schema.Type, tag uint32, payload any) any {
	switch t.Kind() {
	case schema.KindOption:
		if tag == 0 {
			return None()
		}
		return Some(payload)
	case schema.KindResult:
		if tag == 0 {
			return Ok(payload)
		}
		return Err(payload)
	default:
		return Variant{Tag: tag, Value: payload}
	}
}
