package codec

import (
	"math"
	"reflect"
	"strconv"
	"unicode/utf8"

	"fortio.org/safecast"

	"github.com/membrane-wasm/membrane/errors"
	"github.com/membrane-wasm/membrane/schema"
)

// Encoder lowers host values into canonical ABI form: flattened core
// scalars for call arguments, or bytes in linear memory. Not safe for
// concurrent use.
type Encoder struct {
	mem   Memory
	alloc Allocator
}

func NewEncoder(mem Memory, alloc Allocator) *Encoder {
	return &Encoder{mem: mem, alloc: alloc}
}

// Encode allocates a fresh guest block for t, stores v into it, and
// returns the owning handle. On failure every buffer allocated along the
// way is returned to the allocator.
func (e *Encoder) Encode(t *schema.Type, v any) (*Owned, error) {
	addr, err := e.allocBuf(t.Size(), t.Align(), nil, nil)
	if err != nil {
		return nil, err
	}

	track := NewAllocationList()
	if err := e.store(t, v, addr, track, nil); err != nil {
		track.FreeAndRelease(e.alloc)
		e.alloc.Free(addr, t.Size(), t.Align())
		return nil, err
	}
	// The buffers now belong to the value itself; Owned.Release finds
	// them again by walking memory.
	track.Release()

	return &Owned{typ: t, addr: addr, mem: e.mem, alloc: e.alloc}, nil
}

// Store writes v at addr following t's layout. Buffers allocated for
// nested strings and lists are recorded in track when it is non-nil.
func (e *Encoder) Store(t *schema.Type, v any, addr uint32, track *AllocationList) error {
	return e.store(t, v, addr, track, nil)
}

// Flatten appends v's flattened scalar representation to flat. The slot
// count appended is always exactly t.FlatCount(): slots belonging to
// inactive variant cases are zero-filled padding that a decoder must
// never interpret.
func (e *Encoder) Flatten(t *schema.Type, v any, flat *[]uint64, track *AllocationList) error {
	return e.flatten(t, v, flat, track, nil)
}

// EncodeParams flattens a call's parameter list. When the combined shape
// exceeds MaxFlatParams slots, the parameters spill into a single
// caller-allocated tuple and the result is that buffer's address as one
// i32 slot.
func (e *Encoder) EncodeParams(types []*schema.Type, values []any, track *AllocationList) ([]uint64, error) {
	if len(types) != len(values) {
		return nil, errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Detail("parameter count mismatch: expected %d, got %d", len(types), len(values)).
			Build()
	}

	total := 0
	for _, t := range types {
		total += t.FlatCount()
	}

	if total > MaxFlatParams {
		tup := schema.Tuple(types...)
		addr, err := e.allocBuf(tup.Size(), tup.Align(), track, nil)
		if err != nil {
			return nil, err
		}
		if err := e.store(tup, []any(values), addr, track, nil); err != nil {
			return nil, err
		}
		return []uint64{uint64(addr)}, nil
	}

	buf := getBuf64()
	defer putBuf64(buf)

	for i, t := range types {
		path := []string{"param[" + strconv.Itoa(i) + "]"}
		if err := e.flatten(t, values[i], buf, track, path); err != nil {
			return nil, err
		}
	}

	flat := make([]uint64, len(*buf))
	copy(flat, *buf)
	return flat, nil
}

func (e *Encoder) store(t *schema.Type, v any, addr uint32, track *AllocationList, path []string) error {
	switch t.Kind() {
	case schema.KindBool:
		b, ok := v.(bool)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "bool")
		}
		var raw uint8
		if b {
			raw = 1
		}
		return e.mem.WriteU8(addr, raw)

	case schema.KindU8, schema.KindU16, schema.KindU32, schema.KindU64:
		return e.storeUnsigned(t, v, addr, path)

	case schema.KindS8, schema.KindS16, schema.KindS32, schema.KindS64:
		return e.storeSigned(t, v, addr, path)

	case schema.KindF32:
		f, ok := asFloat64(v)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "f32")
		}
		return e.mem.WriteU32(addr, canonicalizeF32(math.Float32bits(float32(f))))

	case schema.KindF64:
		f, ok := asFloat64(v)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "f64")
		}
		return e.mem.WriteU64(addr, canonicalizeF64(math.Float64bits(f)))

	case schema.KindChar:
		r, err := charOf(v, path)
		if err != nil {
			return err
		}
		return e.mem.WriteU32(addr, uint32(r))

	case schema.KindString:
		ptr, length, err := e.lowerString(v, track, path)
		if err != nil {
			return err
		}
		return e.writePair(addr, ptr, length)

	case schema.KindList:
		ptr, length, err := e.lowerList(t, v, track, path)
		if err != nil {
			return err
		}
		return e.writePair(addr, ptr, length)

	case schema.KindRecord:
		return e.storeRecord(t, v, addr, track, path)

	case schema.KindTuple:
		return e.storeTuple(t, v, addr, track, path)

	case schema.KindVariant, schema.KindOption, schema.KindResult:
		tag, payload, payloadType, err := taggedOf(t, v, path)
		if err != nil {
			return err
		}
		if err := e.writeTag(addr, t.TagSize(), tag); err != nil {
			return err
		}
		if payloadType == nil {
			return nil
		}
		casePath := append(append([]string{}, path...), t.Cases()[tag].Name)
		return e.store(payloadType, payload, addr+t.PayloadOffset(), track, casePath)

	case schema.KindEnum:
		tag, err := enumOf(t, v, path)
		if err != nil {
			return err
		}
		return e.writeTag(addr, t.TagSize(), tag)

	case schema.KindFlags:
		bits, err := flagsOf(t, v, path)
		if err != nil {
			return err
		}
		switch t.Size() {
		case 0:
			// no labels, no storage
			return nil
		case 1:
			return e.mem.WriteU8(addr, uint8(bits))
		case 2:
			return e.mem.WriteU16(addr, uint16(bits))
		case 4:
			return e.mem.WriteU32(addr, uint32(bits))
		default:
			// two u32 words, low bits first; byte-identical to LE u64
			return e.mem.WriteU64(addr, bits)
		}

	default:
		return errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Path(path...).
			Detail("cannot encode kind %s", t.Kind()).
			Build()
	}
}

func (e *Encoder) storeUnsigned(t *schema.Type, v any, addr uint32, path []string) error {
	u, ok := asUint64(v)
	if !ok {
		return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), t.Kind().String())
	}
	bits := int(t.Size()) * 8
	if !uintInRange(u, bits) {
		return errors.Overflow(errors.PhaseEncode, path, v, t.Kind().String())
	}
	switch t.Size() {
	case 1:
		return e.mem.WriteU8(addr, uint8(u))
	case 2:
		return e.mem.WriteU16(addr, uint16(u))
	case 4:
		return e.mem.WriteU32(addr, uint32(u))
	default:
		return e.mem.WriteU64(addr, u)
	}
}

func (e *Encoder) storeSigned(t *schema.Type, v any, addr uint32, path []string) error {
	s, ok := asInt64(v)
	if !ok {
		return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), t.Kind().String())
	}
	bits := int(t.Size()) * 8
	if !intInRange(s, bits) {
		return errors.Overflow(errors.PhaseEncode, path, v, t.Kind().String())
	}
	switch t.Size() {
	case 1:
		return e.mem.WriteU8(addr, uint8(int8(s)))
	case 2:
		return e.mem.WriteU16(addr, uint16(int16(s)))
	case 4:
		return e.mem.WriteU32(addr, uint32(int32(s)))
	default:
		return e.mem.WriteU64(addr, uint64(s))
	}
}

func (e *Encoder) storeRecord(t *schema.Type, v any, addr uint32, track *AllocationList, path []string) error {
	m, ok := v.(map[string]any)
	if !ok {
		return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "record")
	}
	for i, f := range t.Fields() {
		fv, found := m[f.Name]
		if !found {
			return errors.FieldMissing(errors.PhaseEncode, path, f.Name)
		}
		fieldPath := append(append([]string{}, path...), f.Name)
		if err := e.store(f.Type, fv, addr+t.FieldOffset(i), track, fieldPath); err != nil {
			return err
		}
	}
	// surplus keys are almost always typos of a real field
	if len(m) > len(t.Fields()) {
		for name := range m {
			if !t.HasField(name) {
				return errors.New(errors.PhaseEncode, errors.KindFieldUnknown).
					Path(path...).
					Detail("record has no field %q", name).
					Build()
			}
		}
	}
	return nil
}

func (e *Encoder) storeTuple(t *schema.Type, v any, addr uint32, track *AllocationList, path []string) error {
	elems, ok := v.([]any)
	if !ok {
		return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "tuple")
	}
	fields := t.Fields()
	if len(elems) != len(fields) {
		return errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Path(path...).
			Detail("tuple arity mismatch: expected %d, got %d", len(fields), len(elems)).
			Build()
	}
	for i, f := range fields {
		elemPath := append(append([]string{}, path...), "["+strconv.Itoa(i)+"]")
		if err := e.store(f.Type, elems[i], addr+t.FieldOffset(i), track, elemPath); err != nil {
			return err
		}
	}
	return nil
}

// lowerString allocates a guest buffer for the string's bytes and returns
// the (ptr, len) pair. Zero-length strings allocate nothing: the pointer
// is the allocator's zero-size sentinel.
func (e *Encoder) lowerString(v any, track *AllocationList, path []string) (uint32, uint32, error) {
	var data []byte
	switch s := v.(type) {
	case string:
		data = []byte(s)
	case []byte:
		data = s
	default:
		return 0, 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "string")
	}
	if !utf8.Valid(data) {
		return 0, 0, errors.InvalidUTF8(errors.PhaseEncode, path, data)
	}
	length, err := safecast.Conv[uint32](len(data))
	if err != nil || length > MaxStringSize {
		return 0, 0, errors.Overflow(errors.PhaseEncode, path, len(data), "string")
	}

	ptr, err := e.allocBuf(length, 1, track, path)
	if err != nil {
		return 0, 0, err
	}
	if length > 0 {
		if err := e.mem.Write(ptr, data); err != nil {
			return 0, 0, errors.Wrap(errors.PhaseEncode, errors.KindOutOfBounds, err, "writing string data")
		}
	}
	return ptr, length, nil
}

// lowerList allocates the element buffer and encodes every element into
// it at stride t.Elem().Size().
func (e *Encoder) lowerList(t *schema.Type, v any, track *AllocationList, path []string) (uint32, uint32, error) {
	elem := t.Elem()

	// fast path: list<u8> from a byte slice
	if elem.Kind() == schema.KindU8 {
		if data, ok := v.([]byte); ok {
			ptr, err := e.allocBuf(uint32(len(data)), 1, track, path)
			if err != nil {
				return 0, 0, err
			}
			if len(data) > 0 {
				if err := e.mem.Write(ptr, data); err != nil {
					return 0, 0, errors.Wrap(errors.PhaseEncode, errors.KindOutOfBounds, err, "writing byte list")
				}
			}
			return ptr, uint32(len(data)), nil
		}
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return 0, 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), t.String())
	}

	n, err := safecast.Conv[uint32](rv.Len())
	if err != nil || n > MaxListLength {
		return 0, 0, errors.Overflow(errors.PhaseEncode, path, rv.Len(), "list")
	}

	stride := elem.Size()
	size, ok := safeMul(n, stride)
	if !ok {
		return 0, 0, errors.Overflow(errors.PhaseEncode, path, n, "list")
	}

	ptr, err := e.allocBuf(size, elem.Align(), track, path)
	if err != nil {
		return 0, 0, err
	}
	for i := 0; i < rv.Len(); i++ {
		elemPath := append(append([]string{}, path...), "["+strconv.Itoa(i)+"]")
		if err := e.store(elem, rv.Index(i).Interface(), ptr+uint32(i)*stride, track, elemPath); err != nil {
			return 0, 0, err
		}
	}
	return ptr, n, nil
}

func (e *Encoder) flatten(t *schema.Type, v any, flat *[]uint64, track *AllocationList, path []string) error {
	switch t.Kind() {
	case schema.KindBool:
		b, ok := v.(bool)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "bool")
		}
		var slot uint64
		if b {
			slot = 1
		}
		*flat = append(*flat, slot)
		return nil

	case schema.KindU8, schema.KindU16, schema.KindU32, schema.KindU64:
		u, ok := asUint64(v)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), t.Kind().String())
		}
		if !uintInRange(u, int(t.Size())*8) {
			return errors.Overflow(errors.PhaseEncode, path, v, t.Kind().String())
		}
		*flat = append(*flat, u)
		return nil

	case schema.KindS8, schema.KindS16, schema.KindS32, schema.KindS64:
		s, ok := asInt64(v)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), t.Kind().String())
		}
		if !intInRange(s, int(t.Size())*8) {
			return errors.Overflow(errors.PhaseEncode, path, v, t.Kind().String())
		}
		if t.Size() <= 4 {
			// i32 slot convention: the 32-bit two's complement image,
			// zero-extended to 64 bits
			*flat = append(*flat, uint64(uint32(int32(s))))
		} else {
			*flat = append(*flat, uint64(s))
		}
		return nil

	case schema.KindF32:
		f, ok := asFloat64(v)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "f32")
		}
		*flat = append(*flat, uint64(canonicalizeF32(math.Float32bits(float32(f)))))
		return nil

	case schema.KindF64:
		f, ok := asFloat64(v)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "f64")
		}
		*flat = append(*flat, canonicalizeF64(math.Float64bits(f)))
		return nil

	case schema.KindChar:
		r, err := charOf(v, path)
		if err != nil {
			return err
		}
		*flat = append(*flat, uint64(uint32(r)))
		return nil

	case schema.KindString:
		ptr, length, err := e.lowerString(v, track, path)
		if err != nil {
			return err
		}
		*flat = append(*flat, uint64(ptr), uint64(length))
		return nil

	case schema.KindList:
		ptr, length, err := e.lowerList(t, v, track, path)
		if err != nil {
			return err
		}
		*flat = append(*flat, uint64(ptr), uint64(length))
		return nil

	case schema.KindRecord:
		m, ok := v.(map[string]any)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "record")
		}
		for _, f := range t.Fields() {
			fv, found := m[f.Name]
			if !found {
				return errors.FieldMissing(errors.PhaseEncode, path, f.Name)
			}
			fieldPath := append(append([]string{}, path...), f.Name)
			if err := e.flatten(f.Type, fv, flat, track, fieldPath); err != nil {
				return err
			}
		}
		return nil

	case schema.KindTuple:
		elems, ok := v.([]any)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "tuple")
		}
		fields := t.Fields()
		if len(elems) != len(fields) {
			return errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Path(path...).
				Detail("tuple arity mismatch: expected %d, got %d", len(fields), len(elems)).
				Build()
		}
		for i, f := range fields {
			elemPath := append(append([]string{}, path...), "["+strconv.Itoa(i)+"]")
			if err := e.flatten(f.Type, elems[i], flat, track, elemPath); err != nil {
				return err
			}
		}
		return nil

	case schema.KindVariant, schema.KindOption, schema.KindResult:
		tag, payload, payloadType, err := taggedOf(t, v, path)
		if err != nil {
			return err
		}
		start := len(*flat)
		*flat = append(*flat, uint64(tag))
		if payloadType != nil {
			casePath := append(append([]string{}, path...), t.Cases()[tag].Name)
			if err := e.flatten(payloadType, payload, flat, track, casePath); err != nil {
				return err
			}
		}
		// zero-fill the slots of wider inactive cases
		for len(*flat) < start+t.FlatCount() {
			*flat = append(*flat, 0)
		}
		return nil

	case schema.KindEnum:
		tag, err := enumOf(t, v, path)
		if err != nil {
			return err
		}
		*flat = append(*flat, uint64(tag))
		return nil

	case schema.KindFlags:
		bits, err := flagsOf(t, v, path)
		if err != nil {
			return err
		}
		switch t.FlatCount() {
		case 0:
		case 2:
			*flat = append(*flat, bits&0xffffffff, bits>>32)
		default:
			*flat = append(*flat, bits)
		}
		return nil

	default:
		return errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Path(path...).
			Detail("cannot flatten kind %s", t.Kind()).
			Build()
	}
}

func (e *Encoder) allocBuf(size, align uint32, track *AllocationList, path []string) (uint32, error) {
	if size > MaxAlloc {
		return 0, errors.Overflow(errors.PhaseEncode, path, size, "allocation")
	}
	ptr, err := e.alloc.Realloc(0, 0, align, size)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseEncode, errors.KindAllocation, err,
			"guest allocation failed")
	}
	if track != nil && size > 0 {
		track.Add(ptr, size, align)
	}
	return ptr, nil
}

func (e *Encoder) writePair(addr, ptr, length uint32) error {
	if err := e.mem.WriteU32(addr, ptr); err != nil {
		return err
	}
	return e.mem.WriteU32(addr+4, length)
}

func (e *Encoder) writeTag(addr, tagSize, tag uint32) error {
	switch tagSize {
	case 1:
		return e.mem.WriteU8(addr, uint8(tag))
	case 2:
		return e.mem.WriteU16(addr, uint16(tag))
	default:
		return e.mem.WriteU32(addr, tag)
	}
}

// charOf validates a Unicode scalar value.
func charOf(v any, path []string) (rune, error) {
	s, ok := asInt64(v)
	if !ok {
		return 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "char")
	}
	r := rune(s)
	if int64(r) != s || !validChar(r) {
		return 0, errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Path(path...).
			Detail("invalid Unicode scalar value %#x", s).
			Build()
	}
	return r, nil
}

// taggedOf resolves a variant/option/result host value into the
// discriminant, the payload value, and the payload type (nil when the
// active case carries none).
func taggedOf(t *schema.Type, v any, path []string) (uint32, any, *schema.Type, error) {
	cases := t.Cases()

	var tag uint32
	var payload any

	switch t.Kind() {
	case schema.KindOption:
		switch ov := v.(type) {
		case Option:
			if ov.Present {
				tag, payload = 1, ov.Value
			}
		case nil:
			// none
		default:
			tag, payload = 1, v
		}

	case schema.KindResult:
		rv, ok := v.(Result)
		if !ok {
			return 0, nil, nil, errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "result")
		}
		if rv.IsErr {
			tag = 1
		}
		payload = rv.Value

	default:
		vv, ok := v.(Variant)
		if !ok {
			return 0, nil, nil, errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "variant")
		}
		if int(vv.Tag) >= len(cases) {
			return 0, nil, nil, errors.InvalidDiscriminant(errors.PhaseEncode, path, vv.Tag, uint32(len(cases)-1))
		}
		tag, payload = vv.Tag, vv.Value
	}

	return tag, payload, cases[tag].Type, nil
}

// enumOf accepts a case index or a case name.
func enumOf(t *schema.Type, v any, path []string) (uint32, error) {
	if name, ok := v.(string); ok {
		for i, c := range t.Cases() {
			if c.Name == name {
				return uint32(i), nil
			}
		}
		return 0, errors.New(errors.PhaseEncode, errors.KindInvalidDiscriminant).
			Path(path...).
			Detail("unknown enum case %q", name).
			Build()
	}
	u, ok := asUint64(v)
	if !ok {
		return 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "enum")
	}
	if u >= uint64(t.CaseCount()) {
		return 0, errors.InvalidDiscriminant(errors.PhaseEncode, path, uint32(u), uint32(t.CaseCount()-1))
	}
	return uint32(u), nil
}

// flagsOf accepts a uint64 bitset or a slice of flag names.
func flagsOf(t *schema.Type, v any, path []string) (uint64, error) {
	names := t.FlagNames()

	if set, ok := v.([]string); ok {
		var bits uint64
	outer:
		for _, want := range set {
			for i, n := range names {
				if n == want {
					bits |= 1 << i
					continue outer
				}
			}
			return 0, errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Path(path...).
				Detail("unknown flag %q", want).
				Build()
		}
		return bits, nil
	}

	bits, ok := asUint64(v)
	if !ok {
		return 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "flags")
	}
	if len(names) < 64 && bits>>len(names) != 0 {
		return 0, errors.Overflow(errors.PhaseEncode, path, bits, "flags")
	}
	return bits, nil
}
