package schema

import (
	"strconv"
	"strings"
	"sync"
)

// RecordField is one named field of a record descriptor.
type RecordField struct {
	Name string
	Type *Type
}

// VariantCase is one case of a variant descriptor. Type is nil for
// payload-less cases.
type VariantCase struct {
	Name string
	Type *Type
}

// Type is an immutable type descriptor. Build descriptors with the
// package-level constructors; a zero Type is not valid.
type Type struct {
	kind   Kind
	elem   *Type         // List, Option
	ok     *Type         // Result, may be nil
	errTyp *Type         // Result, may be nil
	fields []RecordField // Record, Tuple
	cases  []VariantCase // Variant, Enum (payload-less)
	flags  []string      // Flags

	layoutOnce sync.Once
	layout     layoutInfo
	flatOnce   sync.Once
	flatShape  []Flat
}

var (
	boolType   = &Type{kind: KindBool}
	u8Type     = &Type{kind: KindU8}
	s8Type     = &Type{kind: KindS8}
	u16Type    = &Type{kind: KindU16}
	s16Type    = &Type{kind: KindS16}
	u32Type    = &Type{kind: KindU32}
	s32Type    = &Type{kind: KindS32}
	u64Type    = &Type{kind: KindU64}
	s64Type    = &Type{kind: KindS64}
	f32Type    = &Type{kind: KindF32}
	f64Type    = &Type{kind: KindF64}
	charType   = &Type{kind: KindChar}
	stringType = &Type{kind: KindString}
)

func Bool() *Type   { return boolType }
func U8() *Type     { return u8Type }
func S8() *Type     { return s8Type }
func U16() *Type    { return u16Type }
func S16() *Type    { return s16Type }
func U32() *Type    { return u32Type }
func S32() *Type    { return s32Type }
func U64() *Type    { return u64Type }
func S64() *Type    { return s64Type }
func F32() *Type    { return f32Type }
func F64() *Type    { return f64Type }
func Char() *Type   { return charType }
func String() *Type { return stringType }

// List returns the descriptor for list<elem>.
func List(elem *Type) *Type {
	return &Type{kind: KindList, elem: elem}
}

// Option returns the descriptor for option<elem>, laid out as the
// two-case variant {none, some(elem)}.
func Option(elem *Type) *Type {
	return &Type{kind: KindOption, elem: elem}
}

// Result returns the descriptor for result<ok, err>, laid out as the
// two-case variant {ok, err}. Either side may be nil for a payload-less
// case.
func Result(ok, err *Type) *Type {
	return &Type{kind: KindResult, ok: ok, errTyp: err}
}

// Field builds a record field.
func Field(name string, t *Type) RecordField {
	return RecordField{Name: name, Type: t}
}

// Case builds a variant case. Pass a nil type for a payload-less case.
func Case(name string, t *Type) VariantCase {
	return VariantCase{Name: name, Type: t}
}

// Record returns a record descriptor with fields in declaration order.
func Record(fields ...RecordField) *Type {
	return &Type{kind: KindRecord, fields: append([]RecordField(nil), fields...)}
}

// Tuple returns a tuple descriptor. Tuples are records with positional
// field names.
func Tuple(types ...*Type) *Type {
	fields := make([]RecordField, len(types))
	for i, t := range types {
		fields[i] = RecordField{Name: strconv.Itoa(i), Type: t}
	}
	return &Type{kind: KindTuple, fields: fields}
}

// Variant returns a variant descriptor with cases in declaration order.
func Variant(cases ...VariantCase) *Type {
	return &Type{kind: KindVariant, cases: append([]VariantCase(nil), cases...)}
}

// Enum returns an enum descriptor: a bare discriminant over the named cases.
func Enum(names ...string) *Type {
	cases := make([]VariantCase, len(names))
	for i, n := range names {
		cases[i] = VariantCase{Name: n}
	}
	return &Type{kind: KindEnum, cases: cases}
}

// Flags returns a flags descriptor. At most 64 flag names are supported;
// the codec represents a flags value as a uint64 bitset.
func Flags(names ...string) *Type {
	if len(names) > 64 {
		panic("schema: flags descriptors support at most 64 names")
	}
	return &Type{kind: KindFlags, flags: append([]string(nil), names...)}
}

func (t *Type) Kind() Kind { return t.kind }

// Elem returns the element type of a list or option descriptor.
func (t *Type) Elem() *Type { return t.elem }

// OK returns the ok payload of a result descriptor, nil when payload-less.
func (t *Type) OK() *Type { return t.ok }

// Err returns the err payload of a result descriptor, nil when payload-less.
func (t *Type) Err() *Type { return t.errTyp }

// Fields returns the fields of a record or tuple descriptor.
// The returned slice must not be mutated.
func (t *Type) Fields() []RecordField { return t.fields }

// HasField reports whether a record or tuple declares the named field.
func (t *Type) HasField(name string) bool {
	for _, f := range t.fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Cases returns the declared cases of a variant or enum descriptor.
// Option and result descriptors report their synthetic two cases.
// The returned slice must not be mutated.
func (t *Type) Cases() []VariantCase {
	switch t.kind {
	case KindOption:
		return []VariantCase{{Name: "none"}, {Name: "some", Type: t.elem}}
	case KindResult:
		return []VariantCase{{Name: "ok", Type: t.ok}, {Name: "err", Type: t.errTyp}}
	default:
		return t.cases
	}
}

// CaseCount returns the number of discriminant values for tagged kinds.
func (t *Type) CaseCount() int {
	switch t.kind {
	case KindOption, KindResult:
		return 2
	default:
		return len(t.cases)
	}
}

// FlagNames returns the flag names of a flags descriptor.
func (t *Type) FlagNames() []string { return t.flags }

// Owns reports whether values of this type hold heap allocations
// (directly or through any nested field, case, or element).
func (t *Type) Owns() bool {
	switch t.kind {
	case KindString, KindList:
		return true
	case KindRecord, KindTuple:
		for _, f := range t.fields {
			if f.Type.Owns() {
				return true
			}
		}
		return false
	case KindOption:
		return t.elem.Owns()
	case KindResult:
		return (t.ok != nil && t.ok.Owns()) || (t.errTyp != nil && t.errTyp.Owns())
	case KindVariant:
		for _, c := range t.cases {
			if c.Type != nil && c.Type.Owns() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// String renders the descriptor in interface-definition notation.
func (t *Type) String() string {
	switch t.kind {
	case KindList:
		return "list<" + t.elem.String() + ">"
	case KindOption:
		return "option<" + t.elem.String() + ">"
	case KindResult:
		okStr, errStr := "_", "_"
		if t.ok != nil {
			okStr = t.ok.String()
		}
		if t.errTyp != nil {
			errStr = t.errTyp.String()
		}
		return "result<" + okStr + ", " + errStr + ">"
	case KindRecord:
		parts := make([]string, len(t.fields))
		for i, f := range t.fields {
			parts[i] = f.Name + ": " + f.Type.String()
		}
		return "record { " + strings.Join(parts, ", ") + " }"
	case KindTuple:
		parts := make([]string, len(t.fields))
		for i, f := range t.fields {
			parts[i] = f.Type.String()
		}
		return "tuple<" + strings.Join(parts, ", ") + ">"
	case KindVariant:
		parts := make([]string, len(t.cases))
		for i, c := range t.cases {
			if c.Type != nil {
				parts[i] = c.Name + "(" + c.Type.String() + ")"
			} else {
				parts[i] = c.Name
			}
		}
		return "variant { " + strings.Join(parts, ", ") + " }"
	case KindEnum:
		names := make([]string, len(t.cases))
		for i, c := range t.cases {
			names[i] = c.Name
		}
		return "enum { " + strings.Join(names, ", ") + " }"
	case KindFlags:
		return "flags { " + strings.Join(t.flags, ", ") + " }"
	default:
		return t.kind.String()
	}
}
