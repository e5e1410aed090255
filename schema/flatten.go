package schema

// Flat is the core scalar kind of one flattened slot.
type Flat uint8

const (
	FlatI32 Flat = iota
	FlatI64
	FlatF32
	FlatF64
)

var flatNames = [...]string{
	FlatI32: "i32",
	FlatI64: "i64",
	FlatF32: "f32",
	FlatF64: "f64",
}

func (f Flat) String() string {
	if int(f) < len(flatNames) {
		return flatNames[f]
	}
	return "unknown"
}

// joinFlat merges two slot kinds occupying the same position across variant
// cases: equal kinds stay, i32/f32 widen to i32, everything else to i64.
func joinFlat(a, b Flat) Flat {
	if a == b {
		return a
	}
	if (a == FlatI32 && b == FlatF32) || (a == FlatF32 && b == FlatI32) {
		return FlatI32
	}
	return FlatI64
}

// Flat returns the ordered flattened scalar shape of the type. The shape
// is fully determined by the descriptor: word count and per-word kind never
// depend on a runtime value. The returned slice must not be mutated.
func (t *Type) Flat() []Flat {
	t.flatOnce.Do(func() {
		t.flatShape = computeFlat(t)
	})
	return t.flatShape
}

// FlatCount returns the number of flattened scalar slots.
func (t *Type) FlatCount() int {
	return len(t.Flat())
}

func computeFlat(t *Type) []Flat {
	switch t.kind {
	case KindBool, KindU8, KindS8, KindU16, KindS16, KindU32, KindS32, KindChar, KindEnum:
		return []Flat{FlatI32}
	case KindFlags:
		if len(t.flags) == 0 {
			return nil
		}
		if len(t.flags) > 32 {
			return []Flat{FlatI32, FlatI32}
		}
		return []Flat{FlatI32}
	case KindU64, KindS64:
		return []Flat{FlatI64}
	case KindF32:
		return []Flat{FlatF32}
	case KindF64:
		return []Flat{FlatF64}
	case KindString, KindList:
		return []Flat{FlatI32, FlatI32}
	case KindRecord, KindTuple:
		var flat []Flat
		for _, f := range t.fields {
			flat = append(flat, f.Type.Flat()...)
		}
		return flat
	case KindVariant, KindOption, KindResult:
		return taggedFlat(t.Cases())
	default:
		return nil
	}
}

// taggedFlat is the tag slot followed by the positional join of every
// case's flattened shape. Only the slots of the active case are meaningful
// at runtime; a decoder must read the tag before touching the rest.
func taggedFlat(cases []VariantCase) []Flat {
	var payload []Flat
	for _, c := range cases {
		if c.Type == nil {
			continue
		}
		for i, f := range c.Type.Flat() {
			if i < len(payload) {
				payload[i] = joinFlat(payload[i], f)
			} else {
				payload = append(payload, f)
			}
		}
	}
	return append([]Flat{FlatI32}, payload...)
}
