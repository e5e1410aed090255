package schema

// layoutInfo is the cached result of the layout computation.
type layoutInfo struct {
	size       uint32
	align      uint32
	fieldOffs  []uint32 // record/tuple only
	tagSize    uint32   // tagged kinds only
	payloadOff uint32   // tagged kinds with payloads only
}

// AlignTo rounds offset up to the next multiple of align (a power of two).
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// DiscriminantSize returns the width in bytes of the smallest unsigned
// integer able to enumerate numCases cases: 1 byte up to 256 cases,
// 2 up to 65536, 4 beyond.
func DiscriminantSize(numCases int) uint32 {
	if numCases <= 256 {
		return 1
	} else if numCases <= 65536 {
		return 2
	}
	return 4
}

// Size returns the byte size of the memory-resident form.
func (t *Type) Size() uint32 {
	t.ensureLayout()
	return t.layout.size
}

// Align returns the alignment of the memory-resident form, a power of two.
func (t *Type) Align() uint32 {
	t.ensureLayout()
	return t.layout.align
}

// FieldOffset returns the byte offset of field i of a record or tuple.
func (t *Type) FieldOffset(i int) uint32 {
	t.ensureLayout()
	return t.layout.fieldOffs[i]
}

// TagSize returns the discriminant width of a tagged descriptor.
func (t *Type) TagSize() uint32 {
	t.ensureLayout()
	return t.layout.tagSize
}

// PayloadOffset returns the byte offset of the shared payload area of a
// tagged descriptor. Every case's payload lives at this offset; inactive
// cases occupy no space beyond the tag.
func (t *Type) PayloadOffset() uint32 {
	t.ensureLayout()
	return t.layout.payloadOff
}

func (t *Type) ensureLayout() {
	t.layoutOnce.Do(func() {
		t.layout = computeLayout(t)
	})
}

func computeLayout(t *Type) layoutInfo {
	switch t.kind {
	case KindBool, KindU8, KindS8:
		return layoutInfo{size: 1, align: 1}
	case KindU16, KindS16:
		return layoutInfo{size: 2, align: 2}
	case KindU32, KindS32, KindF32, KindChar:
		return layoutInfo{size: 4, align: 4}
	case KindU64, KindS64, KindF64:
		return layoutInfo{size: 8, align: 8}
	case KindString, KindList:
		// (ptr: u32, len: u32)
		return layoutInfo{size: 8, align: 4}
	case KindRecord, KindTuple:
		return recordLayout(t.fields)
	case KindVariant:
		return taggedLayout(t.cases)
	case KindOption:
		return taggedLayout([]VariantCase{{Name: "none"}, {Name: "some", Type: t.elem}})
	case KindResult:
		return taggedLayout([]VariantCase{{Name: "ok", Type: t.ok}, {Name: "err", Type: t.errTyp}})
	case KindEnum:
		size := DiscriminantSize(len(t.cases))
		return layoutInfo{size: size, align: size, tagSize: size}
	case KindFlags:
		return flagsLayout(len(t.flags))
	default:
		return layoutInfo{size: 0, align: 1}
	}
}

func recordLayout(fields []RecordField) layoutInfo {
	if len(fields) == 0 {
		return layoutInfo{size: 0, align: 1}
	}

	offs := make([]uint32, len(fields))
	maxAlign := uint32(1)
	offset := uint32(0)

	for i, f := range fields {
		a := f.Type.Align()
		offset = AlignTo(offset, a)
		offs[i] = offset
		if a > maxAlign {
			maxAlign = a
		}
		offset += f.Type.Size()
	}

	return layoutInfo{
		size:      AlignTo(offset, maxAlign),
		align:     maxAlign,
		fieldOffs: offs,
	}
}

func taggedLayout(cases []VariantCase) layoutInfo {
	if len(cases) == 0 {
		return layoutInfo{size: 0, align: 1}
	}

	tagSize := DiscriminantSize(len(cases))

	maxAlign := tagSize
	maxSize := uint32(0)
	for _, c := range cases {
		if c.Type == nil {
			continue
		}
		if a := c.Type.Align(); a > maxAlign {
			maxAlign = a
		}
		if s := c.Type.Size(); s > maxSize {
			maxSize = s
		}
	}

	payloadOff := AlignTo(tagSize, maxAlign)
	return layoutInfo{
		size:       AlignTo(payloadOff+maxSize, maxAlign),
		align:      maxAlign,
		tagSize:    tagSize,
		payloadOff: payloadOff,
	}
}

func flagsLayout(n int) layoutInfo {
	switch {
	case n == 0:
		return layoutInfo{size: 0, align: 1}
	case n <= 8:
		return layoutInfo{size: 1, align: 1}
	case n <= 16:
		return layoutInfo{size: 2, align: 2}
	case n <= 32:
		return layoutInfo{size: 4, align: 4}
	default:
		// two u32 words, low bits first
		return layoutInfo{size: 8, align: 4}
	}
}
