package codec

import (
	"math"
	"reflect"
)

// Canonical ABI limits for flat encoding.
const (
	MaxFlatParams  = 16
	MaxFlatResults = 1
)

// Safety limits against corrupt length fields and runaway allocations.
const (
	MaxStringSize = 1 << 30 // 1 GB max string size
	MaxListLength = 1 << 27 // 128M max elements
	MaxAlloc      = 1 << 30 // 1 GB max single allocation
)

const (
	canonicalNaN32 = 0x7fc00000
	canonicalNaN64 = 0x7ff8000000000000
)

// canonicalizeF32 returns the canonical NaN bit pattern for any NaN input.
func canonicalizeF32(bits uint32) uint32 {
	f := math.Float32frombits(bits)
	if f != f {
		return canonicalNaN32
	}
	return bits
}

// canonicalizeF64 returns the canonical NaN bit pattern for any NaN input.
func canonicalizeF64(bits uint64) uint64 {
	f := math.Float64frombits(bits)
	if f != f {
		return canonicalNaN64
	}
	return bits
}

// validChar rejects surrogates and out-of-range scalar values.
func validChar(r rune) bool {
	if r >= 0xD800 && r <= 0xDFFF {
		return false
	}
	return r >= 0 && r < 0x110000
}

func safeMul(a, b uint32) (uint32, bool) {
	if b != 0 && a > math.MaxUint32/b {
		return 0, false
	}
	return a * b, true
}

// typeName returns "nil" for nil values, avoiding reflect.TypeOf(nil) panic.
func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}
