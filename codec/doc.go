// Package codec converts host values to and from their canonical ABI form
// in WASM linear memory.
//
// The Encoder lowers a value either into flattened core scalars (the
// argument list of a boundary call) or into bytes at a computed offset in
// linear memory. The Decoder is the inverse: it lifts values from flat
// scalars or reads them back out of memory at the offsets the schema
// package computes. Both are parameterized over schema.Type descriptors,
// so one codec serves every interface instead of one generated
// instantiation per type.
//
// # Value Model
//
// Host values use a small, explicit representation:
//
//	bool, u8..s64, f32/f64  native Go scalars (numerics coerce across widths)
//	char                    rune
//	string                  string
//	list<T>                 typed slice for scalar T, []any otherwise
//	record                  map[string]any
//	tuple                   []any
//	variant                 codec.Variant{Tag, Value}
//	enum                    uint32 (or the case name as a string when encoding)
//	option<T>               codec.Option (nil and bare values also accepted)
//	result<Ok, Err>         codec.Result
//	flags                   uint64 bitset
//
// # Ownership
//
// Every string and list the encoder writes allocates a buffer from the
// instance's Allocator. Those allocations are recorded in an
// AllocationList so a caller can free the encoded arguments after a call,
// and Encode returns an Owned handle whose Release walks the value and
// frees every nested buffer, deepest first. The Decoder allocates nothing
// and frees nothing: decoded Go values are copies, and the guest memory
// they came from stays owned by whoever encoded it.
//
// # Return Areas
//
// A ReturnArea is the scratch buffer used to return results too wide for
// the call convention's single scalar. It is allocated once, sized to the
// widest result among the signatures sharing it, and guarded by a
// write-then-consume-once protocol: populating an area that has not been
// consumed yet is reported as a protocol violation.
package codec
