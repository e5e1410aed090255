// Package membrane is the boundary codec between WebAssembly linear memory
// and host-typed values.
//
// Guest code inside a WASM instance and the host exchange structured values
// (strings, lists, records, tagged variants, options, results) across a
// function-call interface that only carries 32/64-bit numbers. This library
// implements the canonical ABI rules for that exchange: flattening a typed
// value into a sequence of machine scalars, reconstructing a value from
// fixed byte offsets in linear memory, and managing the single realloc/free
// allocator that owns the memory those values live in.
//
// # Architecture Overview
//
//	membrane/            Root package with core Memory and Allocator interfaces
//	├── schema/          Type descriptors: size, alignment, offsets, flat shape
//	├── codec/           Encoder, Decoder, ReturnArea and recursive Release
//	├── heap/            Emulated linear memory with canonical realloc/free
//	├── guest/           wazero bindings and the import/export call conventions
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Round-trip a value through emulated linear memory:
//
//	h := heap.New()
//	typ := schema.Record(
//	    schema.Field("status", schema.U16()),
//	    schema.Field("body", schema.Option(schema.List(schema.U8()))),
//	)
//
//	enc := codec.NewEncoder(h, h)
//	owned, err := enc.Encode(typ, map[string]any{
//	    "status": 200,
//	    "body":   codec.Some([]byte("Hello!")),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer owned.Release()
//
//	dec := codec.NewDecoder(h)
//	v, err := dec.Load(typ, owned.Addr())
//
// # Type System
//
// The schema package covers the full canonical ABI type grammar:
//
//   - Primitives: bool, u8-u64, s8-s64, f32, f64, char, string
//   - Compound: list<T>, option<T>, result<T, E>, tuple<...>
//   - Named: record, variant, enum, flags
//
// Descriptors are immutable; layout is computed once per descriptor and is a
// pure function of the type, never of a value.
//
// # Ownership
//
// Every string or list the encoder writes allocates a guest buffer through
// the shared Allocator. Ownership of those buffers travels with the value
// that holds the (pointer, length) pair: moving a record moves its string
// and list fields. codec.Owned is the owning handle; releasing it walks the
// value recursively and returns every nested buffer to the allocator.
// Decoding borrows by default and frees nothing.
//
// # Concurrency
//
// One instance, one thread. The codec assumes the single-threaded,
// synchronous call model of a WASM instance: a call completes, including the
// full decode of its result, before the next call through the same return
// area begins. Separate instances with separate memories are independent.
package membrane
