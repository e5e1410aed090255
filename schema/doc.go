// Package schema defines the type descriptors the codec is parameterized
// over, together with their canonical ABI layout: byte size, alignment,
// field offsets, discriminant width, and the flattened scalar shape used
// for call parameters and results.
//
// Descriptors are immutable trees built once per interface:
//
//	response := schema.Record(
//	    schema.Field("status", schema.U16()),
//	    schema.Field("headers", schema.Option(schema.List(
//	        schema.Tuple(schema.String(), schema.String())))),
//	    schema.Field("body", schema.Option(schema.List(schema.U8()))),
//	)
//
// Layout is computed lazily, cached on the descriptor, and depends only on
// the type, never on a value. Recursive types are not representable:
// a descriptor tree is finite by construction.
package schema
