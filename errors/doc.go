// Package errors provides structured error types for the membrane library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: field path, value type
// names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("response", "status").
//		ValueType("string").
//		SchemaType("u16").
//		Detail("cannot convert string to integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseEncode, path, "string", "u16")
//	err := errors.InvalidDiscriminant(errors.PhaseDecode, path, 7, 2)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
