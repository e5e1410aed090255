package codec

// Option is the host form of an option<T> value.
//
// When encoding, a plain nil is accepted as none and any non-wrapper value
// as some, so the wrapper is only required where those would be ambiguous
// (nested options).
type Option struct {
	Value   any
	Present bool
}

// Some wraps a present option value.
func Some(v any) Option {
	return Option{Value: v, Present: true}
}

// None is the absent option value.
func None() Option {
	return Option{}
}

// Result is the host form of a result<Ok, Err> value. The field name
// mirrors the is_err discriminant of the C ABI form.
type Result struct {
	Value any
	IsErr bool
}

// Ok wraps a success payload.
func Ok(v any) Result {
	return Result{Value: v}
}

// Err wraps an error payload.
func Err(v any) Result {
	return Result{Value: v, IsErr: true}
}

// Variant is the host form of a variant value: the declared case index
// plus the active case's payload (nil for payload-less cases).
type Variant struct {
	Value any
	Tag   uint32
}
