package codec

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/membrane-wasm/membrane/heap"
	"github.com/membrane-wasm/membrane/schema"
)

func wideFlags(n int) *schema.Type {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("f%d", i)
	}
	return schema.Flags(names...)
}

// Round-trip through memory: Encode then Load must reproduce the value.
func TestRoundTripMemory(t *testing.T) {
	tests := []struct {
		name string
		typ  *schema.Type
		in   any
		want any
	}{
		{"bool", schema.Bool(), true, true},
		{"s64", schema.S64(), int64(-1 << 40), int64(-1 << 40)},
		{"f64", schema.F64(), 2.5, 2.5},
		{"char", schema.Char(), '世', '世'},
		{"string", schema.String(), "hello", "hello"},
		{"empty string", schema.String(), "", ""},
		{"unicode string", schema.String(), "héllo, 世界", "héllo, 世界"},
		{
			"list of u8",
			schema.List(schema.U8()),
			[]byte{1, 2, 3},
			[]byte{1, 2, 3},
		},
		{
			"empty list",
			schema.List(schema.U32()),
			[]uint32{},
			[]uint32{},
		},
		{
			"list of strings",
			schema.List(schema.String()),
			[]string{"a", "", "ccc"},
			[]string{"a", "", "ccc"},
		},
		{
			"record",
			schema.Record(
				schema.Field("id", schema.U64()),
				schema.Field("name", schema.String()),
			),
			map[string]any{"id": uint64(7), "name": "x"},
			map[string]any{"id": uint64(7), "name": "x"},
		},
		{
			"tuple",
			schema.Tuple(schema.String(), schema.U32()),
			[]any{"k", uint32(3)},
			[]any{"k", uint32(3)},
		},
		{
			"option none",
			schema.Option(schema.String()),
			None(),
			None(),
		},
		{
			"option some",
			schema.Option(schema.U16()),
			Some(uint16(12)),
			Some(uint16(12)),
		},
		{
			"option bare value",
			schema.Option(schema.U16()),
			uint16(12),
			Some(uint16(12)),
		},
		{
			"option nil",
			schema.Option(schema.String()),
			nil,
			None(),
		},
		{
			"result ok",
			schema.Result(schema.U64(), schema.String()),
			Ok(uint64(42)),
			Ok(uint64(42)),
		},
		{
			"result err",
			schema.Result(schema.U64(), schema.String()),
			Err("boom"),
			Err("boom"),
		},
		{
			"result unit ok",
			schema.Result(nil, schema.String()),
			Ok(nil),
			Ok(nil),
		},
		{
			"variant payloadless",
			schema.Variant(schema.Case("a", nil), schema.Case("b", schema.U32())),
			Variant{Tag: 0},
			Variant{Tag: 0},
		},
		{
			"nested variant",
			schema.Variant(
				schema.Case("leaf", schema.U8()),
				schema.Case("node", schema.Option(schema.String())),
			),
			Variant{Tag: 1, Value: Some("deep")},
			Variant{Tag: 1, Value: Some("deep")},
		},
		{
			"enum by index",
			schema.Enum("red", "green", "blue"),
			uint32(2),
			uint32(2),
		},
		{
			"enum by name",
			schema.Enum("red", "green", "blue"),
			"green",
			uint32(1),
		},
		{
			"flags bits",
			schema.Flags("read", "write", "exec"),
			uint64(0b101),
			uint64(0b101),
		},
		{
			"flags by names",
			schema.Flags("read", "write", "exec"),
			[]string{"read", "exec"},
			uint64(0b101),
		},
		{
			"wide flags",
			wideFlags(40),
			uint64(1)<<39 | uint64(1)<<32 | 1,
			uint64(1)<<39 | uint64(1)<<32 | 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := heap.New()
			enc := NewEncoder(mem, mem)
			dec := NewDecoder(mem)

			owned, err := enc.Encode(tt.typ, tt.in)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := dec.Load(tt.typ, owned.Addr())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("round trip = %#v, want %#v", got, tt.want)
			}
			if err := owned.Release(); err != nil {
				t.Errorf("Release() error = %v", err)
			}
		})
	}
}

// Round-trip through flat scalars: Flatten then Lift must reproduce the
// value for any type, including those that own memory.
func TestRoundTripFlat(t *testing.T) {
	tests := []struct {
		name string
		typ  *schema.Type
		in   any
		want any
	}{
		{"u32", schema.U32(), uint32(5), uint32(5)},
		{"s32 negative", schema.S32(), int32(-9), int32(-9)},
		{"f32", schema.F32(), float32(0.5), float32(0.5)},
		{"string", schema.String(), "flat", "flat"},
		{
			"record with string",
			schema.Record(
				schema.Field("n", schema.U16()),
				schema.Field("s", schema.String()),
			),
			map[string]any{"n": uint16(1), "s": "v"},
			map[string]any{"n": uint16(1), "s": "v"},
		},
		{
			"result with payloads",
			schema.Result(schema.U64(), schema.String()),
			Err("no"),
			Err("no"),
		},
		{
			"wide flags",
			wideFlags(64),
			uint64(1)<<63 | uint64(1)<<31,
			uint64(1)<<63 | uint64(1)<<31,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := heap.New()
			enc := NewEncoder(mem, mem)
			dec := NewDecoder(mem)
			track := NewAllocationList()
			defer track.FreeAndRelease(mem)

			var flat []uint64
			if err := enc.Flatten(tt.typ, tt.in, &flat, track); err != nil {
				t.Fatalf("Flatten() error = %v", err)
			}
			if len(flat) != tt.typ.FlatCount() {
				t.Fatalf("len(flat) = %d, want %d", len(flat), tt.typ.FlatCount())
			}
			got, err := dec.Lift(tt.typ, flat)
			if err != nil {
				t.Fatalf("Lift() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("round trip = %#v, want %#v", got, tt.want)
			}
		})
	}
}

// An HTTP-style response record with optional headers and body, encoded
// to guest memory and read back.
func TestScenarioResponseRecord(t *testing.T) {
	response := schema.Record(
		schema.Field("status", schema.U16()),
		schema.Field("headers", schema.Option(schema.List(schema.Tuple(schema.String(), schema.String())))),
		schema.Field("body", schema.Option(schema.List(schema.U8()))),
	)

	in := map[string]any{
		"status":  uint16(200),
		"headers": Some([]any{[]any{"foo", "bar"}}),
		"body":    Some([]byte("Hello!")),
	}

	mem := heap.New()
	enc := NewEncoder(mem, mem)
	dec := NewDecoder(mem)

	owned, err := enc.Encode(response, in)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got, err := dec.Load(response, owned.Addr())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	m := got.(map[string]any)
	if m["status"] != uint16(200) {
		t.Errorf("status = %v, want 200", m["status"])
	}
	headers := m["headers"].(Option)
	if !headers.Present {
		t.Fatal("headers absent")
	}
	pairs := headers.Value.([]any)
	if len(pairs) != 1 {
		t.Fatalf("len(headers) = %d, want 1", len(pairs))
	}
	pair := pairs[0].([]any)
	if pair[0] != "foo" || pair[1] != "bar" {
		t.Errorf("header = %v, want (foo, bar)", pair)
	}
	body := m["body"].(Option)
	if !body.Present || string(body.Value.([]byte)) != "Hello!" {
		t.Errorf("body = %#v, want Hello!", body.Value)
	}

	if err := owned.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if inUse := mem.Stats().InUse; inUse != 0 {
		t.Errorf("in-use bytes after release = %d, want 0", inUse)
	}
}

// A database-style result<u64, variant> carrying an error message,
// written into a return area and lifted back.
func TestScenarioQueryResult(t *testing.T) {
	queryError := schema.Variant(
		schema.Case("success", nil),
		schema.Case("query-failed", schema.String()),
	)
	result := schema.Result(schema.U64(), queryError)

	mem := heap.New()
	enc := NewEncoder(mem, mem)
	dec := NewDecoder(mem)

	area, err := NewReturnArea(mem, result)
	if err != nil {
		t.Fatalf("NewReturnArea() error = %v", err)
	}
	ptr, err := area.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	in := Err(Variant{Tag: 1, Value: "syntax error"})
	if err := enc.Store(result, in, ptr, nil); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := dec.Load(result, ptr)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	r := got.(Result)
	if !r.IsErr {
		t.Fatal("result is ok, want err")
	}
	v := r.Value.(Variant)
	if v.Tag != 1 || v.Value != "syntax error" {
		t.Errorf("error variant = %#v", v)
	}

	if err := Release(result, ptr, mem, mem); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	area.Consume()
	area.Close()
}
