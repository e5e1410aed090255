package main

import (
	"sort"

	"github.com/membrane-wasm/membrane/schema"
)

// Built-in types demonstrating every layout rule: discriminant widths,
// payload alignment, field padding, and flat shapes.
var catalog = map[string]*schema.Type{
	"point": schema.Record(
		schema.Field("x", schema.F64()),
		schema.Field("y", schema.F64()),
	),
	"http-response": schema.Record(
		schema.Field("status", schema.U16()),
		schema.Field("headers", schema.Option(schema.List(schema.Tuple(schema.String(), schema.String())))),
		schema.Field("body", schema.Option(schema.List(schema.U8()))),
	),
	"query-result": schema.Result(
		schema.U64(),
		schema.Variant(
			schema.Case("success", nil),
			schema.Case("query-failed", schema.String()),
		),
	),
	"mixed-record": schema.Record(
		schema.Field("a", schema.U8()),
		schema.Field("b", schema.U32()),
		schema.Field("c", schema.U8()),
	),
	"ip-address": schema.Variant(
		schema.Case("v4", schema.Tuple(schema.U8(), schema.U8(), schema.U8(), schema.U8())),
		schema.Case("v6", schema.List(schema.U16())),
	),
	"log-level": schema.Enum("trace", "debug", "info", "warn", "error"),
	"permissions": schema.Flags("read", "write", "exec", "admin"),
	"maybe-name": schema.Option(schema.String()),
	"key-values": schema.List(schema.Tuple(schema.String(), schema.String())),
}

func catalogNames() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
