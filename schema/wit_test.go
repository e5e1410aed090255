package schema

import (
	"testing"

	"go.bytecodealliance.org/wit"
)

func TestFromWIT_Primitives(t *testing.T) {
	tests := []struct {
		typ  wit.Type
		name string
		kind Kind
	}{
		{wit.Bool{}, "bool", KindBool},
		{wit.U8{}, "u8", KindU8},
		{wit.S16{}, "s16", KindS16},
		{wit.U32{}, "u32", KindU32},
		{wit.S64{}, "s64", KindS64},
		{wit.F32{}, "f32", KindF32},
		{wit.F64{}, "f64", KindF64},
		{wit.Char{}, "char", KindChar},
		{wit.String{}, "string", KindString},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromWIT(tc.typ)
			if err != nil {
				t.Fatalf("FromWIT: %v", err)
			}
			if got.Kind() != tc.kind {
				t.Errorf("kind = %v, want %v", got.Kind(), tc.kind)
			}
		})
	}
}

func TestFromWIT_Record(t *testing.T) {
	td := &wit.TypeDef{Kind: &wit.Record{
		Fields: []wit.Field{
			{Name: "status", Type: wit.U16{}},
			{Name: "uri", Type: wit.String{}},
		},
	}}

	got, err := FromWIT(td)
	if err != nil {
		t.Fatalf("FromWIT: %v", err)
	}
	if got.Kind() != KindRecord {
		t.Fatalf("kind = %v, want record", got.Kind())
	}
	if len(got.Fields()) != 2 || got.Fields()[1].Name != "uri" {
		t.Errorf("fields not preserved: %v", got.Fields())
	}
	if got.Size() != 12 {
		t.Errorf("size = %d, want 12", got.Size())
	}
}

func TestFromWIT_Variant(t *testing.T) {
	td := &wit.TypeDef{Kind: &wit.Variant{
		Cases: []wit.Case{
			{Name: "success"},
			{Name: "query-failed", Type: wit.String{}},
		},
	}}

	got, err := FromWIT(td)
	if err != nil {
		t.Fatalf("FromWIT: %v", err)
	}
	cases := got.Cases()
	if len(cases) != 2 {
		t.Fatalf("cases = %d, want 2", len(cases))
	}
	if cases[0].Type != nil {
		t.Error("payload-less case gained a payload")
	}
	if cases[1].Type == nil || cases[1].Type.Kind() != KindString {
		t.Error("string payload lost")
	}
}

func TestFromWIT_Compound(t *testing.T) {
	listU8 := &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}
	td := &wit.TypeDef{Kind: &wit.Option{Type: listU8}}

	got, err := FromWIT(td)
	if err != nil {
		t.Fatalf("FromWIT: %v", err)
	}
	if got.Kind() != KindOption || got.Elem().Kind() != KindList {
		t.Errorf("got %s, want option<list<u8>>", got)
	}

	res := &wit.TypeDef{Kind: &wit.Result{OK: wit.U64{}, Err: wit.String{}}}
	gr, err := FromWIT(res)
	if err != nil {
		t.Fatalf("FromWIT result: %v", err)
	}
	if gr.OK().Kind() != KindU64 || gr.Err().Kind() != KindString {
		t.Errorf("result payloads wrong: %s", gr)
	}

	tup := &wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.String{}, wit.String{}}}}
	gt, err := FromWIT(tup)
	if err != nil {
		t.Fatalf("FromWIT tuple: %v", err)
	}
	if gt.Kind() != KindTuple || len(gt.Fields()) != 2 {
		t.Errorf("got %s, want tuple<string, string>", gt)
	}
}

func TestFromWIT_EnumAndFlags(t *testing.T) {
	en := &wit.TypeDef{Kind: &wit.Enum{Cases: []wit.EnumCase{{Name: "get"}, {Name: "post"}}}}
	ge, err := FromWIT(en)
	if err != nil {
		t.Fatalf("FromWIT enum: %v", err)
	}
	if ge.Kind() != KindEnum || ge.CaseCount() != 2 {
		t.Errorf("got %s, want 2-case enum", ge)
	}

	fl := &wit.TypeDef{Kind: &wit.Flags{Flags: []wit.Flag{{Name: "read"}, {Name: "write"}}}}
	gf, err := FromWIT(fl)
	if err != nil {
		t.Fatalf("FromWIT flags: %v", err)
	}
	if gf.Kind() != KindFlags || len(gf.FlagNames()) != 2 {
		t.Errorf("got %s, want 2-flag set", gf)
	}
}

func TestFromWIT_LayoutMatchesWITShape(t *testing.T) {
	// option<list<tuple<string, string>>> built both ways must agree on layout
	tup := &wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.String{}, wit.String{}}}}
	lst := &wit.TypeDef{Kind: &wit.List{Type: tup}}
	opt := &wit.TypeDef{Kind: &wit.Option{Type: lst}}

	fromWIT, err := FromWIT(opt)
	if err != nil {
		t.Fatalf("FromWIT: %v", err)
	}
	direct := Option(List(Tuple(String(), String())))

	if fromWIT.Size() != direct.Size() || fromWIT.Align() != direct.Align() {
		t.Errorf("layout disagreement: WIT %d/%d vs direct %d/%d",
			fromWIT.Size(), fromWIT.Align(), direct.Size(), direct.Align())
	}
}
