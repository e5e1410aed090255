package schema

import (
	"go.bytecodealliance.org/wit"

	"github.com/membrane-wasm/membrane/errors"
)

// FromWIT builds a descriptor from already-parsed WIT type metadata.
// Resource handle types are not supported by this codec.
func FromWIT(t wit.Type) (*Type, error) {
	switch t := t.(type) {
	case wit.Bool:
		return Bool(), nil
	case wit.U8:
		return U8(), nil
	case wit.S8:
		return S8(), nil
	case wit.U16:
		return U16(), nil
	case wit.S16:
		return S16(), nil
	case wit.U32:
		return U32(), nil
	case wit.S32:
		return S32(), nil
	case wit.U64:
		return U64(), nil
	case wit.S64:
		return S64(), nil
	case wit.F32:
		return F32(), nil
	case wit.F64:
		return F64(), nil
	case wit.Char:
		return Char(), nil
	case wit.String:
		return String(), nil
	case *wit.TypeDef:
		return fromTypeDef(t)
	default:
		return nil, errors.New(errors.PhaseLayout, errors.KindUnsupported).
			Detail("unsupported WIT type %T", t).
			Build()
	}
}

func fromTypeDef(t *wit.TypeDef) (*Type, error) {
	switch kind := t.Kind.(type) {
	case *wit.Record:
		fields := make([]RecordField, len(kind.Fields))
		for i, f := range kind.Fields {
			ft, err := FromWIT(f.Type)
			if err != nil {
				return nil, err
			}
			fields[i] = RecordField{Name: f.Name, Type: ft}
		}
		return Record(fields...), nil

	case *wit.Variant:
		cases := make([]VariantCase, len(kind.Cases))
		for i, c := range kind.Cases {
			vc := VariantCase{Name: c.Name}
			if c.Type != nil {
				ct, err := FromWIT(c.Type)
				if err != nil {
					return nil, err
				}
				vc.Type = ct
			}
			cases[i] = vc
		}
		return Variant(cases...), nil

	case *wit.Enum:
		names := make([]string, len(kind.Cases))
		for i, c := range kind.Cases {
			names[i] = c.Name
		}
		return Enum(names...), nil

	case *wit.List:
		elem, err := FromWIT(kind.Type)
		if err != nil {
			return nil, err
		}
		return List(elem), nil

	case *wit.Option:
		elem, err := FromWIT(kind.Type)
		if err != nil {
			return nil, err
		}
		return Option(elem), nil

	case *wit.Result:
		var ok, errT *Type
		var err error
		if kind.OK != nil {
			if ok, err = FromWIT(kind.OK); err != nil {
				return nil, err
			}
		}
		if kind.Err != nil {
			if errT, err = FromWIT(kind.Err); err != nil {
				return nil, err
			}
		}
		return Result(ok, errT), nil

	case *wit.Tuple:
		types := make([]*Type, len(kind.Types))
		for i, tt := range kind.Types {
			ct, err := FromWIT(tt)
			if err != nil {
				return nil, err
			}
			types[i] = ct
		}
		return Tuple(types...), nil

	case *wit.Flags:
		if len(kind.Flags) > 64 {
			return nil, errors.New(errors.PhaseLayout, errors.KindUnsupported).
				Detail("flags type exceeds maximum 64 flags, got %d", len(kind.Flags)).
				Build()
		}
		names := make([]string, len(kind.Flags))
		for i, f := range kind.Flags {
			names[i] = f.Name
		}
		return Flags(names...), nil

	case wit.Type:
		// type alias
		return FromWIT(kind)

	default:
		return nil, errors.New(errors.PhaseLayout, errors.KindUnsupported).
			Detail("unsupported WIT type definition %T", kind).
			Build()
	}
}
