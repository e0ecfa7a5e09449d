// Package types implements Concerto's type system (spec §3 "Type"):
// a tagged union of primitives, generic containers, and user-defined
// struct/enum/function types, plus the assignability and widening rules
// used by the resolver.
package types

import "fmt"

// Tag identifies a Type's shape.
type Tag int

const (
	Unknown Tag = iota // resolution failed; propagates but satisfies nothing
	Any                // compatible with everything, bidirectionally

	IntT
	FloatT
	BoolT
	StringT
	NilT

	ArrayT
	MapT
	OptionT
	ResultT
	TupleT
	StructT
	EnumT
	FunctionT

	AgentRefT
	ModelRefT
	HostRefT
)

// Type is Concerto's tagged-union type representation. Container/struct/
// enum/function types use the relevant fields below; primitives use only
// Tag.
type Type struct {
	Tag Tag

	// ArrayT / OptionT element type; MapT value type.
	Elem *Type
	// MapT key type.
	Key *Type
	// ResultT: Ok type (Elem) and Err type (Err).
	Err *Type
	// TupleT member types.
	Members []*Type

	// StructT / EnumT name and member shape.
	Name   string
	Fields map[string]*Type // StructT: field name -> type
	// EnumT variants: variant name -> payload types (nil/empty for unit variants).
	Variants map[string][]*Type

	// FunctionT signature.
	Params []*Type
	Ret    *Type
}

func Prim(t Tag) *Type { return &Type{Tag: t} }

var (
	Int    = Prim(IntT)
	Float  = Prim(FloatT)
	Bool   = Prim(BoolT)
	String = Prim(StringT)
	Nil    = Prim(NilT)
	AnyT   = Prim(Any)
	Unk    = Prim(Unknown)
)

func Array(elem *Type) *Type        { return &Type{Tag: ArrayT, Elem: elem} }
func Map(key, val *Type) *Type      { return &Type{Tag: MapT, Key: key, Elem: val} }
func Option(elem *Type) *Type       { return &Type{Tag: OptionT, Elem: elem} }
func Result(ok, err *Type) *Type    { return &Type{Tag: ResultT, Elem: ok, Err: err} }
func Tuple(members ...*Type) *Type  { return &Type{Tag: TupleT, Members: members} }
func Function(params []*Type, ret *Type) *Type {
	return &Type{Tag: FunctionT, Params: params, Ret: ret}
}
func Struct(name string, fields map[string]*Type) *Type {
	return &Type{Tag: StructT, Name: name, Fields: fields}
}
func Enum(name string, variants map[string][]*Type) *Type {
	return &Type{Tag: EnumT, Name: name, Variants: variants}
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Tag {
	case Unknown:
		return "Unknown"
	case Any:
		return "Any"
	case IntT:
		return "Int"
	case FloatT:
		return "Float"
	case BoolT:
		return "Bool"
	case StringT:
		return "String"
	case NilT:
		return "Nil"
	case ArrayT:
		return fmt.Sprintf("Array<%s>", t.Elem)
	case MapT:
		return fmt.Sprintf("Map<%s,%s>", t.Key, t.Elem)
	case OptionT:
		return fmt.Sprintf("Option<%s>", t.Elem)
	case ResultT:
		return fmt.Sprintf("Result<%s,%s>", t.Elem, t.Err)
	case TupleT:
		return fmt.Sprintf("Tuple%v", t.Members)
	case StructT:
		return t.Name
	case EnumT:
		return t.Name
	case FunctionT:
		return fmt.Sprintf("Function%v->%s", t.Params, t.Ret)
	case AgentRefT:
		return "AgentRef"
	case ModelRefT:
		return "ModelRef"
	case HostRefT:
		return "HostRef"
	}
	return "?"
}

// Equal reports structural equality, used by Assignable for the
// identical-types-are-compatible rule.
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case ArrayT, OptionT:
		return Equal(a.Elem, b.Elem)
	case MapT:
		return Equal(a.Key, b.Key) && Equal(a.Elem, b.Elem)
	case ResultT:
		return Equal(a.Elem, b.Elem) && Equal(a.Err, b.Err)
	case TupleT:
		if len(a.Members) != len(b.Members) {
			return false
		}
		for i := range a.Members {
			if !Equal(a.Members[i], b.Members[i]) {
				return false
			}
		}
		return true
	case StructT, EnumT:
		return a.Name == b.Name
	case FunctionT:
		if !Equal(a.Ret, b.Ret) || len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			if !Equal(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Assignable implements spec §3's assignability rule: identical types
// are compatible; Any is bidirectionally compatible with everything;
// Unknown propagates but never satisfies a strict check.
func Assignable(from, to *Type) bool {
	if from == nil || to == nil {
		return false
	}
	if from.Tag == Unknown || to.Tag == Unknown {
		return false
	}
	if from.Tag == Any || to.Tag == Any {
		return true
	}
	if Equal(from, to) {
		return true
	}
	// Structural covariance for containers holding assignable elements,
	// e.g. Array<Any> accepts elements of any element type via Any above;
	// beyond that containers require identical element types.
	switch {
	case from.Tag == OptionT && to.Tag == OptionT:
		return Assignable(from.Elem, to.Elem)
	case from.Tag == ResultT && to.Tag == ResultT:
		return Assignable(from.Elem, to.Elem) && Assignable(from.Err, to.Err)
	case from.Tag == ArrayT && to.Tag == ArrayT:
		return Assignable(from.Elem, to.Elem)
	}
	return false
}

// CastAllowed implements spec §4.3's `as` rule: only Int<->Float widening
// and Any->T unboxing are permitted; all other pairs are rejected at
// compile time (spec open question: identity/unboxing only, no
// structural coercion).
func CastAllowed(from, to *Type) bool {
	if from == nil || to == nil {
		return false
	}
	if from.Tag == Any {
		return true
	}
	if (from.Tag == IntT && to.Tag == FloatT) || (from.Tag == FloatT && to.Tag == IntT) {
		return true
	}
	return Equal(from, to)
}

// IsFiniteVariant reports whether t has a statically enumerable set of
// match variants (Bool, Option, Result, user enum), per spec §4.3's
// match-exhaustiveness rule.
func IsFiniteVariant(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Tag {
	case BoolT, OptionT, ResultT, EnumT:
		return true
	default:
		return false
	}
}

// VariantNames returns the finite set of variant tags for t, used by the
// exhaustiveness checker.
func VariantNames(t *Type) []string {
	switch t.Tag {
	case BoolT:
		return []string{"true", "false"}
	case OptionT:
		return []string{"Some", "None"}
	case ResultT:
		return []string{"Ok", "Err"}
	case EnumT:
		names := make([]string, 0, len(t.Variants))
		for name := range t.Variants {
			names = append(names, name)
		}
		return names
	default:
		return nil
	}
}

// Iterable reports whether t can appear on the right of `for x in e`
// (Array, Map, Range, or String per spec §4.3). Range is represented as
// a dedicated host type recognized by name since it's VM-only.
func Iterable(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Tag {
	case ArrayT, MapT, StringT:
		return true
	}
	return t.Name == "Range"
}
