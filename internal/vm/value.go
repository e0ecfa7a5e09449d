// Package vm implements Concerto's stack machine (spec §4.5): one
// operand stack, a call-frame stack, and opcode handlers that pop their
// inputs and push their outputs, mirroring internal/ir's Op enum
// instruction by instruction.
package vm

import (
	"fmt"
	"strings"

	"github.com/concerto-lang/concerto/internal/errs"
)

// Kind tags a runtime Value (spec §3 "Value (runtime)").
type Kind int

const (
	KNil Kind = iota
	KInt
	KFloat
	KBool
	KString
	KArray
	KMap
	KTuple
	KStruct
	KOption
	KResult
	KRange
	KClosure
	KAgentRef
	KModelRef
	KHostRef
	KModelBuilder
	KError
)

func (k Kind) String() string {
	switch k {
	case KNil:
		return "Nil"
	case KInt:
		return "Int"
	case KFloat:
		return "Float"
	case KBool:
		return "Bool"
	case KString:
		return "String"
	case KArray:
		return "Array"
	case KMap:
		return "Map"
	case KTuple:
		return "Tuple"
	case KStruct:
		return "Struct"
	case KOption:
		return "Option"
	case KResult:
		return "Result"
	case KRange:
		return "Range"
	case KClosure:
		return "Closure"
	case KAgentRef:
		return "AgentRef"
	case KModelRef:
		return "ModelRef"
	case KHostRef:
		return "HostRef"
	case KModelBuilder:
		return "ModelBuilder"
	case KError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Value is Concerto's tagged-union runtime value. Arrays, maps, and
// structs carry reference semantics (the emitter/VM share the backing
// slice/map across copies, matching spec §3's "interior immutability
// where the language mutates"); every other kind is copied by value.
type Value struct {
	Kind Kind

	I int64
	F float64
	B bool
	S string

	Arr *[]Value
	Map *OrderedMap

	Tuple []Value

	StructName string
	Fields     map[string]Value

	// Option: Some holds the payload, none represented by Some == nil.
	Some *Value

	// Result: Ok holds the success payload, ErrV the failure payload;
	// exactly one is non-nil.
	OkV  *Value
	ErrV *Value

	RangeStart, RangeEnd int64
	RangeIncl            bool

	// Closure/AgentRef/ModelRef/HostRef/ModelBuilder carry an opaque
	// string identifier the runtime context resolves (function name,
	// registry key).
	Ref string

	// ModelBuilder overrides (spec: "ModelBuilder(base-id, overrides)").
	Overrides map[string]Value

	RuntimeErr *errs.ConcertoError
}

func Nil() Value       { return Value{Kind: KNil} }
func Int(i int64) Value   { return Value{Kind: KInt, I: i} }
func Float(f float64) Value { return Value{Kind: KFloat, F: f} }
func Bool(b bool) Value   { return Value{Kind: KBool, B: b} }
func Str(s string) Value  { return Value{Kind: KString, S: s} }

func Array(elems []Value) Value {
	e := append([]Value(nil), elems...)
	return Value{Kind: KArray, Arr: &e}
}

func Tuple(elems []Value) Value { return Value{Kind: KTuple, Tuple: elems} }

func Struct(name string, fields map[string]Value) Value {
	return Value{Kind: KStruct, StructName: name, Fields: fields}
}

func Some(v Value) Value { return Value{Kind: KOption, Some: &v} }
func None() Value        { return Value{Kind: KOption} }

func Ok(v Value) Value  { return Value{Kind: KResult, OkV: &v} }
func Err(v Value) Value { return Value{Kind: KResult, ErrV: &v} }

func RuntimeError(e *errs.ConcertoError) Value {
	return Value{Kind: KError, RuntimeErr: e}
}

// OrderedMap is Concerto's Map value: insertion-ordered, per spec §3.
type OrderedMap struct {
	keys   []Value
	values map[string]Value
}

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: map[string]Value{}}
}

func mapKey(k Value) string {
	switch k.Kind {
	case KString:
		return "s:" + k.S
	case KInt:
		return fmt.Sprintf("i:%d", k.I)
	case KBool:
		return fmt.Sprintf("b:%v", k.B)
	case KFloat:
		return fmt.Sprintf("f:%v", k.F)
	default:
		return fmt.Sprintf("?:%v", k)
	}
}

func (m *OrderedMap) Get(k Value) (Value, bool) {
	v, ok := m.values[mapKey(k)]
	return v, ok
}

func (m *OrderedMap) Set(k, v Value) {
	mk := mapKey(k)
	if _, exists := m.values[mk]; !exists {
		m.keys = append(m.keys, k)
	}
	m.values[mk] = v
}

func (m *OrderedMap) Has(k Value) bool {
	_, ok := m.values[mapKey(k)]
	return ok
}

func (m *OrderedMap) Keys() []Value { return append([]Value(nil), m.keys...) }

func (m *OrderedMap) Values() []Value {
	out := make([]Value, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.values[mapKey(k)]
	}
	return out
}

func (m *OrderedMap) Len() int { return len(m.keys) }

// Truthy implements the language's notion of a Bool condition: only a
// genuine KBool participates in conditionals; anything else is a
// TypeError raised by the caller, so Truthy is only ever invoked after
// that check.
func (v Value) Truthy() bool { return v.Kind == KBool && v.B }

// Equal implements `==`/`==` equality used by BinOp and literal pattern
// matching: structural for compound values, value equality for
// primitives.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KNil:
		return true
	case KInt:
		return v.I == o.I
	case KFloat:
		return v.F == o.F
	case KBool:
		return v.B == o.B
	case KString:
		return v.S == o.S
	case KArray:
		if v.Arr == nil || o.Arr == nil {
			return v.Arr == o.Arr
		}
		a, b := *v.Arr, *o.Arr
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case KTuple:
		if len(v.Tuple) != len(o.Tuple) {
			return false
		}
		for i := range v.Tuple {
			if !v.Tuple[i].Equal(o.Tuple[i]) {
				return false
			}
		}
		return true
	case KStruct:
		if v.StructName != o.StructName || len(v.Fields) != len(o.Fields) {
			return false
		}
		for k, fv := range v.Fields {
			ov, ok := o.Fields[k]
			if !ok || !fv.Equal(ov) {
				return false
			}
		}
		return true
	case KOption:
		if v.Some == nil || o.Some == nil {
			return v.Some == nil && o.Some == nil
		}
		return v.Some.Equal(*o.Some)
	case KResult:
		if (v.OkV == nil) != (o.OkV == nil) {
			return false
		}
		if v.OkV != nil {
			return v.OkV.Equal(*o.OkV)
		}
		return v.ErrV.Equal(*o.ErrV)
	case KRange:
		return v.RangeStart == o.RangeStart && v.RangeEnd == o.RangeEnd && v.RangeIncl == o.RangeIncl
	case KClosure, KAgentRef, KModelRef, KHostRef:
		return v.Ref == o.Ref
	default:
		return false
	}
}

// rangeLen returns the number of integers a Range value iterates over
// (spec §4.4 "Range": "a..b" and "a..=b" produce a Range value, not a
// three-element array), clamped to zero for an empty/descending range.
func rangeLen(v Value) int64 {
	n := v.RangeEnd - v.RangeStart
	if v.RangeIncl {
		n++
	}
	if n < 0 {
		return 0
	}
	return n
}

// TypeName returns the Concerto-level type name used by `typeof`/cast
// diagnostics.
func (v Value) TypeName() string {
	switch v.Kind {
	case KStruct:
		return v.StructName
	case KOption:
		return "Option"
	case KResult:
		return "Result"
	default:
		return v.Kind.String()
	}
}

// ToDisplayString implements the `to_string()` method every value
// supports, used by string interpolation.
func (v Value) ToDisplayString() string {
	switch v.Kind {
	case KNil:
		return "nil"
	case KInt:
		return fmt.Sprintf("%d", v.I)
	case KFloat:
		return fmt.Sprintf("%g", v.F)
	case KBool:
		return fmt.Sprintf("%v", v.B)
	case KString:
		return v.S
	case KArray:
		parts := make([]string, 0)
		if v.Arr != nil {
			for _, e := range *v.Arr {
				parts = append(parts, e.ToDisplayString())
			}
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KTuple:
		parts := make([]string, len(v.Tuple))
		for i, e := range v.Tuple {
			parts[i] = e.ToDisplayString()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KStruct:
		parts := make([]string, 0, len(v.Fields))
		for k, fv := range v.Fields {
			parts = append(parts, k+": "+fv.ToDisplayString())
		}
		return v.StructName + " { " + strings.Join(parts, ", ") + " }"
	case KOption:
		if v.Some == nil {
			return "None"
		}
		return "Some(" + v.Some.ToDisplayString() + ")"
	case KResult:
		if v.OkV != nil {
			return "Ok(" + v.OkV.ToDisplayString() + ")"
		}
		return "Err(" + v.ErrV.ToDisplayString() + ")"
	case KRange:
		op := ".."
		if v.RangeIncl {
			op = "..="
		}
		return fmt.Sprintf("%d%s%d", v.RangeStart, op, v.RangeEnd)
	case KError:
		if v.RuntimeErr != nil {
			return v.RuntimeErr.Error()
		}
		return "Error"
	default:
		return v.Kind.String()
	}
}
