package vm

import "github.com/concerto-lang/concerto/internal/errs"

// cast implements the Cast(target) opcode (spec §4.3/§4.5): Int<->Float
// widening/narrowing, identity casts, and unboxing a value out of Any.
// Any cast that cannot be satisfied raises a CastFailure rather than
// silently passing the original value through.
func (m *Machine) cast(v Value, target string) Value {
	if v.TypeName() == target {
		return v
	}
	switch target {
	case "Int":
		switch v.Kind {
		case KInt:
			return v
		case KFloat:
			return Int(int64(v.F))
		}
	case "Float":
		switch v.Kind {
		case KFloat:
			return v
		case KInt:
			return Float(float64(v.I))
		}
	case "String":
		if v.Kind == KString {
			return v
		}
		return Str(v.ToDisplayString())
	case "Any":
		return v
	}
	m.raiseRuntime(errs.New(errs.KindCastFailure, "cannot cast %s to %s", v.TypeName(), target))
	return Nil()
}
