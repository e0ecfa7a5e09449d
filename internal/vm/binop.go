package vm

import (
	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/token"
)

// binOp implements BinOp(op) for every operator the parser accepts in
// expression position (spec §4.5: "Value operations enforce dynamic
// type checks"). `&&`/`||` never reach here — the emitter lowers them
// to short-circuit jumps (spec §4.4) — so only the remaining operators
// are handled.
func (m *Machine) binOp(op token.Kind, lhs, rhs Value) Value {
	switch op {
	case token.Eq:
		return Bool(lhs.Equal(rhs))
	case token.Ne:
		return Bool(!lhs.Equal(rhs))
	case token.Plus:
		if lhs.Kind == KString || rhs.Kind == KString {
			if lhs.Kind != KString || rhs.Kind != KString {
				m.raiseRuntime(errs.New(errs.KindRuntimeType, "cannot add %s and %s", lhs.TypeName(), rhs.TypeName()))
				return Nil()
			}
			return Str(lhs.S + rhs.S)
		}
		return m.numeric(op, lhs, rhs)
	case token.Minus, token.Star, token.Slash, token.Percent:
		return m.numeric(op, lhs, rhs)
	case token.Lt, token.Le, token.Gt, token.Ge:
		return m.compare(op, lhs, rhs)
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "unsupported operator %s", op))
		return Nil()
	}
}

func (m *Machine) numeric(op token.Kind, lhs, rhs Value) Value {
	if lhs.Kind != KInt && lhs.Kind != KFloat {
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "expected a number, got %s", lhs.TypeName()))
		return Nil()
	}
	if rhs.Kind != KInt && rhs.Kind != KFloat {
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "expected a number, got %s", rhs.TypeName()))
		return Nil()
	}
	if lhs.Kind == KFloat || rhs.Kind == KFloat {
		a, b := asFloat(lhs), asFloat(rhs)
		switch op {
		case token.Plus:
			return Float(a + b)
		case token.Minus:
			return Float(a - b)
		case token.Star:
			return Float(a * b)
		case token.Slash:
			if b == 0 {
				m.raiseRuntime(errs.New(errs.KindDivideByZero, "division by zero"))
				return Nil()
			}
			return Float(a / b)
		case token.Percent:
			m.raiseRuntime(errs.New(errs.KindRuntimeType, "'%%' requires Int operands"))
			return Nil()
		}
	}
	a, b := lhs.I, rhs.I
	switch op {
	case token.Plus:
		return Int(a + b)
	case token.Minus:
		return Int(a - b)
	case token.Star:
		return Int(a * b)
	case token.Slash:
		if b == 0 {
			m.raiseRuntime(errs.New(errs.KindDivideByZero, "division by zero"))
			return Nil()
		}
		return Int(a / b)
	case token.Percent:
		if b == 0 {
			m.raiseRuntime(errs.New(errs.KindDivideByZero, "division by zero"))
			return Nil()
		}
		return Int(a % b)
	}
	return Nil()
}

func (m *Machine) compare(op token.Kind, lhs, rhs Value) Value {
	if lhs.Kind == KString && rhs.Kind == KString {
		switch op {
		case token.Lt:
			return Bool(lhs.S < rhs.S)
		case token.Le:
			return Bool(lhs.S <= rhs.S)
		case token.Gt:
			return Bool(lhs.S > rhs.S)
		case token.Ge:
			return Bool(lhs.S >= rhs.S)
		}
	}
	if (lhs.Kind != KInt && lhs.Kind != KFloat) || (rhs.Kind != KInt && rhs.Kind != KFloat) {
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "cannot compare %s and %s", lhs.TypeName(), rhs.TypeName()))
		return Nil()
	}
	a, b := asFloat(lhs), asFloat(rhs)
	switch op {
	case token.Lt:
		return Bool(a < b)
	case token.Le:
		return Bool(a <= b)
	case token.Gt:
		return Bool(a > b)
	case token.Ge:
		return Bool(a >= b)
	}
	return Nil()
}

func asFloat(v Value) float64 {
	if v.Kind == KFloat {
		return v.F
	}
	return float64(v.I)
}

// unOp implements UnOp(op) for `!` and unary `-`.
func (m *Machine) unOp(op token.Kind, v Value) Value {
	switch op {
	case token.Not:
		if v.Kind != KBool {
			m.raiseRuntime(errs.New(errs.KindRuntimeType, "'!' requires Bool, got %s", v.TypeName()))
			return Nil()
		}
		return Bool(!v.B)
	case token.Minus:
		switch v.Kind {
		case KInt:
			return Int(-v.I)
		case KFloat:
			return Float(-v.F)
		default:
			m.raiseRuntime(errs.New(errs.KindRuntimeType, "unary '-' requires a number, got %s", v.TypeName()))
			return Nil()
		}
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "unsupported unary operator %s", op))
		return Nil()
	}
}
