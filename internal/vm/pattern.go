package vm

import "github.com/concerto-lang/concerto/internal/ir"

// matchPattern implements MatchCheck (spec §4.4): a structural test of
// scrutinee against the compiled pattern, binding any PatBinding nodes
// into f.locals along the way (bindings commit even though the overall
// match may still fail higher up the pattern tree, mirroring how the
// emitter only reaches a binding after its enclosing shape already
// matched).
func (m *Machine) matchPattern(f *Frame, pat ir.Pattern, scrutinee Value) bool {
	switch pat.Kind {
	case ir.PatWildcard:
		return true
	case ir.PatBinding:
		f.locals[pat.LocalSlot] = scrutinee
		return true
	case ir.PatLiteral:
		return scrutinee.Equal(constValue(m.mod.Constants[pat.ConstIdx]))
	case ir.PatTuple:
		if scrutinee.Kind != KTuple || len(scrutinee.Tuple) != len(pat.Elems) {
			return false
		}
		for i, subIdx := range pat.Elems {
			if !m.matchPattern(f, m.mod.Patterns[subIdx], scrutinee.Tuple[i]) {
				return false
			}
		}
		return true
	case ir.PatArray:
		if scrutinee.Kind != KArray || scrutinee.Arr == nil || len(*scrutinee.Arr) != len(pat.Elems) {
			return false
		}
		for i, subIdx := range pat.Elems {
			if !m.matchPattern(f, m.mod.Patterns[subIdx], (*scrutinee.Arr)[i]) {
				return false
			}
		}
		return true
	case ir.PatStruct:
		if scrutinee.Kind != KStruct || scrutinee.StructName != pat.Path {
			return false
		}
		for name, subIdx := range pat.Fields {
			fv, ok := scrutinee.Fields[name]
			if !ok || !m.matchPattern(f, m.mod.Patterns[subIdx], fv) {
				return false
			}
		}
		return true
	case ir.PatConstructor:
		return m.matchConstructor(f, pat, scrutinee)
	default:
		return false
	}
}

func (m *Machine) matchConstructor(f *Frame, pat ir.Pattern, scrutinee Value) bool {
	switch pat.Path {
	case "None":
		return scrutinee.Kind == KOption && scrutinee.Some == nil
	case "Some":
		if scrutinee.Kind != KOption || scrutinee.Some == nil {
			return false
		}
		return m.matchOptArgs(f, pat.Elems, []Value{*scrutinee.Some})
	case "Ok":
		if scrutinee.Kind != KResult || scrutinee.OkV == nil {
			return false
		}
		return m.matchOptArgs(f, pat.Elems, []Value{*scrutinee.OkV})
	case "Err":
		if scrutinee.Kind != KResult || scrutinee.ErrV == nil {
			return false
		}
		return m.matchOptArgs(f, pat.Elems, []Value{*scrutinee.ErrV})
	default:
		// User enum variant, runtime-represented as a Struct whose
		// StructName is the full "Enum::Variant" path; pat.Path may be
		// qualified the same way or bare (an unqualified `Circle(r)`
		// arm inside a `match shape { ... }`), so compare by variant
		// name when pat.Path carries no "::" of its own.
		if scrutinee.Kind != KStruct {
			return false
		}
		if scrutinee.StructName != pat.Path && lastPathSegment(scrutinee.StructName) != pat.Path {
			return false
		}
		args := make([]Value, len(pat.Elems))
		for i := range pat.Elems {
			args[i] = scrutinee.Fields[itoaVM(i)]
		}
		return m.matchOptArgs(f, pat.Elems, args)
	}
}

func (m *Machine) matchOptArgs(f *Frame, elemIdx []int, vals []Value) bool {
	if len(elemIdx) != len(vals) {
		return len(elemIdx) == 0
	}
	for i, subIdx := range elemIdx {
		if !m.matchPattern(f, m.mod.Patterns[subIdx], vals[i]) {
			return false
		}
	}
	return true
}

func lastPathSegment(path string) string {
	for i := len(path) - 1; i > 0; i-- {
		if path[i] == ':' && path[i-1] == ':' {
			return path[i+1:]
		}
	}
	return path
}

func itoaVM(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
