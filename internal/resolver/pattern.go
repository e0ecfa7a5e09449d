package resolver

import (
	"github.com/concerto-lang/concerto/internal/ast"
	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/symbols"
	"github.com/concerto-lang/concerto/internal/types"
)

func (r *Resolver) resolveMatch(n *ast.Match) *types.Type {
	st := r.resolveExpr(n.Scrutinee)
	var result *types.Type
	covered := map[string]bool{}
	hasCatchAll := false
	for i := range n.Arms {
		arm := &n.Arms[i]
		r.syms.Push()
		r.resolvePattern(arm.Pattern, st, covered, &hasCatchAll)
		bt := r.resolveExpr(arm.Body)
		r.checkUnused(r.syms.Current())
		r.syms.Pop()
		if result == nil {
			result = bt
		} else if !types.Assignable(bt, result) {
			result = types.AnyT
		}
	}
	if types.IsFiniteVariant(st) && !hasCatchAll {
		for _, v := range types.VariantNames(st) {
			if !covered[v] {
				r.errorf(errs.KindNonExhaustive, n.Span(), "non-exhaustive match on %s: missing variant %q", st, v)
				break
			}
		}
	}
	if result == nil {
		result = types.Nil
	}
	return result
}

// resolvePattern declares any bindings a pattern introduces into the
// current (already-pushed) scope and records which finite-variant tag,
// if any, it covers for the exhaustiveness check.
func (r *Resolver) resolvePattern(p ast.Pattern, scrutinee *types.Type, covered map[string]bool, hasCatchAll *bool) {
	switch pat := p.(type) {
	case *ast.WildcardPattern:
		*hasCatchAll = true
	case *ast.BindingPattern:
		*hasCatchAll = true
		r.syms.Declare(pat.Name, symbols.Variable, scrutinee, false)
	case *ast.LiteralPattern:
		r.resolveExpr(pat.Value)
		if lit, ok := pat.Value.(*ast.BoolLit); ok {
			if lit.Value {
				covered["true"] = true
			} else {
				covered["false"] = true
			}
		}
	case *ast.TuplePattern:
		for i, elem := range pat.Elems {
			var et *types.Type = types.AnyT
			if scrutinee.Tag == types.TupleT && i < len(scrutinee.Members) {
				et = scrutinee.Members[i]
			}
			r.resolvePattern(elem, et, map[string]bool{}, new(bool))
		}
	case *ast.ArrayPattern:
		elemType := types.AnyT
		if scrutinee.Tag == types.ArrayT {
			elemType = scrutinee.Elem
		}
		for _, elem := range pat.Elems {
			r.resolvePattern(elem, elemType, map[string]bool{}, new(bool))
		}
	case *ast.StructPattern:
		for name, fp := range pat.Fields {
			ft := types.AnyT
			if scrutinee.Tag == types.StructT && scrutinee.Fields != nil {
				if t, ok := scrutinee.Fields[name]; ok {
					ft = t
				}
			}
			r.resolvePattern(fp, ft, map[string]bool{}, new(bool))
		}
	case *ast.ConstructorPattern:
		r.resolveConstructorPattern(pat, scrutinee, covered)
	}
}

func (r *Resolver) resolveConstructorPattern(pat *ast.ConstructorPattern, scrutinee *types.Type, covered map[string]bool) {
	switch pat.Path {
	case "None":
		covered["None"] = true
	case "Some":
		covered["Some"] = true
		elem := types.AnyT
		if scrutinee.Tag == types.OptionT {
			elem = scrutinee.Elem
		}
		if len(pat.Args) == 1 {
			r.resolvePattern(pat.Args[0], elem, map[string]bool{}, new(bool))
		}
	case "Ok":
		covered["Ok"] = true
		elem := types.AnyT
		if scrutinee.Tag == types.ResultT {
			elem = scrutinee.Elem
		}
		if len(pat.Args) == 1 {
			r.resolvePattern(pat.Args[0], elem, map[string]bool{}, new(bool))
		}
	case "Err":
		covered["Err"] = true
		elem := types.AnyT
		if scrutinee.Tag == types.ResultT {
			elem = scrutinee.Err
		}
		if len(pat.Args) == 1 {
			r.resolvePattern(pat.Args[0], elem, map[string]bool{}, new(bool))
		}
	default:
		// User enum variant, possibly qualified as Enum::Variant.
		variant := pat.Path
		if scrutinee.Tag == types.EnumT {
			covered[lastSegment(variant)] = true
			if payload, ok := scrutinee.Variants[lastSegment(variant)]; ok {
				for i, a := range pat.Args {
					pt := types.AnyT
					if i < len(payload) {
						pt = payload[i]
					}
					r.resolvePattern(a, pt, map[string]bool{}, new(bool))
				}
				return
			}
		}
		for _, a := range pat.Args {
			r.resolvePattern(a, types.AnyT, map[string]bool{}, new(bool))
		}
	}
}

func lastSegment(path string) string {
	idx := -1
	for i := 0; i+1 < len(path); i++ {
		if path[i] == ':' && path[i+1] == ':' {
			idx = i + 2
		}
	}
	if idx == -1 {
		return path
	}
	return path[idx:]
}
