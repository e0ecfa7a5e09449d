package resolver

import (
	"strings"

	"github.com/concerto-lang/concerto/internal/ast"
	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/symbols"
	"github.com/concerto-lang/concerto/internal/types"
)

func (r *Resolver) bodyPass(file *ast.File) {
	for _, d := range file.Decls {
		switch dd := d.(type) {
		case *ast.FnDecl:
			r.resolveFunctionLike(dd.Params, dd.RetType, dd.Body)
		case *ast.ToolDecl:
			r.resolveFunctionLike(dd.Params, dd.RetType, dd.Body)
		case *ast.AgentDecl:
			for _, e := range dd.Init {
				r.resolveExpr(e)
			}
		case *ast.PipelineDecl:
			for _, st := range dd.Stages {
				r.syms.Push()
				r.resolveBlock(st.Body)
				r.checkUnused(r.syms.Current())
				r.syms.Pop()
			}
		}
	}
}

func (r *Resolver) resolveFunctionLike(params []ast.Param, ret ast.TypeExpr, body *ast.Block) {
	retType := types.Nil
	if ret.Name != "" {
		retType = r.resolveTypeExpr(ret)
	}
	r.fn = append(r.fn, &funcInfo{retType: retType})
	r.syms.Push()
	for _, p := range params {
		r.syms.Declare(p.Name, symbols.Variable, r.resolveTypeExpr(p.Type), false)
	}
	bodyType := r.resolveBlock(body)
	if bodyType != nil && !types.Assignable(bodyType, retType) && ret.Name != "" {
		r.errorf(errs.KindType, body.Span(), "function body type %s is not assignable to declared return type %s", bodyType, retType)
	}
	r.checkUnused(r.syms.Current())
	r.syms.Pop()
	r.fn = r.fn[:len(r.fn)-1]
}

func (r *Resolver) checkUnused(scope *symbols.Scope) {
	for _, sym := range r.syms.AllInScope(scope) {
		if sym.Kind != symbols.Variable || sym.Used || strings.HasPrefix(sym.Name, "_") {
			continue
		}
		// Unused-variable diagnostics are warnings, not batch-failing
		// errors; recorded at NameError kind with a "warning" detail so
		// a diagnostic renderer can distinguish severity.
		e := errs.New(errs.KindName, "unused variable %q", sym.Name).WithDetail("severity", "warning")
		r.errs.Add(e)
	}
}

func (r *Resolver) currentFn() *funcInfo {
	if len(r.fn) == 0 {
		return nil
	}
	return r.fn[len(r.fn)-1]
}

// resolveBlock resolves every statement and returns the type of the
// block's tail expression, or Nil if it has none.
func (r *Resolver) resolveBlock(b *ast.Block) *types.Type {
	r.syms.Push()
	for _, s := range b.Stmts {
		r.resolveStmt(s)
	}
	var t *types.Type = types.Nil
	if b.Tail != nil {
		t = r.resolveExpr(b.Tail)
	}
	b.ResolvedType = t
	r.checkUnused(r.syms.Current())
	r.syms.Pop()
	return t
}

func (r *Resolver) resolveStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LetStmt:
		vt := r.resolveExpr(st.Value)
		if st.Type.Name != "" {
			declared := r.resolveTypeExpr(st.Type)
			if !types.Assignable(vt, declared) {
				r.errorf(errs.KindType, st.Span(), "cannot assign value of type %s to %s (declared %s)", vt, st.Name, declared)
			}
			vt = declared
		}
		sym := r.syms.Declare(st.Name, symbols.Variable, vt, st.Mutable)
		st.SymbolID = sym.ID
	case *ast.AssignStmt:
		vt := r.resolveExpr(st.Value)
		switch target := st.Target.(type) {
		case *ast.Ident:
			sym, ok := r.syms.Lookup(target.Name)
			if !ok {
				r.errorf(errs.KindName, target.Span(), "undefined variable %q", target.Name)
				return
			}
			sym.Used = true
			target.SymbolID = sym.ID
			target.ResolvedType = sym.Type
			if !sym.Mutable {
				r.errorf(errs.KindType, st.Span(), "cannot assign to immutable variable %q", target.Name)
			}
			if !types.Assignable(vt, sym.Type) {
				r.errorf(errs.KindType, st.Span(), "cannot assign %s to variable %q of type %s", vt, target.Name, sym.Type)
			}
		case *ast.FieldAccess, *ast.Index:
			r.resolveExpr(target)
		default:
			r.errorf(errs.KindType, st.Span(), "invalid assignment target")
		}
	case *ast.ExprStmt:
		r.resolveExpr(st.Value)
	case *ast.ReturnStmt:
		var rt *types.Type = types.Nil
		if st.Value != nil {
			rt = r.resolveExpr(st.Value)
		}
		if fn := r.currentFn(); fn != nil && !types.Assignable(rt, fn.retType) {
			r.errorf(errs.KindType, st.Span(), "return type %s is not assignable to declared return type %s", rt, fn.retType)
		}
	case *ast.WhileStmt:
		ct := r.resolveExpr(st.Cond)
		if !types.Assignable(ct, types.Bool) {
			r.errorf(errs.KindType, st.Cond.Span(), "while condition must be Bool, got %s", ct)
		}
		r.resolveBlock(st.Body)
	case *ast.ForStmt:
		it := r.resolveExpr(st.Iter)
		if !types.Iterable(it) {
			r.errorf(errs.KindType, st.Iter.Span(), "%s is not iterable", it)
		}
		r.syms.Push()
		r.syms.Declare(st.Var, symbols.Variable, elementTypeOf(it), true)
		// body statements resolve directly in this pushed scope so the
		// loop variable is visible without an extra nested scope.
		for _, inner := range st.Body.Stmts {
			r.resolveStmt(inner)
		}
		if st.Body.Tail != nil {
			r.resolveExpr(st.Body.Tail)
		}
		r.checkUnused(r.syms.Current())
		r.syms.Pop()
	}
}

// elementTypeOf returns the per-iteration value type for a for-loop's
// iterable, per spec §4.3.
func elementTypeOf(it *types.Type) *types.Type {
	switch it.Tag {
	case types.ArrayT:
		return it.Elem
	case types.MapT:
		return types.Tuple(it.Key, it.Elem)
	case types.StringT:
		return types.String
	default:
		if it.Name == "Range" {
			return types.Int
		}
		return types.AnyT
	}
}
