package resolver

import (
	"github.com/concerto-lang/concerto/internal/ast"
	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/symbols"
	"github.com/concerto-lang/concerto/internal/token"
	"github.com/concerto-lang/concerto/internal/types"
)

// resolveExpr infers e's type, attaches it to e.ResolvedType, and
// records any diagnostics. It always returns a non-nil type (Unk on
// failure) so callers can keep checking without nil guards.
func (r *Resolver) resolveExpr(e ast.Expr) *types.Type {
	t := r.resolveExprKind(e)
	if t == nil {
		t = types.Unk
	}
	setResolvedType(e, t)
	return t
}

// setResolvedType assigns through the concrete node since ast.Expr's
// ResolvedType field is promoted but not settable through the
// interface alone.
func setResolvedType(e ast.Expr, t *types.Type) {
	switch n := e.(type) {
	case *ast.IntLit:
		n.ResolvedType = t
	case *ast.FloatLit:
		n.ResolvedType = t
	case *ast.BoolLit:
		n.ResolvedType = t
	case *ast.NilLit:
		n.ResolvedType = t
	case *ast.StringLit:
		n.ResolvedType = t
	case *ast.InterpString:
		n.ResolvedType = t
	case *ast.Ident:
		n.ResolvedType = t
	case *ast.BinOp:
		n.ResolvedType = t
	case *ast.UnOp:
		n.ResolvedType = t
	case *ast.Call:
		n.ResolvedType = t
	case *ast.MethodCall:
		n.ResolvedType = t
	case *ast.Index:
		n.ResolvedType = t
	case *ast.FieldAccess:
		n.ResolvedType = t
	case *ast.If:
		n.ResolvedType = t
	case *ast.Match:
		n.ResolvedType = t
	case *ast.Block:
		n.ResolvedType = t
	case *ast.Try:
		n.ResolvedType = t
	case *ast.Throw:
		n.ResolvedType = t
	case *ast.Lambda:
		n.ResolvedType = t
	case *ast.Propagate:
		n.ResolvedType = t
	case *ast.NilCoalesce:
		n.ResolvedType = t
	case *ast.Cast:
		n.ResolvedType = t
	case *ast.Range:
		n.ResolvedType = t
	case *ast.Listen:
		n.ResolvedType = t
	case *ast.ArrayLit:
		n.ResolvedType = t
	case *ast.TupleLit:
		n.ResolvedType = t
	case *ast.StructLit:
		n.ResolvedType = t
	}
}

func (r *Resolver) resolveExprKind(e ast.Expr) *types.Type {
	switch n := e.(type) {
	case *ast.IntLit:
		return types.Int
	case *ast.FloatLit:
		return types.Float
	case *ast.BoolLit:
		return types.Bool
	case *ast.NilLit:
		return types.Nil
	case *ast.StringLit:
		return types.String
	case *ast.InterpString:
		for _, sub := range n.Exprs {
			r.resolveExpr(sub)
		}
		return types.String
	case *ast.Ident:
		if enumName, variant, ok := splitEnumPath(n.Name); ok {
			return r.resolveEnumVariantRef(n, enumName, variant, nil)
		}
		sym, ok := r.syms.Lookup(n.Name)
		if !ok {
			r.errorf(errs.KindName, n.Span(), "undefined variable %q", n.Name)
			return types.Unk
		}
		sym.Used = true
		n.SymbolID = sym.ID
		return sym.Type
	case *ast.BinOp:
		return r.resolveBinOp(n)
	case *ast.UnOp:
		ot := r.resolveExpr(n.Operand)
		return ot
	case *ast.Call:
		return r.resolveCall(n)
	case *ast.MethodCall:
		return r.resolveMethodCall(n)
	case *ast.Index:
		return r.resolveIndex(n)
	case *ast.FieldAccess:
		return r.resolveFieldAccess(n)
	case *ast.If:
		return r.resolveIf(n)
	case *ast.Match:
		return r.resolveMatch(n)
	case *ast.Block:
		return r.resolveBlock(n)
	case *ast.Try:
		return r.resolveTry(n)
	case *ast.Throw:
		r.resolveExpr(n.Value)
		return types.Unk // a throw never produces a usable value
	case *ast.Lambda:
		return r.resolveLambda(n)
	case *ast.Propagate:
		return r.resolvePropagate(n)
	case *ast.NilCoalesce:
		return r.resolveNilCoalesce(n)
	case *ast.Cast:
		return r.resolveCast(n)
	case *ast.Range:
		r.resolveExpr(n.Start)
		r.resolveExpr(n.End)
		return &types.Type{Tag: types.StructT, Name: "Range"}
	case *ast.Listen:
		return r.resolveListen(n)
	case *ast.ArrayLit:
		return r.resolveArrayLit(n)
	case *ast.TupleLit:
		return r.resolveTupleLit(n)
	case *ast.StructLit:
		return r.resolveStructLit(n)
	}
	return types.Unk
}

// resolveArrayLit infers the element type from the first element and
// checks the rest are assignable to it, falling back to Any on a mixed
// literal (spec §3: Array is homogeneous at the type level, but the
// runtime Value itself tolerates any Vec<Value>).
func (r *Resolver) resolveArrayLit(n *ast.ArrayLit) *types.Type {
	if len(n.Elems) == 0 {
		return types.Array(types.AnyT)
	}
	elem := r.resolveExpr(n.Elems[0])
	for _, e := range n.Elems[1:] {
		et := r.resolveExpr(e)
		if !types.Assignable(et, elem) {
			elem = types.AnyT
		}
	}
	return types.Array(elem)
}

func (r *Resolver) resolveTupleLit(n *ast.TupleLit) *types.Type {
	members := make([]*types.Type, len(n.Elems))
	for i, e := range n.Elems {
		members[i] = r.resolveExpr(e)
	}
	return types.Tuple(members...)
}

// resolveStructLit checks the literal's fields against the struct's
// registered shell type (populated in the declare pass), and against
// the field set spec §3 describes for Struct(name, field-map) values.
func (r *Resolver) resolveStructLit(n *ast.StructLit) *types.Type {
	st, ok := r.types[n.TypeName]
	if !ok || st.Tag != types.StructT {
		r.errorf(errs.KindName, n.Span(), "unknown struct type %q", n.TypeName)
		for _, name := range n.FieldOrder {
			r.resolveExpr(n.Fields[name])
		}
		return types.Unk
	}
	for _, name := range n.FieldOrder {
		v := n.Fields[name]
		vt := r.resolveExpr(v)
		ft, ok := st.Fields[name]
		if !ok {
			r.errorf(errs.KindName, v.Span(), "unknown field %q on %s", name, n.TypeName)
			continue
		}
		if !types.Assignable(vt, ft) {
			r.errorf(errs.KindType, v.Span(), "field %q: cannot assign %s to %s", name, vt, ft)
		}
	}
	return st
}

func (r *Resolver) resolveBinOp(n *ast.BinOp) *types.Type {
	lt := r.resolveExpr(n.Left)
	rt := r.resolveExpr(n.Right)
	switch n.Op {
	case token.And, token.Or:
		if !types.Assignable(lt, types.Bool) || !types.Assignable(rt, types.Bool) {
			r.errorf(errs.KindType, n.Span(), "logical operator operands must be Bool")
		}
		return types.Bool
	case token.Eq, token.Ne, token.Lt, token.Le, token.Gt, token.Ge:
		return types.Bool
	default: // + - * / %
		if lt.Tag == types.FloatT || rt.Tag == types.FloatT {
			return types.Float
		}
		if lt.Tag == types.StringT && n.Op == token.Plus {
			return types.String
		}
		return types.Int
	}
}

func (r *Resolver) resolveCall(n *ast.Call) *types.Type {
	if ident, ok := n.Callee.(*ast.Ident); ok {
		if t, handled := r.resolveBuiltinCall(ident.Name, n); handled {
			return t
		}
		if enumName, variant, ok := splitEnumPath(ident.Name); ok {
			t := r.resolveEnumVariantRef(ident, enumName, variant, n.Args)
			setResolvedType(ident, t)
			return t
		}
	}
	ct := r.resolveExpr(n.Callee)
	argTypes := make([]*types.Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = r.resolveExpr(a)
	}
	if ct.Tag != types.FunctionT {
		return types.Unk
	}
	if len(n.Args) != len(ct.Params) {
		r.errorf(errs.KindArity, n.Span(), "expected %d argument(s), got %d", len(ct.Params), len(n.Args))
		return ct.Ret
	}
	for i, a := range n.Args {
		at := argTypes[i]
		if !types.Assignable(at, ct.Params[i]) {
			r.errorf(errs.KindType, a.Span(), "argument %d: cannot assign %s to parameter of type %s", i+1, at, ct.Params[i])
		}
	}
	return ct.Ret
}

// resolveBuiltinCall special-cases the fixed built-in names (spec
// §4.3) whose result types are narrower than the generic Any the
// declaration pass registers them with.
func (r *Resolver) resolveBuiltinCall(name string, n *ast.Call) (*types.Type, bool) {
	switch name {
	case "len":
		for _, a := range n.Args {
			r.resolveExpr(a)
		}
		return types.Int, true
	case "typeof":
		for _, a := range n.Args {
			r.resolveExpr(a)
		}
		return types.String, true
	case "panic":
		for _, a := range n.Args {
			r.resolveExpr(a)
		}
		return types.Unk, true
	case "emit", "print":
		for _, a := range n.Args {
			r.resolveExpr(a)
		}
		return types.Nil, true
	case "env":
		for _, a := range n.Args {
			r.resolveExpr(a)
		}
		return types.Option(types.String), true
	case "Some":
		if len(n.Args) == 1 {
			elem := r.resolveExpr(n.Args[0])
			return types.Option(elem), true
		}
	case "None":
		return types.Option(types.AnyT), true
	case "Ok":
		if len(n.Args) == 1 {
			elem := r.resolveExpr(n.Args[0])
			return types.Result(elem, types.AnyT), true
		}
	case "Err":
		if len(n.Args) == 1 {
			elem := r.resolveExpr(n.Args[0])
			return types.Result(types.AnyT, elem), true
		}
	}
	return nil, false
}

func (r *Resolver) resolveMethodCall(n *ast.MethodCall) *types.Type {
	rt := r.resolveExpr(n.Receiver)
	for _, a := range n.Args {
		r.resolveExpr(a)
	}
	if ret, ok := builtinMethodReturn(rt, n.Method); ok {
		return ret
	}
	// Agent/Model endpoints dispatch execute/execute_with_schema by
	// name rather than a static method table (spec §4.6); their result
	// type is only known dynamically.
	if rt.Tag == types.HostRefT || rt.Tag == types.ModelRefT {
		return types.Result(types.AnyT, types.AnyT)
	}
	return types.AnyT
}

// builtinMethodReturn implements the Array/String/Map method dispatch
// contracts in spec §4.5.
func builtinMethodReturn(recv *types.Type, method string) (*types.Type, bool) {
	switch recv.Tag {
	case types.ArrayT:
		switch method {
		case "len":
			return types.Int, true
		case "is_empty":
			return types.Bool, true
		case "get":
			return types.Option(recv.Elem), true
		case "push":
			return types.Nil, true
		case "pop":
			return types.Option(recv.Elem), true
		}
	case types.StringT:
		switch method {
		case "len":
			return types.Int, true
		case "is_empty":
			return types.Bool, true
		}
	case types.MapT:
		switch method {
		case "get":
			return types.Option(recv.Elem), true
		case "set":
			return types.Nil, true
		case "has":
			return types.Bool, true
		case "keys":
			return types.Array(recv.Key), true
		case "values":
			return types.Array(recv.Elem), true
		}
	}
	return nil, false
}

func (r *Resolver) resolveIndex(n *ast.Index) *types.Type {
	rt := r.resolveExpr(n.Receiver)
	r.resolveExpr(n.Index)
	switch rt.Tag {
	case types.ArrayT:
		return rt.Elem
	case types.MapT:
		return rt.Elem
	case types.StringT:
		return types.String
	default:
		return types.AnyT
	}
}

func (r *Resolver) resolveFieldAccess(n *ast.FieldAccess) *types.Type {
	rt := r.resolveExpr(n.Receiver)
	if rt.Tag == types.StructT && rt.Fields != nil {
		if ft, ok := rt.Fields[n.Field]; ok {
			return ft
		}
		r.errorf(errs.KindName, n.Span(), "unknown field %q on %s", n.Field, rt.Name)
		return types.Unk
	}
	return types.AnyT
}

func (r *Resolver) resolveIf(n *ast.If) *types.Type {
	ct := r.resolveExpr(n.Cond)
	if !types.Assignable(ct, types.Bool) {
		r.errorf(errs.KindType, n.Cond.Span(), "if condition must be Bool, got %s", ct)
	}
	tt := r.resolveBlock(n.Then)
	if n.Else == nil {
		return types.Nil
	}
	et := r.resolveExpr(n.Else)
	if types.Assignable(et, tt) {
		return tt
	}
	if types.Assignable(tt, et) {
		return et
	}
	return types.AnyT
}

func (r *Resolver) resolveTry(n *ast.Try) *types.Type {
	bt := r.resolveBlock(n.Body)
	result := bt
	for i := range n.Catches {
		c := &n.Catches[i]
		r.syms.Push()
		if c.Binding != "" {
			r.syms.Declare(c.Binding, symbols.Variable, types.AnyT, false)
		}
		ct := r.resolveBlock(c.Body)
		r.checkUnused(r.syms.Current())
		r.syms.Pop()
		if !types.Assignable(ct, result) {
			result = types.AnyT
		}
	}
	return result
}

func (r *Resolver) resolveLambda(n *ast.Lambda) *types.Type {
	r.syms.Push()
	params := make([]*types.Type, len(n.Params))
	for i, p := range n.Params {
		pt := r.resolveTypeExpr(p.Type)
		params[i] = pt
		r.syms.Declare(p.Name, symbols.Variable, pt, false)
	}
	ret := r.resolveBlock(n.Body)
	r.checkUnused(r.syms.Current())
	r.syms.Pop()
	return types.Function(params, ret)
}

func (r *Resolver) resolvePropagate(n *ast.Propagate) *types.Type {
	ot := r.resolveExpr(n.Operand)
	fn := r.currentFn()
	switch ot.Tag {
	case types.ResultT:
		if fn != nil && fn.retType.Tag == types.ResultT && !types.Assignable(ot.Err, fn.retType.Err) {
			r.errorf(errs.KindType, n.Span(), "propagated error type %s is not assignable to enclosing Result's error type %s", ot.Err, fn.retType.Err)
		}
		return ot.Elem
	case types.OptionT:
		return ot.Elem
	default:
		r.errorf(errs.KindType, n.Span(), "'?' requires a Result or Option operand, got %s", ot)
		return types.Unk
	}
}

func (r *Resolver) resolveNilCoalesce(n *ast.NilCoalesce) *types.Type {
	lt := r.resolveExpr(n.Left)
	rt := r.resolveExpr(n.Right)
	var inner *types.Type
	switch lt.Tag {
	case types.OptionT:
		inner = lt.Elem
	case types.NilT, types.Any, types.Unknown:
		inner = rt
	default:
		r.errorf(errs.KindType, n.Left.Span(), "'??' left operand must be Option or nilable, got %s", lt)
		inner = rt
	}
	if types.Assignable(rt, inner) {
		return inner
	}
	return types.AnyT
}

func (r *Resolver) resolveCast(n *ast.Cast) *types.Type {
	ot := r.resolveExpr(n.Operand)
	target := r.resolveTypeExpr(n.Target)
	if !types.CastAllowed(ot, target) {
		r.errorf(errs.KindCast, n.Span(), "cannot cast %s to %s", ot, target)
	}
	return target
}

// splitEnumPath recognizes a `::`-qualified name parsed as a single
// Ident (spec's enum constructors, e.g. `Shape::Circle`).
func splitEnumPath(name string) (enumName, variant string, ok bool) {
	for i := 0; i+1 < len(name); i++ {
		if name[i] == ':' && name[i+1] == ':' {
			return name[:i], name[i+2:], true
		}
	}
	return "", "", false
}

// resolveEnumVariantRef type-checks an `Enum::Variant` or
// `Enum::Variant(args)` reference against the enum's declared shape.
// args is nil for a bare unit-variant reference.
func (r *Resolver) resolveEnumVariantRef(n ast.Expr, enumName, variant string, args []ast.Expr) *types.Type {
	et, ok := r.types[enumName]
	if !ok || et.Tag != types.EnumT {
		r.errorf(errs.KindName, n.Span(), "unknown enum type %q", enumName)
		for _, a := range args {
			r.resolveExpr(a)
		}
		return types.Unk
	}
	payload, ok := et.Variants[variant]
	if !ok {
		r.errorf(errs.KindName, n.Span(), "enum %s has no variant %q", enumName, variant)
		for _, a := range args {
			r.resolveExpr(a)
		}
		return types.Unk
	}
	if len(args) != len(payload) {
		r.errorf(errs.KindArity, n.Span(), "%s::%s expects %d argument(s), got %d", enumName, variant, len(payload), len(args))
	}
	for i, a := range args {
		at := r.resolveExpr(a)
		if i < len(payload) && !types.Assignable(at, payload[i]) {
			r.errorf(errs.KindType, a.Span(), "argument %d: cannot assign %s to %s", i+1, at, payload[i])
		}
	}
	return et
}

func (r *Resolver) resolveListen(n *ast.Listen) *types.Type {
	if n.Target != nil {
		r.resolveExpr(n.Target)
	}
	for i := range n.Handlers {
		h := &n.Handlers[i]
		r.syms.Push()
		pt := r.resolveTypeExpr(h.Param.Type)
		r.syms.Declare(h.Param.Name, symbols.Variable, pt, false)
		r.resolveBlock(h.Body)
		r.checkUnused(r.syms.Current())
		r.syms.Pop()
	}
	return types.Result(types.AnyT, types.AnyT)
}
