// Package resolver implements Concerto's two-pass semantic resolver
// (spec §4.3): a declaration pass that registers top-level symbols and
// built-ins, followed by a body pass that resolves every identifier,
// infers expression types, and checks the type-inference rules listed
// in the spec (assignability, arity, propagate/nil-coalesce variance,
// cast legality, and match exhaustiveness).
package resolver

import (
	"github.com/concerto-lang/concerto/internal/ast"
	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/symbols"
	"github.com/concerto-lang/concerto/internal/token"
	"github.com/concerto-lang/concerto/internal/types"
)

// builtins is the fixed set registered in the declaration pass (spec
// §4.3). Their types are intentionally permissive (Any-typed params)
// since they are dispatched by name at the VM layer, not by static
// overload resolution.
var builtinNames = []string{"len", "typeof", "panic", "emit", "print", "env", "Ok", "Err", "Some", "None"}

// funcInfo records what the body pass needs about an enclosing
// function: its declared return type, used for return/propagate/tail
// expression checks.
type funcInfo struct {
	name    string
	retType *types.Type
}

// Resolver walks one file, attaching ResolvedType/SymbolID to every
// AST node and collecting diagnostics into a Batch.
type Resolver struct {
	syms  *symbols.Table
	errs  errs.Batch
	types map[string]*types.Type // user-declared enum/struct/schema types, by name
	fn    []*funcInfo            // enclosing-function stack, for return/propagate checks
}

// Resolve runs both passes over file and returns the collected
// diagnostics. The file's nodes are mutated in place.
func Resolve(file *ast.File) *errs.Batch {
	r := &Resolver{
		syms:  symbols.NewTable(),
		types: map[string]*types.Type{},
	}
	r.declarePass(file)
	r.bodyPass(file)
	return &r.errs
}

func (r *Resolver) errorf(kind errs.Kind, sp token.Span, format string, args ...any) {
	e := errs.New(kind, format, args...).WithSpan(errs.Span{
		File: sp.File, Start: sp.Start, End: sp.End, Line: sp.Line, Col: sp.Col,
	})
	r.errs.Add(e)
}

// ---------------------------------------------------------------------
// Declaration pass
// ---------------------------------------------------------------------

func (r *Resolver) declarePass(file *ast.File) {
	for _, name := range builtinNames {
		r.syms.Declare(name, symbols.Builtin, types.AnyT, false)
	}

	// Register struct/enum/schema type shells first so mutually
	// referencing declarations (A has a field of type B, B of A) can
	// resolve field types regardless of declaration order.
	for _, d := range file.Decls {
		switch dd := d.(type) {
		case *ast.StructDecl:
			r.types[dd.Name] = &types.Type{Tag: types.StructT, Name: dd.Name}
		case *ast.EnumDecl:
			r.types[dd.Name] = &types.Type{Tag: types.EnumT, Name: dd.Name}
		case *ast.SchemaDecl:
			r.types[dd.Name] = &types.Type{Tag: types.StructT, Name: dd.Name}
		}
	}
	for _, d := range file.Decls {
		switch dd := d.(type) {
		case *ast.StructDecl:
			t := r.types[dd.Name]
			for _, f := range dd.Fields {
				if t.Fields == nil {
					t.Fields = map[string]*types.Type{}
				}
				t.Fields[f.Name] = r.resolveTypeExpr(f.Type)
			}
		case *ast.SchemaDecl:
			t := r.types[dd.Name]
			for _, f := range dd.Fields {
				if t.Fields == nil {
					t.Fields = map[string]*types.Type{}
				}
				t.Fields[f.Name] = r.resolveTypeExpr(f.Type)
			}
		case *ast.EnumDecl:
			t := r.types[dd.Name]
			t.Variants = map[string][]*types.Type{}
			for _, v := range dd.Variants {
				payload := make([]*types.Type, len(v.Fields))
				for i, ft := range v.Fields {
					payload[i] = r.resolveTypeExpr(ft)
				}
				t.Variants[v.Name] = payload
			}
		}
	}

	for _, d := range file.Decls {
		switch dd := d.(type) {
		case *ast.FnDecl:
			ft := r.functionType(dd.Params, dd.RetType)
			sym := r.syms.Declare(dd.Name, symbols.Function, ft, false)
			dd.SymbolID = sym.ID
		case *ast.ToolDecl:
			ft := r.functionType(dd.Params, dd.RetType)
			sym := r.syms.Declare(dd.Name, symbols.ToolSym, ft, false)
			dd.SymbolID = sym.ID
		case *ast.ModelDecl:
			sym := r.syms.Declare(dd.Name, symbols.ModelSym, &types.Type{Tag: types.ModelRefT, Name: dd.Name}, false)
			dd.SymbolID = sym.ID
		case *ast.AgentDecl:
			sym := r.syms.Declare(dd.Name, symbols.AgentSym, &types.Type{Tag: types.HostRefT, Name: dd.Name}, false)
			dd.SymbolID = sym.ID
		case *ast.MemoryDecl:
			r.syms.Declare(dd.Name, symbols.Variable, types.AnyT, true)
		case *ast.SchemaDecl:
			r.syms.Declare(dd.Name, symbols.SchemaSym, r.types[dd.Name], false)
		case *ast.PipelineDecl:
			r.syms.Declare(dd.Name, symbols.Function, types.AnyT, false)
		}
	}
}

func (r *Resolver) functionType(params []ast.Param, ret ast.TypeExpr) *types.Type {
	ps := make([]*types.Type, len(params))
	for i, p := range params {
		ps[i] = r.resolveTypeExpr(p.Type)
	}
	var rt *types.Type
	if ret.Name != "" {
		rt = r.resolveTypeExpr(ret)
	} else {
		rt = types.Nil
	}
	return types.Function(ps, rt)
}

// resolveTypeExpr turns a parsed TypeExpr into a types.Type, looking
// user-defined names up in r.types.
func (r *Resolver) resolveTypeExpr(te ast.TypeExpr) *types.Type {
	switch te.Name {
	case "":
		return types.AnyT
	case "Int":
		return types.Int
	case "Float":
		return types.Float
	case "Bool":
		return types.Bool
	case "String":
		return types.String
	case "Nil":
		return types.Nil
	case "Any":
		return types.AnyT
	case "Array":
		if len(te.Args) == 1 {
			return types.Array(r.resolveTypeExpr(te.Args[0]))
		}
		return types.Array(types.AnyT)
	case "Map":
		if len(te.Args) == 2 {
			return types.Map(r.resolveTypeExpr(te.Args[0]), r.resolveTypeExpr(te.Args[1]))
		}
		return types.Map(types.AnyT, types.AnyT)
	case "Option":
		if len(te.Args) == 1 {
			return types.Option(r.resolveTypeExpr(te.Args[0]))
		}
		return types.Option(types.AnyT)
	case "Result":
		if len(te.Args) == 2 {
			return types.Result(r.resolveTypeExpr(te.Args[0]), r.resolveTypeExpr(te.Args[1]))
		}
		return types.Result(types.AnyT, types.AnyT)
	default:
		if t, ok := r.types[te.Name]; ok {
			return t
		}
		r.errorf(errs.KindName, token.Span{}, "unknown type %q", te.Name)
		return types.Unk
	}
}

