package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concerto-lang/concerto/internal/ast"
)

func TestParse_SimpleFunction(t *testing.T) {
	file, errs := Parse("t.conc", `fn main() { emit("g", "hi"); }`)
	require.False(t, errs.HasErrors(), "unexpected parse errors: %v", errs.Errors)
	require.Len(t, file.Decls, 1)

	fn, ok := file.Decls[0].(*ast.FnDecl)
	require.True(t, ok)
	assert.Equal(t, "main", fn.Name)
	require.Len(t, fn.Body.Stmts, 1)
}

func TestParse_BinaryPrecedence(t *testing.T) {
	// 1 + 2 * 3 should parse as 1 + (2 * 3), i.e. the top-level BinOp is
	// '+' with a nested '*' on the right.
	file, errs := Parse("t.conc", `fn f() -> Int { 1 + 2 * 3 }`)
	require.False(t, errs.HasErrors())
	fn := file.Decls[0].(*ast.FnDecl)
	require.Empty(t, fn.Body.Stmts)
	top, ok := fn.Body.Tail.(*ast.BinOp)
	require.True(t, ok)
	_, rightIsMul := top.Right.(*ast.BinOp)
	assert.True(t, rightIsMul)
}

func TestParse_RangeExpr(t *testing.T) {
	file, errs := Parse("t.conc", `fn main() { for n in 1..=3 { } }`)
	require.False(t, errs.HasErrors())
	fn := file.Decls[0].(*ast.FnDecl)
	forStmt, ok := fn.Body.Stmts[0].(*ast.ForStmt)
	require.True(t, ok)
	rng, ok := forStmt.Iter.(*ast.Range)
	require.True(t, ok)
	assert.True(t, rng.Inclusive)
}

func TestParse_TryCatch(t *testing.T) {
	file, errs := Parse("t.conc", `fn main() {
		let o = try { throw "boom"; "a" } catch String(e) { "first" } catch { "second" };
	}`)
	require.False(t, errs.HasErrors())
	fn := file.Decls[0].(*ast.FnDecl)
	let := fn.Body.Stmts[0].(*ast.LetStmt)
	tryExpr, ok := let.Value.(*ast.Try)
	require.True(t, ok)
	require.Len(t, tryExpr.Catches, 2)
	assert.Equal(t, "String", tryExpr.Catches[0].TypeName)
	assert.Equal(t, "e", tryExpr.Catches[0].Binding)
	assert.Equal(t, "", tryExpr.Catches[1].TypeName)
}

func TestParse_StructLiteralSuppressedInIfHead(t *testing.T) {
	// `if running { ... }` must parse `running` as a bare identifier
	// condition, not the start of a struct literal consuming the block.
	file, errs := Parse("t.conc", `fn main() { if running { emit("x", 1); } }`)
	require.False(t, errs.HasErrors())
	fn := file.Decls[0].(*ast.FnDecl)
	ifExpr, ok := fn.Body.Tail.(*ast.If)
	require.True(t, ok)
	_, identCond := ifExpr.Cond.(*ast.Ident)
	assert.True(t, identCond)
	require.Len(t, ifExpr.Then.Stmts, 1)
}

func TestParse_RecoversAfterSyntaxError(t *testing.T) {
	// The first function is malformed; the parser should still recover
	// at the next `fn` and parse the second one successfully.
	file, errs := Parse("t.conc", `fn broken( { fn ok() { }`)
	require.True(t, errs.HasErrors())
	found := false
	for _, d := range file.Decls {
		if fn, ok := d.(*ast.FnDecl); ok && fn.Name == "ok" {
			found = true
		}
	}
	assert.True(t, found, "parser should recover and still parse fn ok()")
}

func TestParse_PropagateAndNilCoalesce(t *testing.T) {
	file, errs := Parse("t.conc", `fn bump(v: Option<Int>) -> Option<Int> {
		let n = v?;
		n ?? 0;
	}`)
	require.False(t, errs.HasErrors())
	fn := file.Decls[0].(*ast.FnDecl)
	let := fn.Body.Stmts[0].(*ast.LetStmt)
	_, ok := let.Value.(*ast.Propagate)
	assert.True(t, ok)

	exprStmt := fn.Body.Stmts[1].(*ast.ExprStmt)
	_, ok = exprStmt.Value.(*ast.NilCoalesce)
	assert.True(t, ok)
}
