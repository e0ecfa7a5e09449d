package emitter

import (
	"github.com/concerto-lang/concerto/internal/ast"
	"github.com/concerto-lang/concerto/internal/ir"
)

// emitMatch lowers a match expression into the linear arm-probe spec
// §4.4 describes: each arm's MatchCheck pushes a Bool (storing any
// pattern bindings as a side effect when it matches), a JumpIfFalse
// skips to the next arm on a miss, and a trailing Jump(end) skips the
// remaining arms once one has run. A non-exhaustive match that falls
// through every arm yields Nil explicitly.
func (e *Emitter) emitMatch(fb *funcBuilder, n *ast.Match) {
	e.emitExpr(fb, n.Scrutinee)
	scrSlot := fb.declareLocal("$match")
	fb.emit(ir.StoreLocal, scrSlot)

	var endJumps []int
	for i := range n.Arms {
		arm := &n.Arms[i]
		fb.emit(ir.LoadLocal, scrSlot)
		patIdx := e.addPattern(fb, arm.Pattern)
		fb.emit(ir.MatchCheck, patIdx)
		missJump := fb.emit(ir.JumpIfFalse, 0)
		fb.emit(ir.Pop)
		e.emitExpr(fb, arm.Body)
		endJumps = append(endJumps, fb.emit(ir.Jump, 0))
		fb.patchJumpHere(missJump)
		fb.emit(ir.Pop)
	}
	fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstNil}))
	end := fb.here()
	for _, j := range endJumps {
		fb.code[j].Args[0] = end
	}
}

// addPattern compiles p into the module's pattern table, allocating a
// local slot for any binding it introduces, and returns its index.
func (e *Emitter) addPattern(fb *funcBuilder, p ast.Pattern) int {
	var pat ir.Pattern
	switch n := p.(type) {
	case *ast.WildcardPattern:
		pat = ir.Pattern{Kind: ir.PatWildcard}
	case *ast.BindingPattern:
		slot := fb.declareLocal(n.Name)
		pat = ir.Pattern{Kind: ir.PatBinding, LocalSlot: slot}
	case *ast.LiteralPattern:
		pat = ir.Pattern{Kind: ir.PatLiteral, ConstIdx: e.constIndexOfLiteral(n.Value)}
	case *ast.TuplePattern:
		elems := make([]int, len(n.Elems))
		for i, sub := range n.Elems {
			elems[i] = e.addPattern(fb, sub)
		}
		pat = ir.Pattern{Kind: ir.PatTuple, Elems: elems}
	case *ast.ArrayPattern:
		elems := make([]int, len(n.Elems))
		for i, sub := range n.Elems {
			elems[i] = e.addPattern(fb, sub)
		}
		pat = ir.Pattern{Kind: ir.PatArray, Elems: elems}
	case *ast.StructPattern:
		fields := map[string]int{}
		for name, sub := range n.Fields {
			fields[name] = e.addPattern(fb, sub)
		}
		pat = ir.Pattern{Kind: ir.PatStruct, Path: n.TypeName, Fields: fields}
	case *ast.ConstructorPattern:
		elems := make([]int, len(n.Args))
		for i, sub := range n.Args {
			elems[i] = e.addPattern(fb, sub)
		}
		pat = ir.Pattern{Kind: ir.PatConstructor, Path: n.Path, Elems: elems}
	default:
		pat = ir.Pattern{Kind: ir.PatWildcard}
	}
	idx := len(e.mod.Patterns)
	e.mod.Patterns = append(e.mod.Patterns, pat)
	return idx
}

func (e *Emitter) constIndexOfLiteral(v ast.Expr) int {
	switch n := v.(type) {
	case *ast.IntLit:
		return e.constIndex(ir.Const{Kind: ir.ConstInt, I: n.Value})
	case *ast.FloatLit:
		return e.constIndex(ir.Const{Kind: ir.ConstFloat, F: n.Value})
	case *ast.BoolLit:
		return e.constIndex(ir.Const{Kind: ir.ConstBool, B: n.Value})
	case *ast.StringLit:
		return e.constIndex(ir.Const{Kind: ir.ConstString, S: n.Value})
	default:
		return e.constIndex(ir.Const{Kind: ir.ConstNil})
	}
}
