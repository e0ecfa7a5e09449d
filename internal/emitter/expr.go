package emitter

import (
	"github.com/concerto-lang/concerto/internal/ast"
	"github.com/concerto-lang/concerto/internal/ir"
	"github.com/concerto-lang/concerto/internal/token"
)

var builtinCallNames = map[string]bool{
	"len": true, "typeof": true, "panic": true, "emit": true, "print": true,
	"env": true, "Ok": true, "Err": true, "Some": true, "None": true,
}

// emitExpr lowers e, leaving exactly one value on the operand stack.
func (e *Emitter) emitExpr(fb *funcBuilder, expr ast.Expr) {
	switch n := expr.(type) {
	case *ast.IntLit:
		fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstInt, I: n.Value}))
	case *ast.FloatLit:
		fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstFloat, F: n.Value}))
	case *ast.BoolLit:
		fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstBool, B: n.Value}))
	case *ast.NilLit:
		fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstNil}))
	case *ast.StringLit:
		fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstString, S: n.Value}))
	case *ast.InterpString:
		e.emitInterpString(fb, n)
	case *ast.Ident:
		if slot, ok := fb.lookupLocal(n.Name); ok {
			fb.emit(ir.LoadLocal, slot)
		} else if isEnumPath(n.Name) {
			// Bare enum unit-variant reference (e.g. `Color::Red`),
			// constructed as a zero-field struct named by its full path.
			fb.emit(ir.MakeStruct, n.Name, 0)
		} else if n.Name == "None" {
			// A bare `None` is the empty Option value, built by calling the
			// zero-argument builtin rather than loading its closure.
			fb.emit(ir.LoadGlobal, n.Name)
			fb.emit(ir.Call, 0)
		} else {
			fb.emit(ir.LoadGlobal, n.Name)
		}
	case *ast.BinOp:
		e.emitBinOp(fb, n)
	case *ast.UnOp:
		e.emitExpr(fb, n.Operand)
		fb.emit(ir.UnOp, int(n.Op))
	case *ast.Call:
		e.emitCall(fb, n)
	case *ast.MethodCall:
		e.emitExpr(fb, n.Receiver)
		for _, a := range n.Args {
			e.emitExpr(fb, a)
		}
		fb.emit(ir.CallMethod, n.Method, len(n.Args))
	case *ast.Index:
		e.emitExpr(fb, n.Receiver)
		e.emitExpr(fb, n.Index)
		fb.emit(ir.IndexGet)
	case *ast.FieldAccess:
		e.emitExpr(fb, n.Receiver)
		fb.emit(ir.FieldGet, n.Field)
	case *ast.If:
		e.emitIf(fb, n)
	case *ast.Match:
		e.emitMatch(fb, n)
	case *ast.Block:
		e.emitBlock(fb, n)
	case *ast.Try:
		e.emitTry(fb, n)
	case *ast.Throw:
		e.emitExpr(fb, n.Value)
		fb.emit(ir.Throw)
	case *ast.Propagate:
		e.emitExpr(fb, n.Operand)
		fb.emit(ir.Propagate)
	case *ast.NilCoalesce:
		e.emitExpr(fb, n.Left)
		e.emitExpr(fb, n.Right)
		fb.emit(ir.NilCoalesce)
	case *ast.Cast:
		e.emitExpr(fb, n.Operand)
		fb.emit(ir.Cast, n.Target.Name)
	case *ast.Range:
		e.emitExpr(fb, n.Start)
		e.emitExpr(fb, n.End)
		fb.emit(ir.MakeRange, n.Inclusive)
	case *ast.Lambda:
		e.emitLambda(fb, n)
	case *ast.Listen:
		e.emitListen(fb, n)
	case *ast.ArrayLit:
		for _, el := range n.Elems {
			e.emitExpr(fb, el)
		}
		fb.emit(ir.MakeArray, len(n.Elems))
	case *ast.TupleLit:
		for _, el := range n.Elems {
			e.emitExpr(fb, el)
		}
		fb.emit(ir.MakeTuple, len(n.Elems))
	case *ast.StructLit:
		for _, name := range n.FieldOrder {
			fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstString, S: name}))
			e.emitExpr(fb, n.Fields[name])
		}
		fb.emit(ir.MakeStruct, n.TypeName, len(n.FieldOrder))
	default:
		fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstNil}))
	}
}

// emitInterpString lowers "...${e1}...${e2}..." into a left-to-right
// chain of string concatenations over the literal fragments and
// stringified embedded expressions.
func (e *Emitter) emitInterpString(fb *funcBuilder, n *ast.InterpString) {
	fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstString, S: n.Parts[0]}))
	for i, sub := range n.Exprs {
		e.emitExpr(fb, sub)
		fb.emit(ir.CallMethod, "to_string", 0)
		fb.emit(ir.BinOp, int(token.Plus))
		fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstString, S: n.Parts[i+1]}))
		fb.emit(ir.BinOp, int(token.Plus))
	}
}

// emitBinOp implements the short-circuit lowerings spec §4.4 calls out
// by name: `a && b` -> [eval a; JumpIfFalse end; Pop; eval b; end:],
// dually for `||`. JumpIfFalse/JumpIfTrue never pop their operand —
// only the explicit Pop that follows does — so the left operand
// survives on the stack as the result when the jump is taken.
func (e *Emitter) emitBinOp(fb *funcBuilder, n *ast.BinOp) {
	switch n.Op {
	case token.And:
		e.emitExpr(fb, n.Left)
		end := fb.emit(ir.JumpIfFalse, 0)
		fb.emit(ir.Pop)
		e.emitExpr(fb, n.Right)
		fb.patchJumpHere(end)
	case token.Or:
		e.emitExpr(fb, n.Left)
		end := fb.emit(ir.JumpIfTrue, 0)
		fb.emit(ir.Pop)
		e.emitExpr(fb, n.Right)
		fb.patchJumpHere(end)
	default:
		e.emitExpr(fb, n.Left)
		e.emitExpr(fb, n.Right)
		fb.emit(ir.BinOp, int(n.Op))
	}
}

func (e *Emitter) emitCall(fb *funcBuilder, n *ast.Call) {
	if ident, ok := n.Callee.(*ast.Ident); ok {
		if isEnumPath(ident.Name) {
			// Enum variant construction (e.g. `Shape::Circle(r)`) lowers
			// directly to MakeStruct, positional fields named by index,
			// bypassing the Call opcode entirely since there is no
			// function to look up.
			for i, a := range n.Args {
				fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstString, S: itoa(i)}))
				e.emitExpr(fb, a)
			}
			fb.emit(ir.MakeStruct, ident.Name, len(n.Args))
			return
		}
		if builtinCallNames[ident.Name] {
			fb.emit(ir.LoadGlobal, ident.Name)
			for _, a := range n.Args {
				e.emitExpr(fb, a)
			}
			fb.emit(ir.Call, len(n.Args))
			return
		}
	}
	e.emitExpr(fb, n.Callee)
	for _, a := range n.Args {
		e.emitExpr(fb, a)
	}
	fb.emit(ir.Call, len(n.Args))
}

// isEnumPath reports whether name is a `::`-qualified enum-variant
// path (spec's enum constructors), as opposed to a plain identifier.
func isEnumPath(name string) bool {
	for i := 0; i+1 < len(name); i++ {
		if name[i] == ':' && name[i+1] == ':' {
			return true
		}
	}
	return false
}

func (e *Emitter) emitIf(fb *funcBuilder, n *ast.If) {
	e.emitExpr(fb, n.Cond)
	elseJump := fb.emit(ir.JumpIfFalse, 0)
	fb.emit(ir.Pop)
	e.emitBlock(fb, n.Then)
	endJump := fb.emit(ir.Jump, 0)
	fb.patchJumpHere(elseJump)
	fb.emit(ir.Pop)
	if n.Else != nil {
		e.emitExpr(fb, n.Else)
	} else {
		fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstNil}))
	}
	fb.patchJumpHere(endJump)
}

// emitTry lowers try/catch exactly as spec §4.4 prescribes: TryEnter
// names the first catch's entry point; each CatchEnter checks its
// declared type against the in-flight error (peeking, never popping,
// so a type mismatch leaves the value for the next CatchEnter to
// inspect) and falls through to its handler on a match, or jumps to
// the next catch's entry point (or -1, meaning re-raise) otherwise.
func (e *Emitter) emitTry(fb *funcBuilder, n *ast.Try) {
	tryEnter := fb.emit(ir.TryEnter, 0)
	e.emitBlock(fb, n.Body)
	fb.emit(ir.TryExit)
	var endJumps []int
	endJumps = append(endJumps, fb.emit(ir.Jump, 0))

	catchEnterIdx := make([]int, len(n.Catches))
	catchEntryPos := make([]int, len(n.Catches))
	for i, c := range n.Catches {
		catchEntryPos[i] = fb.here()
		catchEnterIdx[i] = fb.emit(ir.CatchEnter, c.TypeName, -1)
		if c.Binding != "" {
			slot := fb.declareLocal(c.Binding)
			fb.emit(ir.StoreLocal, slot)
		} else {
			fb.emit(ir.Pop)
		}
		e.emitBlock(fb, c.Body)
		endJumps = append(endJumps, fb.emit(ir.Jump, 0))
	}
	if len(catchEntryPos) > 0 {
		fb.code[tryEnter].Args[0] = catchEntryPos[0]
	}
	for i := 0; i+1 < len(catchEnterIdx); i++ {
		fb.code[catchEnterIdx[i]].Args[1] = catchEntryPos[i+1]
	}
	end := fb.here()
	for _, j := range endJumps {
		fb.code[j].Args[0] = end
	}
}

// emitLambda emits the lambda's body as a standalone function and
// pushes a non-capturing closure reference to it. Concerto lambdas in
// this implementation are used exclusively as listen-handler bodies
// and short tool callbacks, none of which close over enclosing locals,
// so a named top-level function referenced by name is sufficient.
func (e *Emitter) emitLambda(fb *funcBuilder, n *ast.Lambda) {
	name := e.freshLambdaName()
	lfb := newFuncBuilder(name)
	for _, p := range n.Params {
		lfb.declareLocal(p.Name)
		lfb.params = append(lfb.params, p.Name)
	}
	e.emitBlock(lfb, n.Body)
	if n.Body.Tail == nil {
		lfb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstNil}))
	}
	lfb.emit(ir.Return)
	e.mod.Functions = append(e.mod.Functions, ir.Function{Name: name, Params: lfb.params, Locals: lfb.locals, Code: lfb.code})
	// LoadGlobal, not PushConst: vm.New seeds every compiled function
	// (including this freshly appended lambda) into the global table as
	// a KClosure value, so referencing it by name is how the lambda
	// becomes a callable value rather than a bare string.
	fb.emit(ir.LoadGlobal, name)
}

var lambdaCounter int

func (e *Emitter) freshLambdaName() string {
	lambdaCounter++
	return "$lambda" + itoa(lambdaCounter)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
