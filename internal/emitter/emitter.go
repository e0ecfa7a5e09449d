// Package emitter lowers a resolved Concerto AST into the opcode
// stream defined by package ir (spec §4.4). It implements the bug
// fixes the spec calls out explicitly: short-circuit logic that never
// evaluates its right operand when the left one decides the result,
// a dedicated Range value instead of a three-element array, and a
// stack-accurate try/catch lowering where every catch body ends in an
// unconditional jump to the try's exit label.
package emitter

import (
	"github.com/concerto-lang/concerto/internal/ast"
	"github.com/concerto-lang/concerto/internal/ir"
	"github.com/concerto-lang/concerto/internal/token"
)

// funcBuilder accumulates one function's code, local-slot table, and
// label-patch list while it's being emitted.
type funcBuilder struct {
	name   string
	params []string
	locals []string
	scopes []map[string]int // stack of name -> local slot, innermost last
	code   []ir.Instr
}

func newFuncBuilder(name string) *funcBuilder {
	return &funcBuilder{name: name, scopes: []map[string]int{{}}}
}

func (f *funcBuilder) pushScope() { f.scopes = append(f.scopes, map[string]int{}) }
func (f *funcBuilder) popScope()  { f.scopes = f.scopes[:len(f.scopes)-1] }

func (f *funcBuilder) declareLocal(name string) int {
	slot := len(f.locals)
	f.locals = append(f.locals, name)
	f.scopes[len(f.scopes)-1][name] = slot
	return slot
}

func (f *funcBuilder) lookupLocal(name string) (int, bool) {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if slot, ok := f.scopes[i][name]; ok {
			return slot, true
		}
	}
	return 0, false
}

func (f *funcBuilder) emit(op ir.Op, args ...any) int {
	f.code = append(f.code, ir.Instr{Op: op, Args: args})
	return len(f.code) - 1
}

// patchJumpHere rewrites a previously emitted Jump/JumpIfFalse/
// JumpIfTrue/TryEnter's target operand (always Args[0]) to the current
// end-of-code position.
func (f *funcBuilder) patchJumpHere(idx int) {
	f.code[idx].Args[0] = len(f.code)
}

func (f *funcBuilder) here() int { return len(f.code) }

// Emitter lowers a whole resolved file into one ir.Module.
type Emitter struct {
	mod       ir.Module
	constIdx  map[ir.Const]int
	schemaIdx map[string]int
	funcIdx   map[string]int
}

// Emit lowers file (already processed by the resolver) into an IR
// module. entry names the function to use as the program's entry
// point (conventionally "main").
func Emit(file *ast.File, entry string) *ir.Module {
	e := &Emitter{
		mod:       ir.Module{Version: ir.CurrentVersion, EntryPoint: entry},
		constIdx:  map[ir.Const]int{},
		schemaIdx: map[string]int{},
		funcIdx:   map[string]int{},
	}
	// Register schemas/models/agents first so forward references during
	// function emission (e.g. Agent.execute calls) can resolve indices.
	for _, d := range file.Decls {
		switch dd := d.(type) {
		case *ast.SchemaDecl:
			e.registerSchema(dd.Name, dd.Fields)
		case *ast.StructDecl:
			e.registerSchema(dd.Name, dd.Fields)
		case *ast.ModelDecl:
			e.mod.Models = append(e.mod.Models, e.lowerModel(dd))
		case *ast.AgentDecl:
			e.mod.Agents = append(e.mod.Agents, e.lowerAgent(dd))
		}
	}
	for _, d := range file.Decls {
		switch dd := d.(type) {
		case *ast.FnDecl:
			e.funcIdx[dd.Name] = len(e.mod.Functions)
			e.mod.Functions = append(e.mod.Functions, ir.Function{Name: dd.Name})
		case *ast.ToolDecl:
			e.funcIdx[dd.Name] = len(e.mod.Functions)
			e.mod.Functions = append(e.mod.Functions, ir.Function{Name: dd.Name})
		}
	}
	for _, d := range file.Decls {
		switch dd := d.(type) {
		case *ast.FnDecl:
			fn := e.lowerFunction(dd.Name, dd.Params, dd.Body)
			e.mod.Functions[e.funcIdx[dd.Name]] = fn
		case *ast.ToolDecl:
			fn := e.lowerFunction(dd.Name, dd.Params, dd.Body)
			e.mod.Functions[e.funcIdx[dd.Name]] = fn
		}
	}
	return &e.mod
}

func (e *Emitter) registerSchema(name string, fields []ast.SchemaField) {
	def := ir.SchemaDef{Name: name}
	for _, f := range fields {
		def.Fields = append(def.Fields, ir.SchemaField{Name: f.Name, Type: f.Type.Name})
	}
	e.schemaIdx[name] = len(e.mod.Schemas)
	e.mod.Schemas = append(e.mod.Schemas, def)
}

func (e *Emitter) lowerModel(d *ast.ModelDecl) ir.ModelDef {
	return ir.ModelDef{
		Name: d.Name, Provider: d.Provider, ModelName: d.ModelName,
		Temperature: d.Temperature, SystemPrompt: d.SystemPrompt,
		SchemaName: d.SchemaName, Tools: d.Tools,
	}
}

func (e *Emitter) lowerAgent(d *ast.AgentDecl) ir.AgentDef {
	init := map[string]any{}
	for k, expr := range d.Init {
		init[k] = literalValueOf(expr)
	}
	return ir.AgentDef{
		Name: d.Name, Transport: d.Transport, Command: d.Command, Args: d.Args,
		Init: init, Format: d.Format, Timeout: d.Timeout,
	}
}

// literalValueOf extracts a plain Go value from a compile-time literal
// expression, used for agent `init` blocks which are evaluated once at
// compile time rather than emitted as code (spec §4.6 treats init
// params as static configuration).
func literalValueOf(e ast.Expr) any {
	switch n := e.(type) {
	case *ast.IntLit:
		return n.Value
	case *ast.FloatLit:
		return n.Value
	case *ast.BoolLit:
		return n.Value
	case *ast.StringLit:
		return n.Value
	case *ast.NilLit:
		return nil
	default:
		return nil
	}
}

func (e *Emitter) lowerFunction(name string, params []ast.Param, body *ast.Block) ir.Function {
	fb := newFuncBuilder(name)
	for _, p := range params {
		fb.declareLocal(p.Name)
		fb.params = append(fb.params, p.Name)
	}
	e.emitBlock(fb, body)
	if body.Tail == nil {
		// Return pops its value: a body without a tail returns Nil.
		fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstNil}))
	}
	fb.emit(ir.Return)
	return ir.Function{Name: name, Params: fb.params, Locals: fb.locals, Code: fb.code}
}

func (e *Emitter) constIndex(c ir.Const) int {
	if idx, ok := e.constIdx[c]; ok {
		return idx
	}
	idx := len(e.mod.Constants)
	e.mod.Constants = append(e.mod.Constants, c)
	e.constIdx[c] = idx
	return idx
}

// ---------------------------------------------------------------------
// Statements / blocks
// ---------------------------------------------------------------------

// emitBlock emits b's statements followed by its tail expression (if
// any), leaving exactly one value on the stack when b.Tail != nil, and
// none otherwise (matching the stack-discipline invariant in spec §3).
func (e *Emitter) emitBlock(fb *funcBuilder, b *ast.Block) {
	fb.pushScope()
	for _, s := range b.Stmts {
		e.emitStmt(fb, s)
	}
	if b.Tail != nil {
		e.emitExpr(fb, b.Tail)
	}
	fb.popScope()
}

// emitBlockDiscard emits b but pops its tail value if present, used
// where a block appears in a position that doesn't consume a value
// (e.g. a while-loop body).
func (e *Emitter) emitBlockDiscard(fb *funcBuilder, b *ast.Block) {
	fb.pushScope()
	for _, s := range b.Stmts {
		e.emitStmt(fb, s)
	}
	if b.Tail != nil {
		e.emitExpr(fb, b.Tail)
		fb.emit(ir.Pop)
	}
	fb.popScope()
}

func (e *Emitter) emitStmt(fb *funcBuilder, s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LetStmt:
		e.emitExpr(fb, st.Value)
		slot := fb.declareLocal(st.Name)
		fb.emit(ir.StoreLocal, slot)
	case *ast.AssignStmt:
		e.emitExpr(fb, st.Value)
		e.emitStore(fb, st.Target)
	case *ast.ExprStmt:
		e.emitExpr(fb, st.Value)
		if exprProducesValue(st.Value) {
			fb.emit(ir.Pop)
		}
	case *ast.ReturnStmt:
		if st.Value != nil {
			e.emitExpr(fb, st.Value)
		} else {
			fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstNil}))
		}
		fb.emit(ir.Return)
	case *ast.WhileStmt:
		e.emitWhile(fb, st)
	case *ast.ForStmt:
		e.emitFor(fb, st)
	}
}

// exprProducesValue reports whether an expression statement leaves a
// value that must be popped to preserve stack discipline. Calls to
// void built-ins (emit/print) and plain `fn()->Nil` calls still push a
// Nil per the Call contract, so in practice every expression produces
// exactly one value; this hook exists for symmetry with lowerings that
// intentionally consume their own result (none currently do).
func exprProducesValue(ast.Expr) bool { return true }

func (e *Emitter) emitStore(fb *funcBuilder, target ast.Expr) {
	switch t := target.(type) {
	case *ast.Ident:
		slot, ok := fb.lookupLocal(t.Name)
		if !ok {
			slot = fb.declareLocal(t.Name)
		}
		fb.emit(ir.StoreLocal, slot)
	case *ast.FieldAccess:
		e.emitExpr(fb, t.Receiver)
		fb.emit(ir.FieldSet, t.Field)
	case *ast.Index:
		e.emitExpr(fb, t.Receiver)
		e.emitExpr(fb, t.Index)
		fb.emit(ir.IndexSet)
	}
}

func (e *Emitter) emitWhile(fb *funcBuilder, st *ast.WhileStmt) {
	top := fb.here()
	e.emitExpr(fb, st.Cond)
	exitJump := fb.emit(ir.JumpIfFalse, 0)
	fb.emit(ir.Pop)
	e.emitBlockDiscard(fb, st.Body)
	fb.emit(ir.Jump, top)
	fb.patchJumpHere(exitJump)
	fb.emit(ir.Pop)
}

// emitFor lowers `for x in iter { body }` using the iterable-specific
// opcodes mentioned in spec §4.4: MakeRange for `a..b`, otherwise the
// generic MakeArray/MakeMap/String iteration contract at the VM layer,
// all driven here through a length check plus a per-position fetch. The
// fetch step dispatches through CallMethod("__iter_elem__") rather than
// the IndexGet opcode: IndexGet's Map case is a key lookup, and a Map's
// for-loop position is not a key (a Map<Int,V> would make the two
// indistinguishable), so iteration needs its own method that each kind
// resolves against its own notion of "the nth element" — positional for
// Array/String/Range, and the (key, value) Tuple at insertion-order
// position n for Map.
func (e *Emitter) emitFor(fb *funcBuilder, st *ast.ForStmt) {
	e.emitExpr(fb, st.Iter) // iterable on stack
	iterSlot := fb.declareLocal("$iter")
	fb.emit(ir.StoreLocal, iterSlot)
	idxSlot := fb.declareLocal("$idx")
	fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstInt, I: 0}))
	fb.emit(ir.StoreLocal, idxSlot)

	top := fb.here()
	fb.emit(ir.LoadLocal, idxSlot)
	fb.emit(ir.LoadLocal, iterSlot)
	fb.emit(ir.CallMethod, "len", 0)
	fb.emit(ir.BinOp, int(token.Lt))
	exitJump := fb.emit(ir.JumpIfFalse, 0)
	fb.emit(ir.Pop)

	fb.pushScope()
	fb.emit(ir.LoadLocal, iterSlot)
	fb.emit(ir.LoadLocal, idxSlot)
	fb.emit(ir.CallMethod, "__iter_elem__", 1)
	varSlot := fb.declareLocal(st.Var)
	fb.emit(ir.StoreLocal, varSlot)
	e.emitBlockDiscard(fb, st.Body)
	fb.popScope()

	fb.emit(ir.LoadLocal, idxSlot)
	fb.emit(ir.PushConst, e.constIndex(ir.Const{Kind: ir.ConstInt, I: 1}))
	fb.emit(ir.BinOp, int(token.Plus))
	fb.emit(ir.StoreLocal, idxSlot)
	fb.emit(ir.Jump, top)

	fb.patchJumpHere(exitJump)
	fb.emit(ir.Pop)
}
