package vm

import (
	"context"

	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/ir"
	"github.com/concerto-lang/concerto/internal/token"
)

// exec dispatches one instruction against f, possibly pushing/popping
// m.frames (Call/Return) or raising a RuntimeError (the try/catch
// unwind machinery in raise.go).
func (m *Machine) exec(ctx context.Context, f *Frame, instr ir.Instr) {
	switch instr.Op {
	case ir.PushConst:
		m.push(constValue(m.mod.Constants[instr.IntArg(0)]))

	case ir.LoadLocal:
		m.push(f.locals[instr.IntArg(0)])

	case ir.StoreLocal:
		f.locals[instr.IntArg(0)] = m.pop()

	case ir.LoadGlobal:
		name := instr.StrArg(0)
		v, ok := m.globals[name]
		if !ok {
			m.raiseRuntime(errs.New(errs.KindRuntimeName, "undefined name %q", name))
			return
		}
		m.push(v)

	case ir.Call:
		n := instr.IntArg(0)
		args := m.popN(n)
		callee := m.pop()
		m.call(ctx, callee, args)

	case ir.CallMethod:
		method := instr.StrArg(0)
		n := instr.IntArg(1)
		args := m.popN(n)
		recv := m.pop()
		m.push(m.callMethod(ctx, recv, method, args))

	case ir.Return:
		v := m.pop()
		m.frames = m.frames[:len(m.frames)-1]
		m.push(v)

	case ir.Jump:
		f.ip = instr.IntArg(0)

	case ir.JumpIfFalse:
		cond := m.peek()
		if !requireBool(m, cond) {
			return
		}
		if !cond.B {
			f.ip = instr.IntArg(0)
		}

	case ir.JumpIfTrue:
		cond := m.peek()
		if !requireBool(m, cond) {
			return
		}
		if cond.B {
			f.ip = instr.IntArg(0)
		}

	case ir.Pop:
		m.pop()

	case ir.BinOp:
		op := token.Kind(instr.IntArg(0))
		rhs := m.pop()
		lhs := m.pop()
		m.push(m.binOp(op, lhs, rhs))

	case ir.UnOp:
		op := token.Kind(instr.IntArg(0))
		v := m.pop()
		m.push(m.unOp(op, v))

	case ir.MakeArray:
		n := instr.IntArg(0)
		elems := m.popN(n)
		m.push(Array(elems))

	case ir.MakeMap:
		n := instr.IntArg(0)
		om := NewOrderedMap()
		pairs := m.popN(n * 2)
		for i := 0; i+1 < len(pairs); i += 2 {
			om.Set(pairs[i], pairs[i+1])
		}
		m.push(Value{Kind: KMap, Map: om})

	case ir.MakeTuple:
		n := instr.IntArg(0)
		m.push(Tuple(m.popN(n)))

	case ir.MakeStruct:
		name := instr.StrArg(0)
		n := instr.IntArg(1)
		pairs := m.popN(n * 2)
		fields := make(map[string]Value, n)
		for i := 0; i+1 < len(pairs); i += 2 {
			fields[pairs[i].S] = pairs[i+1]
		}
		m.push(Struct(name, fields))

	case ir.IndexGet:
		idx := m.pop()
		recv := m.pop()
		m.push(m.indexGet(recv, idx))

	case ir.IndexSet:
		val := m.pop()
		idx := m.pop()
		recv := m.pop()
		m.indexSet(recv, idx, val)

	case ir.FieldGet:
		name := instr.StrArg(0)
		recv := m.pop()
		m.push(m.fieldGet(recv, name))

	case ir.FieldSet:
		name := instr.StrArg(0)
		val := m.pop()
		recv := m.pop()
		m.fieldSet(recv, name, val)

	case ir.MatchCheck:
		scrutinee := m.pop()
		pat := m.mod.Patterns[instr.IntArg(0)]
		m.push(Bool(m.matchPattern(f, pat, scrutinee)))

	case ir.Throw:
		v := m.pop()
		m.raise(v)

	case ir.TryEnter:
		f.tryStack = append(f.tryStack, tryEntry{stackDepth: len(m.stack), target: instr.IntArg(0)})

	case ir.CatchEnter:
		m.execCatchEnter(f, instr)

	case ir.TryExit:
		f.tryStack = f.tryStack[:len(f.tryStack)-1]

	case ir.Propagate:
		m.execPropagate(f)

	case ir.NilCoalesce:
		rhs := m.pop()
		lhs := m.pop()
		m.push(m.nilCoalesce(lhs, rhs))

	case ir.ListenBegin:
		m.execListenBegin(ctx, f, instr)

	case ir.ListenDispatch, ir.ListenEnd:
		// VM-internal bookkeeping opcodes never emitted by the current
		// emitter (spec §4.4: "The VM drives the loop" inside ListenBegin
		// itself); kept for IR format completeness.

	case ir.Cast:
		target := instr.StrArg(0)
		v := m.pop()
		m.push(m.cast(v, target))

	case ir.MakeRange:
		inclusive, _ := instr.Args[0].(bool)
		end := m.pop()
		start := m.pop()
		if !requireInt(m, start) || !requireInt(m, end) {
			return
		}
		m.push(Value{Kind: KRange, RangeStart: start.I, RangeEnd: end.I, RangeIncl: inclusive})

	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "unimplemented opcode %s", instr.Op))
	}
}

func (m *Machine) popN(n int) []Value {
	if n == 0 {
		return nil
	}
	out := make([]Value, n)
	copy(out, m.stack[len(m.stack)-n:])
	m.stack = m.stack[:len(m.stack)-n]
	return out
}

func constValue(c ir.Const) Value {
	switch c.Kind {
	case ir.ConstInt:
		return Int(c.I)
	case ir.ConstFloat:
		return Float(c.F)
	case ir.ConstBool:
		return Bool(c.B)
	case ir.ConstString:
		return Str(c.S)
	default:
		return Nil()
	}
}

func requireBool(m *Machine, v Value) bool {
	if v.Kind != KBool {
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "expected Bool, got %s", v.TypeName()))
		return false
	}
	return true
}

func requireInt(m *Machine, v Value) bool {
	if v.Kind != KInt {
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "expected Int, got %s", v.TypeName()))
		return false
	}
	return true
}

// raiseRuntime raises a RuntimeError value the same way a `throw`
// statement would, so built-in type-check failures participate in
// try/catch exactly like user-thrown errors (spec §4.5).
func (m *Machine) raiseRuntime(e *errs.ConcertoError) {
	m.raise(RuntimeError(e))
}
