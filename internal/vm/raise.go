package vm

import (
	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/ir"
)

// raise implements the throw/catch unwind (spec §4.4/§4.5). It searches
// m.frames from innermost outward for a try region, unwinding both the
// frame stack and the operand stack to that region's entry depth and
// pushing val for the following CatchEnter to inspect. A frame with no
// try regions is simply popped along the way, which is why nested Go
// calls in Machine.call notice m.frames shrank out from under their own
// loop condition and unwind in turn without executing further
// instructions in a frame that no longer exists. With no try region
// anywhere, val is unhandled and terminates the run (caught by Run's
// deferred recover).
func (m *Machine) raise(val Value) {
	for i := len(m.frames) - 1; i >= 0; i-- {
		f := m.frames[i]
		if len(f.tryStack) == 0 {
			continue
		}
		entry := f.tryStack[len(f.tryStack)-1]
		f.tryStack = f.tryStack[:len(f.tryStack)-1]
		m.frames = m.frames[:i+1]
		if len(m.stack) > entry.stackDepth {
			m.stack = m.stack[:entry.stackDepth]
		}
		m.push(val)
		f.ip = entry.target
		return
	}
	panic(unhandled{val})
}

// execCatchEnter implements CatchEnter(type, nextCatchTarget). It peeks
// the in-flight value (never pops it here): on a type match it falls
// through, leaving the value for the StoreLocal/Pop that follows in the
// catch body; on a mismatch it jumps to nextCatchTarget (still leaving
// the value for that clause to peek in turn) or, when nextCatchTarget is
// -1, pops the value and re-raises it into an enclosing try region or
// past the top of the stack.
func (m *Machine) execCatchEnter(f *Frame, instr ir.Instr) {
	typeName := instr.StrArg(0)
	nextTarget := instr.IntArg(1)
	val := m.peek()
	if typeName == "" || errorMatchesType(val, typeName) {
		return
	}
	if nextTarget == -1 {
		m.pop()
		m.raise(val)
		return
	}
	f.ip = nextTarget
}

// errorMatchesType implements the catch-clause type test. Built-in
// RuntimeErrors match on their Kind string; user-thrown struct values
// match on their struct name.
func errorMatchesType(val Value, typeName string) bool {
	switch val.Kind {
	case KError:
		if val.RuntimeErr != nil && string(val.RuntimeErr.Kind) == typeName {
			return true
		}
		return typeName == "Error"
	case KStruct:
		return val.StructName == typeName
	default:
		return val.TypeName() == typeName
	}
}

// execPropagate implements `?` (spec §4.4): unlike Throw, it performs an
// early return of the Err/None value from the *current* function to its
// caller rather than unwinding to a try/catch region, matching the
// resolver's treatment of `?` as checked against the enclosing
// function's own Result/Option return type.
func (m *Machine) execPropagate(f *Frame) {
	v := m.pop()
	switch v.Kind {
	case KResult:
		if v.ErrV != nil {
			m.returnCurrentFrame(Err(*v.ErrV))
			return
		}
		m.push(*v.OkV)
	case KOption:
		if v.Some == nil {
			m.returnCurrentFrame(None())
			return
		}
		m.push(*v.Some)
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "'?' requires a Result or Option, got %s", v.TypeName()))
	}
}

// returnCurrentFrame pops the active frame and pushes ret for the
// caller, mirroring the Return opcode's effect without needing a
// dedicated jump to the function epilogue.
func (m *Machine) returnCurrentFrame(ret Value) {
	m.frames = m.frames[:len(m.frames)-1]
	m.push(ret)
}

// nilCoalesce implements `a ?? b`: an Option's Some unwraps, a None or
// bare Nil falls through to b, and any other value (never nil) passes
// through as itself.
func (m *Machine) nilCoalesce(lhs, rhs Value) Value {
	switch lhs.Kind {
	case KOption:
		if lhs.Some != nil {
			return *lhs.Some
		}
		return rhs
	case KNil:
		return rhs
	default:
		return lhs
	}
}
