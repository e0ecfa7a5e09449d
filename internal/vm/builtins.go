package vm

import (
	"context"

	"github.com/concerto-lang/concerto/internal/errs"
)

// callBuiltin implements the fixed free-function builtins (spec §4.5:
// len, typeof, panic, emit, print, env) plus the Option/Result
// constructors the resolver also treats as builtin calls.
func (m *Machine) callBuiltin(ctx context.Context, name string, args []Value) Value {
	switch name {
	case "len":
		return m.builtinLen(args)
	case "typeof":
		if len(args) != 1 {
			m.raiseRuntime(errs.New(errs.KindArity, "typeof expects 1 argument"))
			return Nil()
		}
		return Str(args[0].TypeName())
	case "panic":
		msg := "panic"
		if len(args) == 1 {
			msg = args[0].ToDisplayString()
		}
		// panic is deliberately not catchable by try/catch (spec §5:
		// terminates the run and all supervised subprocesses), unlike a
		// thrown RuntimeError, so it bypasses raise entirely.
		panic(unhandled{RuntimeError(errs.New(errs.KindPanic, "%s", msg))})
	case "emit":
		if len(args) != 2 || args[0].Kind != KString {
			m.raiseRuntime(errs.New(errs.KindArity, "emit expects (channel: String, payload)"))
			return Nil()
		}
		if m.ctx != nil && m.ctx.Emit != nil {
			m.ctx.Emit(args[0].S, args[1])
		}
		return Nil()
	case "print":
		if len(args) != 1 {
			m.raiseRuntime(errs.New(errs.KindArity, "print expects 1 argument"))
			return Nil()
		}
		if m.ctx != nil && m.ctx.Print != nil {
			m.ctx.Print(args[0].ToDisplayString())
		}
		return Nil()
	case "env":
		if len(args) != 1 || args[0].Kind != KString {
			m.raiseRuntime(errs.New(errs.KindArity, "env expects (name: String)"))
			return Nil()
		}
		if m.ctx == nil || m.ctx.Env == nil {
			return None()
		}
		v, ok := m.ctx.Env(args[0].S)
		if !ok {
			return None()
		}
		return Some(Str(v))
	case "Ok":
		if len(args) != 1 {
			m.raiseRuntime(errs.New(errs.KindArity, "Ok expects 1 argument"))
			return Nil()
		}
		return Ok(args[0])
	case "Err":
		if len(args) != 1 {
			m.raiseRuntime(errs.New(errs.KindArity, "Err expects 1 argument"))
			return Nil()
		}
		return Err(args[0])
	case "Some":
		if len(args) != 1 {
			m.raiseRuntime(errs.New(errs.KindArity, "Some expects 1 argument"))
			return Nil()
		}
		return Some(args[0])
	case "None":
		return None()
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeName, "undefined builtin %q", name))
		return Nil()
	}
}

func (m *Machine) builtinLen(args []Value) Value {
	if len(args) != 1 {
		m.raiseRuntime(errs.New(errs.KindArity, "len expects 1 argument"))
		return Nil()
	}
	v := args[0]
	switch v.Kind {
	case KArray:
		if v.Arr == nil {
			return Int(0)
		}
		return Int(int64(len(*v.Arr)))
	case KString:
		return Int(int64(len([]rune(v.S))))
	case KMap:
		return Int(int64(v.Map.Len()))
	case KTuple:
		return Int(int64(len(v.Tuple)))
	case KRange:
		return Int(rangeLen(v))
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "len() does not accept %s", v.TypeName()))
		return Nil()
	}
}
