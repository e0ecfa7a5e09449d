package vm

import (
	"context"
	"fmt"

	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/ir"
)

var builtinNames = map[string]bool{
	"len": true, "typeof": true, "panic": true, "emit": true, "print": true,
	"env": true, "Ok": true, "Err": true, "Some": true, "None": true,
}

type tryEntry struct {
	stackDepth int
	target     int
}

// Frame is one call activation (spec §3 "Frame"): instruction pointer,
// local slot array, and the try-region stack active within it. The
// operand stack itself is shared across frames on the owning Machine,
// consistent with "the operand stack is empty at function boundaries".
type Frame struct {
	fn       *ir.Function
	ip       int
	locals   []Value
	tryStack []tryEntry
}

// Machine is one VM run: module, globals, and a RuntimeContext carried
// explicitly (spec §9: no process-global singletons).
type Machine struct {
	mod     *ir.Module
	globals map[string]Value
	ctx     *RuntimeContext

	stack  []Value
	frames []*Frame
}

// New constructs a Machine over a compiled module. ctx may be nil for
// programs that never touch Model/Host/emit/env/print builtins (e.g.
// unit tests of pure VM arithmetic); a Model or Host call then raises a
// RuntimeError rather than panicking, emit and print do nothing, and
// env returns None.
func New(mod *ir.Module, ctx *RuntimeContext) *Machine {
	m := &Machine{mod: mod, ctx: ctx, globals: map[string]Value{}}
	for _, fn := range mod.Functions {
		m.globals[fn.Name] = Value{Kind: KClosure, Ref: fn.Name}
	}
	for _, md := range mod.Models {
		m.globals[md.Name] = Value{Kind: KModelRef, Ref: md.Name}
	}
	for _, ad := range mod.Agents {
		m.globals[ad.Name] = Value{Kind: KHostRef, Ref: ad.Name}
	}
	for name := range builtinNames {
		if _, exists := m.globals[name]; !exists {
			m.globals[name] = Value{Kind: KClosure, Ref: name}
		}
	}
	return m
}

func (m *Machine) lookupFn(name string) *ir.Function {
	for i := range m.mod.Functions {
		if m.mod.Functions[i].Name == name {
			return &m.mod.Functions[i]
		}
	}
	return nil
}

func (m *Machine) push(v Value) { m.stack = append(m.stack, v) }

func (m *Machine) pop() Value {
	n := len(m.stack)
	v := m.stack[n-1]
	m.stack = m.stack[:n-1]
	return v
}

func (m *Machine) peek() Value { return m.stack[len(m.stack)-1] }

func (m *Machine) cur() *Frame { return m.frames[len(m.frames)-1] }

// unhandled signals a RuntimeError that reached the top of the call
// stack with no matching try region (spec §4.5: "An unhandled error at
// top-level terminates with a structured exit").
type unhandled struct{ val Value }

// Run executes entry(args...) to completion and returns its result
// value, or an error if the program raised an uncaught RuntimeError or
// the entry function does not exist.
func (m *Machine) Run(ctx context.Context, entry string, args []Value) (result Value, err error) {
	fn := m.lookupFn(entry)
	if fn == nil {
		return Nil(), fmt.Errorf("vm: entry function %q not found", entry)
	}
	defer func() {
		if r := recover(); r != nil {
			if u, ok := r.(unhandled); ok {
				result = Nil()
				err = errs.New(errs.KindPanic, "uncaught error: %s", u.val.ToDisplayString())
				return
			}
			panic(r)
		}
	}()
	m.frames = append(m.frames, m.newFrame(fn, args))
	baseDepth := len(m.frames) - 1
	for len(m.frames) > baseDepth {
		f := m.cur()
		if f.ip >= len(f.fn.Code) {
			m.frames = m.frames[:len(m.frames)-1]
			if len(m.frames) > baseDepth {
				m.push(Nil())
			}
			continue
		}
		instr := f.fn.Code[f.ip]
		f.ip++
		m.exec(ctx, f, instr)
	}
	if len(m.stack) == 0 {
		return Nil(), nil
	}
	return m.pop(), nil
}

func (m *Machine) newFrame(fn *ir.Function, args []Value) *Frame {
	locals := make([]Value, len(fn.Locals))
	for i := range locals {
		locals[i] = Nil()
	}
	copy(locals, args)
	return &Frame{fn: fn, locals: locals}
}

// call invokes callee with args, leaving its result on the operand
// stack. Used both by the Call opcode and by the agent/host runtime's
// InvokeFunc callback for `listen` handlers.
func (m *Machine) call(ctx context.Context, callee Value, args []Value) {
	if callee.Kind != KClosure {
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "value of type %s is not callable", callee.TypeName()))
		return
	}
	if builtinNames[callee.Ref] {
		m.push(m.callBuiltin(ctx, callee.Ref, args))
		return
	}
	fn := m.lookupFn(callee.Ref)
	if fn == nil {
		m.raiseRuntime(errs.New(errs.KindRuntimeName, "undefined function %q", callee.Ref))
		return
	}
	m.frames = append(m.frames, m.newFrame(fn, args))
	base := len(m.frames)
	for len(m.frames) >= base {
		f := m.cur()
		if f.ip >= len(f.fn.Code) {
			m.frames = m.frames[:len(m.frames)-1]
			if len(m.frames) >= base {
				m.push(Nil())
			}
			break
		}
		instr := f.fn.Code[f.ip]
		f.ip++
		m.exec(ctx, f, instr)
	}
}

// Invoke implements vm.InvokeFunc for the host/agent runtime to call
// back into compiled handler functions.
func (m *Machine) Invoke(fnName string, payload Value) (Value, error) {
	fn := m.lookupFn(fnName)
	if fn == nil {
		return Nil(), fmt.Errorf("vm: handler function %q not found", fnName)
	}
	before := len(m.stack)
	m.call(context.Background(), Value{Kind: KClosure, Ref: fnName}, []Value{payload})
	if len(m.stack) <= before {
		return Nil(), nil
	}
	return m.pop(), nil
}
