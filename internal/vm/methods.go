package vm

import (
	"context"

	"github.com/concerto-lang/concerto/internal/errs"
)

// callMethod implements CallMethod(name,nargs) (spec §4.5 "Key method
// dispatch contracts") plus the universal `to_string()` every value
// supports for string interpolation, and ModelRef/HostRef dispatch
// (spec §4.6).
func (m *Machine) callMethod(ctx context.Context, recv Value, method string, args []Value) Value {
	if method == "to_string" {
		return Str(recv.ToDisplayString())
	}
	switch recv.Kind {
	case KArray:
		return m.arrayMethod(recv, method, args)
	case KString:
		return m.stringMethod(recv, method, args)
	case KMap:
		return m.mapMethod(recv, method, args)
	case KRange:
		return m.rangeMethod(recv, method, args)
	case KModelRef:
		return m.modelMethod(ctx, recv, method, args)
	case KHostRef:
		return m.hostMethod(ctx, recv, method, args)
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeName, "value of type %s has no method %q", recv.TypeName(), method))
		return Nil()
	}
}

func (m *Machine) arrayMethod(recv Value, method string, args []Value) Value {
	arr := recv.Arr
	switch method {
	case "len":
		return Int(int64(len(*arr)))
	case "is_empty":
		return Bool(len(*arr) == 0)
	case "get":
		if len(args) != 1 || !requireInt(m, args[0]) {
			return Nil()
		}
		i := args[0].I
		if i < 0 || i >= int64(len(*arr)) {
			return None()
		}
		return Some((*arr)[i])
	case "push":
		if len(args) != 1 {
			m.raiseRuntime(errs.New(errs.KindArity, "push expects 1 argument"))
			return Nil()
		}
		*arr = append(*arr, args[0])
		return Nil()
	case "pop":
		n := len(*arr)
		if n == 0 {
			return None()
		}
		v := (*arr)[n-1]
		*arr = (*arr)[:n-1]
		return Some(v)
	case "__iter_elem__":
		if !requireInt(m, args[0]) {
			return Nil()
		}
		i := args[0].I
		if i < 0 || i >= int64(len(*arr)) {
			m.raiseRuntime(errs.New(errs.KindIndexOOB, "array index %d out of bounds (len %d)", i, len(*arr)))
			return Nil()
		}
		return (*arr)[i]
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeName, "Array has no method %q", method))
		return Nil()
	}
}

func (m *Machine) stringMethod(recv Value, method string, args []Value) Value {
	runes := []rune(recv.S)
	switch method {
	case "len":
		return Int(int64(len(runes)))
	case "is_empty":
		return Bool(len(recv.S) == 0)
	case "__iter_elem__":
		if !requireInt(m, args[0]) {
			return Nil()
		}
		i := args[0].I
		if i < 0 || i >= int64(len(runes)) {
			m.raiseRuntime(errs.New(errs.KindIndexOOB, "string index %d out of bounds (len %d)", i, len(runes)))
			return Nil()
		}
		return Str(string(runes[i]))
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeName, "String has no method %q", method))
		return Nil()
	}
}

func (m *Machine) mapMethod(recv Value, method string, args []Value) Value {
	om := recv.Map
	switch method {
	case "len":
		return Int(int64(om.Len()))
	case "is_empty":
		return Bool(om.Len() == 0)
	case "__iter_elem__":
		if !requireInt(m, args[0]) {
			return Nil()
		}
		i := args[0].I
		if i < 0 || i >= int64(om.Len()) {
			m.raiseRuntime(errs.New(errs.KindIndexOOB, "map index %d out of bounds (len %d)", i, om.Len()))
			return Nil()
		}
		keys := om.Keys()
		k := keys[i]
		v, _ := om.Get(k)
		return Tuple([]Value{k, v})
	case "get":
		if len(args) != 1 {
			m.raiseRuntime(errs.New(errs.KindArity, "get expects 1 argument"))
			return Nil()
		}
		if v, ok := om.Get(args[0]); ok {
			return Some(v)
		}
		return None()
	case "set":
		if len(args) != 2 {
			m.raiseRuntime(errs.New(errs.KindArity, "set expects 2 arguments"))
			return Nil()
		}
		om.Set(args[0], args[1])
		return Nil()
	case "has":
		if len(args) != 1 {
			m.raiseRuntime(errs.New(errs.KindArity, "has expects 1 argument"))
			return Nil()
		}
		return Bool(om.Has(args[0]))
	case "keys":
		return Array(om.Keys())
	case "values":
		return Array(om.Values())
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeName, "Map has no method %q", method))
		return Nil()
	}
}

// rangeMethod implements the subset of array-like methods a Range needs
// to drive `for x in a..b` (spec §4.3), which the emitter lowers to a
// generic len()/__iter_elem__ loop regardless of the iterable's kind.
func (m *Machine) rangeMethod(recv Value, method string, args []Value) Value {
	switch method {
	case "len":
		return Int(rangeLen(recv))
	case "is_empty":
		return Bool(rangeLen(recv) == 0)
	case "__iter_elem__":
		if !requireInt(m, args[0]) {
			return Nil()
		}
		i := args[0].I
		n := rangeLen(recv)
		if i < 0 || i >= n {
			m.raiseRuntime(errs.New(errs.KindIndexOOB, "range index %d out of bounds (len %d)", i, n))
			return Nil()
		}
		return Int(recv.RangeStart + i)
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeName, "Range has no method %q", method))
		return Nil()
	}
}

// modelMethod dispatches ModelRef.execute/execute_with_schema through
// the RuntimeContext's ModelRuntime (spec §4.6 "ModelRef").
func (m *Machine) modelMethod(ctx context.Context, recv Value, method string, args []Value) Value {
	if m.ctx == nil || m.ctx.Models == nil {
		m.raiseRuntime(errs.New(errs.KindModel, "no model runtime configured"))
		return Nil()
	}
	prompt := Nil()
	if len(args) > 0 {
		prompt = args[0]
	}
	switch method {
	case "execute":
		v, err := m.ctx.Models.Execute(ctx, recv.Ref, prompt)
		if err != nil {
			return Err(Str(err.Error()))
		}
		return Ok(v)
	case "execute_with_schema":
		schemaName := ""
		if len(args) > 1 && args[1].Kind == KString {
			schemaName = args[1].S
		}
		v, err := m.ctx.Models.ExecuteWithSchema(ctx, recv.Ref, prompt, schemaName)
		if err != nil {
			return Err(Str(err.Error()))
		}
		return Ok(v)
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeName, "ModelRef has no method %q", method))
		return Nil()
	}
}

// hostMethod dispatches HostRef.execute through the RuntimeContext's
// HostRuntime (spec §4.6 "HostRef"). `listen` bypasses this path — it
// is lowered to a standalone ListenBegin instruction instead.
func (m *Machine) hostMethod(ctx context.Context, recv Value, method string, args []Value) Value {
	if m.ctx == nil || m.ctx.Hosts == nil {
		m.raiseRuntime(errs.New(errs.KindSpawn, "no host runtime configured"))
		return Nil()
	}
	switch method {
	case "execute":
		v, err := m.ctx.Hosts.Execute(ctx, recv.Ref, args)
		if err != nil {
			return Err(Str(err.Error()))
		}
		return v
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeName, "HostRef has no method %q", method))
		return Nil()
	}
}
