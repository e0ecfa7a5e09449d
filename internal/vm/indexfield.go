package vm

import "github.com/concerto-lang/concerto/internal/errs"

func (m *Machine) indexGet(recv, idx Value) Value {
	switch recv.Kind {
	case KArray:
		if !requireInt(m, idx) {
			return Nil()
		}
		arr := *recv.Arr
		if idx.I < 0 || idx.I >= int64(len(arr)) {
			m.raiseRuntime(errs.New(errs.KindIndexOOB, "array index %d out of bounds (len %d)", idx.I, len(arr)))
			return Nil()
		}
		return arr[idx.I]
	case KMap:
		v, ok := recv.Map.Get(idx)
		if !ok {
			return Nil()
		}
		return v
	case KString:
		if !requireInt(m, idx) {
			return Nil()
		}
		runes := []rune(recv.S)
		if idx.I < 0 || idx.I >= int64(len(runes)) {
			m.raiseRuntime(errs.New(errs.KindIndexOOB, "string index %d out of bounds (len %d)", idx.I, len(runes)))
			return Nil()
		}
		return Str(string(runes[idx.I]))
	case KTuple:
		if !requireInt(m, idx) {
			return Nil()
		}
		if idx.I < 0 || idx.I >= int64(len(recv.Tuple)) {
			m.raiseRuntime(errs.New(errs.KindIndexOOB, "tuple index %d out of bounds (len %d)", idx.I, len(recv.Tuple)))
			return Nil()
		}
		return recv.Tuple[idx.I]
	case KRange:
		if !requireInt(m, idx) {
			return Nil()
		}
		n := rangeLen(recv)
		if idx.I < 0 || idx.I >= n {
			m.raiseRuntime(errs.New(errs.KindIndexOOB, "range index %d out of bounds (len %d)", idx.I, n))
			return Nil()
		}
		return Int(recv.RangeStart + idx.I)
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "value of type %s is not indexable", recv.TypeName()))
		return Nil()
	}
}

func (m *Machine) indexSet(recv, idx, val Value) {
	switch recv.Kind {
	case KArray:
		if !requireInt(m, idx) {
			return
		}
		arr := *recv.Arr
		if idx.I < 0 || idx.I >= int64(len(arr)) {
			m.raiseRuntime(errs.New(errs.KindIndexOOB, "array index %d out of bounds (len %d)", idx.I, len(arr)))
			return
		}
		arr[idx.I] = val
	case KMap:
		recv.Map.Set(idx, val)
	default:
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "value of type %s does not support index assignment", recv.TypeName()))
	}
}

func (m *Machine) fieldGet(recv Value, name string) Value {
	if recv.Kind != KStruct {
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "value of type %s has no field %q", recv.TypeName(), name))
		return Nil()
	}
	v, ok := recv.Fields[name]
	if !ok {
		m.raiseRuntime(errs.New(errs.KindRuntimeName, "unknown field %q on %s", name, recv.StructName))
		return Nil()
	}
	return v
}

func (m *Machine) fieldSet(recv Value, name string, val Value) {
	if recv.Kind != KStruct {
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "value of type %s has no field %q", recv.TypeName(), name))
		return
	}
	recv.Fields[name] = val
}
