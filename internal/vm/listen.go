package vm

import (
	"context"

	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/ir"
)

// execListenBegin implements ListenBegin(hostName, nargs, handlers)
// (spec §4.4/§4.6): it pops the target call's arguments, decodes the
// handler descriptor table the emitter attached as a third operand, and
// delegates the actual subprocess read/dispatch loop to the configured
// HostRuntime, which calls back into compiled handler functions through
// Machine.Invoke.
func (m *Machine) execListenBegin(ctx context.Context, f *Frame, instr ir.Instr) {
	hostName := instr.StrArg(0)
	nargs := instr.IntArg(1)
	args := m.popN(nargs)

	handlers, ok := decodeHandlers(instr.Args[2])
	if !ok {
		m.raiseRuntime(errs.New(errs.KindRuntimeType, "malformed listen handler table"))
		return
	}

	if m.ctx == nil || m.ctx.Hosts == nil {
		m.raiseRuntime(errs.New(errs.KindSpawn, "no host runtime configured"))
		return
	}

	v, err := m.ctx.Hosts.Listen(ctx, hostName, args, handlers, m.Invoke)
	if err != nil {
		m.push(Err(Str(err.Error())))
		return
	}
	m.push(v)
}

// decodeHandlers tolerates both the in-process []any{map[string]any{...}}
// shape the emitter constructs directly and the generic
// []any{map[string]interface{}} shape a JSON-decoded `.conc-ir` artifact
// produces, since both take the same concrete Go types for map values
// decoded from JSON strings.
func decodeHandlers(raw any) ([]ListenHandlerDesc, bool) {
	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]ListenHandlerDesc, 0, len(list))
	for _, item := range list {
		mp, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		out = append(out, ListenHandlerDesc{
			MessageType: stringField(mp, "type"),
			FnName:      stringField(mp, "fn"),
			SchemaName:  stringField(mp, "schema"),
		})
	}
	return out, true
}

func stringField(mp map[string]any, key string) string {
	s, _ := mp[key].(string)
	return s
}
