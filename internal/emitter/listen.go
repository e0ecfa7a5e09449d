package emitter

import (
	"github.com/concerto-lang/concerto/internal/ast"
	"github.com/concerto-lang/concerto/internal/ir"
)

// emitListen lowers `listen Host.execute(prompt) { on "t" => |p: T| {...}, ... }`
// into a single ListenBegin instruction (spec §4.4: "The VM drives the
// loop" — no per-message IR is emitted, since the number and ordering
// of inbound messages is only known at run time). Each handler becomes
// its own top-level function, named after the host and message type so
// compiled listings stay readable.
func (e *Emitter) emitListen(fb *funcBuilder, n *ast.Listen) {
	agentName := ""
	if n.Target != nil {
		if fa, ok := n.Target.Callee.(*ast.FieldAccess); ok {
			if id, ok := fa.Receiver.(*ast.Ident); ok {
				agentName = id.Name
			}
		}
		for _, a := range n.Target.Args {
			e.emitExpr(fb, a)
		}
	}
	var handlers []any
	for _, h := range n.Handlers {
		name := agentName + "$on$" + h.MessageType
		lfb := newFuncBuilder(name)
		lfb.declareLocal(h.Param.Name)
		lfb.params = append(lfb.params, h.Param.Name)
		e.emitBlock(lfb, h.Body)
		lfb.emit(ir.Return)
		e.mod.Functions = append(e.mod.Functions, ir.Function{Name: name, Params: lfb.params, Locals: lfb.locals, Code: lfb.code})
		handlers = append(handlers, map[string]any{
			"type":   h.MessageType,
			"fn":     name,
			"schema": h.Param.Type.Name,
		})
	}
	nargs := 0
	if n.Target != nil {
		nargs = len(n.Target.Args)
	}
	fb.emit(ir.ListenBegin, agentName, nargs, handlers)
}
