// Package host implements Concerto's HostRef subprocess runtime (spec
// §4.6): process spawn/init/terminate lifecycle and NDJSON-over-stdio
// framing. Grounded on kadirpekel-hector/pkg/plugins/grpc/loader.go's
// spawn/Kill lifecycle and pkg/plugins/types.go's status enum, rewritten
// around os/exec + bufio.Scanner NDJSON line framing instead of
// go-plugin's gRPC transport (see DESIGN.md's dropped-dependency note:
// this implementation's hosts are plain stdio subprocesses, not gRPC
// plugin servers, so hashicorp/go-plugin itself has no component to
// bind to).
package host

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/schema"
	"github.com/concerto-lang/concerto/internal/vm"
)

// Status mirrors the teacher's PluginStatus enum, narrowed to the
// lifecycle spec §3/§4.6 actually names for a Host subprocess.
type Status string

const (
	StatusSpawned     Status = "spawned"
	StatusInitialized Status = "initialized"
	StatusActive      Status = "active"
	StatusTerminating Status = "terminating"
	StatusDead        Status = "dead"
)

// Config is one compiled AgentDef's runtime configuration (spec §4.6
// "HostRef (agent subprocess)").
type Config struct {
	Command               string
	Args                  []string
	Init                  map[string]any
	Timeout               time.Duration
	TerminateGraceSeconds int
}

// inbound is one NDJSON line from the subprocess (spec §4.6 "Wire
// protocol").
type inbound struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	raw  map[string]any
}

// Process supervises one spawned host subprocess: its pipes, reader
// goroutine, and lifecycle state.
type Process struct {
	name   string
	cfg    Config
	logger hclog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan inbound
	errCh  chan error
	stderr []byte

	mu     sync.Mutex
	status Status
}

// Spawn forks cfg.Command and starts the reader goroutine that
// demultiplexes NDJSON lines into a bounded channel (spec §4.6 step 1).
func Spawn(name string, cfg Config, logger hclog.Logger) (*Process, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errs.Wrap(errs.KindSpawn, err, "host %q: creating stdin pipe", name)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errs.Wrap(errs.KindSpawn, err, "host %q: creating stdout pipe", name)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errs.Wrap(errs.KindSpawn, err, "host %q: creating stderr pipe", name)
	}
	if err := cmd.Start(); err != nil {
		return nil, errs.Wrap(errs.KindSpawn, err, "host %q: starting %q", name, cfg.Command)
	}

	p := &Process{
		name:   name,
		cfg:    cfg,
		logger: logger.Named(name),
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan inbound, 64),
		errCh:  make(chan error, 1),
		status: StatusSpawned,
	}
	go p.readLoop(stdout)
	go p.captureStderr(stderr)

	if len(cfg.Init) > 0 {
		if err := p.sendInit(); err != nil {
			p.kill()
			return nil, err
		}
	}
	p.setStatus(StatusInitialized)
	return p, nil
}

func (p *Process) setStatus(s Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// Status returns the process's current lifecycle state.
func (p *Process) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Process) readLoop(stdout io.ReadCloser) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var raw map[string]any
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := json.Unmarshal(line, &raw); err != nil {
			p.logger.Warn("malformed NDJSON line", "error", err)
			continue
		}
		typ, _ := raw["type"].(string)
		id, _ := raw["id"].(string)
		p.lines <- inbound{Type: typ, ID: id, raw: raw}
	}
	close(p.lines)
	if err := scanner.Err(); err != nil {
		p.errCh <- err
	}
}

func (p *Process) captureStderr(stderr io.ReadCloser) {
	buf, _ := io.ReadAll(stderr)
	p.mu.Lock()
	p.stderr = buf
	p.mu.Unlock()
}

func (p *Process) sendInit() error {
	msg := map[string]any{"type": "init", "params": p.cfg.Init}
	if err := p.writeLine(msg); err != nil {
		return errs.Wrap(errs.KindSpawn, err, "host %q: sending init", p.name)
	}
	select {
	case m, ok := <-p.lines:
		if !ok {
			return errs.New(errs.KindSpawn, "host %q: closed before init_ack", p.name)
		}
		if m.Type != "init_ack" {
			return errs.New(errs.KindProtocol, "host %q: expected init_ack, got %q", p.name, m.Type)
		}
		return nil
	case <-time.After(p.cfg.Timeout):
		return errs.New(errs.KindTimeout, "host %q: init_ack timed out", p.name)
	}
}

func (p *Process) writeLine(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = p.stdin.Write(b)
	return err
}

// readWithDeadline bounds one blocking read by the host's configured
// timeout (spec §4.6: "a per-read deadline ... MUST bound each blocking
// read; expiry yields a TimeoutError and terminates the subprocess" —
// fixing the non-enforcement bug the spec calls out explicitly).
func (p *Process) readWithDeadline(ctx context.Context) (inbound, error) {
	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()
	select {
	case m, ok := <-p.lines:
		if !ok {
			return inbound{}, errs.New(errs.KindHostExited, "host %q: subprocess exited (stderr: %s)", p.name, p.stderrTail())
		}
		return m, nil
	case err := <-p.errCh:
		return inbound{}, errs.Wrap(errs.KindProtocol, err, "host %q: reader error", p.name)
	case <-timer.C:
		p.Terminate()
		return inbound{}, errs.New(errs.KindTimeout, "host %q: read timed out after %s", p.name, p.cfg.Timeout)
	case <-ctx.Done():
		p.Terminate()
		return inbound{}, errs.Wrap(errs.KindTimeout, ctx.Err(), "host %q: context cancelled", p.name)
	}
}

func (p *Process) stderrTail() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.stderr) > 512 {
		return string(p.stderr[len(p.stderr)-512:])
	}
	return string(p.stderr)
}

// Terminate implements step 4 of the lifecycle: close stdin, await exit
// up to the configured grace period, then SIGKILL.
func (p *Process) Terminate() {
	p.mu.Lock()
	if p.status == StatusTerminating || p.status == StatusDead {
		p.mu.Unlock()
		return
	}
	p.status = StatusTerminating
	p.mu.Unlock()

	_ = p.stdin.Close()
	done := make(chan struct{})
	go func() {
		_ = p.cmd.Wait()
		close(done)
	}()
	grace := time.Duration(p.cfg.TerminateGraceSeconds) * time.Second
	select {
	case <-done:
	case <-time.After(grace):
		p.kill()
		<-done
	}
	p.setStatus(StatusDead)
}

func (p *Process) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// Runtime implements vm.HostRuntime (spec §4.6), supervising one
// long-lived Process per configured host name and reusing it across
// Execute/Listen calls within a single program run.
type Runtime struct {
	configs map[string]Config
	schemas *schema.Registry
	logger  hclog.Logger

	mu        sync.Mutex
	processes map[string]*Process
}

func NewRuntime(configs map[string]Config, schemas *schema.Registry, logger hclog.Logger) *Runtime {
	return &Runtime{configs: configs, schemas: schemas, logger: logger, processes: map[string]*Process{}}
}

func (r *Runtime) process(name string) (*Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.processes[name]; ok && p.Status() != StatusDead {
		return p, nil
	}
	cfg, ok := r.configs[name]
	if !ok {
		return nil, errs.New(errs.KindSpawn, "undefined host %q", name)
	}
	p, err := Spawn(name, cfg, r.logger)
	if err != nil {
		return nil, err
	}
	r.processes[name] = p
	return p, nil
}

// Execute implements vm.HostRuntime.Execute: write the prompt and drain
// messages until a terminal result/error. Every other message is logged
// at debug level and skipped; it is not emitted to any channel.
func (r *Runtime) Execute(ctx context.Context, hostName string, args []vm.Value) (vm.Value, error) {
	p, err := r.process(hostName)
	if err != nil {
		return vm.Nil(), err
	}
	prompt := ""
	if len(args) > 0 {
		prompt = args[0].ToDisplayString()
	}
	if err := p.writeLine(map[string]any{"type": "prompt", "text": prompt}); err != nil {
		return vm.Nil(), errs.Wrap(errs.KindProtocol, err, "host %q: writing prompt", hostName)
	}
	p.setStatus(StatusActive)
	for {
		m, err := p.readWithDeadline(ctx)
		if err != nil {
			return vm.Err(vm.Str(err.Error())), nil
		}
		switch m.Type {
		case "result":
			return vm.Ok(fromAny(m.raw["value"])), nil
		case "error":
			return vm.Err(fromAny(m.raw["value"])), nil
		default:
			// No registered handler in a bare execute() call: log the
			// message kind and keep reading.
			r.logger.Debug("unhandled message in execute()", "host", hostName, "type", m.Type)
		}
	}
}

// Listen implements vm.HostRuntime.Listen (spec §4.6 "Listen path"): the
// VM drives the Idle -> ReadLine -> Parse -> Exit/Invoke/default state
// machine itself, dispatching each non-terminal message to its
// registered handler through invoke, validating against a declared
// schema first when one is named, and writing a correlated response
// back to the subprocess stdin when the handler returns a value.
func (r *Runtime) Listen(ctx context.Context, hostName string, args []vm.Value, handlers []vm.ListenHandlerDesc, invoke vm.InvokeFunc) (vm.Value, error) {
	p, err := r.process(hostName)
	if err != nil {
		return vm.Nil(), err
	}
	prompt := ""
	if len(args) > 0 {
		prompt = args[0].ToDisplayString()
	}
	if err := p.writeLine(map[string]any{"type": "prompt", "text": prompt}); err != nil {
		return vm.Nil(), errs.Wrap(errs.KindProtocol, err, "host %q: writing prompt", hostName)
	}
	p.setStatus(StatusActive)

	byType := make(map[string]vm.ListenHandlerDesc, len(handlers))
	for _, h := range handlers {
		byType[h.MessageType] = h
	}

	for {
		m, err := p.readWithDeadline(ctx)
		if err != nil {
			return vm.Err(vm.Str(err.Error())), nil
		}
		switch m.Type {
		case "result":
			return vm.Ok(fromAny(m.raw["value"])), nil
		case "error":
			return vm.Err(fromAny(m.raw["value"])), nil
		}
		h, ok := byType[m.Type]
		if !ok {
			r.logger.Debug("unhandled message in listen()", "host", hostName, "type", m.Type)
			continue
		}
		payload := m.raw["value"]
		var payloadValue vm.Value
		if h.SchemaName != "" {
			pm, ok := payload.(map[string]any)
			if !ok {
				return vm.Nil(), errs.New(errs.KindListenSchema, "handler %q expects schema %q, got non-object payload", m.Type, h.SchemaName)
			}
			if err := r.schemas.Validate(h.SchemaName, pm); err != nil {
				return vm.Nil(), err
			}
			payloadValue = schema.ToValue(h.SchemaName, pm)
		} else {
			payloadValue = fromAny(payload)
		}
		result, err := invoke(h.FnName, payloadValue)
		if err != nil {
			return vm.Nil(), errs.Wrap(errs.KindProtocol, err, "handler %q failed", m.Type)
		}
		if result.Kind != vm.KNil {
			resp := map[string]any{
				"type":        "response",
				"in_reply_to": m.Type,
				"value":       toAny(result),
			}
			if m.ID != "" {
				resp["in_reply_to_id"] = m.ID
			}
			if err := p.writeLine(resp); err != nil {
				return vm.Nil(), errs.Wrap(errs.KindProtocol, err, "host %q: writing response", hostName)
			}
		}
	}
}

// NewRequestID returns a fresh correlation id (spec §5 "each response
// carries in_reply_to_id when the inbound message had an id").
func NewRequestID() string { return uuid.NewString() }

func fromAny(v any) vm.Value {
	switch t := v.(type) {
	case nil:
		return vm.Nil()
	case bool:
		return vm.Bool(t)
	case float64:
		if t == float64(int64(t)) {
			return vm.Int(int64(t))
		}
		return vm.Float(t)
	case string:
		return vm.Str(t)
	case []any:
		elems := make([]vm.Value, len(t))
		for i, e := range t {
			elems[i] = fromAny(e)
		}
		return vm.Array(elems)
	case map[string]any:
		om := vm.NewOrderedMap()
		for k, e := range t {
			om.Set(vm.Str(k), fromAny(e))
		}
		return vm.Value{Kind: vm.KMap, Map: om}
	default:
		return vm.Str(fmt.Sprintf("%v", t))
	}
}

func toAny(v vm.Value) any {
	switch v.Kind {
	case vm.KNil:
		return nil
	case vm.KInt:
		return v.I
	case vm.KFloat:
		return v.F
	case vm.KBool:
		return v.B
	case vm.KString:
		return v.S
	case vm.KArray:
		if v.Arr == nil {
			return []any{}
		}
		out := make([]any, len(*v.Arr))
		for i, e := range *v.Arr {
			out[i] = toAny(e)
		}
		return out
	case vm.KMap:
		out := map[string]any{}
		for _, k := range v.Map.Keys() {
			val, _ := v.Map.Get(k)
			out[k.S] = toAny(val)
		}
		return out
	case vm.KStruct:
		out := map[string]any{}
		for k, fv := range v.Fields {
			out[k] = toAny(fv)
		}
		return out
	default:
		return v.ToDisplayString()
	}
}
