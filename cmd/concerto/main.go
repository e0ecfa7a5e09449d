// Command concerto is Concerto's runtime (spec §6): it loads a compiled
// `.conc-ir` artifact and executes it, wiring the VM's RuntimeContext to
// the agent/host runtime and the project manifest.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hashicorp/go-hclog"

	"github.com/concerto-lang/concerto/internal/agent"
	"github.com/concerto-lang/concerto/internal/clog"
	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/host"
	"github.com/concerto-lang/concerto/internal/ir"
	"github.com/concerto-lang/concerto/internal/manifest"
	"github.com/concerto-lang/concerto/internal/schema"
	"github.com/concerto-lang/concerto/internal/vm"
)

// CLI is concerto's kong command tree: a single `run` subcommand per
// spec §6 ("concerto run <source>.conc-ir").
type CLI struct {
	Run      RunCmd `cmd:"" help:"Execute a compiled .conc-ir artifact."`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"warn"`
}

// RunCmd executes one IR artifact to completion.
type RunCmd struct {
	IR string `arg:"" name:"ir" help:"Path to the .conc-ir artifact." type:"path"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("concerto"),
		kong.Description("Run a compiled Concerto IR artifact."),
	)
	clog.SetDefault(clog.New(clog.ParseLevel(cli.LogLevel), os.Stderr, false))
	err := kctx.Run(&cli)
	kctx.FatalIfErrorf(err)
}

func (c *RunCmd) Run(cli *CLI) error {
	data, err := os.ReadFile(c.IR)
	if err != nil {
		return fmt.Errorf("concerto: reading %q: %w", c.IR, err)
	}
	var mod ir.Module
	if err := json.Unmarshal(data, &mod); err != nil {
		return fmt.Errorf("concerto: parsing IR artifact %q: %w", c.IR, err)
	}
	if mod.Version != ir.CurrentVersion {
		return fmt.Errorf("concerto: %q was compiled with IR version %d, this runtime accepts %d", c.IR, mod.Version, ir.CurrentVersion)
	}

	man := loadManifestNear(c.IR)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		clog.Default().Warn("received interrupt, shutting down")
		cancel()
	}()

	schemas := schema.NewRegistry(mod.Schemas)
	hostRuntime := host.NewRuntime(hostConfigs(mod.Agents, man), schemas, hostLogger(cli.LogLevel))
	modelRuntime := agent.NewRuntime(mod.Models, schemas, providerClients(man))

	rc := &vm.RuntimeContext{
		Models: modelRuntime,
		Hosts:  hostRuntime,
		Emit: func(channel string, payload vm.Value) {
			fmt.Printf("[emit:%s] %s\n", channel, payload.ToDisplayString())
		},
		Print: func(s string) {
			fmt.Println(s)
		},
		Env: func(name string) (string, bool) {
			return manifest.Env(name)
		},
	}

	machine := vm.New(&mod, rc)
	result, runErr := machine.Run(ctx, mod.EntryPoint, nil)
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "concerto: "+errs.Message(runErr))
		os.Exit(1)
	}
	_ = result
	return nil
}

// loadManifestNear walks upward from the IR artifact's directory looking
// for concerto.toml (spec §6: "the compiler/runtime locates it by walking
// upward from the source file"). A missing manifest is not an error —
// programs that never touch a Model/Host still run fine without one.
func loadManifestNear(irPath string) *manifest.Manifest {
	dir := filepath.Dir(irPath)
	path, ok := manifest.Find(dir)
	if !ok {
		return nil
	}
	man, err := manifest.Load(path)
	if err != nil {
		clog.Default().Warn("ignoring unreadable manifest", "path", path, "error", err)
		return nil
	}
	return man
}

// hostConfigs builds internal/host.Config for every compiled AgentDef,
// letting a same-named [hosts.<name>] manifest table override the
// command/args/timeout the source declared and supply
// terminate_grace_seconds, which has no source-level syntax (SPEC_FULL.md
// "graceful-then-forceful termination with grace period").
func hostConfigs(defs []ir.AgentDef, man *manifest.Manifest) map[string]host.Config {
	out := make(map[string]host.Config, len(defs))
	for _, d := range defs {
		cfg := host.Config{
			Command:               d.Command,
			Args:                  d.Args,
			Init:                  d.Init,
			Timeout:               time.Duration(d.Timeout) * time.Second,
			TerminateGraceSeconds: 5,
		}
		if man != nil {
			if hc, ok := man.Hosts[d.Name]; ok {
				if hc.Command != "" {
					cfg.Command = hc.Command
				}
				if len(hc.Args) > 0 {
					cfg.Args = hc.Args
				}
				if hc.Timeout > 0 {
					cfg.Timeout = time.Duration(hc.Timeout) * time.Second
				}
				if hc.TerminateGraceSeconds > 0 {
					cfg.TerminateGraceSeconds = hc.TerminateGraceSeconds
				}
			}
		}
		out[d.Name] = cfg
	}
	return out
}

// providerClients builds the (empty, in this core implementation)
// provider-client map agent.NewRuntime dispatches through. Concrete LLM
// HTTP clients are out of spec.md §1's scope ("the VM sees only a
// ProviderClient capability"); a program that calls a Model surfaces a
// ModelError at the call site rather than at startup, since not every
// program exercises every declared model.
func providerClients(man *manifest.Manifest) map[agent.Provider]agent.ProviderClient {
	return map[agent.Provider]agent.ProviderClient{}
}

func hostLogger(level string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "host",
		Level:  hclog.LevelFromString(level),
		Output: os.Stderr,
	})
}
