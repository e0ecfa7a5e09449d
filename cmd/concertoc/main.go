// Command concertoc is Concerto's ahead-of-time compiler (spec §6): it
// reads a `.conc` source file and writes the compiled `.conc-ir`
// artifact, or (with --check) validates the source without writing
// anything.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/concerto-lang/concerto/internal/compile"
	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/ir"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	spanColor = color.New(color.FgCyan)
)

// CLI is concertoc's kong command tree. A single bare invocation compiles
// one source file, so there is no subcommand layer beyond the root flags.
type CLI struct {
	Source     string `arg:"" name:"source" help:"Path to the .conc source file." type:"path"`
	Check      bool   `help:"Compile without writing the .conc-ir artifact."`
	Output     string `short:"o" help:"Output path for the .conc-ir artifact (default: source with .conc-ir extension)." type:"path"`
	DumpFormat string `help:"Print the compiled IR to stdout in this format, with or without --check." enum:"none,json,yaml" default:"none"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("concertoc"),
		kong.Description("Compile Concerto source to the .conc-ir intermediate representation."),
	)
	kctx.FatalIfErrorf(run(&cli))
}

func run(cli *CLI) error {
	mod, batch := compile.File(cli.Source)
	if batch.HasErrors() {
		printDiagnostics(cli.Source, batch)
		os.Exit(1)
	}

	if cli.DumpFormat != "none" {
		if err := dumpModule(mod, cli.DumpFormat); err != nil {
			return err
		}
	}

	if cli.Check {
		return nil
	}

	out := cli.Output
	if out == "" {
		out = outputPath(cli.Source)
	}
	data, err := json.MarshalIndent(mod, "", "  ")
	if err != nil {
		return fmt.Errorf("concertoc: marshaling IR artifact: %w", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("concertoc: writing %q: %w", out, err)
	}
	return nil
}

func outputPath(source string) string {
	if strings.HasSuffix(source, ".conc") {
		return strings.TrimSuffix(source, ".conc") + ".conc-ir"
	}
	return source + ".conc-ir"
}

func dumpModule(mod *ir.Module, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(mod, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(mod)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	}
	return nil
}

// printDiagnostics renders every batched compile error to stderr with a
// caret under the offending span, in the manner of a production compiler
// (SPEC_FULL.md's "structured diagnostics with source snippets").
func printDiagnostics(path string, batch *errs.Batch) {
	src, readErr := os.ReadFile(path)
	lines := []string(nil)
	if readErr == nil {
		lines = strings.Split(string(src), "\n")
	}
	for _, e := range batch.Errors {
		errColor.Fprintf(os.Stderr, "error[%s]: ", e.Kind)
		fmt.Fprintln(os.Stderr, e.Message)
		if e.Span == nil || e.Span.Line <= 0 || e.Span.Line > len(lines) {
			continue
		}
		spanColor.Fprintf(os.Stderr, "  --> %s:%d:%d\n", e.Span.File, e.Span.Line, e.Span.Col)
		line := lines[e.Span.Line-1]
		fmt.Fprintf(os.Stderr, "   | %s\n", line)
		col := e.Span.Col
		if col < 1 {
			col = 1
		}
		fmt.Fprintf(os.Stderr, "   | %s^\n", strings.Repeat(" ", col-1))
	}
	fmt.Fprintf(os.Stderr, "%d error(s)\n", len(batch.Errors))
}
