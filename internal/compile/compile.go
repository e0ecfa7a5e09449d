// Package compile wires the front-end pipeline (spec §2: lexer -> parser
// -> resolver -> emitter) into the single entry point the CLI wrappers
// call, per spec §1's framing of `concertoc`/`concerto` as "thin wrappers
// that invoke compile(path)/run(ir)".
package compile

import (
	"os"

	"github.com/concerto-lang/concerto/internal/emitter"
	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/ir"
	"github.com/concerto-lang/concerto/internal/parser"
	"github.com/concerto-lang/concerto/internal/resolver"
)

// EntryPoint is the conventional function Emit treats as the program's
// entry point (spec §6 IR artifact "entry_point").
const EntryPoint = "main"

// File compiles the source at path end to end, returning the IR module on
// success or a non-empty diagnostic batch (spec §7: "compile errors batch
// per file and are all reported; compilation fails on any error").
func File(path string) (*ir.Module, *errs.Batch) {
	src, err := os.ReadFile(path)
	if err != nil {
		b := &errs.Batch{}
		b.Add(errs.Wrap(errs.KindFile, err, "reading source %q", path))
		return nil, b
	}
	return Source(path, string(src))
}

// Source compiles src (already read into memory, named file for
// diagnostics) through parse, resolve, and emit in sequence, stopping at
// the first stage that reports any diagnostic.
func Source(file, src string) (*ir.Module, *errs.Batch) {
	astFile, perrs := parser.Parse(file, src)
	if perrs.HasErrors() {
		return nil, perrs
	}
	if rerrs := resolver.Resolve(astFile); rerrs.HasErrors() {
		return nil, rerrs
	}
	return emitter.Emit(astFile, EntryPoint), &errs.Batch{}
}
