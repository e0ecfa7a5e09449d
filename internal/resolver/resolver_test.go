package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/parser"
)

func resolveSrc(t *testing.T, src string) *errs.Batch {
	t.Helper()
	file, perrs := parser.Parse("t.conc", src)
	require.False(t, perrs.HasErrors(), "unexpected parse errors: %v", perrs.Errors)
	return Resolve(file)
}

func TestResolve_ValidProgramHasNoErrors(t *testing.T) {
	batch := resolveSrc(t, `fn add(a: Int, b: Int) -> Int { a + b }
		fn main() { let x = add(1, 2); emit("x", x); }`)
	assert.False(t, batch.HasErrors(), "%v", batch.Errors)
}

func TestResolve_UndefinedVariable(t *testing.T) {
	batch := resolveSrc(t, `fn main() { emit("x", missing); }`)
	require.True(t, batch.HasErrors())
	assert.Equal(t, errs.KindName, batch.Errors[0].Kind)
}

func TestResolve_ArityMismatch(t *testing.T) {
	batch := resolveSrc(t, `fn add(a: Int, b: Int) -> Int { a + b }
		fn main() { add(1); }`)
	require.True(t, batch.HasErrors())
	found := false
	for _, e := range batch.Errors {
		if e.Kind == errs.KindArity {
			found = true
		}
	}
	assert.True(t, found, "expected an ArityError, got %v", batch.Errors)
}

func TestResolve_TypeMismatchOnAssign(t *testing.T) {
	batch := resolveSrc(t, `fn main() { let mut x: Int = 1; x = "oops"; }`)
	require.True(t, batch.HasErrors())
	found := false
	for _, e := range batch.Errors {
		if e.Kind == errs.KindType {
			found = true
		}
	}
	assert.True(t, found)
}

func TestResolve_AssignToImmutableIsError(t *testing.T) {
	batch := resolveSrc(t, `fn main() { let x = 1; x = 2; }`)
	require.True(t, batch.HasErrors())
}

func TestResolve_NonExhaustiveMatchOnEnum(t *testing.T) {
	batch := resolveSrc(t, `
		enum Shape { Circle(Int), Square(Int) }
		fn area(s: Shape) -> Int {
			match s {
				Shape::Circle(r) => r,
			}
		}
	`)
	require.True(t, batch.HasErrors())
	found := false
	for _, e := range batch.Errors {
		if e.Kind == errs.KindNonExhaustive {
			found = true
		}
	}
	assert.True(t, found, "expected NonExhaustiveMatch, got %v", batch.Errors)
}

func TestResolve_ExhaustiveMatchOnEnumIsClean(t *testing.T) {
	batch := resolveSrc(t, `
		enum Shape { Circle(Int), Square(Int) }
		fn area(s: Shape) -> Int {
			match s {
				Shape::Circle(r) => r,
				Shape::Square(side) => side,
			}
		}
	`)
	assert.False(t, batch.HasErrors(), "%v", batch.Errors)
}

func TestResolve_UnknownCastIsError(t *testing.T) {
	batch := resolveSrc(t, `fn main() { let x = 1 as Nonsense; }`)
	require.True(t, batch.HasErrors())
}
