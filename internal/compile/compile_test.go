package compile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concerto-lang/concerto/internal/vm"
)

type emission struct {
	channel string
	value   string
}

// runProgram compiles src end to end and runs it on a fresh Machine,
// recording every emit() call in program order.
func runProgram(t *testing.T, src string) ([]emission, error) {
	t.Helper()
	emitted, _, err := runEntry(t, src, EntryPoint, nil)
	return emitted, err
}

// runEntry compiles src and invokes a chosen entry function with args,
// for scenarios that can't be driven through a bare `main()` (e.g. a
// Map value, which has no literal syntax and so must arrive as a
// parameter, exactly as a host/model response would).
func runEntry(t *testing.T, src, entry string, args []vm.Value) ([]emission, vm.Value, error) {
	t.Helper()
	mod, errs := Source("t.conc", src)
	require.False(t, errs.HasErrors(), "unexpected compile errors: %v", errs.Errors)

	var emitted []emission
	rc := &vm.RuntimeContext{
		Emit: func(channel string, payload vm.Value) {
			emitted = append(emitted, emission{channel: channel, value: payload.ToDisplayString()})
		},
		Print: func(string) {},
		Env:   func(string) (string, bool) { return "", false },
	}
	machine := vm.New(mod, rc)
	result, err := machine.Run(context.Background(), entry, args)
	return emitted, result, err
}

func TestScenario_HelloEmit(t *testing.T) {
	emitted, err := runProgram(t, `fn main(){ emit("g","hi"); }`)
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	assert.Equal(t, "g", emitted[0].channel)
	assert.Equal(t, "hi", emitted[0].value)
}

func TestScenario_ShortCircuitSkipsRightOperand(t *testing.T) {
	emitted, err := runProgram(t, `fn s()->Bool{emit("x",true);true} fn main(){ let _=false && s(); emit("done",true); }`)
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	assert.Equal(t, "done", emitted[0].channel)
}

func TestScenario_ForOverInclusiveRange(t *testing.T) {
	emitted, err := runProgram(t, `fn main(){ let mut t=0; for n in 1..=3 { t=t+n; } emit("t",t); }`)
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	assert.Equal(t, "t", emitted[0].channel)
	assert.Equal(t, "6", emitted[0].value)
}

func TestScenario_ForOverExclusiveRange(t *testing.T) {
	emitted, err := runProgram(t, `fn main(){ let mut t=0; for n in 0..3 { t=t+n; } emit("t",t); }`)
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	assert.Equal(t, "3", emitted[0].value)
}

func TestScenario_TryCatchFallsThroughToBareCatch(t *testing.T) {
	emitted, err := runProgram(t, `fn main(){ let o = try { throw "boom"; "a" } catch String(e) { "first" } catch { "second" }; emit("o",o); }`)
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	assert.Equal(t, "first", emitted[0].value)
}

func TestScenario_PropagateOption(t *testing.T) {
	emitted, err := runProgram(t, `fn bump(v:Option<Int>)->Option<Int>{ let n=v?; Some(n+1) } fn main(){ emit("a",bump(Some(1))); emit("b",bump(None)); }`)
	require.NoError(t, err)
	require.Len(t, emitted, 2)
	assert.Equal(t, "Some(2)", emitted[0].value)
	assert.Equal(t, "None", emitted[1].value)
}

func TestScenario_ArrayLiteralAndIndexing(t *testing.T) {
	emitted, err := runProgram(t, `fn main(){ let xs = [10, 20, 30]; emit("x", xs[1]); emit("n", xs.len()); }`)
	require.NoError(t, err)
	require.Len(t, emitted, 2)
	assert.Equal(t, "20", emitted[0].value)
	assert.Equal(t, "3", emitted[1].value)
}

func TestScenario_StructLiteralFieldAccess(t *testing.T) {
	emitted, err := runProgram(t, `
		struct Point { x: Int, y: Int }
		fn main(){ let p = Point { x: 3, y: 4 }; emit("sum", p.x + p.y); }
	`)
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	assert.Equal(t, "7", emitted[0].value)
}

func TestScenario_UnhandledErrorTerminatesRun(t *testing.T) {
	_, err := runProgram(t, `fn main(){ throw "boom"; }`)
	require.Error(t, err)
}

func TestScenario_ForOverMapYieldsKeyValueTuples(t *testing.T) {
	om := vm.NewOrderedMap()
	om.Set(vm.Str("a"), vm.Int(1))
	om.Set(vm.Str("b"), vm.Int(2))
	mapArg := vm.Value{Kind: vm.KMap, Map: om}

	emitted, _, err := runEntry(t, `
		fn sumValues(m: Map<String, Int>) {
			let mut t = 0;
			for kv in m { t = t + kv[1]; }
			emit("t", t);
			emit("n", m.len());
		}
	`, "sumValues", []vm.Value{mapArg})
	require.NoError(t, err)
	require.Len(t, emitted, 2)
	assert.Equal(t, "3", emitted[0].value)
	assert.Equal(t, "2", emitted[1].value)
}

func TestScenario_MatchOnEnumVariant(t *testing.T) {
	emitted, err := runProgram(t, `
		enum Shape { Circle(Int), Square(Int) }
		fn area(s: Shape) -> Int {
			match s {
				Shape::Circle(r) => r * r * 3,
				Shape::Square(side) => side * side,
			}
		}
		fn main(){ emit("a", area(Shape::Circle(2))); emit("b", area(Shape::Square(4))); }
	`)
	require.NoError(t, err)
	require.Len(t, emitted, 2)
	assert.Equal(t, "12", emitted[0].value)
	assert.Equal(t, "16", emitted[1].value)
}

func TestScenario_CastIntToFloatAndBack(t *testing.T) {
	emitted, err := runProgram(t, `fn main(){ let x = 7 as Float; emit("f", x); emit("i", x as Int); }`)
	require.NoError(t, err)
	require.Len(t, emitted, 2)
	assert.Equal(t, "7", emitted[1].value)
}

func TestScenario_NilCoalesceFallsBackOnNone(t *testing.T) {
	emitted, err := runProgram(t, `fn maybe()->Option<Int>{ None } fn main(){ emit("v", maybe() ?? 99); }`)
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	assert.Equal(t, "99", emitted[0].value)
}

func TestScenario_UserFunctionCall(t *testing.T) {
	emitted, err := runProgram(t, `
		fn double(n: Int) -> Int { n * 2 }
		fn main(){ emit("r", double(21)); }
	`)
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	assert.Equal(t, "42", emitted[0].value)
}
