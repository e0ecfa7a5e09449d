package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstr_JSONRoundTrip(t *testing.T) {
	mod := Module{
		Version:   CurrentVersion,
		Constants: []Const{{Kind: ConstInt, I: 41}, {Kind: ConstString, S: "hi"}},
		Functions: []Function{
			{
				Name:   "main",
				Params: nil,
				Locals: []string{"x"},
				Code: []Instr{
					{Op: PushConst, Args: []any{0}},
					{Op: StoreLocal, Args: []any{0}},
					{Op: LoadLocal, Args: []any{0}},
					{Op: Call, Args: []any{2}},
					{Op: Return},
				},
			},
		},
		EntryPoint: "main",
	}

	data, err := json.Marshal(mod)
	require.NoError(t, err)

	var back Module
	require.NoError(t, json.Unmarshal(data, &back))

	require.Len(t, back.Functions, 1)
	fn := back.Functions[0]
	require.Len(t, fn.Code, 5)
	assert.Equal(t, PushConst, fn.Code[0].Op)
	assert.Equal(t, 0, fn.Code[0].IntArg(0))
	assert.Equal(t, Call, fn.Code[3].Op)
	assert.Equal(t, 2, fn.Code[3].IntArg(0))
	assert.Equal(t, Return, fn.Code[4].Op)
	assert.Len(t, fn.Code[4].Args, 0)

	assert.Equal(t, mod.Constants, back.Constants)
	assert.Equal(t, mod.EntryPoint, back.EntryPoint)
}

func TestInstr_MarshalUsesOpcodeName(t *testing.T) {
	data, err := json.Marshal(Instr{Op: CallMethod, Args: []any{"len", 0}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"CallMethod","args":["len",0]}`, string(data))
}

func TestInstr_UnmarshalUnknownOpcodeErrors(t *testing.T) {
	var i Instr
	err := json.Unmarshal([]byte(`{"op":"NotARealOp","args":[]}`), &i)
	assert.Error(t, err)
}

func TestInstr_StrArgTolerance(t *testing.T) {
	i := Instr{Op: LoadGlobal, Args: []any{"foo"}}
	assert.Equal(t, "foo", i.StrArg(0))
	// A non-string argument yields the zero value rather than panicking.
	i2 := Instr{Op: LoadGlobal, Args: []any{42}}
	assert.Equal(t, "", i2.StrArg(0))
}

func TestConst_Equal(t *testing.T) {
	a := Const{Kind: ConstInt, I: 5}
	b := Const{Kind: ConstInt, I: 5}
	c := Const{Kind: ConstInt, I: 6}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
