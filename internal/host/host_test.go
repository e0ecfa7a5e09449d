package host

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concerto-lang/concerto/internal/schema"
	"github.com/concerto-lang/concerto/internal/vm"
)

func TestRuntime_Execute_EnforcesPerReadTimeout(t *testing.T) {
	configs := map[string]Config{
		"sleeper": {
			Command:               "bash",
			Args:                  []string{"-c", "sleep 5"},
			Timeout:               300 * time.Millisecond,
			TerminateGraceSeconds: 1,
		},
	}
	r := NewRuntime(configs, schema.NewRegistry(nil), hclog.NewNullLogger())
	p, err := r.process("sleeper")
	require.NoError(t, err)

	start := time.Now()
	result, execErr := r.Execute(context.Background(), "sleeper", []vm.Value{vm.Str("ping")})
	elapsed := time.Since(start)

	require.NoError(t, execErr)
	require.Equal(t, vm.KResult, result.Kind)
	require.NotNil(t, result.ErrV)
	assert.Contains(t, result.ErrV.ToDisplayString(), "timed out")
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, StatusDead, p.Status())
}

func TestRuntime_Execute_ReturnsResult(t *testing.T) {
	configs := map[string]Config{
		"echoer": {
			Command:               "bash",
			Args:                  []string{"-c", `read line; echo '{"type":"result","value":"pong"}'`},
			Timeout:               2 * time.Second,
			TerminateGraceSeconds: 1,
		},
	}
	r := NewRuntime(configs, schema.NewRegistry(nil), hclog.NewNullLogger())
	result, err := r.Execute(context.Background(), "echoer", []vm.Value{vm.Str("ping")})
	require.NoError(t, err)
	require.Equal(t, vm.KResult, result.Kind)
	require.NotNil(t, result.OkV)
	assert.Equal(t, "pong", result.OkV.S)
}

func TestRuntime_Execute_SubprocessErrorMessage(t *testing.T) {
	configs := map[string]Config{
		"failer": {
			Command:               "bash",
			Args:                  []string{"-c", `read line; echo '{"type":"error","value":"boom"}'`},
			Timeout:               2 * time.Second,
			TerminateGraceSeconds: 1,
		},
	}
	r := NewRuntime(configs, schema.NewRegistry(nil), hclog.NewNullLogger())
	result, err := r.Execute(context.Background(), "failer", []vm.Value{vm.Str("ping")})
	require.NoError(t, err)
	require.Equal(t, vm.KResult, result.Kind)
	require.NotNil(t, result.ErrV)
	assert.Equal(t, "boom", result.ErrV.S)
}

func TestRuntime_Execute_UndefinedHost(t *testing.T) {
	r := NewRuntime(map[string]Config{}, schema.NewRegistry(nil), hclog.NewNullLogger())
	_, err := r.Execute(context.Background(), "ghost", nil)
	assert.Error(t, err)
}

func TestRuntime_Listen_DispatchesHandlerAndWritesResponse(t *testing.T) {
	configs := map[string]Config{
		"chatty": {
			Command: "bash",
			Args: []string{"-c", `
				read line
				echo '{"type":"tick","id":"1","value":{"n":1}}'
				read reply
				echo '{"type":"result","value":"done"}'
			`},
			Timeout:               2 * time.Second,
			TerminateGraceSeconds: 1,
		},
	}
	r := NewRuntime(configs, schema.NewRegistry(nil), hclog.NewNullLogger())

	invoked := false
	invoke := func(fnName string, payload vm.Value) (vm.Value, error) {
		invoked = true
		assert.Equal(t, "onTick", fnName)
		return vm.Str("ack"), nil
	}
	handlers := []vm.ListenHandlerDesc{{MessageType: "tick", FnName: "onTick"}}

	result, err := r.Listen(context.Background(), "chatty", []vm.Value{vm.Str("go")}, handlers, invoke)
	require.NoError(t, err)
	assert.True(t, invoked)
	require.Equal(t, vm.KResult, result.Kind)
	require.NotNil(t, result.OkV)
	assert.Equal(t, "done", result.OkV.S)
}

func TestNewRequestID_ReturnsNonEmptyUnique(t *testing.T) {
	a := NewRequestID()
	b := NewRequestID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
