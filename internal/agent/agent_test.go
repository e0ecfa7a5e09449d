package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concerto-lang/concerto/internal/ir"
	"github.com/concerto-lang/concerto/internal/schema"
	"github.com/concerto-lang/concerto/internal/vm"
)

// fakeClient is a scripted ProviderClient: each call pops the next
// response/error pair off its queue.
type fakeClient struct {
	provider  Provider
	responses []Response
	errs      []error
	calls     []Request
}

func (f *fakeClient) Provider() Provider { return f.provider }

func (f *fakeClient) Execute(ctx context.Context, req Request) (Response, error) {
	f.calls = append(f.calls, req)
	i := len(f.calls) - 1
	var resp Response
	var err error
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return resp, err
}

func personSchemas() *schema.Registry {
	return schema.NewRegistry([]ir.SchemaDef{{
		Name: "Person",
		Fields: []ir.SchemaField{
			{Name: "name", Type: "String"},
			{Name: "age", Type: "Int"},
		},
	}})
}

func TestRuntime_Execute_ReturnsPlainText(t *testing.T) {
	client := &fakeClient{provider: ProviderOpenAI, responses: []Response{{Text: "hello there"}}}
	r := NewRuntime(
		[]ir.ModelDef{{Name: "m1", Provider: "openai", ModelName: "gpt-4o"}},
		personSchemas(),
		map[Provider]ProviderClient{ProviderOpenAI: client},
	)
	v, err := r.Execute(context.Background(), "m1", vm.Str("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hello there", v.S)
}

func TestRuntime_Execute_UndefinedModel(t *testing.T) {
	r := NewRuntime(nil, personSchemas(), map[Provider]ProviderClient{})
	_, err := r.Execute(context.Background(), "ghost", vm.Str("hi"))
	assert.Error(t, err)
}

func TestRuntime_Execute_UnconfiguredProvider(t *testing.T) {
	r := NewRuntime(
		[]ir.ModelDef{{Name: "m1", Provider: "anthropic", ModelName: "claude"}},
		personSchemas(),
		map[Provider]ProviderClient{},
	)
	_, err := r.Execute(context.Background(), "m1", vm.Str("hi"))
	assert.Error(t, err)
}

func TestRuntime_ExecuteWithSchema_NativeSucceedsFirstTry(t *testing.T) {
	client := &fakeClient{
		provider:  ProviderOpenAI,
		responses: []Response{{JSON: map[string]any{"name": "Ada", "age": float64(30)}}},
	}
	r := NewRuntime(
		[]ir.ModelDef{{Name: "m1", Provider: "openai", ModelName: "gpt-4o", SchemaName: "Person"}},
		personSchemas(),
		map[Provider]ProviderClient{ProviderOpenAI: client},
	)
	v, err := r.ExecuteWithSchema(context.Background(), "m1", vm.Str("describe Ada"), "Person")
	require.NoError(t, err)
	require.Equal(t, vm.KStruct, v.Kind)
	assert.Equal(t, vm.Str("Ada"), v.Fields["name"])

	require.Len(t, client.calls, 1)
	assert.Equal(t, StrategyNative, client.calls[0].Strategy)
}

func TestRuntime_ExecuteWithSchema_RetriesOnMismatchThenSucceeds(t *testing.T) {
	client := &fakeClient{
		provider: ProviderOpenAI,
		responses: []Response{
			{JSON: map[string]any{"name": "Ada"}}, // missing "age" -> fails validation
			{JSON: map[string]any{"name": "Ada", "age": float64(30)}},
		},
	}
	r := NewRuntime(
		[]ir.ModelDef{{Name: "m1", Provider: "openai", ModelName: "gpt-4o", SchemaName: "Person"}},
		personSchemas(),
		map[Provider]ProviderClient{ProviderOpenAI: client},
	)
	v, err := r.ExecuteWithSchema(context.Background(), "m1", vm.Str("describe Ada"), "Person")
	require.NoError(t, err)
	assert.Equal(t, vm.Int(30), v.Fields["age"])
	require.Len(t, client.calls, 2)
	assert.Contains(t, client.calls[1].SystemPrompt, "did not match the required schema")
}

func TestRuntime_ExecuteWithSchema_ExhaustsRetriesReturnsSchemaMismatch(t *testing.T) {
	client := &fakeClient{
		provider: ProviderOpenAI,
		responses: []Response{
			{JSON: map[string]any{"name": "Ada"}},
			{JSON: map[string]any{"name": "Ada"}},
			{JSON: map[string]any{"name": "Ada"}},
		},
	}
	r := NewRuntime(
		[]ir.ModelDef{{Name: "m1", Provider: "openai", ModelName: "gpt-4o", SchemaName: "Person"}},
		personSchemas(),
		map[Provider]ProviderClient{ProviderOpenAI: client},
	)
	_, err := r.ExecuteWithSchema(context.Background(), "m1", vm.Str("describe Ada"), "Person")
	require.Error(t, err)
	assert.Len(t, client.calls, MaxSchemaRetries)
}

func TestRuntime_ExecuteWithSchema_ExtractsJSONFromFreeText(t *testing.T) {
	client := &fakeClient{
		provider:  ProviderOllama,
		responses: []Response{{Text: `{"name":"Ada","age":30}`}},
	}
	r := NewRuntime(
		[]ir.ModelDef{{Name: "m1", Provider: "ollama", ModelName: "llama3", SchemaName: "Person"}},
		personSchemas(),
		map[Provider]ProviderClient{ProviderOllama: client},
	)
	v, err := r.ExecuteWithSchema(context.Background(), "m1", vm.Str("describe Ada"), "Person")
	require.NoError(t, err)
	assert.Equal(t, vm.Str("Ada"), v.Fields["name"])
	assert.Equal(t, StrategyToolTrick, client.calls[0].Strategy)
}

func TestRuntime_ExecuteWithSchema_UnknownSchema(t *testing.T) {
	client := &fakeClient{provider: ProviderOpenAI}
	r := NewRuntime(
		[]ir.ModelDef{{Name: "m1", Provider: "openai", ModelName: "gpt-4o"}},
		personSchemas(),
		map[Provider]ProviderClient{ProviderOpenAI: client},
	)
	_, err := r.ExecuteWithSchema(context.Background(), "m1", vm.Str("hi"), "Ghost")
	assert.Error(t, err)
}

func TestStrategyOrder_NativeCapableProviderTriesNativeFirst(t *testing.T) {
	assert.Equal(t, []Strategy{StrategyNative, StrategyToolTrick, StrategyPromptOnly}, strategyOrder(ProviderOpenAI))
}

func TestStrategyOrder_NonNativeProviderSkipsNative(t *testing.T) {
	order := strategyOrder(ProviderAnthropic)
	assert.NotContains(t, order, StrategyNative)
}
