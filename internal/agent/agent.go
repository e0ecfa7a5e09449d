// Package agent implements Concerto's ModelRef runtime (spec §4.6):
// provider dispatch, structured-output strategy selection, and the
// execute_with_schema retry-with-validation loop. Grounded on
// kadirpekel-hector/pkg/model/model.go's LLM interface shape (Provider
// enum, GenerateConfig, Name/Provider/GenerateContent) adapted from
// a2a-go Message/Response types to vm.Value and rewritten as a
// synchronous Execute rather than hector's iter.Seq2 streaming form,
// since Concerto models are called for one completion at a time.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/ir"
	"github.com/concerto-lang/concerto/internal/schema"
	"github.com/concerto-lang/concerto/internal/vm"
)

// Provider identifies the LLM backend a ModelDef targets, matching the
// teacher's Provider string-enum shape.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
	ProviderUnknown   Provider = "unknown"
)

// Strategy is how ExecuteWithSchema coerces a provider into emitting
// schema-conformant output (spec §4.6).
type Strategy string

const (
	// StrategyNative passes the JSON Schema directly as the provider's
	// structured-output/response-format configuration.
	StrategyNative Strategy = "native"
	// StrategyToolTrick defines a synthetic single-use tool whose input
	// schema is the target schema and forces the model to call it.
	StrategyToolTrick Strategy = "tool_trick"
	// StrategyPromptOnly appends the schema description to the prompt
	// and parses JSON out of the model's free-text reply.
	StrategyPromptOnly Strategy = "prompt_only"
)

// nativeCapable lists providers whose API accepts a response JSON
// Schema directly; every other provider falls back to ToolTrick, which
// in turn falls back to PromptOnly if the provider has no tool-calling
// support either (decided per-request by the ProviderClient itself via
// ErrUnsupportedStrategy).
var nativeCapable = map[Provider]bool{
	ProviderOpenAI:  true,
	ProviderGemini:  true,
	ProviderOllama:  false,
	ProviderAnthropic: false,
}

// Request is one completion call handed to a ProviderClient.
type Request struct {
	Prompt       vm.Value
	SystemPrompt string
	Temperature  *float64
	Strategy     Strategy
	Schema       map[string]any // nil unless Strategy != "" and a schema is bound
	SchemaName   string
	RequestID    string
}

// Response is a provider's completion.
type Response struct {
	Text string
	// JSON is populated when the provider returned (or the strategy
	// extracted) a parsed structured payload.
	JSON map[string]any
}

// ErrUnsupportedStrategy signals a ProviderClient cannot honor the
// requested Strategy, so the caller should step down to the next one
// (Native -> ToolTrick -> PromptOnly).
var ErrUnsupportedStrategy = fmt.Errorf("agent: strategy not supported by this provider")

// ProviderClient is the seam real provider SDKs implement, mirroring
// the teacher's LLM interface (Name/Provider/GenerateContent) collapsed
// to a single synchronous call.
type ProviderClient interface {
	Provider() Provider
	Execute(ctx context.Context, req Request) (Response, error)
}

// ModelConfig mirrors ir.ModelDef with its Provider resolved to the
// typed enum.
type ModelConfig struct {
	Name         string
	Provider     Provider
	ModelName    string
	Temperature  *float64
	SystemPrompt string
	SchemaName   string
	Tools        []string
}

func configFromDef(d ir.ModelDef) ModelConfig {
	return ModelConfig{
		Name:         d.Name,
		Provider:     Provider(d.Provider),
		ModelName:    d.ModelName,
		Temperature:  d.Temperature,
		SystemPrompt: d.SystemPrompt,
		SchemaName:   d.SchemaName,
		Tools:        d.Tools,
	}
}

// MaxSchemaRetries bounds the ExecuteWithSchema retry-with-correction
// loop (spec §4.6: "retries a bounded number of times before
// surfacing SchemaMismatch").
const MaxSchemaRetries = 3

// Runtime implements vm.ModelRuntime (spec §4.6 "ModelRef"), dispatching
// to one ProviderClient per Provider and validating structured output
// against internal/schema.
type Runtime struct {
	models    map[string]ModelConfig
	clients   map[Provider]ProviderClient
	schemas   *schema.Registry
	newReqID  func() string
}

// NewRuntime builds a Runtime from the compiled module's model
// declarations. clients maps each Provider this program actually uses
// to its concrete SDK-backed implementation; a model referencing an
// unconfigured provider raises a ModelError at call time rather than at
// construction, since not every program exercises every declared model.
func NewRuntime(defs []ir.ModelDef, schemas *schema.Registry, clients map[Provider]ProviderClient) *Runtime {
	models := make(map[string]ModelConfig, len(defs))
	for _, d := range defs {
		models[d.Name] = configFromDef(d)
	}
	return &Runtime{
		models:   models,
		clients:  clients,
		schemas:  schemas,
		newReqID: uuid.NewString,
	}
}

func (r *Runtime) lookup(modelName string) (ModelConfig, ProviderClient, error) {
	cfg, ok := r.models[modelName]
	if !ok {
		return ModelConfig{}, nil, errs.New(errs.KindModel, "undefined model %q", modelName)
	}
	client, ok := r.clients[cfg.Provider]
	if !ok {
		return ModelConfig{}, nil, errs.New(errs.KindModel, "no provider client configured for %q (model %q)", cfg.Provider, modelName)
	}
	return cfg, client, nil
}

// Execute implements vm.ModelRuntime.Execute: a plain completion with no
// structured-output contract.
func (r *Runtime) Execute(ctx context.Context, modelName string, prompt vm.Value) (vm.Value, error) {
	cfg, client, err := r.lookup(modelName)
	if err != nil {
		return vm.Nil(), err
	}
	resp, err := client.Execute(ctx, Request{
		Prompt:       prompt,
		SystemPrompt: cfg.SystemPrompt,
		Temperature:  cfg.Temperature,
		RequestID:    r.newReqID(),
	})
	if err != nil {
		return vm.Nil(), errs.Wrap(errs.KindModel, err, "model %q execution failed", modelName)
	}
	return vm.Str(resp.Text), nil
}

// ExecuteWithSchema implements vm.ModelRuntime.ExecuteWithSchema (spec
// §4.6): selects a strategy by provider capability, calls the provider,
// validates the result against schemaName, and on mismatch retries with
// the base system prompt plus a correction note naming the latest
// validation error, up to MaxSchemaRetries attempts in all.
func (r *Runtime) ExecuteWithSchema(ctx context.Context, modelName string, prompt vm.Value, schemaName string) (vm.Value, error) {
	cfg, client, err := r.lookup(modelName)
	if err != nil {
		return vm.Nil(), err
	}
	def, ok := r.schemas.Lookup(schemaName)
	if !ok {
		return vm.Nil(), errs.New(errs.KindSchemaMismatch, "unknown schema %q", schemaName)
	}
	jsonSchema := schema.JSONSchema(def)

	strategies := strategyOrder(cfg.Provider)
	sysPrompt := cfg.SystemPrompt

	var lastErr error
	for attempt := 0; attempt < MaxSchemaRetries; attempt++ {
		strat := strategies[attempt%len(strategies)]
		req := Request{
			Prompt:       prompt,
			SystemPrompt: sysPrompt,
			Temperature:  cfg.Temperature,
			Strategy:     strat,
			Schema:       jsonSchema,
			SchemaName:   schemaName,
			RequestID:    r.newReqID(),
		}
		resp, err := client.Execute(ctx, req)
		if err == ErrUnsupportedStrategy {
			continue
		}
		if err != nil {
			return vm.Nil(), errs.Wrap(errs.KindModel, err, "model %q execution failed", modelName)
		}
		payload := resp.JSON
		if payload == nil {
			payload, err = extractJSON(resp.Text)
			if err != nil {
				lastErr = err
				sysPrompt = correctionPrompt(cfg.SystemPrompt, err)
				continue
			}
		}
		if verr := r.schemas.Validate(schemaName, payload); verr != nil {
			lastErr = verr
			sysPrompt = correctionPrompt(cfg.SystemPrompt, verr)
			continue
		}
		return schema.ToValue(schemaName, payload), nil
	}
	return vm.Nil(), errs.Wrap(errs.KindSchemaMismatch, lastErr, "model %q failed to produce output matching schema %q after %d attempt(s)", modelName, schemaName, MaxSchemaRetries)
}

func strategyOrder(p Provider) []Strategy {
	if nativeCapable[p] {
		return []Strategy{StrategyNative, StrategyToolTrick, StrategyPromptOnly}
	}
	return []Strategy{StrategyToolTrick, StrategyPromptOnly, StrategyPromptOnly}
}

func correctionPrompt(base string, cause error) string {
	return base + fmt.Sprintf("\n\nYour previous response did not match the required schema (%s). Respond again with strictly conformant JSON.", cause)
}

func extractJSON(text string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, errs.Wrap(errs.KindSchemaMismatch, err, "response was not valid JSON")
	}
	return out, nil
}
