// Package schema builds JSON-Schema documents from compiled Concerto
// schema declarations and validates decoded payloads against them
// (spec §4.6: ListenSchemaError / SchemaMismatch), grounded on
// teradata-labs-loom's gojsonschema.Validate(GoLoader, GoLoader) usage
// in pkg/mcp/protocol/validation.go.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/ir"
	"github.com/concerto-lang/concerto/internal/vm"
)

// Registry resolves schema names to their compiled field lists, as
// carried on an ir.Module (spec §6 IR artifact: "schemas").
type Registry struct {
	defs map[string]ir.SchemaDef
}

func NewRegistry(defs []ir.SchemaDef) *Registry {
	r := &Registry{defs: map[string]ir.SchemaDef{}}
	for _, d := range defs {
		r.defs[d.Name] = d
	}
	return r
}

func (r *Registry) Lookup(name string) (ir.SchemaDef, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// JSONSchema renders a SchemaDef as the JSON-Schema document
// gojsonschema.NewGoLoader accepts (a plain map[string]any, not a
// marshaled string, mirroring ValidateToolArguments's GoLoader usage).
func JSONSchema(def ir.SchemaDef) map[string]any {
	props := make(map[string]any, len(def.Fields))
	required := make([]string, 0, len(def.Fields))
	for _, f := range def.Fields {
		props[f.Name] = fieldSchema(f.Type)
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func fieldSchema(typeName string) map[string]any {
	base := strings.TrimSuffix(typeName, "?")
	switch base {
	case "Int":
		return map[string]any{"type": "integer"}
	case "Float":
		return map[string]any{"type": "number"}
	case "Bool":
		return map[string]any{"type": "boolean"}
	case "String":
		return map[string]any{"type": "string"}
	default:
		if strings.HasPrefix(base, "Array<") {
			return map[string]any{"type": "array"}
		}
		return map[string]any{"type": "object"}
	}
}

// Validate checks payload (a decoded map[string]any, e.g. from NDJSON)
// against the named schema, returning a ListenSchemaError describing
// every violation on failure.
func (r *Registry) Validate(schemaName string, payload map[string]any) error {
	def, ok := r.Lookup(schemaName)
	if !ok {
		return errs.New(errs.KindListenSchema, "unknown schema %q", schemaName)
	}
	schemaLoader := gojsonschema.NewGoLoader(JSONSchema(def))
	payloadLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, payloadLoader)
	if err != nil {
		return errs.Wrap(errs.KindListenSchema, err, "schema validation failed for %q", schemaName)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			msgs[i] = e.String()
		}
		return errs.New(errs.KindListenSchema, "payload does not satisfy schema %q: %s", schemaName, strings.Join(msgs, "; "))
	}
	return nil
}

// ToValue converts a validated JSON payload into a Concerto Struct
// value named after its schema, so model/host responses can be handed
// straight to the VM.
func ToValue(schemaName string, payload map[string]any) vm.Value {
	fields := make(map[string]vm.Value, len(payload))
	for k, v := range payload {
		fields[k] = fromJSON(v)
	}
	return vm.Struct(schemaName, fields)
}

func fromJSON(v any) vm.Value {
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
			elems[i] = fromJSON(e)
		}
		return vm.Array(elems)
	case map[string]any:
		om := vm.NewOrderedMap()
		for k, e := range t {
			om.Set(vm.Str(k), fromJSON(e))
		}
		return vm.Value{Kind: vm.KMap, Map: om}
	default:
		return vm.Str(fmt.Sprintf("%v", t))
	}
}
