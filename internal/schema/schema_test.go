package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concerto-lang/concerto/internal/ir"
	"github.com/concerto-lang/concerto/internal/vm"
)

func personDef() ir.SchemaDef {
	return ir.SchemaDef{
		Name: "Person",
		Fields: []ir.SchemaField{
			{Name: "name", Type: "String"},
			{Name: "age", Type: "Int"},
		},
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry([]ir.SchemaDef{personDef()})
	def, ok := r.Lookup("Person")
	require.True(t, ok)
	assert.Len(t, def.Fields, 2)

	_, ok = r.Lookup("Nonexistent")
	assert.False(t, ok)
}

func TestRegistry_Validate_ValidPayload(t *testing.T) {
	r := NewRegistry([]ir.SchemaDef{personDef()})
	err := r.Validate("Person", map[string]any{"name": "Ada", "age": float64(30)})
	assert.NoError(t, err)
}

func TestRegistry_Validate_MissingRequiredField(t *testing.T) {
	r := NewRegistry([]ir.SchemaDef{personDef()})
	err := r.Validate("Person", map[string]any{"name": "Ada"})
	assert.Error(t, err)
}

func TestRegistry_Validate_WrongFieldType(t *testing.T) {
	r := NewRegistry([]ir.SchemaDef{personDef()})
	err := r.Validate("Person", map[string]any{"name": "Ada", "age": "thirty"})
	assert.Error(t, err)
}

func TestRegistry_Validate_UnknownSchema(t *testing.T) {
	r := NewRegistry(nil)
	err := r.Validate("Ghost", map[string]any{})
	assert.Error(t, err)
}

func TestRegistry_Validate_AdditionalPropertyRejected(t *testing.T) {
	r := NewRegistry([]ir.SchemaDef{personDef()})
	err := r.Validate("Person", map[string]any{"name": "Ada", "age": float64(30), "extra": true})
	assert.Error(t, err)
}

func TestToValue_BuildsStruct(t *testing.T) {
	v := ToValue("Person", map[string]any{"name": "Ada", "age": float64(30)})
	require.Equal(t, vm.KStruct, v.Kind)
	assert.Equal(t, "Person", v.StructName)
	assert.Equal(t, vm.Str("Ada"), v.Fields["name"])
	assert.Equal(t, vm.Int(30), v.Fields["age"])
}

func TestJSONSchema_RendersRequiredAndProperties(t *testing.T) {
	doc := JSONSchema(personDef())
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])
	required, ok := doc["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"name", "age"}, required)
}
