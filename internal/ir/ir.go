// Package ir defines Concerto's serialized intermediate representation
// (spec §3 "IR Module", §6 "IR artifact"): a constant pool, function/
// model/agent/schema tables, and an opcode stream, all JSON-round-
// trippable to the `.conc-ir` artifact format.
package ir

import (
	"encoding/json"
	"fmt"
)

// Op enumerates the fixed opcode set (spec §3 "IR Module").
type Op int

const (
	PushConst Op = iota
	LoadLocal
	StoreLocal
	LoadGlobal
	Call
	CallMethod
	Return
	Jump
	JumpIfFalse
	JumpIfTrue
	Pop
	BinOp
	UnOp
	MakeArray
	MakeMap
	MakeTuple
	MakeStruct
	IndexGet
	IndexSet
	FieldGet
	FieldSet
	MatchCheck
	Throw
	TryEnter
	CatchEnter
	TryExit
	Propagate
	NilCoalesce
	ListenBegin
	ListenDispatch
	ListenEnd
	Cast
	MakeRange
)

var opNames = map[Op]string{
	PushConst: "PushConst", LoadLocal: "LoadLocal", StoreLocal: "StoreLocal",
	LoadGlobal: "LoadGlobal", Call: "Call", CallMethod: "CallMethod", Return: "Return",
	Jump: "Jump", JumpIfFalse: "JumpIfFalse", JumpIfTrue: "JumpIfTrue", Pop: "Pop",
	BinOp: "BinOp", UnOp: "UnOp", MakeArray: "MakeArray", MakeMap: "MakeMap",
	MakeTuple: "MakeTuple", MakeStruct: "MakeStruct", IndexGet: "IndexGet",
	IndexSet: "IndexSet", FieldGet: "FieldGet", FieldSet: "FieldSet",
	MatchCheck: "MatchCheck", Throw: "Throw", TryEnter: "TryEnter",
	CatchEnter: "CatchEnter", TryExit: "TryExit", Propagate: "Propagate",
	NilCoalesce: "NilCoalesce", ListenBegin: "ListenBegin", ListenDispatch: "ListenDispatch",
	ListenEnd: "ListenEnd", Cast: "Cast", MakeRange: "MakeRange",
}

var opByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		m[name] = op
	}
	return m
}()

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// Instr is one opcode plus its operands. Operands are kept as a
// loosely-typed slice (ints for jump targets/counts, strings for
// names) so the JSON artifact stays close to the spec's sketch:
// {"op": "Call", "args": [n]}.
type Instr struct {
	Op   Op
	Args []any
}

type jsonInstr struct {
	Op   string `json:"op"`
	Args []any  `json:"args,omitempty"`
}

func (i Instr) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonInstr{Op: i.Op.String(), Args: i.Args})
}

func (i *Instr) UnmarshalJSON(b []byte) error {
	var raw jsonInstr
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	op, ok := opByName[raw.Op]
	if !ok {
		return fmt.Errorf("ir: unknown opcode %q", raw.Op)
	}
	i.Op = op
	i.Args = raw.Args
	return nil
}

// IntArg returns Args[idx] as an int, tolerating the float64 Go's JSON
// decoder produces for numeric literals on round-trip.
func (i Instr) IntArg(idx int) int {
	switch v := i.Args[idx].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (i Instr) StrArg(idx int) string {
	s, _ := i.Args[idx].(string)
	return s
}

// ConstKind tags a constant-pool entry.
type ConstKind string

const (
	ConstInt    ConstKind = "int"
	ConstFloat  ConstKind = "float"
	ConstBool   ConstKind = "bool"
	ConstString ConstKind = "string"
	ConstNil    ConstKind = "nil"
)

// Const is one constant-pool entry (spec §3: "literals and interned
// strings").
type Const struct {
	Kind ConstKind `json:"kind"`
	I    int64     `json:"i,omitempty"`
	F    float64   `json:"f,omitempty"`
	B    bool      `json:"b,omitempty"`
	S    string    `json:"s,omitempty"`
}

func (c Const) Equal(o Const) bool {
	return c.Kind == o.Kind && c.I == o.I && c.F == o.F && c.B == o.B && c.S == o.S
}

// Function is one entry in the function table: name, parameter names
// (for locals slot 0..len(Params)-1), the full local-slot name table
// (including params), and its code.
type Function struct {
	Name   string   `json:"name"`
	Params []string `json:"params"`
	Locals []string `json:"locals"`
	Code   []Instr  `json:"code"`
}

// ModelDef mirrors ast.ModelDecl in a form the VM can load without
// depending on the ast/resolver packages.
type ModelDef struct {
	Name         string   `json:"name"`
	Provider     string   `json:"provider"`
	ModelName    string   `json:"model_name"`
	Temperature  *float64 `json:"temperature,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	SchemaName   string   `json:"schema,omitempty"`
	Tools        []string `json:"tools,omitempty"`
}

// AgentDef mirrors ast.AgentDecl (a Host in spec terminology).
type AgentDef struct {
	Name      string         `json:"name"`
	Transport string         `json:"transport"`
	Command   string         `json:"command"`
	Args      []string       `json:"args,omitempty"`
	Init      map[string]any `json:"init,omitempty"`
	Format    string         `json:"format"`
	Timeout   int            `json:"timeout"`
}

// SchemaField is one field of a SchemaDef.
type SchemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SchemaDef mirrors ast.SchemaDecl/StructDecl, flattened to primitive
// type-name strings the schema validator can turn into a JSON Schema
// document.
type SchemaDef struct {
	Name   string        `json:"name"`
	Fields []SchemaField `json:"fields"`
}

// PatternKind tags one entry of the pattern table that MatchCheck
// instructions index into.
type PatternKind string

const (
	PatWildcard    PatternKind = "wildcard"
	PatLiteral     PatternKind = "literal"
	PatBinding     PatternKind = "binding"
	PatTuple       PatternKind = "tuple"
	PatArray       PatternKind = "array"
	PatStruct      PatternKind = "struct"
	PatConstructor PatternKind = "constructor"
)

// Pattern is one compiled match-arm pattern (spec §4.4 "MatchCheck
// (pattern-id)"): recursive sub-patterns are stored as indices back
// into the owning Module's Patterns table.
type Pattern struct {
	Kind      PatternKind    `json:"kind"`
	ConstIdx  int            `json:"const,omitempty"`  // PatLiteral
	LocalSlot int            `json:"slot,omitempty"`   // PatBinding
	Path      string         `json:"path,omitempty"`   // PatConstructor: None/Some/Ok/Err/EnumVariant
	Elems     []int          `json:"elems,omitempty"`  // PatTuple/PatArray/PatConstructor args
	Fields    map[string]int `json:"fields,omitempty"` // PatStruct: field name -> pattern index
}

// Module is the full `.conc-ir` artifact (spec §6).
type Module struct {
	Version    int         `json:"version"`
	Constants  []Const     `json:"constants"`
	Patterns   []Pattern   `json:"patterns,omitempty"`
	Functions  []Function  `json:"functions"`
	Models     []ModelDef  `json:"models,omitempty"`
	Agents     []AgentDef  `json:"agents,omitempty"`
	Schemas    []SchemaDef `json:"schemas,omitempty"`
	EntryPoint string      `json:"entry_point"`
}

// CurrentVersion is the IR format version this package emits and
// accepts.
const CurrentVersion = 1
