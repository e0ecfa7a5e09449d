// Package ast defines Concerto's abstract syntax tree (spec §3 "AST
// Node"): an algebraic node family for expressions, declarations, and
// patterns, each carrying its source span and, once the resolver has
// run, a resolved type and symbol id.
package ast

import (
	"github.com/concerto-lang/concerto/internal/token"
	"github.com/concerto-lang/concerto/internal/types"
)

// Node is the common interface satisfied by every AST node.
type Node interface {
	Span() token.Span
}

type base struct {
	Sp token.Span

	// ResolvedType and SymbolID are filled in by the resolver. Every
	// Expr leaving the resolver has a non-Unknown ResolvedType or a
	// recorded diagnostic (spec §3 invariant).
	ResolvedType *types.Type
	SymbolID     int
}

func (b *base) Span() token.Span { return b.Sp }

// ---------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------

type Expr interface {
	Node
	exprNode()
}

type exprBase struct{ base }

func (*exprBase) exprNode() {}

type IntLit struct {
	exprBase
	Value int64
}

type FloatLit struct {
	exprBase
	Value float64
}

type BoolLit struct {
	exprBase
	Value bool
}

type NilLit struct{ exprBase }

// StringLit is a non-interpolated string, or the degenerate single
// fragment of an interpolated one collapsed to a literal when it has no
// embedded expressions.
type StringLit struct {
	exprBase
	Value string
}

// InterpString represents "...${e1}...${e2}..." as alternating literal
// fragments and embedded expressions: len(Parts) == len(Exprs)+1.
type InterpString struct {
	exprBase
	Parts []string
	Exprs []Expr
}

type Ident struct {
	exprBase
	Name string
}

type BinOp struct {
	exprBase
	Op          token.Kind
	Left, Right Expr
}

type UnOp struct {
	exprBase
	Op      token.Kind
	Operand Expr
}

type Call struct {
	exprBase
	Callee Expr
	Args   []Expr
}

type MethodCall struct {
	exprBase
	Receiver Expr
	Method   string
	Args     []Expr
}

type Index struct {
	exprBase
	Receiver Expr
	Index    Expr
}

type FieldAccess struct {
	exprBase
	Receiver Expr
	Field    string
}

type If struct {
	exprBase
	Cond       Expr
	Then       *Block
	Else       Expr // *Block or *If (else-if chain) or nil
}

type MatchArm struct {
	Pattern Pattern
	Body    Expr
}

type Match struct {
	exprBase
	Scrutinee Expr
	Arms      []MatchArm
}

type Block struct {
	exprBase
	Stmts []Stmt
	// Tail is the block's trailing expression-as-value, if any.
	Tail Expr
}

type CatchClause struct {
	// TypeName is empty for a bare `catch { ... }` (catches Any).
	TypeName string
	Binding  string
	Body     *Block
}

type Try struct {
	exprBase
	Body    *Block
	Catches []CatchClause
}

type Throw struct {
	exprBase
	Value Expr
}

type Param struct {
	Name string
	Type TypeExpr
}

type Lambda struct {
	exprBase
	Params []Param
	Body   *Block
}

// Propagate is the postfix `?` operator.
type Propagate struct {
	exprBase
	Operand Expr
}

// NilCoalesce is the infix `??` operator.
type NilCoalesce struct {
	exprBase
	Left, Right Expr
}

type Cast struct {
	exprBase
	Operand Expr
	Target  TypeExpr
}

type Range struct {
	exprBase
	Start, End Expr
	Inclusive  bool
}

// ArrayLit is `[e1, e2, ...]`.
type ArrayLit struct {
	exprBase
	Elems []Expr
}

// TupleLit is `(e1, e2, ...)` — two or more comma-separated elements;
// a single parenthesized expression is just grouping, not a tuple.
type TupleLit struct {
	exprBase
	Elems []Expr
}

// StructLit is `TypeName { field: value, ... }`.
type StructLit struct {
	exprBase
	TypeName string
	Fields   map[string]Expr
	// FieldOrder preserves source order for deterministic IR emission,
	// since Fields is a map.
	FieldOrder []string
}

// ListenHandler is `on "type" => |param: Type| { ... }` inside a
// `listen` block.
type ListenHandler struct {
	MessageType string
	Param       Param
	Body        *Block
}

type Listen struct {
	exprBase
	Target   *Call // the Host.execute(...) call driving the loop
	Handlers []ListenHandler
}

// ---------------------------------------------------------------------
// Patterns (spec §4.2)
// ---------------------------------------------------------------------

type Pattern interface {
	Node
	patternNode()
}

type patternBase struct{ base }

func (*patternBase) patternNode() {}

type WildcardPattern struct{ patternBase }

type LiteralPattern struct {
	patternBase
	Value Expr // IntLit/FloatLit/StringLit/BoolLit/NilLit
}

type BindingPattern struct {
	patternBase
	Name string
}

type TuplePattern struct {
	patternBase
	Elems []Pattern
}

type StructPattern struct {
	patternBase
	TypeName string
	Fields   map[string]Pattern
}

type ArrayPattern struct {
	patternBase
	Elems []Pattern
}

// ConstructorPattern covers Path(args...) patterns, including the
// well-known None/Some(x)/Ok(x)/Err(x) enum patterns that the parser
// recognizes explicitly (spec §4.2 bug fix: bare `None` must not become
// a catch-all binding).
type ConstructorPattern struct {
	patternBase
	Path string
	Args []Pattern
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

type Stmt interface {
	Node
	stmtNode()
}

type stmtBase struct{ base }

func (*stmtBase) stmtNode() {}

type LetStmt struct {
	stmtBase
	Name    string
	Mutable bool
	Type    TypeExpr // zero value (empty Name) when there is no annotation
	Value   Expr
}

type AssignStmt struct {
	stmtBase
	Target Expr // Ident, Index, or FieldAccess
	Value  Expr
}

type ExprStmt struct {
	stmtBase
	Value Expr
}

type ReturnStmt struct {
	stmtBase
	Value Expr // nil for bare `return`
}

type WhileStmt struct {
	stmtBase
	Cond Expr
	Body *Block
}

type ForStmt struct {
	stmtBase
	Var  string
	Iter Expr
	Body *Block
}

// ---------------------------------------------------------------------
// Type expressions (pre-resolution syntax for annotations)
// ---------------------------------------------------------------------

// TypeExpr is the unresolved syntax for a type annotation, turned into a
// types.Type by the resolver.
type TypeExpr struct {
	Name    string      // "Int", "MyStruct", "Array", "Option", "Result", "Map", ...
	Args    []TypeExpr  // generic args: Array(T), Map(K,V), Option(T), Result(T,E)
	IsFunc  bool
	Params  []TypeExpr
	Ret     *TypeExpr
}

// ---------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------

type Decl interface {
	Node
	declNode()
}

type declBase struct{ base }

func (*declBase) declNode() {}

type FnDecl struct {
	declBase
	Name    string
	Params  []Param
	RetType TypeExpr
	Body    *Block
}

type ModelDecl struct {
	declBase
	Name        string
	Provider    string
	ModelName   string
	Temperature *float64
	SystemPrompt string
	SchemaName  string // optional schema registered for structured output
	Tools       []string
}

type AgentDecl struct {
	declBase
	Name      string
	Transport string // "stdio" is the only required transport (spec §4.6)
	Command   string
	Args      []string
	Init      map[string]Expr
	Format    string // "json" | "text"
	Timeout   int
}

type ToolDecl struct {
	declBase
	Name    string
	Params  []Param
	RetType TypeExpr
	Body    *Block
}

type MemoryDecl struct {
	declBase
	Name string
	Kind string
}

type SchemaField struct {
	Name string
	Type TypeExpr
}

type SchemaDecl struct {
	declBase
	Name   string
	Fields []SchemaField
}

type EnumVariant struct {
	Name   string
	Fields []TypeExpr
}

type EnumDecl struct {
	declBase
	Name     string
	Variants []EnumVariant
}

type StructDecl struct {
	declBase
	Name   string
	Fields []SchemaField
}

type StageDecl struct {
	Name string
	Body *Block
}

type PipelineDecl struct {
	declBase
	Name   string
	Stages []StageDecl
}

type UseDecl struct {
	declBase
	Path string
}

type ModDecl struct {
	declBase
	Name string
}

// File is the root node: the ordered list of top-level declarations
// parsed from one source file (spec §1: single-file compilation).
type File struct {
	Name  string
	Decls []Decl
}
