// Package token defines the lexical token kinds and source spans shared
// by the lexer and parser (spec §3, §4.1).
package token

import "fmt"

// Kind tags a Token's lexical category.
type Kind int

const (
	Illegal Kind = iota
	EOF

	// Literals.
	Int
	Float
	String
	StringPart // interpolation fragment, e.g. the "Hi " in "Hi ${name}!"
	Ident

	// Interpolation delimiters emitted by the lexer around ${ ... }.
	InterpOpen
	InterpClose

	// Keywords.
	keywordBegin
	Fn
	Let
	Mut
	If
	Else
	While
	For
	In
	Return
	Match
	Try
	Catch
	Throw
	Model
	Agent
	Tool
	Memory
	Schema
	Enum
	Struct
	Pipeline
	Stage
	Use
	Mod
	Listen
	On
	Emit
	Connect
	True
	False
	Nil
	As
	keywordEnd

	// Punctuation.
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Comma
	Dot
	DotDot
	DotDotEq
	Colon
	ColonColon
	Semicolon
	Arrow     // ->
	FatArrow  // =>
	Question
	QuestionQuestion
	Pipe      // |>  (the parser distinguishes from bitwise use, Concerto has none)
	Plus
	Minus
	Star
	Slash
	Percent
	Assign
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	And
	Or
	Not
	Bar // single '|' used for lambda param lists: |x: T| { ... }

	LexError
)

var names = map[Kind]string{
	Illegal: "ILLEGAL", EOF: "EOF",
	Int: "INT", Float: "FLOAT", String: "STRING", StringPart: "STRING_PART", Ident: "IDENT",
	InterpOpen: "INTERP_OPEN", InterpClose: "INTERP_CLOSE",
	Fn: "fn", Let: "let", Mut: "mut", If: "if", Else: "else", While: "while", For: "for", In: "in",
	Return: "return", Match: "match", Try: "try", Catch: "catch", Throw: "throw",
	Model: "model", Agent: "agent", Tool: "tool", Memory: "memory", Schema: "schema",
	Enum: "enum", Struct: "struct", Pipeline: "pipeline", Stage: "stage", Use: "use", Mod: "mod",
	Listen: "listen", On: "on", Emit: "emit", Connect: "connect",
	True: "true", False: "false", Nil: "nil", As: "as",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	Comma: ",", Dot: ".", DotDot: "..", DotDotEq: "..=", Colon: ":", ColonColon: "::",
	Semicolon: ";", Arrow: "->", FatArrow: "=>", Question: "?", QuestionQuestion: "??",
	Pipe: "|>", Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%",
	Assign: "=", Eq: "==", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
	And: "&&", Or: "||", Not: "!", Bar: "|",
	LexError: "LEX_ERROR",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// keywords maps lexeme -> Kind for the fixed keyword table in spec §4.1.
var keywords = map[string]Kind{}

func init() {
	for k := keywordBegin + 1; k < keywordEnd; k++ {
		keywords[names[k]] = k
	}
}

// LookupIdent returns the keyword Kind for ident, or Ident if it is not
// a keyword.
func LookupIdent(ident string) Kind {
	if k, ok := keywords[ident]; ok {
		return k
	}
	return Ident
}

// IsKeyword reports whether k is one of the fixed keywords.
func IsKeyword(k Kind) bool { return k > keywordBegin && k < keywordEnd }

// Span locates a token (or any AST node) in source text by byte offsets,
// plus a human-readable line/col pair computed lazily by the lexer.
type Span struct {
	File  string
	Start int
	End   int
	Line  int
	Col   int
}

// Token is an immutable lexical token: a kind tag, the literal lexeme,
// and its source span (spec §3 "Token").
type Token struct {
	Kind   Kind
	Lexeme string
	Span   Span
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Lexeme, t.Span.Line, t.Span.Col)
}
