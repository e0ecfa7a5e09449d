package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concerto-lang/concerto/internal/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexer_Punctuation(t *testing.T) {
	toks := New("t.conc", "-> => :: .. ..= ?? |>").Tokenize()
	assert.Equal(t, []token.Kind{
		token.Arrow, token.FatArrow, token.ColonColon,
		token.DotDot, token.DotDotEq, token.QuestionQuestion, token.Pipe,
		token.EOF,
	}, kinds(toks))
}

func TestLexer_KeywordsVsIdents(t *testing.T) {
	toks := New("t.conc", "fn main let mutable").Tokenize()
	require.Len(t, toks, 5)
	assert.Equal(t, token.Fn, toks[0].Kind)
	assert.Equal(t, token.Ident, toks[1].Kind)
	assert.Equal(t, "main", toks[1].Lexeme)
	assert.Equal(t, token.Let, toks[2].Kind)
	// "mutable" is not the "mut" keyword, just an identifier that happens
	// to start with it.
	assert.Equal(t, token.Ident, toks[3].Kind)
	assert.Equal(t, "mutable", toks[3].Lexeme)
}

func TestLexer_Numbers(t *testing.T) {
	toks := New("t.conc", "42 3.14 1_000 2e10 1.5e-3").Tokenize()
	require.Len(t, toks, 6)
	assert.Equal(t, token.Int, toks[0].Kind)
	assert.Equal(t, "42", toks[0].Lexeme)
	assert.Equal(t, token.Float, toks[1].Kind)
	assert.Equal(t, "3.14", toks[1].Lexeme)
	assert.Equal(t, token.Int, toks[2].Kind)
	assert.Equal(t, "1000", toks[2].Lexeme)
	assert.Equal(t, token.Float, toks[3].Kind)
	assert.Equal(t, token.Float, toks[4].Kind)
}

func TestLexer_PlainString(t *testing.T) {
	toks := New("t.conc", `"hello world"`).Tokenize()
	require.Len(t, toks, 2)
	assert.Equal(t, token.String, toks[0].Kind)
	assert.Equal(t, "hello world", toks[0].Lexeme)
}

func TestLexer_StringEscapes(t *testing.T) {
	toks := New("t.conc", `"a\nb\tc\"d"`).Tokenize()
	require.Len(t, toks, 2)
	assert.Equal(t, "a\nb\tc\"d", toks[0].Lexeme)
}

func TestLexer_InterpolatedString(t *testing.T) {
	// "Hi ${name}!" lexes as StringPart("Hi "), InterpOpen, Ident(name),
	// InterpClose, String("!"): the closing quote ends the last fragment,
	// so lexStringBody's closing-quote case returns it as a String token.
	toks := New("t.conc", `"Hi ${name}!"`).Tokenize()
	gotKinds := kinds(toks)
	assert.Equal(t, []token.Kind{
		token.StringPart, token.InterpOpen, token.Ident, token.InterpClose, token.String, token.EOF,
	}, gotKinds)
	assert.Equal(t, "Hi ", toks[0].Lexeme)
	assert.Equal(t, "name", toks[2].Lexeme)
	assert.Equal(t, "!", toks[4].Lexeme)
}

func TestLexer_UnterminatedStringIsLexError(t *testing.T) {
	toks := New("t.conc", `"oops`).Tokenize()
	require.Len(t, toks, 2)
	assert.Equal(t, token.LexError, toks[0].Kind)
}

func TestLexer_CommentsAreSkipped(t *testing.T) {
	toks := New("t.conc", "let x = 1; // trailing\n/* block */ let y = 2;").Tokenize()
	gotKinds := kinds(toks)
	assert.NotContains(t, gotKinds, token.LexError)
	assert.Equal(t, token.Let, toks[0].Kind)
}

func TestLexer_IllegalCharacterIsLexError(t *testing.T) {
	toks := New("t.conc", "let x = 1 & 2;").Tokenize()
	found := false
	for _, tk := range toks {
		if tk.Kind == token.LexError {
			found = true
		}
	}
	assert.True(t, found, "bare '&' (not '&&') should lex as LexError")
}

func TestLexer_SpanLineCol(t *testing.T) {
	toks := New("t.conc", "let x\n= 1;").Tokenize()
	// "=" is on the second line.
	for _, tk := range toks {
		if tk.Kind == token.Assign {
			assert.Equal(t, 2, tk.Span.Line)
			return
		}
	}
	t.Fatal("did not find Assign token")
}
