// Package parser implements Concerto's recursive-descent declaration/
// statement parser and Pratt (precedence-climbing) expression parser
// (spec §4.2). On a syntax error it records a diagnostic and recovers
// at the next statement boundary rather than aborting the whole file.
package parser

import (
	"github.com/concerto-lang/concerto/internal/ast"
	"github.com/concerto-lang/concerto/internal/errs"
	"github.com/concerto-lang/concerto/internal/lexer"
	"github.com/concerto-lang/concerto/internal/token"
)

// Parser consumes a token stream (already fully lexed, since Concerto
// source files are small single-compilation-unit programs per spec §1)
// and produces an ast.File plus a batch of diagnostics.
type Parser struct {
	file string
	toks []token.Token
	pos  int
	errs errs.Batch

	// noStructLit suppresses `Ident { ... }` struct-literal parsing while
	// parsing an if/while/for/match head, the same way Rust restricts
	// struct literals in condition position so `while running { ... }`
	// parses as a loop over `running`, not a struct literal consuming the
	// loop body as its field list. Parenthesized/bracketed sub-expressions
	// clear it again since the ambiguity does not reach inside them.
	noStructLit bool
}

// Parse lexes and parses src, returning the resulting file and any
// diagnostics collected. The file is non-nil even when diagnostics are
// present, containing whatever declarations were successfully parsed.
func Parse(file, src string) (*ast.File, *errs.Batch) {
	toks := lexer.New(file, src).Tokenize()
	p := &Parser{file: file, toks: toks}
	return p.parseFile(), &p.errs
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}
func (p *Parser) atEOF() bool { return p.cur().Kind == token.EOF }

func (p *Parser) advance() token.Token {
	t := p.cur()
	if !p.atEOF() {
		p.pos++
	}
	return t
}

func (p *Parser) check(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) match(k token.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(k token.Kind, what string) token.Token {
	if p.check(k) {
		return p.advance()
	}
	p.errorf("expected %s, found %s", what, p.cur().Kind)
	return p.cur()
}

// exprNoStructLit parses an expression with struct-literal syntax
// suppressed at the top level, for use in if/while/for/match heads.
func (p *Parser) exprNoStructLit() ast.Expr {
	old := p.noStructLit
	p.noStructLit = true
	e := p.parseExpr()
	p.noStructLit = old
	return e
}

func (p *Parser) span(start token.Span) token.Span {
	end := p.toks[p.pos].Span
	start.End = end.Start
	return start
}

func (p *Parser) errorf(format string, args ...any) {
	sp := p.cur().Span
	e := errs.New(errs.KindParse, format, args...).WithSpan(errs.Span{
		File: sp.File, Start: sp.Start, End: sp.End, Line: sp.Line, Col: sp.Col,
	})
	p.errs.Add(e)
}

// synchronize discards tokens until a likely statement/declaration
// boundary, implementing spec §4.2's error-recovery requirement.
func (p *Parser) synchronize() {
	for !p.atEOF() {
		if p.cur().Kind == token.Semicolon {
			p.advance()
			return
		}
		switch p.cur().Kind {
		case token.Fn, token.Let, token.If, token.While, token.For, token.Return,
			token.Model, token.Agent, token.Tool, token.Memory, token.Schema,
			token.Enum, token.Struct, token.Pipeline, token.Use, token.Mod, token.RBrace:
			return
		}
		p.advance()
	}
}

// ---------------------------------------------------------------------
// Top level
// ---------------------------------------------------------------------

func (p *Parser) parseFile() *ast.File {
	f := &ast.File{Name: p.file}
	for !p.atEOF() {
		d := p.parseDecl()
		if d != nil {
			f.Decls = append(f.Decls, d)
		}
	}
	return f
}

func (p *Parser) parseDecl() ast.Decl {
	defer func() {
		if r := recover(); r != nil {
			p.synchronize()
		}
	}()
	switch p.cur().Kind {
	case token.Fn:
		return p.parseFnDecl()
	case token.Model:
		return p.parseModelDecl()
	case token.Agent:
		return p.parseAgentDecl()
	case token.Tool:
		return p.parseToolDecl()
	case token.Memory:
		return p.parseMemoryDecl()
	case token.Schema:
		return p.parseSchemaDecl()
	case token.Enum:
		return p.parseEnumDecl()
	case token.Struct:
		return p.parseStructDecl()
	case token.Pipeline:
		return p.parsePipelineDecl()
	case token.Use:
		return p.parseUseDecl()
	case token.Mod:
		return p.parseModDecl()
	default:
		p.errorf("expected a declaration, found %s", p.cur().Kind)
		p.synchronize()
		return nil
	}
}

func (p *Parser) parseTypeExpr() ast.TypeExpr {
	name := p.expect(token.Ident, "type name").Lexeme
	te := ast.TypeExpr{Name: name}
	if p.match(token.Lt) {
		te.Args = append(te.Args, p.parseTypeExpr())
		for p.match(token.Comma) {
			te.Args = append(te.Args, p.parseTypeExpr())
		}
		p.expect(token.Gt, "'>'")
	}
	return te
}

func (p *Parser) parseParamList() []ast.Param {
	var params []ast.Param
	p.expect(token.LParen, "'('")
	for !p.check(token.RParen) && !p.atEOF() {
		name := p.expect(token.Ident, "parameter name").Lexeme
		p.expect(token.Colon, "':'")
		typ := p.parseTypeExpr()
		params = append(params, ast.Param{Name: name, Type: typ})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen, "')'")
	return params
}

func (p *Parser) parseFnDecl() ast.Decl {
	start := p.cur().Span
	p.advance() // fn
	name := p.expect(token.Ident, "function name").Lexeme
	params := p.parseParamList()
	var ret ast.TypeExpr
	if p.match(token.Arrow) {
		ret = p.parseTypeExpr()
	}
	body := p.parseBlock()
	d := &ast.FnDecl{Name: name, Params: params, RetType: ret, Body: body}
	d.Sp = p.span(start)
	return d
}
