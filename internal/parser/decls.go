package parser

import (
	"strconv"

	"github.com/concerto-lang/concerto/internal/ast"
	"github.com/concerto-lang/concerto/internal/token"
)

func (p *Parser) parseModelDecl() ast.Decl {
	start := p.cur().Span
	p.advance() // model
	name := p.expect(token.Ident, "model name").Lexeme
	d := &ast.ModelDecl{Name: name}
	p.expect(token.LBrace, "'{'")
	for !p.check(token.RBrace) && !p.atEOF() {
		key := p.expect(token.Ident, "config key").Lexeme
		p.expect(token.Colon, "':'")
		switch key {
		case "provider":
			d.Provider = p.expectStringLiteral()
		case "name":
			d.ModelName = p.expectStringLiteral()
		case "temperature":
			v := p.parseFloatLiteralValue()
			d.Temperature = &v
		case "system_prompt":
			d.SystemPrompt = p.expectStringLiteral()
		case "schema":
			d.SchemaName = p.expect(token.Ident, "schema name").Lexeme
		case "tools":
			d.Tools = p.parseIdentArray()
		default:
			p.skipValue()
		}
		p.match(token.Comma)
	}
	p.expect(token.RBrace, "'}'")
	d.Sp = p.span(start)
	return d
}

func (p *Parser) parseAgentDecl() ast.Decl {
	start := p.cur().Span
	p.advance() // agent
	name := p.expect(token.Ident, "agent name").Lexeme
	d := &ast.AgentDecl{Name: name, Transport: "stdio", Format: "json"}
	p.expect(token.LBrace, "'{'")
	for !p.check(token.RBrace) && !p.atEOF() {
		key := p.expect(token.Ident, "config key").Lexeme
		p.expect(token.Colon, "':'")
		switch key {
		case "transport":
			d.Transport = p.expectStringLiteral()
		case "command":
			d.Command = p.expectStringLiteral()
		case "args":
			d.Args = p.parseStringArray()
		case "format", "output_format":
			d.Format = p.expectStringLiteral()
		case "timeout":
			d.Timeout = p.parseIntLiteralValue()
		case "init":
			d.Init = p.parseInitMap()
		default:
			p.skipValue()
		}
		p.match(token.Comma)
	}
	p.expect(token.RBrace, "'}'")
	d.Sp = p.span(start)
	return d
}

func (p *Parser) parseToolDecl() ast.Decl {
	start := p.cur().Span
	p.advance() // tool
	name := p.expect(token.Ident, "tool name").Lexeme
	params := p.parseParamList()
	var ret ast.TypeExpr
	if p.match(token.Arrow) {
		ret = p.parseTypeExpr()
	}
	body := p.parseBlock()
	d := &ast.ToolDecl{Name: name, Params: params, RetType: ret, Body: body}
	d.Sp = p.span(start)
	return d
}

func (p *Parser) parseMemoryDecl() ast.Decl {
	start := p.cur().Span
	p.advance() // memory
	name := p.expect(token.Ident, "memory name").Lexeme
	kind := "buffer"
	if p.match(token.Colon) {
		kind = p.expect(token.Ident, "memory kind").Lexeme
	}
	p.matchStatementEnd()
	d := &ast.MemoryDecl{Name: name, Kind: kind}
	d.Sp = p.span(start)
	return d
}

func (p *Parser) parseSchemaDecl() ast.Decl {
	start := p.cur().Span
	p.advance() // schema
	name := p.expect(token.Ident, "schema name").Lexeme
	d := &ast.SchemaDecl{Name: name}
	p.expect(token.LBrace, "'{'")
	for !p.check(token.RBrace) && !p.atEOF() {
		fname := p.expect(token.Ident, "field name").Lexeme
		p.expect(token.Colon, "':'")
		ftype := p.parseTypeExpr()
		d.Fields = append(d.Fields, ast.SchemaField{Name: fname, Type: ftype})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace, "'}'")
	d.Sp = p.span(start)
	return d
}

func (p *Parser) parseEnumDecl() ast.Decl {
	start := p.cur().Span
	p.advance() // enum
	name := p.expect(token.Ident, "enum name").Lexeme
	d := &ast.EnumDecl{Name: name}
	p.expect(token.LBrace, "'{'")
	for !p.check(token.RBrace) && !p.atEOF() {
		vname := p.expect(token.Ident, "variant name").Lexeme
		v := ast.EnumVariant{Name: vname}
		if p.match(token.LParen) {
			for !p.check(token.RParen) && !p.atEOF() {
				v.Fields = append(v.Fields, p.parseTypeExpr())
				if !p.match(token.Comma) {
					break
				}
			}
			p.expect(token.RParen, "')'")
		}
		d.Variants = append(d.Variants, v)
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace, "'}'")
	d.Sp = p.span(start)
	return d
}

func (p *Parser) parseStructDecl() ast.Decl {
	start := p.cur().Span
	p.advance() // struct
	name := p.expect(token.Ident, "struct name").Lexeme
	d := &ast.StructDecl{Name: name}
	p.expect(token.LBrace, "'{'")
	for !p.check(token.RBrace) && !p.atEOF() {
		fname := p.expect(token.Ident, "field name").Lexeme
		p.expect(token.Colon, "':'")
		ftype := p.parseTypeExpr()
		d.Fields = append(d.Fields, ast.SchemaField{Name: fname, Type: ftype})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace, "'}'")
	d.Sp = p.span(start)
	return d
}

func (p *Parser) parsePipelineDecl() ast.Decl {
	start := p.cur().Span
	p.advance() // pipeline
	name := p.expect(token.Ident, "pipeline name").Lexeme
	d := &ast.PipelineDecl{Name: name}
	p.expect(token.LBrace, "'{'")
	for p.check(token.Stage) {
		p.advance()
		sname := p.expect(token.Ident, "stage name").Lexeme
		body := p.parseBlock()
		d.Stages = append(d.Stages, ast.StageDecl{Name: sname, Body: body})
	}
	p.expect(token.RBrace, "'}'")
	d.Sp = p.span(start)
	return d
}

func (p *Parser) parseUseDecl() ast.Decl {
	start := p.cur().Span
	p.advance() // use
	path := p.expect(token.Ident, "module path").Lexeme
	for p.match(token.ColonColon) {
		path += "::" + p.expect(token.Ident, "module path segment").Lexeme
	}
	p.matchStatementEnd()
	d := &ast.UseDecl{Path: path}
	d.Sp = p.span(start)
	return d
}

func (p *Parser) parseModDecl() ast.Decl {
	start := p.cur().Span
	p.advance() // mod
	name := p.expect(token.Ident, "module name").Lexeme
	p.matchStatementEnd()
	d := &ast.ModDecl{Name: name}
	d.Sp = p.span(start)
	return d
}

func (p *Parser) matchStatementEnd() { p.match(token.Semicolon) }

// ---- small literal helpers for the declaration config blocks ----

func (p *Parser) expectStringLiteral() string {
	if p.check(token.String) {
		return p.advance().Lexeme
	}
	p.errorf("expected a string literal")
	return ""
}

func (p *Parser) parseFloatLiteralValue() float64 {
	switch {
	case p.check(token.Float):
		v, _ := strconv.ParseFloat(p.advance().Lexeme, 64)
		return v
	case p.check(token.Int):
		v, _ := strconv.ParseFloat(p.advance().Lexeme, 64)
		return v
	default:
		p.errorf("expected a number")
		return 0
	}
}

func (p *Parser) parseIntLiteralValue() int {
	if p.check(token.Int) {
		v, _ := strconv.Atoi(p.advance().Lexeme)
		return v
	}
	p.errorf("expected an integer")
	return 0
}

func (p *Parser) parseStringArray() []string {
	var out []string
	p.expect(token.LBracket, "'['")
	for !p.check(token.RBracket) && !p.atEOF() {
		out = append(out, p.expectStringLiteral())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBracket, "']'")
	return out
}

func (p *Parser) parseIdentArray() []string {
	var out []string
	p.expect(token.LBracket, "'['")
	for !p.check(token.RBracket) && !p.atEOF() {
		out = append(out, p.expect(token.Ident, "identifier").Lexeme)
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBracket, "']'")
	return out
}

func (p *Parser) parseInitMap() map[string]ast.Expr {
	out := map[string]ast.Expr{}
	p.expect(token.LBrace, "'{'")
	for !p.check(token.RBrace) && !p.atEOF() {
		key := p.expect(token.Ident, "init key").Lexeme
		p.expect(token.Colon, "':'")
		out[key] = p.parseExpr()
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace, "'}'")
	return out
}

// skipValue consumes one unrecognized config value (a run of tokens up
// to the next top-level comma or closing brace) so an unknown key in a
// model/agent config block doesn't desynchronize the parser.
func (p *Parser) skipValue() {
	depth := 0
	for !p.atEOF() {
		switch p.cur().Kind {
		case token.LBrace, token.LBracket, token.LParen:
			depth++
		case token.RBrace, token.RBracket, token.RParen:
			if depth == 0 {
				return
			}
			depth--
		case token.Comma:
			if depth == 0 {
				return
			}
		}
		p.advance()
	}
}
