package parser

import (
	"strconv"

	"github.com/concerto-lang/concerto/internal/ast"
	"github.com/concerto-lang/concerto/internal/token"
)

func (p *Parser) parseMatch() ast.Expr {
	start := p.cur().Span
	p.advance() // match
	scrutinee := p.exprNoStructLit()
	m := &ast.Match{Scrutinee: scrutinee}
	p.expect(token.LBrace, "'{'")
	for !p.check(token.RBrace) && !p.atEOF() {
		pat := p.parsePattern()
		p.expect(token.FatArrow, "'=>'")
		var body ast.Expr
		if p.check(token.LBrace) {
			body = p.parseBlock()
		} else {
			body = p.parseExpr()
		}
		m.Arms = append(m.Arms, ast.MatchArm{Pattern: pat, Body: body})
		p.match(token.Comma)
	}
	p.expect(token.RBrace, "'}'")
	m.Sp = p.span(start)
	return m
}

// parsePattern parses one match-arm pattern (spec §4.2). The well-known
// constructors None/Some/Ok/Err are recognized explicitly here: a bare
// identifier otherwise becomes a catch-all binding, but `None` must
// never shadow the nil-option constructor, and `Some`/`Ok`/`Err` always
// take an argument pattern even though they look like ordinary calls.
func (p *Parser) parsePattern() ast.Pattern {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.Ident:
		name := p.cur().Lexeme
		switch name {
		case "_":
			p.advance()
			pt := &ast.WildcardPattern{}
			pt.Sp = p.span(start)
			return pt
		case "None":
			p.advance()
			pt := &ast.ConstructorPattern{Path: "None"}
			pt.Sp = p.span(start)
			return pt
		case "Some", "Ok", "Err":
			p.advance()
			pt := &ast.ConstructorPattern{Path: name}
			p.expect(token.LParen, "'('")
			for !p.check(token.RParen) && !p.atEOF() {
				pt.Args = append(pt.Args, p.parsePattern())
				if !p.match(token.Comma) {
					break
				}
			}
			p.expect(token.RParen, "')'")
			pt.Sp = p.span(start)
			return pt
		default:
			return p.parseIdentOrConstructorPattern(start)
		}
	case token.Int:
		v, _ := strconv.ParseInt(p.advance().Lexeme, 10, 64)
		lit := &ast.IntLit{Value: v}
		lit.Sp = p.span(start)
		pt := &ast.LiteralPattern{Value: lit}
		pt.Sp = p.span(start)
		return pt
	case token.Float:
		v, _ := strconv.ParseFloat(p.advance().Lexeme, 64)
		lit := &ast.FloatLit{Value: v}
		lit.Sp = p.span(start)
		pt := &ast.LiteralPattern{Value: lit}
		pt.Sp = p.span(start)
		return pt
	case token.String:
		v := p.advance().Lexeme
		lit := &ast.StringLit{Value: v}
		lit.Sp = p.span(start)
		pt := &ast.LiteralPattern{Value: lit}
		pt.Sp = p.span(start)
		return pt
	case token.True, token.False:
		v := p.advance().Kind == token.True
		lit := &ast.BoolLit{Value: v}
		lit.Sp = p.span(start)
		pt := &ast.LiteralPattern{Value: lit}
		pt.Sp = p.span(start)
		return pt
	case token.Nil:
		p.advance()
		lit := &ast.NilLit{}
		lit.Sp = p.span(start)
		pt := &ast.LiteralPattern{Value: lit}
		pt.Sp = p.span(start)
		return pt
	case token.Minus:
		// Negative numeric literal pattern: `-1 => ...`.
		p.advance()
		switch p.cur().Kind {
		case token.Int:
			v, _ := strconv.ParseInt(p.advance().Lexeme, 10, 64)
			lit := &ast.IntLit{Value: -v}
			lit.Sp = p.span(start)
			pt := &ast.LiteralPattern{Value: lit}
			pt.Sp = p.span(start)
			return pt
		case token.Float:
			v, _ := strconv.ParseFloat(p.advance().Lexeme, 64)
			lit := &ast.FloatLit{Value: -v}
			lit.Sp = p.span(start)
			pt := &ast.LiteralPattern{Value: lit}
			pt.Sp = p.span(start)
			return pt
		default:
			p.errorf("expected a number after '-' in pattern")
			pt := &ast.WildcardPattern{}
			pt.Sp = p.span(start)
			return pt
		}
	case token.LParen:
		p.advance()
		pt := &ast.TuplePattern{}
		for !p.check(token.RParen) && !p.atEOF() {
			pt.Elems = append(pt.Elems, p.parsePattern())
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RParen, "')'")
		pt.Sp = p.span(start)
		return pt
	case token.LBracket:
		p.advance()
		pt := &ast.ArrayPattern{}
		for !p.check(token.RBracket) && !p.atEOF() {
			pt.Elems = append(pt.Elems, p.parsePattern())
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RBracket, "']'")
		pt.Sp = p.span(start)
		return pt
	default:
		p.errorf("unexpected token %s in pattern", p.cur().Kind)
		p.advance()
		pt := &ast.WildcardPattern{}
		pt.Sp = p.span(start)
		return pt
	}
}

// parseIdentOrConstructorPattern disambiguates a bare binding name
// (`x => ...`) from a struct pattern (`Point { x, y } => ...`) and a
// user-defined enum constructor pattern (`Shape::Circle(r) => ...`).
func (p *Parser) parseIdentOrConstructorPattern(start token.Span) ast.Pattern {
	path := p.advance().Lexeme
	for p.check(token.ColonColon) {
		p.advance()
		path += "::" + p.expect(token.Ident, "path segment").Lexeme
	}
	switch {
	case p.check(token.LParen):
		p.advance()
		pt := &ast.ConstructorPattern{Path: path}
		for !p.check(token.RParen) && !p.atEOF() {
			pt.Args = append(pt.Args, p.parsePattern())
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RParen, "')'")
		pt.Sp = p.span(start)
		return pt
	case p.check(token.LBrace):
		p.advance()
		pt := &ast.StructPattern{TypeName: path, Fields: map[string]ast.Pattern{}}
		for !p.check(token.RBrace) && !p.atEOF() {
			fname := p.expect(token.Ident, "field name").Lexeme
			if p.match(token.Colon) {
				pt.Fields[fname] = p.parsePattern()
			} else {
				bp := &ast.BindingPattern{Name: fname}
				bp.Sp = p.span(start)
				pt.Fields[fname] = bp
			}
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RBrace, "'}'")
		pt.Sp = p.span(start)
		return pt
	default:
		// A lone identifier is a catch-all binding, unless it is a
		// qualified path, in which case it is a unit enum-variant
		// constructor with no arguments.
		if containsPathSep(path) {
			pt := &ast.ConstructorPattern{Path: path}
			pt.Sp = p.span(start)
			return pt
		}
		pt := &ast.BindingPattern{Name: path}
		pt.Sp = p.span(start)
		return pt
	}
}

func containsPathSep(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == ':' && s[i+1] == ':' {
			return true
		}
	}
	return false
}
