package parser

import (
	"github.com/concerto-lang/concerto/internal/ast"
	"github.com/concerto-lang/concerto/internal/token"
)

func (p *Parser) parseBlock() *ast.Block {
	start := p.cur().Span
	p.expect(token.LBrace, "'{'")
	b := &ast.Block{}
	for !p.check(token.RBrace) && !p.atEOF() {
		// A declaration keyword cannot start a statement: the block was
		// left unclosed, so stop here and let the file level resume.
		switch p.cur().Kind {
		case token.Fn, token.Model, token.Agent, token.Tool, token.Memory, token.Schema,
			token.Enum, token.Struct, token.Pipeline, token.Use, token.Mod:
			p.expect(token.RBrace, "'}'")
			b.Sp = p.span(start)
			return b
		}
		// A bare trailing expression (no statement keyword, not
		// followed by ';') becomes the block's value per spec's
		// expression-oriented blocks; `target = value` is an assignment.
		if p.looksLikeTailExpr() {
			stStart := p.cur().Span
			e := p.parseExpr()
			if p.match(token.Assign) {
				s := &ast.AssignStmt{Target: e, Value: p.parseExpr()}
				p.matchStatementEnd()
				s.Sp = p.span(stStart)
				b.Stmts = append(b.Stmts, s)
				continue
			}
			if p.check(token.RBrace) {
				b.Tail = e
				break
			}
			p.matchStatementEnd()
			b.Stmts = append(b.Stmts, &ast.ExprStmt{Value: e})
			continue
		}
		s := p.parseStmt()
		if s != nil {
			b.Stmts = append(b.Stmts, s)
		}
	}
	p.expect(token.RBrace, "'}'")
	b.Sp = p.span(start)
	return b
}

// looksLikeTailExpr reports whether the current position begins a
// statement we should treat as an expression-statement / tail
// expression rather than a keyword-led statement form.
func (p *Parser) looksLikeTailExpr() bool {
	switch p.cur().Kind {
	case token.Let, token.Return, token.While, token.For:
		return false
	default:
		return true
	}
}

func (p *Parser) parseStmt() ast.Stmt {
	defer func() {
		if r := recover(); r != nil {
			p.synchronize()
		}
	}()
	switch p.cur().Kind {
	case token.Let:
		return p.parseLetStmt()
	case token.Return:
		return p.parseReturnStmt()
	case token.While:
		return p.parseWhileStmt()
	case token.For:
		return p.parseForStmt()
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseLetStmt() ast.Stmt {
	start := p.cur().Span
	p.advance() // let
	mutable := p.match(token.Mut)
	name := p.expect(token.Ident, "variable name").Lexeme
	var typ ast.TypeExpr
	hasType := false
	if p.match(token.Colon) {
		typ = p.parseTypeExpr()
		hasType = true
	}
	p.expect(token.Assign, "'='")
	value := p.parseExpr()
	p.matchStatementEnd()
	s := &ast.LetStmt{Name: name, Mutable: mutable, Value: value}
	if hasType {
		s.Type = typ
	}
	s.Sp = p.span(start)
	return s
}

func (p *Parser) parseReturnStmt() ast.Stmt {
	start := p.cur().Span
	p.advance() // return
	var val ast.Expr
	if !p.check(token.Semicolon) && !p.check(token.RBrace) {
		val = p.parseExpr()
	}
	p.matchStatementEnd()
	s := &ast.ReturnStmt{Value: val}
	s.Sp = p.span(start)
	return s
}

func (p *Parser) parseWhileStmt() ast.Stmt {
	start := p.cur().Span
	p.advance() // while
	cond := p.exprNoStructLit()
	body := p.parseBlock()
	s := &ast.WhileStmt{Cond: cond, Body: body}
	s.Sp = p.span(start)
	return s
}

func (p *Parser) parseForStmt() ast.Stmt {
	start := p.cur().Span
	p.advance() // for
	v := p.expect(token.Ident, "loop variable").Lexeme
	p.expect(token.In, "'in'")
	iter := p.exprNoStructLit()
	body := p.parseBlock()
	s := &ast.ForStmt{Var: v, Iter: iter, Body: body}
	s.Sp = p.span(start)
	return s
}

func (p *Parser) parseExprOrAssignStmt() ast.Stmt {
	start := p.cur().Span
	e := p.parseExpr()
	if p.match(token.Assign) {
		value := p.parseExpr()
		p.matchStatementEnd()
		s := &ast.AssignStmt{Target: e, Value: value}
		s.Sp = p.span(start)
		return s
	}
	p.matchStatementEnd()
	s := &ast.ExprStmt{Value: e}
	s.Sp = p.span(start)
	return s
}
