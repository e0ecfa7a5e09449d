package parser

import (
	"strconv"

	"github.com/concerto-lang/concerto/internal/ast"
	"github.com/concerto-lang/concerto/internal/token"
)

// parseExpr is the entry point for Pratt (precedence-climbing) parsing,
// starting at nil-coalesce — the highest level below assignment, which
// is handled at the statement level (spec §4.2: assignment is the
// lowest-precedence expression form, and in Concerto it only ever
// appears as a full statement `x = e;`).
func (p *Parser) parseExpr() ast.Expr {
	return p.parseNilCoalesce()
}

// parseNilCoalesce: `a ?? b`, right-associative.
func (p *Parser) parseNilCoalesce() ast.Expr {
	left := p.parseOr()
	if p.check(token.QuestionQuestion) {
		start := left.Span()
		p.advance()
		right := p.parseNilCoalesce() // right-assoc: recurse at same level
		e := &ast.NilCoalesce{Left: left, Right: right}
		e.Sp = p.span(start)
		return e
	}
	return left
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.check(token.Or) {
		start := left.Span()
		op := p.advance().Kind
		right := p.parseAnd()
		e := &ast.BinOp{Op: op, Left: left, Right: right}
		e.Sp = p.span(start)
		left = e
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseEquality()
	for p.check(token.And) {
		start := left.Span()
		op := p.advance().Kind
		right := p.parseEquality()
		e := &ast.BinOp{Op: op, Left: left, Right: right}
		e.Sp = p.span(start)
		left = e
	}
	return left
}

func (p *Parser) parseEquality() ast.Expr {
	left := p.parseComparison()
	for p.check(token.Eq) || p.check(token.Ne) {
		start := left.Span()
		op := p.advance().Kind
		right := p.parseComparison()
		e := &ast.BinOp{Op: op, Left: left, Right: right}
		e.Sp = p.span(start)
		left = e
	}
	return left
}

func (p *Parser) parseComparison() ast.Expr {
	left := p.parseRange()
	for p.check(token.Lt) || p.check(token.Le) || p.check(token.Gt) || p.check(token.Ge) {
		start := left.Span()
		op := p.advance().Kind
		right := p.parseRange()
		e := &ast.BinOp{Op: op, Left: left, Right: right}
		e.Sp = p.span(start)
		left = e
	}
	return left
}

func (p *Parser) parseRange() ast.Expr {
	left := p.parseAdditive()
	if p.check(token.DotDot) || p.check(token.DotDotEq) {
		start := left.Span()
		inclusive := p.advance().Kind == token.DotDotEq
		right := p.parseAdditive()
		e := &ast.Range{Start: left, End: right, Inclusive: inclusive}
		e.Sp = p.span(start)
		return e
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.check(token.Plus) || p.check(token.Minus) {
		start := left.Span()
		op := p.advance().Kind
		right := p.parseMultiplicative()
		e := &ast.BinOp{Op: op, Left: left, Right: right}
		e.Sp = p.span(start)
		left = e
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseCast()
	for p.check(token.Star) || p.check(token.Slash) || p.check(token.Percent) {
		start := left.Span()
		op := p.advance().Kind
		right := p.parseCast()
		e := &ast.BinOp{Op: op, Left: left, Right: right}
		e.Sp = p.span(start)
		left = e
	}
	return left
}

func (p *Parser) parseCast() ast.Expr {
	left := p.parseUnary()
	for p.check(token.As) {
		start := left.Span()
		p.advance()
		target := p.parseTypeExpr()
		e := &ast.Cast{Operand: left, Target: target}
		e.Sp = p.span(start)
		left = e
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	if p.check(token.Not) || p.check(token.Minus) {
		start := p.cur().Span
		op := p.advance().Kind
		operand := p.parseUnary()
		e := &ast.UnOp{Op: op, Operand: operand}
		e.Sp = p.span(start)
		return e
	}
	return p.parsePipe()
}

// parsePipe: `a |> f(b)` lowers to a call of f with a prepended as the
// first argument, the way Elixir/F#-style pipe sugar works; if the
// right-hand side is a bare identifier it becomes a single-argument
// call.
func (p *Parser) parsePipe() ast.Expr {
	left := p.parsePostfix()
	for p.check(token.Pipe) {
		start := left.Span()
		p.advance()
		rhs := p.parsePostfix()
		var call *ast.Call
		if c, ok := rhs.(*ast.Call); ok {
			c.Args = append([]ast.Expr{left}, c.Args...)
			call = c
		} else {
			call = &ast.Call{Callee: rhs, Args: []ast.Expr{left}}
		}
		call.Sp = p.span(start)
		left = call
	}
	return left
}

// parsePostfix handles call/index/field/method chaining and the
// propagate (`?`) postfix operator, all at the same tight precedence
// level above primary.
func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		start := e.Span()
		switch p.cur().Kind {
		case token.LParen:
			e = p.finishCall(e, start)
		case token.Dot:
			p.advance()
			name := p.expect(token.Ident, "field or method name").Lexeme
			if p.check(token.LParen) {
				e = p.finishMethodCall(e, name, start)
			} else {
				fa := &ast.FieldAccess{Receiver: e, Field: name}
				fa.Sp = p.span(start)
				e = fa
			}
		case token.LBracket:
			p.advance()
			old := p.noStructLit
			p.noStructLit = false
			idx := p.parseExpr()
			p.noStructLit = old
			p.expect(token.RBracket, "']'")
			ix := &ast.Index{Receiver: e, Index: idx}
			ix.Sp = p.span(start)
			e = ix
		case token.Question:
			p.advance()
			pr := &ast.Propagate{Operand: e}
			pr.Sp = p.span(start)
			e = pr
		default:
			return e
		}
	}
}

func (p *Parser) finishCall(callee ast.Expr, start token.Span) ast.Expr {
	p.advance() // (
	args := p.parseArgs()
	p.expect(token.RParen, "')'")
	c := &ast.Call{Callee: callee, Args: args}
	c.Sp = p.span(start)
	return c
}

func (p *Parser) finishMethodCall(recv ast.Expr, method string, start token.Span) ast.Expr {
	p.advance() // (
	args := p.parseArgs()
	p.expect(token.RParen, "')'")
	c := &ast.MethodCall{Receiver: recv, Method: method, Args: args}
	c.Sp = p.span(start)
	return c
}

func (p *Parser) parseArgs() []ast.Expr {
	old := p.noStructLit
	p.noStructLit = false
	defer func() { p.noStructLit = old }()
	var args []ast.Expr
	for !p.check(token.RParen) && !p.atEOF() {
		args = append(args, p.parseExpr())
		if !p.match(token.Comma) {
			break
		}
	}
	return args
}

// parseParenOrTuple disambiguates `(expr)` grouping from `(e1, e2, ...)`
// tuple-literal syntax: a single element is just grouping, two or more
// comma-separated elements make a TupleLit (ast.TupleLit doc comment).
func (p *Parser) parseParenOrTuple(start token.Span) ast.Expr {
	p.advance() // (
	old := p.noStructLit
	p.noStructLit = false
	defer func() { p.noStructLit = old }()
	if p.check(token.RParen) {
		p.advance()
		e := &ast.TupleLit{}
		e.Sp = p.span(start)
		return e
	}
	first := p.parseExpr()
	if !p.check(token.Comma) {
		p.expect(token.RParen, "')'")
		return first
	}
	elems := []ast.Expr{first}
	for p.match(token.Comma) {
		if p.check(token.RParen) {
			break
		}
		elems = append(elems, p.parseExpr())
	}
	p.expect(token.RParen, "')'")
	e := &ast.TupleLit{Elems: elems}
	e.Sp = p.span(start)
	return e
}

// parseArrayLit parses `[e1, e2, ...]`.
func (p *Parser) parseArrayLit(start token.Span) ast.Expr {
	p.advance() // [
	old := p.noStructLit
	p.noStructLit = false
	defer func() { p.noStructLit = old }()
	var elems []ast.Expr
	for !p.check(token.RBracket) && !p.atEOF() {
		elems = append(elems, p.parseExpr())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBracket, "']'")
	e := &ast.ArrayLit{Elems: elems}
	e.Sp = p.span(start)
	return e
}

// parseStructLit parses `TypeName { field: value, ... }`, with a bare
// `field` shorthand meaning `field: field`.
func (p *Parser) parseStructLit(name string, start token.Span) ast.Expr {
	p.advance() // {
	old := p.noStructLit
	p.noStructLit = false
	defer func() { p.noStructLit = old }()
	lit := &ast.StructLit{TypeName: name, Fields: map[string]ast.Expr{}}
	for !p.check(token.RBrace) && !p.atEOF() {
		fieldStart := p.cur().Span
		fname := p.expect(token.Ident, "field name").Lexeme
		var val ast.Expr
		if p.match(token.Colon) {
			val = p.parseExpr()
		} else {
			id := &ast.Ident{Name: fname}
			id.Sp = p.span(fieldStart)
			val = id
		}
		lit.Fields[fname] = val
		lit.FieldOrder = append(lit.FieldOrder, fname)
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace, "'}'")
	lit.Sp = p.span(start)
	return lit
}

func (p *Parser) parsePrimary() ast.Expr {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.Int:
		v, _ := strconv.ParseInt(p.advance().Lexeme, 10, 64)
		e := &ast.IntLit{Value: v}
		e.Sp = p.span(start)
		return e
	case token.Float:
		v, _ := strconv.ParseFloat(p.advance().Lexeme, 64)
		e := &ast.FloatLit{Value: v}
		e.Sp = p.span(start)
		return e
	case token.True, token.False:
		v := p.advance().Kind == token.True
		e := &ast.BoolLit{Value: v}
		e.Sp = p.span(start)
		return e
	case token.Nil:
		p.advance()
		e := &ast.NilLit{}
		e.Sp = p.span(start)
		return e
	case token.String:
		v := p.advance().Lexeme
		e := &ast.StringLit{Value: v}
		e.Sp = p.span(start)
		return e
	case token.StringPart:
		return p.parseInterpString(start)
	case token.Ident, token.Emit: // `emit` is a keyword token but is called like any builtin
		name := p.advance().Lexeme
		for p.check(token.ColonColon) {
			p.advance()
			name += "::" + p.expect(token.Ident, "path segment").Lexeme
		}
		if !p.noStructLit && p.check(token.LBrace) {
			return p.parseStructLit(name, start)
		}
		e := &ast.Ident{Name: name}
		e.Sp = p.span(start)
		return e
	case token.LParen:
		return p.parseParenOrTuple(start)
	case token.LBracket:
		return p.parseArrayLit(start)
	case token.LBrace:
		return p.parseBlock()
	case token.If:
		return p.parseIf()
	case token.Match:
		return p.parseMatch()
	case token.Try:
		return p.parseTry()
	case token.Throw:
		p.advance()
		val := p.parseExpr()
		e := &ast.Throw{Value: val}
		e.Sp = p.span(start)
		return e
	case token.Bar:
		return p.parseLambda()
	case token.Listen:
		return p.parseListen()
	default:
		p.errorf("unexpected token %s in expression", p.cur().Kind)
		p.advance()
		e := &ast.NilLit{}
		e.Sp = p.span(start)
		return e
	}
}

func (p *Parser) parseInterpString(start token.Span) ast.Expr {
	lit := &ast.InterpString{}
	lit.Parts = append(lit.Parts, p.advance().Lexeme) // the StringPart
	for {
		p.expect(token.InterpOpen, "'${'")
		lit.Exprs = append(lit.Exprs, p.parseExpr())
		p.expect(token.InterpClose, "'}'")
		if p.check(token.String) {
			lit.Parts = append(lit.Parts, p.advance().Lexeme)
			break
		}
		lit.Parts = append(lit.Parts, p.expect(token.StringPart, "string continuation").Lexeme)
	}
	lit.Sp = p.span(start)
	return lit
}

func (p *Parser) parseIf() ast.Expr {
	start := p.cur().Span
	p.advance() // if
	cond := p.exprNoStructLit()
	then := p.parseBlock()
	e := &ast.If{Cond: cond, Then: then}
	if p.match(token.Else) {
		if p.check(token.If) {
			e.Else = p.parseIf()
		} else {
			e.Else = p.parseBlock()
		}
	}
	e.Sp = p.span(start)
	return e
}

func (p *Parser) parseLambda() ast.Expr {
	start := p.cur().Span
	p.advance() // leading '|'
	var params []ast.Param
	for !p.check(token.Bar) && !p.atEOF() {
		name := p.expect(token.Ident, "parameter name").Lexeme
		var typ ast.TypeExpr
		if p.match(token.Colon) {
			typ = p.parseTypeExpr()
		}
		params = append(params, ast.Param{Name: name, Type: typ})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.Bar, "'|'")
	body := p.parseBlock()
	e := &ast.Lambda{Params: params, Body: body}
	e.Sp = p.span(start)
	return e
}

func (p *Parser) parseTry() ast.Expr {
	start := p.cur().Span
	p.advance() // try
	body := p.parseBlock()
	t := &ast.Try{Body: body}
	for p.check(token.Catch) {
		p.advance()
		var cc ast.CatchClause
		if p.check(token.Ident) {
			cc.TypeName = p.advance().Lexeme
			if p.match(token.LParen) {
				cc.Binding = p.expect(token.Ident, "binding name").Lexeme
				p.expect(token.RParen, "')'")
			}
		}
		cc.Body = p.parseBlock()
		t.Catches = append(t.Catches, cc)
	}
	t.Sp = p.span(start)
	return t
}

func (p *Parser) parseListen() ast.Expr {
	start := p.cur().Span
	p.advance() // listen
	target := p.parseExpr()
	call, ok := target.(*ast.Call)
	if !ok {
		if mc, ok2 := target.(*ast.MethodCall); ok2 {
			call = &ast.Call{Callee: &ast.FieldAccess{Receiver: mc.Receiver, Field: mc.Method}, Args: mc.Args}
			call.Sp = mc.Sp
		} else {
			p.errorf("listen target must be a host execute call")
		}
	}
	l := &ast.Listen{Target: call}
	p.expect(token.LBrace, "'{'")
	for p.check(token.On) {
		p.advance()
		msgType := p.expectStringLiteral()
		p.expect(token.FatArrow, "'=>'")
		p.expect(token.Bar, "'|'")
		name := p.expect(token.Ident, "parameter name").Lexeme
		var typ ast.TypeExpr
		if p.match(token.Colon) {
			typ = p.parseTypeExpr()
		}
		p.expect(token.Bar, "'|'")
		body := p.parseBlock()
		l.Handlers = append(l.Handlers, ast.ListenHandler{
			MessageType: msgType,
			Param:       ast.Param{Name: name, Type: typ},
			Body:        body,
		})
		p.match(token.Comma)
	}
	p.expect(token.RBrace, "'}'")
	l.Sp = p.span(start)
	return l
}
