// Package parser builds a typed AST from Lua 5.4 source text.
//
// Parsing is a preemptible unit: the parser checks its context at bounded
// intervals so a watchdog can abort a runaway parse without corrupting
// any shared state. Size and time ceilings surface as
// model.ResourceLimitError; syntax problems as model.ParseError.
package parser

import (
	"context"
	"fmt"
	"time"

	"luxcov.dev/pkg/luxcov/internal/ast"
	"luxcov.dev/pkg/luxcov/internal/lexer"
	"luxcov.dev/pkg/luxcov/internal/model"
	"luxcov.dev/pkg/luxcov/internal/token"
)

// Options bound the resources one parse may consume.
type Options struct {
	// MaxSourceBytes rejects sources larger than this before lexing.
	// Zero means no ceiling.
	MaxSourceBytes int64
}

// budgetCheckInterval is how many statements may be parsed between
// context checks. Small enough that a deadline lands promptly, large
// enough to stay off the per-statement hot path.
const budgetCheckInterval = 64

// Parse converts source into an AST. The returned error is a
// *model.ParseError or *model.ResourceLimitError.
func Parse(ctx context.Context, source []byte, name string, opts Options) (*ast.Block, error) {
	if opts.MaxSourceBytes > 0 && int64(len(source)) > opts.MaxSourceBytes {
		return nil, &model.ResourceLimitError{
			Name:   name,
			Kind:   "size",
			Limit:  opts.MaxSourceBytes,
			Actual: int64(len(source)),
		}
	}

	p := &parser{
		ctx:   ctx,
		name:  name,
		lex:   lexer.New(string(source)),
		start: time.Now(),
	}
	p.next()
	p.next()

	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != token.EOF {
		return nil, p.errorf(p.cur.Pos, "unexpected %q", p.cur.Literal)
	}
	return block, nil
}

type parser struct {
	ctx       context.Context
	name      string
	lex       *lexer.Lexer
	cur       token.Token
	peek      token.Token
	start     time.Time
	stmtCount int
}

func (p *parser) next() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
}

func (p *parser) errorf(pos token.Position, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return &model.ParseError{
		Name:   p.name,
		Line:   pos.Line,
		Column: pos.Column,
		Msg:    msg,
	}
}

func (p *parser) expect(t token.Type) (token.Token, error) {
	if p.cur.Type != t {
		return token.Token{}, p.errorf(p.cur.Pos, "expected %s, found %q", t, p.cur.Literal)
	}
	tok := p.cur
	p.next()
	return tok, nil
}

// checkBudget enforces the cooperative cancellation contract.
func (p *parser) checkBudget() error {
	p.stmtCount++
	if p.stmtCount%budgetCheckInterval != 0 {
		return nil
	}
	if err := p.ctx.Err(); err != nil {
		return &model.ResourceLimitError{
			Name:   p.name,
			Kind:   "time",
			Actual: time.Since(p.start).Milliseconds(),
		}
	}
	return nil
}

// parseBlock consumes statements until a block-closing token.
func (p *parser) parseBlock() (*ast.Block, error) {
	block := &ast.Block{BlockSpan: token.Span{Start: p.cur.Pos, End: p.cur.Pos}}

	for !token.IsBlockCloser(p.cur.Type) {
		if err := p.checkBudget(); err != nil {
			return nil, err
		}

		if p.cur.Type == token.Semicolon {
			p.next()
			continue
		}

		if p.cur.Type == token.Return {
			stmt, err := p.parseReturn()
			if err != nil {
				return nil, err
			}
			block.Statements = append(block.Statements, stmt)
			break // return ends the block
		}

		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, stmt)
	}

	if n := len(block.Statements); n > 0 {
		block.BlockSpan = token.Span{
			Start: block.Statements[0].Span().Start,
			End:   block.Statements[n-1].Span().End,
		}
	}
	return block, nil
}

func (p *parser) parseStatement() (ast.Statement, error) {
	switch p.cur.Type {
	case token.Local:
		return p.parseLocal()
	case token.If:
		return p.parseIf()
	case token.While:
		return p.parseWhile()
	case token.Repeat:
		return p.parseRepeat()
	case token.For:
		return p.parseFor()
	case token.Do:
		return p.parseDo()
	case token.Function:
		return p.parseFunctionStmt()
	case token.Break:
		stmt := &ast.BreakStmt{Break: p.cur.Pos, StmtSpan: token.Span{Start: p.cur.Pos, End: p.cur.Pos}}
		p.next()
		return stmt, nil
	case token.Goto:
		return p.parseGoto()
	case token.DoubleCol:
		return p.parseLabel()
	default:
		return p.parseExprStatement()
	}
}

func (p *parser) parseReturn() (ast.Statement, error) {
	ret := &ast.ReturnStmt{Return: p.cur.Pos}
	end := p.cur.Pos
	p.next()

	if !token.IsBlockCloser(p.cur.Type) && p.cur.Type != token.Semicolon {
		values, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		ret.Values = values
		end = values[len(values)-1].Span().End
	}
	if p.cur.Type == token.Semicolon {
		end = p.cur.Pos
		p.next()
	}

	ret.StmtSpan = token.Span{Start: ret.Return, End: end}
	return ret, nil
}

func (p *parser) parseLocal() (ast.Statement, error) {
	localPos := p.cur.Pos
	p.next()

	if p.cur.Type == token.Function {
		p.next()
		nameTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		fn, err := p.parseFunctionBody(p.cur.Pos, false)
		if err != nil {
			return nil, err
		}
		return &ast.LocalFunctionStmt{
			Local:    localPos,
			Name:     nameTok.Literal,
			Fn:       fn,
			StmtSpan: token.Span{Start: localPos, End: fn.Sp.End},
		}, nil
	}

	stmt := &ast.LocalStmt{Local: localPos}
	for {
		nameTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		name := ast.LocalName{Name: nameTok.Literal, NamePos: nameTok.Pos}
		if p.cur.Type == token.Less {
			p.next()
			attrTok, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			if attrTok.Literal != "close" && attrTok.Literal != "const" {
				return nil, p.errorf(attrTok.Pos, "unknown attribute %q", attrTok.Literal)
			}
			name.Attrib = attrTok.Literal
			if _, err := p.expect(token.Greater); err != nil {
				return nil, err
			}
		}
		stmt.Names = append(stmt.Names, name)
		if p.cur.Type != token.Comma {
			break
		}
		p.next()
	}

	end := stmt.Names[len(stmt.Names)-1].NamePos
	if p.cur.Type == token.Assign {
		p.next()
		values, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		stmt.Values = values
		end = values[len(values)-1].Span().End
	}

	stmt.StmtSpan = token.Span{Start: localPos, End: end}
	return stmt, nil
}

func (p *parser) parseIf() (ast.Statement, error) {
	stmt := &ast.IfStmt{If: p.cur.Pos}
	p.next()

	cond, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	stmt.Cond = cond
	if _, err := p.expect(token.Then); err != nil {
		return nil, err
	}
	thenBlock, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt.Then = thenBlock

	for p.cur.Type == token.ElseIf {
		arm := ast.ElseIfClause{ElseIf: p.cur.Pos}
		p.next()
		armCond, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		arm.Cond = armCond
		if _, err := p.expect(token.Then); err != nil {
			return nil, err
		}
		armBody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		arm.Body = armBody
		stmt.ElseIfs = append(stmt.ElseIfs, arm)
	}

	if p.cur.Type == token.Else {
		stmt.ElsePos = p.cur.Pos
		p.next()
		elseBlock, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBlock
	}

	endTok, err := p.expect(token.End)
	if err != nil {
		return nil, err
	}
	stmt.StmtSpan = token.Span{Start: stmt.If, End: endTok.Pos}
	return stmt, nil
}

func (p *parser) parseWhile() (ast.Statement, error) {
	stmt := &ast.WhileStmt{While: p.cur.Pos}
	p.next()

	cond, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	stmt.Cond = cond
	if _, err := p.expect(token.Do); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt.Body = body

	endTok, err := p.expect(token.End)
	if err != nil {
		return nil, err
	}
	stmt.StmtSpan = token.Span{Start: stmt.While, End: endTok.Pos}
	return stmt, nil
}

func (p *parser) parseRepeat() (ast.Statement, error) {
	stmt := &ast.RepeatStmt{Repeat: p.cur.Pos}
	p.next()

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	untilTok, err := p.expect(token.Until)
	if err != nil {
		return nil, err
	}
	stmt.Until = untilTok.Pos
	cond, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	stmt.Cond = cond

	stmt.StmtSpan = token.Span{Start: stmt.Repeat, End: cond.Span().End}
	return stmt, nil
}

func (p *parser) parseFor() (ast.Statement, error) {
	forPos := p.cur.Pos
	p.next()

	firstName, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}

	if p.cur.Type == token.Assign {
		p.next()
		return p.parseNumericFor(forPos, firstName.Literal)
	}

	names := []string{firstName.Literal}
	for p.cur.Type == token.Comma {
		p.next()
		nameTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		names = append(names, nameTok.Literal)
	}
	if _, err := p.expect(token.In); err != nil {
		return nil, err
	}

	values, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Do); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	endTok, err := p.expect(token.End)
	if err != nil {
		return nil, err
	}

	return &ast.GenericForStmt{
		For:      forPos,
		Names:    names,
		Values:   values,
		Body:     body,
		StmtSpan: token.Span{Start: forPos, End: endTok.Pos},
	}, nil
}

func (p *parser) parseNumericFor(forPos token.Position, varName string) (ast.Statement, error) {
	start, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Comma); err != nil {
		return nil, err
	}
	stop, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}

	var step ast.Expression
	if p.cur.Type == token.Comma {
		p.next()
		step, err = p.parseExpression(0)
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(token.Do); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	endTok, err := p.expect(token.End)
	if err != nil {
		return nil, err
	}

	return &ast.NumericForStmt{
		For:      forPos,
		Var:      varName,
		Start:    start,
		Stop:     stop,
		Step:     step,
		Body:     body,
		StmtSpan: token.Span{Start: forPos, End: endTok.Pos},
	}, nil
}

func (p *parser) parseDo() (ast.Statement, error) {
	doPos := p.cur.Pos
	p.next()

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	endTok, err := p.expect(token.End)
	if err != nil {
		return nil, err
	}

	return &ast.DoStmt{
		Do:       doPos,
		Body:     body,
		StmtSpan: token.Span{Start: doPos, End: endTok.Pos},
	}, nil
}

func (p *parser) parseFunctionStmt() (ast.Statement, error) {
	fnPos := p.cur.Pos
	p.next()

	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	name := ast.FuncName{Parts: []string{nameTok.Literal}}

	for p.cur.Type == token.Dot {
		p.next()
		part, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		name.Parts = append(name.Parts, part.Literal)
	}

	isMethod := false
	if p.cur.Type == token.Colon {
		p.next()
		method, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		name.Method = method.Literal
		isMethod = true
	}

	fn, err := p.parseFunctionBody(fnPos, isMethod)
	if err != nil {
		return nil, err
	}

	return &ast.FunctionStmt{
		Function: fnPos,
		Name:     name,
		Fn:       fn,
		StmtSpan: token.Span{Start: fnPos, End: fn.Sp.End},
	}, nil
}

// parseFunctionBody parses `(params) block end`. Method declarations get
// an implicit leading `self` parameter.
func (p *parser) parseFunctionBody(fnPos token.Position, isMethod bool) (*ast.FunctionExpr, error) {
	fn := &ast.FunctionExpr{Function: fnPos}
	if isMethod {
		fn.Params = append(fn.Params, "self")
	}

	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	if p.cur.Type != token.RParen {
		for {
			switch p.cur.Type {
			case token.Ident:
				fn.Params = append(fn.Params, p.cur.Literal)
				p.next()
			case token.Ellipsis:
				fn.IsVararg = true
				p.next()
				if p.cur.Type != token.RParen {
					return nil, p.errorf(p.cur.Pos, "'...' must be the last parameter")
				}
			default:
				return nil, p.errorf(p.cur.Pos, "expected parameter name, found %q", p.cur.Literal)
			}
			if p.cur.Type != token.Comma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	fn.Body = body

	endTok, err := p.expect(token.End)
	if err != nil {
		return nil, err
	}
	fn.EndPos = endTok.Pos
	fn.Sp = token.Span{Start: fnPos, End: endTok.Pos}
	return fn, nil
}

func (p *parser) parseGoto() (ast.Statement, error) {
	gotoPos := p.cur.Pos
	p.next()
	labelTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	return &ast.GotoStmt{
		Goto:     gotoPos,
		Label:    labelTok.Literal,
		StmtSpan: token.Span{Start: gotoPos, End: labelTok.Pos},
	}, nil
}

func (p *parser) parseLabel() (ast.Statement, error) {
	startPos := p.cur.Pos
	p.next()
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	endTok, err := p.expect(token.DoubleCol)
	if err != nil {
		return nil, err
	}
	return &ast.LabelStmt{
		Start:    startPos,
		Name:     nameTok.Literal,
		StmtSpan: token.Span{Start: startPos, End: endTok.Pos},
	}, nil
}

// parseExprStatement handles assignments and call statements, the only
// expression statements Lua permits.
func (p *parser) parseExprStatement() (ast.Statement, error) {
	first, err := p.parseSuffixedExpr()
	if err != nil {
		return nil, err
	}

	if p.cur.Type == token.Assign || p.cur.Type == token.Comma {
		targets := []ast.Expression{first}
		for p.cur.Type == token.Comma {
			p.next()
			target, err := p.parseSuffixedExpr()
			if err != nil {
				return nil, err
			}
			targets = append(targets, target)
		}
		for _, target := range targets {
			if !isAssignable(target) {
				return nil, p.errorf(target.Pos(), "cannot assign to this expression")
			}
		}
		if _, err := p.expect(token.Assign); err != nil {
			return nil, err
		}
		values, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		return &ast.AssignStmt{
			Targets:  targets,
			Values:   values,
			StmtSpan: token.Span{Start: first.Pos(), End: values[len(values)-1].Span().End},
		}, nil
	}

	switch first.(type) {
	case *ast.CallExpr, *ast.MethodCallExpr:
		return &ast.CallStmt{Call: first, StmtSpan: first.Span()}, nil
	default:
		return nil, p.errorf(first.Pos(), "syntax error: unexpected expression statement")
	}
}

func isAssignable(e ast.Expression) bool {
	switch e.(type) {
	case *ast.IdentExpr, *ast.IndexExpr, *ast.DotExpr:
		return true
	default:
		return false
	}
}

func (p *parser) parseExprList() ([]ast.Expression, error) {
	first, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	exprs := []ast.Expression{first}
	for p.cur.Type == token.Comma {
		p.next()
		e, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

// Operator priorities from the reference Lua parser: each binary operator
// has a left and right priority; right < left gives right associativity.
type opPriority struct {
	left  int
	right int
}

var binaryPriority = map[token.Type]opPriority{
	token.Or:        {1, 1},
	token.And:       {2, 2},
	token.Less:      {3, 3},
	token.Greater:   {3, 3},
	token.LessEq:    {3, 3},
	token.GreaterEq: {3, 3},
	token.NotEqual:  {3, 3},
	token.Equal:     {3, 3},
	token.Pipe:      {4, 4},
	token.Tilde:     {5, 5},
	token.Ampersand: {6, 6},
	token.LShift:    {7, 7},
	token.RShift:    {7, 7},
	token.Concat:    {9, 8},
	token.Plus:      {10, 10},
	token.Minus:     {10, 10},
	token.Star:      {11, 11},
	token.Slash:     {11, 11},
	token.DSlash:    {11, 11},
	token.Percent:   {11, 11},
	token.Caret:     {14, 13},
}

const unaryPriority = 12

// parseExpression implements precedence climbing over binaryPriority.
func (p *parser) parseExpression(limit int) (ast.Expression, error) {
	var left ast.Expression
	var err error

	switch p.cur.Type {
	case token.Not, token.Minus, token.Hash, token.Tilde:
		opTok := p.cur
		p.next()
		operand, err := p.parseExpression(unaryPriority)
		if err != nil {
			return nil, err
		}
		left = &ast.UnaryExpr{
			Op:    opTok.Type,
			OpPos: opTok.Pos,
			Right: operand,
			Sp:    token.Span{Start: opTok.Pos, End: operand.Span().End},
		}
	default:
		left, err = p.parseSimpleExpr()
		if err != nil {
			return nil, err
		}
	}

	for {
		prio, ok := binaryPriority[p.cur.Type]
		if !ok || prio.left <= limit {
			break
		}
		opTok := p.cur
		p.next()
		right, err := p.parseExpression(prio.right)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{
			Left:  left,
			Op:    opTok.Type,
			Right: right,
			Sp:    token.Span{Start: left.Span().Start, End: right.Span().End},
		}
	}
	return left, nil
}

func (p *parser) parseSimpleExpr() (ast.Expression, error) {
	tok := p.cur
	sp := token.Span{Start: tok.Pos, End: tok.Pos}

	switch tok.Type {
	case token.Nil:
		p.next()
		return &ast.NilExpr{PosT: tok.Pos, Sp: sp}, nil
	case token.True:
		p.next()
		return &ast.TrueExpr{PosT: tok.Pos, Sp: sp}, nil
	case token.False:
		p.next()
		return &ast.FalseExpr{PosT: tok.Pos, Sp: sp}, nil
	case token.Number:
		p.next()
		return &ast.NumberExpr{Value: tok.Literal, PosT: tok.Pos, Sp: sp}, nil
	case token.String:
		p.next()
		return &ast.StringExpr{Value: tok.Literal, PosT: tok.Pos, Sp: sp}, nil
	case token.Ellipsis:
		p.next()
		return &ast.VarargExpr{PosT: tok.Pos, Sp: sp}, nil
	case token.Function:
		p.next()
		return p.parseFunctionBody(tok.Pos, false)
	case token.LBrace:
		return p.parseTableConstructor()
	default:
		return p.parseSuffixedExpr()
	}
}

// parseSuffixedExpr parses a primary expression followed by any number
// of index, member, call or method-call suffixes.
func (p *parser) parseSuffixedExpr() (ast.Expression, error) {
	var expr ast.Expression

	switch p.cur.Type {
	case token.Ident:
		expr = &ast.IdentExpr{
			Name: p.cur.Literal,
			PosT: p.cur.Pos,
			Sp:   token.Span{Start: p.cur.Pos, End: p.cur.Pos},
		}
		p.next()
	case token.LParen:
		p.next()
		inner, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		expr = inner
	default:
		return nil, p.errorf(p.cur.Pos, "unexpected %q", p.cur.Literal)
	}

	for {
		switch p.cur.Type {
		case token.Dot:
			p.next()
			fieldTok, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			expr = &ast.DotExpr{
				Left:  expr,
				Field: fieldTok.Literal,
				Sp:    token.Span{Start: expr.Span().Start, End: fieldTok.Pos},
			}
		case token.LBracket:
			p.next()
			index, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			closeTok, err := p.expect(token.RBracket)
			if err != nil {
				return nil, err
			}
			expr = &ast.IndexExpr{
				Left:  expr,
				Index: index,
				Sp:    token.Span{Start: expr.Span().Start, End: closeTok.Pos},
			}
		case token.Colon:
			p.next()
			methodTok, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			args, end, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.MethodCallExpr{
				Recv:   expr,
				Method: methodTok.Literal,
				Args:   args,
				Sp:     token.Span{Start: expr.Span().Start, End: end},
			}
		case token.LParen, token.String, token.LBrace:
			args, end, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.CallExpr{
				Callee: expr,
				Args:   args,
				Sp:     token.Span{Start: expr.Span().Start, End: end},
			}
		default:
			return expr, nil
		}
	}
}

// parseCallArgs handles `(a, b)`, string-call and table-call sugar.
func (p *parser) parseCallArgs() ([]ast.Expression, token.Position, error) {
	switch p.cur.Type {
	case token.String:
		arg := &ast.StringExpr{
			Value: p.cur.Literal,
			PosT:  p.cur.Pos,
			Sp:    token.Span{Start: p.cur.Pos, End: p.cur.Pos},
		}
		end := p.cur.Pos
		p.next()
		return []ast.Expression{arg}, end, nil
	case token.LBrace:
		table, err := p.parseTableConstructor()
		if err != nil {
			return nil, token.Position{}, err
		}
		return []ast.Expression{table}, table.Span().End, nil
	case token.LParen:
		p.next()
		var args []ast.Expression
		if p.cur.Type != token.RParen {
			list, err := p.parseExprList()
			if err != nil {
				return nil, token.Position{}, err
			}
			args = list
		}
		closeTok, err := p.expect(token.RParen)
		if err != nil {
			return nil, token.Position{}, err
		}
		return args, closeTok.Pos, nil
	default:
		return nil, token.Position{}, p.errorf(p.cur.Pos, "expected arguments, found %q", p.cur.Literal)
	}
}

func (p *parser) parseTableConstructor() (ast.Expression, error) {
	openTok, err := p.expect(token.LBrace)
	if err != nil {
		return nil, err
	}
	table := &ast.TableExpr{LBrace: openTok.Pos}

	for p.cur.Type != token.RBrace {
		if err := p.checkBudget(); err != nil {
			return nil, err
		}

		var field ast.TableField
		switch {
		case p.cur.Type == token.LBracket:
			p.next()
			key, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Assign); err != nil {
				return nil, err
			}
			value, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			field = ast.TableField{Key: key, Value: value}
		case p.cur.Type == token.Ident && p.peek.Type == token.Assign:
			name := p.cur.Literal
			p.next()
			p.next()
			value, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			field = ast.TableField{Name: name, Value: value}
		default:
			value, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			field = ast.TableField{Value: value}
		}
		table.Fields = append(table.Fields, field)

		if p.cur.Type == token.Comma || p.cur.Type == token.Semicolon {
			p.next()
			continue
		}
		break
	}

	closeTok, err := p.expect(token.RBrace)
	if err != nil {
		return nil, err
	}
	table.Sp = token.Span{Start: openTok.Pos, End: closeTok.Pos}
	return table, nil
}
