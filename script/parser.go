package script

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for state-script syntax
// ---------------------------------------------------------------------------

// Parser parses state-script source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	errors    []string
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete script. name is recorded as the script's source
// name (usually the file path).
func Parse(name, input string) (*Script, error) {
	p := NewParser(input)
	s := p.ParseScript()
	s.Name = name
	if len(p.errors) > 0 {
		return nil, fmt.Errorf("parse errors: %s", strings.Join(p.errors, "; "))
	}
	return s, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken.Type)
	return false
}

// errorf records a parse error.
func (p *Parser) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf("line %d: %s", p.curToken.Pos.Line, fmt.Sprintf(format, args...))
	p.errors = append(p.errors, msg)
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []string {
	return p.errors
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseScript parses the whole input: use declarations, an optional machine
// description, then state declarations.
func (p *Parser) ParseScript() *Script {
	s := &Script{}
	start := p.curToken.Pos

	for p.curTokenIs(TokenUse) {
		if use := p.parseUse(); use != nil {
			s.Uses = append(s.Uses, use)
		}
	}

	if p.curTokenIs(TokenMachine) {
		p.nextToken()
		if p.curTokenIs(TokenString) {
			s.Description = p.curToken.Literal
			p.nextToken()
		} else {
			p.errorf("expected description string after 'machine'")
		}
	}

	for !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenState) {
			if st := p.parseState(); st != nil {
				s.States = append(s.States, st)
			}
			continue
		}
		if p.curTokenIs(TokenError) {
			p.errorf("%s", p.curToken.Literal)
			p.nextToken()
			continue
		}
		p.errorf("expected 'state', got %s", p.curToken.Type)
		p.nextToken()
	}

	s.SpanVal = MakeSpan(start, p.curToken.Pos)
	return s
}

// parseUse parses: use "path".
func (p *Parser) parseUse() *UseDecl {
	start := p.curToken.Pos
	p.nextToken() // consume use

	if !p.curTokenIs(TokenString) {
		p.errorf("expected file path string after 'use'")
		return nil
	}
	path := p.curToken.Literal
	end := p.curToken.Pos
	p.nextToken()

	return &UseDecl{SpanVal: MakeSpan(start, end), Path: path}
}

// parseState parses: state Name { "annotation" member* }.
func (p *Parser) parseState() *StateDecl {
	start := p.curToken.Pos
	p.nextToken() // consume state

	if !p.curTokenIs(TokenIdent) {
		p.errorf("expected state name, got %s", p.curToken.Type)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	if !p.expect(TokenLBrace) {
		return nil
	}

	st := &StateDecl{Name: name}

	if p.curTokenIs(TokenString) {
		st.Annotation = p.curToken.Literal
		st.AnnPos = p.curToken.Pos
		p.nextToken()
	} else {
		p.errorf("state %s: expected annotation string (\"N\" or \"N: description\")", name)
	}

	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		if m := p.parseMember(); m != nil {
			st.Members = append(st.Members, m)
		}
	}
	p.expect(TokenRBrace)

	st.SpanVal = MakeSpan(start, p.curToken.Pos)
	return st
}

// parseMember parses one state member: name { ... }.
func (p *Parser) parseMember() *MemberBlock {
	if !p.curTokenIs(TokenIdent) {
		p.errorf("expected member name in state body, got %s", p.curToken.Type)
		p.nextToken()
		return nil
	}

	m := &MemberBlock{Kind: p.curToken.Literal}
	start := p.curToken.Pos
	p.nextToken()

	if !p.expect(TokenLBrace) {
		return nil
	}

	if m.Kind == "previous_states" {
		for p.curTokenIs(TokenInt) {
			n, err := strconv.ParseInt(p.curToken.Literal, 0, 64)
			if err != nil {
				p.errorf("invalid state index %q", p.curToken.Literal)
			}
			m.Prev = append(m.Prev, n)
			p.nextToken()
		}
	} else {
		m.Body = p.parseStatements()
	}
	p.expect(TokenRBrace)

	m.SpanVal = MakeSpan(start, p.curToken.Pos)
	return m
}

// ---------------------------------------------------------------------------
// Statement parsing
// ---------------------------------------------------------------------------

// parseStatements parses statements until a closing brace or EOF.
func (p *Parser) parseStatements() []Stmt {
	var stmts []Stmt
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		if stmt := p.parseStatement(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// parseStatement parses a single statement.
func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case TokenIf:
		return p.parseIf()
	case TokenReturn:
		return p.parseReturn()
	case TokenError:
		p.errorf("%s", p.curToken.Literal)
		p.nextToken()
		return nil
	default:
		start := p.curToken.Pos
		expr := p.ParseExpression()
		if expr == nil {
			return nil
		}
		return &ExprStmt{SpanVal: MakeSpan(start, expr.Span().End), Expr: expr}
	}
}

// parseIf parses: if expr { ... } (else { ... })?.
func (p *Parser) parseIf() *If {
	start := p.curToken.Pos
	p.nextToken() // consume if

	test := p.ParseExpression()
	if test == nil {
		return nil
	}
	body := p.parseBlock()

	var elseBody []Stmt
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		elseBody = p.parseBlock()
	}

	return &If{
		SpanVal: MakeSpan(start, p.curToken.Pos),
		Test:    test,
		Body:    body,
		Else:    elseBody,
	}
}

// parseBlock parses: { stmt* }.
func (p *Parser) parseBlock() []Stmt {
	if !p.expect(TokenLBrace) {
		return nil
	}
	stmts := p.parseStatements()
	p.expect(TokenRBrace)
	return stmts
}

// parseReturn parses: return expr.
func (p *Parser) parseReturn() *Return {
	start := p.curToken.Pos
	p.nextToken() // consume return

	value := p.ParseExpression()
	if value == nil {
		return nil
	}

	return &Return{
		SpanVal: MakeSpan(start, value.Span().End),
		Value:   value,
	}
}

// ---------------------------------------------------------------------------
// Expression parsing (precedence climbing)
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression at the lowest precedence level.
func (p *Parser) ParseExpression() Expr {
	return p.parseOr()
}

// parseOr parses or-chains; consecutive operands flatten into one node.
func (p *Parser) parseOr() Expr {
	left := p.parseAnd()
	if left == nil || !p.curTokenIs(TokenOr) {
		return left
	}
	operands := []Expr{left}
	for p.curTokenIs(TokenOr) {
		p.nextToken()
		right := p.parseAnd()
		if right == nil {
			return nil
		}
		operands = append(operands, right)
	}
	return &Logical{
		SpanVal:  MakeSpan(left.Span().Start, operands[len(operands)-1].Span().End),
		Op:       OpOr,
		Operands: operands,
	}
}

// parseAnd parses and-chains; consecutive operands flatten into one node.
func (p *Parser) parseAnd() Expr {
	left := p.parseNot()
	if left == nil || !p.curTokenIs(TokenAnd) {
		return left
	}
	operands := []Expr{left}
	for p.curTokenIs(TokenAnd) {
		p.nextToken()
		right := p.parseNot()
		if right == nil {
			return nil
		}
		operands = append(operands, right)
	}
	return &Logical{
		SpanVal:  MakeSpan(left.Span().Start, operands[len(operands)-1].Span().End),
		Op:       OpAnd,
		Operands: operands,
	}
}

// parseNot parses: not expr.
func (p *Parser) parseNot() Expr {
	if !p.curTokenIs(TokenNot) {
		return p.parseComparison()
	}
	start := p.curToken.Pos
	p.nextToken()
	operand := p.parseNot()
	if operand == nil {
		return nil
	}
	return &Unary{
		SpanVal: MakeSpan(start, operand.Span().End),
		Op:      OpNot,
		Operand: operand,
	}
}

var compareOps = map[TokenType]CompareOp{
	TokenEq:    OpEq,
	TokenNotEq: OpNotEq,
	TokenLt:    OpLt,
	TokenGt:    OpGt,
	TokenLtEq:  OpLtEq,
	TokenGtEq:  OpGtEq,
}

// parseComparison parses a comparison with exactly one operator.
func (p *Parser) parseComparison() Expr {
	left := p.parseAdditive()
	if left == nil {
		return left
	}
	op, ok := compareOps[p.curToken.Type]
	if !ok {
		return left
	}
	p.nextToken()
	right := p.parseAdditive()
	if right == nil {
		return nil
	}
	result := &Compare{
		SpanVal: MakeSpan(left.Span().Start, right.Span().End),
		Op:      op,
		Left:    left,
		Right:   right,
	}
	if _, chained := compareOps[p.curToken.Type]; chained {
		p.errorf("chained comparisons are not supported")
	}
	return result
}

// parseAdditive parses + and - (left associative).
func (p *Parser) parseAdditive() Expr {
	left := p.parseTerm()
	for left != nil && (p.curTokenIs(TokenPlus) || p.curTokenIs(TokenMinus)) {
		op := OpAdd
		if p.curTokenIs(TokenMinus) {
			op = OpSub
		}
		p.nextToken()
		right := p.parseTerm()
		if right == nil {
			return nil
		}
		left = &Binary{
			SpanVal: MakeSpan(left.Span().Start, right.Span().End),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

// parseTerm parses *, / and % (left associative).
func (p *Parser) parseTerm() Expr {
	left := p.parseUnary()
	for left != nil && (p.curTokenIs(TokenStar) || p.curTokenIs(TokenSlash) || p.curTokenIs(TokenPercent)) {
		var op BinaryOp
		switch p.curToken.Type {
		case TokenStar:
			op = OpMul
		case TokenSlash:
			op = OpDiv
		case TokenPercent:
			op = OpMod
		}
		p.nextToken()
		right := p.parseUnary()
		if right == nil {
			return nil
		}
		left = &Binary{
			SpanVal: MakeSpan(left.Span().Start, right.Span().End),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

// parseUnary parses unary minus.
func (p *Parser) parseUnary() Expr {
	if !p.curTokenIs(TokenMinus) {
		return p.parsePrimary()
	}
	start := p.curToken.Pos
	p.nextToken()
	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &Unary{
		SpanVal: MakeSpan(start, operand.Span().End),
		Op:      OpNeg,
		Operand: operand,
	}
}

// parsePrimary parses literals, names, indexed names, selectors, calls and
// parenthesized expressions.
func (p *Parser) parsePrimary() Expr {
	tok := p.curToken

	switch tok.Type {
	case TokenInt:
		n, err := strconv.ParseInt(tok.Literal, 0, 64)
		if err != nil {
			p.errorf("invalid integer literal %q", tok.Literal)
			p.nextToken()
			return nil
		}
		p.nextToken()
		return &IntLiteral{SpanVal: MakeSpan(tok.Pos, p.curToken.Pos), Value: n}

	case TokenFloat:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorf("invalid float literal %q", tok.Literal)
			p.nextToken()
			return nil
		}
		p.nextToken()
		return &FloatLiteral{SpanVal: MakeSpan(tok.Pos, p.curToken.Pos), Value: f}

	case TokenString:
		p.nextToken()
		return &StringLiteral{SpanVal: MakeSpan(tok.Pos, p.curToken.Pos), Value: tok.Literal}

	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BoolLiteral{SpanVal: MakeSpan(tok.Pos, p.curToken.Pos), Value: tok.Type == TokenTrue}

	case TokenLParen:
		p.nextToken()
		expr := p.ParseExpression()
		p.expect(TokenRParen)
		return expr

	case TokenIdent:
		return p.parseName()

	case TokenError:
		p.errorf("%s", tok.Literal)
		p.nextToken()
		return nil

	default:
		p.errorf("unexpected token %s in expression", tok.Type)
		p.nextToken()
		return nil
	}
}

// parseName parses an identifier and its postfix forms: Module.Member,
// Name[index], Name(...), and Name[index](...).
func (p *Parser) parseName() Expr {
	tok := p.curToken
	p.nextToken()

	if p.curTokenIs(TokenDot) {
		p.nextToken()
		if !p.curTokenIs(TokenIdent) {
			p.errorf("expected member name after '%s.'", tok.Literal)
			return nil
		}
		member := p.curToken.Literal
		p.nextToken()
		return &Selector{
			SpanVal: MakeSpan(tok.Pos, p.curToken.Pos),
			Module:  tok.Literal,
			Member:  member,
		}
	}

	var fn Expr = &Ident{SpanVal: MakeSpan(tok.Pos, p.curToken.Pos), Name: tok.Literal}

	if p.curTokenIs(TokenLBracket) {
		p.nextToken()
		idx := p.ParseExpression()
		if idx == nil {
			return nil
		}
		p.expect(TokenRBracket)
		fn = &Index{
			SpanVal: MakeSpan(tok.Pos, p.curToken.Pos),
			Name:    tok.Literal,
			Index:   idx,
		}
	}

	if p.curTokenIs(TokenLParen) {
		return p.parseCall(fn, tok.Pos)
	}
	return fn
}

// parseCall parses the argument list of a call. Keyword arguments may not be
// followed by positional ones.
func (p *Parser) parseCall(fn Expr, start Position) Expr {
	p.nextToken() // consume (

	call := &Call{Func: fn}
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenIdent) && p.peekTokenIs(TokenAssign) {
			name := p.curToken.Literal
			namePos := p.curToken.Pos
			p.nextToken()
			p.nextToken()
			value := p.ParseExpression()
			if value == nil {
				return nil
			}
			call.Kwargs = append(call.Kwargs, Kwarg{Name: name, NamePos: namePos, Value: value})
		} else {
			if len(call.Kwargs) > 0 {
				p.errorf("positional argument follows keyword argument")
			}
			arg := p.ParseExpression()
			if arg == nil {
				return nil
			}
			call.Args = append(call.Args, arg)
		}
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else {
			break
		}
	}
	p.expect(TokenRParen)

	call.SpanVal = MakeSpan(start, p.curToken.Pos)
	return call
}
