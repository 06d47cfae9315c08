package script

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for state-script syntax
// ---------------------------------------------------------------------------

// Lexer tokenizes state-script source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
	} else {
		r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
		l.ch = r
		l.pos = l.readPos
		l.readPos += size

		// Track line/column. col is the 1-based column of the character
		// currently in ch; it resets as each newline is consumed.
		if r == '\n' {
			l.line++
			l.col = 0
		} else {
			l.col++
		}
	}
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Literal: "", Pos: pos}

	case l.ch == '(':
		l.readChar()
		return Token{Type: TokenLParen, Literal: "(", Pos: pos}

	case l.ch == ')':
		l.readChar()
		return Token{Type: TokenRParen, Literal: ")", Pos: pos}

	case l.ch == '{':
		l.readChar()
		return Token{Type: TokenLBrace, Literal: "{", Pos: pos}

	case l.ch == '}':
		l.readChar()
		return Token{Type: TokenRBrace, Literal: "}", Pos: pos}

	case l.ch == '[':
		l.readChar()
		return Token{Type: TokenLBracket, Literal: "[", Pos: pos}

	case l.ch == ']':
		l.readChar()
		return Token{Type: TokenRBracket, Literal: "]", Pos: pos}

	case l.ch == ',':
		l.readChar()
		return Token{Type: TokenComma, Literal: ",", Pos: pos}

	case l.ch == '.':
		l.readChar()
		return Token{Type: TokenDot, Literal: ".", Pos: pos}

	case l.ch == '=':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenEq, Literal: "==", Pos: pos}
		}
		return Token{Type: TokenAssign, Literal: "=", Pos: pos}

	case l.ch == '!':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenNotEq, Literal: "!=", Pos: pos}
		}
		return Token{Type: TokenError, Literal: "unexpected character: !", Pos: pos}

	case l.ch == '<':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenLtEq, Literal: "<=", Pos: pos}
		}
		return Token{Type: TokenLt, Literal: "<", Pos: pos}

	case l.ch == '>':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenGtEq, Literal: ">=", Pos: pos}
		}
		return Token{Type: TokenGt, Literal: ">", Pos: pos}

	case l.ch == '+':
		l.readChar()
		return Token{Type: TokenPlus, Literal: "+", Pos: pos}

	case l.ch == '-':
		l.readChar()
		return Token{Type: TokenMinus, Literal: "-", Pos: pos}

	case l.ch == '*':
		l.readChar()
		return Token{Type: TokenStar, Literal: "*", Pos: pos}

	case l.ch == '/':
		l.readChar()
		return Token{Type: TokenSlash, Literal: "/", Pos: pos}

	case l.ch == '%':
		l.readChar()
		return Token{Type: TokenPercent, Literal: "%", Pos: pos}

	case l.ch == '"':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(pos)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %c", ch), Pos: pos}
	}
}

// skipWhitespaceAndComments skips whitespace and # line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		break
	}
}

// readString reads a double-quoted string literal.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening "

	var sb strings.Builder
	for l.ch != 0 && l.ch != '"' {
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			case 0:
				return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
			default:
				return Token{Type: TokenError, Literal: fmt.Sprintf("invalid escape: \\%c", l.ch), Pos: pos}
			}
			l.readChar()
			continue
		}
		if l.ch == '\n' {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}

	if l.ch != '"' {
		return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
	}
	l.readChar() // consume closing "

	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// readNumber reads an integer or float literal. Integers may use 0x hex
// notation; floats use a decimal point and/or an exponent.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	isFloat := false

	// Hex notation (0x79999998)
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar() // consume 0
		l.readChar() // consume x
		for isHexDigit(l.ch) {
			l.readChar()
		}
		return Token{Type: TokenInt, Literal: l.input[start:l.pos], Pos: pos}
	}

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		isFloat = true
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if isFloat {
		return Token{Type: TokenFloat, Literal: l.input[start:l.pos], Pos: pos}
	}
	return Token{Type: TokenInt, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos

	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	literal := l.input[start:l.pos]
	if tokType, ok := reservedWords[literal]; ok {
		return Token{Type: tokType, Literal: literal, Pos: pos}
	}
	return Token{Type: TokenIdent, Literal: literal, Pos: pos}
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// Tokenize returns all tokens from the input.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}
