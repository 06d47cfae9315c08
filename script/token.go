package script

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the state-script lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInt    // 42, 0x79999998
	TokenFloat  // 3.14, 1.5e10
	TokenString // "hello"
	TokenIdent  // GetDistanceToPlayer, MACHINE_ARGS

	// Keywords
	TokenUse
	TokenMachine
	TokenState
	TokenIf
	TokenElse
	TokenReturn
	TokenAnd
	TokenOr
	TokenNot
	TokenTrue
	TokenFalse

	// Delimiters
	TokenLParen   // (
	TokenRParen   // )
	TokenLBrace   // {
	TokenRBrace   // }
	TokenLBracket // [
	TokenRBracket // ]
	TokenComma    // ,
	TokenDot      // .
	TokenAssign   // = (keyword arguments only)

	// Operators
	TokenEq      // ==
	TokenNotEq   // !=
	TokenLt      // <
	TokenGt      // >
	TokenLtEq    // <=
	TokenGtEq    // >=
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
)

var tokenNames = map[TokenType]string{
	TokenEOF:      "EOF",
	TokenError:    "ERROR",
	TokenInt:      "INT",
	TokenFloat:    "FLOAT",
	TokenString:   "STRING",
	TokenIdent:    "IDENT",
	TokenUse:      "use",
	TokenMachine:  "machine",
	TokenState:    "state",
	TokenIf:       "if",
	TokenElse:     "else",
	TokenReturn:   "return",
	TokenAnd:      "and",
	TokenOr:       "or",
	TokenNot:      "not",
	TokenTrue:     "true",
	TokenFalse:    "false",
	TokenLParen:   "(",
	TokenRParen:   ")",
	TokenLBrace:   "{",
	TokenRBrace:   "}",
	TokenLBracket: "[",
	TokenRBracket: "]",
	TokenComma:    ",",
	TokenDot:      ".",
	TokenAssign:   "=",
	TokenEq:       "==",
	TokenNotEq:    "!=",
	TokenLt:       "<",
	TokenGt:       ">",
	TokenLtEq:     "<=",
	TokenGtEq:     ">=",
	TokenPlus:     "+",
	TokenMinus:    "-",
	TokenStar:     "*",
	TokenSlash:    "/",
	TokenPercent:  "%",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"use":     TokenUse,
	"machine": TokenMachine,
	"state":   TokenState,
	"if":      TokenIf,
	"else":    TokenElse,
	"return":  TokenReturn,
	"and":     TokenAnd,
	"or":      TokenOr,
	"not":     TokenNot,
	"true":    TokenTrue,
	"false":   TokenFalse,
}
