// Package lexer converts Lua source text into a stream of tokens.
package lexer

import (
	"strings"

	"luxcov.dev/pkg/luxcov/internal/token"
)

// Lexer scans Lua 5.4 source text.
type Lexer struct {
	input   string
	pos     int  // current position in bytes
	readPos int  // next read position
	ch      byte // current char
	line    int
	column  int
}

// New creates a lexer for the provided source text.
func New(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

// NextToken returns the next significant token from the input.
// Comments and whitespace are skipped; after EOF it keeps returning EOF.
func (l *Lexer) NextToken() token.Token {
	for {
		l.skipWhitespace()

		if l.ch == 0 {
			return l.makeToken(token.EOF, "")
		}

		if l.ch == '-' && l.peekChar() == '-' {
			l.skipComment()
			continue
		}

		switch l.ch {
		case '+':
			return l.single(token.Plus)
		case '-':
			return l.single(token.Minus)
		case '*':
			return l.single(token.Star)
		case '/':
			if l.peekChar() == '/' {
				return l.double(token.DSlash)
			}
			return l.single(token.Slash)
		case '%':
			return l.single(token.Percent)
		case '^':
			return l.single(token.Caret)
		case '#':
			return l.single(token.Hash)
		case '&':
			return l.single(token.Ampersand)
		case '~':
			if l.peekChar() == '=' {
				return l.double(token.NotEqual)
			}
			return l.single(token.Tilde)
		case '|':
			return l.single(token.Pipe)
		case '<':
			if l.peekChar() == '<' {
				return l.double(token.LShift)
			}
			if l.peekChar() == '=' {
				return l.double(token.LessEq)
			}
			return l.single(token.Less)
		case '>':
			if l.peekChar() == '>' {
				return l.double(token.RShift)
			}
			if l.peekChar() == '=' {
				return l.double(token.GreaterEq)
			}
			return l.single(token.Greater)
		case '=':
			if l.peekChar() == '=' {
				return l.double(token.Equal)
			}
			return l.single(token.Assign)
		case ';':
			return l.single(token.Semicolon)
		case ':':
			if l.peekChar() == ':' {
				return l.double(token.DoubleCol)
			}
			return l.single(token.Colon)
		case ',':
			return l.single(token.Comma)
		case '.':
			return l.readDots()
		case '(':
			return l.single(token.LParen)
		case ')':
			return l.single(token.RParen)
		case '{':
			return l.single(token.LBrace)
		case '}':
			return l.single(token.RBrace)
		case '[':
			if level, ok := l.longBracketLevel(); ok {
				return l.readLongString(level)
			}
			return l.single(token.LBracket)
		case ']':
			return l.single(token.RBracket)
		case '"', '\'':
			return l.readString(l.ch)
		default:
			if isLetter(l.ch) {
				return l.readIdentifier()
			}
			if isDigit(l.ch) {
				return l.readNumber()
			}
			tok := l.makeToken(token.Illegal, string(l.ch))
			l.readChar()
			return tok
		}
	}
}

func (l *Lexer) makeToken(t token.Type, lit string) token.Token {
	return token.Token{
		Type:    t,
		Literal: lit,
		Pos: token.Position{
			Offset: l.pos,
			Line:   l.line,
			Column: l.column,
		},
	}
}

func (l *Lexer) single(t token.Type) token.Token {
	tok := l.makeToken(t, string(l.ch))
	l.readChar()
	return tok
}

func (l *Lexer) double(t token.Type) token.Token {
	first := l.ch
	tok := l.makeToken(t, "")
	l.readChar()
	tok.Literal = string(first) + string(l.ch)
	l.readChar()
	return tok
}

// readDots handles '.', '..' and '...'.
func (l *Lexer) readDots() token.Token {
	if isDigit(l.peekChar()) {
		return l.readNumber()
	}

	tok := l.makeToken(token.Dot, ".")
	l.readChar()
	if l.ch != '.' {
		return tok
	}

	tok.Type = token.Concat
	tok.Literal = ".."
	l.readChar()
	if l.ch != '.' {
		return tok
	}

	tok.Type = token.Ellipsis
	tok.Literal = "..."
	l.readChar()
	return tok
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.readChar()
	}
}

// skipComment consumes '--' line comments and '--[[ ]]' long comments.
func (l *Lexer) skipComment() {
	l.readChar() // '-'
	l.readChar() // '-'

	if l.ch == '[' {
		if level, ok := l.longBracketLevel(); ok {
			l.readLongString(level)
			return
		}
	}

	for l.ch != 0 && l.ch != '\n' {
		l.readChar()
	}
}

// longBracketLevel checks for a '[' '='* '[' opener without consuming input
// unless the opener is complete.
func (l *Lexer) longBracketLevel() (int, bool) {
	level := 0
	for {
		idx := l.readPos + level
		if idx >= len(l.input) {
			return 0, false
		}
		switch l.input[idx] {
		case '=':
			level++
		case '[':
			return level, true
		default:
			return 0, false
		}
	}
}

// readLongString consumes a [[...]] / [=[...]=] literal at the current '['.
func (l *Lexer) readLongString(level int) token.Token {
	start := l.makeToken(token.String, "")

	// consume opening '[' '='* '['
	for i := 0; i < level+2; i++ {
		l.readChar()
	}
	// a newline immediately after the opener is not part of the literal
	if l.ch == '\n' {
		l.readChar()
	}

	var sb strings.Builder
	closer := "]" + strings.Repeat("=", level) + "]"
	for {
		if l.ch == 0 {
			start.Type = token.Illegal
			start.Literal = "unterminated long string"
			return start
		}
		if l.ch == ']' && strings.HasPrefix(l.input[l.pos:], closer) {
			for i := 0; i < level+2; i++ {
				l.readChar()
			}
			break
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}

	start.Literal = sb.String()
	return start
}

func (l *Lexer) readIdentifier() token.Token {
	start := l.makeToken(token.Ident, "")
	var sb strings.Builder
	for isLetter(l.ch) || isDigit(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	lit := sb.String()
	start.Type = token.LookupIdent(lit)
	start.Literal = lit
	return start
}

// readNumber scans decimal, hex, float and exponent forms.
func (l *Lexer) readNumber() token.Token {
	start := l.makeToken(token.Number, "")
	var sb strings.Builder

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		sb.WriteByte(l.ch)
		l.readChar()
		sb.WriteByte(l.ch)
		l.readChar()
		for isHexDigit(l.ch) || l.ch == '.' {
			sb.WriteByte(l.ch)
			l.readChar()
		}
		if l.ch == 'p' || l.ch == 'P' {
			sb.WriteByte(l.ch)
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				sb.WriteByte(l.ch)
				l.readChar()
			}
			for isDigit(l.ch) {
				sb.WriteByte(l.ch)
				l.readChar()
			}
		}
		start.Literal = sb.String()
		return start
	}

	for isDigit(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	if l.ch == '.' && l.peekChar() != '.' {
		sb.WriteByte(l.ch)
		l.readChar()
		for isDigit(l.ch) {
			sb.WriteByte(l.ch)
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		sb.WriteByte(l.ch)
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			sb.WriteByte(l.ch)
			l.readChar()
		}
		for isDigit(l.ch) {
			sb.WriteByte(l.ch)
			l.readChar()
		}
	}

	start.Literal = sb.String()
	return start
}

func (l *Lexer) readString(quote byte) token.Token {
	start := l.makeToken(token.String, "")
	var sb strings.Builder

	for {
		l.readChar()
		if l.ch == 0 || l.ch == '\n' {
			start.Type = token.Illegal
			start.Literal = "unterminated string"
			return start
		}
		if l.ch == quote {
			l.readChar()
			break
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case '"', '\'', '\\':
				sb.WriteByte(l.ch)
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'a':
				sb.WriteByte('\a')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case 'v':
				sb.WriteByte('\v')
			case '\n':
				sb.WriteByte('\n')
			default:
				sb.WriteByte('\\')
				sb.WriteByte(l.ch)
			}
			continue
		}
		sb.WriteByte(l.ch)
	}

	start.Literal = sb.String()
	return start
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.pos = l.readPos
		l.ch = 0
		return
	}

	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}
