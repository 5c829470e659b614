// Package token defines the lexical tokens of Lua 5.4 source text.
package token

// Type identifies the category of a token.
type Type string

// Token carries the lexical item along with its source position.
type Token struct {
	Type    Type
	Literal string
	Pos     Position
}

// Position describes a byte offset and 1-based line/column.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Span represents an inclusive start and end position for a node.
type Span struct {
	Start Position
	End   Position
}

const (
	Illegal Type = "ILLEGAL"
	EOF     Type = "EOF"

	// identifiers and literals
	Ident  Type = "IDENT"
	Number Type = "NUMBER"
	String Type = "STRING"

	// keywords
	And      Type = "AND"
	Break    Type = "BREAK"
	Do       Type = "DO"
	Else     Type = "ELSE"
	ElseIf   Type = "ELSEIF"
	End      Type = "END"
	False    Type = "FALSE"
	For      Type = "FOR"
	Function Type = "FUNCTION"
	Goto     Type = "GOTO"
	If       Type = "IF"
	In       Type = "IN"
	Local    Type = "LOCAL"
	Nil      Type = "NIL"
	Not      Type = "NOT"
	Or       Type = "OR"
	Repeat   Type = "REPEAT"
	Return   Type = "RETURN"
	Then     Type = "THEN"
	True     Type = "TRUE"
	Until    Type = "UNTIL"
	While    Type = "WHILE"

	// operators
	Plus      Type = "PLUS"      // +
	Minus     Type = "MINUS"     // -
	Star      Type = "STAR"      // *
	Slash     Type = "SLASH"     // /
	DSlash    Type = "DSLASH"    // //
	Percent   Type = "PERCENT"   // %
	Caret     Type = "CARET"     // ^
	Hash      Type = "HASH"      // #
	Ampersand Type = "AMPERSAND" // &
	Tilde     Type = "TILDE"     // ~
	Pipe      Type = "PIPE"      // |
	LShift    Type = "LSHIFT"    // <<
	RShift    Type = "RSHIFT"    // >>
	Equal     Type = "EQUAL"     // ==
	NotEqual  Type = "NOTEQUAL"  // ~=
	Less      Type = "LESS"      // <
	LessEq    Type = "LESSEQ"    // <=
	Greater   Type = "GREATER"   // >
	GreaterEq Type = "GREATEREQ" // >=
	Assign    Type = "ASSIGN"    // =
	Concat    Type = "CONCAT"    // ..
	Ellipsis  Type = "ELLIPSIS"  // ...
	DoubleCol Type = "DOUBLECOL" // ::
	Semicolon Type = "SEMICOLON" // ;
	Colon     Type = "COLON"     // :
	Comma     Type = "COMMA"     // ,
	Dot       Type = "DOT"       // .
	LParen    Type = "LPAREN"    // (
	RParen    Type = "RPAREN"    // )
	LBrace    Type = "LBRACE"    // {
	RBrace    Type = "RBRACE"    // }
	LBracket  Type = "LBRACKET"  // [
	RBracket  Type = "RBRACKET"  // ]
)

var keywords = map[string]Type{
	"and":      And,
	"break":    Break,
	"do":       Do,
	"else":     Else,
	"elseif":   ElseIf,
	"end":      End,
	"false":    False,
	"for":      For,
	"function": Function,
	"goto":     Goto,
	"if":       If,
	"in":       In,
	"local":    Local,
	"nil":      Nil,
	"not":      Not,
	"or":       Or,
	"repeat":   Repeat,
	"return":   Return,
	"then":     Then,
	"true":     True,
	"until":    Until,
	"while":    While,
}

// LookupIdent returns the keyword token type or Ident.
func LookupIdent(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return Ident
}

// IsBlockCloser reports whether the token type terminates an open block.
func IsBlockCloser(t Type) bool {
	switch t {
	case End, Else, ElseIf, Until, EOF:
		return true
	default:
		return false
	}
}
