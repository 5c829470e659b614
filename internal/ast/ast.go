// Package ast defines the typed syntax tree for Lua 5.4 sources.
//
// The node set is closed: every construct the parser can produce is one of
// the types below, so downstream passes dispatch with exhaustive type
// switches instead of string tags.
package ast

import "luxcov.dev/pkg/luxcov/internal/token"

// Node represents any AST node.
type Node interface {
	Pos() token.Position
	Span() token.Span
}

// Statement is an executable node.
type Statement interface {
	Node
	stmtNode()
}

// Expression produces a value.
type Expression interface {
	Node
	exprNode()
}

// Block is a sequence of statements; the root of every chunk.
type Block struct {
	Statements []Statement
	BlockSpan  token.Span
}

func (b *Block) Pos() token.Position {
	if len(b.Statements) == 0 {
		return b.BlockSpan.Start
	}
	return b.Statements[0].Pos()
}
func (b *Block) Span() token.Span { return b.BlockSpan }

// Statements

// LocalStmt is `local a <attrib>, b = e1, e2`.
type LocalStmt struct {
	Local    token.Position
	Names    []LocalName
	Values   []Expression
	StmtSpan token.Span
}

// LocalName is one declared name with its optional 5.4 attribute
// (`close` or `const`).
type LocalName struct {
	Name    string
	Attrib  string
	NamePos token.Position
}

func (s *LocalStmt) Pos() token.Position { return s.Local }
func (s *LocalStmt) Span() token.Span    { return s.StmtSpan }
func (s *LocalStmt) stmtNode()           {}

// AssignStmt is `t1, t2 = e1, e2`.
type AssignStmt struct {
	Targets  []Expression
	Values   []Expression
	StmtSpan token.Span
}

func (s *AssignStmt) Pos() token.Position { return s.Targets[0].Pos() }
func (s *AssignStmt) Span() token.Span    { return s.StmtSpan }
func (s *AssignStmt) stmtNode()           {}

// CallStmt is an expression statement; Lua only allows calls here.
type CallStmt struct {
	Call     Expression
	StmtSpan token.Span
}

func (s *CallStmt) Pos() token.Position { return s.Call.Pos() }
func (s *CallStmt) Span() token.Span    { return s.StmtSpan }
func (s *CallStmt) stmtNode()           {}

// DoStmt is `do ... end`.
type DoStmt struct {
	Do       token.Position
	Body     *Block
	StmtSpan token.Span
}

func (s *DoStmt) Pos() token.Position { return s.Do }
func (s *DoStmt) Span() token.Span    { return s.StmtSpan }
func (s *DoStmt) stmtNode()           {}

// WhileStmt is `while cond do ... end`.
type WhileStmt struct {
	While    token.Position
	Cond     Expression
	Body     *Block
	StmtSpan token.Span
}

func (s *WhileStmt) Pos() token.Position { return s.While }
func (s *WhileStmt) Span() token.Span    { return s.StmtSpan }
func (s *WhileStmt) stmtNode()           {}

// RepeatStmt is `repeat ... until cond`.
type RepeatStmt struct {
	Repeat   token.Position
	Body     *Block
	Until    token.Position
	Cond     Expression
	StmtSpan token.Span
}

func (s *RepeatStmt) Pos() token.Position { return s.Repeat }
func (s *RepeatStmt) Span() token.Span    { return s.StmtSpan }
func (s *RepeatStmt) stmtNode()           {}

// IfStmt covers if/elseif/else chains.
type IfStmt struct {
	If       token.Position
	Cond     Expression
	Then     *Block
	ElseIfs  []ElseIfClause
	Else     *Block // nil when absent
	ElsePos  token.Position
	StmtSpan token.Span
}

// ElseIfClause is one `elseif cond then ...` arm.
type ElseIfClause struct {
	ElseIf token.Position
	Cond   Expression
	Body   *Block
}

func (s *IfStmt) Pos() token.Position { return s.If }
func (s *IfStmt) Span() token.Span    { return s.StmtSpan }
func (s *IfStmt) stmtNode()           {}

// NumericForStmt is `for i = start, stop [, step] do ... end`.
type NumericForStmt struct {
	For      token.Position
	Var      string
	Start    Expression
	Stop     Expression
	Step     Expression // nil when omitted
	Body     *Block
	StmtSpan token.Span
}

func (s *NumericForStmt) Pos() token.Position { return s.For }
func (s *NumericForStmt) Span() token.Span    { return s.StmtSpan }
func (s *NumericForStmt) stmtNode()           {}

// GenericForStmt is `for a, b in exprs do ... end`.
type GenericForStmt struct {
	For      token.Position
	Names    []string
	Values   []Expression
	Body     *Block
	StmtSpan token.Span
}

func (s *GenericForStmt) Pos() token.Position { return s.For }
func (s *GenericForStmt) Span() token.Span    { return s.StmtSpan }
func (s *GenericForStmt) stmtNode()           {}

// FunctionStmt is `function a.b.c:m(...) ... end`.
type FunctionStmt struct {
	Function token.Position
	Name     FuncName
	Fn       *FunctionExpr
	StmtSpan token.Span
}

// FuncName is a dotted path with an optional method part.
type FuncName struct {
	Parts  []string
	Method string // empty unless declared with ':'
}

func (s *FunctionStmt) Pos() token.Position { return s.Function }
func (s *FunctionStmt) Span() token.Span    { return s.StmtSpan }
func (s *FunctionStmt) stmtNode()           {}

// LocalFunctionStmt is `local function f(...) ... end`.
type LocalFunctionStmt struct {
	Local    token.Position
	Name     string
	Fn       *FunctionExpr
	StmtSpan token.Span
}

func (s *LocalFunctionStmt) Pos() token.Position { return s.Local }
func (s *LocalFunctionStmt) Span() token.Span    { return s.StmtSpan }
func (s *LocalFunctionStmt) stmtNode()           {}

// ReturnStmt is `return e1, e2`.
type ReturnStmt struct {
	Return   token.Position
	Values   []Expression
	StmtSpan token.Span
}

func (s *ReturnStmt) Pos() token.Position { return s.Return }
func (s *ReturnStmt) Span() token.Span    { return s.StmtSpan }
func (s *ReturnStmt) stmtNode()           {}

// BreakStmt is `break`.
type BreakStmt struct {
	Break    token.Position
	StmtSpan token.Span
}

func (s *BreakStmt) Pos() token.Position { return s.Break }
func (s *BreakStmt) Span() token.Span    { return s.StmtSpan }
func (s *BreakStmt) stmtNode()           {}

// GotoStmt is `goto label`.
type GotoStmt struct {
	Goto     token.Position
	Label    string
	StmtSpan token.Span
}

func (s *GotoStmt) Pos() token.Position { return s.Goto }
func (s *GotoStmt) Span() token.Span    { return s.StmtSpan }
func (s *GotoStmt) stmtNode()           {}

// LabelStmt is `::label::`.
type LabelStmt struct {
	Start    token.Position
	Name     string
	StmtSpan token.Span
}

func (s *LabelStmt) Pos() token.Position { return s.Start }
func (s *LabelStmt) Span() token.Span    { return s.StmtSpan }
func (s *LabelStmt) stmtNode()           {}

// Expressions

// NilExpr is the literal `nil`.
type NilExpr struct {
	PosT token.Position
	Sp   token.Span
}

func (e *NilExpr) Pos() token.Position { return e.PosT }
func (e *NilExpr) Span() token.Span    { return e.Sp }
func (e *NilExpr) exprNode()           {}

// TrueExpr is the literal `true`.
type TrueExpr struct {
	PosT token.Position
	Sp   token.Span
}

func (e *TrueExpr) Pos() token.Position { return e.PosT }
func (e *TrueExpr) Span() token.Span    { return e.Sp }
func (e *TrueExpr) exprNode()           {}

// FalseExpr is the literal `false`.
type FalseExpr struct {
	PosT token.Position
	Sp   token.Span
}

func (e *FalseExpr) Pos() token.Position { return e.PosT }
func (e *FalseExpr) Span() token.Span    { return e.Sp }
func (e *FalseExpr) exprNode()           {}

// NumberExpr keeps the literal text; luxcov never evaluates numbers.
type NumberExpr struct {
	Value string
	PosT  token.Position
	Sp    token.Span
}

func (e *NumberExpr) Pos() token.Position { return e.PosT }
func (e *NumberExpr) Span() token.Span    { return e.Sp }
func (e *NumberExpr) exprNode()           {}

// StringExpr is a short or long string literal, unescaped.
type StringExpr struct {
	Value string
	PosT  token.Position
	Sp    token.Span
}

func (e *StringExpr) Pos() token.Position { return e.PosT }
func (e *StringExpr) Span() token.Span    { return e.Sp }
func (e *StringExpr) exprNode()           {}

// VarargExpr is `...`.
type VarargExpr struct {
	PosT token.Position
	Sp   token.Span
}

func (e *VarargExpr) Pos() token.Position { return e.PosT }
func (e *VarargExpr) Span() token.Span    { return e.Sp }
func (e *VarargExpr) exprNode()           {}

// FunctionExpr is a function literal; named declarations wrap one.
type FunctionExpr struct {
	Function token.Position
	Params   []string
	IsVararg bool
	Body     *Block
	EndPos   token.Position // position of the closing `end`
	Sp       token.Span
}

func (e *FunctionExpr) Pos() token.Position { return e.Function }
func (e *FunctionExpr) Span() token.Span    { return e.Sp }
func (e *FunctionExpr) exprNode()           {}

// IdentExpr is a plain name reference.
type IdentExpr struct {
	Name string
	PosT token.Position
	Sp   token.Span
}

func (e *IdentExpr) Pos() token.Position { return e.PosT }
func (e *IdentExpr) Span() token.Span    { return e.Sp }
func (e *IdentExpr) exprNode()           {}

// IndexExpr is `left[index]`.
type IndexExpr struct {
	Left  Expression
	Index Expression
	Sp    token.Span
}

func (e *IndexExpr) Pos() token.Position { return e.Left.Pos() }
func (e *IndexExpr) Span() token.Span    { return e.Sp }
func (e *IndexExpr) exprNode()           {}

// DotExpr is `left.field`.
type DotExpr struct {
	Left  Expression
	Field string
	Sp    token.Span
}

func (e *DotExpr) Pos() token.Position { return e.Left.Pos() }
func (e *DotExpr) Span() token.Span    { return e.Sp }
func (e *DotExpr) exprNode()           {}

// CallExpr is `callee(args)`, including string/table call sugar.
type CallExpr struct {
	Callee Expression
	Args   []Expression
	Sp     token.Span
}

func (e *CallExpr) Pos() token.Position { return e.Callee.Pos() }
func (e *CallExpr) Span() token.Span    { return e.Sp }
func (e *CallExpr) exprNode()           {}

// MethodCallExpr is `recv:method(args)`.
type MethodCallExpr struct {
	Recv   Expression
	Method string
	Args   []Expression
	Sp     token.Span
}

func (e *MethodCallExpr) Pos() token.Position { return e.Recv.Pos() }
func (e *MethodCallExpr) Span() token.Span    { return e.Sp }
func (e *MethodCallExpr) exprNode()           {}

// BinaryExpr is `left op right`.
type BinaryExpr struct {
	Left  Expression
	Op    token.Type
	Right Expression
	Sp    token.Span
}

func (e *BinaryExpr) Pos() token.Position { return e.Left.Pos() }
func (e *BinaryExpr) Span() token.Span    { return e.Sp }
func (e *BinaryExpr) exprNode()           {}

// UnaryExpr is `op right` (not, -, #, ~).
type UnaryExpr struct {
	Op    token.Type
	OpPos token.Position
	Right Expression
	Sp    token.Span
}

func (e *UnaryExpr) Pos() token.Position { return e.OpPos }
func (e *UnaryExpr) Span() token.Span    { return e.Sp }
func (e *UnaryExpr) exprNode()           {}

// TableExpr is a table constructor `{ ... }`.
type TableExpr struct {
	LBrace token.Position
	Fields []TableField
	Sp     token.Span
}

// TableField is one constructor entry: `[k]=v`, `name=v` or a bare value.
type TableField struct {
	Key   Expression // nil for array part
	Name  string     // set for `name = value` fields
	Value Expression
}

func (e *TableExpr) Pos() token.Position { return e.LBrace }
func (e *TableExpr) Span() token.Span    { return e.Sp }
func (e *TableExpr) exprNode()           {}
