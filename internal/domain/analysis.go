// Package domain provides the core coverage logic: executable-line
// analysis, source instrumentation, the runtime session and snapshot
// merging.
package domain

import (
	"strings"

	"luxcov.dev/pkg/luxcov/internal/ast"
	m "luxcov.dev/pkg/luxcov/internal/model"
	"luxcov.dev/pkg/luxcov/internal/token"
)

// AnalysisPolicy configures what counts as an executable line.
type AnalysisPolicy struct {
	// CountControlKeywords also marks lines holding only control-flow
	// keywords (`end`, `else`, `until`) as executable.
	CountControlKeywords bool
}

// ExecutableLines derives the set of lines holding an independently
// runnable statement. Pure function of (ast, policy); the same input
// always yields the same set.
func ExecutableLines(block *ast.Block, policy AnalysisPolicy) map[int]struct{} {
	lines := make(map[int]struct{})
	markBlock(block, policy, lines)
	return lines
}

func markBlock(b *ast.Block, policy AnalysisPolicy, lines map[int]struct{}) {
	if b == nil {
		return
	}
	for _, stmt := range b.Statements {
		markStmt(stmt, policy, lines)
	}
}

func markStmt(s ast.Statement, policy AnalysisPolicy, lines map[int]struct{}) {
	lines[s.Pos().Line] = struct{}{}

	switch st := s.(type) {
	case *ast.LocalStmt:
		markExprs(st.Values, policy, lines)
	case *ast.AssignStmt:
		markExprs(st.Values, policy, lines)
	case *ast.CallStmt:
		markExpr(st.Call, policy, lines)
	case *ast.DoStmt:
		markBlock(st.Body, policy, lines)
		markCloser(st.StmtSpan, policy, lines)
	case *ast.WhileStmt:
		markExpr(st.Cond, policy, lines)
		markBlock(st.Body, policy, lines)
		markCloser(st.StmtSpan, policy, lines)
	case *ast.RepeatStmt:
		markBlock(st.Body, policy, lines)
		markExpr(st.Cond, policy, lines)
		if policy.CountControlKeywords && !endsInReturn(st.Body) {
			lines[st.Until.Line] = struct{}{}
		}
	case *ast.IfStmt:
		markExpr(st.Cond, policy, lines)
		markBlock(st.Then, policy, lines)
		for _, arm := range st.ElseIfs {
			markExpr(arm.Cond, policy, lines)
			markBlock(arm.Body, policy, lines)
		}
		markBlock(st.Else, policy, lines)
		if policy.CountControlKeywords && st.Else != nil {
			lines[st.ElsePos.Line] = struct{}{}
		}
		markCloser(st.StmtSpan, policy, lines)
	case *ast.NumericForStmt:
		markExpr(st.Start, policy, lines)
		markExpr(st.Stop, policy, lines)
		if st.Step != nil {
			markExpr(st.Step, policy, lines)
		}
		markBlock(st.Body, policy, lines)
		markCloser(st.StmtSpan, policy, lines)
	case *ast.GenericForStmt:
		markExprs(st.Values, policy, lines)
		markBlock(st.Body, policy, lines)
		markCloser(st.StmtSpan, policy, lines)
	case *ast.FunctionStmt:
		markBlock(st.Fn.Body, policy, lines)
		markCloser(st.StmtSpan, policy, lines)
	case *ast.LocalFunctionStmt:
		markBlock(st.Fn.Body, policy, lines)
		markCloser(st.StmtSpan, policy, lines)
	case *ast.ReturnStmt:
		markExprs(st.Values, policy, lines)
	}
}

func markExprs(exprs []ast.Expression, policy AnalysisPolicy, lines map[int]struct{}) {
	for _, e := range exprs {
		markExpr(e, policy, lines)
	}
}

// markExpr descends into expressions only to find function literals,
// whose bodies contain executable statements of their own.
func markExpr(e ast.Expression, policy AnalysisPolicy, lines map[int]struct{}) {
	switch ex := e.(type) {
	case *ast.FunctionExpr:
		markBlock(ex.Body, policy, lines)
	case *ast.IndexExpr:
		markExpr(ex.Left, policy, lines)
		markExpr(ex.Index, policy, lines)
	case *ast.DotExpr:
		markExpr(ex.Left, policy, lines)
	case *ast.CallExpr:
		markExpr(ex.Callee, policy, lines)
		markExprs(ex.Args, policy, lines)
	case *ast.MethodCallExpr:
		markExpr(ex.Recv, policy, lines)
		markExprs(ex.Args, policy, lines)
	case *ast.BinaryExpr:
		markExpr(ex.Left, policy, lines)
		markExpr(ex.Right, policy, lines)
	case *ast.UnaryExpr:
		markExpr(ex.Right, policy, lines)
	case *ast.TableExpr:
		for _, f := range ex.Fields {
			if f.Key != nil {
				markExpr(f.Key, policy, lines)
			}
			markExpr(f.Value, policy, lines)
		}
	}
}

func markCloser(span token.Span, policy AnalysisPolicy, lines map[int]struct{}) {
	if !policy.CountControlKeywords {
		return
	}
	lines[span.End.Line] = struct{}{}
}

// endsInReturn reports whether the block's last statement is a return.
// Code placed after it would be unreachable and, in Lua, illegal, so
// the `until` of such a body is never marked or instrumented.
func endsInReturn(b *ast.Block) bool {
	if b == nil || len(b.Statements) == 0 {
		return false
	}
	_, ok := b.Statements[len(b.Statements)-1].(*ast.ReturnStmt)
	return ok
}

// Functions extracts the function table in deterministic pre-order.
// Body line ranges are half-open: EndLine is the first line past the
// closing `end`.
func Functions(block *ast.Block, path m.Path) []m.FunctionRecord {
	records, _ := collectFunctions(block, path)
	return records
}

// collectFunctions also returns the node-to-index map the instrumenter
// uses so function IDs always agree with the record order.
func collectFunctions(block *ast.Block, path m.Path) ([]m.FunctionRecord, map[*ast.FunctionExpr]int) {
	c := &funcCollector{path: path, ids: make(map[*ast.FunctionExpr]int)}
	c.block(block)
	return c.records, c.ids
}

type funcCollector struct {
	path    m.Path
	records []m.FunctionRecord
	ids     map[*ast.FunctionExpr]int
}

func (c *funcCollector) add(name string, fn *ast.FunctionExpr) {
	c.ids[fn] = len(c.records)
	c.records = append(c.records, m.FunctionRecord{
		File:      c.path,
		Name:      name,
		StartLine: fn.Function.Line,
		EndLine:   fn.EndPos.Line + 1,
		Params:    fn.Params,
		IsVararg:  fn.IsVararg,
	})
	c.block(fn.Body)
}

func (c *funcCollector) block(b *ast.Block) {
	if b == nil {
		return
	}
	for _, stmt := range b.Statements {
		c.stmt(stmt)
	}
}

func (c *funcCollector) stmt(s ast.Statement) {
	switch st := s.(type) {
	case *ast.LocalStmt:
		c.exprs(st.Values)
	case *ast.AssignStmt:
		c.exprs(st.Values)
	case *ast.CallStmt:
		c.expr(st.Call)
	case *ast.DoStmt:
		c.block(st.Body)
	case *ast.WhileStmt:
		c.expr(st.Cond)
		c.block(st.Body)
	case *ast.RepeatStmt:
		c.block(st.Body)
		c.expr(st.Cond)
	case *ast.IfStmt:
		c.expr(st.Cond)
		c.block(st.Then)
		for _, arm := range st.ElseIfs {
			c.expr(arm.Cond)
			c.block(arm.Body)
		}
		c.block(st.Else)
	case *ast.NumericForStmt:
		c.expr(st.Start)
		c.expr(st.Stop)
		if st.Step != nil {
			c.expr(st.Step)
		}
		c.block(st.Body)
	case *ast.GenericForStmt:
		c.exprs(st.Values)
		c.block(st.Body)
	case *ast.FunctionStmt:
		c.add(funcStmtName(st.Name), st.Fn)
	case *ast.LocalFunctionStmt:
		c.add(st.Name, st.Fn)
	case *ast.ReturnStmt:
		c.exprs(st.Values)
	}
}

func (c *funcCollector) exprs(exprs []ast.Expression) {
	for _, e := range exprs {
		c.expr(e)
	}
}

func (c *funcCollector) expr(e ast.Expression) {
	switch ex := e.(type) {
	case *ast.FunctionExpr:
		c.add("<anonymous>", ex)
	case *ast.IndexExpr:
		c.expr(ex.Left)
		c.expr(ex.Index)
	case *ast.DotExpr:
		c.expr(ex.Left)
	case *ast.CallExpr:
		c.expr(ex.Callee)
		c.exprs(ex.Args)
	case *ast.MethodCallExpr:
		c.expr(ex.Recv)
		c.exprs(ex.Args)
	case *ast.BinaryExpr:
		c.expr(ex.Left)
		c.expr(ex.Right)
	case *ast.UnaryExpr:
		c.expr(ex.Right)
	case *ast.TableExpr:
		for _, f := range ex.Fields {
			if f.Key != nil {
				c.expr(f.Key)
			}
			c.expr(f.Value)
		}
	}
}

func funcStmtName(n ast.FuncName) string {
	name := strings.Join(n.Parts, ".")
	if n.Method != "" {
		name += ":" + n.Method
	}
	return name
}
