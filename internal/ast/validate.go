package ast

import "fmt"

// Validate checks the structural invariants the instrumenter relies on:
// no nil children where the grammar requires one, and spans that do not
// run backwards. It returns the first violation found.
func Validate(b *Block) error {
	if b == nil {
		return fmt.Errorf("nil block")
	}
	return validateBlock(b)
}

func validateBlock(b *Block) error {
	for i, stmt := range b.Statements {
		if stmt == nil {
			return fmt.Errorf("nil statement at index %d", i)
		}
		if err := validateStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func validateStmt(s Statement) error {
	if err := checkSpan(s); err != nil {
		return err
	}

	switch st := s.(type) {
	case *LocalStmt:
		if len(st.Names) == 0 {
			return fmt.Errorf("local statement without names at line %d", st.Local.Line)
		}
		return validateExprs(st.Values)
	case *AssignStmt:
		if len(st.Targets) == 0 {
			return fmt.Errorf("assignment without targets")
		}
		if err := validateExprs(st.Targets); err != nil {
			return err
		}
		return validateExprs(st.Values)
	case *CallStmt:
		return validateExpr(st.Call)
	case *DoStmt:
		return validateBlock(st.Body)
	case *WhileStmt:
		if err := validateExpr(st.Cond); err != nil {
			return err
		}
		return validateBlock(st.Body)
	case *RepeatStmt:
		if err := validateBlock(st.Body); err != nil {
			return err
		}
		return validateExpr(st.Cond)
	case *IfStmt:
		if err := validateExpr(st.Cond); err != nil {
			return err
		}
		if err := validateBlock(st.Then); err != nil {
			return err
		}
		for _, arm := range st.ElseIfs {
			if err := validateExpr(arm.Cond); err != nil {
				return err
			}
			if err := validateBlock(arm.Body); err != nil {
				return err
			}
		}
		if st.Else != nil {
			return validateBlock(st.Else)
		}
		return nil
	case *NumericForStmt:
		if st.Var == "" {
			return fmt.Errorf("numeric for without loop variable at line %d", st.For.Line)
		}
		if err := validateExpr(st.Start); err != nil {
			return err
		}
		if err := validateExpr(st.Stop); err != nil {
			return err
		}
		if st.Step != nil {
			if err := validateExpr(st.Step); err != nil {
				return err
			}
		}
		return validateBlock(st.Body)
	case *GenericForStmt:
		if len(st.Names) == 0 {
			return fmt.Errorf("generic for without names at line %d", st.For.Line)
		}
		if err := validateExprs(st.Values); err != nil {
			return err
		}
		return validateBlock(st.Body)
	case *FunctionStmt:
		if len(st.Name.Parts) == 0 {
			return fmt.Errorf("function declaration without a name at line %d", st.Function.Line)
		}
		return validateExpr(st.Fn)
	case *LocalFunctionStmt:
		if st.Name == "" {
			return fmt.Errorf("local function without a name at line %d", st.Local.Line)
		}
		return validateExpr(st.Fn)
	case *ReturnStmt:
		return validateExprs(st.Values)
	case *BreakStmt, *GotoStmt, *LabelStmt:
		return nil
	default:
		return fmt.Errorf("unknown statement type %T", s)
	}
}

func validateExprs(exprs []Expression) error {
	for i, e := range exprs {
		if e == nil {
			return fmt.Errorf("nil expression at index %d", i)
		}
		if err := validateExpr(e); err != nil {
			return err
		}
	}
	return nil
}

func validateExpr(e Expression) error {
	if e == nil {
		return fmt.Errorf("nil expression")
	}
	if err := checkSpan(e); err != nil {
		return err
	}

	switch ex := e.(type) {
	case *NilExpr, *TrueExpr, *FalseExpr, *NumberExpr, *StringExpr, *VarargExpr, *IdentExpr:
		return nil
	case *FunctionExpr:
		return validateBlock(ex.Body)
	case *IndexExpr:
		if err := validateExpr(ex.Left); err != nil {
			return err
		}
		return validateExpr(ex.Index)
	case *DotExpr:
		return validateExpr(ex.Left)
	case *CallExpr:
		if err := validateExpr(ex.Callee); err != nil {
			return err
		}
		return validateExprs(ex.Args)
	case *MethodCallExpr:
		if err := validateExpr(ex.Recv); err != nil {
			return err
		}
		return validateExprs(ex.Args)
	case *BinaryExpr:
		if err := validateExpr(ex.Left); err != nil {
			return err
		}
		return validateExpr(ex.Right)
	case *UnaryExpr:
		return validateExpr(ex.Right)
	case *TableExpr:
		for _, f := range ex.Fields {
			if f.Value == nil {
				return fmt.Errorf("table field without value at line %d", ex.LBrace.Line)
			}
			if f.Key != nil {
				if err := validateExpr(f.Key); err != nil {
					return err
				}
			}
			if err := validateExpr(f.Value); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown expression type %T", e)
	}
}

func checkSpan(n Node) error {
	sp := n.Span()
	if sp.End.Line < sp.Start.Line {
		return fmt.Errorf("span runs backwards: %d..%d", sp.Start.Line, sp.End.Line)
	}
	if sp.End.Line == sp.Start.Line && sp.End.Offset < sp.Start.Offset {
		return fmt.Errorf("span runs backwards at line %d", sp.Start.Line)
	}
	return nil
}
