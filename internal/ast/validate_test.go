package ast

import (
	"strings"
	"testing"

	"luxcov.dev/pkg/luxcov/internal/token"
)

func pos(line, col, off int) token.Position {
	return token.Position{Line: line, Column: col, Offset: off}
}

func span(startLine, startOff, endLine, endOff int) token.Span {
	return token.Span{
		Start: token.Position{Line: startLine, Offset: startOff},
		End:   token.Position{Line: endLine, Offset: endOff},
	}
}

func TestValidateAcceptsWellFormedBlock(t *testing.T) {
	block := &Block{
		Statements: []Statement{
			&LocalStmt{
				Local: pos(1, 1, 0),
				Names: []LocalName{{Name: "x", NamePos: pos(1, 7, 6)}},
				Values: []Expression{
					&NumberExpr{Value: "1", PosT: pos(1, 11, 10), Sp: span(1, 10, 1, 11)},
				},
				StmtSpan: span(1, 0, 1, 11),
			},
			&ReturnStmt{
				Return: pos(2, 1, 12),
				Values: []Expression{
					&IdentExpr{Name: "x", PosT: pos(2, 8, 19), Sp: span(2, 19, 2, 20)},
				},
				StmtSpan: span(2, 12, 2, 20),
			},
		},
		BlockSpan: span(1, 0, 2, 20),
	}

	if err := Validate(block); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejectsNilBlock(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatal("expected error for nil block")
	}
}

func TestValidateRejectsNilStatement(t *testing.T) {
	block := &Block{Statements: []Statement{nil}}

	if err := Validate(block); err == nil {
		t.Fatal("expected error for nil statement")
	}
}

func TestValidateRejectsLocalWithoutNames(t *testing.T) {
	block := &Block{Statements: []Statement{
		&LocalStmt{Local: pos(3, 1, 20), StmtSpan: span(3, 20, 3, 25)},
	}}

	err := Validate(block)
	if err == nil {
		t.Fatal("expected error for local statement without names")
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("error should carry the line: %v", err)
	}
}

func TestValidateRejectsNilExpression(t *testing.T) {
	block := &Block{Statements: []Statement{
		&LocalStmt{
			Local:    pos(1, 1, 0),
			Names:    []LocalName{{Name: "x", NamePos: pos(1, 7, 6)}},
			Values:   []Expression{nil},
			StmtSpan: span(1, 0, 1, 12),
		},
	}}

	if err := Validate(block); err == nil {
		t.Fatal("expected error for nil value expression")
	}
}

func TestValidateRejectsBackwardsSpan(t *testing.T) {
	block := &Block{Statements: []Statement{
		&LocalStmt{
			Local: pos(5, 1, 40),
			Names: []LocalName{{Name: "x", NamePos: pos(5, 7, 46)}},
			// end precedes start
			StmtSpan: span(5, 40, 4, 10),
		},
	}}

	err := Validate(block)
	if err == nil {
		t.Fatal("expected error for backwards span")
	}
	if !strings.Contains(err.Error(), "backwards") {
		t.Fatalf("unexpected error: %v", err)
	}
}
