package domain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"luxcov.dev/pkg/luxcov/internal/ast"
	m "luxcov.dev/pkg/luxcov/internal/model"
	"luxcov.dev/pkg/luxcov/internal/token"
)

// Names of the tracker entry points the generated code calls. The host
// runtime installs them as globals before loading instrumented modules.
const (
	trackLineFn  = "__luxcov_line"
	trackEnterFn = "__luxcov_enter"
)

// sentinel is appended to generated output so re-instrumentation can be
// detected and rejected. It sits on its own trailing line, after all
// original lines, so line numbering stays 1:1 with the source.
const sentinel = "-- luxcov:instrumented:1"

// InstrumentConfig controls how tracking calls are generated.
type InstrumentConfig struct {
	Policy AnalysisPolicy
}

// Fingerprint identifies the config for cache keying: any change to the
// generated-output shape must change the fingerprint.
func (c InstrumentConfig) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "v1|kw=%t|%s|%s", c.Policy.CountControlKeywords, trackLineFn, trackEnterFn)
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// Instrumenter rewrites parsed Lua sources with tracking calls.
type Instrumenter struct {
	cfg InstrumentConfig
}

// NewInstrumenter constructs an Instrumenter with the given config.
func NewInstrumenter(cfg InstrumentConfig) *Instrumenter {
	return &Instrumenter{cfg: cfg}
}

// Config returns the active instrumentation config.
func (ins *Instrumenter) Config() InstrumentConfig {
	return ins.cfg
}

// insertion is a text splice at a byte offset of the original source.
// prio orders splices that share an offset (function guards run before
// line markers, keyword markers last). line is the tracked line for
// keyword markers so duplicates per line can be dropped.
type insertion struct {
	offset int
	prio   int
	line   int
	text   string
}

const (
	prioGuard   = 0
	prioLine    = 1
	prioKeyword = 2
)

// Instrument produces the instrumented module for a parsed source file.
// Insertions are all single-line, so generated line N corresponds to
// original line N; the source map records that explicitly for every
// executable line. Instrumenting already-instrumented output is refused.
func (ins *Instrumenter) Instrument(ctx context.Context, sf *m.SourceFile, block *ast.Block) (*m.InstrumentedModule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if bytes.Contains(sf.Text, []byte(sentinel)) {
		return nil, &m.InstrumentationError{
			Name: string(sf.Path),
			Msg:  "source is already instrumented",
		}
	}
	if err := ast.Validate(block); err != nil {
		return nil, &m.InstrumentationError{Name: string(sf.Path), Msg: err.Error()}
	}

	fid := m.FileKey(sf.Path)
	funcs, funcIDs := collectFunctions(block, sf.Path)

	var splices []insertion
	collectLineSplices(block, fid, ins.cfg.Policy.CountControlKeywords, &splices)
	for fn, id := range funcIDs {
		splices = append(splices, guardSplice(fn, fid, id))
	}

	sort.Slice(splices, func(i, j int) bool {
		if splices[i].offset != splices[j].offset {
			return splices[i].offset < splices[j].offset
		}
		return splices[i].prio < splices[j].prio
	})
	splices = dropDuplicateKeywordMarkers(splices)

	generated := splice(sf.Text, splices)
	generated = append(generated, []byte("\n"+sentinel+"\n")...)

	sf.ExecutableLines = ExecutableLines(block, ins.cfg.Policy)
	sf.Functions = funcs

	srcMap := m.SourceMap{}
	for _, line := range sortedLines(sf.ExecutableLines) {
		srcMap.Add(line, sf.Path, line)
	}

	return &m.InstrumentedModule{
		Source:    sf,
		Path:      sf.Path,
		Hash:      sf.Hash,
		Generated: generated,
		Map:       srcMap,
		CacheKey:  CacheKey(sf.Hash, ins.cfg),
		CreatedAt: time.Now(),
		MaxLine:   sf.MaxLine,
		ExecLines: sortedLines(sf.ExecutableLines),
		Functions: funcs,
	}, nil
}

// CacheKey combines the content hash with the config fingerprint.
func CacheKey(contentHash string, cfg InstrumentConfig) string {
	return contentHash + "-" + cfg.Fingerprint()
}

// IsInstrumented reports whether text already carries the output sentinel.
func IsInstrumented(text []byte) bool {
	return bytes.Contains(text, []byte(sentinel))
}

// collectLineSplices walks every block and prefixes each statement with
// a line-tracking call. Comments and bare keywords never appear here:
// only parsed statements do. With kw set, closing keywords and `else`
// arms get markers of their own.
func collectLineSplices(b *ast.Block, fid m.FileID, kw bool, out *[]insertion) {
	if b == nil {
		return
	}
	for _, stmt := range b.Statements {
		*out = append(*out, insertion{
			offset: stmt.Pos().Offset,
			prio:   prioLine,
			line:   stmt.Pos().Line,
			text:   fmt.Sprintf("%s(%d,%d); ", trackLineFn, fid, stmt.Pos().Line),
		})
		lineSpliceStmt(stmt, fid, kw, out)
	}
}

func lineSpliceStmt(s ast.Statement, fid m.FileID, kw bool, out *[]insertion) {
	switch st := s.(type) {
	case *ast.LocalStmt:
		lineSpliceExprs(st.Values, fid, kw, out)
	case *ast.AssignStmt:
		lineSpliceExprs(st.Values, fid, kw, out)
	case *ast.CallStmt:
		lineSpliceExpr(st.Call, fid, kw, out)
	case *ast.DoStmt:
		collectLineSplices(st.Body, fid, kw, out)
		closerSplice(st.StmtSpan, fid, kw, out)
	case *ast.WhileStmt:
		lineSpliceExpr(st.Cond, fid, kw, out)
		collectLineSplices(st.Body, fid, kw, out)
		closerSplice(st.StmtSpan, fid, kw, out)
	case *ast.RepeatStmt:
		collectLineSplices(st.Body, fid, kw, out)
		lineSpliceExpr(st.Cond, fid, kw, out)
		untilSplice(st, fid, kw, out)
	case *ast.IfStmt:
		lineSpliceExpr(st.Cond, fid, kw, out)
		collectLineSplices(st.Then, fid, kw, out)
		for _, arm := range st.ElseIfs {
			lineSpliceExpr(arm.Cond, fid, kw, out)
			collectLineSplices(arm.Body, fid, kw, out)
		}
		collectLineSplices(st.Else, fid, kw, out)
		elseSplice(st, fid, kw, out)
		closerSplice(st.StmtSpan, fid, kw, out)
	case *ast.NumericForStmt:
		lineSpliceExpr(st.Start, fid, kw, out)
		lineSpliceExpr(st.Stop, fid, kw, out)
		if st.Step != nil {
			lineSpliceExpr(st.Step, fid, kw, out)
		}
		collectLineSplices(st.Body, fid, kw, out)
		closerSplice(st.StmtSpan, fid, kw, out)
	case *ast.GenericForStmt:
		lineSpliceExprs(st.Values, fid, kw, out)
		collectLineSplices(st.Body, fid, kw, out)
		closerSplice(st.StmtSpan, fid, kw, out)
	case *ast.FunctionStmt:
		collectLineSplices(st.Fn.Body, fid, kw, out)
		closerSplice(st.StmtSpan, fid, kw, out)
	case *ast.LocalFunctionStmt:
		collectLineSplices(st.Fn.Body, fid, kw, out)
		closerSplice(st.StmtSpan, fid, kw, out)
	case *ast.ReturnStmt:
		lineSpliceExprs(st.Values, fid, kw, out)
	}
}

func lineSpliceExprs(exprs []ast.Expression, fid m.FileID, kw bool, out *[]insertion) {
	for _, e := range exprs {
		lineSpliceExpr(e, fid, kw, out)
	}
}

// lineSpliceExpr descends only to reach function-literal bodies.
func lineSpliceExpr(e ast.Expression, fid m.FileID, kw bool, out *[]insertion) {
	switch ex := e.(type) {
	case *ast.FunctionExpr:
		collectLineSplices(ex.Body, fid, kw, out)
	case *ast.IndexExpr:
		lineSpliceExpr(ex.Left, fid, kw, out)
		lineSpliceExpr(ex.Index, fid, kw, out)
	case *ast.DotExpr:
		lineSpliceExpr(ex.Left, fid, kw, out)
	case *ast.CallExpr:
		lineSpliceExpr(ex.Callee, fid, kw, out)
		lineSpliceExprs(ex.Args, fid, kw, out)
	case *ast.MethodCallExpr:
		lineSpliceExpr(ex.Recv, fid, kw, out)
		lineSpliceExprs(ex.Args, fid, kw, out)
	case *ast.BinaryExpr:
		lineSpliceExpr(ex.Left, fid, kw, out)
		lineSpliceExpr(ex.Right, fid, kw, out)
	case *ast.UnaryExpr:
		lineSpliceExpr(ex.Right, fid, kw, out)
	case *ast.TableExpr:
		for _, f := range ex.Fields {
			if f.Key != nil {
				lineSpliceExpr(f.Key, fid, kw, out)
			}
			lineSpliceExpr(f.Value, fid, kw, out)
		}
	}
}

// closerSplice emits a marker just past a closing `end` keyword. Placed
// after the keyword it sits in the enclosing block, so it stays legal
// even when the body ends in `return`, and fires when the construct
// completes.
func closerSplice(span token.Span, fid m.FileID, kw bool, out *[]insertion) {
	if !kw {
		return
	}
	*out = append(*out, insertion{
		offset: span.End.Offset + len("end"),
		prio:   prioKeyword,
		line:   span.End.Line,
		text:   fmt.Sprintf(" %s(%d,%d);", trackLineFn, fid, span.End.Line),
	})
}

// untilSplice marks the `until` line as reached when the loop condition
// is about to be evaluated. The marker goes just before the keyword, as
// the last statement of the loop body. A body ending in `return` makes
// the condition unreachable, so that case gets no marker, matching the
// analysis.
func untilSplice(st *ast.RepeatStmt, fid m.FileID, kw bool, out *[]insertion) {
	if !kw || endsInReturn(st.Body) {
		return
	}
	*out = append(*out, insertion{
		offset: st.Until.Offset,
		prio:   prioKeyword,
		line:   st.Until.Line,
		text:   fmt.Sprintf("%s(%d,%d); ", trackLineFn, fid, st.Until.Line),
	})
}

// elseSplice marks the `else` line as reached when the branch is taken.
// The marker goes at the head of the else body (or right before `end`
// when the body is empty), tagged with the keyword's own line.
func elseSplice(st *ast.IfStmt, fid m.FileID, kw bool, out *[]insertion) {
	if !kw || st.Else == nil {
		return
	}
	offset := st.StmtSpan.End.Offset
	if len(st.Else.Statements) > 0 {
		offset = st.Else.Statements[0].Pos().Offset
	}
	*out = append(*out, insertion{
		offset: offset,
		prio:   prioKeyword,
		line:   st.ElsePos.Line,
		text:   fmt.Sprintf("%s(%d,%d); ", trackLineFn, fid, st.ElsePos.Line),
	})
}

// dropDuplicateKeywordMarkers removes keyword markers for lines that
// already carry a marker, so shared lines are not counted twice.
func dropDuplicateKeywordMarkers(splices []insertion) []insertion {
	seen := make(map[int]struct{}, len(splices))
	for _, ins := range splices {
		if ins.prio == prioLine {
			seen[ins.line] = struct{}{}
		}
	}

	kept := splices[:0]
	for _, ins := range splices {
		if ins.prio == prioKeyword {
			if _, dup := seen[ins.line]; dup {
				continue
			}
			seen[ins.line] = struct{}{}
		}
		kept = append(kept, ins)
	}
	return kept
}

// guardSplice builds the function-entry guard. The to-be-closed local is
// Lua 5.4's scoped acquisition: __close fires on every exit path,
// including error propagation, so function coverage survives thrown
// errors. Nested bodies shadow the name legally.
func guardSplice(fn *ast.FunctionExpr, fid m.FileID, id int) insertion {
	offset := fn.EndPos.Offset // empty body: splice just before `end`
	if len(fn.Body.Statements) > 0 {
		offset = fn.Body.Statements[0].Pos().Offset
	}
	return insertion{
		offset: offset,
		prio:   prioGuard,
		text:   fmt.Sprintf("local __luxcov_g <close> = %s(%d,%d); ", trackEnterFn, fid, id),
	}
}

// splice applies insertions (sorted by offset) to the source text.
func splice(text []byte, splices []insertion) []byte {
	var sb strings.Builder
	sb.Grow(len(text) + len(splices)*32)

	prev := 0
	for _, ins := range splices {
		sb.Write(text[prev:ins.offset])
		sb.WriteString(ins.text)
		prev = ins.offset
	}
	sb.Write(text[prev:])
	return []byte(sb.String())
}

func sortedLines(set map[int]struct{}) []int {
	lines := make([]int, 0, len(set))
	for line := range set {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}
