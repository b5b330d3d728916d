// Package evaluator executes code strings against a session's persistent
// evaluation context, capturing output and translating exceptions,
// per spec.md §4.5.
//
// The evaluated language is a small Go-flavored expression/statement
// subset parsed with the standard library's go/parser (see DESIGN.md:
// no embeddable interpreter or scripting-language library turned up
// anywhere in the retrieval pack, so this one component is built on
// go/parser/go/ast directly rather than adapting a third-party one).
// Spec.md §9 is explicit that the evaluation mechanism is free as long
// as per-session state persists across calls — this one does, via an
// explicit identifier->value environment map threaded through every
// call.
package evaluator

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"runtime/debug"
	"strconv"
	"strings"
)

// raised is the internal representation of an explicit raise(...) call
// or a runtime fault (type mismatch, division by zero, unknown
// identifier, parse failure). It carries exactly what protocol.Exception
// needs.
type raised struct {
	class    string
	message  string
	trace    string
	explicit bool
}

func (r *raised) Error() string { return r.message }

func newRaised(class, format string, args ...any) *raised {
	return &raised{class: class, message: fmt.Sprintf(format, args...)}
}

// interp holds the mutable state of one evaluation: the session's
// persistent bindings and where output builtins write to.
type interp struct {
	env    map[string]any
	stdout func(string)
}

// Eval parses code as a sequence of statements and executes them in
// order against env, returning the value of the last statement (an
// assignment yields the assigned value; empty code yields nil). env is
// mutated in place so bindings persist across calls on the same session.
//
// Eval never panics to its caller: any parse failure, unknown
// identifier, type mismatch, or explicit raise(...) is converted to a
// *raised and returned as an error. Backtrace() on a returned *raised
// error yields the captured stack trace lines.
func Eval(code string, env map[string]any, stdout, stderr func(string)) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			if r, ok := p.(*raised); ok {
				if r.trace == "" && !r.explicit {
					r.trace = captureStack()
				}
				err = r
				return
			}
			err = newRaisedWithTrace("RuntimeError", fmt.Sprint(p))
		}
	}()

	stmts, perr := parseStatements(code)
	if perr != nil {
		return nil, newRaisedWithTrace("SyntaxError", "%v", perr)
	}

	it := &interp{env: env, stdout: stdout}
	var last any
	for _, stmt := range stmts {
		last = it.execStmt(stmt, stderr)
	}
	return last, nil
}

// newRaisedWithTrace builds a *raised carrying the current goroutine's
// stack trace, split into lines, as its backtrace.
func newRaisedWithTrace(class, format string, args ...any) *raised {
	r := newRaised(class, format, args...)
	r.trace = captureStack()
	return r
}

// Backtrace returns the captured backtrace lines for a raised exception.
// An empty backtrace is valid per spec.md §4.5, and is what explicit
// raise() calls produce (there is no fault to trace); faults captured by
// Eval's recover populate it from the current stack.
func Backtrace(err error) []string {
	if r, ok := err.(*raised); ok {
		if r.trace != "" {
			return strings.Split(strings.TrimRight(r.trace, "\n"), "\n")
		}
	}
	return nil
}

// ClassName returns the exception class name for a raised exception.
func ClassName(err error) string {
	if r, ok := err.(*raised); ok {
		return r.class
	}
	return "RuntimeError"
}

func parseStatements(code string) ([]ast.Stmt, error) {
	src := "package p\nfunc _() {\n" + code + "\n}\n"
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", src, 0)
	if err != nil {
		return nil, err
	}
	for _, decl := range f.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		return fd.Body.List, nil
	}
	return nil, fmt.Errorf("no evaluable statements")
}

func (it *interp) execStmt(stmt ast.Stmt, stderr func(string)) any {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		return it.evalExpr(s.X, stderr)

	case *ast.AssignStmt:
		if len(s.Lhs) != 1 || len(s.Rhs) != 1 {
			panic(newRaised("SyntaxError", "only single assignment is supported"))
		}
		ident, ok := s.Lhs[0].(*ast.Ident)
		if !ok {
			panic(newRaised("SyntaxError", "assignment target must be an identifier"))
		}
		val := it.evalExpr(s.Rhs[0], stderr)
		it.env[ident.Name] = val
		return val

	case *ast.DeclStmt:
		panic(newRaised("SyntaxError", "declarations are not supported"))

	default:
		panic(newRaised("SyntaxError", fmt.Sprintf("unsupported statement: %T", stmt)))
	}
}

func (it *interp) evalExpr(expr ast.Expr, stderr func(string)) any {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return it.evalExpr(e.X, stderr)

	case *ast.BasicLit:
		return basicLitValue(e)

	case *ast.Ident:
		switch e.Name {
		case "true":
			return true
		case "false":
			return false
		case "nil":
			return nil
		}
		v, ok := it.env[e.Name]
		if !ok {
			panic(newRaised("NameError", "undefined name: %s", e.Name))
		}
		return v

	case *ast.UnaryExpr:
		return evalUnary(e.Op, it.evalExpr(e.X, stderr))

	case *ast.BinaryExpr:
		return evalBinary(e.Op, it.evalExpr(e.X, stderr), it.evalExpr(e.Y, stderr))

	case *ast.CallExpr:
		return it.evalCall(e, stderr)

	default:
		panic(newRaised("SyntaxError", fmt.Sprintf("unsupported expression: %T", expr)))
	}
}

func (it *interp) evalCall(call *ast.CallExpr, stderr func(string)) any {
	ident, ok := call.Fun.(*ast.Ident)
	if !ok {
		panic(newRaised("SyntaxError", "only direct calls to builtins are supported"))
	}

	args := make([]any, len(call.Args))
	for i, a := range call.Args {
		args[i] = it.evalExpr(a, stderr)
	}

	switch ident.Name {
	case "puts", "print":
		var b strings.Builder
		for i, a := range args {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(renderValue(a))
		}
		b.WriteByte('\n')
		it.stdout(b.String())
		return nil

	case "warn":
		var b strings.Builder
		for i, a := range args {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(renderValue(a))
		}
		b.WriteByte('\n')
		stderr(b.String())
		return nil

	case "raise":
		msg := "error"
		if len(args) > 0 {
			msg = renderValue(args[0])
		}
		r := newRaised("RuntimeError", "%s", msg)
		r.explicit = true
		panic(r)

	default:
		panic(newRaised("NameError", "undefined function: %s", ident.Name))
	}
}

func basicLitValue(lit *ast.BasicLit) any {
	switch lit.Kind {
	case token.INT:
		var n int64
		_, err := fmt.Sscanf(lit.Value, "%d", &n)
		if err != nil {
			panic(newRaised("SyntaxError", "bad integer literal: %s", lit.Value))
		}
		return n
	case token.FLOAT:
		var f float64
		_, err := fmt.Sscanf(lit.Value, "%g", &f)
		if err != nil {
			panic(newRaised("SyntaxError", "bad float literal: %s", lit.Value))
		}
		return f
	case token.STRING:
		s, err := strconv.Unquote(lit.Value)
		if err != nil {
			panic(newRaised("SyntaxError", "bad string literal: %s", lit.Value))
		}
		return s
	default:
		panic(newRaised("SyntaxError", "unsupported literal kind"))
	}
}

func evalUnary(op token.Token, x any) any {
	switch op {
	case token.SUB:
		switch v := x.(type) {
		case int64:
			return -v
		case float64:
			return -v
		}
	case token.NOT:
		if b, ok := x.(bool); ok {
			return !b
		}
	}
	panic(newRaised("TypeError", "invalid operand for unary %s: %T", op, x))
}

func evalBinary(op token.Token, x, y any) any {
	// Equality ("=="/"!=") is allowed across mixed operand shapes, and
	// "+" with a string left operand concatenates the printed form of any
	// right operand; arithmetic requires both sides numeric, promoting
	// int64/float64 mixes to float64.
	switch op {
	case token.EQL:
		return isEqual(x, y)
	case token.NEQ:
		return !isEqual(x, y)
	}

	if xs, ok := x.(string); ok {
		if op == token.ADD {
			return xs + fmt.Sprint(y)
		}
		panic(newRaised("TypeError", "unsupported string operator: %s", op))
	}

	xf, xIsFloat, xOk := numeric(x)
	yf, yIsFloat, yOk := numeric(y)
	if !xOk || !yOk {
		panic(newRaised("TypeError", "unsupported operand types for %s: %T, %T", op, x, y))
	}

	switch op {
	case token.LSS:
		return xf < yf
	case token.GTR:
		return xf > yf
	case token.LEQ:
		return xf <= yf
	case token.GEQ:
		return xf >= yf
	}

	result := applyArith(op, xf, yf)
	if xIsFloat || yIsFloat {
		return result
	}
	return int64(result)
}

func applyArith(op token.Token, a, b float64) float64 {
	switch op {
	case token.ADD:
		return a + b
	case token.SUB:
		return a - b
	case token.MUL:
		return a * b
	case token.QUO:
		if b == 0 {
			panic(newRaised("ZeroDivisionError", "division by zero"))
		}
		return a / b
	default:
		panic(newRaised("TypeError", "unsupported operator: %s", op))
	}
}

func numeric(v any) (f float64, isFloat bool, ok bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), false, true
	case float64:
		return n, true, true
	default:
		return 0, false, false
	}
}

func isEqual(x, y any) bool {
	return fmt.Sprint(x) == fmt.Sprint(y) && renderTypeName(x) == renderTypeName(y)
}

// captureStack returns the caller's stack trace as a single string,
// used to populate the backtrace of faults surfaced through Eval's
// top-level recover.
func captureStack() string {
	return string(debug.Stack())
}
