// Package printer renders asm.js trees as JavaScript text.
//
// The optimizer exchanges trees as JSON; this printer exists for humans:
// diagnostics quote the offending code with it, tests compare against
// readable output, and the CLI can emit JavaScript instead of JSON.
//
// The printer can operate in two modes:
// - Pretty: Human-readable output with indentation
// - Minified: Minimal whitespace output
//
// Parentheses are emitted only where operator precedence requires them.
package printer

import (
	"strconv"
	"strings"

	"github.com/HugoDaniel/asmopt/internal/ast"
)

// Options controls printer output.
type Options struct {
	// MinifyWhitespace removes unnecessary whitespace
	MinifyWhitespace bool
}

// Printer outputs JavaScript code.
type Printer struct {
	options Options

	buf    strings.Builder
	indent int
}

// New creates a new printer.
func New(options Options) *Printer {
	return &Printer{options: options}
}

// Print outputs a statement, function, toplevel or expression node.
func (p *Printer) Print(node *ast.Node) string {
	p.buf.Reset()
	p.indent = 0
	switch {
	case node.Is(ast.Toplevel):
		p.printStatements(node.At(1))
	case isStatement(node):
		p.printStmt(node)
	default:
		p.printExpr(node, precLowest)
	}
	return strings.TrimRight(p.buf.String(), "\n")
}

// Print renders node with default (pretty) options.
func Print(node *ast.Node) string {
	return New(Options{}).Print(node)
}

// Snippet renders node on a single line, truncated to max bytes.
func Snippet(node *ast.Node, max int) string {
	s := New(Options{MinifyWhitespace: true}).Print(node)
	if max > 3 && len(s) > max {
		s = s[:max-3] + "..."
	}
	return s
}

// ----------------------------------------------------------------------------
// Output Helpers
// ----------------------------------------------------------------------------

func (p *Printer) print(s string) {
	if s == "" {
		return
	}
	// Keep "a - -b" and "a + +b" from fusing into "--" or "++".
	if n := p.buf.Len(); n > 0 {
		last := p.buf.String()[n-1]
		if (last == '+' || last == '-') && s[0] == last {
			p.buf.WriteByte(' ')
		}
	}
	p.buf.WriteString(s)
}

func (p *Printer) printSpace() {
	if !p.options.MinifyWhitespace {
		p.buf.WriteByte(' ')
	}
}

func (p *Printer) printNewline() {
	if !p.options.MinifyWhitespace {
		p.buf.WriteByte('\n')
	}
}

func (p *Printer) printIndent() {
	if !p.options.MinifyWhitespace {
		for i := 0; i < p.indent; i++ {
			p.buf.WriteString("  ")
		}
	}
}

func (p *Printer) printSemicolon() {
	p.print(";")
	p.printNewline()
}

// printKeyword prints a word that must be separated from a following
// identifier even when minifying.
func (p *Printer) printKeyword(word string) {
	p.print(word)
	p.buf.WriteByte(' ')
}

// ----------------------------------------------------------------------------
// Statement Printing
// ----------------------------------------------------------------------------

func isStatement(node *ast.Node) bool {
	switch node.Tag() {
	case ast.Defun, ast.Block, ast.Stat, ast.Var, ast.Return, ast.If, ast.While,
		ast.Do, ast.For, ast.Label, ast.Break, ast.Continue, ast.Switch, ast.Throw:
		return true
	}
	return false
}

func (p *Printer) printStatements(list *ast.Node) {
	for _, stat := range list.Items() {
		if ast.DeStat(stat).IsEmpty() {
			continue
		}
		p.printIndent()
		p.printStmt(stat)
	}
}

func (p *Printer) printBody(body *ast.Node) {
	p.print("{")
	p.printNewline()
	p.indent++
	p.printStatements(body)
	p.indent--
	p.printIndent()
	p.print("}")
}

func (p *Printer) printStmt(node *ast.Node) {
	switch node.Tag() {
	case ast.Toplevel:
		if node.IsEmpty() {
			p.printSemicolon()
			return
		}
		p.printStatements(node.At(1))

	case ast.Defun:
		p.printFunction(node)
		p.printNewline()

	case ast.Block:
		p.printBody(node.At(1))
		p.printNewline()

	case ast.Stat:
		expr := node.At(1)
		if expr.IsEmpty() {
			p.printSemicolon()
			return
		}
		p.printExpr(expr, precSeq)
		p.printSemicolon()

	case ast.Var:
		p.printVar(node)
		p.printSemicolon()

	case ast.Return:
		if value := node.Maybe(1); value != nil {
			p.printKeyword("return")
			p.printExpr(value, precSeq)
		} else {
			p.print("return")
		}
		p.printSemicolon()

	case ast.If:
		p.printIf(node)

	case ast.While:
		p.print("while")
		p.printSpace()
		p.printParenExpr(node.At(1))
		p.printSpace()
		p.printStmt(node.At(2))

	case ast.Do:
		p.printKeyword("do")
		p.printStmtInline(node.At(2))
		p.printSpace()
		p.print("while")
		p.printSpace()
		p.printParenExpr(node.At(1))
		p.printSemicolon()

	case ast.For:
		p.printFor(node)

	case ast.Label:
		p.print(node.At(1).Str())
		p.print(":")
		p.printSpace()
		p.printStmt(node.At(2))

	case ast.Break, ast.Continue:
		if label := node.Maybe(1); label != nil {
			p.printKeyword(node.Tag())
			p.print(label.Str())
		} else {
			p.print(node.Tag())
		}
		p.printSemicolon()

	case ast.Switch:
		p.printSwitch(node)

	case ast.Throw:
		p.printKeyword("throw")
		p.printExpr(node.At(1), precSeq)
		p.printSemicolon()

	default:
		p.printExpr(node, precSeq)
		p.printSemicolon()
	}
}

// printStmtInline prints a statement without its trailing newline, for the
// body of a do-while.
func (p *Printer) printStmtInline(node *ast.Node) {
	if node.Is(ast.Block) {
		p.printBody(node.At(1))
		return
	}
	p.printStmt(node)
	s := strings.TrimRight(p.buf.String(), "\n")
	p.buf.Reset()
	p.buf.WriteString(s)
}

func (p *Printer) printFunction(node *ast.Node) {
	p.printKeyword("function")
	p.print(node.At(1).Str())
	p.print("(")
	for i, param := range node.At(2).Items() {
		if i > 0 {
			p.print(",")
			p.printSpace()
		}
		p.print(param.Str())
	}
	p.print(")")
	p.printSpace()
	p.printBody(node.At(3))
}

func (p *Printer) printVar(node *ast.Node) {
	p.printKeyword("var")
	for i, def := range node.At(1).Items() {
		if i > 0 {
			p.print(",")
			p.printSpace()
		}
		p.print(def.At(0).Str())
		if value := def.Maybe(1); value != nil {
			p.printSpace()
			p.print("=")
			p.printSpace()
			p.printExpr(value, precAssign)
		}
	}
}

func (p *Printer) printIf(node *ast.Node) {
	p.print("if")
	p.printSpace()
	p.printParenExpr(node.At(1))
	p.printSpace()
	otherwise := node.Maybe(3)
	if otherwise == nil {
		p.printStmt(node.At(2))
		return
	}
	p.printStmtInline(node.At(2))
	p.printSpace()
	p.printKeyword("else")
	p.printStmt(otherwise)
}

func (p *Printer) printFor(node *ast.Node) {
	p.print("for")
	p.printSpace()
	p.print("(")
	if init := node.Maybe(1); init != nil {
		if init.Is(ast.Var) {
			p.printVar(init)
		} else {
			p.printExpr(ast.DeStat(init), precSeq)
		}
	}
	p.print(";")
	if cond := node.Maybe(2); cond != nil {
		p.printSpace()
		p.printExpr(cond, precSeq)
	}
	p.print(";")
	if step := node.Maybe(3); step != nil {
		p.printSpace()
		p.printExpr(step, precSeq)
	}
	p.print(")")
	p.printSpace()
	p.printStmt(node.At(4))
}

func (p *Printer) printSwitch(node *ast.Node) {
	p.print("switch")
	p.printSpace()
	p.printParenExpr(node.At(1))
	p.printSpace()
	p.print("{")
	p.printNewline()
	p.indent++
	for _, c := range node.At(2).Items() {
		p.printIndent()
		if test := c.Maybe(0); test != nil {
			p.printKeyword("case")
			p.printExpr(test, precSeq)
		} else {
			p.print("default")
		}
		p.print(":")
		p.printNewline()
		p.indent++
		p.printStatements(c.At(1))
		p.indent--
	}
	p.indent--
	p.printIndent()
	p.print("}")
	p.printNewline()
}

func (p *Printer) printParenExpr(node *ast.Node) {
	p.print("(")
	p.printExpr(node, precSeq)
	p.print(")")
}

// ----------------------------------------------------------------------------
// Expression Printing
// ----------------------------------------------------------------------------

// Operator precedence levels, loosest first.
const (
	precLowest = iota
	precSeq
	precAssign
	precConditional
	precLogicalOr
	precLogicalAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precCompare
	precShift
	precAdd
	precMultiply
	precPrefix
	precCall
	precPrimary
)

func binaryPrecedence(op string) int {
	switch op {
	case "||":
		return precLogicalOr
	case "&&":
		return precLogicalAnd
	case "|":
		return precBitOr
	case "^":
		return precBitXor
	case "&":
		return precBitAnd
	case "==", "!=", "===", "!==":
		return precEquality
	case "<", "<=", ">", ">=", "in", "instanceof":
		return precCompare
	case "<<", ">>", ">>>":
		return precShift
	case "+", "-":
		return precAdd
	case "*", "/", "%":
		return precMultiply
	}
	return precLowest
}

func exprPrecedence(node *ast.Node) int {
	switch node.Tag() {
	case ast.Seq:
		return precSeq
	case ast.Assign:
		return precAssign
	case ast.Conditional:
		return precConditional
	case ast.Binary:
		return binaryPrecedence(node.At(1).Str())
	case ast.UnaryPrefix:
		return precPrefix
	case ast.Call, ast.Sub, ast.Dot, ast.New:
		return precCall
	case ast.Num:
		if node.At(1).Num() < 0 {
			return precPrefix
		}
	}
	return precPrimary
}

func (p *Printer) printExpr(node *ast.Node, level int) {
	wrap := exprPrecedence(node) < level
	if wrap {
		p.print("(")
	}

	switch node.Tag() {
	case ast.Name:
		p.print(node.At(1).Str())

	case ast.Num:
		p.print(formatNumber(node.At(1).Num()))

	case ast.String:
		p.print(strconv.Quote(node.At(1).Str()))

	case ast.Binary:
		op := node.At(1).Str()
		prec := binaryPrecedence(op)
		p.printExpr(node.At(2), prec)
		if isWordOperator(op) {
			p.buf.WriteString(" " + op + " ")
		} else {
			p.printSpace()
			p.print(op)
			p.printSpace()
		}
		p.printExpr(node.At(3), prec+1)

	case ast.UnaryPrefix:
		op := node.At(1).Str()
		if isWordOperator(op) {
			p.printKeyword(op)
		} else {
			p.print(op)
		}
		p.printExpr(node.At(2), precPrefix)

	case ast.Assign:
		p.printExpr(node.At(2), precConditional)
		p.printSpace()
		if op := node.At(1); op.IsString() {
			p.print(op.Str() + "=")
		} else {
			p.print("=")
		}
		p.printSpace()
		p.printExpr(node.At(3), precAssign)

	case ast.Conditional:
		p.printExpr(node.At(1), precLogicalOr)
		p.printSpace()
		p.print("?")
		p.printSpace()
		p.printExpr(node.At(2), precAssign)
		p.printSpace()
		p.print(":")
		p.printSpace()
		p.printExpr(node.At(3), precAssign)

	case ast.Seq:
		p.printExpr(node.At(1), precSeq)
		p.print(",")
		p.printSpace()
		p.printExpr(node.At(2), precSeq)

	case ast.Sub:
		p.printExpr(node.At(1), precCall)
		p.print("[")
		p.printExpr(node.At(2), precSeq)
		p.print("]")

	case ast.Dot:
		p.printExpr(node.At(1), precCall)
		p.print(".")
		p.print(node.At(2).Str())

	case ast.Call:
		p.printExpr(node.At(1), precCall)
		p.printArgs(node.At(2))

	case ast.New:
		p.printKeyword("new")
		p.printExpr(node.At(1), precCall)
		p.printArgs(node.At(2))

	case ast.ArrayLit:
		p.print("[")
		p.printList(node.At(1))
		p.print("]")

	case ast.Object:
		p.print("{")
		for i, prop := range node.At(1).Items() {
			if i > 0 {
				p.print(",")
				p.printSpace()
			}
			p.print(prop.At(0).Str())
			p.print(":")
			p.printSpace()
			p.printExpr(prop.At(1), precAssign)
		}
		p.print("}")

	case ast.Function:
		p.printFunction(node)

	case ast.Toplevel:
		// An empty node in expression position prints as nothing.

	default:
		p.print("/* " + node.Tag() + " */")
	}

	if wrap {
		p.print(")")
	}
}

func (p *Printer) printArgs(args *ast.Node) {
	p.print("(")
	p.printList(args)
	p.print(")")
}

func (p *Printer) printList(list *ast.Node) {
	for i, item := range list.Items() {
		if i > 0 {
			p.print(",")
			p.printSpace()
		}
		p.printExpr(item, precAssign)
	}
}

func isWordOperator(op string) bool {
	switch op {
	case "typeof", "void", "delete", "in", "instanceof":
		return true
	}
	return false
}

func formatNumber(f float64) string {
	if f > -1e21 && f < 1e21 && f == float64(int64(f)) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
