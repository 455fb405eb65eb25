package asm

import (
	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/builtins"
	"github.com/HugoDaniel/asmopt/internal/types"
)

// ----------------------------------------------------------------------------
// Side Effects and Purity
// ----------------------------------------------------------------------------

// HasSideEffects reports whether evaluating node could have observable
// effects. Only literals, names, memory reads, arithmetic and calls to
// Math_ functions are known to be free of them; every other shape is
// assumed to have effects.
func HasSideEffects(node *ast.Node) bool {
	switch node.Tag() {
	case ast.Num, ast.Name, ast.String:
		return false
	case ast.Sub:
		return HasSideEffects(node.At(1)) || HasSideEffects(node.At(2))
	case ast.UnaryPrefix:
		return HasSideEffects(node.At(2))
	case ast.Binary:
		return HasSideEffects(node.At(2)) || HasSideEffects(node.At(3))
	case ast.Call:
		if builtins.CallHasSideEffects(node) {
			return true
		}
		for _, arg := range node.At(2).Items() {
			if HasSideEffects(arg) {
				return true
			}
		}
		return false
	case ast.Conditional:
		return HasSideEffects(node.At(1)) || HasSideEffects(node.At(2)) || HasSideEffects(node.At(3))
	}
	return true
}

// TriviallySafeToMove reports whether node only combines locals with
// arithmetic and pure calls, so that it neither has effects nor can observe
// them.
func (f *Function) TriviallySafeToMove(node *ast.Node) bool {
	ok := true
	ast.TraversePre(node, func(n *ast.Node) {
		switch n.Tag() {
		case ast.Stat, ast.Binary, ast.UnaryPrefix, ast.Assign, ast.Num:
		case ast.Name:
			if !f.IsLocal(n.At(1).Str()) {
				ok = false
			}
		case ast.Call:
			if builtins.CallHasSideEffects(n) {
				ok = false
			}
		default:
			ok = false
		}
	})
	return ok
}

// Commable reports whether a statement's expression can be joined into a
// comma sequence.
func Commable(node *ast.Node) bool {
	switch node.Tag() {
	case ast.Assign, ast.Binary, ast.UnaryPrefix, ast.Name, ast.Num, ast.Call,
		ast.Seq, ast.Conditional, ast.Sub:
		return true
	}
	return false
}

// MeasureCost estimates the runtime cost of evaluating node. Leaves and
// coercions are nearly free, division and modulo are expensive, and memory
// accesses cost extra.
func MeasureCost(node *ast.Node) int {
	size := 0
	ast.TraversePre(node, func(n *ast.Node) {
		switch n.Tag() {
		case ast.Num, ast.UnaryPrefix:
			size--
		case ast.Binary:
			if n.At(3).IsNum(0) {
				size--
			} else if op := n.At(1).Str(); op == "/" || op == "%" {
				size += 2
			}
		case ast.Call:
			if !builtins.CallHasSideEffects(n) {
				size -= 2
			}
		case ast.Sub:
			size++
		}
		size++
	})
	return size
}

// ----------------------------------------------------------------------------
// Condition Helpers
// ----------------------------------------------------------------------------

// SimplifyNotComps rewrites !(a < b) into a >= b and similar, and !!x into
// x. Comparisons are only flipped when both operands are integers, since the
// rewrite is wrong for NaN.
func SimplifyNotComps(a *ast.Arena, node *ast.Node) *ast.Node {
	if !node.Is(ast.UnaryPrefix) || node.At(1).Str() != "!" {
		return node
	}
	inner := node.At(2)
	if inner.Is(ast.Binary) && types.Detect(inner.At(2), nil) == types.Int && types.Detect(inner.At(3), nil) == types.Int {
		var flipped string
		switch inner.At(1).Str() {
		case "<":
			flipped = ">="
		case "<=":
			flipped = ">"
		case ">":
			flipped = "<="
		case ">=":
			flipped = "<"
		case "==":
			flipped = "!="
		case "!=":
			flipped = "=="
		default:
			return node
		}
		return a.Binary(inner.At(2), flipped, inner.At(3))
	}
	if inner.Is(ast.UnaryPrefix) && inner.At(1).Str() == "!" {
		return inner.At(2)
	}
	return node
}

// FlipCondition negates a condition, simplifying where possible.
func FlipCondition(a *ast.Arena, cond *ast.Node) *ast.Node {
	return SimplifyNotComps(a, a.Unary("!", cond))
}

// ----------------------------------------------------------------------------
// Statement Helpers
// ----------------------------------------------------------------------------

// RemoveAllUselessSubNodes vacuums empty statements and expression
// statements without side effects from every statement list.
func RemoveAllUselessSubNodes(node *ast.Node) {
	ast.RemoveSubNodesWhere(node, func(curr *ast.Node) bool {
		return ast.DeStat(curr).IsEmpty() || (curr.Is(ast.Stat) && !HasSideEffects(curr.At(1)))
	})
}

// UnVarify turns the definitions of a var statement into a statement of
// plain assignments: var x = 1, y = 2 becomes x = 1, y = 2.
func UnVarify(a *ast.Arena, defs *ast.Node) *ast.Node {
	items := defs.Items()
	assign := func(def *ast.Node) *ast.Node {
		return a.Assign(a.Name(def.At(0).Str()), def.At(1))
	}
	expr := assign(items[len(items)-1])
	for i := len(items) - 2; i >= 0; i-- {
		expr = a.Seq(assign(items[i]), expr)
	}
	return a.Stat(expr)
}
