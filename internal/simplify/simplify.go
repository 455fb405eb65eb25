// Package simplify rewrites asm.js expressions into cheaper equivalent forms.
//
// Expressions runs, per function:
// 1. Integer conversion cleanup ((x&A)<<B>>B, (a<b)&1 under bitwise ops).
// 2. Operator simplification: redundant |0 removal, constant folding, heap
//    view narrowing and tempDoublePtr bitcast removal.
// 3. Negated comparison flipping on integer operands.
// 4. Conditionalization of expensive boolean | and &.
//
// Rules that depend on 32-bit wraparound only fire on operands known to be
// integers.
package simplify

import (
	"math"

	"github.com/HugoDaniel/asmopt/internal/asm"
	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/types"
)

// Operator classes.
var (
	usefulBinaryOps = map[string]bool{"<<": true, ">>": true, "|": true, "&": true, "^": true}
	compareOps      = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true, "===": true, "!==": true}
	bitwiseOps      = map[string]bool{"|": true, "&": true, "^": true}

	// + and - keep integers exact, so a |0 below them can move to the top.
	safeBinaryOps = map[string]bool{"+": true, "-": true}

	// Results of these must be coerced on the spot.
	coercionRequiringOps      = map[string]bool{ast.Sub: true, ast.UnaryPrefix: true}
	coercionRequiringBinaries = map[string]bool{"*": true, "/": true, "%": true}
)

// Expressions simplifies every function of tree.
func Expressions(ctx *asm.Context, tree *ast.Node) {
	ast.TraverseFunctions(tree, func(fun *ast.Node) {
		s := &simplifier{ctx: ctx, a: ctx.Arena, fun: fun}
		s.simplifyIntegerConversions()
		s.simplifyOps()
		s.simplifyNotComps()
		s.conditionalize()
	})
}

type simplifier struct {
	ctx *asm.Context
	a   *ast.Arena
	fun *ast.Node
}

// toInt32 converts like the JavaScript ToInt32 operation.
func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(math.Mod(math.Trunc(f), 1<<32))))
}

func isNum(node *ast.Node) bool {
	return node.Is(ast.Num)
}

func isBinary(node *ast.Node, op string) bool {
	return node.Is(ast.Binary) && node.At(1).Str() == op
}

// ----------------------------------------------------------------------------
// Integer Conversions
// ----------------------------------------------------------------------------

func (s *simplifier) simplifyIntegerConversions() {
	ast.TraversePre(s.fun, func(node *ast.Node) {
		switch {
		case isBinary(node, ">>") && isNum(node.At(3)) &&
			isBinary(node.At(2), "<<") && isNum(node.At(2).At(3)) &&
			node.At(3).At(1).Num() == node.At(2).At(3).At(1).Num():
			// (x&A)<<B>>B is x&A when A fits after the shift.
			inner := node.At(2).At(2)
			shifts := node.At(3).At(1).Num()
			if !isBinary(inner, "&") || !isNum(inner.At(3)) {
				return
			}
			mask := inner.At(3).At(1).Num()
			if !types.IsInteger32(mask) || !types.IsInteger32(shifts) {
				return
			}
			m, b := toInt32(mask), uint(toInt32(shifts))&31
			if (m<<b)>>b == m {
				node.CopyFrom(inner)
			}

		case node.Is(ast.Binary) && bitwiseOps[node.At(1).Str()]:
			// (a < b) & 1 is already 0 or 1 under another bitwise operator.
			for i := 2; i <= 3; i++ {
				sub := node.At(i)
				if isBinary(sub, "&") && sub.At(3).IsNum(1) {
					if input := sub.At(2); input.Is(ast.Binary) && compareOps[input.At(1).Str()] {
						sub.CopyFrom(input)
					}
				}
			}
		}
	})
}

// ----------------------------------------------------------------------------
// Negated Comparisons
// ----------------------------------------------------------------------------

func (s *simplifier) simplifyNotComps() {
	ast.TraversePre(s.fun, func(node *ast.Node) {
		if ret := asm.SimplifyNotComps(s.a, node); ret != node {
			node.CopyFrom(ret)
		}
	})
}

// ----------------------------------------------------------------------------
// Conditionalization
// ----------------------------------------------------------------------------

// minCost is the cost below which avoiding a computation is not worth a
// branch.
const minCost = 7

func emitsBoolean(node *ast.Node) bool {
	switch node.Tag() {
	case ast.Num:
		v := node.At(1).Num()
		return v == 0 || v == 1
	case ast.Binary:
		return compareOps[node.At(1).Str()]
	case ast.UnaryPrefix:
		return node.At(1).Str() == "!"
	case ast.Conditional:
		return emitsBoolean(node.At(2)) && emitsBoolean(node.At(3))
	}
	return false
}

// conditionalize turns expensive | cheap into cheap ? 1 : expensive, and
// expensive & cheap into cheap ? expensive : 0, so the expensive side is
// skipped when the cheap side decides the result. Sides with effects
// always run first.
func (s *simplifier) conditionalize() {
	ast.TraversePre(s.fun, func(node *ast.Node) {
		if !node.Is(ast.Binary) {
			return
		}
		op := node.At(1).Str()
		if (op != "|" && op != "&") || isNum(node.At(2)) || isNum(node.At(3)) {
			return
		}
		left, right := node.At(2), node.At(3)
		if !emitsBoolean(left) || !emitsBoolean(right) {
			return
		}
		leftEffects, rightEffects := asm.HasSideEffects(left), asm.HasSideEffects(right)
		switch {
		case leftEffects && rightEffects:
			return
		case rightEffects:
			if asm.MeasureCost(left) < minCost {
				return
			}
			left, right = right, left
		case leftEffects:
			if asm.MeasureCost(right) < minCost {
				return
			}
		default:
			leftCost, rightCost := asm.MeasureCost(left), asm.MeasureCost(right)
			if max(leftCost, rightCost) < minCost {
				return
			}
			if leftCost > rightCost {
				left, right = right, left
			}
		}

		var ret *ast.Node
		if op == "|" {
			ret = s.a.Conditional(left, s.a.Num(1), right)
		} else {
			ret = s.a.Conditional(left, right, s.a.Num(0))
		}
		if left.Is(ast.UnaryPrefix) && left.At(1).Str() == "!" {
			ret.SetAt(1, asm.FlipCondition(s.a, left))
			then, otherwise := ret.At(2), ret.At(3)
			ret.SetAt(2, otherwise)
			ret.SetAt(3, then)
		}
		node.CopyFrom(ret)
	})
}
