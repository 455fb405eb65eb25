// Package controlflow folds nested conditionals into single ifs and fuses
// the label dispatch blocks left behind by structured control flow
// reconstruction.
package controlflow

import (
	"github.com/HugoDaniel/asmopt/internal/asm"
	"github.com/HugoDaniel/asmopt/internal/ast"
)

// labelName is the dispatch variable written by the control flow
// reconstruction: blocks set it and later ifs test (label | 0) == N.
const labelName = "label"

// SimplifyIfs rewrites if (x) { if (y) { ... } } into if (x ? y : 0) { ... }
// in every function of tree, and fuses label dispatch blocks that folding
// has made adjacent.
func SimplifyIfs(ctx *asm.Context, tree *ast.Node) {
	ast.TraverseFunctions(tree, func(fun *ast.Node) {
		s := &simplifier{a: ctx.Arena, fun: fun}
		ast.TraversePre(fun, func(node *ast.Node) {
			if node.Is(ast.If) {
				s.foldNested(node)
			}
		})
		if s.simplifiedAnElse {
			s.fuseLabels()
		}
	})
}

type simplifier struct {
	a   *ast.Arena
	fun *ast.Node

	// Folding an if that has an else can leave a label assignment in the
	// else directly followed by the if that checks it.
	simplifiedAnElse bool
}

func setElse(node, otherwise *ast.Node) {
	if node.Len() > 3 {
		node.SetAt(3, otherwise)
	} else {
		node.Push(otherwise)
	}
}

// foldNested merges the chain of ifs nested at the end of node's body into
// node's condition, as long as the else arms agree.
func (s *simplifier) foldNested(node *ast.Node) {
	body := node.At(2)
	for body.Is(ast.Block) {
		stats := body.At(1)
		if stats.Len() == 0 {
			return
		}
		other := stats.Last()
		if !other.Is(ast.If) {
			// Perhaps the else ends in an if; flip to bring it forward.
			otherwise := node.Maybe(3)
			if !otherwise.Is(ast.Block) || otherwise.At(1).Len() == 0 {
				return
			}
			stats = otherwise.At(1)
			other = stats.Last()
			if !other.Is(ast.If) {
				return
			}
			node.SetAt(1, asm.FlipCondition(s.a, node.At(1)))
			node.SetAt(2, otherwise)
			node.SetAt(3, body)
			body = node.At(2)
		}

		// Elses are fine, but must match exactly.
		if node.Maybe(3) != nil || other.Maybe(3) != nil {
			if node.Maybe(3) == nil {
				return
			}
			if !ast.DeepEqual(node.At(3), other.Maybe(3)) {
				// Flipping the inner if may line its arms up with ours.
				if !ast.DeepEqual(node.At(3), other.At(2)) {
					return
				}
				if other.Maybe(3) == nil {
					setElse(other, s.a.Block())
				}
				other.SetAt(1, asm.FlipCondition(s.a, other.At(1)))
				then, otherwise := other.At(2), other.At(3)
				other.SetAt(2, otherwise)
				other.SetAt(3, then)
			}
		}

		if stats.Len() > 1 {
			// Fold the statements before the inner if into its condition as a
			// comma expression.
			for _, stat := range stats.Items()[:stats.Len()-1] {
				if !asm.Commable(ast.DeStat(stat)) {
					return
				}
			}
			for i := stats.Len() - 2; i >= 0; i-- {
				other.SetAt(1, s.a.Seq(ast.DeStat(stats.At(i)), other.At(1)))
			}
			stats = s.a.Array(other)
			body.SetAt(1, stats)
		}
		if stats.Len() != 1 {
			return
		}
		if node.Maybe(3) != nil {
			s.simplifiedAnElse = true
		}
		node.SetAt(1, s.a.Conditional(node.At(1), other.At(1), s.a.Num(0)))
		body = other.At(2)
		node.SetAt(2, body)
	}
}

// ----------------------------------------------------------------------------
// Label Fusion
// ----------------------------------------------------------------------------

// isLabelCheck reports whether node is (label | 0) == value.
func isLabelCheck(node *ast.Node) bool {
	if !node.Is(ast.Binary) || node.At(1).Str() != "==" {
		return false
	}
	left := node.At(2)
	return left.Is(ast.Binary) && left.At(1).Str() == "|" && left.At(2).IsName(labelName)
}

// isLabelSet reports whether stat is the statement label = value.
func isLabelSet(stat *ast.Node, value float64) bool {
	if !stat.Is(ast.Stat) {
		return false
	}
	assign := stat.At(1)
	return assign.Is(ast.Assign) && assign.At(1).IsBool() && assign.At(2).IsName(labelName) && assign.At(3).IsNum(value)
}

// fuseLabels turns
//
//	if (a) { ... } else { label = 5; }
//	if ((label | 0) == 5) { label = 0; ... }
//
// into if (a) { ... } else { ... } when that is the only place label is set
// to 5 and the only place it is checked against 5.
func (s *simplifier) fuseLabels() {
	assigns := make(map[float64]int)
	dynamic := false
	ast.TraversePre(s.fun, func(node *ast.Node) {
		if node.Is(ast.Assign) && node.At(2).IsName(labelName) {
			if value := node.At(3); value.Is(ast.Num) {
				assigns[value.At(1).Num()]++
			} else {
				// Computed labels come from indirect branches.
				dynamic = true
			}
		}
	})
	if dynamic {
		return
	}

	checks := make(map[float64]int)
	ast.TraversePre(s.fun, func(node *ast.Node) {
		if isLabelCheck(node) {
			if value := node.At(3); value.Is(ast.Num) {
				checks[value.At(1).Num()]++
			} else {
				dynamic = true
			}
		}
	})
	if dynamic {
		return
	}

	// Inside a loop the label is not cleared after dispatch, so a fused block
	// must clear it itself.
	inLoop := 0
	ast.TraversePrePost(s.fun, func(node *ast.Node) {
		if node.Is(ast.While) {
			inLoop++
		}
		stats := ast.Statements(node)
		for i := 0; i+1 < stats.Len(); i++ {
			pre, post := stats.At(i), stats.At(i+1)
			if !pre.Is(ast.If) || pre.Maybe(3) == nil || !post.Is(ast.If) || post.Maybe(3) != nil {
				continue
			}
			cond := post.At(1)
			if !isLabelCheck(cond) || !cond.At(2).At(3).IsNum(0) || !cond.At(3).Is(ast.Num) {
				continue
			}
			value := cond.At(3).At(1).Num()
			preElse := pre.At(3)
			if assigns[value] != 1 || checks[value] != 1 || !preElse.Is(ast.Block) || preElse.At(1).Len() != 1 {
				continue
			}
			if !isLabelSet(preElse.At(1).At(0), value) {
				continue
			}
			postBody := post.At(2)
			if !postBody.Is(ast.Block) || postBody.At(1).Len() == 0 {
				continue
			}
			haveClear := isLabelSet(postBody.At(1).At(0), 0)
			if inLoop > 0 && !haveClear {
				continue
			}
			pre.SetAt(3, postBody)
			if haveClear {
				postBody.At(1).Splice(0, 1)
			}
			stats.Splice(i+1, 1)
		}
	}, func(node *ast.Node) {
		if node.Is(ast.While) {
			inLoop--
		}
	})
}
