package simplify

import (
	"github.com/HugoDaniel/asmopt/internal/asm"
	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/types"
)

// defaultFloatZero names the float zero constant when the program has not
// hoisted one of its own.
const defaultFloatZero = "f0"

func isFround(node *ast.Node) bool {
	return node.Is(ast.Call) && node.At(1).IsName(types.Fround)
}

// Frounds collapses Math_fround(Math_fround(x)), which elimination can
// produce, and replaces Math_fround(0) with the float zero constant outside
// of return values. A return value must carry its own coercion.
func Frounds(ctx *asm.Context, tree *ast.Node) {
	zero := ctx.FloatZero.Name()
	if zero == "" {
		zero = defaultFloatZero
	}
	a := ctx.Arena
	returns := 0
	used := false
	ast.TraversePrePost(tree, func(node *ast.Node) {
		if node.Is(ast.Return) {
			returns++
		}
	}, func(node *ast.Node) {
		if node.Is(ast.Return) {
			returns--
			return
		}
		if !isFround(node) || node.At(2).Len() != 1 {
			return
		}
		arg := node.At(2).At(0)
		switch {
		case arg.IsNum(0) && returns == 0:
			node.CopyFrom(a.Name(zero))
			used = true
		case isFround(arg):
			node.CopyFrom(arg)
		}
	})
	if used {
		// The constant is fixed for the rest of the run.
		_ = ctx.FloatZero.Observe(zero)
	}
}
