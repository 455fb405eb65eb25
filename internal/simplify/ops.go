package simplify

import (
	"math"

	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/builtins"
	"github.com/HugoDaniel/asmopt/internal/types"
)

// Contexts recorded by removeMultipleOrZero for each ancestor.
const (
	ctxDangerous = -1 // the value escapes exactly as computed
	ctxSafe      = 0  // keeps integers exact
	ctxUseful    = 1  // truncates to 32 bits on its own
	ctxCorrected = 2  // a |0 that stays
)

func (s *simplifier) simplifyOps() {
	s.removeMultipleOrZero()

	hasTempDoublePtr := false
	rerunOrZero := false
	ast.TraversePrePostConditional(s.fun, func(node *ast.Node) bool {
		// Indices into function tables are masked with constants that must
		// not be folded away.
		return !(node.Is(ast.Sub) && node.At(1).Is(ast.Name) && builtins.IsFunctionTable(node.At(1).At(1).Str()))
	}, func(node *ast.Node) {
		if node.IsName(builtins.TempDoublePtr) {
			hasTempDoublePtr = true
			return
		}
		if s.simplifyNode(node) {
			rerunOrZero = true
		}
	})

	if rerunOrZero {
		s.removeMultipleOrZero()
	}
	if hasTempDoublePtr {
		s.removeBitcasts()
	}
}

// removeMultipleOrZero drops |0 corrections made redundant by an outer one:
// in ((x|0)+y)|0 only the outer |0 is needed. Each ancestor pushes the kind
// of context it provides; a |0 can go when an enclosing truncating
// operator is reached before anything that would observe the difference.
func (s *simplifier) removeMultipleOrZero() {
	for rerun := true; rerun; {
		rerun = false
		var stack []int
		var process func(node *ast.Node)
		process = func(node *ast.Node) {
			switch {
			case isBinary(node, "|"):
				left, right := node.At(2), node.At(3)
				if isNum(left) && isNum(right) {
					node.CopyFrom(s.a.Num(float64(toInt32(left.At(1).Num()) | toInt32(right.At(1).Num()))))
					stack = append(stack, ctxSafe)
					return
				}
				switch {
				case left.IsNum(0):
					// Canonical order puts the zero on the right.
					node.SetAt(2, right)
					node.SetAt(3, left)
				case right.IsNum(0):
				default:
					stack = append(stack, ctxUseful)
					return
				}
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] >= ctxUseful {
						parent := stack[len(stack)-1]
						operand := node.At(2)
						if parent < ctxCorrected && operand.Is(ast.Call) {
							// Calls need their own |0.
							break
						}
						if parent < ctxUseful && (coercionRequiringOps[operand.Tag()] ||
							(operand.Is(ast.Binary) && coercionRequiringBinaries[operand.At(1).Str()])) {
							break
						}
						node.CopyFrom(operand)
						rerun = true
						process(node)
						return
					}
					if stack[i] == ctxDangerous {
						break
					}
				}
				stack = append(stack, ctxCorrected)
			case node.Is(ast.Binary) && usefulBinaryOps[node.At(1).Str()]:
				stack = append(stack, ctxUseful)
			case node.Is(ast.Binary) && safeBinaryOps[node.At(1).Str()], node.Is(ast.Num), node.Is(ast.Name):
				stack = append(stack, ctxSafe)
			case node.Is(ast.UnaryPrefix) && node.At(1).Str() == "~":
				stack = append(stack, ctxUseful)
			default:
				stack = append(stack, ctxDangerous)
			}
		}
		ast.TraversePrePost(s.fun, process, func(*ast.Node) {
			stack = stack[:len(stack)-1]
		})
	}
}

// simplifyNode applies the local rewrites to node, whose operands are
// already simplified. It reports whether a |0 was introduced that may make
// others redundant.
func (s *simplifier) simplifyNode(node *ast.Node) bool {
	switch node.Tag() {
	case ast.Binary:
		switch node.At(1).Str() {
		case "&":
			if isNum(node.At(3)) {
				s.simplifyAnd(node)
			}
		case "^":
			// LLVM writes ~x as x ^ -1. Avoid creating ~~~.
			if isMinusOne(node.At(3)) && !(node.At(2).Is(ast.UnaryPrefix) && node.At(2).At(1).Str() == "~") {
				node.CopyFrom(s.a.Unary("~", node.At(2)))
			}
		case ">>":
			if s.narrowShiftedLoad(node) {
				return true
			}
			if isNum(node.At(2)) && isNum(node.At(3)) {
				shift := uint(toInt32(node.At(3).At(1).Num())) & 31
				node.CopyFrom(s.a.Num(float64(toInt32(node.At(2).At(1).Num()) >> shift)))
			}
		case "+":
			s.foldAdd(node)
		}
	case ast.Assign:
		s.simplifyStore(node)
	}
	return false
}

func isMinusOne(node *ast.Node) bool {
	return node.IsNum(-1) || (node.Is(ast.UnaryPrefix) && node.At(1).Str() == "-" && node.At(2).IsNum(1))
}

func (s *simplifier) simplifyAnd(node *ast.Node) {
	input := node.At(2)
	amount := node.At(3).At(1).Num()
	if isNum(input) {
		node.CopyFrom(s.a.Num(float64(toInt32(input.At(1).Num()) & toInt32(amount))))
		return
	}
	switch {
	case isBinary(input, "&") && isNum(input.At(3)):
		// x & 255 & 1 is x & 1.
		node.SetAt(3, s.a.Num(float64(toInt32(amount)&toInt32(input.At(3).At(1).Num()))))
		node.SetAt(2, input.At(2))
	case input.Is(ast.Sub) && input.At(1).Is(ast.Name):
		// HEAP8[x] & 255 is HEAPU8[x] | 0.
		view := builtins.ParseHeap(input.At(1).At(1).Str())
		if !view.Valid || view.Float || !types.IsInteger32(amount) || amount != math.Pow(2, float64(view.Bits))-1 {
			return
		}
		if !view.Unsigned {
			input.SetAt(1, s.a.Name(builtins.HeapName(view.Bits, true)))
		}
		node.SetAt(1, s.a.Str("|"))
		node.SetAt(3, s.a.Num(0))
	}
}

// narrowShiftedLoad turns HEAPU8[x] << 24 >> 24 into HEAP8[x] | 0, and
// likewise for 16-bit views.
func (s *simplifier) narrowShiftedLoad(node *ast.Node) bool {
	shl := node.At(2)
	if !isNum(node.At(3)) || !isBinary(shl, "<<") || !isNum(shl.At(3)) {
		return false
	}
	load := shl.At(2)
	if !load.Is(ast.Sub) || !load.At(1).Is(ast.Name) {
		return false
	}
	amount := node.At(3).At(1).Num()
	if amount != shl.At(3).At(1).Num() {
		return false
	}
	view := builtins.ParseHeap(load.At(1).At(1).Str())
	if !view.Valid || view.Float || float64(view.Bits) != 32-amount {
		return false
	}
	load.SetAt(1, s.a.Name(builtins.HeapName(view.Bits, false)))
	node.SetAt(1, s.a.Str("|"))
	node.SetAt(2, load)
	node.SetAt(3, s.a.Num(0))
	return true
}

// foldAdd folds num + num, and (x + n1) + n2 into x + (n1 + n2). Only
// integer literals are folded.
func (s *simplifier) foldAdd(node *ast.Node) {
	left, right := node.At(2), node.At(3)
	if isNum(left) && isNum(right) {
		if l, r := left.At(1).Num(), right.At(1).Num(); types.IsInteger32(l) && types.IsInteger32(r) {
			node.CopyFrom(s.a.Num(float64(int64(toInt32(l)) + int64(toInt32(r)))))
		}
		return
	}
	for i := 2; i <= 3; i++ {
		num, other := node.At(i), node.At(5-i)
		if !isNum(num) || !isBinary(other, "+") || !types.IsInteger32(num.At(1).Num()) {
			continue
		}
		for j := 2; j <= 3; j++ {
			inner := other.At(j)
			if !isNum(inner) || !types.IsInteger32(inner.At(1).Num()) {
				continue
			}
			sum := int64(toInt32(inner.At(1).Num())) + int64(toInt32(num.At(1).Num()))
			other.SetAt(j, s.a.Num(float64(sum)))
			node.CopyFrom(other)
			return
		}
	}
}

// simplifyStore drops masks and corrections the heap view applies anyway,
// and moves a |0 to the canonical right side.
func (s *simplifier) simplifyStore(node *ast.Node) {
	op := node.At(1)
	target := node.At(2)
	if op.IsBool() && op.Bool() && target.Is(ast.Sub) && target.At(1).Is(ast.Name) {
		value := node.At(3)
		switch target.At(1).At(1).Str() {
		case builtins.HEAP32:
			// HEAP32[p] = x | 0 needs no |0 unless x is a call.
			if isBinary(value, "|") {
				if value.At(2).IsNum(0) && !value.At(3).Is(ast.Call) {
					node.SetAt(3, value.At(3))
				} else if value.At(3).IsNum(0) && !value.At(2).Is(ast.Call) {
					node.SetAt(3, value.At(2))
				}
			}
		case builtins.HEAP8:
			if isBinary(value, "&") && value.At(3).IsNum(0xff) {
				node.SetAt(3, value.At(2))
			}
		case builtins.HEAP16:
			if isBinary(value, "&") && value.At(3).IsNum(0xffff) {
				node.SetAt(3, value.At(2))
			}
		}
	}

	value := node.At(3)
	if !isBinary(value, "|") {
		return
	}
	if value.At(2).IsNum(0) {
		left, right := value.At(2), value.At(3)
		value.SetAt(2, right)
		value.SetAt(3, left)
	}
	// In an assignment, (a, b << 2) | 0 needs no |0: the sequence already
	// ends in a truncating operator.
	if seq := value.At(2); seq.Is(ast.Seq) && seq.At(2).Is(ast.Binary) && usefulBinaryOps[seq.At(2).At(1).Str()] {
		node.SetAt(3, seq)
	}
}
