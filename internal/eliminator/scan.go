package eliminator

import (
	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/builtins"
	"github.com/HugoDaniel/asmopt/internal/diagnostic"
)

// tracking is the effect summary of a pending definition.
type tracking struct {
	usesGlobals bool
	usesMemory  bool
	doesCall    bool
	deps        map[string]bool
	defNode     *ast.Node
}

// Statement kinds a scan can start at. Any other statement ends all
// tracking in its list.
var eliminationSafe = map[string]bool{
	ast.Var: true, ast.Assign: true, ast.Call: true, ast.If: true, ast.Toplevel: true,
	ast.Do: true, ast.Return: true, ast.Label: true, ast.Switch: true, ast.Binary: true,
	ast.UnaryPrefix: true,
}

// Nodes a scan passes over without effect.
var ignorable = map[string]bool{
	ast.Num: true, ast.Toplevel: true, ast.String: true, ast.Break: true,
	ast.Continue: true, ast.Dot: true,
}

// Operators whose operands may be evaluated in either order.
var associative = map[string]bool{"+": true, "*": true, "|": true, "&": true, "^": true}

func isNameOrNum(node *ast.Node) bool {
	return node.Is(ast.Name) || node.Is(ast.Num)
}

// scanStatements scans every statement list of the function, including the
// single switch of a while-switch loop.
func (e *functionEliminator) scanStatements() {
	ast.TraversePre(e.fun, func(block *ast.Node) {
		stats := ast.Statements(block)
		if stats == nil && block.Is(ast.While) && block.At(2).Is(ast.Switch) {
			stats = e.ctx.Arena.Array(block.At(2))
		}
		if stats == nil {
			return
		}
		clear(e.tracked)
		for i := 0; i < stats.Len(); i++ {
			node := ast.DeStat(stats.At(i))
			if node.Is(ast.Return) && i < stats.Len()-1 {
				stats.Truncate(i + 1)
			}
			if eliminationSafe[node.Tag()] {
				e.scan(node)
			} else {
				clear(e.tracked)
			}
		}
	})
}

func (e *functionEliminator) scan(node *ast.Node) {
	e.abort = false
	e.allowTracking = true
	e.traverseInOrder(node, false, false)
}

// ----------------------------------------------------------------------------
// Tracking
// ----------------------------------------------------------------------------

func (e *functionEliminator) track(name string, value, defNode *ast.Node) {
	info := &tracking{defNode: defNode, deps: make(map[string]bool)}
	// The name right after a sub or call is the heap view or callee.
	ignoreName := false
	ast.TraversePre(value, func(node *ast.Node) {
		switch node.Tag() {
		case ast.Name:
			if ignoreName {
				ignoreName = false
				return
			}
			used := node.At(1).Str()
			if !e.f.IsLocal(used) {
				info.usesGlobals = true
			}
			// Potentials are defined once, so they cannot change under us.
			if !e.potentials[used] {
				info.deps[used] = true
			}
		case ast.Sub:
			info.usesMemory = true
			ignoreName = true
		case ast.Call:
			info.usesGlobals = true
			info.usesMemory = true
			info.doesCall = true
			ignoreName = true
		default:
			ignoreName = false
		}
	})
	e.tracked[name] = info
	e.globalsInvalidated = false
	e.memoryInvalidated = false
	e.callsInvalidated = false
}

func (e *functionEliminator) invalidateWhere(drop func(*tracking) bool) {
	for name, info := range e.tracked {
		if drop(info) {
			delete(e.tracked, name)
		}
	}
}

func (e *functionEliminator) invalidateGlobals() {
	e.invalidateWhere(func(t *tracking) bool { return t.usesGlobals })
	e.globalsInvalidated = true
}

func (e *functionEliminator) invalidateMemory() {
	e.invalidateWhere(func(t *tracking) bool { return t.usesMemory })
	e.memoryInvalidated = true
}

func (e *functionEliminator) invalidateCalls() {
	e.invalidateWhere(func(t *tracking) bool { return t.doesCall })
	e.callsInvalidated = true
}

func (e *functionEliminator) invalidateByDep(dep string) {
	e.invalidateWhere(func(t *tracking) bool { return t.deps[dep] })
}

// discardAll drops every pending definition.
func (e *functionEliminator) discardAll() {
	clear(e.tracked)
}

// eliminate consumes the tracked definition of name at the use site node.
func (e *functionEliminator) eliminate(name string, node *ast.Node) {
	e.varsToRemove[name] = removed
	info := e.tracked[name]
	diagnostic.Assert(info != nil, e.fun, node, "%s is not tracked", name)
	def := info.defNode
	if e.sideEffectFree[name] {
		// No uses: the definition itself is the node being dropped.
		e.ctx.Arena.MakeEmpty(node)
	} else {
		diagnostic.Assert(!def.Is(ast.Var), e.fun, def, "cannot substitute a var initializer")
		value := def.At(3)
		e.ctx.Arena.MakeEmpty(def)
		node.CopyFrom(value)
	}
	delete(e.tracked, name)
}

// ----------------------------------------------------------------------------
// Execution-Order Walk
// ----------------------------------------------------------------------------

// traverseInOrder visits node in evaluation order. ignoreSub marks a sub
// that is being written rather than read; ignoreName marks a name that is
// an assignment target, a callee or a heap view.
func (e *functionEliminator) traverseInOrder(node *ast.Node, ignoreSub, ignoreName bool) {
	if e.abort {
		return
	}
	switch tag := node.Tag(); {
	case tag == ast.Assign:
		e.scanAssign(node)

	case tag == ast.Sub:
		e.traverseInOrder(node.At(1), false, !e.memSafe)
		e.traverseInOrder(node.At(2), false, false)
		if !ignoreSub && !builtins.IsTempDoublePtrAccess(node) && !e.callsInvalidated {
			e.invalidateCalls()
		}

	case tag == ast.Var:
		e.scanVar(node)

	case tag == ast.Binary:
		e.scanBinary(node)

	case tag == ast.Name:
		if ignoreName {
			return
		}
		name := node.At(1).Str()
		if e.tracked[name] != nil {
			e.eliminate(name, node)
		} else if !e.f.IsLocal(name) && !e.callsInvalidated {
			e.invalidateCalls()
		}

	case tag == ast.UnaryPrefix:
		e.traverseInOrder(node.At(2), false, false)

	case ignorable[tag]:

	case tag == ast.Call:
		e.traverseInOrder(node.At(1), false, true)
		for _, arg := range node.At(2).Items() {
			e.traverseInOrder(arg, false, false)
		}
		if builtins.CallHasSideEffects(node) {
			if !e.globalsInvalidated {
				e.invalidateGlobals()
			}
			if !e.memoryInvalidated {
				e.invalidateMemory()
			}
		}

	case tag == ast.If:
		if !e.allowTracking {
			e.discardAll()
			return
		}
		e.traverseInOrder(node.At(1), false, false)
		e.scanBranches(node.At(2), node.Maybe(3))

	case tag == ast.Block:
		for _, stat := range node.Maybe(1).Items() {
			e.traverseInOrder(stat, false, false)
		}

	case tag == ast.Stat:
		e.traverseInOrder(node.At(1), false, false)

	case tag == ast.Label:
		e.traverseInOrder(node.At(2), false, false)

	case tag == ast.Seq:
		e.traverseInOrder(node.At(1), false, false)
		e.traverseInOrder(node.At(2), false, false)

	case tag == ast.Do:
		if node.At(1).IsNum(0) {
			// do { } while (0) runs exactly once.
			e.traverseInOrder(node.At(2), false, false)
		} else {
			e.discardAll()
		}

	case tag == ast.Return:
		if value := node.Maybe(1); value != nil {
			e.traverseInOrder(value, false, false)
		}

	case tag == ast.Conditional:
		e.traverseInOrder(node.At(1), false, false)
		e.scanBranches(node.At(2), node.At(3))

	case tag == ast.Switch:
		e.scanSwitch(node)

	default:
		e.discardAll()
		e.abort = true
		e.discarded++
	}
}

func (e *functionEliminator) scanAssign(node *ast.Node) {
	target, value := node.At(2), node.At(3)
	nameTarget := target.Is(ast.Name)
	e.traverseInOrder(target, true, nameTarget)

	var name string
	if nameTarget {
		name = target.At(1).Str()
	}
	// A discharged value no longer counts towards the uses of the locals
	// it reads; it is about to disappear with its definition.
	if !nameTarget || !e.discharged[name] {
		e.traverseInOrder(value, false, false)
	}

	switch {
	case nameTarget:
		if e.potentials[name] {
			if e.allowTracking {
				e.track(name, value, node)
			}
			return
		}
		if e.varsToTryToRemove[name] {
			// Unused, but the value must still be evaluated.
			node.CopyFrom(value)
			e.varsToRemove[name] = removed
			return
		}
		e.invalidateByDep(name)
		if !e.f.IsLocal(name) && !e.globalsInvalidated {
			e.invalidateGlobals()
		}
		if e.allowTracking && e.varsToRemove[name] != keep && e.uses[name] == 0 {
			e.track(name, value, node)
			e.eliminate(name, node)
		}

	case target.Is(ast.Sub):
		if builtins.IsTempDoublePtrAccess(target) {
			if !e.globalsInvalidated {
				e.invalidateGlobals()
			}
		} else if !e.memoryInvalidated {
			e.invalidateMemory()
		}
	}
}

func (e *functionEliminator) scanVar(node *ast.Node) {
	defs := node.At(1)
	for _, def := range defs.Items() {
		name := def.At(0).Str()
		value := def.Maybe(1)
		if value == nil {
			continue
		}
		e.traverseInOrder(value, false, false)
		if e.potentials[name] && e.allowTracking {
			e.track(name, value, node)
		} else {
			e.invalidateByDep(name)
		}
		if defs.Len() == 1 && e.varsToTryToRemove[name] {
			node.CopyFrom(e.ctx.Arena.Stat(value))
			e.varsToRemove[name] = removed
		}
	}
}

// scanBinary walks both operands. When only the right operand is a leaf of
// an associative operator, the operands are visited right first so a
// tracked leaf can still be substituted before the other side invalidates
// it.
func (e *functionEliminator) scanBinary(node *ast.Node) {
	flipped := false
	if associative[node.At(1).Str()] && !isNameOrNum(node.At(2)) && isNameOrNum(node.At(3)) {
		swapOperands(node)
		flipped = true
	}
	e.traverseInOrder(node.At(2), false, false)
	e.traverseInOrder(node.At(3), false, false)
	if flipped && isNameOrNum(node.At(2)) {
		swapOperands(node)
	}
}

func swapOperands(node *ast.Node) {
	left, right := node.At(2), node.At(3)
	node.SetAt(2, right)
	node.SetAt(3, left)
}

// scanBranches walks code that may not run. Nothing tracked before it can
// be moved into it, and nothing defined inside it can be moved out.
func (e *functionEliminator) scanBranches(then, otherwise *ast.Node) {
	e.discardAll()
	outer := e.allowTracking
	e.allowTracking = false
	e.traverseInOrder(then, false, false)
	if otherwise != nil {
		e.traverseInOrder(otherwise, false, false)
	}
	e.allowTracking = outer
}

func (e *functionEliminator) scanSwitch(node *ast.Node) {
	e.traverseInOrder(node.At(1), false, false)
	for _, c := range node.At(2).Items() {
		test := c.At(0)
		diagnostic.Assert(test.IsNull() || test.Is(ast.Num) ||
			(test.Is(ast.UnaryPrefix) && test.At(2).Is(ast.Num)),
			e.fun, node, "switch case is not a constant")
		// Cases run conditionally and may fall through into each other.
		e.discardAll()
		for _, stat := range c.At(1).Items() {
			e.traverseInOrder(stat, false, false)
		}
	}
	e.discardAll()
}
