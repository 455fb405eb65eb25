// Package eliminator removes locals that are computed once and used once,
// or never observably used.
//
// Elimination works per function in three steps:
// 1. Classify locals by counting definitions and uses. A local with one
//    definition and one use is a potential; a local with no uses whose
//    definition has no effects is dead, and discarding its definition
//    lowers the use counts of the locals it reads.
// 2. Scan each statement list in execution order, tracking the pending
//    definitions of potentials and invalidating them when something they
//    depend on may change. A read of a still-tracked potential receives
//    the definition's expression and the definition is blanked.
// 3. Fuse loop helper variables into the loop variables they feed.
package eliminator

import (
	"github.com/HugoDaniel/asmopt/internal/asm"
	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/builtins"
	"github.com/HugoDaniel/asmopt/internal/diagnostic"
)

// Options controls elimination.
type Options struct {
	// MemSafe makes heap views count as reads when they appear as the
	// target of a memory write, so a tracked call is never moved past the
	// evaluation of a store's address.
	MemSafe bool
}

// removal records what happens to a local's declaration.
type removal uint8

const (
	keep removal = iota
	removePending
	removed
)

// Run eliminates locals in every function of tree.
func Run(ctx *asm.Context, tree *ast.Node, opts Options) {
	ast.TraverseFunctions(tree, func(fun *ast.Node) {
		e := newFunctionEliminator(ctx, fun, opts)
		e.classify()
		e.scanStatements()
		e.sweepDead()
		e.fuseLoopHelpers()
		e.finish()
	})
	ast.RemoveAllEmptySubNodes(tree)
}

type functionEliminator struct {
	ctx     *asm.Context
	fun     *ast.Node
	f       *asm.Function
	memSafe bool

	definitions map[string]int
	uses        map[string]int
	namings     map[string]int // total appearances, as target or operand
	values      map[string]*ast.Node
	defNodes    map[string]*ast.Node // the assign holding values[name]
	statements  map[*ast.Node]bool   // assigns forming a whole statement in a list

	potentials        map[string]bool
	sideEffectFree    map[string]bool
	varsToRemove      map[string]removal
	varsToTryToRemove map[string]bool
	discharged        map[string]bool

	// scan state
	tracked            map[string]*tracking
	globalsInvalidated bool
	memoryInvalidated  bool
	callsInvalidated   bool
	allowTracking      bool
	abort              bool
	discarded          int
}

func newFunctionEliminator(ctx *asm.Context, fun *ast.Node, opts Options) *functionEliminator {
	return &functionEliminator{
		ctx:               ctx,
		fun:               fun,
		f:                 asm.MustParse(ctx, fun),
		memSafe:           opts.MemSafe,
		definitions:       make(map[string]int),
		uses:              make(map[string]int),
		namings:           make(map[string]int),
		values:            make(map[string]*ast.Node),
		defNodes:          make(map[string]*ast.Node),
		statements:        make(map[*ast.Node]bool),
		potentials:        make(map[string]bool),
		sideEffectFree:    make(map[string]bool),
		varsToRemove:      make(map[string]removal),
		varsToTryToRemove: make(map[string]bool),
		discharged:        make(map[string]bool),
		tracked:           make(map[string]*tracking),
	}
}

// ----------------------------------------------------------------------------
// Classification
// ----------------------------------------------------------------------------

func (e *functionEliminator) count() {
	ast.TraversePre(e.fun, func(node *ast.Node) {
		switch node.Tag() {
		case ast.Var:
			for _, def := range node.At(1).Items() {
				if value := def.Maybe(1); value != nil {
					name := def.At(0).Str()
					e.definitions[name]++
					if _, ok := e.values[name]; !ok {
						e.values[name] = value
					}
				}
			}
		case ast.Name:
			e.uses[node.At(1).Str()]++
		case ast.Assign:
			target := node.At(2)
			if !target.Is(ast.Name) {
				break
			}
			name := target.At(1).Str()
			diagnostic.Assert(node.At(1).IsBool(), e.fun, node, "compound assignment to %s", name)
			e.definitions[name]++
			if _, ok := e.values[name]; !ok {
				e.values[name] = node.At(3)
				e.defNodes[name] = node
			}
			// The target is counted as a use when the traversal reaches it.
			e.uses[name]--
			e.namings[name]++
		case ast.Switch:
			for _, c := range node.At(2).Items() {
				e.markStatements(c.At(1))
			}
		}
		if stats := ast.Statements(node); stats != nil {
			e.markStatements(stats)
		}
	})
	for name, n := range e.uses {
		e.namings[name] += n
	}
}

func (e *functionEliminator) markStatements(stats *ast.Node) {
	for _, stat := range stats.Items() {
		if stat.Is(ast.Stat) && stat.At(1).Is(ast.Assign) {
			e.statements[stat.At(1)] = true
		}
	}
}

// inStatementPosition reports whether the single definition of name, if
// any, is an assignment standing as a statement of its own. Only those can
// be blanked without leaving a hole in an enclosing expression.
func (e *functionEliminator) inStatementPosition(name string) bool {
	if e.definitions[name] == 0 {
		return true
	}
	def := e.defNodes[name]
	return def != nil && e.statements[def]
}

// classify computes potentials and dead locals. Discarding a dead local's
// value lowers the use counts of the locals it reads, which are queued for
// reclassification. Every queued entry pays for one strictly decreasing use
// count, so the queue drains.
func (e *functionEliminator) classify() {
	e.count()

	queue := make([]string, 0, len(e.f.Params)+len(e.f.Vars))
	queue = append(queue, e.f.Params...)
	queue = append(queue, e.f.Vars...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		e.unprocess(name)
		queue = e.process(name, queue)
	}
	clear(e.values)
}

func (e *functionEliminator) unprocess(name string) {
	delete(e.potentials, name)
	delete(e.varsToRemove, name)
	delete(e.sideEffectFree, name)
	delete(e.varsToTryToRemove, name)
}

func (e *functionEliminator) process(name string, queue []string) []string {
	defs, uses := e.definitions[name], e.uses[name]
	if defs == 1 && uses == 1 {
		if e.inStatementPosition(name) {
			e.potentials[name] = true
		}
		return queue
	}
	if uses != 0 || defs > 1 {
		return queue
	}

	value := e.values[name]
	sideEffects := false
	if value != nil && !isDoubleToI64Bitcast(value) {
		sideEffects = asm.HasSideEffects(value)
	}
	if sideEffects || !e.inStatementPosition(name) {
		e.varsToTryToRemove[name] = true
		return queue
	}

	if defs == 0 {
		e.varsToRemove[name] = removed
	} else {
		e.varsToRemove[name] = removePending
	}
	e.sideEffectFree[name] = true
	if value == nil || e.discharged[name] {
		return queue
	}
	e.discharged[name] = true
	ast.TraversePre(value, func(node *ast.Node) {
		if !node.Is(ast.Name) {
			return
		}
		if used := node.At(1).Str(); e.f.IsLocal(used) {
			e.uses[used]--
			diagnostic.Assert(e.uses[used] >= 0, e.fun, value, "negative use count for %s", used)
			queue = append(queue, used)
		}
	})
	return queue
}

// isDoubleToI64Bitcast matches the sequence the compiler emits to split a
// double into two words through tempDoublePtr:
//
//	(HEAP32[tempDoublePtr >> 2] = ..., HEAP32[tempDoublePtr + 4 >> 2] = ..., +HEAPF64[tempDoublePtr >> 3])
//
// It only touches scratch memory.
func isDoubleToI64Bitcast(value *ast.Node) bool {
	if !value.Is(ast.Seq) || !value.At(1).Is(ast.Assign) {
		return false
	}
	target := value.At(1).At(2)
	if !target.Is(ast.Sub) {
		return false
	}
	index := target.At(2)
	return index.Is(ast.Binary) && index.At(1).Str() == ">>" && index.At(2).IsName(builtins.TempDoublePtr)
}

// ----------------------------------------------------------------------------
// Cleanup
// ----------------------------------------------------------------------------

// sweepDead blanks the definitions of dead locals the scan did not reach.
// Their values were already discounted during classification.
func (e *functionEliminator) sweepDead() {
	for _, name := range e.locals() {
		if !e.sideEffectFree[name] {
			continue
		}
		if def := e.defNodes[name]; def != nil && e.definitions[name] == 1 {
			e.ctx.Arena.MakeEmpty(def)
		}
		e.varsToRemove[name] = removed
	}
}

func (e *functionEliminator) locals() []string {
	names := make([]string, 0, len(e.f.Params)+len(e.f.Vars))
	names = append(names, e.f.Params...)
	return append(names, e.f.Vars...)
}

func (e *functionEliminator) finish() {
	for _, name := range append([]string(nil), e.f.Vars...) {
		if e.varsToRemove[name] == removed {
			e.f.DeleteVar(name)
		}
	}
	if e.discarded > 0 {
		e.ctx.Diag.AddNote(diagnostic.CodeTrackingDiscarded, e.fun,
			"%d statement scans stopped at unsupported constructs", e.discarded)
	}
	e.f.Denormalize()
}
