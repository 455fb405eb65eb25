// Package registerize coalesces the locals of each function into a small
// set of typed registers.
//
// A local is bound to a register on its first use and gives it back after
// its last one, so locals with disjoint lifetimes share registers of the
// same type. Locals whose every use is dominated by a single plain
// assignment are "optimizable": their register is held only from that
// assignment to the last use. All others hold their register until the
// outermost enclosing loop ends, since a later iteration may read them
// again.
package registerize

import (
	"strconv"

	"github.com/HugoDaniel/asmopt/internal/asm"
	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/diagnostic"
	"github.com/HugoDaniel/asmopt/internal/types"
)

// Register name prefixes per type.
var registerPrefix = map[types.Type]string{
	types.Int:       "i",
	types.Double:    "d",
	types.Float:     "f",
	types.Float32x4: "F4",
	types.Int32x4:   "I4",
	types.None:      "Z",
}

// Run registerizes every function of tree.
func Run(ctx *asm.Context, tree *ast.Node) {
	ast.TraverseFunctions(tree, func(fun *ast.Node) {
		r := &registerizer{
			ctx:            ctx,
			fun:            fun,
			f:              asm.MustParse(ctx, fun),
			allNames:       make(map[string]bool),
			uses:           make(map[string]int),
			dominations:    make(map[int]map[string]bool),
			levels:         make(map[string]int),
			possibles:      make(map[string]bool),
			unoptimizables: make(map[string]bool),
			level:          1,
		}
		r.prepare()
		r.countUses()
		r.assign()
		r.finish()
	})
}

type registerizer struct {
	ctx *asm.Context
	fun *ast.Node
	f   *asm.Function

	allNames map[string]bool

	// Optimizability scan.
	uses           map[string]int
	level          int
	dominations    map[int]map[string]bool // level => names dominated there
	levels         map[string]int          // name => level of its dominating assignment, 0 if none
	possibles      map[string]bool
	unoptimizables map[string]bool
	optimizables   map[string]bool

	// Register assignment.
	regs          map[string]string // local => register
	regTypes      map[string]types.Type
	free          map[types.Type][]string
	names         []string // registers in creation order
	paramRegs     map[string]bool
	loopRegs      map[int][]string // loop depth => registers released when it ends
	loops         int
	active        map[string]bool // optimizables between their first and last use
	optimizableAt map[string]int  // optimizable => outermost loop it is live across
}

// prepare turns the body into plain assignments. Parameters get a fake
// leading definition so they are assigned registers first, each its own.
func (r *registerizer) prepare() {
	a := r.ctx.Arena
	stats := r.fun.At(3)
	params := r.fun.At(2)
	if params.Len() > 0 {
		defs := a.Array()
		for _, p := range params.Items() {
			defs.Push(a.Array(a.Str(p.Str()), a.Num(0)))
		}
		stats.Insert(0, a.Tagged(ast.Var, defs))
	}

	ast.TraversePre(r.fun, func(node *ast.Node) {
		switch node.Tag() {
		case ast.Var:
			defs := a.Array()
			for _, def := range node.At(1).Items() {
				if def.Len() > 1 {
					defs.Push(def)
				}
			}
			if defs.Len() > 0 {
				node.CopyFrom(asm.UnVarify(a, defs))
			} else {
				a.MakeEmpty(node)
			}
		case ast.Name:
			r.allNames[node.At(1).Str()] = true
		}
	})
	asm.RemoveAllUselessSubNodes(r.fun)
}

// ----------------------------------------------------------------------------
// Optimizability Scan
// ----------------------------------------------------------------------------

func (r *registerizer) countUses() {
	ast.TraversePrePostConditional(r.fun, r.possibilify, func(*ast.Node) {})
	r.optimizables = make(map[string]bool)
	for name := range r.possibles {
		if !r.unoptimizables[name] {
			r.optimizables[name] = true
		}
	}
}

func (r *registerizer) scanNested(node *ast.Node) {
	ast.TraversePrePostConditional(node, r.possibilify, func(*ast.Node) {})
}

// scanLevel scans code that runs conditionally or repeatedly. Dominations
// established inside it do not extend past it.
func (r *registerizer) scanLevel(node *ast.Node) {
	r.level++
	r.scanNested(node)
	for name := range r.dominations[r.level] {
		r.levels[name] = 0
	}
	delete(r.dominations, r.level)
	r.level--
}

func (r *registerizer) possibilify(node *ast.Node) bool {
	switch node.Tag() {
	case ast.Name:
		name := node.At(1).Str()
		if r.f.IsLocal(name) {
			r.uses[name]++
			if r.possibles[name] && r.levels[name] == 0 {
				// Used outside of its dominating assignment's level.
				r.unoptimizables[name] = true
			}
		}

	case ast.Assign:
		if !node.At(1).IsBool() || !node.At(2).Is(ast.Name) {
			return true
		}
		name := node.At(2).At(1).Str()
		// A first assignment before any use may dominate every later use.
		if r.f.IsLocal(name) && r.uses[name] == 0 && r.levels[name] == 0 {
			r.possibles[name] = true
			r.levels[name] = r.level
			if r.dominations[r.level] == nil {
				r.dominations[r.level] = make(map[string]bool)
			}
			r.dominations[r.level][name] = true
		}

	case ast.While, ast.Do:
		r.scanNested(node.At(1))
		r.scanLevel(node.At(2))
		return false

	case ast.For:
		r.scanNested(node.At(1))
		for i := 2; i <= 4; i++ {
			r.scanLevel(node.At(i))
		}
		return false

	case ast.If:
		r.scanNested(node.At(1))
		r.scanLevel(node.At(2))
		if otherwise := node.Maybe(3); otherwise != nil {
			r.scanLevel(otherwise)
		}
		return false

	case ast.Switch:
		r.scanNested(node.At(1))
		for _, c := range node.At(2).Items() {
			r.scanLevel(c.At(1))
		}
		return false
	}
	return true
}

// ----------------------------------------------------------------------------
// Register Assignment
// ----------------------------------------------------------------------------

func isLoop(node *ast.Node) bool {
	switch node.Tag() {
	case ast.Do, ast.While, ast.For:
		return true
	}
	return false
}

// assign walks the body in execution order and renames every local to its
// register.
func (r *registerizer) assign() {
	r.regs = make(map[string]string)
	r.regTypes = make(map[string]types.Type)
	r.free = make(map[types.Type][]string)
	r.paramRegs = make(map[string]bool)
	r.loopRegs = make(map[int][]string)
	r.active = make(map[string]bool)
	r.optimizableAt = make(map[string]int)

	ast.TraversePrePost(r.fun, func(node *ast.Node) {
		switch {
		case node.Is(ast.Name):
			name := node.At(1).Str()
			if r.use(name) {
				node.SetAt(1, r.ctx.Arena.Str(r.regs[name]))
			}
		case isLoop(node):
			r.loops++
			// Live optimizables are bound to the outermost loop they span.
			for name := range r.active {
				if r.optimizableAt[name] == 0 {
					r.optimizableAt[name] = r.loops
				}
			}
		}
	}, func(node *ast.Node) {
		if !isLoop(node) {
			return
		}
		for _, reg := range r.loopRegs[r.loops] {
			t := r.regTypes[reg]
			r.free[t] = append(r.free[t], reg)
		}
		delete(r.loopRegs, r.loops)
		r.loops--
	})
}

func (r *registerizer) newRegister(name string) string {
	t := r.f.Type(name)
	reg := registerPrefix[t] + strconv.Itoa(len(r.names)+1)
	diagnostic.Assert(!r.allNames[reg] || r.f.IsLocal(reg), r.fun, nil,
		"register %s would shadow a global", reg)
	r.regTypes[reg] = t
	r.names = append(r.names, reg)
	return reg
}

// use records one use of name, binding a register on the first and
// releasing it after the last. It reports whether name is a counted local.
func (r *registerizer) use(name string) bool {
	if r.uses[name] == 0 {
		return false
	}
	optimizable := r.optimizables[name]
	if optimizable {
		r.active[name] = true
	}
	t := r.f.Type(name)
	reg, ok := r.regs[name]
	if !ok {
		free := r.free[t]
		if n := len(free); optimizable && n > 0 && !(r.f.IsParam(name) && r.paramRegs[free[n-1]]) {
			// Two parameters never share a register.
			reg = free[n-1]
			r.free[t] = free[:n-1]
		} else {
			reg = r.newRegister(name)
			if r.f.IsParam(name) {
				r.paramRegs[reg] = true
			}
		}
		r.regs[name] = reg
	}

	r.uses[name]--
	if r.uses[name] > 0 {
		return true
	}
	delete(r.active, name)
	_, bound := r.optimizableAt[name]
	if r.loops == 0 || (optimizable && !bound) {
		r.free[t] = append(r.free[t], reg)
		return true
	}
	loop := 1
	if optimizable && r.optimizableAt[name] > 0 {
		loop = r.optimizableAt[name]
	}
	r.loopRegs[loop] = append(r.loopRegs[loop], reg)
	return true
}

// finish replaces the locals with the registers and regenerates the
// prologue.
func (r *registerizer) finish() {
	a := r.ctx.Arena
	params := r.fun.At(2)
	if params.Len() > 0 {
		// The fake parameter definition is still the first statement.
		r.fun.At(3).Splice(0, 1)
		params.Truncate(0)
	}

	f := r.f
	f.Locals = make(map[string]asm.Local)
	f.Params = nil
	f.Vars = nil
	for _, reg := range r.names {
		t := r.regTypes[reg]
		if r.paramRegs[reg] {
			f.AddParam(reg, t)
			params.Push(a.Str(reg))
		} else {
			f.AddVar(reg, t)
		}
	}
	f.Denormalize()
}
