// Package asm extracts and regenerates the typed signature of asm.js
// functions.
//
// An asm.js function declares its types through a canonical prologue:
//
//	function f(a, b) {
//	  a = a | 0;        // one coercion per parameter, in order
//	  b = +b;
//	  var i = 0, d = +0; // one var statement with typed zero initializers
//	  ...
//	}
//
// Parse reads the prologue into a Function and leaves the body in a
// "working" shape (coercions blanked, var initializers stripped) that
// passes can rewrite freely. Denormalize writes the prologue back from the
// Function's current locals.
package asm

import (
	"slices"

	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/diagnostic"
	"github.com/HugoDaniel/asmopt/internal/types"
)

// Context carries the state shared by all passes of one run.
type Context struct {
	Arena *ast.Arena

	// FloatZero is the global constant that holds Math_fround(0), frozen
	// the first time a var initializer names it.
	FloatZero types.FloatZero

	// PreciseF32 enables float32 semantics for Math_fround rewrites.
	PreciseF32 bool

	// Diag collects non-fatal notes. May be nil.
	Diag *diagnostic.List
}

// NewContext creates a run context allocating from a.
func NewContext(a *ast.Arena) *Context {
	return &Context{Arena: a, Diag: diagnostic.NewList()}
}

// Local is the declared type and role of a local name.
type Local struct {
	Type  types.Type
	Param bool
}

// Function is the signature of one asm.js function.
type Function struct {
	ctx  *Context
	Node *ast.Node

	Locals map[string]Local
	Params []string // in declaration order
	Vars   []string // in declaration order
	Ret    types.Type
}

// Parse extracts the signature of a defun and converts its body to the
// working shape. It returns a PrologueError if the prologue is not
// canonical.
func Parse(ctx *Context, fun *ast.Node) (*Function, error) {
	f := &Function{
		ctx:    ctx,
		Node:   fun,
		Locals: make(map[string]Local),
	}

	stats := fun.At(3)
	declared := fun.At(2)
	i := 0

	// Parameter coercions.
	for ; i < stats.Len(); i++ {
		node := stats.At(i)
		if !node.Is(ast.Stat) || !node.At(1).Is(ast.Assign) || !node.At(1).At(2).Is(ast.Name) {
			break
		}
		assign := node.At(1)
		name := assign.At(2).At(1).Str()
		if !isParamName(declared, name) || f.IsLocal(name) {
			break
		}
		t := types.Detect(assign.At(3), nil)
		if t == types.None {
			return nil, diagnostic.NewPrologueError(diagnostic.CodeMalformedPrologue, fun, node,
				"parameter "+name+" has no type coercion")
		}
		f.AddParam(name, t)
		ctx.Arena.MakeEmpty(node)
	}
	if len(f.Params) < declared.Len() {
		var missing string
		for _, p := range declared.Items() {
			if !f.IsLocal(p.Str()) {
				missing = p.Str()
				break
			}
		}
		reason := "parameter " + missing + " is not coerced"
		if stats.At(i).Is(ast.Var) {
			reason = "var declaration before parameter " + missing + " is coerced"
		}
		return nil, diagnostic.NewPrologueError(diagnostic.CodeMalformedPrologue, fun, stats.At(i), reason)
	}

	// Variable declarations.
	for ; i < stats.Len(); i++ {
		node := stats.At(i)
		if !node.Is(ast.Var) {
			break
		}
		for _, def := range node.At(1).Items() {
			name := def.At(0).Str()
			if f.IsLocal(name) {
				return nil, diagnostic.NewPrologueError(diagnostic.CodeMalformedPrologue, fun, node,
					"duplicate declaration of "+name)
			}
			value := def.Maybe(1)
			if value == nil {
				return nil, diagnostic.NewPrologueError(diagnostic.CodeMalformedPrologue, fun, node,
					"var "+name+" has no initializer")
			}
			t, err := types.DetectInit(value, &ctx.FloatZero)
			if err != nil {
				perr := diagnostic.NewPrologueError(diagnostic.CodeFloatZeroConflict, fun, node,
					"var "+name+" uses a second float zero constant")
				perr.Err = err
				return nil, perr
			}
			if t == types.None {
				return nil, diagnostic.NewPrologueError(diagnostic.CodeMalformedPrologue, fun, node,
					"cannot determine the type of var "+name)
			}
			f.AddVar(name, t)
			def.Truncate(1)
		}
	}

	// No declarations may remain in the body.
	for ; i < stats.Len(); i++ {
		var stray *ast.Node
		ast.TraversePre(stats.At(i), func(node *ast.Node) {
			if stray == nil && node.Is(ast.Var) {
				stray = node
			}
		})
		if stray != nil {
			return nil, diagnostic.NewPrologueError(diagnostic.CodeStrayVar, fun, stray,
				"var declaration after the function prologue")
		}
	}

	f.Ret = types.None
	if last := stats.Last(); last.Is(ast.Return) {
		if value := last.Maybe(1); value != nil {
			f.Ret = types.Detect(value, nil)
		}
	}
	return f, nil
}

// MustParse is Parse for use inside passes: a malformed prologue aborts the
// pass through diagnostic.Fail.
func MustParse(ctx *Context, fun *ast.Node) *Function {
	f, err := Parse(ctx, fun)
	if err != nil {
		diagnostic.Fail(err)
	}
	return f
}

func isParamName(declared *ast.Node, name string) bool {
	for _, p := range declared.Items() {
		if p.Str() == name {
			return true
		}
	}
	return false
}

// ----------------------------------------------------------------------------
// Lookup
// ----------------------------------------------------------------------------

// Type returns the declared type of a local, or None for other names.
func (f *Function) Type(name string) types.Type {
	if l, ok := f.Locals[name]; ok {
		return l.Type
	}
	return types.None
}

// LocalType implements types.Scope.
func (f *Function) LocalType(name string) types.Type {
	return f.Type(name)
}

func (f *Function) IsLocal(name string) bool {
	_, ok := f.Locals[name]
	return ok
}

func (f *Function) IsParam(name string) bool {
	l, ok := f.Locals[name]
	return ok && l.Param
}

func (f *Function) IsVar(name string) bool {
	l, ok := f.Locals[name]
	return ok && !l.Param
}

// Name returns the function's name.
func (f *Function) Name() string {
	return f.Node.At(1).Str()
}

// ----------------------------------------------------------------------------
// Mutation
// ----------------------------------------------------------------------------

// SetType changes the type of an existing local.
func (f *Function) SetType(name string, t types.Type) {
	l := f.Locals[name]
	l.Type = t
	f.Locals[name] = l
}

func (f *Function) AddParam(name string, t types.Type) {
	f.Locals[name] = Local{Type: t, Param: true}
	f.Params = append(f.Params, name)
}

func (f *Function) AddVar(name string, t types.Type) {
	f.Locals[name] = Local{Type: t}
	f.Vars = append(f.Vars, name)
}

// DeleteVar removes a var from both the type map and the ordered list.
func (f *Function) DeleteVar(name string) {
	delete(f.Locals, name)
	if i := slices.Index(f.Vars, name); i >= 0 {
		f.Vars = slices.Delete(f.Vars, i, i+1)
	}
}

// ----------------------------------------------------------------------------
// Denormalize
// ----------------------------------------------------------------------------

// Denormalize regenerates the canonical prologue from the current locals:
// one coercion per declared parameter, one var statement for all vars, and
// a final return when the function returns a value. Calling it again
// without intervening edits leaves the function unchanged.
func (f *Function) Denormalize() {
	a := f.ctx.Arena
	fun := f.Node
	stats := fun.At(3)

	// Blank any prologue already present. Each parameter's coercion is
	// recognized at most once so body statements are left alone.
	coerced := make(map[string]bool)
scan:
	for _, node := range stats.Items() {
		switch {
		case node.Is(ast.Var), f.isPrologueCoercion(node, coerced):
			a.MakeEmpty(node)
		case !node.IsEmpty():
			break scan
		}
	}

	varDefs := a.Array()
	for _, v := range f.Vars {
		t := f.Type(v)
		diagnostic.Assert(t != types.None, fun, nil, "var %s has no type", v)
		varDefs.Push(a.Array(a.Str(v), types.VarDefault(a, t, &f.ctx.FloatZero)))
	}

	// Reuse leading empty statements as slots for the prologue.
	emptyNodes := 0
	for emptyNodes < stats.Len() && stats.At(emptyNodes).IsEmpty() {
		emptyNodes++
	}
	needed := fun.At(2).Len()
	if varDefs.Len() > 0 {
		needed++
	}
	if needed > emptyNodes {
		slots := make([]*ast.Node, needed-emptyNodes)
		for i := range slots {
			slots[i] = a.Empty()
		}
		stats.Insert(0, slots...)
	} else if needed < emptyNodes {
		stats.Splice(0, emptyNodes-needed)
	}

	next := 0
	for _, param := range fun.At(2).Items() {
		name := param.Str()
		diagnostic.Assert(f.IsLocal(name), fun, nil, "parameter %s has no type", name)
		stats.SetAt(next, a.Stat(a.Assign(a.Name(name), types.Coerce(a, a.Name(name), f.Type(name)))))
		next++
	}
	if varDefs.Len() > 0 {
		stats.SetAt(next, a.Tagged(ast.Var, varDefs))
	}

	if f.Ret != types.None && !stats.Last().Is(ast.Return) {
		value := a.Num(0)
		if f.Ret != types.Int {
			value = types.Coerce(a, value, f.Ret)
		}
		stats.Push(a.Return(value))
	}
}

// isPrologueCoercion reports whether node is "p = coerce(p)" for a
// parameter p not yet seen.
func (f *Function) isPrologueCoercion(node *ast.Node, seen map[string]bool) bool {
	if !node.Is(ast.Stat) || !node.At(1).Is(ast.Assign) {
		return false
	}
	assign := node.At(1)
	target := assign.At(2)
	if !target.Is(ast.Name) || assign.At(1).IsString() {
		return false
	}
	name := target.At(1).Str()
	if !f.IsParam(name) || seen[name] {
		return false
	}
	expected := types.Coerce(f.ctx.Arena, f.ctx.Arena.Name(name), f.Type(name))
	if !ast.DeepEqual(assign.At(3), expected) {
		return false
	}
	seen[name] = true
	return true
}
