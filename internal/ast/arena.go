package ast

// slabSize is the number of nodes allocated at once.
const slabSize = 1024

// Arena owns every node created during one optimizer run. Nodes are carved
// out of fixed-size slabs so a handle never moves once handed out.
type Arena struct {
	slab  []Node
	count int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Count returns the number of nodes allocated so far.
func (a *Arena) Count() int {
	return a.count
}

func (a *Arena) alloc() *Node {
	if len(a.slab) == 0 {
		a.slab = make([]Node, slabSize)
	}
	n := &a.slab[0]
	a.slab = a.slab[1:]
	a.count++
	return n
}

// ----------------------------------------------------------------------------
// Values
// ----------------------------------------------------------------------------

// Null allocates a Null node.
func (a *Arena) Null() *Node {
	return a.alloc()
}

// Str allocates a String node.
func (a *Arena) Str(s string) *Node {
	n := a.alloc()
	n.kind = KindString
	n.str = s
	return n
}

// Number allocates a Number node.
func (a *Arena) Number(f float64) *Node {
	n := a.alloc()
	n.kind = KindNumber
	n.num = f
	return n
}

// Bool allocates a Bool node.
func (a *Arena) Bool(b bool) *Node {
	n := a.alloc()
	n.kind = KindBool
	n.b = b
	return n
}

// Array allocates an Array node with the given children.
func (a *Arena) Array(children ...*Node) *Node {
	n := a.alloc()
	n.kind = KindArray
	n.arr = children
	return n
}

// Tagged allocates [tag, children...].
func (a *Arena) Tagged(tag string, children ...*Node) *Node {
	arr := make([]*Node, 0, len(children)+1)
	arr = append(arr, a.Str(tag))
	arr = append(arr, children...)
	return a.Array(arr...)
}

// Clone deep-copies a subtree into fresh nodes.
func (a *Arena) Clone(src *Node) *Node {
	if src == nil {
		return nil
	}
	n := a.alloc()
	*n = *src
	if src.kind == KindArray {
		n.arr = make([]*Node, len(src.arr))
		for i, c := range src.arr {
			n.arr[i] = a.Clone(c)
		}
	}
	return n
}

// ----------------------------------------------------------------------------
// Tree Builders
// ----------------------------------------------------------------------------

// Empty allocates the empty statement ["toplevel", []].
func (a *Arena) Empty() *Node {
	return a.Tagged(Toplevel, a.Array())
}

// MakeEmpty overwrites n with the empty statement.
func (a *Arena) MakeEmpty(n *Node) {
	n.CopyFrom(a.Empty())
}

func (a *Arena) Name(name string) *Node {
	return a.Tagged(Name, a.Str(name))
}

func (a *Arena) Num(f float64) *Node {
	return a.Tagged(Num, a.Number(f))
}

func (a *Arena) StringLit(s string) *Node {
	return a.Tagged(String, a.Str(s))
}

func (a *Arena) Binary(left *Node, op string, right *Node) *Node {
	return a.Tagged(Binary, a.Str(op), left, right)
}

func (a *Arena) Unary(op string, expr *Node) *Node {
	return a.Tagged(UnaryPrefix, a.Str(op), expr)
}

// Assign builds a plain assignment ["assign", true, target, value].
func (a *Arena) Assign(target, value *Node) *Node {
	return a.Tagged(Assign, a.Bool(true), target, value)
}

func (a *Arena) Stat(expr *Node) *Node {
	return a.Tagged(Stat, expr)
}

// Return builds ["return", value]; a nil value yields a bare return.
func (a *Arena) Return(value *Node) *Node {
	if value == nil {
		value = a.Null()
	}
	return a.Tagged(Return, value)
}

func (a *Arena) Call(target *Node, args ...*Node) *Node {
	return a.Tagged(Call, target, a.Array(args...))
}

func (a *Arena) Sub(target, index *Node) *Node {
	return a.Tagged(Sub, target, index)
}

func (a *Arena) Seq(left, right *Node) *Node {
	return a.Tagged(Seq, left, right)
}

func (a *Arena) Conditional(cond, then, otherwise *Node) *Node {
	return a.Tagged(Conditional, cond, then, otherwise)
}

// If builds ["if", cond, then, else]; a nil else becomes null.
func (a *Arena) If(cond, then, otherwise *Node) *Node {
	if otherwise == nil {
		otherwise = a.Null()
	}
	return a.Tagged(If, cond, then, otherwise)
}

func (a *Arena) Block(stats ...*Node) *Node {
	return a.Tagged(Block, a.Array(stats...))
}

// Var builds a declaration with a single definition.
func (a *Arena) Var(name string, value *Node) *Node {
	return a.Tagged(Var, a.Array(a.Array(a.Str(name), value)))
}

// Defun builds ["defun", name, [params...], [stats...]].
func (a *Arena) Defun(name string, params []string, stats ...*Node) *Node {
	ps := a.Array()
	for _, p := range params {
		ps.Push(a.Str(p))
	}
	return a.Tagged(Defun, a.Str(name), ps, a.Array(stats...))
}
