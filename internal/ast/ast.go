// Package ast defines the tree representation for asm.js programs.
//
// The tree is a direct image of the JSON interchange format:
// - Every statement, expression and function is an Array whose first
//   element is a String tag ("defun", "binary", "name", ...)
// - Leaves are String, Number, Bool or Null values
// - All nodes of a run are owned by an Arena and are never freed
//
// Passes rewrite the tree in place. Replacing a node with another subtree
// is done by overwriting the node's contents (CopyFrom), so handles held by
// parents and by in-flight traversals stay valid.
package ast

import "strconv"

// ----------------------------------------------------------------------------
// Node Kinds
// ----------------------------------------------------------------------------

// Kind identifies the shape of a Node.
type Kind uint8

const (
	KindNull Kind = iota
	KindArray
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// ----------------------------------------------------------------------------
// Tags
// ----------------------------------------------------------------------------

// Node tags used by the asm.js tree format.
const (
	Toplevel    = "toplevel"
	Defun       = "defun"
	Block       = "block"
	Stat        = "stat"
	Assign      = "assign"
	Name        = "name"
	Num         = "num"
	String      = "string"
	Var         = "var"
	Conditional = "conditional"
	Binary      = "binary"
	Return      = "return"
	If          = "if"
	While       = "while"
	Do          = "do"
	For         = "for"
	Seq         = "seq"
	Sub         = "sub"
	Call        = "call"
	Label       = "label"
	Break       = "break"
	Continue    = "continue"
	Switch      = "switch"
	UnaryPrefix = "unary-prefix"
	Dot         = "dot"
	New         = "new"
	Object      = "object"
	Function    = "function"
	ArrayLit    = "array"
	Throw       = "throw"
)

// ----------------------------------------------------------------------------
// Node
// ----------------------------------------------------------------------------

// Node is a tagged value in the tree. Read accessors are nil-safe so that
// optional children (a missing else branch, a bare return) can be probed
// without explicit checks.
type Node struct {
	kind Kind
	b    bool
	num  float64
	str  string
	arr  []*Node
}

// Kind returns the node's kind. A nil node reports KindNull.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

func (n *Node) IsNull() bool   { return n == nil || n.kind == KindNull }
func (n *Node) IsArray() bool  { return n != nil && n.kind == KindArray }
func (n *Node) IsString() bool { return n != nil && n.kind == KindString }
func (n *Node) IsNumber() bool { return n != nil && n.kind == KindNumber }
func (n *Node) IsBool() bool   { return n != nil && n.kind == KindBool }

// Str returns the text of a String node, or "" for any other node.
func (n *Node) Str() string {
	if n == nil || n.kind != KindString {
		return ""
	}
	return n.str
}

// Num returns the value of a Number node, or 0 for any other node.
func (n *Node) Num() float64 {
	if n == nil || n.kind != KindNumber {
		return 0
	}
	return n.num
}

// Bool returns the value of a Bool node, or false for any other node.
func (n *Node) Bool() bool {
	return n != nil && n.kind == KindBool && n.b
}

// Truthy reports whether the node is present and not null or false.
func (n *Node) Truthy() bool {
	if n == nil {
		return false
	}
	switch n.kind {
	case KindNull:
		return false
	case KindBool:
		return n.b
	}
	return true
}

// Len returns the number of children of an Array node.
func (n *Node) Len() int {
	if n == nil || n.kind != KindArray {
		return 0
	}
	return len(n.arr)
}

// At returns the i-th child, or nil when out of range.
func (n *Node) At(i int) *Node {
	if n == nil || n.kind != KindArray || i < 0 || i >= len(n.arr) {
		return nil
	}
	return n.arr[i]
}

// Maybe returns the i-th child, or nil when it is missing or null.
func (n *Node) Maybe(i int) *Node {
	c := n.At(i)
	if c.IsNull() {
		return nil
	}
	return c
}

// Last returns the final child, or nil for an empty or non-array node.
func (n *Node) Last() *Node {
	return n.At(n.Len() - 1)
}

// Items exposes the children of an Array node. Callers must not retain the
// slice across structural edits.
func (n *Node) Items() []*Node {
	if n == nil || n.kind != KindArray {
		return nil
	}
	return n.arr
}

// Tag returns the leading string of a tagged Array, or "" otherwise.
func (n *Node) Tag() string {
	if n == nil || n.kind != KindArray || len(n.arr) == 0 {
		return ""
	}
	return n.arr[0].Str()
}

// Is reports whether the node is a tagged Array with the given tag.
func (n *Node) Is(tag string) bool {
	return n.Tag() == tag
}

// IsName reports whether the node is ["name", name].
func (n *Node) IsName(name string) bool {
	return n.Is(Name) && n.At(1).Str() == name
}

// IsNum reports whether the node is ["num", value].
func (n *Node) IsNum(value float64) bool {
	return n.Is(Num) && n.At(1).Num() == value
}

// Visitable reports whether traversals descend into the node.
func (n *Node) Visitable() bool {
	return n.Len() > 0
}

// ----------------------------------------------------------------------------
// Mutation
// ----------------------------------------------------------------------------

// SetStr turns the node into a String node.
func (n *Node) SetStr(s string) {
	*n = Node{kind: KindString, str: s}
}

// SetNum turns the node into a Number node.
func (n *Node) SetNum(f float64) {
	*n = Node{kind: KindNumber, num: f}
}

// SetArray turns the node into an Array node holding the given children.
func (n *Node) SetArray(children ...*Node) {
	*n = Node{kind: KindArray, arr: children}
}

// SetAt replaces the i-th child.
func (n *Node) SetAt(i int, child *Node) {
	n.arr[i] = child
}

// Push appends children to an Array node.
func (n *Node) Push(children ...*Node) {
	n.arr = append(n.arr, children...)
}

// Insert places children before index i.
func (n *Node) Insert(i int, children ...*Node) {
	n.arr = append(n.arr[:i], append(append([]*Node(nil), children...), n.arr[i:]...)...)
}

// Splice removes count children starting at index i.
func (n *Node) Splice(i, count int) {
	if i+count > len(n.arr) {
		count = len(n.arr) - i
	}
	copy(n.arr[i:], n.arr[i+count:])
	for j := len(n.arr) - count; j < len(n.arr); j++ {
		n.arr[j] = nil
	}
	n.arr = n.arr[:len(n.arr)-count]
}

// Truncate drops all children from index size onwards.
func (n *Node) Truncate(size int) {
	if size < len(n.arr) {
		n.arr = n.arr[:size]
	}
}

// CopyFrom overwrites the node with the contents of src. The child list is
// copied shallowly, so src may be a descendant of n.
func (n *Node) CopyFrom(src *Node) {
	if src == nil {
		*n = Node{}
		return
	}
	cp := *src
	if src.kind == KindArray {
		cp.arr = append([]*Node(nil), src.arr...)
	}
	*n = cp
}

// IsEmpty reports whether the node is the empty statement ["toplevel", []].
func (n *Node) IsEmpty() bool {
	return n.Len() == 2 && n.Is(Toplevel) && n.At(1).Len() == 0
}

// ----------------------------------------------------------------------------
// Comparison
// ----------------------------------------------------------------------------

// DeepEqual compares two trees structurally.
func DeepEqual(a, b *Node) bool {
	if a == b {
		return true
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	}
	if len(a.arr) != len(b.arr) {
		return false
	}
	for i := range a.arr {
		if !DeepEqual(a.arr[i], b.arr[i]) {
			return false
		}
	}
	return true
}

// String renders the node as compact JSON, for debugging.
func (n *Node) String() string {
	var buf []byte
	buf = appendJSON(buf, n)
	return string(buf)
}

func formatNumber(f float64) string {
	if f > -1e21 && f < 1e21 && f == float64(int64(f)) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
