package ast

// ----------------------------------------------------------------------------
// Traversals
// ----------------------------------------------------------------------------
//
// All traversals walk children left to right with an explicit stack and read
// each child only when they reach it, so a visitor may overwrite the current
// node or any not-yet-visited descendant and the walk observes the change.
// Only visitable nodes (non-empty arrays) are handed to visitors.

type frame struct {
	node  *Node
	index int
}

// TraversePre calls visit on node and then on each visitable descendant, in
// pre-order.
func TraversePre(node *Node, visit func(*Node)) {
	if !node.Visitable() {
		return
	}
	visit(node)
	stack := make([]frame, 1, 40)
	stack[0] = frame{node: node}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.index < top.node.Len() {
			sub := top.node.arr[top.index]
			top.index++
			if sub.Visitable() {
				visit(sub)
				stack = append(stack, frame{node: sub})
			}
		} else {
			stack = stack[:len(stack)-1]
		}
	}
}

// TraversePrePost calls pre before a node's children and post after them.
func TraversePrePost(node *Node, pre, post func(*Node)) {
	TraversePrePostConditional(node, func(n *Node) bool {
		pre(n)
		return true
	}, post)
}

// TraversePrePostConditional is TraversePrePost where pre decides whether to
// descend. When pre returns false neither the children nor post are visited.
func TraversePrePostConditional(node *Node, pre func(*Node) bool, post func(*Node)) {
	if !node.Visitable() {
		return
	}
	if !pre(node) {
		return
	}
	stack := make([]frame, 1, 40)
	stack[0] = frame{node: node}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.index < top.node.Len() {
			sub := top.node.arr[top.index]
			top.index++
			if sub.Visitable() && pre(sub) {
				stack = append(stack, frame{node: sub})
			}
		} else {
			post(top.node)
			stack = stack[:len(stack)-1]
		}
	}
}

// TraverseFunctions calls visit for every top-level defun of a toplevel node,
// or for the node itself when it is a defun. It does not recurse.
func TraverseFunctions(node *Node, visit func(fun *Node)) {
	switch node.Tag() {
	case Toplevel:
		stats := node.At(1)
		for i := 0; i < stats.Len(); i++ {
			if curr := stats.At(i); curr.Is(Defun) {
				visit(curr)
			}
		}
	case Defun:
		visit(node)
	}
}

// ----------------------------------------------------------------------------
// Statement Helpers
// ----------------------------------------------------------------------------

// DeStat unwraps ["stat", expr] into expr.
func DeStat(node *Node) *Node {
	if node.Is(Stat) {
		return node.At(1)
	}
	return node
}

// Statements returns the statement list of a defun, block or toplevel, or
// nil for any other node.
func Statements(node *Node) *Node {
	switch node.Tag() {
	case Defun:
		return node.At(3)
	case Block, Toplevel:
		return node.Maybe(1)
	}
	return nil
}

// ClearEmptyNodes removes empty statements (bare or wrapped in a stat) from
// a statement list.
func ClearEmptyNodes(list *Node) {
	clearNodes(list, func(curr *Node) bool {
		return DeStat(curr).IsEmpty()
	})
}

func clearNodes(list *Node, drop func(*Node) bool) {
	if !list.IsArray() {
		return
	}
	kept := list.arr[:0]
	for _, curr := range list.arr {
		if !drop(curr) {
			kept = append(kept, curr)
		}
	}
	for i := len(kept); i < len(list.arr); i++ {
		list.arr[i] = nil
	}
	list.arr = kept
}

// ClearNodesWhere removes statements matching drop from a statement list.
func ClearNodesWhere(list *Node, drop func(*Node) bool) {
	clearNodes(list, drop)
}

// RemoveAllEmptySubNodes vacuums empty statements from every statement list
// in the tree and collapses sequences whose left side is empty.
func RemoveAllEmptySubNodes(node *Node) {
	RemoveSubNodesWhere(node, func(curr *Node) bool {
		return DeStat(curr).IsEmpty()
	})
}

// RemoveSubNodesWhere applies ClearNodesWhere to every statement list in the
// tree and collapses sequences whose left side is empty.
func RemoveSubNodesWhere(node *Node, drop func(*Node) bool) {
	TraversePre(node, func(n *Node) {
		switch n.Tag() {
		case Defun:
			clearNodes(n.At(3), drop)
		case Block:
			if list := n.Maybe(1); list != nil {
				clearNodes(list, drop)
			}
		case Seq:
			if n.At(1).IsEmpty() {
				n.CopyFrom(n.At(2))
			}
		}
	})
}
