// Package renamer provides short-name assignment for minification.
//
// The renamer:
// - Draws names from a fixed odometer sequence: a, b, ..., $, aa, ba, ...
// - Skips JavaScript reserved words and names taken by globals
// - Maps globals through a caller-supplied table
// - Numbers locals and labels independently, in order of first appearance
package renamer

import (
	"github.com/HugoDaniel/asmopt/internal/asm"
	"github.com/HugoDaniel/asmopt/internal/ast"
)

// ----------------------------------------------------------------------------
// Name Generation
// ----------------------------------------------------------------------------

// NameMinifier generates minified identifier names.
type NameMinifier struct {
	// Characters allowed as first character of identifier
	head string
	// Characters allowed in rest of identifier
	tail string
}

// DefaultNameMinifier creates a minifier for JavaScript identifiers.
func DefaultNameMinifier() *NameMinifier {
	return &NameMinifier{
		head: "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_$",
		tail: "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_$0123456789",
	}
}

// NumberToMinifiedName converts a number to a minified identifier.
// The first character varies fastest: a, b, ..., $, aa, ba, ..., $a, ab, ...
func (m *NameMinifier) NumberToMinifiedName(n int) string {
	nHead := len(m.head)
	nTail := len(m.tail)

	result := make([]byte, 0, 4)
	result = append(result, m.head[n%nHead])
	n = n / nHead

	for n > 0 {
		n--
		result = append(result, m.tail[n%nTail])
		n = n / nTail
	}

	return string(result)
}

// Sequence is the minified name list with reserved words removed. Names are
// generated on demand and cached, so index i always yields the same name.
type Sequence struct {
	minifier *NameMinifier
	reserved map[string]bool
	names    []string
	next     int // next minifier number to try
}

// NewSequence creates a sequence that never yields a name in reserved.
func NewSequence(reserved map[string]bool) *Sequence {
	return &Sequence{minifier: DefaultNameMinifier(), reserved: reserved}
}

// At returns the i-th name of the sequence.
func (s *Sequence) At(i int) string {
	for len(s.names) <= i {
		name := s.minifier.NumberToMinifiedName(s.next)
		s.next++
		if !s.reserved[name] {
			s.names = append(s.names, name)
		}
	}
	return s.names[i]
}

// ----------------------------------------------------------------------------
// Reserved Names
// ----------------------------------------------------------------------------

// ComputeReservedNames builds a set of names that cannot be used.
func ComputeReservedNames() map[string]bool {
	reserved := make(map[string]bool)

	// Keywords and future reserved words, including strict mode ones
	keywords := []string{
		"break", "case", "catch", "class", "const", "continue", "debugger",
		"default", "delete", "do", "else", "enum", "export", "extends",
		"false", "finally", "for", "function", "if", "implements", "import",
		"in", "instanceof", "interface", "let", "new", "null", "package",
		"private", "protected", "public", "return", "static", "super",
		"switch", "this", "throw", "true", "try", "typeof", "var", "void",
		"while", "with", "yield", "await",
	}
	for _, kw := range keywords {
		reserved[kw] = true
	}

	// Names that cannot be bound in strict code or that asm.js modules
	// receive as parameters
	for _, name := range []string{"eval", "arguments", "undefined", "NaN", "Infinity", "env"} {
		reserved[name] = true
	}

	return reserved
}

// ----------------------------------------------------------------------------
// Local Minification
// ----------------------------------------------------------------------------

// MinifyLocals renames the locals and labels of every function in tree to
// short names. Function names and globals found in globals are renamed to
// their mapped names; other globals are left alone.
func MinifyLocals(ctx *asm.Context, tree *ast.Node, globals map[string]string) {
	seq := NewSequence(ComputeReservedNames())
	ast.TraverseFunctions(tree, func(fun *ast.Node) {
		f := asm.MustParse(ctx, fun)
		f.Denormalize()
		m := &localMinifier{
			a:        ctx.Arena,
			f:        f,
			seq:      seq,
			newNames: make(map[string]string),
			used:     make(map[string]bool),
			labels:   make(map[string]string),
		}
		m.run(fun, globals)
	})
}

type localMinifier struct {
	a   *ast.Arena
	f   *asm.Function
	seq *Sequence

	newNames  map[string]string
	used      map[string]bool // names taken by globals
	nextName  int
	labels    map[string]string
	nextLabel int
}

// nextLocal returns the next name not taken by a mapped global or by an
// unrenamed local.
func (m *localMinifier) nextLocal() string {
	for {
		name := m.seq.At(m.nextName)
		m.nextName++
		if !m.used[name] && !m.f.IsLocal(name) {
			return name
		}
	}
}

func (m *localMinifier) label(name string) string {
	if short, ok := m.labels[name]; ok {
		return short
	}
	short := m.seq.At(m.nextLabel)
	m.nextLabel++
	m.labels[name] = short
	return short
}

func (m *localMinifier) run(fun *ast.Node, globals map[string]string) {
	// Reserve the globals' short names before any local is numbered.
	ast.TraversePre(fun, func(node *ast.Node) {
		if !node.Is(ast.Name) {
			return
		}
		name := node.At(1).Str()
		if m.f.IsLocal(name) {
			return
		}
		if short, ok := globals[name]; ok {
			m.newNames[name] = short
			m.used[short] = true
		} else {
			// Unmapped globals keep their names.
			m.used[name] = true
		}
	})

	if short, ok := globals[fun.At(1).Str()]; ok {
		fun.SetAt(1, m.a.Str(short))
	}
	params := fun.At(2)
	for i, p := range params.Items() {
		short := m.nextLocal()
		m.newNames[p.Str()] = short
		params.SetAt(i, m.a.Str(short))
	}

	ast.TraversePrePostConditional(fun.At(3), m.rename, func(*ast.Node) {})
}

// rename renames node in place. Var definitions are handled here and not
// descended into, since a definition like ["label", init] looks like a
// tagged node.
func (m *localMinifier) rename(node *ast.Node) bool {
	switch node.Tag() {
	case ast.Name:
		name := node.At(1).Str()
		short, ok := m.newNames[name]
		if !ok {
			if !m.f.IsLocal(name) {
				return true
			}
			short = m.nextLocal()
			m.newNames[name] = short
		}
		node.SetAt(1, m.a.Str(short))

	case ast.Var:
		for _, def := range node.At(1).Items() {
			name := def.At(0).Str()
			short, ok := m.newNames[name]
			if !ok {
				short = m.nextLocal()
				m.newNames[name] = short
			}
			def.SetAt(0, m.a.Str(short))
			if init := def.Maybe(1); init != nil {
				ast.TraversePrePostConditional(init, m.rename, func(*ast.Node) {})
			}
		}
		return false

	case ast.Label:
		node.SetAt(1, m.a.Str(m.label(node.At(1).Str())))

	case ast.Break, ast.Continue:
		if target := node.Maybe(1); target != nil {
			if short, ok := m.labels[target.Str()]; ok {
				node.SetAt(1, m.a.Str(short))
			}
		}
	}
	return true
}
