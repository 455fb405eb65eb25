package renamer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoDaniel/asmopt/internal/asm"
	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/printer"
)

// ----------------------------------------------------------------------------
// Name Minifier Tests
// ----------------------------------------------------------------------------

func TestNumberToMinifiedName(t *testing.T) {
	m := DefaultNameMinifier()

	cases := []struct {
		n        int
		expected string
	}{
		{0, "a"},
		{1, "b"},
		{25, "z"},
		{26, "A"},
		{51, "Z"},
		{52, "_"},
		{53, "$"},
		// n=54: head[0]='a', n/54=1, n-1=0, tail[0]='a' -> "aa"
		{54, "aa"},
		{55, "ba"},
		// n=119: head[119%54=11]='l', n/54=2, n-1=1, tail[1]='b' -> "lb"
		{119, "lb"},
		// n=162: head[0]='a', n/54=3, n-1=2, tail[2]='c' -> "ac"
		{162, "ac"},
	}

	for _, tc := range cases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, m.NumberToMinifiedName(tc.n))
		})
	}
}

func TestNameMinifierGeneratesValidIdentifiers(t *testing.T) {
	m := DefaultNameMinifier()

	isHead := func(c byte) bool {
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '$'
	}
	for i := 0; i < 5000; i++ {
		name := m.NumberToMinifiedName(i)
		require.NotEmpty(t, name)
		assert.True(t, isHead(name[0]), "name %q (index %d) has an invalid first character", name, i)
		for j := 1; j < len(name); j++ {
			c := name[j]
			assert.True(t, isHead(c) || (c >= '0' && c <= '9'), "name %q (index %d) has an invalid character", name, i)
		}
	}
}

func TestNameMinifierNoDuplicates(t *testing.T) {
	m := DefaultNameMinifier()
	seen := make(map[string]int)

	for i := 0; i < 10000; i++ {
		name := m.NumberToMinifiedName(i)
		prev, ok := seen[name]
		require.False(t, ok, "index %d repeats %q from index %d", i, name, prev)
		seen[name] = i
	}
}

// ----------------------------------------------------------------------------
// Sequence Tests
// ----------------------------------------------------------------------------

func TestSequenceSkipsReserved(t *testing.T) {
	reserved := ComputeReservedNames()
	seq := NewSequence(reserved)

	for i := 0; i < 5000; i++ {
		name := seq.At(i)
		assert.False(t, reserved[name], "sequence yielded reserved name %q", name)
	}
}

func TestSequenceIsStable(t *testing.T) {
	seq := NewSequence(ComputeReservedNames())
	late := seq.At(900)
	assert.Equal(t, "a", seq.At(0))
	assert.Equal(t, late, seq.At(900))
	assert.Equal(t, late, NewSequence(ComputeReservedNames()).At(900))
}

func TestComputeReservedNames(t *testing.T) {
	reserved := ComputeReservedNames()

	for _, word := range []string{
		"do", "if", "in", "for", "new", "try", "var", "let",
		"function", "return", "typeof", "yield", "await",
		"eval", "arguments", "env",
	} {
		assert.True(t, reserved[word], "%q should be reserved", word)
	}
	assert.False(t, reserved["a"])
}

// ----------------------------------------------------------------------------
// MinifyLocals Tests
// ----------------------------------------------------------------------------

func minify(t *testing.T, src string, globals map[string]string) string {
	t.Helper()
	ctx := asm.NewContext(ast.NewArena())
	tree, _, err := ast.Decode(ctx.Arena, []byte(src))
	require.NoError(t, err)
	MinifyLocals(ctx, tree, globals)
	return printer.Print(tree)
}

const simpleFunction = `["toplevel",[["defun","f",["x","y"],[
	["stat",["assign",true,["name","x"],["binary","|",["name","x"],["num",0]]]],
	["stat",["assign",true,["name","y"],["unary-prefix","+",["name","y"]]]],
	["var",[["z",["num",0]]]],
	["stat",["assign",true,["name","z"],["binary","|",["binary","+",["name","x"],["num",1]],["num",0]]]],
	["return",["binary","|",["name","z"],["num",0]]]
]]]]`

func TestMinifyLocals(t *testing.T) {
	assert.Equal(t, `function f(a, b) {
  a = a | 0;
  b = +b;
  var c = 0;
  c = a + 1 | 0;
  return c | 0;
}`, minify(t, simpleFunction, nil))
}

func TestMinifyLocalsIsDeterministic(t *testing.T) {
	assert.Equal(t, minify(t, simpleFunction, nil), minify(t, simpleFunction, nil))
}

func TestMinifyLocalsSkipsNamesOfLocals(t *testing.T) {
	out := minify(t, `["toplevel",[["defun","f",["b","a"],[
		["stat",["assign",true,["name","b"],["binary","|",["name","b"],["num",0]]]],
		["stat",["assign",true,["name","a"],["binary","|",["name","a"],["num",0]]]],
		["return",["binary","|",["binary","+",["name","a"],["name","b"]],["num",0]]]
	]]]]`, nil)

	assert.Equal(t, `function f(c, d) {
  c = c | 0;
  d = d | 0;
  return d + c | 0;
}`, out)
}

func TestMinifyLocalsMapsGlobals(t *testing.T) {
	out := minify(t, `["toplevel",[["defun","_main",["x"],[
		["stat",["assign",true,["name","x"],["binary","|",["name","x"],["num",0]]]],
		["return",["binary","|",["call",["name","_foo"],[["name","x"]]],["num",0]]]
	]]]]`, map[string]string{"_main": "A", "_foo": "a"})

	// x skips "a", which _foo now owns.
	assert.Equal(t, `function A(b) {
  b = b | 0;
  return a(b) | 0;
}`, out)
}

func TestMinifyLocalsKeepsUnmappedGlobals(t *testing.T) {
	out := minify(t, `["toplevel",[["defun","f",["x"],[
		["stat",["assign",true,["name","x"],["binary","|",["name","x"],["num",0]]]],
		["stat",["call",["name","a"],[["name","x"]]]]
	]]]]`, nil)

	assert.Equal(t, `function f(b) {
  b = b | 0;
  a(b);
}`, out)
}

func TestMinifyLocalsRenamesLabels(t *testing.T) {
	out := minify(t, `["toplevel",[["defun","f",["x"],[
		["stat",["assign",true,["name","x"],["binary","|",["name","x"],["num",0]]]],
		["label","outer",["while",["num",1],["block",[
			["if",["name","x"],["block",[["break","outer"]]],null],
			["continue","outer"]
		]]]]
	]]]]`, nil)

	// Labels have their own namespace and counter.
	assert.Equal(t, `function f(a) {
  a = a | 0;
  a: while (1) {
    if (a) {
      break a;
    }
    continue a;
  }
}`, out)
}

func TestMinifyLocalsLocalNamedLabel(t *testing.T) {
	out := minify(t, `["toplevel",[["defun","f",["x"],[
		["stat",["assign",true,["name","x"],["binary","|",["name","x"],["num",0]]]],
		["var",[["label",["num",0]]]],
		["stat",["assign",true,["name","label"],["name","x"]]],
		["return",["binary","|",["name","label"],["num",0]]]
	]]]]`, nil)

	assert.Equal(t, `function f(a) {
  a = a | 0;
  var b = 0;
  b = a;
  return b | 0;
}`, out)
}

// ----------------------------------------------------------------------------
// Benchmark Tests
// ----------------------------------------------------------------------------

func BenchmarkNumberToMinifiedName(b *testing.B) {
	m := DefaultNameMinifier()
	for i := 0; i < b.N; i++ {
		_ = m.NumberToMinifiedName(i % 10000)
	}
}

func BenchmarkComputeReservedNames(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = ComputeReservedNames()
	}
}
