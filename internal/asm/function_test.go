package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/diagnostic"
	"github.com/HugoDaniel/asmopt/internal/printer"
	"github.com/HugoDaniel/asmopt/internal/types"
)

func decode(t *testing.T, ctx *Context, src string) *ast.Node {
	t.Helper()
	n, _, err := ast.Decode(ctx.Arena, []byte(src))
	require.NoError(t, err)
	return n
}

const sampleFunction = `["defun","f",["a","b"],[
	["stat",["assign",true,["name","a"],["binary","|",["name","a"],["num",0]]]],
	["stat",["assign",true,["name","b"],["unary-prefix","+",["name","b"]]]],
	["var",[["i",["num",0]],["d",["unary-prefix","+",["num",0]]],["f",["call",["name","Math_fround"],[["num",0]]]]]],
	["stat",["assign",true,["name","i"],["binary","+",["name","a"],["num",1]]]],
	["return",["binary","|",["name","i"],["num",0]]]
]]`

func TestParseSignature(t *testing.T) {
	ctx := NewContext(ast.NewArena())
	fun := decode(t, ctx, sampleFunction)

	f, err := Parse(ctx, fun)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, f.Params)
	assert.Equal(t, []string{"i", "d", "f"}, f.Vars)
	assert.Equal(t, types.Int, f.Type("a"))
	assert.Equal(t, types.Double, f.Type("b"))
	assert.Equal(t, types.Float, f.Type("f"))
	assert.Equal(t, types.None, f.Type("HEAP32"))
	assert.True(t, f.IsParam("a"))
	assert.True(t, f.IsVar("d"))
	assert.False(t, f.IsVar("a"))
	assert.Equal(t, types.Int, f.Ret)

	// Working shape: coercions blanked, initializers stripped.
	stats := fun.At(3)
	assert.True(t, stats.At(0).IsEmpty())
	assert.True(t, stats.At(1).IsEmpty())
	assert.Equal(t, `["var",[["i"],["d"],["f"]]]`, stats.At(2).String())
}

func TestDenormalizeRegeneratesPrologue(t *testing.T) {
	ctx := NewContext(ast.NewArena())
	fun := decode(t, ctx, sampleFunction)
	f, err := Parse(ctx, fun)
	require.NoError(t, err)

	f.DeleteVar("d")
	f.AddVar("x", types.Int)
	f.Denormalize()

	assert.Equal(t, `function f(a, b) {
  a = a | 0;
  b = +b;
  var i = 0, f = Math_fround(0), x = 0;
  i = a + 1;
  return i | 0;
}`, printer.Print(fun))
}

func TestDenormalizeIsIdempotent(t *testing.T) {
	ctx := NewContext(ast.NewArena())
	fun := decode(t, ctx, sampleFunction)

	f, err := Parse(ctx, fun)
	require.NoError(t, err)
	f.Denormalize()
	once := fun.String()

	f.Denormalize()
	assert.Equal(t, once, fun.String())

	g, err := Parse(ctx, fun)
	require.NoError(t, err)
	g.Denormalize()
	assert.Equal(t, once, fun.String())
}

func TestDenormalizeAddsFinalReturn(t *testing.T) {
	ctx := NewContext(ast.NewArena())
	fun := decode(t, ctx, `["defun","g",[],[["if",["name","x"],["return",["unary-prefix","+",["num",1]]],null],["return",["unary-prefix","+",["num",2]]]]]`)
	f, err := Parse(ctx, fun)
	require.NoError(t, err)
	require.Equal(t, types.Double, f.Ret)

	fun.At(3).Truncate(1)
	f.Denormalize()

	assert.Equal(t, `["return",["unary-prefix","+",["num",0]]]`, fun.At(3).Last().String())
}

func TestDenormalizeUsesFloatZero(t *testing.T) {
	ctx := NewContext(ast.NewArena())
	fun := decode(t, ctx, `["defun","h",[],[["var",[["x",["name","f0"]]]],["stat",["name","x"]]]]`)
	f, err := Parse(ctx, fun)
	require.NoError(t, err)

	assert.Equal(t, types.Float, f.Type("x"))
	assert.Equal(t, "f0", ctx.FloatZero.Name())

	f.Denormalize()
	assert.Equal(t, `["var",[["x",["name","f0"]]]]`, fun.At(3).At(0).String())
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"var before params":  `["defun","f",["a"],[["var",[["x",["num",0]]]],["stat",["assign",true,["name","a"],["binary","|",["name","a"],["num",0]]]]]]`,
		"uncoerced param":    `["defun","f",["a"],[["stat",["assign",true,["name","a"],["name","a"]]]]]`,
		"missing init":       `["defun","f",[],[["var",[["x"]]]]]`,
		"untyped init":       `["defun","f",[],[["var",[["x",["call",["name","_g"],[]]]]]]]`,
		"stray var":          `["defun","f",[],[["stat",["name","y"]],["if",["name","y"],["var",[["x",["num",0]]]],null]]]`,
		"duplicate var":      `["defun","f",[],[["var",[["x",["num",0]]]],["var",[["x",["num",0]]]]]]`,
		"second float zero":  `["defun","f",[],[["var",[["x",["name","f0"]],["y",["name","g0"]]]]]]`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := NewContext(ast.NewArena())
			_, err := Parse(ctx, decode(t, ctx, src))
			require.Error(t, err)
			assert.ErrorIs(t, err, diagnostic.ErrMalformedPrologue)

			var perr *diagnostic.PrologueError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "f", perr.Function)
		})
	}
}

func TestMustParsePanicsIntoRecover(t *testing.T) {
	ctx := NewContext(ast.NewArena())
	fun := decode(t, ctx, `["defun","f",[],[["stat",["name","y"]],["var",[["x",["num",0]]]]]]`)

	run := func() (err error) {
		defer diagnostic.Recover("test", &err)
		MustParse(ctx, fun)
		return nil
	}

	err := run()
	assert.ErrorIs(t, err, diagnostic.ErrMalformedPrologue)
	assert.Contains(t, err.Error(), "pass test")
}
