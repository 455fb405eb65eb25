package controlflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoDaniel/asmopt/internal/asm"
	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/printer"
)

const prologue = `["stat",["assign",true,["name","x"],["binary","|",["name","x"],["num",0]]]],
	["stat",["assign",true,["name","y"],["binary","|",["name","y"],["num",0]]]],
	["var",[["label",["num",0]]]]`

const header = "function f(x, y) {\n  x = x | 0;\n  y = y | 0;\n  var label = 0;\n"

func simplify(t *testing.T, body string) *ast.Node {
	t.Helper()
	ctx := asm.NewContext(ast.NewArena())
	tree, _, err := ast.Decode(ctx.Arena, []byte(`["toplevel",[["defun","f",["x","y"],[`+prologue+`,`+body+`]]]]`))
	require.NoError(t, err)
	SimplifyIfs(ctx, tree)
	return tree
}

func call(name string) string {
	return `["stat",["call",["name","` + name + `"],[]]]`
}

func block(stats ...string) string {
	out := `["block",[`
	for i, s := range stats {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out + `]]`
}

func ifStat(cond, then, otherwise string) string {
	return `["if",` + cond + `,` + then + `,` + otherwise + `]`
}

const (
	nameX     = `["name","x"]`
	nameY     = `["name","y"]`
	setLabel5 = `["stat",["assign",true,["name","label"],["num",5]]]`
	setLabel0 = `["stat",["assign",true,["name","label"],["num",0]]]`
	isLabel5  = `["binary","==",["binary","|",["name","label"],["num",0]],["num",5]]`
)

func TestNestedIfsFold(t *testing.T) {
	tree := simplify(t, ifStat(nameX, block(ifStat(nameY, block(call("_g")), "null")), "null"))

	assert.Equal(t, header+`  if (x ? y : 0) {
    _g();
  }
}`, printer.Print(tree))
}

func TestNestedIfChainFolds(t *testing.T) {
	inner := ifStat(`["binary","==",["name","x"],["name","y"]]`, block(call("_g")), "null")
	tree := simplify(t, ifStat(nameX, block(ifStat(nameY, block(inner), "null")), "null"))

	assert.Equal(t, header+`  if ((x ? y : 0) ? x == y : 0) {
    _g();
  }
}`, printer.Print(tree))
}

func TestCommableStatementsFoldIntoCondition(t *testing.T) {
	assignY := `["stat",["assign",true,["name","y"],["num",1]]]`
	tree := simplify(t, ifStat(nameX, block(assignY, ifStat(nameY, block(call("_g")), "null")), "null"))

	assert.Equal(t, header+`  if (x ? (y = 1, y) : 0) {
    _g();
  }
}`, printer.Print(tree))
}

func TestLoopBlocksFolding(t *testing.T) {
	loop := `["while",["num",1],["block",[["break",null]]]]`
	body := ifStat(nameX, block(loop, ifStat(nameY, block(call("_g")), "null")), "null")
	ctx := asm.NewContext(ast.NewArena())
	before, _, err := ast.Decode(ctx.Arena, []byte(`["toplevel",[["defun","f",["x","y"],[`+prologue+`,`+body+`]]]]`))
	require.NoError(t, err)

	assert.Equal(t, before.String(), simplify(t, body).String())
}

func TestMatchingElsesFold(t *testing.T) {
	tree := simplify(t, ifStat(nameX,
		block(ifStat(nameY, block(call("_a")), block(call("_b")))),
		block(call("_b"))))

	assert.Equal(t, header+`  if (x ? y : 0) {
    _a();
  } else {
    _b();
  }
}`, printer.Print(tree))
}

func TestDifferentElsesDoNotFold(t *testing.T) {
	tree := simplify(t, ifStat(nameX,
		block(ifStat(nameY, block(call("_a")), block(call("_b")))),
		block(call("_c"))))

	assert.Contains(t, printer.Print(tree), "if (x) {")
	assert.Contains(t, printer.Print(tree), "if (y) {")
}

func TestInnerIfIsFlippedToMatch(t *testing.T) {
	tree := simplify(t, ifStat(nameX,
		block(ifStat(nameY, block(call("_b")), block(call("_a")))),
		block(call("_b"))))

	assert.Equal(t, header+`  if (x ? !y : 0) {
    _a();
  } else {
    _b();
  }
}`, printer.Print(tree))
}

func TestOuterIfIsFlippedToReachElse(t *testing.T) {
	tree := simplify(t, ifStat(nameX,
		block(call("_a")),
		block(ifStat(nameY, block(call("_g")), block(call("_a"))))))

	assert.Equal(t, header+`  if (!x ? y : 0) {
    _g();
  } else {
    _a();
  }
}`, printer.Print(tree))
}

func TestLabelDispatchFuses(t *testing.T) {
	tree := simplify(t, ifStat(nameX,
		block(ifStat(nameY, block(call("_a")), block(setLabel5))),
		block(setLabel5))+`,`+
		ifStat(isLabel5, block(call("_b")), "null"))

	assert.Equal(t, header+`  if (x ? y : 0) {
    _a();
  } else {
    _b();
  }
}`, printer.Print(tree))
}

func TestLabelDispatchInLoop(t *testing.T) {
	folded := ifStat(nameX,
		block(ifStat(nameY, block(call("_a")), block(setLabel5))),
		block(setLabel5))

	t.Run("WithClear", func(t *testing.T) {
		loop := `["while",["num",1],` + block(folded, ifStat(isLabel5, block(setLabel0, call("_b")), "null"), `["break",null]`) + `]`
		tree := simplify(t, loop)

		assert.Equal(t, header+`  while (1) {
    if (x ? y : 0) {
      _a();
    } else {
      _b();
    }
    break;
  }
}`, printer.Print(tree))
	})

	t.Run("WithoutClear", func(t *testing.T) {
		loop := `["while",["num",1],` + block(folded, ifStat(isLabel5, block(call("_b")), "null"), `["break",null]`) + `]`
		tree := simplify(t, loop)

		assert.Contains(t, printer.Print(tree), "if ((label | 0) == 5) {")
		assert.Contains(t, printer.Print(tree), "label = 5;")
	})
}

func TestDynamicLabelPreventsFusion(t *testing.T) {
	tree := simplify(t, `["stat",["assign",true,["name","label"],["name","x"]]],`+
		ifStat(nameX,
			block(ifStat(nameY, block(call("_a")), block(setLabel5))),
			block(setLabel5))+`,`+
		ifStat(isLabel5, block(call("_b")), "null"))

	assert.Contains(t, printer.Print(tree), "if ((label | 0) == 5) {")
}
