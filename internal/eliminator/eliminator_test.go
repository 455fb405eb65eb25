package eliminator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoDaniel/asmopt/internal/asm"
	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/diagnostic"
	"github.com/HugoDaniel/asmopt/internal/printer"
)

func runEliminate(t *testing.T, src string, opts Options) (*ast.Node, *asm.Context) {
	t.Helper()
	ctx := asm.NewContext(ast.NewArena())
	tree, _, err := ast.Decode(ctx.Arena, []byte(src))
	require.NoError(t, err)
	Run(ctx, tree, opts)
	return tree, ctx
}

func expectEliminated(t *testing.T, src string, opts Options, expected string) {
	t.Helper()
	tree, _ := runEliminate(t, src, opts)
	assert.Equal(t, expected, printer.Print(tree))
}

func TestSingleUseIsSubstituted(t *testing.T) {
	src := `["toplevel",[["defun","f",["a"],[
		["stat",["assign",true,["name","a"],["binary","|",["name","a"],["num",0]]]],
		["var",[["t",["num",0]]]],
		["stat",["assign",true,["name","t"],["binary","+",["name","a"],["num",1]]]],
		["return",["binary","|",["name","t"],["num",0]]]
	]]]]`

	tree, _ := runEliminate(t, src, Options{})

	assert.Equal(t, `function f(a) {
  a = a | 0;
  return a + 1 | 0;
}`, printer.Print(tree))
	assert.Equal(t, `["toplevel",[["defun","f",["a"],[`+
		`["stat",["assign",true,["name","a"],["binary","|",["name","a"],["num",0]]]],`+
		`["return",["binary","|",["binary","+",["name","a"],["num",1]],["num",0]]]]]]]`, tree.String())
}

func TestMemoryWriteBlocksSubstitution(t *testing.T) {
	src := `["toplevel",[["defun","f",["p"],[
		["stat",["assign",true,["name","p"],["binary","|",["name","p"],["num",0]]]],
		["var",[["t",["num",0]]]],
		["stat",["assign",true,["name","t"],["binary","|",["sub",["name","HEAP32"],["binary",">>",["name","p"],["num",2]]],["num",0]]]],
		["stat",["assign",true,["sub",["name","HEAP32"],["binary",">>",["name","p"],["num",2]]],["num",5]]],
		["return",["binary","|",["name","t"],["num",0]]]
	]]]]`

	expectEliminated(t, src, Options{}, `function f(p) {
  p = p | 0;
  var t = 0;
  t = HEAP32[p >> 2] | 0;
  HEAP32[p >> 2] = 5;
  return t | 0;
}`)
}

func TestBranchBlocksSubstitution(t *testing.T) {
	src := `["toplevel",[["defun","f",["a","c"],[
		["stat",["assign",true,["name","a"],["binary","|",["name","a"],["num",0]]]],
		["stat",["assign",true,["name","c"],["binary","|",["name","c"],["num",0]]]],
		["var",[["t",["num",0]]]],
		["stat",["assign",true,["name","t"],["binary","|",["binary","+",["name","a"],["num",1]],["num",0]]]],
		["if",["name","c"],["block",[["stat",["assign",true,["sub",["name","HEAP32"],["num",0]],["name","t"]]]]],null],
		["return",["num",0]]
	]]]]`

	expectEliminated(t, src, Options{}, `function f(a, c) {
  a = a | 0;
  c = c | 0;
  var t = 0;
  t = a + 1 | 0;
  if (c) {
    HEAP32[0] = t;
  }
  return 0;
}`)
}

func TestPureCallKeepsTracking(t *testing.T) {
	src := `["toplevel",[["defun","f",["a"],[
		["stat",["assign",true,["name","a"],["binary","|",["name","a"],["num",0]]]],
		["var",[["t",["num",0]],["u",["num",0]]]],
		["stat",["assign",true,["name","t"],["binary","|",["sub",["name","HEAP32"],["num",4]],["num",0]]]],
		["stat",["assign",true,["name","u"],["binary","|",["call",["name","Math_abs"],[["name","a"]]],["num",0]]]],
		["return",["binary","|",["binary","+",["name","t"],["name","u"]],["num",0]]]
	]]]]`

	expectEliminated(t, src, Options{}, `function f(a) {
  a = a | 0;
  return (HEAP32[4] | 0) + (Math_abs(a) | 0) | 0;
}`)
}

func TestImpureCallInvalidatesMemoryReads(t *testing.T) {
	src := `["toplevel",[["defun","f",[],[
		["var",[["t",["num",0]]]],
		["stat",["assign",true,["name","t"],["binary","|",["sub",["name","HEAP32"],["num",4]],["num",0]]]],
		["stat",["call",["name","_g"],[]]],
		["return",["binary","|",["name","t"],["num",0]]]
	]]]]`

	expectEliminated(t, src, Options{}, `function f() {
  var t = 0;
  t = HEAP32[4] | 0;
  _g();
  return t | 0;
}`)
}

func TestDeadVariablesCascade(t *testing.T) {
	src := `["toplevel",[["defun","f",["a"],[
		["stat",["assign",true,["name","a"],["binary","|",["name","a"],["num",0]]]],
		["var",[["x",["num",0]],["y",["num",0]]]],
		["stat",["assign",true,["name","x"],["binary","|",["binary","+",["name","a"],["num",1]],["num",0]]]],
		["stat",["assign",true,["name","y"],["binary","|",["binary","*",["name","x"],["num",2]],["num",0]]]],
		["return",["num",1]]
	]]]]`

	expectEliminated(t, src, Options{}, `function f(a) {
  a = a | 0;
  return 1;
}`)
}

func TestDeadDefinitionInsideBranchIsSwept(t *testing.T) {
	src := `["toplevel",[["defun","f",["c"],[
		["stat",["assign",true,["name","c"],["binary","|",["name","c"],["num",0]]]],
		["var",[["x",["num",0]]]],
		["if",["name","c"],["block",[["stat",["assign",true,["name","x"],["binary","|",["name","c"],["num",1]]]]]],null],
		["return",["num",1]]
	]]]]`

	expectEliminated(t, src, Options{}, `function f(c) {
  c = c | 0;
  if (c) {
  }
  return 1;
}`)
}

func TestUnusedValueWithEffectsIsKept(t *testing.T) {
	src := `["toplevel",[["defun","f",[],[
		["var",[["x",["num",0]]]],
		["stat",["assign",true,["name","x"],["binary","|",["call",["name","_g"],[]],["num",0]]]]
	]]]]`

	expectEliminated(t, src, Options{}, `function f() {
  _g() | 0;
}`)
}

func TestCodeAfterReturnIsDropped(t *testing.T) {
	src := `["toplevel",[["defun","f",[],[
		["return",["num",1]],
		["stat",["call",["name","_g"],[]]]
	]]]]`

	expectEliminated(t, src, Options{}, `function f() {
  return 1;
}`)
}

func TestSelfAssignmentIsRemoved(t *testing.T) {
	src := `["toplevel",[["defun","f",["a"],[
		["stat",["assign",true,["name","a"],["binary","|",["name","a"],["num",0]]]],
		["stat",["assign",true,["name","a"],["name","a"]]],
		["stat",["call",["name","_g"],[["name","a"]]]]
	]]]]`

	expectEliminated(t, src, Options{}, `function f(a) {
  a = a | 0;
  _g(a);
}`)
}

func TestMemSafeKeepsCallsOutOfStores(t *testing.T) {
	src := `["toplevel",[["defun","f",["p"],[
		["stat",["assign",true,["name","p"],["binary","|",["name","p"],["num",0]]]],
		["var",[["t",["num",0]]]],
		["stat",["assign",true,["name","t"],["binary","|",["call",["name","_g"],[]],["num",0]]]],
		["stat",["assign",true,["sub",["name","HEAP32"],["binary",">>",["name","p"],["num",2]]],["name","t"]]]
	]]]]`

	expectEliminated(t, src, Options{}, `function f(p) {
  p = p | 0;
  HEAP32[p >> 2] = _g() | 0;
}`)
	expectEliminated(t, src, Options{MemSafe: true}, `function f(p) {
  p = p | 0;
  var t = 0;
  t = _g() | 0;
  HEAP32[p >> 2] = t;
}`)
}

func TestLoopHelperFusion(t *testing.T) {
	src := `["toplevel",[["defun","f",["n"],[
		["stat",["assign",true,["name","n"],["binary","|",["name","n"],["num",0]]]],
		["var",[["i",["num",0]],["inext",["num",0]]]],
		["while",["num",1],["block",[
			["stat",["assign",true,["sub",["name","HEAP32"],["binary",">>",["binary","<<",["name","i"],["num",2]],["num",2]]],["num",0]]],
			["stat",["assign",true,["name","inext"],["binary","|",["binary","+",["name","i"],["num",1]],["num",0]]]],
			["if",["binary","==",["binary","|",["name","inext"],["num",0]],["binary","|",["name","n"],["num",0]]],
				["block",[["break",null]]],
				["block",[["stat",["assign",true,["name","i"],["name","inext"]]]]]]
		]]],
		["return",["num",0]]
	]]]]`

	expectEliminated(t, src, Options{}, `function f(n) {
  n = n | 0;
  var i = 0;
  while (1) {
    HEAP32[i << 2 >> 2] = 0;
    i = i + 1 | 0;
    if ((i | 0) == (n | 0)) {
      break;
    }
  }
  return 0;
}`)
}

func TestLoopHelperNotFusedWhenLooperLivesOn(t *testing.T) {
	src := `["toplevel",[["defun","f",["n"],[
		["stat",["assign",true,["name","n"],["binary","|",["name","n"],["num",0]]]],
		["var",[["i",["num",0]],["inext",["num",0]]]],
		["while",["num",1],["block",[
			["stat",["assign",true,["name","inext"],["binary","|",["binary","+",["name","i"],["num",1]],["num",0]]]],
			["if",["binary","==",["binary","|",["name","inext"],["num",0]],["binary","|",["name","n"],["num",0]]],
				["block",[["break",null]]],
				["block",[["stat",["assign",true,["name","i"],["name","inext"]]]]]]
		]]],
		["return",["binary","|",["name","i"],["num",0]]]
	]]]]`

	tree, _ := runEliminate(t, src, Options{})
	assert.Contains(t, printer.Print(tree), "i = inext;")
	assert.Contains(t, printer.Print(tree), "var i = 0, inext = 0;")
}

func TestUnsupportedConstructDiscardsTracking(t *testing.T) {
	src := `["toplevel",[["defun","f",["c"],[
		["stat",["assign",true,["name","c"],["binary","|",["name","c"],["num",0]]]],
		["if",["name","c"],["block",[["while",["num",1],["block",[["break",null]]]]]],null]
	]]]]`

	_, ctx := runEliminate(t, src, Options{})
	assert.Equal(t, 1, ctx.Diag.CountByCode(diagnostic.CodeTrackingDiscarded))
}

func TestCompoundAssignmentIsFatal(t *testing.T) {
	src := `["toplevel",[["defun","f",["a"],[
		["stat",["assign",true,["name","a"],["binary","|",["name","a"],["num",0]]]],
		["stat",["assign","+",["name","a"],["num",1]]]
	]]]]`
	ctx := asm.NewContext(ast.NewArena())
	tree, _, err := ast.Decode(ctx.Arena, []byte(src))
	require.NoError(t, err)

	run := func() (err error) {
		defer diagnostic.Recover("eliminate", &err)
		Run(ctx, tree, Options{})
		return nil
	}

	err = run()
	assert.ErrorIs(t, err, diagnostic.ErrInvariant)
}
