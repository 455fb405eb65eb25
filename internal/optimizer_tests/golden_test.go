// Package optimizer_tests runs whole pass pipelines over stored inputs and
// compares the printed result against golden files.
//
// Update the golden files with: go test ./internal/optimizer_tests -update
package optimizer_tests

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/optimizer"
	"github.com/HugoDaniel/asmopt/internal/printer"
	"github.com/HugoDaniel/asmopt/internal/test"
)

type goldenCase struct {
	name    string
	input   string
	passes  []string
	globals map[string]string
}

var goldenCases = []goldenCase{
	{name: "eliminate_single_use", input: "single_use", passes: []string{"asm", "eliminate"}},
	{name: "full_pipeline", input: "single_use", passes: []string{"asm", "eliminate", "simplifyExpressions", "simplifyIfs", "registerize", "minifyLocals"}},
	{name: "simplify_heap_ops", input: "heap_ops", passes: []string{"simplifyExpressions"}},
	{name: "simplify_nested_ifs", input: "nested_ifs", passes: []string{"simplifyIfs"}},
	{name: "registerize_loop", input: "loop_registers", passes: []string{"registerize"}},
	{name: "minify_loop", input: "loop_registers", passes: []string{"minifyLocals"}},
}

func optimize(t *testing.T, input string, opts optimizer.Options) *ast.Node {
	t.Helper()
	arena := ast.NewArena()
	tree, extra := test.DecodeFile(t, arena, filepath.Join("testdata", "input", input+".json"))
	if extra != nil && opts.Globals == nil {
		opts.Globals = extra.Globals
	}
	_, err := optimizer.New(opts).Run(context.Background(), arena, tree)
	require.NoError(t, err)
	return tree
}

func TestGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tc := range goldenCases {
		t.Run(tc.name, func(t *testing.T) {
			tree := optimize(t, tc.input, optimizer.Options{Passes: tc.passes, Globals: tc.globals})
			g.Assert(t, tc.name, []byte(printer.Print(tree)+"\n"))
		})
	}
}

// Optimized output is a fixed point of the same pipeline: running it again
// changes nothing.
func TestPipelineIsIdempotent(t *testing.T) {
	passes := []string{"eliminate", "simplifyExpressions", "simplifyIfs"}
	for _, input := range []string{"single_use", "heap_ops", "nested_ifs"} {
		t.Run(input, func(t *testing.T) {
			once := optimize(t, input, optimizer.Options{Passes: passes})

			arena := ast.NewArena()
			twice := test.Decode(t, arena, string(ast.Marshal(once)))
			_, err := optimizer.New(optimizer.Options{Passes: passes}).Run(context.Background(), arena, twice)
			require.NoError(t, err)

			test.AssertEqualWithDiff(t, printer.Print(twice), printer.Print(once))
		})
	}
}
