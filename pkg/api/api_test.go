package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoDaniel/asmopt/internal/diagnostic"
)

const source = `["toplevel",[["defun","_main",["a"],[
	["stat",["assign",true,["name","a"],["binary","|",["name","a"],["num",0]]]],
	["var",[["t",["num",0]]]],
	["stat",["assign",true,["name","t"],["binary","+",["name","a"],["num",1]]]],
	["return",["binary","|",["name","t"],["num",0]]]
]]]]`

func TestOptimizeJSON(t *testing.T) {
	result, err := Optimize([]byte(source), Options{Passes: []string{"asm", "eliminate"}})
	require.NoError(t, err)

	assert.Equal(t, `["toplevel",[["defun","_main",["a"],[`+
		`["stat",["assign",true,["name","a"],["binary","|",["name","a"],["num",0]]]],`+
		`["return",["binary","|",["binary","+",["name","a"],["num",1]],["num",0]]]]]]]`, string(result.Output))
	assert.Equal(t, len(source), result.InputSize)
	assert.Equal(t, len(result.Output), result.OutputSize)
	require.Len(t, result.Passes, 2)
	assert.Equal(t, 2, result.Passes[1].LocalsBefore)
	assert.Equal(t, 1, result.Passes[1].LocalsAfter)
	assert.NotEmpty(t, result.RunID)
}

func TestOptimizeJS(t *testing.T) {
	result, err := Optimize([]byte(source), Options{
		Passes: []string{"eliminate", "registerize"},
		Emit:   EmitJS,
	})
	require.NoError(t, err)

	assert.Equal(t, `function _main(i1) {
  i1 = i1 | 0;
  return i1 + 1 | 0;
}`, string(result.Output))
}

func TestOptimizeMinifiedWhitespace(t *testing.T) {
	result, err := Optimize([]byte(source), Options{
		Passes: []string{"eliminate", "minifyWhitespace"},
		Emit:   EmitJS,
	})
	require.NoError(t, err)

	assert.NotContains(t, string(result.Output), "\n")
}

func TestOptimizeUsesExtraInfoGlobals(t *testing.T) {
	input := source + "\n// EXTRA_INFO: {\"globals\": {\"_main\": \"A\"}}\n"

	result, err := Optimize([]byte(input), Options{Passes: []string{"eliminate", "minifyLocals"}, Emit: EmitJS})
	require.NoError(t, err)
	assert.Contains(t, string(result.Output), "function A(b) {")

	// Caller globals win.
	result, err = Optimize([]byte(input), Options{
		Passes:  []string{"eliminate", "minifyLocals"},
		Globals: map[string]string{"_main": "B"},
		Emit:    EmitJS,
	})
	require.NoError(t, err)
	assert.Contains(t, string(result.Output), "function B(b) {")
}

func TestOptimizeErrors(t *testing.T) {
	_, err := Optimize([]byte(source), Options{Passes: []string{"unroll"}})
	assert.ErrorIs(t, err, diagnostic.ErrUnknownPass)

	_, err = Optimize([]byte(`["toplevel",`), Options{})
	assert.ErrorIs(t, err, diagnostic.ErrConfig)

	_, err = Optimize([]byte(source), Options{Emit: "wasm"})
	assert.ErrorIs(t, err, diagnostic.ErrConfig)
}

func TestOptimizeContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := OptimizeContext(ctx, []byte(source), Options{Passes: []string{"eliminate"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPasses(t *testing.T) {
	assert.Contains(t, Passes(), "registerize")
	assert.Contains(t, Passes(), "minifyLocals")
}
