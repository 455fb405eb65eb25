package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const module = `["toplevel",[["defun","f",["a"],[
	["stat",["assign",true,["name","a"],["binary","|",["name","a"],["num",0]]]],
	["var",[["t",["num",0]]]],
	["stat",["assign",true,["name","t"],["binary","+",["name","a"],["num",1]]]],
	["return",["binary","|",["name","t"],["num",0]]]
]]]]`

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeModule(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "module.json")
	require.NoError(t, os.WriteFile(path, []byte(module), 0644))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "asmopt", cmd.Use)

	for _, name := range []string{"optimize", "passes", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestOptimizeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	optimize, _, err := cmd.Find([]string{"optimize"})
	require.NoError(t, err)

	output := optimize.Flags().Lookup("output")
	require.NotNil(t, output)
	assert.Equal(t, "o", output.Shorthand)
	for _, name := range []string{"globals", "emit", "config", "no-config", "precise-f32", "mem-safe"} {
		assert.NotNil(t, optimize.Flags().Lookup(name), name)
	}
}

func TestOptimizeJS(t *testing.T) {
	stdout, _, err := execute(t, "", "optimize", writeModule(t), "eliminate", "registerize", "--emit", "js", "--no-config")
	require.NoError(t, err)

	assert.Equal(t, "function f(i1) {\n  i1 = i1 | 0;\n  return i1 + 1 | 0;\n}\n", stdout)
}

func TestOptimizeStdinToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.json")
	stdout, _, err := execute(t, module, "optimize", "-", "eliminate", "-o", out, "--no-config")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"))
	assert.NotContains(t, string(data), `"t"`)
}

func TestOptimizeUsesConfigFile(t *testing.T) {
	input := writeModule(t)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(input), "asmopt.yaml"),
		[]byte("passes: [eliminate]\nemit: js\n"), 0644))

	stdout, _, err := execute(t, "", "optimize", input)
	require.NoError(t, err)
	assert.Equal(t, "function f(a) {\n  a = a | 0;\n  return a + 1 | 0;\n}\n", stdout)
}

func TestOptimizeUnknownPass(t *testing.T) {
	_, _, err := execute(t, "", "optimize", writeModule(t), "frobnicate", "--no-config")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOptimizeMissingInput(t *testing.T) {
	_, _, err := execute(t, "", "optimize", filepath.Join(t.TempDir(), "missing.json"), "--no-config")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOptimizePassFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`["toplevel",[["defun","f",["a"],[["return",["num",0]]]]]]`), 0644))

	_, _, err := execute(t, "", "optimize", path, "registerize", "--no-config")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestPassesCommand(t *testing.T) {
	stdout, _, err := execute(t, "", "passes")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.Contains(t, lines, "eliminate")
	assert.Contains(t, lines, "asmPreciseF32")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "asmopt v"+Version+" ("+Commit+")\n", stdout)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad", errors.New("input"))))
	assert.Equal(t, "bad: input", WrapExitError(ExitCommandError, "bad", errors.New("input")).Error())
}
