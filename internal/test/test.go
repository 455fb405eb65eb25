// Package test provides testing utilities for the optimizer.
//
// It decodes trees from test sources, prints them for comparison, and
// shows line diffs when printed output differs.
package test

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/printer"
)

// Decode decodes a JSON tree into arena, failing the test on error.
func Decode(t *testing.T, arena *ast.Arena, src string) *ast.Node {
	t.Helper()
	tree, _, err := ast.Decode(arena, []byte(src))
	require.NoError(t, err)
	return tree
}

// DecodeFile decodes the JSON tree stored at path.
func DecodeFile(t *testing.T, arena *ast.Arena, path string) (*ast.Node, *ast.ExtraInfo) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tree, extra, err := ast.Decode(arena, data)
	require.NoError(t, err, path)
	return tree, extra
}

// Function returns the defun named name in tree, or nil.
func Function(tree *ast.Node, name string) *ast.Node {
	var found *ast.Node
	ast.TraverseFunctions(tree, func(fun *ast.Node) {
		if found == nil && fun.At(1).Str() == name {
			found = fun
		}
	})
	return found
}

// PrintFunction prints the defun named name in tree.
func PrintFunction(t *testing.T, tree *ast.Node, name string) string {
	t.Helper()
	fun := Function(tree, name)
	require.NotNil(t, fun, "no function %s", name)
	return printer.Print(fun)
}

// AssertEqualWithDiff checks if two strings are equal and shows a diff if not.
func AssertEqualWithDiff(t *testing.T, actual, expected string) {
	t.Helper()
	if actual != expected {
		t.Errorf("\n%s", Diff(expected, actual))
	}
}

// Diff produces a line-by-line diff between two strings.
// Shows context around differences with +/- prefixes.
func Diff(expected, actual string) string {
	expectedLines := strings.Split(expected, "\n")
	actualLines := strings.Split(actual, "\n")

	var result strings.Builder
	result.WriteString("--- expected\n+++ actual\n")

	maxLines := max(len(expectedLines), len(actualLines))
	for i := 0; i < maxLines; i++ {
		var expLine, actLine string
		if i < len(expectedLines) {
			expLine = expectedLines[i]
		}
		if i < len(actualLines) {
			actLine = actualLines[i]
		}

		if expLine == actLine {
			result.WriteString(fmt.Sprintf(" %s\n", expLine))
			continue
		}
		if i < len(expectedLines) {
			result.WriteString(fmt.Sprintf("-%s\n", expLine))
		}
		if i < len(actualLines) {
			result.WriteString(fmt.Sprintf("+%s\n", actLine))
		}
	}

	return result.String()
}
