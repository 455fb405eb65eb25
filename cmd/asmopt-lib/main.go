// Package main provides a C-callable static library for asm.js optimization.
//
// This is built with -buildmode=c-archive to produce libasmopt.a
// that can be linked into C/Zig/Rust programs.
//
// Build:
//
//	CGO_ENABLED=1 go build -buildmode=c-archive -o build/libasmopt.a ./cmd/asmopt-lib
//
// Exported functions:
//
//	asmopt_optimize(input, input_len, options_json, options_len, out_tree, out_tree_len, out_json, out_json_len) -> error_code
//	asmopt_free(ptr) -> void
//	asmopt_version() -> *char
package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"encoding/json"
	"unsafe"

	"github.com/HugoDaniel/asmopt/pkg/api"
)

// Version should match the release version
const version = "0.1.0"

// Error codes
const (
	ASMOPT_OK              = 0
	ASMOPT_ERR_JSON_ENCODE = 1
	ASMOPT_ERR_NULL_INPUT  = 2
	ASMOPT_ERR_JSON_DECODE = 3
	ASMOPT_ERR_OPTIMIZE    = 4
)

// OptimizeOptions mirrors the Go API options for JSON parsing
type OptimizeOptions struct {
	Passes     []string          `json:"passes"`
	PreciseF32 bool              `json:"preciseF32"`
	Globals    map[string]string `json:"globals"`
	Emit       string            `json:"emit"`
}

// OptimizeResult is the JSON result structure for optimization
type OptimizeResult struct {
	Errors     []string `json:"errors,omitempty"`
	Notes      []string `json:"notes,omitempty"`
	RunID      string   `json:"runId"`
	InputSize  int      `json:"inputSize"`
	OutputSize int      `json:"outputSize"`
}

// asmopt_optimize runs passes over a JSON tree.
//
// Parameters:
//   - input: pointer to the JSON tree (UTF-8)
//   - input_len: length of input in bytes
//   - options_json: pointer to JSON options
//   - options_len: length of options JSON
//   - out_tree: pointer to receive the output (caller must free with asmopt_free)
//   - out_tree_len: pointer to receive output length
//   - out_json: pointer to receive JSON result with stats (caller must free with asmopt_free)
//   - out_json_len: pointer to receive JSON length
//
// Returns:
//   - 0 on success
//   - non-zero error code on failure; out_json still describes the error
//
//export asmopt_optimize
func asmopt_optimize(
	input *C.char, input_len C.int,
	options_json *C.char, options_len C.int,
	out_tree **C.char, out_tree_len *C.int,
	out_json **C.char, out_json_len *C.int,
) C.int {
	if input == nil || options_json == nil || out_tree == nil || out_tree_len == nil {
		return ASMOPT_ERR_NULL_INPUT
	}

	var opts OptimizeOptions
	if err := json.Unmarshal(C.GoBytes(unsafe.Pointer(options_json), options_len), &opts); err != nil {
		return ASMOPT_ERR_JSON_DECODE
	}

	result, err := api.Optimize(C.GoBytes(unsafe.Pointer(input), input_len), api.Options{
		Passes:     opts.Passes,
		PreciseF32: opts.PreciseF32,
		Globals:    opts.Globals,
		Emit:       opts.Emit,
	})

	status := C.int(ASMOPT_OK)
	summary := OptimizeResult{
		Notes:      result.Notes,
		RunID:      result.RunID,
		InputSize:  result.InputSize,
		OutputSize: result.OutputSize,
	}
	if err != nil {
		summary.Errors = []string{err.Error()}
		status = ASMOPT_ERR_OPTIMIZE
	}

	*out_tree = C.CString(string(result.Output))
	*out_tree_len = C.int(len(result.Output))

	if out_json != nil && out_json_len != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			return ASMOPT_ERR_JSON_ENCODE
		}
		*out_json = C.CString(string(data))
		*out_json_len = C.int(len(data))
	}

	return status
}

// asmopt_free frees memory allocated by asmopt functions.
//
//export asmopt_free
func asmopt_free(ptr *C.char) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

// asmopt_version returns the library version. The caller must not free it.
//
//export asmopt_version
func asmopt_version() *C.char {
	return versionCString
}

var versionCString = C.CString(version)

func main() {}
