//go:build js && wasm

// Command asmopt-wasm is the WebAssembly build of the asm.js optimizer.
// It exposes the optimizer to JavaScript via syscall/js.
package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/HugoDaniel/asmopt/pkg/api"
)

var version = "0.1.0"

// jsOptions mirrors the JavaScript options object.
type jsOptions struct {
	PreciseF32 bool              `json:"preciseF32"`
	Globals    map[string]string `json:"globals"`
	Emit       string            `json:"emit"`
}

func main() {
	js.Global().Set("__asmopt", js.ValueOf(map[string]interface{}{
		"optimize": js.FuncOf(optimizeJS),
		"passes":   js.FuncOf(passesJS),
		"version":  version,
	}))

	// Keep the Go runtime alive
	select {}
}

// optimizeJS is the JavaScript-callable optimize function.
// Signature: __asmopt.optimize(json: string, passes: string[], options?: object) => object
func optimizeJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("optimize requires 2 arguments (json, passes)")
	}

	input := args[0].String()
	passes := make([]string, args[1].Length())
	for i := range passes {
		passes[i] = args[1].Index(i).String()
	}

	var opts jsOptions
	if len(args) > 2 && !args[2].IsUndefined() && !args[2].IsNull() {
		raw := js.Global().Get("JSON").Call("stringify", args[2]).String()
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			return makeError("invalid options: " + err.Error())
		}
	}

	result, err := api.Optimize([]byte(input), api.Options{
		Passes:     passes,
		PreciseF32: opts.PreciseF32,
		Globals:    opts.Globals,
		Emit:       opts.Emit,
	})
	if err != nil {
		return makeError(err.Error())
	}

	notes := make([]interface{}, len(result.Notes))
	for i, n := range result.Notes {
		notes[i] = n
	}
	return map[string]interface{}{
		"output":     string(result.Output),
		"errors":     []interface{}{},
		"notes":      notes,
		"runId":      result.RunID,
		"inputSize":  result.InputSize,
		"outputSize": result.OutputSize,
	}
}

func passesJS(this js.Value, args []js.Value) interface{} {
	names := api.Passes()
	out := make([]interface{}, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

// makeError creates a result object with an error.
func makeError(msg string) interface{} {
	return map[string]interface{}{
		"output":     "",
		"errors":     []interface{}{msg},
		"notes":      []interface{}{},
		"inputSize":  0,
		"outputSize": 0,
	}
}
