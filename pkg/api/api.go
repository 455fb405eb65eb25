// Package api provides the public API for the asm.js optimizer.
//
// This package is intended for programmatic use of the optimizer.
// For CLI usage, see cmd/asmopt.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/diagnostic"
	"github.com/HugoDaniel/asmopt/internal/optimizer"
	"github.com/HugoDaniel/asmopt/internal/printer"
)

// Output formats.
const (
	EmitJSON = "json"
	EmitJS   = "js"
)

// Options controls an optimization run.
type Options struct {
	// Passes lists the passes to run, in order. See Passes for the names.
	Passes []string

	// PreciseF32 enables float32 semantics from the start.
	PreciseF32 bool

	// Globals maps global names to minified names for minifyLocals. Entries
	// override the EXTRA_INFO table carried by the input.
	Globals map[string]string

	// Emit selects the output format: EmitJSON (default) or EmitJS.
	Emit string

	// Logger receives pass progress at debug level. Nil discards.
	Logger *slog.Logger
}

// PassStat describes one executed pass.
type PassStat struct {
	Name         string
	Duration     time.Duration
	LocalsBefore int
	LocalsAfter  int
}

// Result contains the optimization output.
type Result struct {
	// Output is the optimized tree as compact JSON, or as JavaScript text
	// when Emit is EmitJS.
	Output []byte

	// RunID identifies the run in logs.
	RunID string

	// Passes lists the passes that ran, including a failed last one.
	Passes []PassStat

	// Notes contains non-fatal diagnostics, one per line.
	Notes []string

	// InputSize is the size of the input in bytes.
	InputSize int

	// OutputSize is the size of Output in bytes.
	OutputSize int
}

// Passes returns the recognized pass names.
func Passes() []string {
	return optimizer.PassNames()
}

// Optimize runs opts.Passes over the JSON tree in input.
func Optimize(input []byte, opts Options) (Result, error) {
	return OptimizeContext(context.Background(), input, opts)
}

// OptimizeContext is Optimize with cancellation between passes.
func OptimizeContext(ctx context.Context, input []byte, opts Options) (Result, error) {
	result := Result{InputSize: len(input)}

	switch opts.Emit {
	case "", EmitJSON, EmitJS:
	default:
		return result, &diagnostic.ConfigError{Code: diagnostic.CodeBadConfig, Message: "unknown output format " + opts.Emit}
	}

	arena := ast.NewArena()
	tree, extra, err := ast.Decode(arena, input)
	if err != nil {
		return result, &diagnostic.ConfigError{Code: diagnostic.CodeBadInput, Message: "decoding input", Err: err}
	}

	globals := make(map[string]string)
	if extra != nil {
		for name, short := range extra.Globals {
			globals[name] = short
		}
	}
	for name, short := range opts.Globals {
		globals[name] = short
	}

	stats, err := optimizer.New(optimizer.Options{
		Passes:     opts.Passes,
		PreciseF32: opts.PreciseF32,
		Globals:    globals,
		Logger:     opts.Logger,
	}).Run(ctx, arena, tree)

	result.RunID = stats.RunID
	for _, ps := range stats.Passes {
		result.Passes = append(result.Passes, PassStat{
			Name:         ps.Name,
			Duration:     ps.Duration,
			LocalsBefore: ps.LocalsBefore,
			LocalsAfter:  ps.LocalsAfter,
		})
	}
	for i := range stats.Diagnostics {
		result.Notes = append(result.Notes, stats.Diagnostics[i].String())
	}
	if err != nil {
		return result, err
	}

	if opts.Emit == EmitJS {
		p := printer.New(printer.Options{MinifyWhitespace: stats.MinifyWhitespace})
		result.Output = []byte(p.Print(tree))
	} else {
		result.Output = ast.Marshal(tree)
	}
	result.OutputSize = len(result.Output)
	return result, nil
}
