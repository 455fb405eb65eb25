// Package optimizer provides the main optimization API.
//
// It runs an ordered list of named passes over a decoded tree, sharing one
// run context between them, and converts pass failures into errors.
package optimizer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/HugoDaniel/asmopt/internal/asm"
	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/controlflow"
	"github.com/HugoDaniel/asmopt/internal/diagnostic"
	"github.com/HugoDaniel/asmopt/internal/eliminator"
	"github.com/HugoDaniel/asmopt/internal/registerize"
	"github.com/HugoDaniel/asmopt/internal/renamer"
	"github.com/HugoDaniel/asmopt/internal/simplify"
)

// Options controls an optimization run.
type Options struct {
	// Passes to run, in order.
	Passes []string

	// PreciseF32 enables float32 semantics from the start, as if the run
	// began with asmPreciseF32.
	PreciseF32 bool

	// Globals maps global names to their minified names for minifyLocals.
	Globals map[string]string

	// Logger receives pass progress at debug level. Nil discards.
	Logger *slog.Logger
}

// PassStats describes one executed pass.
type PassStats struct {
	Name         string
	Duration     time.Duration
	Functions    int
	LocalsBefore int
	LocalsAfter  int
}

// Stats summarizes a run.
type Stats struct {
	RunID  string
	Passes []PassStats

	// MinifyWhitespace is set when the pass list asked for compact output.
	MinifyWhitespace bool

	Diagnostics []diagnostic.Diagnostic
}

// Optimizer runs pass lists over asm.js trees.
type Optimizer struct {
	options Options
	logger  *slog.Logger
}

// New creates a new optimizer with the given options.
func New(options Options) *Optimizer {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Optimizer{options: options, logger: logger}
}

// Validate reports the first unknown name in passes as a ConfigError.
func Validate(passes []string) error {
	for _, name := range passes {
		if _, ok := registry[name]; !ok {
			return diagnostic.UnknownPass(name)
		}
	}
	return nil
}

// Run applies the configured passes to tree, which must have been
// allocated from arena. Cancellation of ctx is honored between passes.
func (o *Optimizer) Run(ctx context.Context, arena *ast.Arena, tree *ast.Node) (Stats, error) {
	stats := Stats{RunID: uuid.Must(uuid.NewV7()).String()}
	if err := Validate(o.options.Passes); err != nil {
		return stats, err
	}

	r := &run{
		Context: asm.NewContext(arena),
		globals: o.options.Globals,
		stats:   &stats,
	}
	r.PreciseF32 = o.options.PreciseF32
	logger := o.logger.With("run_id", stats.RunID)

	for _, name := range o.options.Passes {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("before pass %s: %w", name, err)
		}

		ps := PassStats{Name: name, LocalsBefore: countLocals(tree)}
		logger.Debug("pass started", "pass", name)
		start := time.Now()

		r.Diag.SetPass(name)
		err := r.apply(name, tree)
		ps.Duration = time.Since(start)
		ps.Functions = countFunctions(tree)
		ps.LocalsAfter = countLocals(tree)
		stats.Passes = append(stats.Passes, ps)
		if err != nil {
			logger.Debug("pass failed", "pass", name, "error", err)
			stats.Diagnostics = r.Diag.Diagnostics()
			return stats, err
		}
		logger.Debug("pass finished",
			"pass", name,
			"functions", ps.Functions,
			"locals", ps.LocalsAfter,
			"duration", ps.Duration)
	}

	stats.Diagnostics = r.Diag.Diagnostics()
	return stats, nil
}

// run is the state shared by the passes of one Run call.
type run struct {
	*asm.Context
	globals map[string]string
	stats   *Stats
}

func (r *run) apply(name string, tree *ast.Node) (err error) {
	defer diagnostic.Recover(name, &err)
	registry[name](r, tree)
	return nil
}

// ----------------------------------------------------------------------------
// Pass Registry
// ----------------------------------------------------------------------------

type passFunc func(r *run, tree *ast.Node)

func noop(*run, *ast.Node) {}

var registry = map[string]passFunc{
	// Mode switches and I/O markers. Input is always JSON and output format
	// is chosen by the caller.
	"asm":         noop,
	"receiveJSON": noop,
	"emitJSON":    noop,
	"asmPreciseF32": func(r *run, _ *ast.Node) {
		r.PreciseF32 = true
	},
	"minifyWhitespace": func(r *run, _ *ast.Node) {
		r.stats.MinifyWhitespace = true
	},

	"eliminate": func(r *run, tree *ast.Node) {
		eliminator.Run(r.Context, tree, eliminator.Options{})
	},
	"eliminateMemSafe": func(r *run, tree *ast.Node) {
		eliminator.Run(r.Context, tree, eliminator.Options{MemSafe: true})
	},
	"simplifyExpressions": func(r *run, tree *ast.Node) {
		simplify.Expressions(r.Context, tree)
	},
	"optimizeFrounds": func(r *run, tree *ast.Node) {
		simplify.Frounds(r.Context, tree)
	},
	"simplifyIfs": func(r *run, tree *ast.Node) {
		controlflow.SimplifyIfs(r.Context, tree)
	},
	"registerize": func(r *run, tree *ast.Node) {
		registerize.Run(r.Context, tree)
	},
	"minifyLocals": func(r *run, tree *ast.Node) {
		renamer.MinifyLocals(r.Context, tree, r.globals)
	},
}

// PassNames returns the recognized pass names in documentation order.
func PassNames() []string {
	return []string{
		"asm", "asmPreciseF32", "receiveJSON", "emitJSON", "minifyWhitespace",
		"eliminate", "eliminateMemSafe", "simplifyExpressions", "optimizeFrounds",
		"simplifyIfs", "registerize", "minifyLocals",
	}
}

// ----------------------------------------------------------------------------
// Counting
// ----------------------------------------------------------------------------

func countFunctions(tree *ast.Node) int {
	n := 0
	ast.TraverseFunctions(tree, func(*ast.Node) { n++ })
	return n
}

// countLocals counts declared parameters and var definitions.
func countLocals(tree *ast.Node) int {
	n := 0
	ast.TraverseFunctions(tree, func(fun *ast.Node) {
		n += fun.At(2).Len()
		ast.TraversePre(fun.At(3), func(node *ast.Node) {
			if node.Is(ast.Var) {
				n += node.At(1).Len()
			}
		})
	})
	return n
}
