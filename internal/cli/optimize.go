package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HugoDaniel/asmopt/internal/config"
	"github.com/HugoDaniel/asmopt/internal/diagnostic"
	"github.com/HugoDaniel/asmopt/pkg/api"
)

// OptimizeOptions holds flags for the optimize command.
type OptimizeOptions struct {
	*RootOptions
	Output      string
	GlobalsFile string
	Emit        string
	ConfigFile  string
	NoConfig    bool
	PreciseF32  bool
	MemSafe     bool
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptimizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "optimize <input.json|-> [passes...]",
		Short: "Run optimization passes over a JSON tree",
		Long: `Run optimization passes over an asm.js tree in JSON form.

Passes run in the order given. Without passes on the command line, the
list comes from ASMOPT_PASSES, then the config file, then the default
list. Config files (asmopt.json, .asmoptrc, asmopt.yaml, asmopt.yml) are
searched for in the input's directory and its parents.

Example:
  asmopt optimize module.json eliminate simplifyExpressions registerize
  asmopt optimize module.json --emit js -o module.js
  cat module.json | asmopt optimize - minifyLocals --globals globals.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (default: stdout)")
	cmd.Flags().StringVar(&opts.GlobalsFile, "globals", "", "JSON or YAML file mapping global names to minified names")
	cmd.Flags().StringVar(&opts.Emit, "emit", "", "output format (json|js)")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "use specific config file")
	cmd.Flags().BoolVar(&opts.NoConfig, "no-config", false, "ignore config files")
	cmd.Flags().BoolVar(&opts.PreciseF32, "precise-f32", false, "start with float32 semantics")
	cmd.Flags().BoolVar(&opts.MemSafe, "mem-safe", false, "run eliminate as eliminateMemSafe")

	return cmd
}

func runOptimize(opts *OptimizeOptions, input string, passes []string, cmd *cobra.Command) error {
	source, err := readInput(input, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "reading input", err)
	}

	cfg, configPath, err := loadConfig(opts, input)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}
	cfg.ApplyEnv()

	cli := config.MergeOptions{
		Passes:      passes,
		GlobalsFile: opts.GlobalsFile,
		Emit:        opts.Emit,
		Verbose:     opts.Verbose,
	}
	if cmd.Flags().Changed("precise-f32") {
		cli.PreciseF32 = &opts.PreciseF32
	}
	if cmd.Flags().Changed("mem-safe") {
		cli.MemSafe = &opts.MemSafe
	}
	settings, err := cfg.Merge(cli)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), settings.LogLevel)
	if configPath != "" {
		logger.Debug("using config", "path", configPath)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := api.OptimizeContext(ctx, source, api.Options{
		Passes:     settings.Passes,
		PreciseF32: settings.PreciseF32,
		Globals:    settings.Globals,
		Emit:       settings.Emit,
		Logger:     logger,
	})
	for _, note := range result.Notes {
		logger.Debug("note", "run_id", result.RunID, "diagnostic", note)
	}
	if err != nil {
		if errors.Is(err, diagnostic.ErrConfig) {
			return WrapExitError(ExitCommandError, "optimization not started", err)
		}
		return WrapExitError(ExitFailure, "optimization failed", err)
	}
	logger.Info("optimized",
		"run_id", result.RunID,
		"passes", len(result.Passes),
		"input_bytes", result.InputSize,
		"output_bytes", result.OutputSize)

	if err := writeOutput(opts.Output, cmd.OutOrStdout(), result.Output); err != nil {
		return WrapExitError(ExitCommandError, "writing output", err)
	}
	return nil
}

func readInput(input string, stdin io.Reader) ([]byte, error) {
	if input == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(input)
}

// loadConfig returns the explicit config file, the discovered one, or an
// empty config.
func loadConfig(opts *OptimizeOptions, input string) (*config.Config, string, error) {
	if opts.NoConfig {
		return &config.Config{}, "", nil
	}
	if opts.ConfigFile != "" {
		cfg, err := config.LoadFile(opts.ConfigFile)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", opts.ConfigFile, err)
		}
		return cfg, opts.ConfigFile, nil
	}

	startDir, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	if input != "-" {
		startDir = filepath.Dir(input)
	}
	cfg, path, err := config.Load(startDir)
	if err != nil {
		return nil, "", err
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	return cfg, path, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeOutput(path string, stdout io.Writer, data []byte) error {
	data = append(data, '\n')
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}
