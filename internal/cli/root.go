// Package cli implements the asmopt command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HugoDaniel/asmopt/pkg/api"
)

// Build information, set by the linker.
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the root command for the asmopt CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "asmopt",
		Short: "asmopt - asm.js AST optimizer",
		Long: `asmopt rewrites asm.js syntax trees, given as JSON, through an ordered
list of optimization passes: elimination of single-use locals, expression
and control flow simplification, register allocation and local renaming.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewOptimizeCommand(opts))
	cmd.AddCommand(NewPassesCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewPassesCommand creates the passes command.
func NewPassesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "passes",
		Short: "List the recognized pass names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range api.Passes() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "asmopt v%s (%s)\n", Version, Commit)
			return nil
		},
	}
}
