// Command asmopt optimizes asm.js syntax trees.
//
// Usage:
//
//	asmopt optimize <input.json|-> [passes...] [flags]
//	asmopt passes
//	asmopt version
//
// Config file:
//
//	asmopt looks for asmopt.json, .asmoptrc, asmopt.yaml or asmopt.yml in
//	the input's directory and its parents. ASMOPT_* environment variables
//	override the file, and flags override both.
//
// Example asmopt.yaml:
//
//	passes: [asm, eliminate, simplifyExpressions, simplifyIfs, registerize]
//	preciseF32: false
//	globalsFile: globals.json
package main

import (
	"fmt"
	"os"

	"github.com/HugoDaniel/asmopt/internal/cli"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cli.Version = version
	cli.Commit = commit

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
