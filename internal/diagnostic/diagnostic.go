// Package diagnostic provides error reporting for the optimizer.
//
// There are two classes of failure:
// - Structural and invariant violations (a malformed function prologue, a
//   node with an unexpected shape). These are fatal: a pass that hits one
//   has left the tree in an unknown state.
// - Configuration errors (unknown pass names, unreadable config files).
//
// Passes report fatal violations by panicking through Fail or Failf. The
// pipeline converts the panic back into an error with Recover at the pass
// boundary, so the deep recursive code in the passes does not need to
// thread errors through every helper.
//
// Non-fatal observations (an optimization abandoned at an unsupported
// construct) are collected as notes in a List.
package diagnostic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/printer"
)

// Severity represents the severity level of a diagnostic.
type Severity uint8

const (
	// Error aborts the run.
	Error Severity = iota
	// Warning is a non-blocking issue.
	Warning
	// Note records an optimization that was given up.
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "unknown"
	}
}

// Code identifies a class of diagnostic.
type Code string

const (
	// Prologue errors (E01xx)
	CodeMalformedPrologue Code = "E0100"
	CodeStrayVar          Code = "E0101"
	CodeFloatZeroConflict Code = "E0102"

	// Pass invariant errors (E02xx)
	CodeUnexpectedShape Code = "E0200"
	CodeInvariant       Code = "E0201"

	// Configuration errors (E03xx)
	CodeUnknownPass Code = "E0300"
	CodeBadConfig   Code = "E0301"
	CodeBadInput    Code = "E0302"

	// Notes (N04xx)
	CodeTrackingDiscarded Code = "N0400"
	CodeLoopFusion        Code = "N0401"
)

// snippetLength bounds quoted code in messages.
const snippetLength = 120

// ----------------------------------------------------------------------------
// Errors
// ----------------------------------------------------------------------------

var (
	// ErrMalformedPrologue matches every PrologueError.
	ErrMalformedPrologue = errors.New("malformed function prologue")
	// ErrInvariant matches every InvariantError.
	ErrInvariant = errors.New("internal invariant violated")
	// ErrConfig matches every ConfigError.
	ErrConfig = errors.New("invalid configuration")
	// ErrUnknownPass is wrapped by ConfigErrors for unrecognized pass names.
	ErrUnknownPass = errors.New("unknown pass")
)

// PrologueError reports a function whose parameter coercions and var
// declarations are not in canonical form.
type PrologueError struct {
	Code     Code
	Function string
	Reason   string
	Snippet  string
	Err      error
}

func (e *PrologueError) Error() string {
	msg := fmt.Sprintf("%s: function %s: %s", e.Code, e.Function, e.Reason)
	if e.Snippet != "" {
		msg += ": " + e.Snippet
	}
	return msg
}

func (e *PrologueError) Is(target error) bool { return target == ErrMalformedPrologue }
func (e *PrologueError) Unwrap() error        { return e.Err }

// NewPrologueError builds a PrologueError quoting node.
func NewPrologueError(code Code, fun, node *ast.Node, reason string) *PrologueError {
	return &PrologueError{
		Code:     code,
		Function: fun.At(1).Str(),
		Reason:   reason,
		Snippet:  snippet(node),
	}
}

// InvariantError reports a tree shape a pass cannot handle.
type InvariantError struct {
	Code     Code
	Pass     string
	Function string
	Message  string
	Snippet  string
}

func (e *InvariantError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	if e.Pass != "" {
		sb.WriteString(e.Pass)
		sb.WriteString(": ")
	}
	if e.Function != "" {
		sb.WriteString("function ")
		sb.WriteString(e.Function)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Snippet != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Snippet)
	}
	return sb.String()
}

func (e *InvariantError) Is(target error) bool { return target == ErrInvariant }

// ConfigError reports an invalid pass list or configuration source.
type ConfigError struct {
	Code    Code
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
func (e *ConfigError) Unwrap() error        { return e.Err }

// UnknownPass builds the error for an unrecognized pass name.
func UnknownPass(name string) *ConfigError {
	return &ConfigError{Code: CodeUnknownPass, Message: fmt.Sprintf("unrecognized pass %q", name), Err: ErrUnknownPass}
}

func snippet(node *ast.Node) string {
	if node == nil {
		return ""
	}
	return printer.Snippet(node, snippetLength)
}

// ----------------------------------------------------------------------------
// Panics at Pass Boundaries
// ----------------------------------------------------------------------------

type failure struct {
	err error
}

// Fail aborts the running pass with err.
func Fail(err error) {
	panic(failure{err: err})
}

// Failf aborts the running pass with an InvariantError quoting node. fun is
// the enclosing defun and may be nil.
func Failf(fun, node *ast.Node, format string, args ...any) {
	Fail(&InvariantError{
		Code:     CodeUnexpectedShape,
		Function: fun.At(1).Str(),
		Message:  fmt.Sprintf(format, args...),
		Snippet:  snippet(node),
	})
}

// Assert aborts the running pass when cond is false.
func Assert(cond bool, fun, node *ast.Node, format string, args ...any) {
	if !cond {
		Fail(&InvariantError{
			Code:     CodeInvariant,
			Function: fun.At(1).Str(),
			Message:  fmt.Sprintf(format, args...),
			Snippet:  snippet(node),
		})
	}
}

// Recover turns a Fail panic into an error stored in *errp. It must be
// deferred directly. Panics not raised by Fail are re-raised.
func Recover(pass string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	f, ok := r.(failure)
	if !ok {
		panic(r)
	}
	var inv *InvariantError
	if errors.As(f.err, &inv) && inv.Pass == "" {
		inv.Pass = pass
	}
	*errp = fmt.Errorf("pass %s: %w", pass, f.err)
}

// ----------------------------------------------------------------------------
// Diagnostic Lists
// ----------------------------------------------------------------------------

// Diagnostic is a single non-fatal message.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Pass     string
	Function string
	Message  string
}

func (d *Diagnostic) String() string {
	var sb strings.Builder
	sb.WriteString(d.Severity.String())
	sb.WriteString("[")
	sb.WriteString(string(d.Code))
	sb.WriteString("]")
	if d.Pass != "" {
		sb.WriteString(" ")
		sb.WriteString(d.Pass)
	}
	if d.Function != "" {
		sb.WriteString(" ")
		sb.WriteString(d.Function)
	}
	sb.WriteString(": ")
	sb.WriteString(d.Message)
	return sb.String()
}

// List collects diagnostics during a run. A nil List discards everything.
type List struct {
	diagnostics []Diagnostic
	pass        string
}

// NewList creates an empty list.
func NewList() *List {
	return &List{}
}

// SetPass stamps subsequently added diagnostics with a pass name.
func (l *List) SetPass(pass string) {
	if l != nil {
		l.pass = pass
	}
}

// Add appends a diagnostic.
func (l *List) Add(d Diagnostic) {
	if l == nil {
		return
	}
	if d.Pass == "" {
		d.Pass = l.pass
	}
	l.diagnostics = append(l.diagnostics, d)
}

// AddNote appends a note about fun.
func (l *List) AddNote(code Code, fun *ast.Node, format string, args ...any) {
	l.Add(Diagnostic{
		Severity: Note,
		Code:     code,
		Function: fun.At(1).Str(),
		Message:  fmt.Sprintf(format, args...),
	})
}

// Diagnostics returns all collected diagnostics.
func (l *List) Diagnostics() []Diagnostic {
	if l == nil {
		return nil
	}
	return l.diagnostics
}

// Count returns the total number of diagnostics.
func (l *List) Count() int {
	return len(l.Diagnostics())
}

// CountByCode returns the number of diagnostics with the given code.
func (l *List) CountByCode(code Code) int {
	count := 0
	for _, d := range l.Diagnostics() {
		if d.Code == code {
			count++
		}
	}
	return count
}

// Format formats all diagnostics, one per line.
func (l *List) Format() string {
	var sb strings.Builder
	for i := range l.Diagnostics() {
		sb.WriteString(l.diagnostics[i].String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
