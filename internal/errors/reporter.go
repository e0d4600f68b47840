package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"exprfold/internal/ast"
)

// ErrorLevel represents the severity of a diagnostic.
type ErrorLevel string

const (
	Error   ErrorLevel = "error"
	Warning ErrorLevel = "warning"
	Note    ErrorLevel = "note"
	Help    ErrorLevel = "help"
)

// CompilerError is a structured diagnostic with position, suggestions and
// context, shared by the parser, the compiler and the evaluator.
type CompilerError struct {
	Level       ErrorLevel
	Code        string       // Error code like E0100
	Message     string       // Primary error message
	Position    ast.Position // Location in the formula
	Length      int          // Length of the problematic region
	Suggestions []Suggestion // Suggested fixes
	Notes       []string     // Additional context notes
	HelpText    string       // Help text for the error
}

// Suggestion represents a suggested fix.
type Suggestion struct {
	Message     string       // Description of the suggestion
	Replacement string       // Suggested replacement text (optional)
	Position    ast.Position // Position to apply the fix (optional)
	Length      int          // Length of text to replace (optional)
}

// ErrorReporter renders diagnostics against their source formula. A formula
// is almost always a single line (argv, a REPL entry, or one editor line),
// so the rendering centers on one caret-marked line rather than the paged,
// context-windowed output a file-oriented compiler needs.
type ErrorReporter struct {
	filename string
	lines    []string
}

// NewErrorReporter creates a reporter for one formula source.
func NewErrorReporter(filename, source string) *ErrorReporter {
	return &ErrorReporter{
		filename: filename,
		lines:    strings.Split(source, "\n"),
	}
}

// FormatError renders one diagnostic: a level[code] header, the formula
// line with a caret marker under the offending span, then any suggestions,
// notes and help text.
func (er *ErrorReporter) FormatError(err CompilerError) string {
	var out strings.Builder

	levelColor := er.getLevelColor(err.Level)
	dim := color.New(color.Faint).SprintFunc()

	if err.Code != "" {
		fmt.Fprintf(&out, "%s[%s]: %s\n", levelColor(string(err.Level)), err.Code, err.Message)
	} else {
		fmt.Fprintf(&out, "%s: %s\n", levelColor(string(err.Level)), err.Message)
	}

	line := err.Position.Line
	gutter := strings.Repeat(" ", len(fmt.Sprintf("%d", max(line, 1))))
	fmt.Fprintf(&out, "%s %s %s:%d:%d\n", gutter, dim("-->"), er.filename, line, err.Position.Column)

	if line > 0 && line <= len(er.lines) {
		fmt.Fprintf(&out, "%s %s\n", gutter, dim("|"))
		fmt.Fprintf(&out, "%d %s %s\n", line, dim("|"), er.lines[line-1])
		fmt.Fprintf(&out, "%s %s %s\n", gutter, dim("|"), er.createMarker(err.Position.Column, err.Length, err.Level))
	}

	helpColor := color.New(color.FgCyan).SprintFunc()
	for _, s := range err.Suggestions {
		fmt.Fprintf(&out, "%s %s %s\n", gutter, helpColor("= help:"), s.Message)
		if s.Replacement != "" {
			fmt.Fprintf(&out, "%s %s   %s\n", gutter, dim("="), helpColor(s.Replacement))
		}
	}
	noteColor := color.New(color.FgBlue).SprintFunc()
	for _, note := range err.Notes {
		fmt.Fprintf(&out, "%s %s %s\n", gutter, noteColor("= note:"), note)
	}
	if err.HelpText != "" {
		fmt.Fprintf(&out, "%s %s %s\n", gutter, color.New(color.FgGreen).SprintFunc()("= help:"), err.HelpText)
	}

	out.WriteString("\n")
	return out.String()
}

func (er *ErrorReporter) getLevelColor(level ErrorLevel) func(...interface{}) string {
	switch level {
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case Note:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	case Help:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

// createMarker builds the caret underline for a span starting at column
// (1-based) and running for length characters.
func (er *ErrorReporter) createMarker(column, length int, level ErrorLevel) string {
	if length <= 0 {
		length = 1
	}
	markerColor := er.getLevelColor(level)
	return strings.Repeat(" ", max(0, column-1)) + markerColor(strings.Repeat("^", length))
}
