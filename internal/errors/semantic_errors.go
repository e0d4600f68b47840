package errors

import (
	"fmt"
	"strings"

	"exprfold/internal/ast"
)

// SemanticErrorBuilder provides a fluent interface for creating semantic errors with suggestions
type SemanticErrorBuilder struct {
	err CompilerError
}

// NewSemanticError creates a new semantic error builder
func NewSemanticError(code, message string, pos ast.Position) *SemanticErrorBuilder {
	return &SemanticErrorBuilder{
		err: CompilerError{
			Level:    Error,
			Code:     code,
			Message:  message,
			Position: pos,
			Length:   1,
		},
	}
}

// NewSemanticWarning creates a new semantic warning builder
func NewSemanticWarning(code, message string, pos ast.Position) *SemanticErrorBuilder {
	return &SemanticErrorBuilder{
		err: CompilerError{
			Level:    Warning,
			Code:     code,
			Message:  message,
			Position: pos,
			Length:   1,
		},
	}
}

// WithLength sets the length of the error span
func (b *SemanticErrorBuilder) WithLength(length int) *SemanticErrorBuilder {
	b.err.Length = length
	return b
}

// WithSuggestion adds a suggestion to the error
func (b *SemanticErrorBuilder) WithSuggestion(message string) *SemanticErrorBuilder {
	b.err.Suggestions = append(b.err.Suggestions, Suggestion{Message: message})
	return b
}

// WithReplacement adds a suggestion with replacement text
func (b *SemanticErrorBuilder) WithReplacement(message, replacement string, pos ast.Position, length int) *SemanticErrorBuilder {
	b.err.Suggestions = append(b.err.Suggestions, Suggestion{
		Message:     message,
		Replacement: replacement,
		Position:    pos,
		Length:      length,
	})
	return b
}

// WithNote adds a note to the error
func (b *SemanticErrorBuilder) WithNote(note string) *SemanticErrorBuilder {
	b.err.Notes = append(b.err.Notes, note)
	return b
}

// WithHelp adds help text to the error
func (b *SemanticErrorBuilder) WithHelp(help string) *SemanticErrorBuilder {
	b.err.HelpText = help
	return b
}

// Build returns the completed compiler error
func (b *SemanticErrorBuilder) Build() CompilerError {
	return b.err
}

// Common compile-time error constructors with suggestions

// UndefinedVariable creates an error for a formula variable that was not
// supplied to Compile, suggesting any bound names that are a close match.
func UndefinedVariable(name string, pos ast.Position, boundNames []string) CompilerError {
	builder := NewSemanticError(ErrorUndefinedVariable, fmt.Sprintf("undefined variable '%s'", name), pos).
		WithLength(len(name))

	similar := findSimilarNames(name, boundNames)
	if len(similar) > 0 {
		if len(similar) == 1 {
			builder = builder.WithSuggestion(fmt.Sprintf("did you mean '%s'?", similar[0]))
		} else {
			builder = builder.WithSuggestion(fmt.Sprintf("did you mean one of: '%s'?", strings.Join(similar, "', '")))
		}
	} else {
		builder = builder.WithNote("every variable a formula references must be passed to Compile")
	}

	return builder.Build()
}

// UndefinedFunction creates an error for a call naming neither a built-in
// nor a registered callback.
func UndefinedFunction(name string, pos ast.Position, builtinNames []string) CompilerError {
	builder := NewSemanticError(ErrorUndefinedFunction, fmt.Sprintf("function '%s' is not a built-in or a registered callback", name), pos).
		WithLength(len(name))

	similar := findSimilarNames(name, builtinNames)
	if len(similar) == 1 {
		builder = builder.WithSuggestion(fmt.Sprintf("did you mean '%s'?", similar[0]))
	} else if len(similar) > 1 {
		builder = builder.WithSuggestion(fmt.Sprintf("did you mean one of: '%s'?", strings.Join(similar, "', '")))
	}

	return builder.WithHelp("unknown names resolve through a callback registered with Compile's options").Build()
}

// ArityMismatch creates an error for a call with the wrong number of
// arguments for a fixed-arity built-in or callback.
func ArityMismatch(name string, expected, actual int, pos ast.Position) CompilerError {
	return NewSemanticError(ErrorArityMismatch,
		fmt.Sprintf("'%s' expects %d argument(s), got %d", name, expected, actual), pos).
		WithSuggestion(fmt.Sprintf("provide exactly %d argument(s)", expected)).
		Build()
}

// ReservedFunction creates an error for a call to the reserved "eval" name.
func ReservedFunction(name string, pos ast.Position) CompilerError {
	return NewSemanticError(ErrorReservedFunction, fmt.Sprintf("'%s' is reserved and cannot be called from a formula", name), pos).
		WithLength(len(name)).
		WithNote("self-recursive calls are not supported").
		Build()
}

// CallbackArityConflict creates an error for a callback name registered
// more than once with conflicting arity.
func CallbackArityConflict(name string, first, second int) CompilerError {
	return NewSemanticError(ErrorCallbackArityConflict,
		fmt.Sprintf("callback '%s' registered with arity %d and %d", name, first, second), ast.Position{}).
		WithHelp("each callback name must be registered with a single, consistent arity").
		Build()
}

// UnusedVariable creates a warning for a bound variable the formula never
// references.
func UnusedVariable(name string, pos ast.Position) CompilerError {
	return NewSemanticWarning(WarningUnusedVariable, fmt.Sprintf("variable '%s' is bound but never used", name), pos).
		WithLength(len(name)).
		Build()
}

// Helper functions

func findSimilarNames(target string, candidates []string) []string {
	var similar []string
	for _, candidate := range candidates {
		if levenshteinDistance(target, candidate) <= 2 && len(candidate) > 2 {
			similar = append(similar, candidate)
		}
	}
	return similar
}

// Simple Levenshtein distance implementation for finding similar names
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
	}
	for i := 0; i <= len(a); i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			matrix[i][j] = min3(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(a)][len(b)]
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
