package errors

import (
	"strings"
	"testing"

	"exprfold/internal/ast"
	"github.com/stretchr/testify/assert"
)

func TestErrorReporter(t *testing.T) {
	source := `sin(x) + balace * 2`

	reporter := NewErrorReporter("formula.txt", source)

	err := UndefinedVariable("balace", ast.Position{Line: 1, Column: 10}, []string{"balance", "rate"})
	formatted := reporter.FormatError(err)

	assert.Contains(t, formatted, "error["+ErrorUndefinedVariable+"]")
	assert.Contains(t, formatted, "undefined variable")
	assert.Contains(t, formatted, "balace")

	assert.Contains(t, formatted, "formula.txt:1:10")

	assert.Contains(t, formatted, "did you mean")
	assert.Contains(t, formatted, "balance")
}

func TestUndefinedVariableError(t *testing.T) {
	pos := ast.Position{Line: 1, Column: 5}

	err := UndefinedVariable("balace", pos, []string{"balance"})
	assert.Equal(t, ErrorUndefinedVariable, err.Code)
	assert.Contains(t, err.Message, "balace")
	assert.Len(t, err.Suggestions, 1)
	assert.Contains(t, err.Suggestions[0].Message, "did you mean 'balance'")

	err = UndefinedVariable("xyz", pos, []string{})
	assert.Empty(t, err.Suggestions)
	assert.Len(t, err.Notes, 1)
}

func TestUndefinedFunctionError(t *testing.T) {
	pos := ast.Position{Line: 1, Column: 5}

	err := UndefinedFunction("sine", pos, []string{"sin", "sinh"})
	assert.Equal(t, ErrorUndefinedFunction, err.Code)
	assert.Contains(t, err.Message, "sine")
	assert.NotEmpty(t, err.HelpText)
}

func TestArityMismatchError(t *testing.T) {
	pos := ast.Position{Line: 1, Column: 1}

	err := ArityMismatch("pow", 2, 3, pos)
	assert.Equal(t, ErrorArityMismatch, err.Code)
	assert.Contains(t, err.Message, "pow")
	assert.Contains(t, err.Message, "expects 2")
	assert.Contains(t, err.Message, "got 3")
}

func TestReservedFunctionError(t *testing.T) {
	pos := ast.Position{Line: 1, Column: 1}

	err := ReservedFunction("eval", pos)
	assert.Equal(t, ErrorReservedFunction, err.Code)
	assert.Contains(t, err.Message, "reserved")
	assert.Len(t, err.Notes, 1)
}

func TestCallbackArityConflictError(t *testing.T) {
	err := CallbackArityConflict("score", 1, 2)
	assert.Equal(t, ErrorCallbackArityConflict, err.Code)
	assert.Contains(t, err.Message, "score")
	assert.Contains(t, err.Message, "1")
	assert.Contains(t, err.Message, "2")
}

func TestWarningFormatting(t *testing.T) {
	source := `x + 1`
	reporter := NewErrorReporter("formula.txt", source)

	err := UnusedVariable("y", ast.Position{Line: 1, Column: 1})
	formatted := reporter.FormatError(err)

	assert.Contains(t, formatted, "warning[W0001]")
	assert.Contains(t, formatted, "never used")
}

func TestErrorMarkerCreation(t *testing.T) {
	source := `variable + value`
	reporter := NewErrorReporter("formula.txt", source)

	marker := reporter.createMarker(5, 8, Error) // "variable" is 8 chars at column 5

	spaces := strings.Count(marker, " ")
	assert.Equal(t, 4, spaces) // column 5 means 4 spaces before
	carets := strings.Count(marker, "^")
	assert.Equal(t, 8, carets)
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("hello", "hello"))
	assert.Equal(t, 1, levenshteinDistance("hello", "hallo"))
	assert.Equal(t, 1, levenshteinDistance("hello", "helo"))
	assert.Equal(t, 5, levenshteinDistance("hello", ""))
	assert.Equal(t, 3, levenshteinDistance("kitten", "sitting"))
}

func TestSimilarNameFinding(t *testing.T) {
	candidates := []string{"balance", "amount", "total", "balanceOf", "xyz"}

	similar := findSimilarNames("balace", candidates)
	assert.Contains(t, similar, "balance")
	assert.NotContains(t, similar, "xyz")

	similar = findSimilarNames("verydifferent", candidates)
	assert.Empty(t, similar)
}

func TestErrorLevels(t *testing.T) {
	source := `test`
	reporter := NewErrorReporter("formula.txt", source)
	pos := ast.Position{Line: 1, Column: 1}

	errorErr := CompilerError{Level: Error, Message: "test error", Position: pos}
	warningErr := CompilerError{Level: Warning, Message: "test warning", Position: pos}

	errorFormatted := reporter.FormatError(errorErr)
	warningFormatted := reporter.FormatError(warningErr)

	assert.Contains(t, errorFormatted, "error:")
	assert.Contains(t, warningFormatted, "warning:")
}
