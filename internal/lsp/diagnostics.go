package lsp

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"exprfold/internal/compile"
	"exprfold/internal/errors"
)

// ConvertParseError converts the error grammar.ParseString returns into an
// LSP diagnostic. participle reports a position; anything else becomes an
// unpositioned whole-document diagnostic.
func ConvertParseError(err error) []protocol.Diagnostic {
	pe, ok := err.(participle.Error)
	if !ok {
		return []protocol.Diagnostic{{
			Range:    protocol.Range{Start: protocol.Position{}, End: protocol.Position{Character: 1}},
			Severity: ptrSeverity(protocol.DiagnosticSeverityError),
			Source:   ptrString("exprfold-parser"),
			Message:  err.Error(),
		}}
	}

	pos := pe.Position()
	line := zeroBased(pos.Line)
	col := zeroBased(pos.Column)

	return []protocol.Diagnostic{{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: col},
			End:   protocol.Position{Line: line, Character: col + 1},
		},
		Severity: ptrSeverity(protocol.DiagnosticSeverityError),
		Source:   ptrString("exprfold-parser"),
		Message:  pe.Message(),
	}}
}

// ConvertCompilerDiagnostics converts compile.Compile's errors and warnings
// into LSP diagnostics.
func ConvertCompilerDiagnostics(diags compile.Diagnostics) []protocol.Diagnostic {
	var out []protocol.Diagnostic
	for _, e := range diags.Errors {
		out = append(out, compilerErrorToDiagnostic(e, protocol.DiagnosticSeverityError))
	}
	for _, w := range diags.Warnings {
		out = append(out, compilerErrorToDiagnostic(w, protocol.DiagnosticSeverityWarning))
	}
	return out
}

func compilerErrorToDiagnostic(e errors.CompilerError, severity protocol.DiagnosticSeverity) protocol.Diagnostic {
	length := e.Length
	if length <= 0 {
		length = 1
	}
	line := zeroBased(e.Position.Line)
	col := zeroBased(e.Position.Column)

	message := e.Message
	if e.Code != "" {
		message = fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}

	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: col},
			End:   protocol.Position{Line: line, Character: col + uint32(length)},
		},
		Severity: ptrSeverity(severity),
		Source:   ptrString("exprfold"),
		Message:  message,
	}
}

// OptimizationHint is the informational diagnostic attached to a clean
// formula whose optimized program is shorter than the naive compilation.
func OptimizationHint(before, after int) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{},
			End:   protocol.Position{Character: 1},
		},
		Severity: ptrSeverity(protocol.DiagnosticSeverityInformation),
		Source:   ptrString("exprfold-optimizer"),
		Message:  fmt.Sprintf("optimizes from %d to %d instruction(s)", before, after),
	}
}

// zeroBased converts a 1-based source line/column to LSP's 0-based one,
// floored at zero (an unset Position reports as 0 either way).
func zeroBased(n int) uint32 {
	if n <= 0 {
		return 0
	}
	return uint32(n - 1)
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func ptrString(s string) *string {
	return &s
}
