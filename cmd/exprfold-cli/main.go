// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"exprfold/grammar"
	"exprfold/internal/ast"
	"exprfold/internal/compile"
	cerrors "exprfold/internal/errors"
	"exprfold/internal/opt"
	"exprfold/internal/vm"
)

// main is the full formula-to-result pipeline the teacher's cmd/kanso-cli
// wrapped its own parser package for: parse, compile, optimize, and (if
// every free variable was bound on the command line) evaluate. Usage:
//
//	exprfold-cli "<formula>" [name=value ...]
//
// Any identifier in the formula without a matching name=value argument is
// still compiled and optimized, but the CLI reports that no value was
// bound for it instead of evaluating.
func main() {
	if len(os.Args) < 2 {
		fmt.Println(`Usage: exprfold-cli "<formula>" [name=value ...]`)
		os.Exit(1)
	}

	source := os.Args[1]
	bindings, err := parseBindings(os.Args[2:])
	if err != nil {
		color.Red("%s", err)
		os.Exit(1)
	}

	parsed, err := grammar.ParseString("<argv>", source)
	if err != nil {
		// grammar.ParseString already printed a caret diagnostic.
		os.Exit(1)
	}

	expr := parsed.ToAST()
	varNames := freeVariables(expr)

	result, diags := compile.Compile(expr, varNames, nil)
	reporter := cerrors.NewErrorReporter("<argv>", source)
	for _, w := range diags.Warnings {
		fmt.Print(reporter.FormatError(w))
	}
	if !diags.OK() {
		for _, e := range diags.Errors {
			fmt.Print(reporter.FormatError(e))
		}
		os.Exit(1)
	}

	optimized := opt.Optimize(&opt.Data{
		Program:   result.Program,
		VarNames:  result.VarNames,
		Callbacks: result.Callbacks,
	})

	fmt.Printf("optimized program: %d instruction(s), variables %v\n",
		len(optimized.Program.Instrs), varNames)

	vars := make([]float64, len(varNames))
	for i, name := range varNames {
		v, ok := bindings[name]
		if !ok {
			color.Yellow("no value bound for %q; skipping evaluation", name)
			return
		}
		vars[i] = v
	}

	value, err := vm.Run(optimized.Program, vars, nil)
	if err != nil {
		color.Red("runtime error: %s", err)
		os.Exit(1)
	}

	color.Green("%s = %v", source, value)
}

// freeVariables returns every distinct identifier name expr references, in
// first-occurrence order, mirroring internal/lsp's inference for the same
// "a formula has no declarations" problem.
func freeVariables(expr ast.Expr) []string {
	seen := make(map[string]bool)
	var names []string
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.IdentExpr:
			if !seen[n.Name] {
				seen[n.Name] = true
				names = append(names, n.Name)
			}
		case *ast.ParenExpr:
			walk(n.Value)
		case *ast.UnaryExpr:
			walk(n.Value)
		case *ast.BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *ast.CallExpr:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(expr)
	return names
}

// parseBindings turns a list of "name=value" arguments into a lookup map.
func parseBindings(args []string) (map[string]float64, error) {
	bindings := make(map[string]float64, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid binding %q, expected name=value", arg)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %q: %w", name, err)
		}
		bindings[name] = v
	}
	return bindings, nil
}
