// Package repl SPDX-License-Identifier: Apache-2.0
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"exprfold/grammar"
	"exprfold/internal/ast"
	"exprfold/internal/compile"
	"exprfold/internal/opt"
	"exprfold/internal/vm"
)

const PROMPT = ">> "

// Start reads one formula per line from in, prints its AST, and — after
// prompting for a value for each free variable it references — its
// optimized result. Adapted from the teacher's lexer/parser REPL loop,
// with the variable-value prompt replacing the absent declaration step a
// bare formula has no other way to supply.
func Start(in io.Reader) {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Print(PROMPT)
		if !scanner.Scan() {
			return
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		parsed, err := grammar.ParseString("<repl>", line)
		if err != nil {
			// grammar.ParseString already printed a caret diagnostic.
			continue
		}

		expr := parsed.ToAST()
		fmt.Printf("AST:\n%s\n", expr.String())

		varNames := freeVariables(expr)
		result, diags := compile.Compile(expr, varNames, nil)
		for _, w := range diags.Warnings {
			fmt.Printf("warning: %s\n", w.Message)
		}
		if !diags.OK() {
			for _, e := range diags.Errors {
				fmt.Printf("error: %s\n", e.Message)
			}
			continue
		}

		optimized := opt.Optimize(&opt.Data{
			Program:   result.Program,
			VarNames:  result.VarNames,
			Callbacks: result.Callbacks,
		})

		vars, ok := promptValues(scanner, varNames)
		if !ok {
			fmt.Println("not every variable was bound; skipping evaluation")
			continue
		}

		value, err := vm.Run(optimized.Program, vars, nil)
		if err != nil {
			fmt.Printf("runtime error: %s\n", err)
			continue
		}
		fmt.Printf("= %v\n", value)
	}
}

// promptValues reads one float64 per name from scanner, in order.
func promptValues(scanner *bufio.Scanner, names []string) ([]float64, bool) {
	vars := make([]float64, len(names))
	for i, name := range names {
		fmt.Printf("%s = ", name)
		if !scanner.Scan() {
			return nil, false
		}
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			fmt.Printf("invalid value for %q: %s\n", name, err)
			return nil, false
		}
		vars[i] = v
	}
	return vars, true
}

// freeVariables returns every distinct identifier name expr references, in
// first-occurrence order.
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
