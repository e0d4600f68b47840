// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"exprfold/grammar"
)

// main is the bare-grammar smoke test: parse a formula given on the
// command line and print its AST, the same quick-look entry point the
// teacher's root main.go provided for its own grammar package. The full
// pipeline (compile, optimize, evaluate) lives in cmd/exprfold-cli.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: exprfold \"<formula>\"")
		os.Exit(1)
	}

	source := os.Args[1]

	expr, err := grammar.ParseString("<argv>", source)
	if err != nil {
		// grammar.ParseString has already printed a caret diagnostic.
		os.Exit(1)
	}

	fmt.Println("Parsed expression:")
	fmt.Println(expr.ToAST().String())

	color.Green("parsed %q successfully", source)
}
