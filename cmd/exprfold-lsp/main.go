// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"log"
	"os"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"exprfold/internal/lsp"
)

const lsName = "exprfold"

var version = "0.0.1"

func main() {
	wsAddress := flag.String("ws", "", "serve over WebSocket at this address instead of stdio (e.g. :4389)")
	flag.Parse()

	// Configure debug logging (1 = debug level, nil = default logger)
	commonlog.Configure(1, nil)

	exprHandler := lsp.NewExprHandler()

	handler := protocol.Handler{
		Initialize:                     exprHandler.Initialize,
		Initialized:                    exprHandler.Initialized,
		Shutdown:                       exprHandler.Shutdown,
		TextDocumentDidOpen:            exprHandler.TextDocumentDidOpen,
		TextDocumentDidClose:           exprHandler.TextDocumentDidClose,
		TextDocumentDidChange:          exprHandler.TextDocumentDidChange,
		TextDocumentCompletion:         exprHandler.TextDocumentCompletion,
		TextDocumentSemanticTokensFull: exprHandler.TextDocumentSemanticTokensFull,
	}

	s := server.NewServer(&handler, lsName, false)

	if *wsAddress != "" {
		log.Printf("starting %s LSP server %s over websocket at %s\n", lsName, version, *wsAddress)
		if err := s.RunWebSocket(*wsAddress); err != nil {
			log.Println("error running LSP server:", err)
			os.Exit(1)
		}
		return
	}

	log.Printf("starting %s LSP server %s over stdio\n", lsName, version)
	if err := s.RunStdio(); err != nil {
		log.Println("error running LSP server:", err)
		os.Exit(1)
	}
}
