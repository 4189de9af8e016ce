// Command pdfchat answers questions about uploaded PDFs. It provides a CLI
// (via Cobra) and an HTTP server with a web UI.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/pdfchat-go/cmd/pdfchat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
