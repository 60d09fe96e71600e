// Command glih is the entry point for the GenAI Logistics Intelligence
// Hub. It provides a CLI interface (via Cobra) for ingesting logistics
// documents and querying the knowledge base, plus an HTTP server that
// exposes the same pipeline as a REST API.
package main

import (
	"fmt"
	"os"

	"github.com/bolajil/genai-logistic-intelligent-hub/cmd/glih/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
