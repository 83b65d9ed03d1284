// Package cmd provides the gateway's CLI commands.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - ask: one-shot question from the terminal
//
// Both commands install signal handling and shut down gracefully via
// context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dosiblog/gateway/internal/log"
)

// Execute is the main entry point for the gateway CLI.
func Execute() error {
	logger := log.New(log.Config{
		Level: logLevel(),
		JSON:  os.Getenv("LOG_FORMAT") == "json",
	})

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "ask":
		return runAsk(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// logLevel reads the DEBUG environment variable.
func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("gateway - DosiBlog conversational agent gateway")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gateway serve [addr]          Start the HTTP API server (default: :8080)")
	fmt.Println("  gateway ask <message>         Ask a one-shot question")
	fmt.Println("  gateway --version             Show version information")
	fmt.Println("  gateway --help                Show this help")
	fmt.Println()
	fmt.Println("Ask flags:")
	fmt.Println("  --mode agent|rag              Answering mode (default: agent)")
	fmt.Println("  --session <id>                Reuse a session id")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY                Gemini API key (required for the gemini provider)")
	fmt.Println("  DATABASE_URL                  PostgreSQL URL, enables the knowledge base")
	fmt.Println("  MCP_SERVERS                   JSON array of MCP provider descriptors")
	fmt.Println("  DEBUG                         Enable debug logging")
}
