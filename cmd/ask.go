package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/dosiblog/gateway/internal/app"
	"github.com/dosiblog/gateway/internal/config"
	"github.com/dosiblog/gateway/internal/gateway"
	"github.com/dosiblog/gateway/internal/log"
)

// runAsk answers a single question and exits.
func runAsk(logger log.Logger) error {
	askFlags := flag.NewFlagSet("ask", flag.ContinueOnError)
	askFlags.SetOutput(os.Stderr)
	mode := askFlags.String("mode", gateway.ModeAgent, "Answering mode (agent or rag)")
	session := askFlags.String("session", "", "Session id to reuse")

	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	if err := askFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing ask flags: %w", err)
	}

	message := strings.TrimSpace(strings.Join(askFlags.Args(), " "))
	if message == "" {
		return fmt.Errorf("usage: gateway ask [--mode agent|rag] [--session id] <message>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(context.Background()); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	sessionID := *session
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	reply, err := a.Gateway.HandleStream(ctx, gateway.Request{
		Message:   message,
		SessionID: sessionID,
		Mode:      *mode,
	}, gateway.Events{
		OnText: func(chunk string) { fmt.Print(chunk) },
		OnTool: func(name string) { fmt.Fprintf(os.Stderr, "[tool: %s]\n", name) },
	})
	if err != nil {
		return err
	}
	fmt.Println()

	if len(reply.ToolsInvoked) > 0 {
		fmt.Fprintf(os.Stderr, "tools used: %s\n", strings.Join(reply.ToolsInvoked, ", "))
	}
	return nil
}
