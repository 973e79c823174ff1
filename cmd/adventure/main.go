package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mirellag/gemini-adventure/internal/config"
	"github.com/mirellag/gemini-adventure/internal/engine"
	"github.com/mirellag/gemini-adventure/internal/gemini"
	"github.com/mirellag/gemini-adventure/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Logs go to a file when configured. Writing them to stderr would
	// corrupt the alternate-screen UI.
	logWriter := io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logWriter = f
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := context.Background()
	provider, err := gemini.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating Gemini client: %w", err)
	}
	defer provider.Close()

	session := engine.NewSession(provider, logger)
	return tui.Run(session)
}
