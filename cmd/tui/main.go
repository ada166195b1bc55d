package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"todoapp/internal/infrastructure/todoapi"
	"todoapp/internal/interfaces/tui"
	"todoapp/internal/shared/config"
	"todoapp/internal/shared/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	serverURL := flag.String("server", "", "API base URL (default from TODO_SERVER_URL or config)")
	logFile := flag.String("log-file", "", "Write logs to this file instead of discarding them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *serverURL != "" {
		cfg.Client.ServerURL = *serverURL
	}

	// The terminal belongs to the UI, so logs go to a file or nowhere
	var out io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	opts := logger.DefaultOptions("tui")
	opts.Level = cfg.Log.Level
	opts.Format = cfg.Log.Format
	l, err := logger.New(out, opts)
	if err != nil {
		return err
	}
	log.SetDefault(l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := todoapi.NewClient(cfg.Client.ServerURL)

	// Without the watch stream the list only refreshes after our own
	// mutations or on demand
	events, err := client.Watch(ctx)
	if err != nil {
		log.Warn("watch unavailable", "server", cfg.Client.ServerURL, "err", err)
		events = nil
	}

	log.Info("starting", "server", cfg.Client.ServerURL, "live", events != nil)

	_, err = tea.NewProgram(tui.New(ctx, client, events), tea.WithAltScreen()).Run()
	return err
}
