package main

import (
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/dbscope/dbscope/internal/app"
	"github.com/dbscope/dbscope/internal/config"
	"github.com/dbscope/dbscope/internal/favorites"
	"github.com/dbscope/dbscope/internal/history"
	"github.com/dbscope/dbscope/internal/logging"
	"github.com/dbscope/dbscope/internal/session"
	"github.com/dbscope/dbscope/internal/store"
	"github.com/dbscope/dbscope/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load config: %v (using defaults)\n", err)
		cfg = config.GetDefaults()
	}

	logPath, err := cfg.LogPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot resolve log path: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewFile(logPath, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open log: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	addr := cfg.Agent.Address
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}
	client, err := transport.Dial(addr, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach agent at %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	st := store.New()
	opts := []session.Option{session.WithLogger(logger)}

	if configDir, err := config.GetConfigPath(); err == nil {
		opts = append(opts, session.WithFavorites(favorites.NewManager(configDir)))
	}
	if cfg.History.Enabled {
		if path, err := cfg.HistoryPath(); err == nil {
			if hist, herr := history.NewStore(path); herr != nil {
				logger.Warn("history disabled", zap.Error(herr))
			} else {
				defer func() { _ = hist.Close() }()
				opts = append(opts, session.WithHistory(hist, cfg.History.MaxEntries))
			}
		}
	}

	sess := session.New(st, client, opts...)

	teaOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.UI.MouseEnabled {
		teaOpts = append(teaOpts, tea.WithMouseCellMotion())
	}

	p := tea.NewProgram(app.New(st, sess, cfg), teaOpts...)
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
