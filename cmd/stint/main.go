package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/nmckee/stint/internal/aggregate"
	"github.com/nmckee/stint/internal/cli"
	"github.com/nmckee/stint/internal/clock"
	"github.com/nmckee/stint/internal/config"
	"github.com/nmckee/stint/internal/db"
	"github.com/nmckee/stint/internal/diag"
	"github.com/nmckee/stint/internal/notify"
	"github.com/nmckee/stint/internal/queue"
	"github.com/nmckee/stint/internal/repository"
	"github.com/nmckee/stint/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// Open database
	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Wire repositories
	eventRepo := repository.NewSQLiteEventLogRepo(database)
	sessionRepo := repository.NewSQLiteSessionRepo(database)
	kvRepo := repository.NewSQLiteKVRepo(database)

	// Wire unit of work for transactional operations
	uow := db.NewSQLiteUnitOfWork(database)

	clk := clock.System{}
	hub := notify.NewHub()

	cache := aggregate.New(kvRepo, eventRepo, clk)
	if err := cache.Load(context.Background()); err != nil {
		return fmt.Errorf("loading aggregate cache: %w", err)
	}

	// The write queue lives in its own file so pending writes survive
	// the database outage that created them.
	applier := service.NewQueueApplier(eventRepo, cache, clk, cfg, uow)
	writes := queue.New(queue.NewFileStore(cfg.QueuePath), applier, hub, clk, cfg.QueueOptions())
	if err := writes.Load(); err != nil {
		return fmt.Errorf("loading write queue: %w", err)
	}

	app := &cli.App{
		Tracker: service.NewTrackerService(sessionRepo, eventRepo, cache, writes, hub, clk, cfg, uow),
		Reports: service.NewReportService(sessionRepo, eventRepo, cache, hub, clk, cfg),
		Diag:    diag.NewInspector(cache, writes, eventRepo, clk, cfg),
		Hub:     hub,
		Cfg:     cfg,
	}

	// Detect interactive terminal for confirmation prompts.
	app.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	unsubscribe := cli.SubscribeWarnings(hub, os.Stderr)
	defer unsubscribe()

	// Retry pending writes in the background while any command runs.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if writes.Len() > 0 {
		ticker := clock.NewSystemTicker(time.Second)
		defer ticker.Stop()
		go writes.Run(ctx, ticker)
	}

	return cli.NewRootCmd(app).Execute()
}
