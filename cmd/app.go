package cmd

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teemow/dayplan/internal/ai"
	"github.com/teemow/dayplan/internal/calendar"
	"github.com/teemow/dayplan/internal/instrumentation"
	"github.com/teemow/dayplan/internal/provider/googletasks"
	"github.com/teemow/dayplan/internal/provider/local"
	"github.com/teemow/dayplan/internal/provider/outlook"
	"github.com/teemow/dayplan/internal/provider/todoist"
	"github.com/teemow/dayplan/internal/reconcile"
	"github.com/teemow/dayplan/internal/refresh"
	"github.com/teemow/dayplan/internal/store"
)

// app bundles the wired application components shared by the serve,
// sync and schedule commands.
type app struct {
	store        *store.Store
	orchestrator *reconcile.Orchestrator
	aggregator   *calendar.Aggregator
	aiManager    *ai.Manager
	refreshers   []refresh.TokenRefresher
	metrics      *instrumentation.Metrics
	logger       *slog.Logger
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "dayplan.db"
	}
	return filepath.Join(home, ".dayplan", "dayplan.db")
}

// setupLogging configures the default slog logger from the --debug flag.
func setupLogging(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// newApp opens the database and wires the task providers, calendar
// sources and AI backends.
func newApp(cmd *cobra.Command, metrics *instrumentation.Metrics, logger *slog.Logger) (*app, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, err
	}
	s, err := store.Open(dbPath, logger)
	if err != nil {
		return nil, err
	}

	googleTasks := googletasks.New(s.Accounts, logger)
	outlookTasks := outlook.New(s.Accounts, logger)
	googleCalendar := calendar.NewGoogleSource(s.Accounts, logger)
	o365Calendar := calendar.NewO365Source(s.Accounts, logger)

	engine := reconcile.NewEngine(s.Tasks, logger)
	orchestrator := reconcile.NewOrchestrator(s.Accounts, engine, metrics, logger)
	orchestrator.Register(todoist.New(s.Accounts, logger))
	orchestrator.Register(googleTasks)
	orchestrator.Register(outlookTasks)
	orchestrator.Register(local.New(s.Tasks, logger))

	aggregator := calendar.NewAggregator(s.Accounts, logger)
	aggregator.Register(googleCalendar)
	aggregator.Register(o365Calendar)

	var generators []ai.TextGenerator
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		generators = append(generators, ai.NewOpenAI(key))
	}
	if key := os.Getenv("XAI_API_KEY"); key != "" {
		generators = append(generators, ai.NewGrok(key))
	}

	return &app{
		store:        s,
		orchestrator: orchestrator,
		aggregator:   aggregator,
		aiManager:    ai.NewManager(metrics, logger, generators...),
		refreshers: []refresh.TokenRefresher{
			googleTasks, outlookTasks, googleCalendar, o365Calendar,
		},
		metrics:      metrics,
		logger:       logger,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
