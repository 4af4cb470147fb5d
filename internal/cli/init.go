// Package cli holds the start-up steps shared by cmd/ledger and cmd/ledger-server.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"budgetledger/internal/amqp"
	"budgetledger/internal/config"
	applog "budgetledger/internal/log"
	"budgetledger/internal/services"
	"budgetledger/internal/storage"
	"budgetledger/internal/travel"
)

// SetupLogger builds the process logger at the configured level and installs
// it as the slog default. An unknown level falls back to info.
func SetupLogger(level string, out io.Writer) *applog.Logger {
	lvl, err := config.ParseLevel(level)
	logger := applog.New(applog.Config{Level: lvl, Component: applog.ComponentApp, Output: out})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info logging", applog.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads a .env file when present; it is optional outside development.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App bundles the store and the services built on it.
type App struct {
	Config    *config.Config
	Store     *storage.Store
	Events    *amqp.Client
	Imports   *services.ImportService
	Ledger    *services.LedgerService
	Recurring *services.RecurringService
	Summary   *services.SummaryService
	Travel    *travel.Ledger
}

// Open opens the store and wires the services. Event publishing is enabled
// only when an AMQP URL is configured, and a broker that cannot be reached
// leaves imports working without events.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	hints, err := config.LoadColumnHints(cfg.ColumnHintsFile)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	app := &App{Config: cfg, Store: store}
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.WarnContext(ctx, "Import events disabled", applog.FieldComponent, applog.ComponentAMQP, applog.FieldError, err)
		} else {
			app.Events = client
			publisher = client
		}
	}

	app.Imports = services.NewImportService(store, publisher, services.ImportOptions{
		Hints:         hints,
		ProgressEvery: cfg.ImportProgressEvery,
	})
	app.Ledger = services.NewLedgerService(store)
	app.Recurring = services.NewRecurringService(store)
	app.Summary = services.NewSummaryService(store)
	app.Travel = travel.NewLedger(store)
	return app, nil
}

func (a *App) Close() error {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			slog.Warn("Failed to close AMQP client", applog.FieldError, err)
		}
	}
	return a.Store.Close()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
