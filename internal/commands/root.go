// Package commands implements the ledger command-line interface.
package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"budgetledger/internal/cli"
	"budgetledger/internal/config"
	"budgetledger/internal/core"
)

// Version is stamped at build time.
var Version = "dev"

type rootOptions struct {
	dbPath   string
	currency string
	logLevel string

	app *cli.App
}

// Run executes the CLI with args and always releases the store, even when a
// subcommand fails.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts := &rootOptions{}
	defer func() { _ = opts.close() }()

	rootCmd := newRootCommand(opts)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.ExecuteContext(ctx)
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootOptions{})
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "ledger",
		Short:   "Import bank statements and reconcile a personal budget",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	flags.StringVar(&opts.currency, "currency", "", "display currency (overrides CURRENCY)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(
		newImportCommand(opts),
		newImportsCommand(opts),
		newTransactionsCommand(opts),
		newCategorizeCommand(opts),
		newCategoriesCommand(opts),
		newRecurringCommand(opts),
		newProrateCommand(opts),
		newTravelCommand(opts),
		newSummaryCommand(opts),
		newEventsCommand(opts),
	)

	return rootCmd
}

func (o *rootOptions) open(cmd *cobra.Command) error {
	cfg := config.Load()
	if o.dbPath != "" {
		cfg.SQLiteDBPath = o.dbPath
	}
	if o.currency != "" {
		cfg.Currency = strings.ToUpper(o.currency)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	cli.SetupLogger(cfg.LogLevel, cmd.ErrOrStderr())
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err := cli.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	o.app = app
	return nil
}

func (o *rootOptions) close() error {
	if o.app == nil {
		return nil
	}
	err := o.app.Close()
	o.app = nil
	return err
}

func (o *rootOptions) money(amount decimal.Decimal) string {
	return core.FormatAmount(amount, o.app.Config.Currency)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func parseDateFlag(name, value string) (core.Date, error) {
	if value == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, core.Validationf("--%s: want YYYY-MM-DD, got %q", name, value)
	}
	return d, nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
