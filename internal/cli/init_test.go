package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetledger/internal/config"
	"budgetledger/internal/core"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "ledger.db")
	cfg.AMQPURL = ""
	cfg.ColumnHintsFile = ""
	return cfg
}

func TestOpen_WiresServices(t *testing.T) {
	app, err := Open(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Nil(t, app.Events)
	for name, svc := range map[string]any{
		"imports": app.Imports, "ledger": app.Ledger, "recurring": app.Recurring,
		"summary": app.Summary, "travel": app.Travel,
	} {
		assert.NotNil(t, svc, name)
	}

	bal, err := app.Travel.CurrentBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, bal.Amount.IsZero())
}

func TestOpen_BadHintsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.ColumnHintsFile = filepath.Join(t.TempDir(), "hints.yaml")
	require.NoError(t, os.WriteFile(cfg.ColumnHintsFile, []byte("balance: [Saldo]\n"), 0o644))

	_, err := Open(context.Background(), cfg)
	assert.True(t, errors.Is(err, core.ErrConfig), "got %v", err)
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := SetupLogger("bogus", &buf)
	assert.Contains(t, buf.String(), "Falling back to info logging")

	buf.Reset()
	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	buf.Reset()
	SetupLogger("debug", &buf).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
