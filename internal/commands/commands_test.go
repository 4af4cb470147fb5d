package commands

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetledger/internal/core"
)

type harness struct {
	t      *testing.T
	dbPath string
	dir    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv("AMQP_URL", "")
	t.Setenv("COLUMN_HINTS_FILE", "")
	t.Setenv("CURRENCY", "USD")
	t.Setenv("LOG_LEVEL", "error")

	dir := t.TempDir()
	return &harness{t: t, dbPath: filepath.Join(dir, "ledger.db"), dir: dir}
}

func (h *harness) run(args ...string) (string, string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	err := Run(context.Background(), append([]string{"--db", h.dbPath}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, errOut, err := h.run(args...)
	require.NoError(h.t, err, errOut)
	return out
}

func (h *harness) writeFile(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const statement = "Transaction Date,Debit,Credit,Memo\n" +
	"2024-01-05,50.00,,Coffee\n" +
	"not-a-date,10.00,,Broken\n" +
	"2024-01-06,,1200.00,Salary\n"

func TestImportAndList(t *testing.T) {
	h := newHarness(t)
	path := h.writeFile("jan.csv", statement)

	out := h.mustRun("import", "-v", path)
	assert.Contains(t, out, "jan.csv (csv): 2 accepted, 1 rejected, 0 duplicates")
	assert.Contains(t, out, "line 3:")

	out = h.mustRun("import", path)
	assert.Contains(t, out, "0 accepted, 1 rejected, 2 duplicates")

	out = h.mustRun("imports")
	assert.Contains(t, out, "jan.csv")

	out = h.mustRun("transactions", "--from", "2024-01-01", "--to", "2024-01-31")
	assert.Contains(t, out, "-$50.00")
	assert.Contains(t, out, "$1,200.00")
	assert.Contains(t, out, "Coffee")
	assert.Contains(t, out, "Uncategorized")
}

func TestImportMissingFile(t *testing.T) {
	h := newHarness(t)
	_, errOut, err := h.run("import", filepath.Join(h.dir, "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 files failed to import")
	assert.Contains(t, errOut, "missing.csv")
}

func TestEditTransactions(t *testing.T) {
	h := newHarness(t)
	h.mustRun("import", h.writeFile("jan.csv", statement))

	out := h.mustRun("transactions", "edit", "1", "--amount=-52.40", "--description", "Coffee beans")
	assert.Contains(t, out, "-$52.40")
	assert.Contains(t, out, "Coffee beans")
	assert.Contains(t, out, "2024-01-05")

	out = h.mustRun("tx", "edit", "1", "2", "--date", "2024-01-31")
	assert.Contains(t, out, "Coffee beans")
	assert.Contains(t, out, "Salary")

	out = h.mustRun("transactions", "--from", "2024-01-31", "--to", "2024-01-31")
	assert.Contains(t, out, "Coffee beans")
	assert.Contains(t, out, "Salary")

	_, _, err := h.run("transactions", "edit", "1", "999", "--description", "x")
	assert.ErrorIs(t, err, core.ErrNotFound)
	out = h.mustRun("transactions")
	assert.Contains(t, out, "Coffee beans", "a failed batch changes nothing")

	_, _, err = h.run("transactions", "edit", "1")
	assert.ErrorIs(t, err, core.ErrValidation)
	_, _, err = h.run("transactions", "edit", "1", "--date", "31/01/2024")
	assert.ErrorIs(t, err, core.ErrValidation)
	_, _, err = h.run("transactions", "edit", "abc", "--description", "x")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestCategorize(t *testing.T) {
	h := newHarness(t)
	h.mustRun("import", h.writeFile("jan.csv", statement))

	out := h.mustRun("categorize", "--match", "coffee", "Eating out")
	assert.Contains(t, out, "1 transactions categorized as Eating out")

	out = h.mustRun("transactions", "--category", "Eating out")
	assert.Contains(t, out, "Coffee")
	assert.NotContains(t, out, "Salary")

	_, _, err := h.run("categorize", "999", "Groceries")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, _, err = h.run("categorize", "abc", "Groceries")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestCategories(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("categories", "--kind", "income")
	assert.Contains(t, out, "Salary")
	assert.NotContains(t, out, "Groceries")

	h.mustRun("categories", "add", "Books")
	out = h.mustRun("categories")
	assert.Contains(t, out, "Books")

	h.mustRun("categories", "delete", "Books")
	out = h.mustRun("categories")
	assert.NotContains(t, out, "Books")
}

func TestRecurringAndProrate(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("recurring", "add", "--label", "Rent", "--amount", "1000", "--start", "2024-01-01", "--category", "Fixed")
	assert.Contains(t, out, "Rent $1,000.00 monthly")

	out = h.mustRun("recurring", "list")
	assert.Contains(t, out, "Rent")

	out = h.mustRun("prorate", "--from", "2024-01-01", "--to", "2024-01-31")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "$1,000.00")

	_, _, err := h.run("recurring", "add", "--label", "Gym", "--amount", "30", "--start", "2024-01-01", "--frequency", "fortnightly")
	assert.ErrorIs(t, err, core.ErrConfig)

	_, _, err = h.run("prorate", "--from", "2024-02-01", "--to", "2024-01-01")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestTravel(t *testing.T) {
	h := newHarness(t)

	h.mustRun("travel", "allocate", "2024-01-01", "500", "January", "savings")
	out, errOut, err := h.run("travel", "spend", "2024-01-10", "650", "Flights")
	require.NoError(t, err, errOut)
	assert.Contains(t, out, "expense 2 recorded: -$650.00")
	assert.Contains(t, errOut, "overdrawn")

	out = h.mustRun("travel", "balance")
	assert.Contains(t, out, "-$150.00 (overdrawn)")

	out = h.mustRun("travel", "series", "--from", "2024-01-01", "--to", "2024-01-31")
	assert.Contains(t, out, "2024-01-01")
	assert.Contains(t, out, "2024-01-10")

	out = h.mustRun("travel", "entries")
	assert.Contains(t, out, "January savings")
	assert.Contains(t, out, "Flights")

	h.mustRun("travel", "delete", "2")
	out = h.mustRun("travel", "balance")
	assert.Equal(t, "$500.00\n", out)

	_, _, err = h.run("travel", "allocate", "2024-01-01", "0")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, _, err = h.run("travel", "spend", "2024-01-01", "5", "Taxi", "--transaction", "42")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSummary(t *testing.T) {
	h := newHarness(t)
	h.mustRun("import", h.writeFile("jan.csv", statement))
	h.mustRun("categorize", "--match", "Coffee", "Eating out")

	out := h.mustRun("summary", "--year", "2024", "--month", "1")
	assert.Contains(t, out, "2024-01")
	assert.Contains(t, out, "Eating out")
	assert.Contains(t, out, "Total")
}

func TestEventsRequiresBroker(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("events")
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestInvalidConfig(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("--currency", "DOLLARS", "categories")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid currency")
}
