package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetledger/internal/core"
	"budgetledger/internal/log"
	"budgetledger/internal/services"
	"budgetledger/internal/storage"
	"budgetledger/internal/travel"
)

var fixedNow = time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) (*Server, *storage.Store) {
	t.Helper()
	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	srv := NewServer(":0", Services{
		Store:     store,
		Imports:   services.NewImportService(store, nil, services.ImportOptions{}),
		Ledger:    services.NewLedgerService(store),
		Recurring: services.NewRecurringService(store),
		Summary:   services.NewSummaryService(store),
		Travel:    travel.NewLedger(store),
	}, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func upload(t *testing.T, srv *Server, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/imports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

const statement = "Transaction Date,Debit,Credit,Memo\n" +
	"2024-01-05,50.00,,Coffee\n" +
	"not-a-date,10.00,,Broken\n" +
	"2024-01-06,,1200.00,Salary\n"

func TestHealthAndReady(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, store.Close())
	rr = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "not_ready", decode[map[string]any](t, rr)["status"])
}

func TestReadyDuringImport(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	imports := srv.svc.Imports

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := imports.Import(context.Background(), "slow.csv", pr)
		done <- err
	}()
	require.Eventually(t, func() bool { return imports.InFlight() == 1 }, time.Second, 5*time.Millisecond)

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode[struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}](t, rr)
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "busy: import in progress", body.Checks["store"])

	_, err := io.WriteString(pw, statement)
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	require.NoError(t, <-done)
	assert.Zero(t, imports.InFlight())

	rr = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, "ok", decode[struct {
		Checks map[string]any `json:"checks"`
	}](t, rr).Checks["store"])
}

func TestRequestIDPropagation(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "client-123")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, "client-123", rr.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "bad id with spaces")
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	assert.True(t, strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_"))
}

func TestImportAndQuery(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := upload(t, srv, "jan.csv", statement)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	report := decode[services.ImportReport](t, rr)
	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 0, report.Duplicates)
	assert.NotEmpty(t, report.ImportID)

	rr = upload(t, srv, "jan.csv", statement)
	require.Equal(t, http.StatusCreated, rr.Code)
	again := decode[services.ImportReport](t, rr)
	assert.Equal(t, 0, again.Accepted)
	assert.Equal(t, 2, again.Duplicates)

	rr = do(t, srv, http.MethodGet, "/transactions?from=2024-01-01&to=2024-01-31", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Transactions []struct {
			ID          int64  `json:"id"`
			Date        string `json:"date"`
			Amount      string `json:"amount"`
			Description string `json:"description"`
		} `json:"transactions"`
		Count int `json:"count"`
	}](t, rr)
	require.Equal(t, 2, list.Count)
	var coffee int64
	for _, tx := range list.Transactions {
		if tx.Description == "Coffee" {
			coffee = tx.ID
			assert.Equal(t, "2024-01-05", tx.Date)
			assert.Equal(t, "-50", tx.Amount)
		}
	}
	require.NotZero(t, coffee)

	rr = do(t, srv, http.MethodPut, "/transactions/"+itoa(coffee)+"/category", `{"category":"Eating out"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Eating out", decode[map[string]any](t, rr)["category"])

	rr = do(t, srv, http.MethodGet, "/imports", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[map[string][]any](t, rr)["imports"], 2)
}

func TestImportErrors(t *testing.T) {
	srv, _ := newTestServer(t, Options{MaxUploadBytes: 2048})

	rr := upload(t, srv, "notes.csv", "just,some\nrandom,text\n")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode[ErrorBody](t, rr)
	assert.Equal(t, "parse", body.Kind)
	assert.NotEmpty(t, body.Hint)

	rr = upload(t, srv, "big.csv", strings.Repeat("x", 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	rr = do(t, srv, http.MethodPost, "/imports", `{"file":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPatchTransaction(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/transactions", `{"date":"2024-01-10","amount":"-12.50","description":"Lnch","category":"Eating out"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := int64(decode[map[string]any](t, rr)["id"].(float64))

	rr = do(t, srv, http.MethodPatch, "/transactions/"+itoa(id), `{"description":"Lunch","amount":"-13"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decode[map[string]any](t, rr)
	assert.Equal(t, "Lunch", got["description"])
	assert.Equal(t, "-13", got["amount"])
	assert.Equal(t, "2024-01-10", got["date"])
	assert.Equal(t, "Eating out", got["category"])

	rr = do(t, srv, http.MethodPatch, "/transactions/"+itoa(id), `{"date":"2024-02-30"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	rr = do(t, srv, http.MethodPatch, "/transactions/"+itoa(id), `{"amount":"0"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	rr = do(t, srv, http.MethodPatch, "/transactions/"+itoa(id), `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	rr = do(t, srv, http.MethodPatch, "/transactions/"+itoa(id), `{"category":"Groceries"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	rr = do(t, srv, http.MethodPatch, "/transactions/4242", `{"description":"Ghost"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodPost, "/transactions", `{"date":"2024-01-11","amount":"-3","description":"Bus"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	bus := int64(decode[map[string]any](t, rr)["id"].(float64))

	rr = do(t, srv, http.MethodPatch, "/transactions", `{"ids":[`+itoa(id)+`,`+itoa(bus)+`],"date":"2024-01-12"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	bulk := decode[struct {
		Transactions []struct {
			Date string `json:"date"`
		} `json:"transactions"`
		Count int `json:"count"`
	}](t, rr)
	assert.Equal(t, 2, bulk.Count)
	for _, tx := range bulk.Transactions {
		assert.Equal(t, "2024-01-12", tx.Date)
	}

	rr = do(t, srv, http.MethodPatch, "/transactions", `{"ids":[`+itoa(bus)+`,4242],"date":"2024-01-20"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, srv, http.MethodGet, "/transactions/"+itoa(bus), "")
	assert.Equal(t, "2024-01-12", decode[map[string]any](t, rr)["date"])
}

func TestCategoryUpdateErrors(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPut, "/transactions/999/category", `{"category":"Groceries"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decode[ErrorBody](t, rr).Kind)

	rr = do(t, srv, http.MethodPut, "/transactions/abc/category", `{"category":"Groceries"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodPost, "/transactions", `{"date":"2024-01-10","amount":"-12.50","description":"Lunch"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := int64(decode[map[string]any](t, rr)["id"].(float64))

	rr = do(t, srv, http.MethodPut, "/transactions/"+itoa(id)+"/category", `{"category":"Nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodPut, "/transactions/"+itoa(id)+"/category", `{"category":"Groceries","extra":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRecurringAndProrated(t *testing.T) {
	srv, _ := newTestServer(t, Options{Currency: "USD"})

	rr := do(t, srv, http.MethodPost, "/recurring",
		`{"label":"Rent","amount":"1000","frequency":"monthly","start_date":"2023-01-01","category":"Fixed"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := int64(decode[map[string]any](t, rr)["id"].(float64))

	rr = do(t, srv, http.MethodPost, "/recurring",
		`{"label":"Gym","amount":"30","frequency":"fortnightly","start_date":"2023-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "config", decode[ErrorBody](t, rr).Kind)

	rr = do(t, srv, http.MethodGet, "/recurring/prorated?from=2024-02-01&to=2024-02-29", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[map[string]any](t, rr)
	assert.Equal(t, "1000", got["total"])
	assert.Equal(t, "$1,000.00", got["total_formatted"])

	rr = do(t, srv, http.MethodGet, "/recurring/prorated?from=2024-02-10&to=2024-02-01", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodPut, "/recurring/"+itoa(id),
		`{"label":"Rent","amount":"1100","frequency":"monthly","start_date":"2023-01-01","category":"Fixed"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodPut, "/recurring/4242",
		`{"label":"Ghost","amount":"1","frequency":"monthly","start_date":"2023-01-01"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/recurring/"+itoa(id), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, srv, http.MethodGet, "/recurring/"+itoa(id), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTravelEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	for _, req := range []struct{ path, body string }{
		{"/travel/allocations", `{"date":"2024-01-01","amount":"1000","description":"Budget"}`},
		{"/travel/expenses", `{"date":"2024-01-03","amount":"300","description":"Flight"}`},
		{"/travel/expenses", `{"date":"2024-01-05","amount":"-200","description":"Hotel"}`},
	} {
		rr := do(t, srv, http.MethodPost, req.path, req.body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr := do(t, srv, http.MethodGet, "/travel/balance", "")
	require.Equal(t, http.StatusOK, rr.Code)
	bal := decode[map[string]any](t, rr)
	assert.Equal(t, "500", bal["amount"])
	assert.Equal(t, false, bal["overdrawn"])

	rr = do(t, srv, http.MethodGet, "/travel/series", "")
	require.Equal(t, http.StatusOK, rr.Code)
	series := decode[struct {
		Points []struct {
			Date    string `json:"date"`
			Balance string `json:"balance"`
		} `json:"points"`
	}](t, rr)
	require.Len(t, series.Points, 3)
	assert.Equal(t, "2024-01-01", series.Points[0].Date)
	assert.Equal(t, "500", series.Points[2].Balance)

	rr = do(t, srv, http.MethodGet, "/travel/series?from=2024-02-01&to=2024-02-28", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"points":[]}`, strings.TrimSpace(rr.Body.String()))

	rr = do(t, srv, http.MethodPost, "/travel/allocations", `{"date":"2024-01-01","amount":"0","description":"Nothing"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodPost, "/travel/expenses", `{"date":"2024-01-01","amount":"5","description":"Taxi","transaction_id":77}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodGet, "/travel/entries?from=2024-01-02", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[map[string][]any](t, rr)["entries"], 2)
}

func TestSummaryEndpoint(t *testing.T) {
	srv, store := newTestServer(t, Options{Currency: "EUR"})

	rr := do(t, srv, http.MethodPost, "/transactions", `{"date":"2024-01-10","amount":"-25","description":"Lunch","category":"Eating out"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/summary?year=2024&month=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[struct {
		Summary struct {
			Total      string `json:"total"`
			ByCategory []struct {
				Name string `json:"name"`
			} `json:"by_category"`
		} `json:"summary"`
		Currency string `json:"currency"`
	}](t, rr)
	assert.Equal(t, "25", got.Summary.Total)
	assert.Equal(t, "EUR", got.Currency)
	require.Len(t, got.Summary.ByCategory, 1)
	assert.Equal(t, "Eating out", got.Summary.ByCategory[0].Name)

	// a successful write invalidates the cached month
	rr = do(t, srv, http.MethodPost, "/transactions", `{"date":"2024-01-11","amount":"-10","description":"Bus"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = do(t, srv, http.MethodGet, "/summary?year=2024&month=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "35", decode[struct {
		Summary struct {
			Total string `json:"total"`
		} `json:"summary"`
	}](t, rr).Summary.Total)

	// writes that bypass the server are seen too
	_, err := store.InsertTransaction(context.Background(), core.Transaction{
		Date: core.NewDate(2024, 1, 12), Amount: decimal.NewFromInt(-5), Description: "Written elsewhere",
	})
	require.NoError(t, err)
	rr = do(t, srv, http.MethodGet, "/summary?year=2024&month=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "40", decode[struct {
		Summary struct {
			Total string `json:"total"`
		} `json:"summary"`
	}](t, rr).Summary.Total)

	rr = do(t, srv, http.MethodGet, "/summary?month=13", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	rr = do(t, srv, http.MethodGet, "/summary?month=jan", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestCategoriesEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/categories", `{"name":"Pets","kind":"expense"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodPost, "/categories", `{"name":"Pets","kind":"expense"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodGet, "/categories?kind=income", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[map[string][]any](t, rr)["categories"], 1)

	rr = do(t, srv, http.MethodGet, "/categories?kind=bogus", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/categories/Pets", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, srv, http.MethodDelete, "/categories/Pets", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPatch, "/summary", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestSuspiciousRequestRejected(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/transactions?q=../../etc/passwd", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRateLimitOnMutations(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimit: 2})

	body := `{"name":"A","kind":"expense"}`
	for i, want := range []int{http.StatusCreated, http.StatusUnprocessableEntity, http.StatusTooManyRequests} {
		rr := do(t, srv, http.MethodPost, "/categories", body)
		assert.Equal(t, want, rr.Code, "request %d", i)
		if want == http.StatusTooManyRequests {
			assert.Equal(t, "60", rr.Header().Get("Retry-After"))
		}
	}

	rr := do(t, srv, http.MethodGet, "/categories", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestFromError_Internal(t *testing.T) {
	rr := httptest.NewRecorder()
	FromError(errors.New("disk on fire")).Write(rr)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "disk on fire")
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
