package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"budgetledger/internal/core"
	"budgetledger/internal/log"
	"budgetledger/internal/services"
	"budgetledger/internal/storage"
)

const maxMultipartMemory = 8 << 20

// handleImport accepts a multipart upload in the "file" field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.fail(w, r, log.OpImport, err)
			return
		}
		BadRequestError("expected a multipart form with a file field").Write(w)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("missing file field").Write(w)
		return
	}
	defer file.Close()

	report, err := s.svc.Imports.Import(r.Context(), sanitizeInput(header.Filename), file)
	if err != nil {
		s.fail(w, r, log.OpImport, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(report).Write(w)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimit(r.URL.Query())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	imports, err := s.svc.Imports.Imports(r.Context(), limit)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{"imports": nonNil(imports)}).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f storage.TransactionFilter
	var err error
	if f.From, err = ParseDateParam(q, "from"); err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if f.To, err = ParseDateParam(q, "to"); err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if f.Limit, err = ParseLimit(q); err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	f.Category = sanitizeInput(q.Get("category"))
	f.Uncategorized = q.Get("uncategorized") == "true"
	f.SourceFile = sanitizeInput(q.Get("source"))

	txs, err := s.svc.Ledger.Transactions(r.Context(), f)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{"transactions": nonNil(txs), "count": len(txs)}).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	t, err := s.svc.Ledger.Transaction(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(t).Write(w)
}

type transactionRequest struct {
	Date        core.Date       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	t, err := s.svc.Ledger.AddTransaction(r.Context(), core.Transaction{
		Date:        req.Date,
		Amount:      req.Amount,
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
	})
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(t).Write(w)
}

// handlePatchTransaction edits the date, amount or description of one
// transaction; absent fields are kept.
func (s *Server) handlePatchTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	var patch services.TransactionPatch
	if err := DecodeJSON(w, r, &patch); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	t, err := s.svc.Ledger.UpdateTransaction(r.Context(), id, sanitizePatch(patch))
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(t).Write(w)
}

// handlePatchTransactions applies one edit to every listed id, all or nothing.
func (s *Server) handlePatchTransactions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
		services.TransactionPatch
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	txs, err := s.svc.Ledger.UpdateTransactions(r.Context(), req.IDs, sanitizePatch(req.TransactionPatch))
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(map[string]any{"transactions": txs, "count": len(txs)}).Write(w)
}

func sanitizePatch(p services.TransactionPatch) services.TransactionPatch {
	if p.Description != nil {
		d := sanitizeInput(*p.Description)
		p.Description = &d
	}
	return p
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err == nil {
		err = s.svc.Ledger.DeleteTransaction(r.Context(), id)
	}
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	var req struct {
		Category string `json:"category"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	if err := s.svc.Ledger.SetCategory(r.Context(), id, sanitizeInput(req.Category)); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	t, err := s.svc.Ledger.Transaction(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(t).Write(w)
}

func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pattern           string `json:"pattern"`
		Category          string `json:"category"`
		OnlyUncategorized bool   `json:"only_uncategorized"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	n, err := s.svc.Ledger.Categorize(r.Context(), sanitizeInput(req.Pattern), sanitizeInput(req.Category), req.OnlyUncategorized)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(map[string]int64{"updated": n}).Write(w)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Ledger.DeleteSource(r.Context(), r.PathValue("file"))
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewResponse().JSON(map[string]int64{"deleted": n}).Write(w)
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	months, err := s.svc.Ledger.Months(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{"months": nonNil(months)}).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	kind := core.CategoryKind(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind"))))
	cats, err := s.svc.Ledger.Categories(r.Context(), kind)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{"categories": nonNil(cats)}).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req core.Category
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	req.Name = sanitizeInput(req.Name)
	c, err := s.svc.Ledger.CreateCategory(r.Context(), req)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(c).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ledger.DeleteCategory(r.Context(), r.PathValue("name")); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
