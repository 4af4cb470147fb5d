package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"budgetledger/internal/core"
	"budgetledger/internal/log"
	"budgetledger/internal/travel"
)

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Recurring.List(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{"recurring": nonNil(list)}).Write(w)
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	re, err := s.svc.Recurring.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(re).Write(w)
}

func (s *Server) decodeRecurring(w http.ResponseWriter, r *http.Request) (core.RecurringExpense, error) {
	var re core.RecurringExpense
	if err := DecodeJSON(w, r, &re); err != nil {
		return core.RecurringExpense{}, err
	}
	re.Label = sanitizeInput(re.Label)
	re.Category = sanitizeInput(re.Category)
	return re, nil
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	re, err := s.decodeRecurring(w, r)
	if err == nil {
		re.ID = 0
		re, err = s.svc.Recurring.Create(r.Context(), re)
	}
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(re).Write(w)
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	re, err := s.decodeRecurring(w, r)
	if err == nil {
		re.ID = id
		re, err = s.svc.Recurring.Update(r.Context(), re)
	}
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(re).Write(w)
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err == nil {
		err = s.svc.Recurring.Delete(r.Context(), id)
	}
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleProrated(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.opts.Now())
	if err != nil {
		s.fail(w, r, log.OpProrate, err)
		return
	}
	b, err := s.svc.Recurring.Prorated(r.Context(), p)
	if err != nil {
		s.fail(w, r, log.OpProrate, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"from":            p.Start,
		"to":              p.End,
		"total":           b.Total,
		"total_formatted": core.FormatAmount(b.Total, s.opts.Currency),
		"items":           nonNil(b.Items),
		"by_category":     nonNil(b.ByCategory),
	}).Write(w)
}

func (s *Server) handleTravelBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := s.svc.Travel.CurrentBalance(r.Context())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"amount":    bal.Amount,
		"overdrawn": bal.Overdrawn,
		"formatted": core.FormatAmount(bal.Amount, s.opts.Currency),
	}).Write(w)
}

// handleTravelSeries drains the lazy balance series; open bounds are allowed.
func (s *Server) handleTravelSeries(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.openRange(r)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	points := []travel.BalancePoint{}
	for p, err := range s.svc.Travel.BalanceSeries(r.Context(), from, to) {
		if err != nil {
			s.fail(w, r, log.OpList, err)
			return
		}
		points = append(points, p)
	}
	NewResponse().JSON(map[string]any{"points": points}).Write(w)
}

func (s *Server) handleTravelEntries(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.openRange(r)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	entries, err := s.svc.Travel.Entries(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{"entries": nonNil(entries)}).Write(w)
}

func (s *Server) openRange(r *http.Request) (core.Date, core.Date, error) {
	q := r.URL.Query()
	from, err := ParseDateParam(q, "from")
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	to, err := ParseDateParam(q, "to")
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	return from, to, nil
}

type travelRequest struct {
	Date          core.Date       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	TransactionID *int64          `json:"transaction_id,omitempty"`
}

func (s *Server) handleTravelAllocation(w http.ResponseWriter, r *http.Request) {
	var req travelRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	if req.TransactionID != nil {
		s.fail(w, r, log.OpCreate, core.Validationf("allocations cannot reference a transaction"))
		return
	}
	e, err := s.svc.Travel.AddAllocation(r.Context(), req.Date, req.Amount, sanitizeInput(req.Description))
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(e).Write(w)
}

func (s *Server) handleTravelExpense(w http.ResponseWriter, r *http.Request) {
	var req travelRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	e, err := s.svc.Travel.AddExpense(r.Context(), req.Date, req.Amount, sanitizeInput(req.Description), req.TransactionID)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(e).Write(w)
}

func (s *Server) handleDeleteTravelEntry(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err == nil {
		err = s.svc.Travel.DeleteEntry(r.Context(), id)
	}
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// monthSummary serves a memoized summary only while the store revision it
// was computed at is still current; the revision is re-read on every call.
func (s *Server) monthSummary(ctx context.Context, year, month int) (core.MonthSummary, error) {
	rev, err := s.svc.Store.Revision(ctx)
	if err != nil {
		return core.MonthSummary{}, err
	}
	key := fmt.Sprintf("%04d-%02d@%d", year, month, rev)
	if sum, ok := s.summaries.Get(key); ok {
		return sum, nil
	}
	sum, err := s.svc.Summary.Month(ctx, year, month)
	if err != nil {
		return core.MonthSummary{}, err
	}
	s.summaries.Set(key, sum)
	return sum, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	mp, err := ParseMonthParams(r.URL.Query(), s.opts.Now())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	sum, err := s.monthSummary(r.Context(), mp.Year, mp.Month)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"summary":         sum,
		"currency":        s.opts.Currency,
		"total_formatted": core.FormatAmount(sum.Total, s.opts.Currency),
	}).Write(w)
}
