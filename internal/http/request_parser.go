package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"budgetledger/internal/core"
)

const maxJSONBody = 1 << 20

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads year and month, defaulting each to the current date
// when absent. Non-numeric values are validation errors.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, core.Validationf("invalid year %q", v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, core.Validationf("invalid month %q", v)
		}
		params.Month = m
	}
	return params, nil
}

// ParseDateParam reads an optional YYYY-MM-DD query value; absent means zero.
func ParseDateParam(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.Validationf("invalid %s date %q: want YYYY-MM-DD", key, v)
	}
	return d, nil
}

// ParsePeriod reads from/to. A missing bound defaults to the edge of the
// current month, so an empty query means this month.
func ParsePeriod(query url.Values, now time.Time) (core.Period, error) {
	from, err := ParseDateParam(query, "from")
	if err != nil {
		return core.Period{}, err
	}
	to, err := ParseDateParam(query, "to")
	if err != nil {
		return core.Period{}, err
	}
	month := core.MonthPeriod(now.Year(), int(now.Month()))
	if from.IsZero() {
		from = month.Start
	}
	if to.IsZero() {
		to = month.End
	}
	if to.Before(from) {
		return core.Period{}, core.Validationf("period end %s is before start %s", to, from)
	}
	return core.Period{Start: from, End: to}, nil
}

// ParseLimit reads a positive limit, zero when absent.
func ParseLimit(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, core.Validationf("invalid limit %q", v)
	}
	return n, nil
}

// PathID reads a numeric path wildcard.
func PathID(r *http.Request, name string) (int64, error) {
	v := r.PathValue(name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Validationf("invalid %s %q", name, v)
	}
	return id, nil
}

// DecodeJSON reads a single JSON object into dst. Unknown fields, trailing
// data and oversized bodies are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return err
		case core.Kind(err) != nil:
			return err
		case errors.Is(err, io.EOF):
			return core.Validationf("request body is empty")
		default:
			return core.Validationf("malformed request body: %v", err)
		}
	}
	if dec.More() {
		return core.Validationf("request body must contain a single JSON object")
	}
	return nil
}
