// Package services orchestrates the engine: it wires parsing, normalization,
// proration and the travel ledger to the store and the event publisher.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"budgetledger/internal/amqp"
	"budgetledger/internal/core"
	applog "budgetledger/internal/log"
	"budgetledger/internal/normalize"
	"budgetledger/internal/parser"
	"budgetledger/internal/storage"
)

// EventPublisher receives import lifecycle events. Publishing is best effort.
type EventPublisher interface {
	PublishImportEvent(ctx context.Context, ev *amqp.ImportEvent) error
}

// ImportReport summarizes one file import.
type ImportReport struct {
	ImportID   string                `json:"import_id"`
	File       string                `json:"file"`
	Format     parser.Format         `json:"format"`
	Accepted   int                   `json:"accepted"`
	Rejected   int                   `json:"rejected"`
	Duplicates int                   `json:"duplicates"`
	Skipped    int                   `json:"skipped"`
	Rejections []normalize.Rejection `json:"rejections,omitempty"`
}

type ImportOptions struct {
	Hints         parser.Hints
	ProgressEvery int
}

// ImportService turns statement files into stored transactions.
type ImportService struct {
	store  *storage.Store
	events EventPublisher
	opts   ImportOptions

	inFlight atomic.Int32
}

// NewImportService creates the service. events may be nil.
func NewImportService(store *storage.Store, events EventPublisher, opts ImportOptions) *ImportService {
	return &ImportService{store: store, events: events, opts: opts}
}

// Import parses r as the statement called name and stores every new
// transaction. Bad rows are counted, not fatal. All inserts and the import
// record share one store transaction, so a failed import stores nothing.
func (s *ImportService) Import(ctx context.Context, name string, r io.Reader) (ImportReport, error) {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	id := uuid.NewString()
	started := time.Now()

	f, err := parser.Open(r, name, s.opts.Hints)
	if err != nil {
		s.publish(ctx, failedEvent(id, name, err))
		return ImportReport{}, err
	}
	defer f.Close()

	logger := slog.With(applog.FieldComponent, applog.ComponentImport)
	logger.InfoContext(ctx, "Import started", applog.FieldImportID, id, applog.FieldFile, f.Name, applog.FieldFormat, string(f.Format))

	n := normalize.Normalizer{
		SourceFile:    f.Name,
		ImportID:      id,
		ProgressEvery: s.opts.ProgressEvery,
		OnProgress: func(res normalize.Result) {
			logger.InfoContext(ctx, "Import progress", applog.FieldImportID, id, applog.FieldRows, res.Processed(), applog.FieldAccepted, res.Accepted)
			s.publish(ctx, resultEvent(amqp.EventImportProgress, id, f.Name, res, f.Skipped()))
		},
	}

	var res normalize.Result
	err = s.store.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		res, err = n.Normalize(ctx, f.Rows(), q, func(t core.Transaction) error {
			_, err := q.InsertTransaction(ctx, t)
			return err
		})
		if err != nil {
			return err
		}
		return q.InsertImport(ctx, core.ImportRecord{
			ID:         id,
			FileName:   f.Name,
			Format:     string(f.Format),
			ImportedAt: time.Now().UTC(),
			Accepted:   res.Accepted,
			Rejected:   res.Rejected,
			Duplicates: res.Duplicates,
			Skipped:    f.Skipped(),
		})
	})
	if err != nil {
		logger.ErrorContext(ctx, "Import failed", applog.FieldImportID, id, applog.FieldFile, f.Name, applog.FieldError, err)
		s.publish(ctx, failedEvent(id, f.Name, err))
		return ImportReport{}, fmt.Errorf("import %s: %w", f.Name, err)
	}

	report := ImportReport{
		ImportID:   id,
		File:       f.Name,
		Format:     f.Format,
		Accepted:   res.Accepted,
		Rejected:   res.Rejected,
		Duplicates: res.Duplicates,
		Skipped:    f.Skipped(),
		Rejections: res.Rejections,
	}
	fields := applog.NewFields().
		WithOperation(applog.OpImport).
		WithImport(id, f.Name, report.Accepted, report.Rejected, report.Duplicates)
	fields[applog.FieldFormat] = string(f.Format)
	fields[applog.FieldDuration] = time.Since(started).Milliseconds()
	fields["skipped"] = report.Skipped
	logger.InfoContext(ctx, "Import completed", fields.ToSlice()...)
	s.publish(ctx, resultEvent(amqp.EventImportCompleted, id, f.Name, res, report.Skipped))
	return report, nil
}

// InFlight reports how many imports are running right now.
func (s *ImportService) InFlight() int {
	return int(s.inFlight.Load())
}

// Imports lists past imports, most recent first.
func (s *ImportService) Imports(ctx context.Context, limit int) ([]core.ImportRecord, error) {
	return s.store.ListImports(ctx, limit)
}

func (s *ImportService) publish(ctx context.Context, ev *amqp.ImportEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishImportEvent(ctx, ev); err != nil {
		slog.WarnContext(ctx, "Failed to publish import event",
			applog.FieldComponent, applog.ComponentAMQP,
			applog.FieldImportID, ev.ImportID,
			"type", ev.Type,
			applog.FieldError, err)
	}
}

func resultEvent(eventType, id, file string, res normalize.Result, skipped int) *amqp.ImportEvent {
	ev := amqp.NewImportEvent(eventType, id, file)
	ev.Processed = res.Processed()
	ev.Accepted = res.Accepted
	ev.Rejected = res.Rejected
	ev.Duplicates = res.Duplicates
	ev.Skipped = skipped
	return ev
}

func failedEvent(id, file string, err error) *amqp.ImportEvent {
	ev := amqp.NewImportEvent(amqp.EventImportFailed, id, file)
	ev.Error = err.Error()
	return ev
}
