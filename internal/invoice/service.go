package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/uzair166/invoiceprocessor/internal/apperr"
	"github.com/uzair166/invoiceprocessor/internal/logging"
	"github.com/uzair166/invoiceprocessor/internal/scanning"
)

// defaultSaveParallelism bounds concurrent saves of a multi-invoice document
const defaultSaveParallelism = 4

// IDGenerator generates unique IDs for invoices
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// TextExtractor turns document bytes into plain text
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// Result is the outcome of processing one document. Invoices holds the
// saved records in the order the model returned them.
type Result struct {
	Mode     scanning.Mode
	Invoices []*Record
	Failed   int
	Err      error
}

// Partial reports whether some but not all invoices were saved
func (r *Result) Partial() bool {
	return r.Failed > 0 && len(r.Invoices) > 0
}

// Service runs the extraction pipeline and owns invoice persistence
type Service struct {
	db          DB
	text        TextExtractor
	extractor   scanning.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
	logger      *slog.Logger
	parallelism int
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, text TextExtractor, extractor scanning.Extractor, logger *slog.Logger) *Service {
	return NewServiceWithDeps(db, text, extractor, &uuidGenerator{}, &defaultTimeSource{}, logger)
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, text TextExtractor, extractor scanning.Extractor, idGen IDGenerator, timeSrc TimeSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:          db,
		text:        text,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
		logger:      logger,
		parallelism: defaultSaveParallelism,
	}
}

// SetSaveParallelism bounds how many invoices of one document are saved at once
func (s *Service) SetSaveParallelism(n int) {
	if n < 1 {
		n = 1
	}
	s.parallelism = n
}

// ProcessInvoice validates an upload, extracts its text, asks the model for
// structured data, normalizes every invoice found and saves them.
//
// In multi mode a failed save does not abort the others: the result lists
// what was saved and counts what was not. An error is returned only when
// nothing could be saved.
func (s *Service) ProcessInvoice(ctx context.Context, upload *Upload, mode scanning.Mode) (*Result, error) {
	log := logging.FromContext(ctx, s.logger)

	if err := Validate(upload); err != nil {
		return nil, err
	}
	log = log.With("filename", upload.Filename, "mode", mode)

	text, err := s.text.Extract(ctx, upload.Data)
	if err != nil {
		log.Error("Failed to extract text", "file_size", len(upload.Data), "error", err)
		return nil, fmt.Errorf("extracting text: %w", err)
	}

	raw, err := s.extractor.Extract(ctx, text, mode)
	if err != nil {
		log.Error("Failed to extract invoice data", "error", err)
		return nil, fmt.Errorf("extracting invoice data: %w", err)
	}

	candidates, err := scanning.Parse(raw, mode, log)
	if err != nil {
		log.Error("Failed to parse model response", "error", err)
		return nil, fmt.Errorf("parsing model response: %w", err)
	}

	now := s.timeSource.Now()
	invoices := make([]Invoice, len(candidates))
	for i, c := range candidates {
		invoices[i] = Normalize(c, upload.Filename, now)
	}

	result := &Result{Mode: mode, Invoices: make([]*Record, 0, len(invoices))}
	if len(invoices) == 0 {
		log.Warn("Model found no invoices in document")
		return result, nil
	}
	if mode != scanning.ModeMulti {
		record, err := s.save(ctx, invoices[0])
		if err != nil {
			log.Error("Failed to save invoice", "error", err)
			return nil, err
		}
		result.Invoices = append(result.Invoices, record)
		log.Info("Invoice processed", "id", record.ID)
		return result, nil
	}

	records, errs := s.saveAll(ctx, invoices)
	for i, record := range records {
		if errs[i] != nil {
			log.Error("Failed to save invoice", "index", i, "error", errs[i])
			result.Failed++
			if result.Err == nil {
				result.Err = errs[i]
			}
			continue
		}
		result.Invoices = append(result.Invoices, record)
	}
	log.Info("Invoices processed", "saved", len(result.Invoices), "failed", result.Failed)

	if len(result.Invoices) == 0 && result.Failed > 0 {
		return result, result.Err
	}
	return result, nil
}

func (s *Service) save(ctx context.Context, inv Invoice) (*Record, error) {
	record := &Record{
		ID:        s.idGenerator.Generate(),
		CreatedAt: s.timeSource.Now(),
		Invoice:   inv,
	}
	if err := s.db.SaveInvoice(ctx, record); err != nil {
		return nil, storeError(ctx, fmt.Errorf("saving invoice: %w", err))
	}
	return record, nil
}

// saveAll saves every invoice concurrently. Slots of the returned slices
// line up with invoices; each slot holds either a record or an error.
func (s *Service) saveAll(ctx context.Context, invoices []Invoice) ([]*Record, []error) {
	records := make([]*Record, len(invoices))
	errs := make([]error, len(invoices))

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, inv := range invoices {
		g.Go(func() error {
			records[i], errs[i] = s.save(ctx, inv)
			return nil
		})
	}
	_ = g.Wait()

	return records, errs
}

// GetInvoice retrieves an invoice by ID
func (s *Service) GetInvoice(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, apperr.Invalid(apperr.ReasonMissingID)
	}
	record, err := s.db.GetInvoice(ctx, id)
	if err != nil {
		return nil, storeError(ctx, fmt.Errorf("getting invoice: %w", err))
	}
	return record, nil
}

// ListInvoices returns all invoices, newest first
func (s *Service) ListInvoices(ctx context.Context) ([]*Record, error) {
	records, err := s.db.ListInvoices(ctx)
	if err != nil {
		return nil, storeError(ctx, fmt.Errorf("listing invoices: %w", err))
	}
	return records, nil
}

// DeleteInvoice removes an invoice
func (s *Service) DeleteInvoice(ctx context.Context, id string) error {
	if id == "" {
		return apperr.Invalid(apperr.ReasonMissingID)
	}
	if err := s.db.DeleteInvoice(ctx, id); err != nil {
		return storeError(ctx, fmt.Errorf("deleting invoice: %w", err))
	}
	logging.FromContext(ctx, s.logger).Info("Invoice deleted", "id", id)
	return nil
}

// storeError classifies an error returned by the DB
func storeError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.New(apperr.NotFound, err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperr.New(apperr.Timeout, err)
	default:
		return apperr.New(apperr.PersistenceError, err)
	}
}
