package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/andresuchdata/reorderpoint/internal/events"
	"github.com/andresuchdata/reorderpoint/internal/repository"
	"github.com/rs/zerolog/log"
)

// TriggerError means the fact was stored but the recompute it triggered failed.
type TriggerError struct {
	ProductID int64
	Err       error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("fact stored, recompute of product %d failed: %v", e.ProductID, e.Err)
}

func (e *TriggerError) Unwrap() error { return e.Err }

type FactService struct {
	facts     repository.FactRepository
	publisher events.Publisher
}

func NewFactService(facts repository.FactRepository, publisher events.Publisher) *FactService {
	return &FactService{facts: facts, publisher: publisher}
}

// Append validates and stores one fact, then publishes FactAppended. With the
// in-process bus the recompute has finished when Append returns.
func (s *FactService) Append(ctx context.Context, fact domain.FactRecord) error {
	if err := domain.ValidateFact(fact); err != nil {
		return err
	}
	fact.Date = domain.TruncateDate(fact.Date)

	if err := s.facts.Append(ctx, fact); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, events.NewFactAppended(fact.ProductID, fact.Date)); err != nil {
		return &TriggerError{ProductID: fact.ProductID, Err: err}
	}
	return nil
}

// AppendBatch appends every row it can. Rejected rows and trigger failures are
// collected in the report; only a storage failure aborts the batch.
func (s *FactService) AppendBatch(ctx context.Context, facts []domain.FactRecord) (*domain.IngestReport, error) {
	report := &domain.IngestReport{Received: len(facts)}

	for _, f := range facts {
		err := s.Append(ctx, f)

		var trigger *TriggerError
		var dq *domain.DataQualityError
		switch {
		case err == nil:
			report.Appended++
		case errors.As(err, &trigger):
			report.Appended++
			report.TriggerErrors = append(report.TriggerErrors, trigger.Error())
		case errors.As(err, &dq):
			report.Rejected = append(report.Rejected, dq.Rows...)
		default:
			return report, fmt.Errorf("append fact for product %d: %w", f.ProductID, err)
		}
	}

	log.Info().
		Int("received", report.Received).
		Int("appended", report.Appended).
		Int("rejected", len(report.Rejected)).
		Int("trigger_errors", len(report.TriggerErrors)).
		Msg("fact batch ingested")

	return report, nil
}
