package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/hive-corporation/spyglass/internal/core/ports"
)

// EnrichmentService orchestrates the provider fan-out for one IOC and turns
// the joined results into a scored, classified assessment.
type EnrichmentService struct {
	registry   *ports.ProviderRegistry
	repo       ports.AssessmentRepository
	scoring    domain.ScoringConfig
	boundaries []domain.TierBoundary
	temporal   domain.TemporalConfig
}

func NewEnrichmentService(
	registry *ports.ProviderRegistry,
	repo ports.AssessmentRepository,
	scoring domain.ScoringConfig,
	boundaries []domain.TierBoundary,
	temporal domain.TemporalConfig,
) *EnrichmentService {
	return &EnrichmentService{
		registry:   registry,
		repo:       repo,
		scoring:    scoring,
		boundaries: boundaries,
		temporal:   temporal,
	}
}

// Enrich queries every registered provider concurrently and blocks until all
// of them reach a terminal state. Provider failures never fail the request:
// they surface as non-ok results and the assessment always carries one result
// per registered provider.
func (s *EnrichmentService) Enrich(ctx context.Context, value, iocType string) (domain.Assessment, error) {
	ioc, err := s.resolveIOC(value, iocType)
	if err != nil {
		return domain.Assessment{}, err
	}

	providers := s.registry.All()
	resultCh := make(chan domain.ProviderResult, len(providers))

	var wg sync.WaitGroup
	for _, p := range providers {
		wg.Add(1)
		go func(p ports.RegisteredProvider) {
			defer wg.Done()
			resultCh <- s.callProvider(ctx, p, ioc)
		}(p)
	}
	wg.Wait()
	close(resultCh)

	results := make([]domain.ProviderResult, 0, len(providers))
	for r := range resultCh {
		results = append(results, r)
	}

	return domain.NewAssessment(uuid.New().String(), ioc, results, s.scoring, s.boundaries), nil
}

// Assess enriches the IOC and appends the outcome to the history store.
func (s *EnrichmentService) Assess(ctx context.Context, value, iocType string) (domain.Assessment, error) {
	assessment, err := s.Enrich(ctx, value, iocType)
	if err != nil {
		return domain.Assessment{}, err
	}
	if err := s.repo.Append(ctx, assessment); err != nil {
		return domain.Assessment{}, fmt.Errorf("failed to persist assessment: %w", err)
	}
	return assessment, nil
}

// History returns the stored assessments for an IOC, oldest first. An IOC
// with no stored assessments yields ErrEmptyHistory.
func (s *EnrichmentService) History(ctx context.Context, value, iocType string) ([]domain.Assessment, error) {
	ioc, err := s.resolveIOC(value, iocType)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListByIOC(ctx, ioc)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyHistory, ioc.Key())
	}
	return history, nil
}

// Summary derives the temporal view of an IOC from its stored history.
func (s *EnrichmentService) Summary(ctx context.Context, value, iocType string) (domain.TemporalSummary, error) {
	history, err := s.History(ctx, value, iocType)
	if err != nil {
		return domain.TemporalSummary{}, err
	}
	return domain.Summarize(history, s.temporal)
}

// Timeline returns the history together with its summary from one store read.
func (s *EnrichmentService) Timeline(ctx context.Context, value, iocType string) ([]domain.Assessment, domain.TemporalSummary, error) {
	history, err := s.History(ctx, value, iocType)
	if err != nil {
		return nil, domain.TemporalSummary{}, err
	}
	summary, err := domain.Summarize(history, s.temporal)
	if err != nil {
		return nil, domain.TemporalSummary{}, err
	}
	return history, summary, nil
}

// SummarizeHistory derives the temporal view from an already-loaded history,
// using the service's temporal configuration.
func (s *EnrichmentService) SummarizeHistory(history []domain.Assessment) (domain.TemporalSummary, error) {
	return domain.Summarize(history, s.temporal)
}

// callProvider runs one provider under its own deadline and maps the outcome
// onto a result status. The deadline is per provider, so one slow source
// cannot starve the others.
func (s *EnrichmentService) callProvider(ctx context.Context, p ports.RegisteredProvider, ioc domain.IOC) domain.ProviderResult {
	callCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	start := time.Now()
	signal, err := p.Client.Lookup(callCtx, ioc)

	result := domain.ProviderResult{
		Provider:  p.Client.Name(),
		LatencyMS: time.Since(start).Milliseconds(),
	}

	switch {
	case err == nil && signal != nil:
		result.Status = domain.StatusOK
		result.Signal = signal
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		result.Status = domain.StatusTimeout
	case errors.Is(err, ports.ErrUnavailable):
		result.Status = domain.StatusUnavailable
	default:
		result.Status = domain.StatusError
	}

	return result
}

func (s *EnrichmentService) resolveIOC(value, iocType string) (domain.IOC, error) {
	t := domain.IOCType(iocType)
	if iocType == "" {
		t = domain.DetectIOCType(value)
	}
	return domain.NewIOC(value, t)
}
