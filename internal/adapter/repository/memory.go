package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

// MemoryHistoryStore is an in-memory assessment store for tests and
// single-process setups. Appends for the same IOC serialize on that entry's
// mutex; appends for different IOCs only touch the index lock briefly, so
// they never block each other.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	entries map[string]*iocHistory
}

type iocHistory struct {
	mu          sync.Mutex
	ioc         domain.IOC
	assessments []domain.Assessment
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		entries: make(map[string]*iocHistory),
	}
}

func (s *MemoryHistoryStore) Append(ctx context.Context, assessment domain.Assessment) error {
	e := s.entry(assessment.IOC)

	e.mu.Lock()
	defer e.mu.Unlock()

	// Insert keeping ascending CreatedAt. New assessments almost always land
	// at the end, so walk back from there.
	i := len(e.assessments)
	for i > 0 && e.assessments[i-1].CreatedAt.After(assessment.CreatedAt) {
		i--
	}
	e.assessments = append(e.assessments, domain.Assessment{})
	copy(e.assessments[i+1:], e.assessments[i:])
	e.assessments[i] = assessment

	return nil
}

func (s *MemoryHistoryStore) ListByIOC(ctx context.Context, ioc domain.IOC) ([]domain.Assessment, error) {
	s.mu.RLock()
	e, ok := s.entries[ioc.Key()]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	history := make([]domain.Assessment, 0, len(e.assessments))
	for _, a := range e.assessments {
		history = append(history, cloneAssessment(a))
	}
	return history, nil
}

func (s *MemoryHistoryStore) LatestByIOC(ctx context.Context, ioc domain.IOC) (*domain.Assessment, error) {
	s.mu.RLock()
	e, ok := s.entries[ioc.Key()]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.assessments) == 0 {
		return nil, nil
	}
	latest := cloneAssessment(e.assessments[len(e.assessments)-1])
	return &latest, nil
}

func (s *MemoryHistoryStore) ListIOCs(ctx context.Context) ([]domain.IOC, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	iocs := make([]domain.IOC, 0, len(s.entries))
	for _, e := range s.entries {
		iocs = append(iocs, e.ioc)
	}
	sort.Slice(iocs, func(i, j int) bool { return iocs[i].Key() < iocs[j].Key() })
	return iocs, nil
}

func (s *MemoryHistoryStore) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Assessment, error) {
	s.mu.RLock()
	entries := make([]*iocHistory, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var all []domain.Assessment
	for _, e := range entries {
		e.mu.Lock()
		for _, a := range e.assessments {
			if !a.CreatedAt.Before(since) {
				all = append(all, cloneAssessment(a))
			}
		}
		e.mu.Unlock()
	}

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// entry returns the history bucket for an IOC, creating it on first use.
func (s *MemoryHistoryStore) entry(ioc domain.IOC) *iocHistory {
	key := ioc.Key()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return e
	}
	e = &iocHistory{ioc: ioc}
	s.entries[key] = e
	return e
}

func cloneAssessment(a domain.Assessment) domain.Assessment {
	clone := a
	if a.Results != nil {
		clone.Results = make([]domain.ProviderResult, len(a.Results))
		copy(clone.Results, a.Results)
	}
	return clone
}
