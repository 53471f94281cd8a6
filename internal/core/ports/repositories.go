package ports

import (
	"context"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

// AssessmentRepository is the history store port. Implementations must
// append atomically (an assessment is either fully stored with all its
// provider results or not at all) and must allow appends for distinct
// IOCs to proceed concurrently.
type AssessmentRepository interface {
	// Append stores one assessment. Appends for the same IOC serialize,
	// appends for different IOCs do not block each other.
	Append(ctx context.Context, assessment domain.Assessment) error

	// ListByIOC returns the full history for an IOC ordered by ascending
	// CreatedAt. A never-seen IOC yields an empty slice, not an error.
	ListByIOC(ctx context.Context, ioc domain.IOC) ([]domain.Assessment, error)

	// LatestByIOC returns the newest assessment for an IOC, or nil when
	// the IOC has never been assessed.
	LatestByIOC(ctx context.Context, ioc domain.IOC) (*domain.Assessment, error)

	// ListIOCs returns every distinct IOC the store has seen.
	ListIOCs(ctx context.Context) ([]domain.IOC, error)

	// ListSince returns assessments created at or after the given time,
	// newest first, capped at limit.
	ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Assessment, error)
}
