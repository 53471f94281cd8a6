package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresHistoryStore keeps assessment history in two tables:
//
//	CREATE TABLE assessments (
//	    id         UUID PRIMARY KEY,
//	    ioc_value  TEXT NOT NULL,
//	    ioc_type   TEXT NOT NULL,
//	    score      INT  NOT NULL,
//	    risk_level TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX idx_assessments_ioc ON assessments (ioc_value, ioc_type, created_at);
//
//	CREATE TABLE assessment_results (
//	    assessment_id UUID   NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
//	    provider      TEXT   NOT NULL,
//	    status        TEXT   NOT NULL,
//	    signal        JSONB,
//	    latency_ms    BIGINT NOT NULL,
//	    PRIMARY KEY (assessment_id, provider)
//	);
type PostgresHistoryStore struct {
	db *pgxpool.Pool
}

func NewPostgresHistoryStore(db *pgxpool.Pool) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

func (r *PostgresHistoryStore) Append(ctx context.Context, assessment domain.Assessment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	// Serializa appends do mesmo IOC sem travar os demais
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, assessment.IOC.Key()); err != nil {
		return fmt.Errorf("%w: failed to take ioc lock: %v", domain.ErrStoreUnavailable, err)
	}

	insertAssessment := `
		INSERT INTO assessments (id, ioc_value, ioc_type, score, risk_level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, insertAssessment,
		assessment.ID,
		assessment.IOC.Value,
		assessment.IOC.Type,
		assessment.Score,
		assessment.Tier.String(),
		assessment.CreatedAt,
	); err != nil {
		return fmt.Errorf("%w: failed to insert assessment: %v", domain.ErrStoreUnavailable, err)
	}

	batch := &pgx.Batch{}
	insertResult := `
		INSERT INTO assessment_results (assessment_id, provider, status, signal, latency_ms)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, result := range assessment.Results {
		var signal []byte
		if result.Signal != nil {
			signal, err = json.Marshal(result.Signal)
			if err != nil {
				return fmt.Errorf("failed to marshal %s signal: %w", result.Provider, err)
			}
		}
		batch.Queue(insertResult, assessment.ID, result.Provider, result.Status, signal, result.LatencyMS)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("%w: failed to insert provider result: %v", domain.ErrStoreUnavailable, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("%w: failed to close result batch: %v", domain.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit assessment: %v", domain.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *PostgresHistoryStore) ListByIOC(ctx context.Context, ioc domain.IOC) ([]domain.Assessment, error) {
	query := `
		SELECT id, ioc_value, ioc_type, score, risk_level, created_at
		FROM assessments
		WHERE ioc_value = $1 AND ioc_type = $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, ioc.Value, ioc.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query history: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	assessments, err := scanAssessments(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachResults(ctx, assessments); err != nil {
		return nil, err
	}

	return assessments, nil
}

func (r *PostgresHistoryStore) LatestByIOC(ctx context.Context, ioc domain.IOC) (*domain.Assessment, error) {
	query := `
		SELECT id, ioc_value, ioc_type, score, risk_level, created_at
		FROM assessments
		WHERE ioc_value = $1 AND ioc_type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	var (
		a    domain.Assessment
		tier string
	)
	err := r.db.QueryRow(ctx, query, ioc.Value, ioc.Type).Scan(
		&a.ID, &a.IOC.Value, &a.IOC.Type, &a.Score, &tier, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to query latest assessment: %v", domain.ErrStoreUnavailable, err)
	}

	parsed, err := domain.ParseRiskTier(tier)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored risk level: %w", err)
	}
	a.Tier = parsed

	single := []domain.Assessment{a}
	if err := r.attachResults(ctx, single); err != nil {
		return nil, err
	}

	return &single[0], nil
}

func (r *PostgresHistoryStore) ListIOCs(ctx context.Context) ([]domain.IOC, error) {
	query := `
		SELECT DISTINCT ioc_value, ioc_type
		FROM assessments
		ORDER BY ioc_value
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query iocs: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var iocs []domain.IOC

	for rows.Next() {
		var ioc domain.IOC
		if err := rows.Scan(&ioc.Value, &ioc.Type); err != nil {
			return nil, fmt.Errorf("%w: failed to scan ioc: %v", domain.ErrStoreUnavailable, err)
		}
		iocs = append(iocs, ioc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating rows: %v", domain.ErrStoreUnavailable, err)
	}

	return iocs, nil
}

func (r *PostgresHistoryStore) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Assessment, error) {
	query := `
		SELECT id, ioc_value, ioc_type, score, risk_level, created_at
		FROM assessments
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query assessments since %v: %v", domain.ErrStoreUnavailable, since, err)
	}
	defer rows.Close()

	assessments, err := scanAssessments(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachResults(ctx, assessments); err != nil {
		return nil, err
	}

	return assessments, nil
}

// attachResults loads the provider results for every assessment in place.
// Results come back in provider order, matching the order assessments are
// built with.
func (r *PostgresHistoryStore) attachResults(ctx context.Context, assessments []domain.Assessment) error {
	if len(assessments) == 0 {
		return nil
	}

	ids := make([]string, len(assessments))
	index := make(map[string]int, len(assessments))
	for i, a := range assessments {
		ids[i] = a.ID
		index[a.ID] = i
	}

	query := `
		SELECT assessment_id, provider, status, signal, latency_ms
		FROM assessment_results
		WHERE assessment_id = ANY($1)
		ORDER BY assessment_id, provider
	`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("%w: failed to query provider results: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       string
			provider domain.ProviderName
			status   domain.ProviderStatus
			signal   []byte
			latency  int64
		)
		if err := rows.Scan(&id, &provider, &status, &signal, &latency); err != nil {
			return fmt.Errorf("%w: failed to scan provider result: %v", domain.ErrStoreUnavailable, err)
		}

		result := domain.ProviderResult{Provider: provider, Status: status, LatencyMS: latency}
		if status == domain.StatusOK && len(signal) > 0 {
			decoded, err := domain.DecodeSignal(provider, signal)
			if err != nil {
				return fmt.Errorf("failed to decode stored signal: %w", err)
			}
			result.Signal = decoded
		}

		i, ok := index[id]
		if !ok {
			continue
		}
		assessments[i].Results = append(assessments[i].Results, result)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: error iterating result rows: %v", domain.ErrStoreUnavailable, err)
	}

	return nil
}

func scanAssessments(rows pgx.Rows) ([]domain.Assessment, error) {
	var assessments []domain.Assessment

	for rows.Next() {
		var (
			a    domain.Assessment
			tier string
		)
		if err := rows.Scan(&a.ID, &a.IOC.Value, &a.IOC.Type, &a.Score, &tier, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan assessment: %v", domain.ErrStoreUnavailable, err)
		}

		parsed, err := domain.ParseRiskTier(tier)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored risk level: %w", err)
		}
		a.Tier = parsed

		assessments = append(assessments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating rows: %v", domain.ErrStoreUnavailable, err)
	}

	return assessments, nil
}
