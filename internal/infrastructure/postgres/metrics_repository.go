package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revision-hub/revision-hub/internal/domain/metrics"
)

const metricsColumns = `workflow_id, version, execution_count, success_count, success_rate,
		avg_execution_time, error_count, performance_score, updated_at`

// MetricsRepository implements metrics.Repository.
type MetricsRepository struct {
	pool *pgxpool.Pool
}

func NewMetricsRepository(pool *pgxpool.Pool) *MetricsRepository {
	return &MetricsRepository{pool: pool}
}

// Upsert serializes the read-modify-write on the metrics row with a
// row lock so concurrent reports for the same version cannot lose
// increments.
func (r *MetricsRepository) Upsert(ctx context.Context, workflowID, ver string, result metrics.ExecutionResult) (*metrics.VersionMetrics, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin metrics transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// FOR UPDATE locks nothing when the row is absent, which would let
	// two concurrent first reports both read the zero state. Seed the
	// row first so there is always a row to lock.
	if _, err := tx.Exec(ctx, `
		INSERT INTO workflow_version_metrics (workflow_id, version, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (workflow_id, version) DO NOTHING
	`, workflowID, ver); err != nil {
		return nil, fmt.Errorf("failed to seed metrics row: %w", err)
	}

	m := &metrics.VersionMetrics{WorkflowID: workflowID, Version: ver}
	row := tx.QueryRow(ctx, `
		SELECT `+metricsColumns+`
		FROM workflow_version_metrics
		WHERE workflow_id=$1 AND version=$2
		FOR UPDATE
	`, workflowID, ver)
	existing, err := scanMetrics(row)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		m = existing
	}

	m.Apply(result)

	if _, err := tx.Exec(ctx, `
		INSERT INTO workflow_version_metrics
		(workflow_id, version, execution_count, success_count, success_rate,
		 avg_execution_time, error_count, performance_score, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (workflow_id, version) DO UPDATE SET
			execution_count = EXCLUDED.execution_count,
			success_count = EXCLUDED.success_count,
			success_rate = EXCLUDED.success_rate,
			avg_execution_time = EXCLUDED.avg_execution_time,
			error_count = EXCLUDED.error_count,
			performance_score = EXCLUDED.performance_score,
			updated_at = EXCLUDED.updated_at
	`, m.WorkflowID, m.Version, m.ExecutionCount, m.SuccessCount, m.SuccessRate,
		m.AvgExecutionTime, m.ErrorCount, m.PerformanceScore, m.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert metrics: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit metrics: %w", err)
	}
	return m, nil
}

func (r *MetricsRepository) Get(ctx context.Context, workflowID, ver string) (*metrics.VersionMetrics, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+metricsColumns+`
		FROM workflow_version_metrics
		WHERE workflow_id=$1 AND version=$2
	`, workflowID, ver)
	return scanMetrics(row)
}

func scanMetrics(row pgx.Row) (*metrics.VersionMetrics, error) {
	var m metrics.VersionMetrics
	if err := row.Scan(
		&m.WorkflowID, &m.Version, &m.ExecutionCount, &m.SuccessCount, &m.SuccessRate,
		&m.AvgExecutionTime, &m.ErrorCount, &m.PerformanceScore, &m.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
