package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revision-hub/revision-hub/internal/domain/diff"
)

// DiffRepository implements diff.Repository over a write-once cache
// table keyed by (workflow, from, to).
type DiffRepository struct {
	pool *pgxpool.Pool
}

func NewDiffRepository(pool *pgxpool.Pool) *DiffRepository {
	return &DiffRepository{pool: pool}
}

func (r *DiffRepository) Get(ctx context.Context, workflowID, fromVersion, toVersion string) (*diff.VersionDiff, error) {
	var payload json.RawMessage
	err := r.pool.QueryRow(ctx, `
		SELECT diff FROM workflow_version_diffs
		WHERE workflow_id=$1 AND from_version=$2 AND to_version=$3
	`, workflowID, fromVersion, toVersion).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var d diff.VersionDiff
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("failed to decode cached diff: %w", err)
	}
	return &d, nil
}

func (r *DiffRepository) Put(ctx context.Context, workflowID string, d *diff.VersionDiff) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode diff: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO workflow_version_diffs (workflow_id, from_version, to_version, diff, created_at)
		VALUES ($1,$2,$3,$4,NOW())
		ON CONFLICT (workflow_id, from_version, to_version) DO NOTHING
	`, workflowID, d.FromVersion, d.ToVersion, payload)
	return err
}
