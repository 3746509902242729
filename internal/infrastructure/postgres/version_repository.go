package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revision-hub/revision-hub/internal/domain/branch"
	"github.com/revision-hub/revision-hub/internal/domain/version"
)

const versionColumns = `id, workflow_id, version, version_type, change_type, created_at, created_by,
		commit_message, tags, workflow_data, parent_version, branch_name, is_active, checksum,
		metadata, deleted_at, deleted_by, delete_reason`

// VersionRepository implements version.Repository.
type VersionRepository struct {
	pool *pgxpool.Pool
}

func NewVersionRepository(pool *pgxpool.Pool) *VersionRepository {
	return &VersionRepository{pool: pool}
}

// Commit serializes concurrent commits to the same (workflow, branch)
// with a transaction-scoped advisory lock, then runs the whole
// read-build-guard-insert-advance sequence inside that transaction.
func (r *VersionRepository) Commit(ctx context.Context, workflowID, branchName string, opts version.CommitOptions, build version.BuildFunc) (*version.Version, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin commit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, workflowID+"/"+branchName); err != nil {
		return nil, fmt.Errorf("failed to lock branch: %w", err)
	}

	parent, err := currentVersionTx(ctx, tx, workflowID, branchName)
	if err != nil {
		return nil, err
	}

	v, err := build(parent)
	if err != nil {
		return nil, err
	}

	// Diverged branches can allocate the same version string (both bump
	// from a common ancestor). (workflow_id, version) is unique, so
	// keep re-allocating against the conflicting string until free.
	for {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM workflow_versions WHERE workflow_id=$1 AND version=$2
			)
		`, workflowID, v.Version).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check version string: %w", err)
		}
		if !exists {
			break
		}
		v.Version = version.NextVersion(v.Version, v.VersionType)
	}

	if !opts.SkipDuplicateCheck {
		var existing string
		err := tx.QueryRow(ctx, `
			SELECT version FROM workflow_versions
			WHERE workflow_id=$1 AND checksum=$2 AND is_active
			LIMIT 1
		`, workflowID, v.Checksum).Scan(&existing)
		if err == nil {
			return nil, fmt.Errorf("%w: matches %s", version.ErrDuplicate, existing)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to check checksum: %w", err)
		}
	}

	// tags is NOT NULL; a nil slice encodes as SQL NULL.
	if v.Tags == nil {
		v.Tags = []string{}
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO workflow_versions
		(workflow_id, version, version_type, change_type, created_at, created_by, commit_message,
		 tags, workflow_data, parent_version, branch_name, is_active, checksum, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id
	`, v.WorkflowID, v.Version, v.VersionType, v.ChangeType, v.CreatedAt, v.CreatedBy, v.CommitMessage,
		v.Tags, v.WorkflowData, v.ParentVersion, v.BranchName, v.IsActive, v.Checksum, v.Metadata,
	).Scan(&v.ID); err != nil {
		return nil, fmt.Errorf("failed to insert version: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO workflow_branches
		(workflow_id, branch_name, base_version, current_version, created_at, created_by, is_protected, merge_strategy)
		VALUES ($1,$2,$3,$3,$4,$5,false,$6)
		ON CONFLICT (workflow_id, branch_name)
		DO UPDATE SET current_version = EXCLUDED.current_version
	`, workflowID, branchName, v.Version, v.CreatedAt, v.CreatedBy, branch.MergeOverwrite); err != nil {
		return nil, fmt.Errorf("failed to advance branch pointer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit version: %w", err)
	}
	return v, nil
}

func currentVersionTx(ctx context.Context, tx pgx.Tx, workflowID, branchName string) (*version.Version, error) {
	var current string
	err := tx.QueryRow(ctx, `
		SELECT current_version FROM workflow_branches
		WHERE workflow_id=$1 AND branch_name=$2
	`, workflowID, branchName).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read branch pointer: %w", err)
	}

	row := tx.QueryRow(ctx, `
		SELECT `+versionColumns+`
		FROM workflow_versions
		WHERE workflow_id=$1 AND version=$2
	`, workflowID, current)
	return scanVersion(row)
}

func (r *VersionRepository) GetByVersion(ctx context.Context, workflowID, ver string) (*version.Version, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+versionColumns+`
		FROM workflow_versions
		WHERE workflow_id=$1 AND version=$2
	`, workflowID, ver)
	return scanVersion(row)
}

func (r *VersionRepository) ListByBranch(ctx context.Context, workflowID, branchName string, limit int) ([]*version.Version, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+versionColumns+`
		FROM workflow_versions
		WHERE workflow_id=$1 AND branch_name=$2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, workflowID, branchName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var versions []*version.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// SoftDelete marks a version inactive unless a branch still points at
// it. The in-use check and the update share one transaction so a
// concurrent pointer advance cannot slip between them.
func (r *VersionRepository) SoftDelete(ctx context.Context, workflowID, ver string, audit version.DeleteAudit) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inUse bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM workflow_branches
			WHERE workflow_id=$1 AND current_version=$2
		)
	`, workflowID, ver).Scan(&inUse); err != nil {
		return fmt.Errorf("failed to check branch pointers: %w", err)
	}
	if inUse {
		return fmt.Errorf("%w: %s@%s", version.ErrInUse, workflowID, ver)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE workflow_versions
		SET is_active=false, deleted_at=$1, deleted_by=$2, delete_reason=$3
		WHERE workflow_id=$4 AND version=$5 AND is_active
	`, audit.DeletedAt, audit.DeletedBy, nullable(audit.DeleteReason), workflowID, ver)
	if err != nil {
		return fmt.Errorf("failed to soft-delete version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s@%s", version.ErrNotFound, workflowID, ver)
	}

	return tx.Commit(ctx)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanVersion(row pgx.Row) (*version.Version, error) {
	var v version.Version
	var data json.RawMessage
	var metadata *json.RawMessage
	var deletedAt *time.Time
	var deletedBy, deleteReason *string
	if err := row.Scan(
		&v.ID, &v.WorkflowID, &v.Version, &v.VersionType, &v.ChangeType, &v.CreatedAt, &v.CreatedBy,
		&v.CommitMessage, &v.Tags, &data, &v.ParentVersion, &v.BranchName, &v.IsActive, &v.Checksum,
		&metadata, &deletedAt, &deletedBy, &deleteReason,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	v.WorkflowData = data
	if metadata != nil {
		v.Metadata = *metadata
	}
	if deletedAt != nil {
		v.DeleteAudit = &version.DeleteAudit{DeletedAt: *deletedAt}
		if deletedBy != nil {
			v.DeleteAudit.DeletedBy = *deletedBy
		}
		if deleteReason != nil {
			v.DeleteAudit.DeleteReason = *deleteReason
		}
	}
	return &v, nil
}
