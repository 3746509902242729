package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revision-hub/revision-hub/internal/domain/branch"
)

const branchColumns = `id, workflow_id, branch_name, base_version, current_version, created_at,
		created_by, is_protected, merge_strategy`

// BranchRepository implements branch.Repository.
type BranchRepository struct {
	pool *pgxpool.Pool
}

func NewBranchRepository(pool *pgxpool.Pool) *BranchRepository {
	return &BranchRepository{pool: pool}
}

func (r *BranchRepository) Create(ctx context.Context, b *branch.Branch) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO workflow_branches
		(workflow_id, branch_name, base_version, current_version, created_at, created_by, is_protected, merge_strategy)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, b.WorkflowID, b.Name, b.BaseVersion, b.CurrentVersion, b.CreatedAt, b.CreatedBy, b.IsProtected, b.MergeStrategy,
	).Scan(&b.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s/%s", branch.ErrExists, b.WorkflowID, b.Name)
		}
		return fmt.Errorf("failed to create branch: %w", err)
	}
	return nil
}

func (r *BranchRepository) Get(ctx context.Context, workflowID, name string) (*branch.Branch, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+branchColumns+`
		FROM workflow_branches
		WHERE workflow_id=$1 AND branch_name=$2
	`, workflowID, name)
	return scanBranch(row)
}

func (r *BranchRepository) List(ctx context.Context, workflowID string) ([]*branch.Branch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+branchColumns+`
		FROM workflow_branches
		WHERE workflow_id=$1
		ORDER BY created_at ASC
	`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var branches []*branch.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func scanBranch(row pgx.Row) (*branch.Branch, error) {
	var b branch.Branch
	if err := row.Scan(
		&b.ID, &b.WorkflowID, &b.Name, &b.BaseVersion, &b.CurrentVersion, &b.CreatedAt,
		&b.CreatedBy, &b.IsProtected, &b.MergeStrategy,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}
