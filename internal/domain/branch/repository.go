package branch

import "context"

// Repository defines branch pointer persistence.
type Repository interface {
	// Create inserts a new branch row. It returns ErrExists when the
	// (workflowID, name) pair is already taken.
	Create(ctx context.Context, b *Branch) error
	Get(ctx context.Context, workflowID, name string) (*Branch, error)
	List(ctx context.Context, workflowID string) ([]*Branch, error)
}
