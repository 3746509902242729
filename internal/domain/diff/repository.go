package diff

import "context"

// Repository persists computed diffs keyed by (workflow, from, to).
// Versions are immutable, so cached diffs never go stale; entries are
// written once and never invalidated.
type Repository interface {
	Get(ctx context.Context, workflowID, fromVersion, toVersion string) (*VersionDiff, error)
	Put(ctx context.Context, workflowID string, d *VersionDiff) error
}
