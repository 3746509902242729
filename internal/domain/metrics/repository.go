package metrics

import "context"

// Repository persists per-version execution metrics.
type Repository interface {
	// Upsert folds result into the stored aggregate for the version,
	// initializing it on first report. The read-modify-write is
	// serialized per (workflowID, ver).
	Upsert(ctx context.Context, workflowID, ver string, result ExecutionResult) (*VersionMetrics, error)
	Get(ctx context.Context, workflowID, ver string) (*VersionMetrics, error)
}
