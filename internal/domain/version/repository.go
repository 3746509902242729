package version

import "context"

// BuildFunc constructs the next version record given the branch's
// current version, which is nil on the first commit to a branch. It is
// invoked inside the commit transaction, after the branch has been
// serialized against concurrent commits.
type BuildFunc func(parent *Version) (*Version, error)

// CommitOptions tune a single commit.
type CommitOptions struct {
	// SkipDuplicateCheck disables the exact-duplicate checksum guard.
	// Merge and rollback commits intentionally duplicate the document
	// of an active version.
	SkipDuplicateCheck bool
}

// Repository defines version ledger persistence.
type Repository interface {
	// Commit runs the read-build-insert-advance sequence as a single
	// transaction serialized per (workflowID, branchName): it loads the
	// branch's current version, calls build, rejects the result with
	// ErrDuplicate when an active version with the same checksum exists
	// for the workflow (unless opted out), inserts the row, and
	// advances the branch pointer. A crash cannot leave the branch
	// pointing at a missing version.
	Commit(ctx context.Context, workflowID, branchName string, opts CommitOptions, build BuildFunc) (*Version, error)

	GetByVersion(ctx context.Context, workflowID, ver string) (*Version, error)
	ListByBranch(ctx context.Context, workflowID, branchName string, limit int) ([]*Version, error)

	// SoftDelete marks the version inactive and records the audit
	// fields. It returns ErrInUse when any branch still points at the
	// version and ErrNotFound when it does not exist.
	SoftDelete(ctx context.Context, workflowID, ver string, audit DeleteAudit) error
}
