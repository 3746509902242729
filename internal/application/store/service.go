package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/revision-hub/revision-hub/internal/domain/branch"
	"github.com/revision-hub/revision-hub/internal/domain/metrics"
	"github.com/revision-hub/revision-hub/internal/domain/version"
)

// baseVersion is the version a branch with no history bumps from.
const baseVersion = "1.0.0"

// Service is the version store: it owns the commit path and all reads
// and mutations of the version ledger, branch pointers, and metrics.
type Service struct {
	versions version.Repository
	branches branch.Repository
	metrics  metrics.Repository
	logger   zerolog.Logger
}

// NewService creates a version store service.
func NewService(versions version.Repository, branches branch.Repository, metricsRepo metrics.Repository, logger zerolog.Logger) *Service {
	return &Service{
		versions: versions,
		branches: branches,
		metrics:  metricsRepo,
		logger:   logger.With().Str("service", "store").Logger(),
	}
}

// CreateVersion commits a new immutable version onto a branch. The
// branch's current version is read, the change classified against its
// document, the next semver allocated, and the insert plus branch
// pointer advance performed in one serialized transaction. An active
// version with the same checksum rejects the commit with
// version.ErrDuplicate.
func (s *Service) CreateVersion(ctx context.Context, workflowID string, doc json.RawMessage, versionType version.Type, actorID, message string, tags []string, branchName string) (*version.Version, error) {
	return s.commit(ctx, workflowID, doc, versionType, actorID, message, tags, branchName, version.CommitOptions{})
}

// ReplayVersion commits a copy of an already-committed document,
// bypassing the exact-duplicate guard. Merge and rollback produce new
// versions whose documents deliberately match an active version.
func (s *Service) ReplayVersion(ctx context.Context, workflowID string, doc json.RawMessage, versionType version.Type, actorID, message string, tags []string, branchName string) (*version.Version, error) {
	return s.commit(ctx, workflowID, doc, versionType, actorID, message, tags, branchName, version.CommitOptions{SkipDuplicateCheck: true})
}

func (s *Service) commit(ctx context.Context, workflowID string, doc json.RawMessage, versionType version.Type, actorID, message string, tags []string, branchName string, opts version.CommitOptions) (*version.Version, error) {
	if branchName == "" {
		branchName = branch.DefaultBranch
	}
	if !versionType.Valid() {
		return nil, fmt.Errorf("invalid version type: %s", versionType)
	}

	newDoc, err := version.ParseDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow document: %w", err)
	}
	checksum, err := version.Checksum(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum workflow document: %w", err)
	}

	if tags == nil {
		tags = []string{}
	}

	v, err := s.versions.Commit(ctx, workflowID, branchName, opts, func(parent *version.Version) (*version.Version, error) {
		current := baseVersion
		var parentRef *string
		var oldDoc *version.Document
		if parent != nil {
			current = parent.Version
			ref := parent.Version
			parentRef = &ref
			oldDoc, err = version.ParseDocument(parent.WorkflowData)
			if err != nil {
				return nil, fmt.Errorf("failed to parse parent document: %w", err)
			}
		}

		return &version.Version{
			WorkflowID:    workflowID,
			Version:       version.NextVersion(current, versionType),
			VersionType:   versionType,
			ChangeType:    version.ClassifyChange(oldDoc, newDoc),
			CreatedAt:     time.Now().UTC(),
			CreatedBy:     actorID,
			CommitMessage: message,
			Tags:          tags,
			WorkflowData:  doc,
			ParentVersion: parentRef,
			BranchName:    branchName,
			IsActive:      true,
			Checksum:      checksum,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("workflow_id", workflowID).
		Str("version", v.Version).
		Str("branch", branchName).
		Str("change_type", string(v.ChangeType)).
		Msg("version created")

	return v, nil
}

// GetVersion retrieves one version.
func (s *Service) GetVersion(ctx context.Context, workflowID, ver string) (*version.Version, error) {
	v, err := s.versions.GetByVersion(ctx, workflowID, ver)
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s@%s", version.ErrNotFound, workflowID, ver)
	}
	return v, nil
}

// ListVersions lists a branch's versions, newest created first.
func (s *Service) ListVersions(ctx context.Context, workflowID, branchName string, limit int) ([]*version.Version, error) {
	if branchName == "" {
		branchName = branch.DefaultBranch
	}
	if limit <= 0 {
		limit = 50
	}
	return s.versions.ListByBranch(ctx, workflowID, branchName, limit)
}

// SoftDeleteVersion marks a version inactive with an audit record. A
// version still referenced by any branch pointer cannot be deleted.
func (s *Service) SoftDeleteVersion(ctx context.Context, workflowID, ver, actorID, reason string) error {
	audit := version.DeleteAudit{
		DeletedAt:    time.Now().UTC(),
		DeletedBy:    actorID,
		DeleteReason: reason,
	}
	if err := s.versions.SoftDelete(ctx, workflowID, ver, audit); err != nil {
		return err
	}
	s.logger.Info().
		Str("workflow_id", workflowID).
		Str("version", ver).
		Str("deleted_by", actorID).
		Msg("version soft-deleted")
	return nil
}

// CreateBranch creates a named branch at an existing base version.
func (s *Service) CreateBranch(ctx context.Context, workflowID, name, base, actorID string, strategy branch.MergeStrategy) (*branch.Branch, error) {
	if name == "" {
		return nil, fmt.Errorf("branch name is required")
	}
	if strategy == "" {
		strategy = branch.MergeOverwrite
	}

	baseVer, err := s.GetVersion(ctx, workflowID, base)
	if err != nil {
		return nil, err
	}

	b := &branch.Branch{
		WorkflowID:     workflowID,
		Name:           name,
		BaseVersion:    baseVer.Version,
		CurrentVersion: baseVer.Version,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      actorID,
		MergeStrategy:  strategy,
	}
	if err := s.branches.Create(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("workflow_id", workflowID).
		Str("branch", name).
		Str("base_version", base).
		Msg("branch created")

	return b, nil
}

// GetBranch retrieves one branch.
func (s *Service) GetBranch(ctx context.Context, workflowID, name string) (*branch.Branch, error) {
	b, err := s.branches.Get(ctx, workflowID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s/%s", branch.ErrNotFound, workflowID, name)
	}
	return b, nil
}

// ListBranches lists a workflow's branches.
func (s *Service) ListBranches(ctx context.Context, workflowID string) ([]*branch.Branch, error) {
	return s.branches.List(ctx, workflowID)
}

// ReportExecution folds one execution result into the version's
// running metrics.
func (s *Service) ReportExecution(ctx context.Context, workflowID, ver string, result metrics.ExecutionResult) (*metrics.VersionMetrics, error) {
	m, err := s.metrics.Upsert(ctx, workflowID, ver, result)
	if err != nil {
		return nil, fmt.Errorf("failed to update metrics: %w", err)
	}
	return m, nil
}

// GetMetrics retrieves a version's running metrics.
func (s *Service) GetMetrics(ctx context.Context, workflowID, ver string) (*metrics.VersionMetrics, error) {
	m, err := s.metrics.Get(ctx, workflowID, ver)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: no metrics for %s@%s", version.ErrNotFound, workflowID, ver)
	}
	return m, nil
}
