package branching

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/revision-hub/revision-hub/internal/application/store"
	"github.com/revision-hub/revision-hub/internal/domain/branch"
	"github.com/revision-hub/revision-hub/internal/domain/version"
)

// Service coordinates branch creation, merges, and rollbacks on top of
// the version store.
type Service struct {
	store  *store.Service
	logger zerolog.Logger
}

// NewService creates a branching service.
func NewService(storeSvc *store.Service, logger zerolog.Logger) *Service {
	return &Service{
		store:  storeSvc,
		logger: logger.With().Str("service", "branching").Logger(),
	}
}

// CreateBranch creates a branch at a base version.
func (s *Service) CreateBranch(ctx context.Context, workflowID, name, baseVersion, actorID string, strategy branch.MergeStrategy) (*branch.Branch, error) {
	return s.store.CreateBranch(ctx, workflowID, name, baseVersion, actorID, strategy)
}

// ListBranches lists a workflow's branches.
func (s *Service) ListBranches(ctx context.Context, workflowID string) ([]*branch.Branch, error) {
	return s.store.ListBranches(ctx, workflowID)
}

// MergeBranch commits the source branch's current document wholesale
// onto the target branch as a new minor version. There is no three-way
// merge: the source document wins at the document level.
func (s *Service) MergeBranch(ctx context.Context, workflowID, source, target, actorID, message string) (*version.Version, error) {
	sourceBranch, err := s.store.GetBranch(ctx, workflowID, source)
	if err != nil {
		return nil, fmt.Errorf("merge source: %w", err)
	}
	if _, err := s.store.GetBranch(ctx, workflowID, target); err != nil {
		return nil, fmt.Errorf("merge target: %w", err)
	}

	sourceVer, err := s.store.GetVersion(ctx, workflowID, sourceBranch.CurrentVersion)
	if err != nil {
		return nil, fmt.Errorf("merge source version: %w", err)
	}

	if message == "" {
		message = fmt.Sprintf("Merge branch %s into %s", source, target)
	}
	tags := []string{"merge", "from-" + source, "to-" + target}

	v, err := s.store.ReplayVersion(ctx, workflowID, sourceVer.WorkflowData, version.TypeMinor, actorID, message, tags, target)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("workflow_id", workflowID).
		Str("source", source).
		Str("target", target).
		Str("version", v.Version).
		Msg("branch merged")

	return v, nil
}

// RollbackToVersion appends a new hotfix version carrying an exact copy
// of the target version's document. History is never rewritten; the
// ledger only moves forward.
func (s *Service) RollbackToVersion(ctx context.Context, workflowID, targetVersion, actorID, reason string) (*version.Version, error) {
	target, err := s.store.GetVersion(ctx, workflowID, targetVersion)
	if err != nil {
		return nil, err
	}

	message := reason
	if message == "" {
		message = fmt.Sprintf("Rollback to %s", targetVersion)
	}
	tags := []string{"rollback", "from-" + targetVersion}

	v, err := s.store.ReplayVersion(ctx, workflowID, target.WorkflowData, version.TypeHotfix, actorID, message, tags, target.BranchName)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("workflow_id", workflowID).
		Str("target", targetVersion).
		Str("version", v.Version).
		Msg("rolled back")

	return v, nil
}
