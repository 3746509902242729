package versioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/revision-hub/revision-hub/internal/application/branching"
	"github.com/revision-hub/revision-hub/internal/application/diffing"
	"github.com/revision-hub/revision-hub/internal/application/store"
	"github.com/revision-hub/revision-hub/internal/domain/branch"
	"github.com/revision-hub/revision-hub/internal/domain/diff"
	"github.com/revision-hub/revision-hub/internal/domain/version"
	"github.com/revision-hub/revision-hub/internal/infrastructure/sse"
)

// BumpAuto asks the façade to infer the bump kind from the change
// classification against the branch's latest version.
const BumpAuto = "auto"

// Service is the versioning façade: the two user-facing write flows
// (commit with optional auto bump, rollback) plus flattened compares,
// with stream events published on every write.
type Service struct {
	store     *store.Service
	diffing   *diffing.Service
	branching *branching.Service
	hub       *sse.Hub
	logger    zerolog.Logger
}

// NewService creates the façade.
func NewService(storeSvc *store.Service, diffSvc *diffing.Service, branchSvc *branching.Service, hub *sse.Hub, logger zerolog.Logger) *Service {
	return &Service{
		store:     storeSvc,
		diffing:   diffSvc,
		branching: branchSvc,
		hub:       hub,
		logger:    logger.With().Str("service", "versioning").Logger(),
	}
}

// Commit creates a new version on a branch. bump is one of the version
// types or "auto", which maps the classified change to a bump kind:
// structural changes bump major, execution changes minor, everything
// else patch.
func (s *Service) Commit(ctx context.Context, workflowID string, doc json.RawMessage, actorID, message, bump, branchName string) (*version.Version, error) {
	versionType := version.Type(bump)
	if bump == BumpAuto || bump == "" {
		inferred, err := s.inferBump(ctx, workflowID, doc, branchName)
		if err != nil {
			return nil, err
		}
		versionType = inferred
	}

	v, err := s.store.CreateVersion(ctx, workflowID, doc, versionType, actorID, message, nil, branchName)
	if err != nil {
		return nil, err
	}

	s.hub.Broadcast(sse.NewEvent("version.created", workflowID, v.Version, v.BranchName, actorID))
	return v, nil
}

// inferBump classifies the new document against the branch's latest
// version. A branch with no history classifies as structural.
func (s *Service) inferBump(ctx context.Context, workflowID string, doc json.RawMessage, branchName string) (version.Type, error) {
	if branchName == "" {
		branchName = branch.DefaultBranch
	}
	newDoc, err := version.ParseDocument(doc)
	if err != nil {
		return "", fmt.Errorf("failed to parse workflow document: %w", err)
	}

	// only a missing branch classifies as a first commit; any other
	// lookup failure must not degrade into a structural bump
	var oldDoc *version.Document
	b, err := s.store.GetBranch(ctx, workflowID, branchName)
	if err != nil && !errors.Is(err, branch.ErrNotFound) {
		return "", err
	}
	if b != nil {
		latest, err := s.store.GetVersion(ctx, workflowID, b.CurrentVersion)
		if err != nil {
			return "", err
		}
		oldDoc, err = version.ParseDocument(latest.WorkflowData)
		if err != nil {
			return "", fmt.Errorf("failed to parse latest document: %w", err)
		}
	}

	switch version.ClassifyChange(oldDoc, newDoc) {
	case version.ChangeStructural:
		return version.TypeMajor, nil
	case version.ChangeExecution:
		return version.TypeMinor, nil
	default:
		return version.TypePatch, nil
	}
}

// Rollback appends a forward-moving copy of the target version.
func (s *Service) Rollback(ctx context.Context, workflowID, targetVersion, actorID, reason string) (*version.Version, error) {
	v, err := s.branching.RollbackToVersion(ctx, workflowID, targetVersion, actorID, reason)
	if err != nil {
		return nil, err
	}
	s.hub.Broadcast(sse.NewEvent("version.rolled_back", workflowID, v.Version, v.BranchName, actorID))
	return v, nil
}

// Merge commits the source branch's document onto the target branch.
func (s *Service) Merge(ctx context.Context, workflowID, source, target, actorID, message string) (*version.Version, error) {
	v, err := s.branching.MergeBranch(ctx, workflowID, source, target, actorID, message)
	if err != nil {
		return nil, err
	}
	s.hub.Broadcast(sse.NewEvent("branch.merged", workflowID, v.Version, target, actorID))
	return v, nil
}

// Compare returns the flattened summary of the diff between two
// versions: counts and impact level rather than the full structure.
func (s *Service) Compare(ctx context.Context, workflowID, from, to string) (*diff.Summary, error) {
	d, err := s.diffing.Compare(ctx, workflowID, from, to)
	if err != nil {
		return nil, err
	}
	summary := diff.Summarize(d)
	return &summary, nil
}

// CreateBranch creates a branch at a base version.
func (s *Service) CreateBranch(ctx context.Context, workflowID, name, baseVersion, actorID string, strategy branch.MergeStrategy) (*branch.Branch, error) {
	return s.branching.CreateBranch(ctx, workflowID, name, baseVersion, actorID, strategy)
}
