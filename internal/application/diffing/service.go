package diffing

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/revision-hub/revision-hub/internal/domain/diff"
	"github.com/revision-hub/revision-hub/internal/domain/version"
)

// Service computes structured diffs between two versions of a
// workflow, memoized through an in-process LRU in front of the
// persisted cache. Versions are immutable, so neither tier is ever
// invalidated.
type Service struct {
	versions version.Repository
	cache    diff.Repository
	policy   *diff.Policy
	memo     *lru.Cache
	logger   zerolog.Logger
}

// NewService creates a diff service. memoSize bounds the in-process
// tier; a non-positive size disables it.
func NewService(versions version.Repository, cache diff.Repository, policy *diff.Policy, memoSize int, logger zerolog.Logger) (*Service, error) {
	s := &Service{
		versions: versions,
		cache:    cache,
		policy:   policy,
		logger:   logger.With().Str("service", "diffing").Logger(),
	}
	if memoSize > 0 {
		memo, err := lru.New(memoSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create diff memo cache: %w", err)
		}
		s.memo = memo
	}
	return s, nil
}

func cacheKey(workflowID, from, to string) string {
	return workflowID + "|" + from + "|" + to
}

// Compare returns the diff between two versions of one workflow. Cache
// lookups run first; on a miss both versions are loaded, the diff
// computed and scored, and both cache tiers written. Cache write
// failures are logged and swallowed: the cache is an optimization and
// must never fail the read path.
func (s *Service) Compare(ctx context.Context, workflowID, from, to string) (*diff.VersionDiff, error) {
	key := cacheKey(workflowID, from, to)
	if s.memo != nil {
		if cached, ok := s.memo.Get(key); ok {
			return cached.(*diff.VersionDiff), nil
		}
	}

	cached, err := s.cache.Get(ctx, workflowID, from, to)
	if err != nil {
		s.logger.Warn().Err(err).Str("workflow_id", workflowID).Msg("diff cache read failed")
	} else if cached != nil {
		if s.memo != nil {
			s.memo.Add(key, cached)
		}
		return cached, nil
	}

	fromVer, err := s.loadVersion(ctx, workflowID, from)
	if err != nil {
		return nil, err
	}
	toVer, err := s.loadVersion(ctx, workflowID, to)
	if err != nil {
		return nil, err
	}

	fromDoc, err := version.ParseDocument(fromVer.WorkflowData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document of %s: %w", from, err)
	}
	toDoc, err := version.ParseDocument(toVer.WorkflowData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document of %s: %w", to, err)
	}

	d := diff.Compute(from, to, fromDoc, toDoc)
	s.policy.Classify(d)

	if err := s.cache.Put(ctx, workflowID, d); err != nil {
		s.logger.Warn().Err(err).Str("workflow_id", workflowID).Msg("diff cache write failed")
	}
	if s.memo != nil {
		s.memo.Add(key, d)
	}

	return d, nil
}

func (s *Service) loadVersion(ctx context.Context, workflowID, ver string) (*version.Version, error) {
	v, err := s.versions.GetByVersion(ctx, workflowID, ver)
	if err != nil {
		return nil, fmt.Errorf("failed to load version %s: %w", ver, err)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s@%s", version.ErrNotFound, workflowID, ver)
	}
	return v, nil
}
