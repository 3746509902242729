package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/revision-hub/revision-hub/internal/domain/branch"
	"github.com/revision-hub/revision-hub/internal/domain/diff"
	"github.com/revision-hub/revision-hub/internal/domain/metrics"
	"github.com/revision-hub/revision-hub/internal/domain/version"
)

// Store is an in-memory implementation of all engine repositories. It
// honors the same serialization and uniqueness guarantees as the
// postgres backend and backs the application-level tests.
type Store struct {
	mu       sync.Mutex
	versions map[string][]*version.Version     // workflow id -> versions in creation order
	branches map[string]map[string]*branch.Branch
	diffs    map[string]*diff.VersionDiff
	metrics  map[string]*metrics.VersionMetrics
	nextID   int64
}

func NewStore() *Store {
	return &Store{
		versions: make(map[string][]*version.Version),
		branches: make(map[string]map[string]*branch.Branch),
		diffs:    make(map[string]*diff.VersionDiff),
		metrics:  make(map[string]*metrics.VersionMetrics),
	}
}

// Versions returns the version repository view of the store.
func (s *Store) Versions() version.Repository { return (*versionRepo)(s) }

// Branches returns the branch repository view of the store.
func (s *Store) Branches() branch.Repository { return (*branchRepo)(s) }

// Diffs returns the diff cache view of the store.
func (s *Store) Diffs() diff.Repository { return (*diffRepo)(s) }

// Metrics returns the metrics repository view of the store.
func (s *Store) Metrics() metrics.Repository { return (*metricsRepo)(s) }

type versionRepo Store

func (r *versionRepo) Commit(ctx context.Context, workflowID, branchName string, opts version.CommitOptions, build version.BuildFunc) (*version.Version, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var parent *version.Version
	if b, ok := s.branches[workflowID][branchName]; ok {
		parent = s.findLocked(workflowID, b.CurrentVersion)
	}

	v, err := build(parent)
	if err != nil {
		return nil, err
	}

	// Version strings are unique per workflow. Diverged branches can
	// bump to the same string, so re-allocate until free.
	for s.findLocked(workflowID, v.Version) != nil {
		v.Version = version.NextVersion(v.Version, v.VersionType)
	}

	if !opts.SkipDuplicateCheck {
		for _, existing := range s.versions[workflowID] {
			if existing.IsActive && existing.Checksum == v.Checksum {
				return nil, fmt.Errorf("%w: matches %s", version.ErrDuplicate, existing.Version)
			}
		}
	}

	s.nextID++
	v.ID = s.nextID
	s.versions[workflowID] = append(s.versions[workflowID], v)

	if s.branches[workflowID] == nil {
		s.branches[workflowID] = make(map[string]*branch.Branch)
	}
	if b, ok := s.branches[workflowID][branchName]; ok {
		b.CurrentVersion = v.Version
	} else {
		s.branches[workflowID][branchName] = &branch.Branch{
			ID:             v.ID,
			WorkflowID:     workflowID,
			Name:           branchName,
			BaseVersion:    v.Version,
			CurrentVersion: v.Version,
			CreatedAt:      v.CreatedAt,
			CreatedBy:      v.CreatedBy,
			MergeStrategy:  branch.MergeOverwrite,
		}
	}
	return v, nil
}

func (r *versionRepo) GetByVersion(ctx context.Context, workflowID, ver string) (*version.Version, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(workflowID, ver), nil
}

func (r *versionRepo) ListByBranch(ctx context.Context, workflowID, branchName string, limit int) ([]*version.Version, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*version.Version
	for _, v := range s.versions[workflowID] {
		if v.BranchName == branchName {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *versionRepo) SoftDelete(ctx context.Context, workflowID, ver string, audit version.DeleteAudit) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.branches[workflowID] {
		if b.CurrentVersion == ver {
			return fmt.Errorf("%w: %s@%s", version.ErrInUse, workflowID, ver)
		}
	}
	v := s.findLocked(workflowID, ver)
	if v == nil || !v.IsActive {
		return fmt.Errorf("%w: %s@%s", version.ErrNotFound, workflowID, ver)
	}
	v.IsActive = false
	a := audit
	v.DeleteAudit = &a
	return nil
}

func (s *Store) findLocked(workflowID, ver string) *version.Version {
	for _, v := range s.versions[workflowID] {
		if v.Version == ver {
			return v
		}
	}
	return nil
}

type branchRepo Store

func (r *branchRepo) Create(ctx context.Context, b *branch.Branch) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.branches[b.WorkflowID][b.Name]; ok {
		return fmt.Errorf("%w: %s/%s", branch.ErrExists, b.WorkflowID, b.Name)
	}
	if s.branches[b.WorkflowID] == nil {
		s.branches[b.WorkflowID] = make(map[string]*branch.Branch)
	}
	s.nextID++
	b.ID = s.nextID
	copied := *b
	s.branches[b.WorkflowID][b.Name] = &copied
	return nil
}

func (r *branchRepo) Get(ctx context.Context, workflowID, name string) (*branch.Branch, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.branches[workflowID][name]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (r *branchRepo) List(ctx context.Context, workflowID string) ([]*branch.Branch, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*branch.Branch
	for _, b := range s.branches[workflowID] {
		copied := *b
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type diffRepo Store

func diffKey(workflowID, from, to string) string {
	return workflowID + "|" + from + "|" + to
}

func (r *diffRepo) Get(ctx context.Context, workflowID, fromVersion, toVersion string) (*diff.VersionDiff, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diffs[diffKey(workflowID, fromVersion, toVersion)], nil
}

func (r *diffRepo) Put(ctx context.Context, workflowID string, d *diff.VersionDiff) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	key := diffKey(workflowID, d.FromVersion, d.ToVersion)
	if _, ok := s.diffs[key]; !ok {
		s.diffs[key] = d
	}
	return nil
}

type metricsRepo Store

func (r *metricsRepo) Upsert(ctx context.Context, workflowID, ver string, result metrics.ExecutionResult) (*metrics.VersionMetrics, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	key := workflowID + "|" + ver
	m, ok := s.metrics[key]
	if !ok {
		m = &metrics.VersionMetrics{WorkflowID: workflowID, Version: ver}
		s.metrics[key] = m
	}
	m.Apply(result)
	copied := *m
	return &copied, nil
}

func (r *metricsRepo) Get(ctx context.Context, workflowID, ver string) (*metrics.VersionMetrics, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.metrics[workflowID+"|"+ver]
	if !ok {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}
