package versioning

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revision-hub/revision-hub/internal/application/branching"
	"github.com/revision-hub/revision-hub/internal/application/diffing"
	"github.com/revision-hub/revision-hub/internal/application/store"
	"github.com/revision-hub/revision-hub/internal/domain/branch"
	"github.com/revision-hub/revision-hub/internal/domain/diff"
	"github.com/revision-hub/revision-hub/internal/domain/version"
	"github.com/revision-hub/revision-hub/internal/infrastructure/memory"
	"github.com/revision-hub/revision-hub/internal/infrastructure/sse"
)

func newTestFacade(t *testing.T) (*Service, *sse.Hub) {
	t.Helper()
	mem := memory.NewStore()
	logger := zerolog.Nop()
	storeSvc := store.NewService(mem.Versions(), mem.Branches(), mem.Metrics(), logger)

	policy, err := diff.NewPolicy(diff.DefaultRules())
	require.NoError(t, err)
	diffSvc, err := diffing.NewService(mem.Versions(), mem.Diffs(), policy, 16, logger)
	require.NoError(t, err)

	hub := sse.NewHub()
	branchSvc := branching.NewService(storeSvc, logger)
	return NewService(storeSvc, diffSvc, branchSvc, hub, logger), hub
}

func TestCommitAutoBumpInference(t *testing.T) {
	svc, _ := newTestFacade(t)
	ctx := context.Background()

	// first commit has no base document: structural, so major
	v1, err := svc.Commit(ctx, "wf-1", json.RawMessage(`{"steps":[{"id":"a"}],"name":"wf"}`), "alice", "initial", BumpAuto, "main")
	require.NoError(t, err)
	assert.Equal(t, version.TypeMajor, v1.VersionType)
	assert.Equal(t, "2.0.0", v1.Version)

	// execution logic change bumps minor
	v2, err := svc.Commit(ctx, "wf-1", json.RawMessage(`{"steps":[{"id":"a","execution_logic":{"cmd":"run"}}],"name":"wf"}`), "alice", "logic", BumpAuto, "main")
	require.NoError(t, err)
	assert.Equal(t, version.TypeMinor, v2.VersionType)
	assert.Equal(t, "2.1.0", v2.Version)

	// metadata-only change bumps patch
	v3, err := svc.Commit(ctx, "wf-1", json.RawMessage(`{"steps":[{"id":"a","execution_logic":{"cmd":"run"}}],"name":"wf2"}`), "alice", "rename", BumpAuto, "main")
	require.NoError(t, err)
	assert.Equal(t, version.TypePatch, v3.VersionType)
	assert.Equal(t, "2.1.1", v3.Version)
}

func TestCommitExplicitBump(t *testing.T) {
	svc, _ := newTestFacade(t)
	ctx := context.Background()

	v1, err := svc.Commit(ctx, "wf-1", json.RawMessage(`{"steps":[{"id":"a"}]}`), "alice", "initial", "beta", "main")
	require.NoError(t, err)
	assert.Equal(t, version.TypeBeta, v1.VersionType)
	assert.Equal(t, "1.0.0-beta.1", v1.Version)

	v2, err := svc.Commit(ctx, "wf-1", json.RawMessage(`{"steps":[{"id":"a"},{"id":"b"}]}`), "alice", "more", "beta", "main")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-beta.2", v2.Version)
}

func TestCommitPublishesEvent(t *testing.T) {
	svc, hub := newTestFacade(t)
	client := hub.Subscribe("test-client")
	defer hub.Unsubscribe("test-client")

	v, err := svc.Commit(context.Background(), "wf-1", json.RawMessage(`{"steps":[{"id":"a"}]}`), "alice", "initial", "patch", "main")
	require.NoError(t, err)

	select {
	case event := <-client.Events:
		assert.Equal(t, "version.created", event.Type)
		assert.Equal(t, "wf-1", event.WorkflowID)
		assert.Equal(t, v.Version, event.Version)
		assert.Equal(t, "alice", event.Actor)
	default:
		t.Fatal("expected a version.created event")
	}
}

func TestRollbackRoundTrip(t *testing.T) {
	svc, _ := newTestFacade(t)
	ctx := context.Background()

	v1, err := svc.Commit(ctx, "wf-1", json.RawMessage(`{"steps":[{"id":"a"},{"id":"b"}]}`), "alice", "v1", "minor", "main")
	require.NoError(t, err)
	_, err = svc.Commit(ctx, "wf-1", json.RawMessage(`{"steps":[{"id":"a"}]}`), "alice", "v2", "minor", "main")
	require.NoError(t, err)

	rolled, err := svc.Rollback(ctx, "wf-1", v1.Version, "bob", "bad release")
	require.NoError(t, err)

	summary, err := svc.Compare(ctx, "wf-1", v1.Version, rolled.Version)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.AddedSteps)
	assert.Equal(t, 0, summary.RemovedSteps)
	assert.Equal(t, 0, summary.ModifiedSteps)
	assert.Equal(t, diff.ImpactLow, summary.ImpactLevel)
}

func TestCompareSummary(t *testing.T) {
	svc, _ := newTestFacade(t)
	ctx := context.Background()

	v1, err := svc.Commit(ctx, "wf-1", json.RawMessage(`{"steps":[{"id":"a"},{"id":"b"}]}`), "alice", "v1", "minor", "main")
	require.NoError(t, err)
	v2, err := svc.Commit(ctx, "wf-1", json.RawMessage(`{"steps":[{"id":"a"},{"id":"b"},{"id":"c"}]}`), "alice", "add c", "minor", "main")
	require.NoError(t, err)

	summary, err := svc.Compare(ctx, "wf-1", v1.Version, v2.Version)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.AddedSteps)
	assert.Equal(t, 0, summary.RemovedSteps)
	assert.NotZero(t, summary.StructuralChanges)
	assert.NotEqual(t, diff.ImpactCritical, summary.ImpactLevel)
}

func TestMergePublishesEvent(t *testing.T) {
	svc, hub := newTestFacade(t)
	ctx := context.Background()

	v1, err := svc.Commit(ctx, "wf-1", json.RawMessage(`{"steps":[{"id":"a"}]}`), "alice", "v1", "minor", "main")
	require.NoError(t, err)
	_, err = svc.CreateBranch(ctx, "wf-1", "feature", v1.Version, "alice", "")
	require.NoError(t, err)
	_, err = svc.Commit(ctx, "wf-1", json.RawMessage(`{"steps":[{"id":"a"},{"id":"f"}]}`), "alice", "feature", "minor", "feature")
	require.NoError(t, err)

	client := hub.Subscribe("test-client")
	defer hub.Unsubscribe("test-client")

	merged, err := svc.Merge(ctx, "wf-1", "feature", "main", "bob", "")
	require.NoError(t, err)

	select {
	case event := <-client.Events:
		assert.Equal(t, "branch.merged", event.Type)
		assert.Equal(t, merged.Version, event.Version)
		assert.Equal(t, "main", event.Branch)
	default:
		t.Fatal("expected a branch.merged event")
	}
}

// flakyBranches fails every lookup, simulating a backend outage.
type flakyBranches struct {
	branch.Repository
	err error
}

func (f *flakyBranches) Get(ctx context.Context, workflowID, name string) (*branch.Branch, error) {
	return nil, f.err
}

func TestCommitAutoBumpSurfacesBranchLookupFailure(t *testing.T) {
	mem := memory.NewStore()
	logger := zerolog.Nop()
	broken := &flakyBranches{Repository: mem.Branches(), err: errors.New("connection reset")}
	storeSvc := store.NewService(mem.Versions(), broken, mem.Metrics(), logger)

	policy, err := diff.NewPolicy(diff.DefaultRules())
	require.NoError(t, err)
	diffSvc, err := diffing.NewService(mem.Versions(), mem.Diffs(), policy, 16, logger)
	require.NoError(t, err)
	svc := NewService(storeSvc, diffSvc, branching.NewService(storeSvc, logger), sse.NewHub(), logger)

	// the outage must fail the commit, not classify it as a first
	// (structural, major) commit
	_, err = svc.Commit(context.Background(), "wf-1", json.RawMessage(`{"steps":[{"id":"a"}],"name":"wf"}`), "alice", "rename", BumpAuto, "main")
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection reset")
}
