package diffing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/revision-hub/revision-hub/internal/application/store"
	"github.com/revision-hub/revision-hub/internal/domain/diff"
	"github.com/revision-hub/revision-hub/internal/domain/version"
	"github.com/revision-hub/revision-hub/internal/infrastructure/memory"
)

// MockDiffRepository is a mock implementation of diff.Repository
type MockDiffRepository struct {
	mock.Mock
}

func (m *MockDiffRepository) Get(ctx context.Context, workflowID, fromVersion, toVersion string) (*diff.VersionDiff, error) {
	args := m.Called(ctx, workflowID, fromVersion, toVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*diff.VersionDiff), args.Error(1)
}

func (m *MockDiffRepository) Put(ctx context.Context, workflowID string, d *diff.VersionDiff) error {
	args := m.Called(ctx, workflowID, d)
	return args.Error(0)
}

func defaultPolicy(t *testing.T) *diff.Policy {
	t.Helper()
	policy, err := diff.NewPolicy(diff.DefaultRules())
	require.NoError(t, err)
	return policy
}

func seedVersions(t *testing.T, mem *memory.Store) (v1, v2 string) {
	t.Helper()
	svc := store.NewService(mem.Versions(), mem.Branches(), mem.Metrics(), zerolog.Nop())
	ctx := context.Background()

	first, err := svc.CreateVersion(ctx, "wf-1", json.RawMessage(`{"steps":[{"id":"a"},{"id":"b"}]}`), version.TypeMinor, "alice", "v1", nil, "main")
	require.NoError(t, err)
	second, err := svc.CreateVersion(ctx, "wf-1", json.RawMessage(`{"steps":[{"id":"a"},{"id":"b"},{"id":"c"}]}`), version.TypeMajor, "alice", "add c", nil, "main")
	require.NoError(t, err)
	return first.Version, second.Version
}

func TestCompareComputesAndCaches(t *testing.T) {
	mem := memory.NewStore()
	v1, v2 := seedVersions(t, mem)

	svc, err := NewService(mem.Versions(), mem.Diffs(), defaultPolicy(t), 16, zerolog.Nop())
	require.NoError(t, err)

	d, err := svc.Compare(context.Background(), "wf-1", v1, v2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, d.AddedSteps)
	assert.Empty(t, d.RemovedSteps)
	assert.NotEmpty(t, d.StructuralChanges)
	assert.NotEqual(t, diff.ImpactCritical, d.ImpactLevel)

	cached, err := mem.Diffs().Get(context.Background(), "wf-1", v1, v2)
	require.NoError(t, err)
	require.NotNil(t, cached)
}

func TestCompareDeterministicAcrossCacheTiers(t *testing.T) {
	mem := memory.NewStore()
	v1, v2 := seedVersions(t, mem)

	cold, err := NewService(mem.Versions(), mem.Diffs(), defaultPolicy(t), 0, zerolog.Nop())
	require.NoError(t, err)
	warm, err := NewService(mem.Versions(), mem.Diffs(), defaultPolicy(t), 16, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	first, err := cold.Compare(ctx, "wf-1", v1, v2)
	require.NoError(t, err)
	second, err := warm.Compare(ctx, "wf-1", v1, v2) // persisted cache hit
	require.NoError(t, err)
	third, err := warm.Compare(ctx, "wf-1", v1, v2) // memo hit
	require.NoError(t, err)

	fb, _ := json.Marshal(first)
	sb, _ := json.Marshal(second)
	tb, _ := json.Marshal(third)
	assert.Equal(t, string(fb), string(sb))
	assert.Equal(t, string(sb), string(tb))
}

func TestCompareMissingVersion(t *testing.T) {
	mem := memory.NewStore()
	v1, _ := seedVersions(t, mem)

	svc, err := NewService(mem.Versions(), mem.Diffs(), defaultPolicy(t), 16, zerolog.Nop())
	require.NoError(t, err)

	_, err = svc.Compare(context.Background(), "wf-1", v1, "9.9.9")
	assert.ErrorIs(t, err, version.ErrNotFound)

	_, err = svc.Compare(context.Background(), "wf-1", "9.9.9", v1)
	assert.ErrorIs(t, err, version.ErrNotFound)
}

func TestCompareSurvivesCacheFailures(t *testing.T) {
	mem := memory.NewStore()
	v1, v2 := seedVersions(t, mem)

	cache := new(MockDiffRepository)
	cache.On("Get", mock.Anything, "wf-1", v1, v2).Return(nil, errors.New("cache down"))
	cache.On("Put", mock.Anything, "wf-1", mock.Anything).Return(errors.New("cache down"))

	svc, err := NewService(mem.Versions(), cache, defaultPolicy(t), 0, zerolog.Nop())
	require.NoError(t, err)

	d, err := svc.Compare(context.Background(), "wf-1", v1, v2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, d.AddedSteps)
	cache.AssertExpectations(t)
}
