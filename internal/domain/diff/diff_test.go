package diff

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revision-hub/revision-hub/internal/domain/version"
)

func parseDoc(t *testing.T, raw string) *version.Document {
	t.Helper()
	doc, err := version.ParseDocument(json.RawMessage(raw))
	require.NoError(t, err)
	return doc
}

func TestComputeAddedAndRemoved(t *testing.T) {
	from := parseDoc(t, `{"steps":[{"id":"a"},{"id":"b"}]}`)
	to := parseDoc(t, `{"steps":[{"id":"a"},{"id":"c"}]}`)

	d := Compute("1.0.0", "1.1.0", from, to)

	assert.Equal(t, []string{"c"}, d.AddedSteps)
	assert.Equal(t, []string{"b"}, d.RemovedSteps)
	assert.Contains(t, d.StructuralChanges, "step added: c")
	assert.Contains(t, d.StructuralChanges, "step removed: b")
	assert.Empty(t, d.ModifiedSteps)
}

func TestComputeModifiedStepBreakdown(t *testing.T) {
	from := parseDoc(t, `{"steps":[{"id":"a","type":"task","parameters":{"retries":1},"execution_logic":{"cmd":"run"}}]}`)
	to := parseDoc(t, `{"steps":[{"id":"a","type":"gate","parameters":{"retries":3},"execution_logic":{"cmd":"exec"}}]}`)

	d := Compute("1.0.0", "1.1.0", from, to)

	require.Len(t, d.ModifiedSteps, 1)
	mod := d.ModifiedSteps[0]
	assert.Equal(t, "a", mod.StepID)
	assert.True(t, mod.Structural)
	assert.Equal(t, ParamChange{Old: float64(1), New: float64(3)}, mod.ParameterChanges["retries"])
	assert.Equal(t, ParamChange{Old: "run", New: "exec"}, mod.ExecutionChanges["cmd"])
	require.Contains(t, d.ParametricChanges, "a")
}

func TestComputeNonStructuralModification(t *testing.T) {
	from := parseDoc(t, `{"steps":[{"id":"a","type":"task","parameters":{"retries":1}}]}`)
	to := parseDoc(t, `{"steps":[{"id":"a","type":"task","parameters":{"retries":2}}]}`)

	d := Compute("1.0.0", "1.0.1", from, to)

	require.Len(t, d.ModifiedSteps, 1)
	assert.False(t, d.ModifiedSteps[0].Structural)
	assert.Empty(t, d.StructuralChanges)
}

func TestComputeDependencyAndMetadataChanges(t *testing.T) {
	from := parseDoc(t, `{"steps":[{"id":"a"}],"dependencies":["x","y"],"name":"wf","owner":"team-a"}`)
	to := parseDoc(t, `{"steps":[{"id":"a"}],"dependencies":["y","z"],"name":"wf","owner":"team-b"}`)

	d := Compute("1.0.0", "1.0.1", from, to)

	require.NotNil(t, d.DependencyChanges)
	assert.Equal(t, []string{"z"}, d.DependencyChanges.Added)
	assert.Equal(t, []string{"x"}, d.DependencyChanges.Removed)
	require.Contains(t, d.MetadataChanges, "owner")
	assert.Equal(t, "team-a", d.MetadataChanges["owner"].Old)
	assert.Equal(t, "team-b", d.MetadataChanges["owner"].New)
	assert.NotContains(t, d.MetadataChanges, "name")
}

func TestComputeIdenticalDocuments(t *testing.T) {
	raw := `{"steps":[{"id":"a","parameters":{"x":1}}],"dependencies":["d"],"name":"wf"}`
	d := Compute("1.0.0", "1.0.1", parseDoc(t, raw), parseDoc(t, raw))

	assert.Empty(t, d.AddedSteps)
	assert.Empty(t, d.RemovedSteps)
	assert.Empty(t, d.ModifiedSteps)
	assert.Nil(t, d.DependencyChanges)
	assert.Empty(t, d.MetadataChanges)
	assert.Equal(t, 0, Score(d))
}

func TestComputeDeterministic(t *testing.T) {
	from := parseDoc(t, `{"steps":[{"id":"a"},{"id":"b"},{"id":"c"}],"dependencies":["x"]}`)
	to := parseDoc(t, `{"steps":[{"id":"c"},{"id":"d"},{"id":"e"}],"dependencies":["y"]}`)

	first, err := json.Marshal(Compute("1.0.0", "2.0.0", from, to))
	require.NoError(t, err)
	second, err := json.Marshal(Compute("1.0.0", "2.0.0", from, to))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestScoreWeighting(t *testing.T) {
	d := &VersionDiff{
		StructuralChanges: []string{"step added: a", "step added: b"},
		ModifiedSteps:     []StepModification{{StepID: "c"}},
		ParametricChanges: map[string]map[string]ParamChange{"c": nil},
		DependencyChanges: &DependencyChanges{Added: []string{"x"}},
	}
	// 3*2 + 2*1 + 2 + 1
	assert.Equal(t, 11, Score(d))
}

func TestSummarize(t *testing.T) {
	d := &VersionDiff{
		FromVersion:       "1.0.0",
		ToVersion:         "1.1.0",
		AddedSteps:        []string{"c"},
		RemovedSteps:      []string{},
		StructuralChanges: []string{"step added: c"},
		ImpactLevel:       ImpactLow,
	}
	s := Summarize(d)
	assert.Equal(t, 1, s.AddedSteps)
	assert.Equal(t, 0, s.RemovedSteps)
	assert.Equal(t, ImpactLow, s.ImpactLevel)
	assert.False(t, s.DependencyChanged)
}
