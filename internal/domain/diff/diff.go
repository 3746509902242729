package diff

import (
	"encoding/json"
	"sort"

	"github.com/revision-hub/revision-hub/internal/domain/version"
)

// ImpactLevel is a coarse severity classification of a diff.
type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "low"
	ImpactMedium   ImpactLevel = "medium"
	ImpactHigh     ImpactLevel = "high"
	ImpactCritical ImpactLevel = "critical"
)

// ParamChange is an old/new pair for one changed value.
type ParamChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// StepModification breaks down how one surviving step changed between
// two versions.
type StepModification struct {
	StepID           string                 `json:"stepId"`
	ParameterChanges map[string]ParamChange `json:"parameterChanges,omitempty"`
	ExecutionChanges map[string]ParamChange `json:"executionChanges,omitempty"`
	MetadataChanges  map[string]ParamChange `json:"metadataChanges,omitempty"`
	Structural       bool                   `json:"structural"`
}

// DependencyChanges is the set difference of two dependency lists.
type DependencyChanges struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// VersionDiff is the structured difference between two versions of the
// same workflow. It is a deterministic function of the two documents,
// which makes it safe to cache by (workflow, from, to).
type VersionDiff struct {
	FromVersion       string                            `json:"fromVersion"`
	ToVersion         string                            `json:"toVersion"`
	AddedSteps        []string                          `json:"addedSteps"`
	RemovedSteps      []string                          `json:"removedSteps"`
	ModifiedSteps     []StepModification                `json:"modifiedSteps"`
	StructuralChanges []string                          `json:"structuralChanges"`
	ParametricChanges map[string]map[string]ParamChange `json:"parametricChanges,omitempty"`
	DependencyChanges *DependencyChanges                `json:"dependencyChanges,omitempty"`
	MetadataChanges   map[string]ParamChange            `json:"metadataChanges,omitempty"`
	ImpactLevel       ImpactLevel                       `json:"impactLevel"`
}

// Compute builds the structured diff between two parsed documents.
// The impact level is left unset; callers score it through a Policy.
func Compute(fromVer, toVer string, from, to *version.Document) *VersionDiff {
	d := &VersionDiff{
		FromVersion:  fromVer,
		ToVersion:    toVer,
		AddedSteps:   []string{},
		RemovedSteps: []string{},
	}

	fromSteps := from.StepsByID()
	toSteps := to.StepsByID()

	for id := range toSteps {
		if _, ok := fromSteps[id]; !ok {
			d.AddedSteps = append(d.AddedSteps, id)
		}
	}
	for id := range fromSteps {
		if _, ok := toSteps[id]; !ok {
			d.RemovedSteps = append(d.RemovedSteps, id)
		}
	}
	sort.Strings(d.AddedSteps)
	sort.Strings(d.RemovedSteps)

	for _, id := range d.AddedSteps {
		d.StructuralChanges = append(d.StructuralChanges, "step added: "+id)
	}
	for _, id := range d.RemovedSteps {
		d.StructuralChanges = append(d.StructuralChanges, "step removed: "+id)
	}

	common := make([]string, 0, len(toSteps))
	for id := range toSteps {
		if _, ok := fromSteps[id]; ok {
			common = append(common, id)
		}
	}
	sort.Strings(common)

	for _, id := range common {
		mod := diffStep(fromSteps[id], toSteps[id])
		if mod == nil {
			continue
		}
		d.ModifiedSteps = append(d.ModifiedSteps, *mod)
		if mod.Structural {
			d.StructuralChanges = append(d.StructuralChanges, "step restructured: "+id)
		}
		if len(mod.ParameterChanges) > 0 {
			if d.ParametricChanges == nil {
				d.ParametricChanges = make(map[string]map[string]ParamChange)
			}
			d.ParametricChanges[id] = mod.ParameterChanges
		}
	}

	if dep := diffStringSets(from.Dependencies, to.Dependencies); dep != nil {
		d.DependencyChanges = dep
	}

	d.MetadataChanges = diffRawFields(from.Fields, to.Fields)

	return d
}

// diffStep returns nil when the two steps serialize identically.
func diffStep(from, to version.Step) *StepModification {
	fb, _ := json.Marshal(from)
	tb, _ := json.Marshal(to)
	if string(fb) == string(tb) {
		return nil
	}
	mod := &StepModification{
		StepID:           to.ID,
		ParameterChanges: diffValueMaps(from.Parameters, to.Parameters),
		ExecutionChanges: diffValueMaps(from.ExecutionLogic, to.ExecutionLogic),
		MetadataChanges:  diffValueMaps(from.Metadata, to.Metadata),
	}
	mod.Structural = from.Type != to.Type ||
		from.Category != to.Category ||
		!stringSliceEqual(from.RequiredInputs, to.RequiredInputs) ||
		!stringSliceEqual(from.Outputs, to.Outputs)
	return mod
}

func diffValueMaps(from, to map[string]interface{}) map[string]ParamChange {
	changes := make(map[string]ParamChange)
	for key, ov := range from {
		nv, ok := to[key]
		if !ok {
			changes[key] = ParamChange{Old: ov, New: nil}
			continue
		}
		if !valueEqual(ov, nv) {
			changes[key] = ParamChange{Old: ov, New: nv}
		}
	}
	for key, nv := range to {
		if _, ok := from[key]; !ok {
			changes[key] = ParamChange{Old: nil, New: nv}
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

func diffRawFields(from, to map[string]json.RawMessage) map[string]ParamChange {
	changes := make(map[string]ParamChange)
	for key, ov := range from {
		nv, ok := to[key]
		if !ok {
			changes[key] = ParamChange{Old: decodeRaw(ov), New: nil}
			continue
		}
		co, _ := version.CanonicalJSON(ov)
		cn, _ := version.CanonicalJSON(nv)
		if string(co) != string(cn) {
			changes[key] = ParamChange{Old: decodeRaw(ov), New: decodeRaw(nv)}
		}
	}
	for key, nv := range to {
		if _, ok := from[key]; !ok {
			changes[key] = ParamChange{Old: nil, New: decodeRaw(nv)}
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

func decodeRaw(raw json.RawMessage) interface{} {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func diffStringSets(from, to []string) *DependencyChanges {
	fromSet := make(map[string]struct{}, len(from))
	for _, s := range from {
		fromSet[s] = struct{}{}
	}
	toSet := make(map[string]struct{}, len(to))
	for _, s := range to {
		toSet[s] = struct{}{}
	}
	dep := &DependencyChanges{}
	for s := range toSet {
		if _, ok := fromSet[s]; !ok {
			dep.Added = append(dep.Added, s)
		}
	}
	for s := range fromSet {
		if _, ok := toSet[s]; !ok {
			dep.Removed = append(dep.Removed, s)
		}
	}
	if len(dep.Added) == 0 && len(dep.Removed) == 0 {
		return nil
	}
	sort.Strings(dep.Added)
	sort.Strings(dep.Removed)
	return dep
}

// valueEqual compares decoded JSON values by serialization. A marshal
// failure counts as a change.
func valueEqual(a, b interface{}) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Score computes the weighted change count that feeds impact
// classification: structural changes weigh 3, modified steps and
// dependency change groups 2, parametric step changes 1.
func Score(d *VersionDiff) int {
	score := 3*len(d.StructuralChanges) + 2*len(d.ModifiedSteps) + len(d.ParametricChanges)
	if d.DependencyChanges != nil {
		score += 2
	}
	return score
}

// Summary is the flattened view of a diff returned by the façade:
// counts and impact rather than the full structure.
type Summary struct {
	FromVersion       string      `json:"fromVersion"`
	ToVersion         string      `json:"toVersion"`
	AddedSteps        int         `json:"addedSteps"`
	RemovedSteps      int         `json:"removedSteps"`
	ModifiedSteps     int         `json:"modifiedSteps"`
	StructuralChanges int         `json:"structuralChanges"`
	DependencyChanged bool        `json:"dependencyChanged"`
	MetadataChanges   int         `json:"metadataChanges"`
	ImpactLevel       ImpactLevel `json:"impactLevel"`
}

// Summarize flattens a diff.
func Summarize(d *VersionDiff) Summary {
	return Summary{
		FromVersion:       d.FromVersion,
		ToVersion:         d.ToVersion,
		AddedSteps:        len(d.AddedSteps),
		RemovedSteps:      len(d.RemovedSteps),
		ModifiedSteps:     len(d.ModifiedSteps),
		StructuralChanges: len(d.StructuralChanges),
		DependencyChanged: d.DependencyChanges != nil,
		MetadataChanges:   len(d.MetadataChanges),
		ImpactLevel:       d.ImpactLevel,
	}
}
