package version

import "encoding/json"

// ClassifyChange returns the single most significant category of change
// between two documents. Structural changes dominate because they carry
// the highest operational risk; the priority order is
// structural > execution > dependency > parametric > metadata.
// A nil or empty old document always classifies as structural.
func ClassifyChange(oldDoc, newDoc *Document) ChangeType {
	if oldDoc.IsEmpty() {
		return ChangeStructural
	}

	oldSteps := oldDoc.StepsByID()
	newSteps := newDoc.StepsByID()

	if len(oldSteps) != len(newSteps) {
		return ChangeStructural
	}
	for id := range newSteps {
		if _, ok := oldSteps[id]; !ok {
			return ChangeStructural
		}
	}

	for id, ns := range newSteps {
		os := oldSteps[id]
		if !jsonEqual(os.ExecutionLogic, ns.ExecutionLogic) {
			return ChangeExecution
		}
	}

	if !stringSetEqual(oldDoc.Dependencies, newDoc.Dependencies) {
		return ChangeDependency
	}

	for id, ns := range newSteps {
		os := oldSteps[id]
		if !jsonEqual(os.Parameters, ns.Parameters) {
			return ChangeParametric
		}
	}

	return ChangeMetadata
}

// jsonEqual compares two decoded JSON values by canonical
// serialization; encoding/json writes map keys in sorted order. A
// marshal failure counts as a change.
func jsonEqual(a, b interface{}) bool {
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

func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
