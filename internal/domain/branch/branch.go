package branch

import (
	"errors"
	"time"
)

// DefaultBranch is the branch commits land on when none is named.
const DefaultBranch = "main"

// MergeStrategy names how a branch expects merges into it to behave.
// The engine currently implements only the overwrite strategy: a merge
// takes the source branch's document wholesale.
type MergeStrategy string

const (
	MergeOverwrite MergeStrategy = "overwrite"
)

var (
	ErrExists   = errors.New("branch already exists")
	ErrNotFound = errors.New("branch not found")
)

// Branch is a named, mutable pointer within one workflow's version
// graph. BaseVersion is fixed at creation; CurrentVersion advances on
// every commit, rollback, or merge targeting the branch.
type Branch struct {
	ID             int64         `json:"id"`
	WorkflowID     string        `json:"workflowId"`
	Name           string        `json:"name"`
	BaseVersion    string        `json:"baseVersion"`
	CurrentVersion string        `json:"currentVersion"`
	CreatedAt      time.Time     `json:"createdAt"`
	CreatedBy      string        `json:"createdBy"`
	IsProtected    bool          `json:"isProtected"`
	MergeStrategy  MergeStrategy `json:"mergeStrategy"`
}
