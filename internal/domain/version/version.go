package version

import (
	"encoding/json"
	"errors"
	"time"
)

// Type classifies the scope of a version bump.
type Type string

const (
	TypeMajor  Type = "major"
	TypeMinor  Type = "minor"
	TypePatch  Type = "patch"
	TypeHotfix Type = "hotfix"
	TypeBeta   Type = "beta"
	TypeAlpha  Type = "alpha"
)

// ChangeType is the single most significant category of change between
// two workflow documents.
type ChangeType string

const (
	ChangeStructural ChangeType = "structural"
	ChangeParametric ChangeType = "parametric"
	ChangeExecution  ChangeType = "execution"
	ChangeMetadata   ChangeType = "metadata"
	ChangeDependency ChangeType = "dependency"
)

var (
	ErrNotFound  = errors.New("version not found")
	ErrDuplicate = errors.New("duplicate version: identical document already committed")
	ErrInUse     = errors.New("version is referenced by a branch")
)

// DeleteAudit records who removed a version and why. Soft-deleted
// versions keep their row so history and parent chains stay walkable.
type DeleteAudit struct {
	DeletedAt    time.Time `json:"deleted_at"`
	DeletedBy    string    `json:"deleted_by"`
	DeleteReason string    `json:"delete_reason,omitempty"`
}

// Version is an immutable snapshot of a workflow document.
// Rows are never mutated after insert except for the soft-delete flag
// and its audit fields.
type Version struct {
	ID            int64           `json:"id"`
	WorkflowID    string          `json:"workflowId"`
	Version       string          `json:"version"`
	VersionType   Type            `json:"versionType"`
	ChangeType    ChangeType      `json:"changeType"`
	CreatedAt     time.Time       `json:"createdAt"`
	CreatedBy     string          `json:"createdBy"`
	CommitMessage string          `json:"commitMessage"`
	Tags          []string        `json:"tags,omitempty"`
	WorkflowData  json.RawMessage `json:"workflowData"`
	ParentVersion *string         `json:"parentVersion,omitempty"`
	BranchName    string          `json:"branchName"`
	IsActive      bool            `json:"isActive"`
	Checksum      string          `json:"checksum"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	DeleteAudit   *DeleteAudit    `json:"deleteAudit,omitempty"`
}

// Valid reports whether t is a known version type.
func (t Type) Valid() bool {
	switch t {
	case TypeMajor, TypeMinor, TypePatch, TypeHotfix, TypeBeta, TypeAlpha:
		return true
	}
	return false
}
