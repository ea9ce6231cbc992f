package models

import "time"

// Assignment-mode policy values. The submission intake component reads the
// effective mode (template override unless INHERIT, else project) and rejects
// submissions that arrive without a resolvable assignment when one is required.
const (
	AssignmentModeOptional            = "OPTIONAL"
	AssignmentModeRequiredPerProject  = "REQUIRED_PER_PROJECT"
	AssignmentModeRequiredPerTemplate = "REQUIRED_PER_TEMPLATE"
	AssignmentModeInherit             = "INHERIT"
)

// Project status constants.
const (
	ProjectStatusDraft    = "DRAFT"
	ProjectStatusActive   = "ACTIVE"
	ProjectStatusArchived = "ARCHIVED"
)

// Project groups templates, enumerators and assignments under one field
// operation. ProjectTag is the stable prefix baked into assignment codes.
type Project struct {
	ID                      int64      `json:"id"`
	Name                    string     `json:"name"`
	Description             string     `json:"description"`
	ProjectTag              string     `json:"project_tag"`
	Status                  string     `json:"status"`
	AssignmentMode          string     `json:"assignment_mode"`
	AllowUnlistedFacilities bool       `json:"allow_unlisted_facilities"`
	CoverageSchemeID        *int64     `json:"coverage_scheme_id,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
	DeletedAt               *time.Time `json:"deleted_at,omitempty"`
}
