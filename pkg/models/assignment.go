package models

import "time"

// AssignmentFacility status constants.
const (
	FacilityStatusPending = "PENDING"
	FacilityStatusDone    = "DONE"
)

// Assignment binds an enumerator to a scope of work: a coverage node,
// an optional template (nil means any template in the project), an optional
// supervisor and a target facility list. CodeFull is issued once at creation
// and stays stable for the assignment's lifetime.
type Assignment struct {
	ID                    int64     `json:"id"`
	ProjectID             int64     `json:"project_id"`
	EnumeratorID          int64     `json:"enumerator_id"`
	SupervisorID          *int64    `json:"supervisor_id,omitempty"`
	TemplateID            *int64    `json:"template_id,omitempty"`
	CoverageNodeID        *int64    `json:"coverage_node_id,omitempty"`
	TargetFacilitiesCount *int      `json:"target_facilities_count,omitempty"`
	CodeSerial            int       `json:"code_serial"`
	CodeFull              string    `json:"code_full"`
	IsActive              bool      `json:"is_active"`
	CreatedAt             time.Time `json:"created_at"`
}

// AssignmentFacility is one row of an assignment's progress ledger.
// DoneSurveyID records which submission completed the facility and guards
// reverts: a facility is only reverted by the submission that claimed it.
type AssignmentFacility struct {
	ID           int64     `json:"id"`
	AssignmentID int64     `json:"assignment_id"`
	FacilityID   int64     `json:"facility_id"`
	FacilityName string    `json:"facility_name,omitempty"`
	Status       string    `json:"status"`
	DoneSurveyID *int64    `json:"done_survey_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AssignmentProgress is the completion counter set for one assignment.
// Target falls back to Total when no explicit target was set.
type AssignmentProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Target    int `json:"target"`
}
