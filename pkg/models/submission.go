package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission status constants.
const (
	SubmissionStatusDraft     = "DRAFT"
	SubmissionStatusCompleted = "COMPLETED"
)

// Review status constants. Review is an explicit reviewer action; QA scoring
// never sets these.
const (
	ReviewStatusPending  = "PENDING"
	ReviewStatusApproved = "APPROVED"
	ReviewStatusRejected = "REJECTED"
	ReviewStatusRevision = "REVISION"
)

// QAFlag is one member of the closed set of quality-assurance flags
// persisted on a submission.
type QAFlag string

// QA flag constants.
const (
	FlagMissingRequired      QAFlag = "MISSING_REQUIRED"
	FlagEmptyAnswers         QAFlag = "EMPTY_ANSWERS"
	FlagLowConfidence        QAFlag = "LOW_CONFIDENCE"
	FlagGPSMissing           QAFlag = "GPS_MISSING"
	FlagGPSOutsideCoverage   QAFlag = "GPS_OUTSIDE_COVERAGE"
	FlagSuspiciousValues     QAFlag = "SUSPICIOUS_VALUES"
	FlagDuplicateFacilityDay QAFlag = "DUPLICATE_FACILITY_DAY"
	FlagUnlistedFacilityUsed QAFlag = "UNLISTED_FACILITY_USED"
)

// IsValid returns true if the flag is a known QA flag.
func (f QAFlag) IsValid() bool {
	switch f {
	case FlagMissingRequired, FlagEmptyAnswers, FlagLowConfidence,
		FlagGPSMissing, FlagGPSOutsideCoverage, FlagSuspiciousValues,
		FlagDuplicateFacilityDay, FlagUnlistedFacilityUsed:
		return true
	default:
		return false
	}
}

// FlagStrings converts a flag slice to plain strings for array binding.
func FlagStrings(flags []QAFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

// FlagsFromStrings converts persisted strings back to typed flags.
func FlagsFromStrings(values []string) []QAFlag {
	out := make([]QAFlag, len(values))
	for i, v := range values {
		out[i] = QAFlag(v)
	}
	return out
}

// GPSFix is the optional location block captured with a submission.
type GPSFix struct {
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// Submission is one instance of collected data with its answers.
// ClientUUID is the client-supplied idempotency key; replays of the same key
// return the original row.
type Submission struct {
	ID                   int64      `json:"id"`
	ProjectID            int64      `json:"project_id"`
	TemplateID           int64      `json:"template_id"`
	AssignmentID         *int64     `json:"assignment_id,omitempty"`
	EnumeratorID         *int64     `json:"enumerator_id,omitempty"`
	EnumeratorName       string     `json:"enumerator_name,omitempty"`
	FacilityID           int64      `json:"facility_id"`
	CoverageNodeID       *int64     `json:"coverage_node_id,omitempty"`
	Status               string     `json:"status"`
	ReviewStatus         string     `json:"review_status"`
	ReviewReason         *string    `json:"review_reason,omitempty"`
	ReviewedBy           *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time `json:"reviewed_at,omitempty"`
	ClientUUID           *uuid.UUID `json:"client_uuid,omitempty"`
	GPS                  *GPSFix    `json:"gps,omitempty"`
	GPSMissing           bool       `json:"gps_missing"`
	Duplicate            bool       `json:"duplicate"`
	QAFlags              []QAFlag   `json:"qa_flags"`
	ConsentAnswer        *string    `json:"consent_answer,omitempty"`
	ConsentSignature     *string    `json:"consent_signature,omitempty"`
	AttestationConfirmed *bool      `json:"attestation_confirmed,omitempty"`
	SyncSource           *string    `json:"sync_source,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
	DeletedAt            *time.Time `json:"deleted_at,omitempty"`
}

// Answer is one answered question on a submission. Answers are replaced
// wholesale on edit, never merged.
type Answer struct {
	ID           int64    `json:"id"`
	SubmissionID int64    `json:"submission_id"`
	QuestionID   *int64   `json:"question_id,omitempty"`
	QuestionText string   `json:"question_text"`
	AnswerText   *string  `json:"answer_text,omitempty"`
	Source       *string  `json:"source,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
}
