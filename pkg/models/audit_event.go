package models

import "time"

// Audit action constants.
const (
	AuditSubmissionCreated  = "submission.created"
	AuditSubmissionEdited   = "submission.edited"
	AuditSubmissionReviewed = "submission.reviewed"
	AuditSubmissionDeleted  = "submission.deleted"
	AuditAssignmentCreated  = "assignment.created"
	AuditAssignmentChanged  = "assignment.changed"
)

// AuditEvent is one insert-only record of a state change. Delivery of
// notifications built from these events is external to the engine.
type AuditEvent struct {
	ID         int64          `json:"id"`
	ActorKind  ActorKind      `json:"actor_kind"`
	ActorID    *int64         `json:"actor_id,omitempty"`
	ActorLabel string         `json:"actor_label,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   int64          `json:"entity_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
