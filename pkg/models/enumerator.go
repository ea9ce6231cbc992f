package models

import "time"

// Enumerator status constants. Archived and inactive enumerators cannot be
// resolved for new submissions; historical submissions stay attributed.
const (
	EnumeratorStatusActive   = "ACTIVE"
	EnumeratorStatusInactive = "INACTIVE"
	EnumeratorStatusArchived = "ARCHIVED"
)

// Enumerator is a field worker who submits data. Code is the human label
// used in access codes, not the resolvable assignment code itself.
type Enumerator struct {
	ID        int64     `json:"id"`
	ProjectID *int64    `json:"project_id,omitempty"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// IsActive reports whether the enumerator may be resolved for new submissions.
func (e *Enumerator) IsActive() bool {
	return e.Status == EnumeratorStatusActive
}
