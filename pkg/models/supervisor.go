package models

import "time"

// Supervisor status constants.
const (
	SupervisorStatusActive   = "ACTIVE"
	SupervisorStatusDisabled = "DISABLED"
)

// Supervisor is an acting identity resolved from an opaque access key handed
// to the engine by the external identity layer. The engine never implements
// login; it only records who acted.
type Supervisor struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email,omitempty"`
	AccessKey string    `json:"-"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
