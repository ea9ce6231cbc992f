package models

import "time"

// Facility is one entry in the shared, deduplicated location directory.
// Names are unique case-insensitively; facilities are created on first
// reference and never hard-deleted.
type Facility struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
