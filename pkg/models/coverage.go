// Package models contains domain types for openfield-engine.
package models

import "time"

// CoverageScheme is a named hierarchy of coverage nodes. A project references
// at most one scheme as current; the engine only requires that an assignment's
// nodes all belong to a single scheme.
type CoverageScheme struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// CoverageNode is one node in a coverage tree. LevelIndex is 0 for roots and
// parent.LevelIndex+1 otherwise.
type CoverageNode struct {
	ID         int64     `json:"id"`
	SchemeID   int64     `json:"scheme_id"`
	ParentID   *int64    `json:"parent_id,omitempty"`
	Name       string    `json:"name"`
	LevelIndex int       `json:"level_index"`
	CreatedAt  time.Time `json:"created_at"`
}
