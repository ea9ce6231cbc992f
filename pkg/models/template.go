package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Question type constants.
const (
	QuestionTypeText         = "TEXT"
	QuestionTypeLongText     = "LONG_TEXT"
	QuestionTypeNumber       = "NUMBER"
	QuestionTypeSingleChoice = "SINGLE_CHOICE"
	QuestionTypeMultiChoice  = "MULTI_CHOICE"
	QuestionTypeDate         = "DATE"
)

// Template is a versioned survey form. AssignmentMode INHERIT defers to the
// owning project's policy.
type Template struct {
	ID                int64      `json:"id"`
	ProjectID         *int64     `json:"project_id,omitempty"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	AssignmentMode    string     `json:"assignment_mode"`
	AllowEditResponse bool       `json:"allow_edit_response"`
	EnableGPS         bool       `json:"enable_gps"`
	EnableConsent     bool       `json:"enable_consent"`
	EnableAttestation bool       `json:"enable_attestation"`
	IsActive          bool       `json:"is_active"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
}

// EffectiveAssignmentMode returns the template's mode unless it inherits,
// in which case the project's mode applies.
func (t *Template) EffectiveAssignmentMode(project *Project) string {
	if t.AssignmentMode != "" && t.AssignmentMode != AssignmentModeInherit {
		return t.AssignmentMode
	}
	if project != nil && project.AssignmentMode != "" {
		return project.AssignmentMode
	}
	return AssignmentModeOptional
}

// QuestionValidation is the declared validation rule set for one question,
// persisted as JSONB. Nil fields mean "no bound".
type QuestionValidation struct {
	MinLength *int     `json:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty"`
	MinValue  *float64 `json:"min_value,omitempty"`
	MaxValue  *float64 `json:"max_value,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

// Value implements driver.Valuer for database serialization.
func (v QuestionValidation) Value() (driver.Value, error) {
	return json.Marshal(v)
}

// Scan implements sql.Scanner for database deserialization.
func (v *QuestionValidation) Scan(value interface{}) error {
	if value == nil {
		*v = QuestionValidation{}
		return nil
	}
	var data []byte
	switch t := value.(type) {
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		return fmt.Errorf("unsupported type for QuestionValidation: %T", value)
	}
	return json.Unmarshal(data, v)
}

// TemplateQuestion is one ordered question on a template.
type TemplateQuestion struct {
	ID           int64               `json:"id"`
	TemplateID   int64               `json:"template_id"`
	QuestionText string              `json:"question_text"`
	QuestionType string              `json:"question_type"`
	DisplayOrder int                 `json:"display_order"`
	IsRequired   bool                `json:"is_required"`
	HelpText     *string             `json:"help_text,omitempty"`
	Validation   *QuestionValidation `json:"validation,omitempty"`
	Choices      []QuestionChoice    `json:"choices,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// QuestionChoice is one selectable option for a choice question.
type QuestionChoice struct {
	ID           int64  `json:"id"`
	QuestionID   int64  `json:"question_id"`
	ChoiceText   string `json:"choice_text"`
	DisplayOrder int    `json:"display_order"`
}
