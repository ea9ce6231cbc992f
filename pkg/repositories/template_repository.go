package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/database"
	"github.com/openfield-hq/openfield-engine/pkg/models"
)

// TemplateRepository defines the interface for template and question data access.
type TemplateRepository interface {
	Get(ctx context.Context, id int64) (*models.Template, error)
	ListByProject(ctx context.Context, projectID int64) ([]models.Template, error)
	ListQuestions(ctx context.Context, templateID int64) ([]models.TemplateQuestion, error)
}

// templateRepository implements TemplateRepository using PostgreSQL.
type templateRepository struct {
	q database.Querier
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(q database.Querier) TemplateRepository {
	return &templateRepository{q: q}
}

var _ TemplateRepository = (*templateRepository)(nil)

const templateColumns = `id, project_id, name, COALESCE(description, ''), assignment_mode,
	allow_edit_response, enable_gps, enable_consent, enable_attestation, is_active,
	created_at, updated_at, deleted_at`

func scanTemplate(row pgx.Row) (*models.Template, error) {
	var t models.Template
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.Name, &t.Description, &t.AssignmentMode,
		&t.AllowEditResponse, &t.EnableGPS, &t.EnableConsent, &t.EnableAttestation,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *templateRepository) Get(ctx context.Context, id int64) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = $1 AND deleted_at IS NULL`

	template, err := scanTemplate(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return template, nil
}

func (r *templateRepository) ListByProject(ctx context.Context, projectID int64) ([]models.Template, error) {
	query := `SELECT ` + templateColumns + `
		FROM templates
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY id`

	rows, err := r.q.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// ListQuestions returns a template's questions in display order, with choices
// attached to choice-type questions.
func (r *templateRepository) ListQuestions(ctx context.Context, templateID int64) ([]models.TemplateQuestion, error) {
	query := `
		SELECT id, template_id, question_text, question_type, display_order,
			is_required, help_text, validation, created_at
		FROM template_questions
		WHERE template_id = $1
		ORDER BY display_order, id`

	rows, err := r.q.Query(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list template questions: %w", err)
	}
	defer rows.Close()

	var questions []models.TemplateQuestion
	byID := make(map[int64]int)
	for rows.Next() {
		var q models.TemplateQuestion
		if err := rows.Scan(
			&q.ID, &q.TemplateID, &q.QuestionText, &q.QuestionType, &q.DisplayOrder,
			&q.IsRequired, &q.HelpText, &q.Validation, &q.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan template question: %w", err)
		}
		byID[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return questions, nil
	}

	choiceQuery := `
		SELECT c.id, c.question_id, c.choice_text, c.display_order
		FROM template_question_choices c
		JOIN template_questions q ON q.id = c.question_id
		WHERE q.template_id = $1
		ORDER BY c.display_order, c.id`

	choiceRows, err := r.q.Query(ctx, choiceQuery, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list question choices: %w", err)
	}
	defer choiceRows.Close()

	for choiceRows.Next() {
		var c models.QuestionChoice
		if err := choiceRows.Scan(&c.ID, &c.QuestionID, &c.ChoiceText, &c.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan question choice: %w", err)
		}
		if idx, ok := byID[c.QuestionID]; ok {
			questions[idx].Choices = append(questions[idx].Choices, c)
		}
	}
	return questions, choiceRows.Err()
}
