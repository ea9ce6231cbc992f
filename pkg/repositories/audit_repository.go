package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openfield-hq/openfield-engine/pkg/database"
	"github.com/openfield-hq/openfield-engine/pkg/models"
)

// AuditRepository defines the interface for the insert-only audit trail.
type AuditRepository interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
	ListForEntity(ctx context.Context, entityType string, entityID int64) ([]models.AuditEvent, error)
}

// auditRepository implements AuditRepository using PostgreSQL.
type auditRepository struct {
	q database.Querier
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(q database.Querier) AuditRepository {
	return &auditRepository{q: q}
}

var _ AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	var metadata []byte
	if event.Metadata != nil {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (actor_kind, actor_id, actor_label, action, entity_type, entity_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query,
		event.ActorKind,
		event.ActorID,
		event.ActorLabel,
		event.Action,
		event.EntityType,
		event.EntityID,
		metadata,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (r *auditRepository) ListForEntity(ctx context.Context, entityType string, entityID int64) ([]models.AuditEvent, error) {
	query := `
		SELECT id, actor_kind, actor_id, COALESCE(actor_label, ''), action, entity_type, entity_id, metadata, created_at
		FROM audit_events
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY id`

	rows, err := r.q.Query(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.ActorKind, &e.ActorID, &e.ActorLabel,
			&e.Action, &e.EntityType, &e.EntityID, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
