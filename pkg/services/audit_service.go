package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/openfield-hq/openfield-engine/pkg/models"
	"github.com/openfield-hq/openfield-engine/pkg/repositories"
)

// AuditService records state-changing events with the acting identity from
// context. Delivery of notifications built from these events is external.
type AuditService interface {
	// Record writes one audit event. Failures are logged and swallowed -
	// audit logging must not break the operation being audited.
	Record(ctx context.Context, action, entityType string, entityID int64, metadata map[string]any)

	// GetByEntity returns the audit trail for one entity.
	GetByEntity(ctx context.Context, entityType string, entityID int64) ([]models.AuditEvent, error)
}

type auditService struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.Named("audit-service"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) Record(ctx context.Context, action, entityType string, entityID int64, metadata map[string]any) {
	actor := models.ActorOrAnonymous(ctx)
	event := &models.AuditEvent{
		ActorKind:  actor.Kind,
		ActorID:    actor.ID,
		ActorLabel: actor.Label,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
	}
	if err := s.repo.Insert(ctx, event); err != nil {
		s.logger.Warn("Failed to record audit event",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.Int64("entity_id", entityID),
			zap.Error(err))
	}
}

func (s *auditService) GetByEntity(ctx context.Context, entityType string, entityID int64) ([]models.AuditEvent, error) {
	return s.repo.ListForEntity(ctx, entityType, entityID)
}
