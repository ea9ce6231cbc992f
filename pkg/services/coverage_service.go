package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/models"
	"github.com/openfield-hq/openfield-engine/pkg/repositories"
)

// UpdateNodeInput describes a coverage node edit. Name is applied when
// non-nil. Reparent must be set for ParentID to be applied, since nil is a
// meaningful parent (make the node a root).
type UpdateNodeInput struct {
	Name     *string
	ParentID *int64
	Reparent bool
}

// CoverageService manages coverage schemes and their node trees.
type CoverageService interface {
	CreateScheme(ctx context.Context, name, description string) (*models.CoverageScheme, error)
	ListSchemes(ctx context.Context) ([]models.CoverageScheme, error)
	CreateNode(ctx context.Context, schemeID int64, name string, parentID *int64) (*models.CoverageNode, error)
	ListNodes(ctx context.Context, schemeID int64) ([]models.CoverageNode, error)
	UpdateNode(ctx context.Context, nodeID int64, input UpdateNodeInput) (*models.CoverageNode, error)
	DeleteNode(ctx context.Context, nodeID int64) error
}

type coverageService struct {
	repo   repositories.CoverageRepository
	logger *zap.Logger
}

// NewCoverageService creates a new CoverageService.
func NewCoverageService(repo repositories.CoverageRepository, logger *zap.Logger) CoverageService {
	return &coverageService{
		repo:   repo,
		logger: logger.Named("coverage-service"),
	}
}

var _ CoverageService = (*coverageService)(nil)

func (s *coverageService) CreateScheme(ctx context.Context, name, description string) (*models.CoverageScheme, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidation("name", apperrors.CodeInvalidInput, "scheme name must not be empty")
	}

	scheme := &models.CoverageScheme{Name: name, Description: description}
	if err := s.repo.CreateScheme(ctx, scheme); err != nil {
		return nil, err
	}
	s.logger.Info("Created coverage scheme", zap.Int64("scheme_id", scheme.ID), zap.String("name", name))
	return scheme, nil
}

func (s *coverageService) ListSchemes(ctx context.Context) ([]models.CoverageScheme, error) {
	return s.repo.ListSchemes(ctx)
}

// CreateNode appends a node under an existing parent or as a root.
// level_index is derived from the parent, so trees are acyclic by construction.
func (s *coverageService) CreateNode(ctx context.Context, schemeID int64, name string, parentID *int64) (*models.CoverageNode, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidation("name", apperrors.CodeInvalidInput, "node name must not be empty")
	}

	if _, err := s.repo.GetScheme(ctx, schemeID); err != nil {
		return nil, err
	}

	level := 0
	if parentID != nil {
		parent, err := s.repo.GetNode(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.SchemeID != schemeID {
			return nil, apperrors.NewValidation("parent_id", apperrors.CodeInvalidInput, "parent belongs to a different scheme")
		}
		level = parent.LevelIndex + 1
	}

	node := &models.CoverageNode{
		SchemeID:   schemeID,
		ParentID:   parentID,
		Name:       name,
		LevelIndex: level,
	}
	if err := s.repo.CreateNode(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

func (s *coverageService) ListNodes(ctx context.Context, schemeID int64) ([]models.CoverageNode, error) {
	return s.repo.ListNodes(ctx, schemeID)
}

// UpdateNode renames and/or reparents a node. Reparenting re-validates the
// subtree: the new parent must be in the same scheme and must not be a
// descendant of the node, and every descendant's level_index is rewritten.
func (s *coverageService) UpdateNode(ctx context.Context, nodeID int64, input UpdateNodeInput) (*models.CoverageNode, error) {
	node, err := s.repo.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewValidation("name", apperrors.CodeInvalidInput, "node name must not be empty")
		}
		node.Name = name
	}

	reindex := false
	if input.Reparent {
		newLevel := 0
		if input.ParentID != nil {
			if *input.ParentID == nodeID {
				return nil, apperrors.NewValidation("parent_id", apperrors.CodeInvalidInput, "node cannot be its own parent")
			}
			parent, err := s.repo.GetNode(ctx, *input.ParentID)
			if err != nil {
				return nil, err
			}
			if parent.SchemeID != node.SchemeID {
				return nil, apperrors.NewValidation("parent_id", apperrors.CodeInvalidInput, "parent belongs to a different scheme")
			}
			inSubtree, err := s.isDescendantOf(ctx, parent, nodeID)
			if err != nil {
				return nil, err
			}
			if inSubtree {
				return nil, apperrors.NewValidation("parent_id", apperrors.CodeInvalidInput, "new parent is inside the node's own subtree")
			}
			newLevel = parent.LevelIndex + 1
		}
		node.ParentID = input.ParentID
		reindex = node.LevelIndex != newLevel
		node.LevelIndex = newLevel
	}

	if err := s.repo.UpdateNode(ctx, node); err != nil {
		return nil, err
	}
	if reindex {
		if err := s.repo.ReindexSubtree(ctx, node.ID, node.LevelIndex); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// isDescendantOf walks up from candidate's ancestry checking for ancestorID.
func (s *coverageService) isDescendantOf(ctx context.Context, candidate *models.CoverageNode, ancestorID int64) (bool, error) {
	current := candidate
	for current.ParentID != nil {
		if *current.ParentID == ancestorID {
			return true, nil
		}
		parent, err := s.repo.GetNode(ctx, *current.ParentID)
		if err != nil {
			return false, fmt.Errorf("failed to walk coverage ancestry: %w", err)
		}
		current = parent
	}
	return false, nil
}

// DeleteNode removes a childless, unreferenced node.
func (s *coverageService) DeleteNode(ctx context.Context, nodeID int64) error {
	hasChildren, err := s.repo.HasChildren(ctx, nodeID)
	if err != nil {
		return err
	}
	if hasChildren {
		return apperrors.ErrHasChildren
	}

	refs, err := s.repo.CountReferences(ctx, nodeID)
	if err != nil {
		return err
	}
	if refs > 0 {
		return apperrors.ErrReferenced
	}

	return s.repo.DeleteNode(ctx, nodeID)
}
