package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/database"
	"github.com/openfield-hq/openfield-engine/pkg/models"
)

// FacilityRepository defines the interface for the shared facility directory.
type FacilityRepository interface {
	GetOrCreateByName(ctx context.Context, name string) (*models.Facility, error)
	Get(ctx context.Context, id int64) (*models.Facility, error)
	List(ctx context.Context) ([]models.Facility, error)
}

// facilityRepository implements FacilityRepository using PostgreSQL.
type facilityRepository struct {
	q database.Querier
}

// NewFacilityRepository creates a new facility repository.
func NewFacilityRepository(q database.Querier) FacilityRepository {
	return &facilityRepository{q: q}
}

var _ FacilityRepository = (*facilityRepository)(nil)

// GetOrCreateByName looks a facility up case-insensitively and inserts it on
// miss. Concurrent first references of the same name are resolved by the
// unique index on lower(name): the loser of the insert race re-reads the
// winner's row.
func (r *facilityRepository) GetOrCreateByName(ctx context.Context, name string) (*models.Facility, error) {
	name = normalizeFacilityName(name)
	if name == "" {
		return nil, apperrors.NewValidation("facility_name", apperrors.CodeInvalidInput, "facility name must not be empty")
	}

	if f, err := r.getByName(ctx, name); err == nil {
		return f, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	var facility models.Facility
	err := r.q.QueryRow(ctx,
		`INSERT INTO facilities (name) VALUES ($1) RETURNING id, name, created_at`, name).
		Scan(&facility.ID, &facility.Name, &facility.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return r.getByName(ctx, name)
		}
		return nil, fmt.Errorf("failed to create facility: %w", err)
	}
	return &facility, nil
}

// normalizeFacilityName trims and collapses internal whitespace so lookups
// match what was stored.
func normalizeFacilityName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func (r *facilityRepository) getByName(ctx context.Context, name string) (*models.Facility, error) {
	var facility models.Facility
	err := r.q.QueryRow(ctx,
		`SELECT id, name, created_at FROM facilities WHERE lower(name) = lower($1)`, name).
		Scan(&facility.ID, &facility.Name, &facility.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get facility by name: %w", err)
	}
	return &facility, nil
}

func (r *facilityRepository) Get(ctx context.Context, id int64) (*models.Facility, error) {
	var facility models.Facility
	err := r.q.QueryRow(ctx,
		`SELECT id, name, created_at FROM facilities WHERE id = $1`, id).
		Scan(&facility.ID, &facility.Name, &facility.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get facility: %w", err)
	}
	return &facility, nil
}

func (r *facilityRepository) List(ctx context.Context) ([]models.Facility, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, name, created_at FROM facilities ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	defer rows.Close()

	var facilities []models.Facility
	for rows.Next() {
		var f models.Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan facility: %w", err)
		}
		facilities = append(facilities, f)
	}
	return facilities, rows.Err()
}
