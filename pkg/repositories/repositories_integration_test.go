//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfield-hq/openfield-engine/pkg/models"
	"github.com/openfield-hq/openfield-engine/pkg/testhelpers"
)

// repoTestContext holds the shared container pool and seed helpers used by
// the repository integration tests. Every test starts from a truncated
// database.
type repoTestContext struct {
	t    *testing.T
	ctx  context.Context
	pool *pgxpool.Pool
}

func setupRepoTest(t *testing.T) *repoTestContext {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.Pool)
	return &repoTestContext{
		t:    t,
		ctx:  context.Background(),
		pool: testDB.Pool,
	}
}

func (tc *repoTestContext) seedProject(name, tag string) int64 {
	tc.t.Helper()
	var id int64
	err := tc.pool.QueryRow(tc.ctx, `
		INSERT INTO projects (name, project_tag, status, assignment_mode)
		VALUES ($1, $2, 'ACTIVE', 'OPTIONAL')
		RETURNING id`, name, tag).Scan(&id)
	if err != nil {
		tc.t.Fatalf("failed to seed project: %v", err)
	}
	return id
}

func (tc *repoTestContext) seedTemplate(projectID int64, name string) int64 {
	tc.t.Helper()
	var id int64
	err := tc.pool.QueryRow(tc.ctx, `
		INSERT INTO templates (project_id, name)
		VALUES ($1, $2)
		RETURNING id`, projectID, name).Scan(&id)
	if err != nil {
		tc.t.Fatalf("failed to seed template: %v", err)
	}
	return id
}

func (tc *repoTestContext) seedEnumerator(projectID int64, name, code string) int64 {
	tc.t.Helper()
	var id int64
	err := tc.pool.QueryRow(tc.ctx, `
		INSERT INTO enumerators (project_id, name, code, status)
		VALUES ($1, $2, $3, 'ACTIVE')
		RETURNING id`, projectID, name, code).Scan(&id)
	if err != nil {
		tc.t.Fatalf("failed to seed enumerator: %v", err)
	}
	return id
}

func (tc *repoTestContext) seedFacility(name string) int64 {
	tc.t.Helper()
	var id int64
	err := tc.pool.QueryRow(tc.ctx, `
		INSERT INTO facilities (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		tc.t.Fatalf("failed to seed facility: %v", err)
	}
	return id
}

func (tc *repoTestContext) seedScheme(name string) int64 {
	tc.t.Helper()
	var id int64
	err := tc.pool.QueryRow(tc.ctx, `
		INSERT INTO coverage_schemes (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		tc.t.Fatalf("failed to seed coverage scheme: %v", err)
	}
	return id
}

func (tc *repoTestContext) seedNode(schemeID int64, parentID *int64, name string, level int) int64 {
	tc.t.Helper()
	var id int64
	err := tc.pool.QueryRow(tc.ctx, `
		INSERT INTO coverage_nodes (scheme_id, parent_id, name, level_index)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, schemeID, parentID, name, level).Scan(&id)
	if err != nil {
		tc.t.Fatalf("failed to seed coverage node: %v", err)
	}
	return id
}

// seedAssignment inserts a minimal active assignment directly against the
// pool so repository tests control every column.
func (tc *repoTestContext) seedAssignment(projectID, enumeratorID int64, serial int, codeFull string) int64 {
	tc.t.Helper()
	repo := NewAssignmentRepository(tc.pool)
	assignment := &models.Assignment{
		ProjectID:    projectID,
		EnumeratorID: enumeratorID,
		CodeSerial:   serial,
		CodeFull:     codeFull,
		IsActive:     true,
	}
	if err := repo.Create(tc.ctx, assignment); err != nil {
		tc.t.Fatalf("failed to seed assignment: %v", err)
	}
	return assignment.ID
}
