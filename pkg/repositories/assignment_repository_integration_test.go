//go:build integration

package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/models"
)

func TestAssignmentRepository_CreateAndSerials(t *testing.T) {
	tc := setupRepoTest(t)
	repo := NewAssignmentRepository(tc.pool)

	projectID := tc.seedProject("Facility Census", "FCS01")
	enumeratorID := tc.seedEnumerator(projectID, "Jane Field", "jane.field")

	serial, err := repo.NextSerial(tc.ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, 1, serial)

	tc.seedAssignment(projectID, enumeratorID, serial, "FCS01-EN-0001-AB")

	serial, err = repo.NextSerial(tc.ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, 2, serial)

	t.Run("SerialCollisionIsConflict", func(t *testing.T) {
		err := repo.Create(tc.ctx, &models.Assignment{
			ProjectID:    projectID,
			EnumeratorID: enumeratorID,
			CodeSerial:   1,
			CodeFull:     "FCS01-EN-0001-CD",
			IsActive:     true,
		})
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("GetByCodeFull", func(t *testing.T) {
		found, err := repo.GetByCodeFull(tc.ctx, "FCS01-EN-0001-AB")
		require.NoError(t, err)
		assert.Equal(t, enumeratorID, found.EnumeratorID)

		_, err = repo.GetByCodeFull(tc.ctx, "FCS01-EN-9999-AB")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestAssignmentRepository_FindOpenForEnumerator(t *testing.T) {
	tc := setupRepoTest(t)
	repo := NewAssignmentRepository(tc.pool)

	projectID := tc.seedProject("Water Point Mapping", "WPM01")
	enumeratorID := tc.seedEnumerator(projectID, "Omar Said", "omar.said")
	templateID := tc.seedTemplate(projectID, "Water Point Form")

	anyTemplate := tc.seedAssignment(projectID, enumeratorID, 1, "WPM01-EN-0001-AA")

	pinnedID := anyTemplate
	err := tc.pool.QueryRow(tc.ctx, `
		INSERT INTO assignments (project_id, enumerator_id, template_id, code_serial, code_full, is_active)
		VALUES ($1, $2, $3, 2, 'WPM01-EN-0002-BB', TRUE)
		RETURNING id`, projectID, enumeratorID, templateID).Scan(&pinnedID)
	require.NoError(t, err)

	t.Run("TemplateMatchWinsOverTemplateAgnostic", func(t *testing.T) {
		found, err := repo.FindOpenForEnumerator(tc.ctx, enumeratorID, &templateID)
		require.NoError(t, err)
		assert.Equal(t, pinnedID, found.ID)
	})

	t.Run("NoTemplateFallsBackToAgnostic", func(t *testing.T) {
		other := templateID + 500
		found, err := repo.FindOpenForEnumerator(tc.ctx, enumeratorID, &other)
		require.NoError(t, err)
		assert.Equal(t, anyTemplate, found.ID)
	})

	t.Run("InactiveAssignmentsAreSkipped", func(t *testing.T) {
		require.NoError(t, repo.SetActive(tc.ctx, anyTemplate, false))
		require.NoError(t, repo.SetActive(tc.ctx, pinnedID, false))

		_, err := repo.FindOpenForEnumerator(tc.ctx, enumeratorID, nil)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestAssignmentRepository_FacilityLedger(t *testing.T) {
	tc := setupRepoTest(t)
	repo := NewAssignmentRepository(tc.pool)

	projectID := tc.seedProject("Clinic Audit", "CLA01")
	enumeratorID := tc.seedEnumerator(projectID, "Amina Yusuf", "amina.y")
	assignmentID := tc.seedAssignment(projectID, enumeratorID, 1, "CLA01-EN-0001-AA")

	bomu := tc.seedFacility("Bomu Hospital")
	coast := tc.seedFacility("Coast General")

	require.NoError(t, repo.AddFacilities(tc.ctx, assignmentID, []int64{bomu, coast}))

	t.Run("ReAddIsNoOp", func(t *testing.T) {
		require.NoError(t, repo.AddFacilities(tc.ctx, assignmentID, []int64{bomu}))

		count, err := repo.CountFacilities(tc.ctx, assignmentID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("HasFacility", func(t *testing.T) {
		has, err := repo.HasFacility(tc.ctx, assignmentID, bomu)
		require.NoError(t, err)
		assert.True(t, has)

		has, err = repo.HasFacility(tc.ctx, assignmentID, bomu+1000)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("MarkDoneAndGuardedRevert", func(t *testing.T) {
		require.NoError(t, repo.MarkFacilityDone(tc.ctx, assignmentID, bomu, 42))

		facilities, err := repo.ListFacilities(tc.ctx, assignmentID)
		require.NoError(t, err)
		require.Len(t, facilities, 2)
		assert.Equal(t, models.FacilityStatusDone, facilities[0].Status)
		require.NotNil(t, facilities[0].DoneSurveyID)
		assert.Equal(t, int64(42), *facilities[0].DoneSurveyID)

		// A revert from a submission that did not claim the facility leaves it done.
		require.NoError(t, repo.RevertFacilityIfMatches(tc.ctx, assignmentID, bomu, 99))
		facilities, err = repo.ListFacilities(tc.ctx, assignmentID)
		require.NoError(t, err)
		assert.Equal(t, models.FacilityStatusDone, facilities[0].Status)

		require.NoError(t, repo.RevertFacilityIfMatches(tc.ctx, assignmentID, bomu, 42))
		facilities, err = repo.ListFacilities(tc.ctx, assignmentID)
		require.NoError(t, err)
		assert.Equal(t, models.FacilityStatusPending, facilities[0].Status)
		assert.Nil(t, facilities[0].DoneSurveyID)
	})

	t.Run("MarkDoneOffLedgerIsNoOp", func(t *testing.T) {
		unlisted := tc.seedFacility("Unlisted Clinic")
		require.NoError(t, repo.MarkFacilityDone(tc.ctx, assignmentID, unlisted, 7))

		count, err := repo.CountFacilities(tc.ctx, assignmentID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestAssignmentRepository_Progress(t *testing.T) {
	tc := setupRepoTest(t)
	repo := NewAssignmentRepository(tc.pool)

	projectID := tc.seedProject("Household Listing", "HHL01")
	enumeratorID := tc.seedEnumerator(projectID, "Peter Odhiambo", "peter.o")
	assignmentID := tc.seedAssignment(projectID, enumeratorID, 1, "HHL01-EN-0001-AA")

	a := tc.seedFacility("Facility A")
	b := tc.seedFacility("Facility B")
	c := tc.seedFacility("Facility C")
	require.NoError(t, repo.AddFacilities(tc.ctx, assignmentID, []int64{a, b, c}))
	require.NoError(t, repo.MarkFacilityDone(tc.ctx, assignmentID, a, 1))

	t.Run("TargetFallsBackToLedgerSize", func(t *testing.T) {
		progress, err := repo.Progress(tc.ctx, assignmentID)
		require.NoError(t, err)
		assert.Equal(t, 1, progress.Completed)
		assert.Equal(t, 3, progress.Total)
		assert.Equal(t, 3, progress.Target)
	})

	t.Run("ExplicitTargetWins", func(t *testing.T) {
		_, err := tc.pool.Exec(tc.ctx,
			`UPDATE assignments SET target_facilities_count = 10 WHERE id = $1`, assignmentID)
		require.NoError(t, err)

		progress, err := repo.Progress(tc.ctx, assignmentID)
		require.NoError(t, err)
		assert.Equal(t, 10, progress.Target)
	})

	t.Run("UnknownAssignmentIsNotFound", func(t *testing.T) {
		_, err := repo.Progress(tc.ctx, assignmentID+1000)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestAssignmentRepository_CoverageNodes(t *testing.T) {
	tc := setupRepoTest(t)
	repo := NewAssignmentRepository(tc.pool)

	projectID := tc.seedProject("Coverage Sweep", "CVS01")
	enumeratorID := tc.seedEnumerator(projectID, "Grace Wanjiru", "grace.w")
	assignmentID := tc.seedAssignment(projectID, enumeratorID, 1, "CVS01-EN-0001-AA")

	schemeID := tc.seedScheme("Admin Units")
	county := tc.seedNode(schemeID, nil, "Mombasa", 0)
	ward := tc.seedNode(schemeID, &county, "Nyali", 1)

	require.NoError(t, repo.AddCoverageNodes(tc.ctx, assignmentID, []int64{county, ward}))
	require.NoError(t, repo.AddCoverageNodes(tc.ctx, assignmentID, []int64{ward}))

	ids, err := repo.ListCoverageNodeIDs(tc.ctx, assignmentID)
	require.NoError(t, err)
	assert.Equal(t, []int64{county, ward}, ids)
}
