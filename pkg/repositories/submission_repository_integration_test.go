//go:build integration

package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/models"
)

// submissionTestContext extends the shared fixtures with the rows a
// submission needs to reference.
type submissionTestContext struct {
	*repoTestContext
	repo       SubmissionRepository
	projectID  int64
	templateID int64
	facilityID int64
}

func setupSubmissionTest(t *testing.T) *submissionTestContext {
	t.Helper()
	tc := setupRepoTest(t)
	stc := &submissionTestContext{
		repoTestContext: tc,
		repo:            NewSubmissionRepository(tc.pool),
	}
	stc.projectID = tc.seedProject("Malaria Survey", "MAS01")
	stc.templateID = tc.seedTemplate(stc.projectID, "Household Form")
	stc.facilityID = tc.seedFacility("Bomu Hospital")
	return stc
}

func (tc *submissionTestContext) newSubmission(clientUUID *uuid.UUID) *models.Submission {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Submission{
		ProjectID:      tc.projectID,
		TemplateID:     tc.templateID,
		EnumeratorName: "Jane Field",
		FacilityID:     tc.facilityID,
		Status:         models.SubmissionStatusCompleted,
		ReviewStatus:   models.ReviewStatusPending,
		ClientUUID:     clientUUID,
		CompletedAt:    &now,
	}
}

func TestSubmissionRepository_CreateAndGet(t *testing.T) {
	tc := setupSubmissionTest(t)

	clientUUID := uuid.New()
	accuracy := 12.5
	submission := tc.newSubmission(&clientUUID)
	submission.GPS = &models.GPSFix{Lat: -4.05, Lng: 39.67, Accuracy: &accuracy}
	submission.QAFlags = []models.QAFlag{models.FlagLowConfidence}

	require.NoError(t, tc.repo.Create(tc.ctx, submission))
	assert.NotZero(t, submission.ID)

	fetched, err := tc.repo.Get(tc.ctx, submission.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Field", fetched.EnumeratorName)
	assert.Equal(t, models.ReviewStatusPending, fetched.ReviewStatus)
	require.NotNil(t, fetched.GPS)
	assert.InDelta(t, -4.05, fetched.GPS.Lat, 1e-9)
	require.NotNil(t, fetched.GPS.Accuracy)
	assert.InDelta(t, 12.5, *fetched.GPS.Accuracy, 1e-9)
	assert.Equal(t, []models.QAFlag{models.FlagLowConfidence}, fetched.QAFlags)
	require.NotNil(t, fetched.ClientUUID)
	assert.Equal(t, clientUUID, *fetched.ClientUUID)
}

func TestSubmissionRepository_ClientUUIDIsUniqueWhileLive(t *testing.T) {
	tc := setupSubmissionTest(t)

	clientUUID := uuid.New()
	first := tc.newSubmission(&clientUUID)
	require.NoError(t, tc.repo.Create(tc.ctx, first))

	t.Run("ReplayConflicts", func(t *testing.T) {
		err := tc.repo.Create(tc.ctx, tc.newSubmission(&clientUUID))
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("GetByClientUUID", func(t *testing.T) {
		found, err := tc.repo.GetByClientUUID(tc.ctx, clientUUID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, found.ID)
	})

	t.Run("NilClientUUIDNeverConflicts", func(t *testing.T) {
		require.NoError(t, tc.repo.Create(tc.ctx, tc.newSubmission(nil)))
		require.NoError(t, tc.repo.Create(tc.ctx, tc.newSubmission(nil)))
	})

	t.Run("SoftDeleteFreesTheKey", func(t *testing.T) {
		require.NoError(t, tc.repo.SoftDelete(tc.ctx, first.ID))
		require.NoError(t, tc.repo.Create(tc.ctx, tc.newSubmission(&clientUUID)))
	})
}

func TestSubmissionRepository_ReplaceAnswers(t *testing.T) {
	tc := setupSubmissionTest(t)

	submission := tc.newSubmission(nil)
	require.NoError(t, tc.repo.Create(tc.ctx, submission))

	head := "How many beds?"
	twelve := "12"
	require.NoError(t, tc.repo.ReplaceAnswers(tc.ctx, submission.ID, []models.Answer{
		{QuestionText: head, AnswerText: &twelve},
		{QuestionText: "Facility open?", AnswerText: nil},
	}))

	answers, err := tc.repo.ListAnswers(tc.ctx, submission.ID)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, head, answers[0].QuestionText)

	// Replace is wholesale: the old rows are gone, not merged.
	eight := "8"
	require.NoError(t, tc.repo.ReplaceAnswers(tc.ctx, submission.ID, []models.Answer{
		{QuestionText: head, AnswerText: &eight},
	}))

	answers, err = tc.repo.ListAnswers(tc.ctx, submission.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	require.NotNil(t, answers[0].AnswerText)
	assert.Equal(t, "8", *answers[0].AnswerText)
}

func TestSubmissionRepository_ExistsForFacilityDay(t *testing.T) {
	tc := setupSubmissionTest(t)

	submission := tc.newSubmission(nil)
	require.NoError(t, tc.repo.Create(tc.ctx, submission))

	day := time.Now().UTC()

	t.Run("MatchesSameFacilityNameAndDay", func(t *testing.T) {
		exists, err := tc.repo.ExistsForFacilityDay(tc.ctx, tc.facilityID, "JANE FIELD", day, 0)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("ExcludesTheSubmissionItself", func(t *testing.T) {
		exists, err := tc.repo.ExistsForFacilityDay(tc.ctx, tc.facilityID, "Jane Field", day, submission.ID)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("DifferentEnumeratorDoesNotMatch", func(t *testing.T) {
		exists, err := tc.repo.ExistsForFacilityDay(tc.ctx, tc.facilityID, "Omar Said", day, 0)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("SoftDeletedRowsDoNotMatch", func(t *testing.T) {
		require.NoError(t, tc.repo.SoftDelete(tc.ctx, submission.ID))
		exists, err := tc.repo.ExistsForFacilityDay(tc.ctx, tc.facilityID, "Jane Field", day, 0)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestSubmissionRepository_SetReviewStatus(t *testing.T) {
	tc := setupSubmissionTest(t)

	submission := tc.newSubmission(nil)
	require.NoError(t, tc.repo.Create(tc.ctx, submission))

	var supervisorID int64
	err := tc.pool.QueryRow(tc.ctx, `
		INSERT INTO supervisors (full_name, access_key)
		VALUES ('Asha Juma', 'sk_test_review')
		RETURNING id`).Scan(&supervisorID)
	require.NoError(t, err)

	reason := "GPS fix outside assigned ward"
	require.NoError(t, tc.repo.SetReviewStatus(tc.ctx, submission.ID,
		models.ReviewStatusRejected, &reason, &supervisorID))

	fetched, err := tc.repo.Get(tc.ctx, submission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusRejected, fetched.ReviewStatus)
	require.NotNil(t, fetched.ReviewReason)
	assert.Equal(t, reason, *fetched.ReviewReason)
	require.NotNil(t, fetched.ReviewedBy)
	assert.Equal(t, supervisorID, *fetched.ReviewedBy)
	assert.NotNil(t, fetched.ReviewedAt)

	t.Run("UnknownSubmissionIsNotFound", func(t *testing.T) {
		err := tc.repo.SetReviewStatus(tc.ctx, submission.ID+1000,
			models.ReviewStatusApproved, nil, nil)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestSubmissionRepository_SoftDeleteHidesRow(t *testing.T) {
	tc := setupSubmissionTest(t)

	submission := tc.newSubmission(nil)
	require.NoError(t, tc.repo.Create(tc.ctx, submission))

	require.NoError(t, tc.repo.SoftDelete(tc.ctx, submission.ID))

	_, err := tc.repo.Get(tc.ctx, submission.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = tc.repo.SoftDelete(tc.ctx, submission.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
