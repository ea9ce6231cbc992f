package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openfield-hq/openfield-engine/pkg/models"
)

func answerFor(questionID int64, text string) models.Answer {
	return models.Answer{QuestionID: int64Ptr(questionID), AnswerText: strPtr(text)}
}

func TestScoreSubmission_Clean(t *testing.T) {
	questions := []models.TemplateQuestion{
		{ID: 1, IsRequired: true},
		{ID: 2, IsRequired: true},
	}
	answers := []models.Answer{
		answerFor(1, "Dr. Okafor"),
		answerFor(2, "34"),
	}
	submission := &models.Submission{ID: 9, GPS: &models.GPSFix{Lat: -1.28, Lng: 36.82}}

	record := ScoreSubmission(submission, answers, questions)

	assert.Equal(t, int64(9), record.SurveyID)
	assert.Empty(t, record.Flags)
	assert.Zero(t, record.Severity)
	assert.Equal(t, models.SeverityLow, record.SeverityBucket)
	assert.Equal(t, 2, record.TotalAnswers)
	assert.True(t, record.GPSPresent)
	assert.False(t, record.GPSMissing)
}

func TestScoreSubmission_MissingRequiredDominates(t *testing.T) {
	// Two of five required questions unanswered lands in the medium band on
	// the missing-required signal alone.
	questions := make([]models.TemplateQuestion, 5)
	for i := range questions {
		questions[i] = models.TemplateQuestion{ID: int64(i + 1), IsRequired: true}
	}
	answers := []models.Answer{
		answerFor(1, "yes"),
		answerFor(2, "no"),
		answerFor(3, "maybe so"),
	}
	submission := &models.Submission{ID: 1, GPS: &models.GPSFix{}}

	record := ScoreSubmission(submission, answers, questions)

	assert.Equal(t, 2, record.MissingRequiredCount)
	assert.InDelta(t, 0.18, record.Severity, 0.0001)
	assert.Equal(t, models.SeverityLow, record.SeverityBucket)
	assert.Contains(t, record.Flags, models.FlagMissingRequired)

	// All five missing maxes the signal.
	record = ScoreSubmission(submission, nil, questions)
	assert.Equal(t, 5, record.MissingRequiredCount)
	assert.InDelta(t, 0.45, record.Severity, 0.0001)
	assert.Equal(t, models.SeverityMedium, record.SeverityBucket)
}

func TestScoreSubmission_CountsAreCapped(t *testing.T) {
	// Twenty empty answers score no worse than ten.
	manyEmpty := make([]models.Answer, 20)
	atCap := make([]models.Answer, 10)
	submission := &models.Submission{ID: 1, GPS: &models.GPSFix{}}

	assert.Equal(t,
		ScoreSubmission(submission, atCap, nil).Severity,
		ScoreSubmission(submission, manyEmpty, nil).Severity)
	assert.Equal(t, 20, ScoreSubmission(submission, manyEmpty, nil).EmptyAnswerCount)
}

func TestScoreSubmission_LowConfidence(t *testing.T) {
	answers := []models.Answer{
		{QuestionID: int64Ptr(1), AnswerText: strPtr("transcribed"), Confidence: floatPtr(0.31)},
		{QuestionID: int64Ptr(2), AnswerText: strPtr("typed"), Confidence: floatPtr(0.95)},
		{QuestionID: int64Ptr(3), AnswerText: strPtr("no confidence recorded")},
	}
	submission := &models.Submission{ID: 1, GPS: &models.GPSFix{}}

	record := ScoreSubmission(submission, answers, nil)

	assert.Equal(t, 1, record.LowConfidenceCount)
	assert.Contains(t, record.Flags, models.FlagLowConfidence)
	assert.InDelta(t, 0.15/6, record.Severity, 0.0001)
}

func TestScoreSubmission_GPSSignals(t *testing.T) {
	submission := &models.Submission{ID: 1, GPSMissing: true}
	record := ScoreSubmission(submission, nil, nil)
	assert.True(t, record.GPSMissing)
	assert.False(t, record.GPSPresent)
	assert.Contains(t, record.Flags, models.FlagGPSMissing)
	assert.InDelta(t, 0.20, record.Severity, 0.0001)

	submission = &models.Submission{
		ID:      1,
		GPS:     &models.GPSFix{Lat: 4.0, Lng: 9.7},
		QAFlags: []models.QAFlag{models.FlagGPSOutsideCoverage},
	}
	record = ScoreSubmission(submission, nil, nil)
	assert.True(t, record.GPSPresent)
	assert.Contains(t, record.Flags, models.FlagGPSOutsideCoverage)
	assert.InDelta(t, 0.15, record.Severity, 0.0001)
}

func TestScoreSubmission_SuspiciousValues(t *testing.T) {
	for _, filler := range []string{"n/a", "NA", "None", "nil", "TEST", "xxx"} {
		answers := []models.Answer{answerFor(1, filler)}
		record := ScoreSubmission(&models.Submission{ID: 1, GPS: &models.GPSFix{}}, answers, nil)
		assert.True(t, record.HasSuspiciousValues, "value %q should be suspicious", filler)
		assert.Contains(t, record.Flags, models.FlagSuspiciousValues)
	}

	answers := []models.Answer{answerFor(1, "none of the wards reported shortages")}
	record := ScoreSubmission(&models.Submission{ID: 1, GPS: &models.GPSFix{}}, answers, nil)
	assert.False(t, record.HasSuspiciousValues, "only exact placeholder values match")
}

func TestScoreSubmission_IntakeFlagBoosts(t *testing.T) {
	submission := &models.Submission{
		ID:        1,
		GPS:       &models.GPSFix{},
		Duplicate: true,
		QAFlags:   []models.QAFlag{models.FlagUnlistedFacilityUsed},
	}

	record := ScoreSubmission(submission, nil, nil)

	assert.Contains(t, record.Flags, models.FlagDuplicateFacilityDay)
	assert.Contains(t, record.Flags, models.FlagUnlistedFacilityUsed)
	assert.InDelta(t, 0.27, record.Severity, 0.0001)
}

func TestScoreSubmission_SeverityCappedAtOne(t *testing.T) {
	// Every signal at maximum still clamps to 1.0.
	questions := make([]models.TemplateQuestion, 8)
	for i := range questions {
		questions[i] = models.TemplateQuestion{ID: int64(i + 1), IsRequired: true}
	}
	answers := make([]models.Answer, 12)
	for i := range answers {
		answers[i] = models.Answer{Confidence: floatPtr(0.1)}
	}
	answers = append(answers, answerFor(100, "n/a"))

	submission := &models.Submission{
		ID:         1,
		GPSMissing: true,
		Duplicate:  true,
		QAFlags: []models.QAFlag{
			models.FlagGPSOutsideCoverage,
			models.FlagUnlistedFacilityUsed,
		},
	}

	record := ScoreSubmission(submission, answers, questions)

	assert.Equal(t, 1.0, record.Severity)
	assert.Equal(t, models.SeverityHigh, record.SeverityBucket)
	assert.Len(t, record.Flags, 8)
}

func TestScoreSubmission_Deterministic(t *testing.T) {
	questions := []models.TemplateQuestion{{ID: 1, IsRequired: true}}
	answers := []models.Answer{{Confidence: floatPtr(0.2)}}
	submission := &models.Submission{ID: 1, GPSMissing: true}

	first := ScoreSubmission(submission, answers, questions)
	second := ScoreSubmission(submission, answers, questions)
	assert.Equal(t, first, second)
}

func TestBucketForSeverity(t *testing.T) {
	tests := []struct {
		severity float64
		want     string
	}{
		{0, models.SeverityLow},
		{0.39, models.SeverityLow},
		{0.4, models.SeverityMedium},
		{0.69, models.SeverityMedium},
		{0.7, models.SeverityHigh},
		{1.0, models.SeverityHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, models.BucketForSeverity(tt.severity), "severity %v", tt.severity)
	}
}
