package services

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/models"
	"github.com/openfield-hq/openfield-engine/pkg/repositories"
)

// Severity weights. The output contract of ScoreSubmission is fixed; these
// numbers are tunable without breaking consumers.
const (
	weightMissingRequired = 0.45
	weightEmptyAnswers    = 0.20
	weightGPSMissing      = 0.20
	weightGPSOutside      = 0.15
	weightLowConfidence   = 0.15
	weightSuspicious      = 0.15
	boostDuplicate        = 0.15
	boostUnlistedFacility = 0.12

	capMissingRequired = 5
	capEmptyAnswers    = 10
	capLowConfidence   = 6

	lowConfidenceThreshold = 0.6
)

// suspiciousPlaceholders are free-text values that signal a filler answer.
var suspiciousPlaceholders = map[string]struct{}{
	"n/a": {}, "na": {}, "none": {}, "nil": {}, "test": {}, "xxx": {},
}

// QAService computes quality-assurance records and applies explicit review
// decisions. Scoring is read-only; only SetReviewStatus mutates anything.
type QAService interface {
	GetRecord(ctx context.Context, submissionID int64) (*models.QARecord, error)
	SetReviewStatus(ctx context.Context, submissionID int64, status string, reason *string) error
}

type qaService struct {
	submissions repositories.SubmissionRepository
	templates   repositories.TemplateRepository
	audit       AuditService
	logger      *zap.Logger
}

// NewQAService creates a new QAService.
func NewQAService(
	submissions repositories.SubmissionRepository,
	templates repositories.TemplateRepository,
	audit AuditService,
	logger *zap.Logger,
) QAService {
	return &qaService{
		submissions: submissions,
		templates:   templates,
		audit:       audit,
		logger:      logger.Named("qa-service"),
	}
}

var _ QAService = (*qaService)(nil)

func (s *qaService) GetRecord(ctx context.Context, submissionID int64) (*models.QARecord, error) {
	submission, err := s.submissions.Get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.submissions.ListAnswers(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	questions, err := s.templates.ListQuestions(ctx, submission.TemplateID)
	if err != nil {
		return nil, err
	}
	return ScoreSubmission(submission, answers, questions), nil
}

// SetReviewStatus records an explicit reviewer decision. Scoring never calls
// this; a high severity only prioritizes the submission for a human.
func (s *qaService) SetReviewStatus(ctx context.Context, submissionID int64, status string, reason *string) error {
	switch status {
	case models.ReviewStatusApproved, models.ReviewStatusRejected, models.ReviewStatusRevision, models.ReviewStatusPending:
	default:
		return apperrors.NewValidation("status", apperrors.CodeInvalidInput, "unknown review status")
	}

	actor := models.ActorOrAnonymous(ctx)
	if err := s.submissions.SetReviewStatus(ctx, submissionID, status, reason, actor.ID); err != nil {
		return err
	}

	metadata := map[string]any{"status": status}
	if reason != nil {
		metadata["reason"] = *reason
	}
	s.audit.Record(ctx, models.AuditSubmissionReviewed, "submission", submissionID, metadata)
	s.logger.Info("Review status set",
		zap.Int64("submission_id", submissionID),
		zap.String("status", status))
	return nil
}

// ScoreSubmission derives the QA record for one submission. It is pure and
// deterministic: same inputs, same record, and it never mutates its inputs.
//
// Severity is a weighted sum of capped signal counts plus flat boosts for the
// intake-time flags, clamped to [0,1] and rounded to four decimals.
func ScoreSubmission(submission *models.Submission, answers []models.Answer, questions []models.TemplateQuestion) *models.QARecord {
	answered := make(map[int64]bool, len(answers))
	var emptyCount, lowConfidenceCount int
	suspicious := false

	for _, a := range answers {
		value := ""
		if a.AnswerText != nil {
			value = strings.TrimSpace(*a.AnswerText)
		}
		if value == "" {
			emptyCount++
		} else if a.QuestionID != nil {
			answered[*a.QuestionID] = true
		}
		if a.Confidence != nil && *a.Confidence < lowConfidenceThreshold {
			lowConfidenceCount++
		}
		if isSuspiciousValue(value) {
			suspicious = true
		}
	}

	missingRequired := 0
	for _, q := range questions {
		if q.IsRequired && !answered[q.ID] {
			missingRequired++
		}
	}

	gpsPresent := submission.GPS != nil
	gpsOutside := hasFlag(submission.QAFlags, models.FlagGPSOutsideCoverage)
	duplicate := submission.Duplicate || hasFlag(submission.QAFlags, models.FlagDuplicateFacilityDay)
	unlisted := hasFlag(submission.QAFlags, models.FlagUnlistedFacilityUsed)

	severity := cappedRatio(missingRequired, capMissingRequired)*weightMissingRequired +
		cappedRatio(emptyCount, capEmptyAnswers)*weightEmptyAnswers +
		cappedRatio(lowConfidenceCount, capLowConfidence)*weightLowConfidence
	if submission.GPSMissing {
		severity += weightGPSMissing
	}
	if gpsOutside {
		severity += weightGPSOutside
	}
	if suspicious {
		severity += weightSuspicious
	}
	if duplicate {
		severity += boostDuplicate
	}
	if unlisted {
		severity += boostUnlistedFacility
	}
	severity = math.Round(math.Min(severity, 1.0)*10000) / 10000

	var flags []models.QAFlag
	if missingRequired > 0 {
		flags = append(flags, models.FlagMissingRequired)
	}
	if emptyCount > 0 {
		flags = append(flags, models.FlagEmptyAnswers)
	}
	if lowConfidenceCount > 0 {
		flags = append(flags, models.FlagLowConfidence)
	}
	if submission.GPSMissing {
		flags = append(flags, models.FlagGPSMissing)
	}
	if gpsOutside {
		flags = append(flags, models.FlagGPSOutsideCoverage)
	}
	if suspicious {
		flags = append(flags, models.FlagSuspiciousValues)
	}
	if duplicate {
		flags = append(flags, models.FlagDuplicateFacilityDay)
	}
	if unlisted {
		flags = append(flags, models.FlagUnlistedFacilityUsed)
	}

	return &models.QARecord{
		SurveyID:             submission.ID,
		Flags:                flags,
		Severity:             severity,
		SeverityBucket:       models.BucketForSeverity(severity),
		MissingRequiredCount: missingRequired,
		EmptyAnswerCount:     emptyCount,
		LowConfidenceCount:   lowConfidenceCount,
		TotalAnswers:         len(answers),
		GPSMissing:           submission.GPSMissing,
		GPSPresent:           gpsPresent,
		HasSuspiciousValues:  suspicious,
	}
}

func cappedRatio(count, limit int) float64 {
	if count > limit {
		count = limit
	}
	return float64(count) / float64(limit)
}

func hasFlag(flags []models.QAFlag, flag models.QAFlag) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

// isSuspiciousValue reports whether a non-empty answer looks like a filler.
func isSuspiciousValue(value string) bool {
	if value == "" {
		return false
	}
	_, found := suspiciousPlaceholders[strings.ToLower(value)]
	return found
}
