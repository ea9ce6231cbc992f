package models

// Severity bucket labels. Boundaries: low < 0.4 <= medium < 0.7 <= high.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// QARecord is the derived quality-assurance read contract for one submission.
// It is computed on read and never mutates the submission. Field names and
// ranges are stable; presentation layers depend on them.
type QARecord struct {
	SurveyID             int64    `json:"survey_id"`
	Flags                []QAFlag `json:"flags"`
	Severity             float64  `json:"severity"`
	SeverityBucket       string   `json:"severity_bucket"`
	MissingRequiredCount int      `json:"missing_required_count"`
	EmptyAnswerCount     int      `json:"empty_answer_count"`
	LowConfidenceCount   int      `json:"low_confidence_count"`
	TotalAnswers         int      `json:"total_answers"`
	GPSMissing           bool     `json:"gps_missing"`
	GPSPresent           bool     `json:"gps_present"`
	HasSuspiciousValues  bool     `json:"has_suspicious_values"`
}

// BucketForSeverity maps a severity score to its display bucket.
func BucketForSeverity(severity float64) string {
	switch {
	case severity >= 0.7:
		return SeverityHigh
	case severity >= 0.4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
