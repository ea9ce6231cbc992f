package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/models"
)

// AnswerInput is one answered question as received from a client. Values is
// used for multi-choice questions; Value everywhere else.
type AnswerInput struct {
	QuestionID   *int64   `json:"question_id,omitempty"`
	QuestionText string   `json:"question_text,omitempty"`
	Value        string   `json:"value"`
	Values       []string `json:"values,omitempty"`
	Source       *string  `json:"source,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

// ConsentInput is the consent block captured when a template enables consent.
type ConsentInput struct {
	Answer    string `json:"answer"`
	Signature string `json:"signature,omitempty"`
}

// effectiveValue flattens an answer to one comparable string.
func (a *AnswerInput) effectiveValue() string {
	if len(a.Values) > 0 {
		return strings.Join(a.Values, "; ")
	}
	return strings.TrimSpace(a.Value)
}

// validateAnswers checks every answer against its question's declared rules
// and the template's consent/attestation gates. All violations are collected
// into one error; callers get the complete list, never the first failure.
func validateAnswers(template *models.Template, questions []models.TemplateQuestion, answers []AnswerInput, consent *ConsentInput, attestation *bool) *apperrors.ValidationError {
	verr := &apperrors.ValidationError{}

	byQuestion := make(map[int64]*AnswerInput, len(answers))
	for i := range answers {
		if answers[i].QuestionID != nil {
			byQuestion[*answers[i].QuestionID] = &answers[i]
		}
	}

	for i := range questions {
		q := &questions[i]
		answer := byQuestion[q.ID]
		value := ""
		if answer != nil {
			value = answer.effectiveValue()
		}

		if value == "" {
			if q.IsRequired {
				verr.Add(q.QuestionText, apperrors.CodeMissingRequired, "required question has no answer")
			}
			continue
		}

		validateAnswerValue(verr, q, answer, value)
	}

	if template.EnableConsent {
		switch {
		case consent == nil:
			verr.Add("consent", apperrors.CodeConsentRequired, "consent answer is required")
		case consent.Answer != "YES" && consent.Answer != "NO":
			verr.Add("consent", apperrors.CodeConsentRequired, "consent answer must be YES or NO")
		case consent.Answer == "YES" && strings.TrimSpace(consent.Signature) == "":
			verr.Add("consent", apperrors.CodeSignatureRequired, "a signature is required when consent is YES")
		}
	}

	if template.EnableAttestation && (attestation == nil || !*attestation) {
		verr.Add("attestation", apperrors.CodeAttestationRequired, "attestation must be confirmed")
	}

	if verr.HasViolations() {
		return verr
	}
	return nil
}

func validateAnswerValue(verr *apperrors.ValidationError, q *models.TemplateQuestion, answer *AnswerInput, value string) {
	switch q.QuestionType {
	case models.QuestionTypeNumber:
		num, err := strconv.ParseFloat(value, 64)
		if err != nil {
			verr.Add(q.QuestionText, apperrors.CodeNotANumber, fmt.Sprintf("%q is not a number", value))
			return
		}
		if v := q.Validation; v != nil {
			if v.MinValue != nil && num < *v.MinValue {
				verr.Add(q.QuestionText, apperrors.CodeBelowMinimum, fmt.Sprintf("value must be at least %v", *v.MinValue))
			}
			if v.MaxValue != nil && num > *v.MaxValue {
				verr.Add(q.QuestionText, apperrors.CodeAboveMaximum, fmt.Sprintf("value must be at most %v", *v.MaxValue))
			}
		}

	case models.QuestionTypeDate:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			verr.Add(q.QuestionText, apperrors.CodeInvalidInput, "date must be formatted YYYY-MM-DD")
		}

	case models.QuestionTypeSingleChoice:
		if !isChoice(q.Choices, value) {
			verr.Add(q.QuestionText, apperrors.CodeInvalidChoice, fmt.Sprintf("%q is not one of the allowed choices", value))
		}

	case models.QuestionTypeMultiChoice:
		selected := answer.Values
		if len(selected) == 0 {
			selected = []string{value}
		}
		for _, choice := range selected {
			if !isChoice(q.Choices, choice) {
				verr.Add(q.QuestionText, apperrors.CodeInvalidChoice, fmt.Sprintf("%q is not one of the allowed choices", choice))
			}
		}

	default:
		if v := q.Validation; v != nil {
			length := len([]rune(value))
			if v.MinLength != nil && length < *v.MinLength {
				verr.Add(q.QuestionText, apperrors.CodeTooShort, fmt.Sprintf("answer must be at least %d characters", *v.MinLength))
			}
			if v.MaxLength != nil && length > *v.MaxLength {
				verr.Add(q.QuestionText, apperrors.CodeTooLong, fmt.Sprintf("answer must be at most %d characters", *v.MaxLength))
			}
			if v.Pattern != "" {
				re, err := regexp.Compile(v.Pattern)
				if err == nil && !re.MatchString(value) {
					verr.Add(q.QuestionText, apperrors.CodePatternMismatch, "answer does not match the expected format")
				}
			}
		}
	}
}

func isChoice(choices []models.QuestionChoice, value string) bool {
	for _, c := range choices {
		if strings.EqualFold(c.ChoiceText, value) {
			return true
		}
	}
	return false
}
