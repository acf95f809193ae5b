package evaluator

import (
	"fmt"
	"math"
)

// ValidationError names the specific field that failed the schema check.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// requiredKeys are checked in order; validation fails fast on the first
// missing one.
var requiredKeys = []string{
	"cv_match_rate",
	"cv_feedback",
	"project_scores",
	"project_score",
	"project_feedback",
	"overall_summary",
}

var scoreFields = []string{"correctness", "code_quality", "resilience", "documentation", "creativity"}

// ValidateEvaluationResult checks an LLM payload against the evaluation
// schema. The input is never mutated. Feedback and summary strings only need
// to be present; their content is not range-checked.
func ValidateEvaluationResult(obj map[string]interface{}) error {
	if obj == nil {
		return &ValidationError{Reason: "result must be an object"}
	}

	for _, k := range requiredKeys {
		if _, ok := obj[k]; !ok {
			return &ValidationError{Field: k, Reason: "missing key: " + k}
		}
	}

	if err := validateFloat(obj["cv_match_rate"], 0.0, 1.0, "cv_match_rate"); err != nil {
		return err
	}

	ps, ok := obj["project_scores"].(map[string]interface{})
	if !ok {
		return &ValidationError{Field: "project_scores", Reason: "project_scores must be an object"}
	}
	for _, f := range scoreFields {
		v, ok := ps[f]
		if !ok {
			return &ValidationError{Field: "project_scores." + f, Reason: "missing project_scores." + f}
		}
		if err := validateInt(v, 1, 5, "project_scores."+f); err != nil {
			return err
		}
	}

	return validateFloat(obj["project_score"], 0.0, 10.0, "project_score")
}

func validateFloat(v interface{}, min, max float64, field string) error {
	f, ok := asNumber(v)
	if !ok {
		return &ValidationError{Field: field, Reason: field + " must be a number"}
	}
	if f < min || f > max {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%s must be between %g and %g", field, min, max)}
	}
	return nil
}

func validateInt(v interface{}, min, max int, field string) error {
	f, ok := asNumber(v)
	if !ok || f != math.Trunc(f) {
		return &ValidationError{Field: field, Reason: field + " must be an integer"}
	}
	n := int(f)
	if n < min || n > max {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%s must be between %d and %d", field, min, max)}
	}
	return nil
}

// asNumber accepts the numeric types encoding/json can produce plus plain
// ints from hand-built payloads.
func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
