package domain

import "encoding/json"

// ProjectScores holds the five rubric parameters, each scored 1-5.
type ProjectScores struct {
	Correctness   int `json:"correctness"`
	CodeQuality   int `json:"code_quality"`
	Resilience    int `json:"resilience"`
	Documentation int `json:"documentation"`
	Creativity    int `json:"creativity"`
}

// EvaluationResult is the validated scoring payload produced by the LLM.
type EvaluationResult struct {
	CVMatchRate     float64       `json:"cv_match_rate"`
	CVFeedback      string        `json:"cv_feedback"`
	ProjectScores   ProjectScores `json:"project_scores"`
	ProjectScore    float64       `json:"project_score"`
	ProjectFeedback string        `json:"project_feedback"`
	OverallSummary  string        `json:"overall_summary"`
}

// EvaluationResultFromMap decodes a payload into the typed schema. Callers
// validate the map first; a decode failure after that means a field carries
// the wrong type (e.g. numeric feedback) and the payload does not fit the
// schema after all.
func EvaluationResultFromMap(obj map[string]interface{}) (EvaluationResult, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return EvaluationResult{}, err
	}
	var result EvaluationResult
	if err := json.Unmarshal(b, &result); err != nil {
		return EvaluationResult{}, err
	}
	return result, nil
}

// Outcome is the terminal payload written to a completed Job. Exactly one of
// three shapes is produced: the evaluation itself, a validation-failure
// wrapper, or a provider-failure wrapper. Completion never implies success;
// callers inspect the "error" key to tell them apart.
type Outcome struct {
	payload interface{}
}

// SuccessOutcome wraps a validated evaluation.
func SuccessOutcome(result EvaluationResult) Outcome {
	return Outcome{payload: result}
}

// ValidationFailedOutcome wraps a well-formed but invalid payload together
// with the reason it was rejected.
func ValidationFailedOutcome(reason string, raw map[string]interface{}) Outcome {
	return Outcome{payload: map[string]interface{}{
		"error": "Validation failed: " + reason,
		"raw":   raw,
	}}
}

// ProviderFailedOutcome records an exhausted provider call with a short
// diagnostic.
func ProviderFailedOutcome(message, trace string) Outcome {
	return Outcome{payload: map[string]interface{}{
		"error": message,
		"trace": trace,
	}}
}

// JSON serializes the outcome for storage in the Job's result column.
func (o Outcome) JSON() (string, error) {
	b, err := json.Marshal(o.payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
