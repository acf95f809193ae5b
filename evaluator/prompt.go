package evaluator

import "fmt"

// SystemInstruction is the system message sent with every evaluation request.
const SystemInstruction = "You are an expert backend hiring evaluator. " +
	"YOU MUST RETURN ONLY A VALID JSON OBJECT and nothing else."

// Rubric is the fixed scoring rubric embedded in every prompt.
const Rubric = "Correctness (1-5), Code Quality (1-5), Resilience (1-5), " +
	"Documentation (1-5), Creativity (1-5)"

// Hard caps on embedded document length. They bound payload size and token
// cost no matter how large the uploads are.
const (
	maxCVChars     = 4000
	maxReportChars = 8000
)

// BuildPrompt assembles the user message for the evaluation call. Pure: no
// I/O, identical inputs produce identical output.
func BuildPrompt(jobDesc, cvText, reportText, rubric string) string {
	return fmt.Sprintf(`
JOB_DESCRIPTION:
%s

CANDIDATE_CV:
%s

PROJECT_REPORT:
%s

SCORING_RUBRIC:
%s

Return ONLY a JSON object with keys:
- cv_match_rate: float between 0 and 1
- cv_feedback: short string
- project_scores: {correctness:1-5, code_quality:1-5, resilience:1-5, documentation:1-5, creativity:1-5}
- project_score: float 0-10
- project_feedback: string
- overall_summary: string (2-4 sentences)
`,
		jobDesc,
		truncateRunes(cvText, maxCVChars),
		truncateRunes(reportText, maxReportChars),
		rubric)
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
