package analysis

import "errors"

var (
	ErrEmptyResume         = errors.New("empty resume text")
	ErrEmptyJobDescription = errors.New("empty job description")
	ErrQuotaExceeded       = errors.New("monthly analysis quota exceeded")
)

// Report is the resume/job fit result returned to the client. Score is
// 0..100. MatchedKeywords and KeywordGaps always come from the
// deterministic pass; the remaining fields are LLM enrichment and stay
// empty when the model is unavailable.
type Report struct {
	Score           int      `json:"score"`
	MatchedKeywords []string `json:"matchedKeywords"`
	KeywordGaps     []string `json:"keywordGaps"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	RewrittenResume string   `json:"rewrittenResume,omitempty"`
	Model           string   `json:"model,omitempty"`
}
