package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gabrielabsi/cvx-backend/pkg/checkout"
	"github.com/gabrielabsi/cvx-backend/pkg/llm"
	"github.com/gabrielabsi/cvx-backend/pkg/ratelimit"
)

const usageEndpoint = "resume-analyze"

// usageWindow approximates one billing month for quota counters.
const usageWindow = 30 * 24 * time.Hour

// UseCase runs one resume/job fit analysis for a user.
type UseCase interface {
	Analyze(ctx context.Context, userID uuid.UUID, plan, resumeText, jobDescription string) (Report, error)
}

type service struct {
	llm        llm.ChatModel
	modelName  string
	plans      *checkout.PlanCatalog
	usage      *ratelimit.Limiter
	maxTextLen int
}

// NewService wires the analysis use case. usage shares the generic counter
// primitive with the abuse rate limits; here it bookkeeps the per-plan
// monthly quota.
func NewService(model llm.ChatModel, modelName string, plans *checkout.PlanCatalog, usage *ratelimit.Limiter) UseCase {
	return &service{
		llm:        model,
		modelName:  modelName,
		plans:      plans,
		usage:      usage,
		maxTextLen: 12_000,
	}
}

func (s *service) Analyze(ctx context.Context, userID uuid.UUID, plan, resumeText, jobDescription string) (Report, error) {
	resumeText = strings.TrimSpace(resumeText)
	if resumeText == "" {
		return Report{}, ErrEmptyResume
	}
	jobDescription = strings.TrimSpace(jobDescription)
	if jobDescription == "" {
		return Report{}, ErrEmptyJobDescription
	}

	if quota := s.monthlyQuota(plan); quota > 0 {
		if !s.usage.Allow(ctx, userID.String(), usageEndpoint, quota, usageWindow) {
			return Report{}, ErrQuotaExceeded
		}
	}

	if len(resumeText) > s.maxTextLen {
		resumeText = resumeText[:s.maxTextLen]
	}
	if len(jobDescription) > s.maxTextLen {
		jobDescription = jobDescription[:s.maxTextLen]
	}

	keywords := ExtractKeywords(jobDescription)
	matched, missing := matchKeywords(keywords, resumeText)
	if matched == nil {
		matched = []string{}
	}
	if missing == nil {
		missing = []string{}
	}

	rep := Report{
		Score:           baseScore(len(matched), len(keywords)),
		MatchedKeywords: matched,
		KeywordGaps:     missing,
		Strengths:       []string{},
		Weaknesses:      []string{},
	}

	// Try to enrich with LLM; on failure keep the deterministic report.
	if s.llm != nil {
		if enriched, err := s.askLLM(ctx, resumeText, jobDescription, matched, missing); err == nil {
			if enriched.FitScore >= 0 && enriched.FitScore <= 100 {
				rep.Score = enriched.FitScore
			}
			rep.Strengths = enriched.Strengths
			rep.Weaknesses = enriched.Weaknesses
			rep.RewrittenResume = enriched.RewrittenResume
			rep.Model = s.modelName
		}
	}
	return rep, nil
}

func (s *service) monthlyQuota(plan string) int {
	p, ok := s.plans.Get(plan)
	if !ok {
		// Unknown tier gets the free quota rather than unlimited access.
		p, _ = s.plans.Get("free")
	}
	return p.MonthlyAnalyses
}

func baseScore(matched, total int) int {
	if total == 0 {
		return 0
	}
	return matched * 100 / total
}

type llmPayload struct {
	FitScore        int      `json:"fitScore"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	RewrittenResume string   `json:"rewrittenResume"`
}

func (s *service) askLLM(ctx context.Context, resumeText, jobDescription string, matched, missing []string) (llmPayload, error) {
	system := "You are a career coach and recruiter. Reply strictly with JSON, no prose around it."
	user := fmt.Sprintf(
		"Job description:\n<<<\n%s\n>>>\n\nResume:\n<<<\n%s\n>>>\n\nKeywords already present: %s\nKeywords missing: %s\n\nReturn JSON with fields:\n- fitScore (integer 0-100)\n- strengths (string[])\n- weaknesses (string[])\n- rewrittenResume (string, the resume rewritten to better fit the job, same facts only)\n",
		jobDescription,
		resumeText,
		strings.Join(matched, ", "),
		strings.Join(missing, ", "),
	)
	raw, err := s.llm.Ask(ctx, system, user)
	if err != nil {
		return llmPayload{}, err
	}
	raw = strings.TrimSpace(raw)
	var out llmPayload
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}
	// Models often wrap JSON in fences or prose; take the outermost braces.
	if i := strings.Index(raw, "{"); i >= 0 {
		if j := strings.LastIndex(raw, "}"); j > i {
			if err := json.Unmarshal([]byte(raw[i:j+1]), &out); err == nil {
				return out, nil
			}
		}
	}
	return llmPayload{}, fmt.Errorf("model reply is not valid JSON")
}
