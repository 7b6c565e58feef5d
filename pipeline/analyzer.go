package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	pipelineerrors "github.com/youthlab/policyrag/errors"
	"github.com/youthlab/policyrag/message"
	"github.com/youthlab/policyrag/policy"
	"github.com/youthlab/policyrag/prompt"
	"github.com/youthlab/policyrag/provider"
)

// QueryAnalysis is the combined classification and condition extraction
// produced by the analysis model call. Field names follow the policy store's
// column vocabulary so conditions map directly onto filter columns.
type QueryAnalysis struct {
	Category                 policy.Category    `json:"lclsf_nm"`
	SubCategory              policy.SubCategory `json:"mclsf_nm"`
	QueryKeywords            string             `json:"query_keywords"`
	QueryIntent              policy.QueryIntent `json:"query_intent"`
	ClassificationConfidence float64            `json:"classification_confidence"`
	Reasoning                string             `json:"reasoning"`

	Age                   int                  `json:"age"`
	MaritalStatus         policy.MaritalStatus `json:"mrg_stts_cd"`
	Major                 policy.Major         `json:"plcy_major_cd"`
	JobStatus             policy.JobStatus     `json:"job_cd"`
	Education             policy.Education     `json:"school_cd"`
	Region                string               `json:"zip_cd"`
	IncomeCondition       string               `json:"earn_etc_cn"`
	AdditionalRequirement string               `json:"additional_requirement"`
	ExtractionConfidence  float64              `json:"extraction_confidence"`
}

// Validate checks every closed-set field against its domain. A model output
// that fails here is treated as a classification failure, never forwarded.
func (a *QueryAnalysis) Validate() error {
	if !a.Category.Valid() {
		return fmt.Errorf("invalid category %q", a.Category)
	}
	if !a.SubCategory.Valid() {
		return fmt.Errorf("invalid sub-category %q", a.SubCategory)
	}
	if !a.QueryIntent.Valid() {
		return fmt.Errorf("invalid query intent %q", a.QueryIntent)
	}
	if !a.MaritalStatus.Valid() {
		return fmt.Errorf("invalid marital status %q", a.MaritalStatus)
	}
	if !a.Major.Valid() {
		return fmt.Errorf("invalid major %q", a.Major)
	}
	if !a.JobStatus.Valid() {
		return fmt.Errorf("invalid job status %q", a.JobStatus)
	}
	if !a.Education.Valid() {
		return fmt.Errorf("invalid education %q", a.Education)
	}
	if a.ClassificationConfidence < 0 || a.ClassificationConfidence > 1 {
		return fmt.Errorf("classification confidence %.2f out of range", a.ClassificationConfidence)
	}
	if a.ExtractionConfidence < 0 || a.ExtractionConfidence > 1 {
		return fmt.Errorf("extraction confidence %.2f out of range", a.ExtractionConfidence)
	}
	if a.Age < 0 {
		return fmt.Errorf("invalid age %d", a.Age)
	}
	return nil
}

// analysisSchema is the structured-output contract for the analysis call.
var analysisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"lclsf_nm": map[string]any{
			"type":        "string",
			"enum":        []string{"주거", "일자리", "일반", "그 외 정책", "기타"},
			"description": "대분류(lclsf_nm): 주거, 일자리, 일반, 그 외 정책, 기타",
		},
		"mclsf_nm": map[string]any{
			"type": []string{"string", "null"},
			"enum": []any{
				"대출, 이자, 전월세 등 금융지원",
				"임대주택, 기숙사 등 주거지원",
				"이사비, 부동산 중개비 등 보조금지원",
				"전문인력양성, 훈련",
				"창업",
				"취업 전후 지원",
				nil,
			},
			"description": "중분류(mclsf_nm): 주거-금융지원/주거지원/보조금지원, 일자리-훈련/창업/취업지원, 기타-없음",
		},
		"query_keywords": map[string]any{
			"type":        []string{"string", "null"},
			"description": "사용자 질문에서 추출된 키워드",
		},
		"query_intent": map[string]any{
			"type":        "string",
			"enum":        []string{"맞춤 정책 검색", "정책 상세 설명", "기타"},
			"description": "사용자 질문의 의도 (맞춤 정책 검색, 정책 상세 설명, 기타)",
		},
		"classification_confidence": map[string]any{
			"type":        "number",
			"minimum":     0.0,
			"maximum":     1.0,
			"description": "분류 신뢰도 (0.0-1.0)",
		},
		"reasoning": map[string]any{
			"type":        "string",
			"description": "분류 근거 설명",
		},
		"age": map[string]any{
			"type":        []string{"integer", "null"},
			"description": "사용자 나이",
		},
		"mrg_stts_cd": map[string]any{
			"type":        []string{"string", "null"},
			"enum":        []any{"기혼", "미혼", nil},
			"description": "결혼 상태",
		},
		"plcy_major_cd": map[string]any{
			"type":        []string{"string", "null"},
			"enum":        []any{"인문계열", "자연계열", "사회계열", "상경계열", "이학계열", "공학계열", "예체능계열", "농산업계열", nil},
			"description": "전공 계열",
		},
		"job_cd": map[string]any{
			"type":        []string{"string", "null"},
			"enum":        []any{"재직자", "미취업자", "자영업자", "(예비)창업자", "영농종사자", "비정규직", nil},
			"description": "취업 상태",
		},
		"school_cd": map[string]any{
			"type":        []string{"string", "null"},
			"enum":        []any{"고졸 미만", "고교 재학", "고졸 예정", "고교 졸업", "대학 재학", "대졸 예정", "대학 졸업", "석·박사", nil},
			"description": "학력 상태",
		},
		"zip_cd": map[string]any{
			"type":        []string{"string", "null"},
			"description": "거주지 (광역시/도, 시군구)",
		},
		"earn_etc_cn": map[string]any{
			"type":        []string{"string", "null"},
			"description": "소득 요건 (예: 중위소득 150% 이하, 월소득 200만원 이하 등)",
		},
		"additional_requirement": map[string]any{
			"type":        []string{"string", "null"},
			"description": "기타 추가 요건이나 상황",
		},
		"extraction_confidence": map[string]any{
			"type":        "number",
			"minimum":     0.0,
			"maximum":     1.0,
			"description": "조건 추출 신뢰도 (0.0-1.0)",
		},
	},
	// Strict structured outputs demand that every property is required and
	// that no undeclared keys slip through; absence is expressed with the
	// null-typed unions above, not by omission.
	"required": []string{
		"lclsf_nm", "mclsf_nm", "query_keywords", "query_intent",
		"classification_confidence", "reasoning", "age", "mrg_stts_cd",
		"plcy_major_cd", "job_cd", "school_cd", "zip_cd", "earn_etc_cn",
		"additional_requirement", "extraction_confidence",
	},
	"additionalProperties": false,
}

// Analyzer performs the combined classification and condition extraction.
type Analyzer struct {
	llm     provider.LLMClient
	prompts *prompt.Manager
	logger  *slog.Logger
}

// NewAnalyzer creates an Analyzer on the given model.
func NewAnalyzer(llm provider.LLMClient, prompts *prompt.Manager, logger *slog.Logger) *Analyzer {
	return &Analyzer{llm: llm, prompts: prompts, logger: logger}
}

// Analyze extracts the last user message from the conversation and runs the
// structured analysis call. It returns the question text alongside the
// analysis so later stages never re-scan the conversation.
func (a *Analyzer) Analyze(ctx context.Context, messages []*message.Message) (string, *QueryAnalysis, error) {
	query := message.LastUserText(messages)
	if query == "" {
		return "", nil, pipelineerrors.ErrMissingInput
	}

	systemText, err := a.prompts.Render(tmplAnalysisSystem, nil)
	if err != nil {
		return query, nil, fmt.Errorf("%w: %v", pipelineerrors.ErrClassification, err)
	}
	userText, err := a.prompts.Render(tmplAnalysisUser, map[string]any{"Query": query})
	if err != nil {
		return query, nil, fmt.Errorf("%w: %v", pipelineerrors.ErrClassification, err)
	}

	resp, err := a.llm.Generate(ctx, &provider.GenerateRequest{
		Messages: []*message.Message{
			message.NewMessage(message.RoleSystem, systemText),
			message.NewMessage(message.RoleUser, userText),
		},
		ResponseFormat: &provider.ResponseFormat{
			Name:   "query_analysis",
			Schema: analysisSchema,
			Strict: true,
		},
	})
	if err != nil {
		return query, nil, fmt.Errorf("%w: %v", pipelineerrors.ErrClassification, err)
	}

	analysis, err := decodeJSON[QueryAnalysis](resp.Message.Text())
	if err != nil {
		return query, nil, fmt.Errorf("%w: %v", pipelineerrors.ErrClassification, err)
	}

	analysis.normalize()
	if err := analysis.Validate(); err != nil {
		return query, nil, fmt.Errorf("%w: %v", pipelineerrors.ErrClassification, err)
	}

	a.logger.Info("query analysis complete",
		"category", analysis.Category,
		"sub_category", analysis.SubCategory,
		"intent", analysis.QueryIntent,
		"classification_confidence", analysis.ClassificationConfidence,
		"extraction_confidence", analysis.ExtractionConfidence)

	return query, analysis, nil
}

// normalize trims whitespace from free-text fields and applies the intent
// default before validation.
func (a *QueryAnalysis) normalize() {
	a.QueryKeywords = strings.TrimSpace(a.QueryKeywords)
	a.Region = strings.TrimSpace(a.Region)
	a.IncomeCondition = strings.TrimSpace(a.IncomeCondition)
	a.AdditionalRequirement = strings.TrimSpace(a.AdditionalRequirement)
	if a.QueryIntent == "" {
		a.QueryIntent = policy.IntentPolicySearch
	}
}
