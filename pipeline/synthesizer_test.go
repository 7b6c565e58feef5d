package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	pipelineerrors "github.com/youthlab/policyrag/errors"
	"github.com/youthlab/policyrag/pkg/logging"
	"github.com/youthlab/policyrag/policy"
)

func newTestSynthesizer(t *testing.T, llm *fakeLLM) *Synthesizer {
	t.Helper()
	prompts, err := newPromptManager()
	if err != nil {
		t.Fatalf("prompt corpus: %v", err)
	}
	return NewSynthesizer(llm, fakeSchemaSource{}, prompts, logging.WithComponent("test"), 10, 5)
}

func TestSynthesizePromptCarriesSchemaAndRules(t *testing.T) {
	llm := &fakeLLM{responses: []string{testSQLJSON}}
	s := newTestSynthesizer(t, llm)

	analysis := &QueryAnalysis{
		Category: policy.CategoryHousing,
		Age:      27,
		Region:   "경기도 수원시 팔달구",
	}
	generated, err := s.Synthesize(context.Background(), "전세자금 대출", analysis)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.HasPrefix(generated.Query, "SELECT") {
		t.Errorf("unexpected statement: %s", generated.Query)
	}

	system := llm.requests[0].Messages[0].Text()
	if !strings.Contains(system, "PostgreSQL Database Schema:") {
		t.Error("system prompt must embed the introspected schema")
	}
	if !strings.Contains(system, "**분류 정보:** 주거") {
		t.Errorf("system prompt missing category:\n%s", system)
	}
	if !strings.Contains(system, "LIMIT을 사용하여 결과 수를 10개로 제한하세요") {
		t.Error("system prompt missing row cap rule")
	}
	if !strings.Contains(system, "각각 5개씩 반환합니다") {
		t.Error("system prompt missing per-category cap rule")
	}
	if !strings.Contains(system, "sprt_trgt_min_age <= 27") {
		t.Error("age example must use the extracted age")
	}
	if !strings.Contains(system, `"zip_cd":"경기도 수원시 팔달구"`) {
		t.Errorf("conditions JSON missing region:\n%s", system)
	}
}

func TestSynthesizeGuardsOutput(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{
		"sql_query": "SELECT * FROM accounts LIMIT 10",
		"explanation": "x",
		"confidence": 0.8
	}`}}
	s := newTestSynthesizer(t, llm)

	_, err := s.Synthesize(context.Background(), "q", &QueryAnalysis{Category: policy.CategoryJobs})
	if !errors.Is(err, pipelineerrors.ErrUnsafeQuery) {
		t.Fatalf("expected ErrUnsafeQuery for unknown table, got %v", err)
	}
}

func TestSynthesizeModelFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}
	s := newTestSynthesizer(t, llm)

	_, err := s.Synthesize(context.Background(), "q", &QueryAnalysis{Category: policy.CategoryJobs})
	if !errors.Is(err, pipelineerrors.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
}
