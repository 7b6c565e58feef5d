package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/youthlab/policyrag/config"
	"github.com/youthlab/policyrag/history"
	"github.com/youthlab/policyrag/message"
	"github.com/youthlab/policyrag/store"
)

type fakeSchemaSource struct{}

func (fakeSchemaSource) DescribeSchema(ctx context.Context) (string, error) {
	return "PostgreSQL Database Schema:\n\nTable: policies\n  - plcy_no: text NOT NULL\n", nil
}

type fakeExecutor struct {
	rows    []map[string]any
	err     error
	queries []string
}

func (f *fakeExecutor) Execute(ctx context.Context, query string) (*store.ResultSet, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return &store.ResultSet{Rows: f.rows, RowCount: len(f.rows)}, nil
}

type memoryHistory struct {
	records []*history.Record
}

func (m *memoryHistory) Save(ctx context.Context, rec *history.Record) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryHistory) Recent(ctx context.Context, sessionID string, limit int) ([]*history.Record, error) {
	return m.records, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Postgres: config.Postgres{
			Host: "localhost", Port: 5432, User: "postgres", DBName: "youth_policy", SSLMode: "disable",
		},
		ChatLLM:             config.LLM{APIKey: "test", Model: "gpt-4o"},
		ThinkingLLM:         config.LLM{APIKey: "test", Model: "o3-mini"},
		TopK:                10,
		PerCategoryCap:      5,
		MaxSelected:         10,
		ConfidenceThreshold: 0.5,
		ModelTimeout:        time.Minute,
		QueryTimeout:        15 * time.Second,
		RowTokenBudget:      100_000,
	}
}

const testSQLJSON = `{
	"sql_query": "SELECT * FROM policies WHERE lclsf_nm = '주거' ORDER BY similarity(plcy_nm, '전세') DESC LIMIT 10",
	"explanation": "주거 카테고리 필터 및 키워드 유사도 정렬",
	"confidence": 0.9
}`

const testSelectionJSON = `{
	"selected_policies": [
		{"plcy_no": "R001", "plcy_nm": "청년 전세자금 대출", "plcy_expln_nm": "전세 보증금 대출 이자 지원", "lclsf_nm": "주거", "mclsf_nm": "", "zip_cd": "경기도", "inq_cnt": 12}
	],
	"selection_reasoning": "거주지와 질문 키워드에 가장 적합"
}`

func newTestPipeline(t *testing.T, thinking, chat *fakeLLM, executor Executor, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(testConfig(), thinking, chat, fakeSchemaSource{}, executor, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func userTurn(text string) []*message.Message {
	return []*message.Message{message.NewMessage(message.RoleUser, text)}
}

func TestRunHousingQueryEndToEnd(t *testing.T) {
	thinking := &fakeLLM{responses: []string{housingAnalysisJSON, testSQLJSON, testSelectionJSON}}
	chat := &fakeLLM{responses: []string{"🏠 전세자금 대출 정책을 추천드립니다."}}
	executor := &fakeExecutor{rows: []map[string]any{
		{"plcy_no": "R001", "plcy_nm": "청년 전세자금 대출", "lclsf_nm": "주거", "aply_url_addr": "http://apply"},
	}}
	hist := &memoryHistory{}
	p := newTestPipeline(t, thinking, chat, executor, WithHistory(hist))

	result, err := p.Run(context.Background(), "sess-1", userTurn("27살 직장인 전세자금 대출 알려줘"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Rejected {
		t.Fatal("housing query must not be rejected")
	}
	if result.Response != "🏠 전세자금 대출 정책을 추천드립니다." {
		t.Errorf("unexpected response: %q", result.Response)
	}
	if len(executor.queries) != 1 || !strings.HasPrefix(executor.queries[0], "SELECT") {
		t.Errorf("expected one guarded SELECT execution, got %v", executor.queries)
	}
	if len(result.Selected) != 1 || result.Selected[0].PolicyNo != "R001" {
		t.Errorf("unexpected selection: %+v", result.Selected)
	}
	// Restricted columns never reach the caller.
	for _, row := range result.Rows {
		if _, ok := row["aply_url_addr"]; ok {
			t.Error("restricted column leaked into result rows")
		}
	}
	// The assistant turn is appended to the conversation.
	last := result.Messages[len(result.Messages)-1]
	if last.Role != message.RoleAssistant || last.Content != result.Response {
		t.Errorf("assistant message not appended: %+v", last)
	}

	if len(hist.records) != 1 {
		t.Fatalf("expected one history record, got %d", len(hist.records))
	}
	rec := hist.records[0]
	if rec.SessionID != "sess-1" || rec.Category != "주거" || rec.Rejected {
		t.Errorf("history record mismatch: %+v", rec)
	}
	if len(rec.Policies) != 1 || rec.Policies[0] != "R001" {
		t.Errorf("history policies mismatch: %+v", rec.Policies)
	}
}

func TestRunRejectsOutOfScopeQuery(t *testing.T) {
	thinking := &fakeLLM{responses: []string{`{
		"lclsf_nm": "기타",
		"query_intent": "기타",
		"classification_confidence": 0.99,
		"reasoning": "날씨 질문",
		"extraction_confidence": 1.0
	}`}}
	chat := &fakeLLM{}
	executor := &fakeExecutor{}
	p := newTestPipeline(t, thinking, chat, executor)

	result, err := p.Run(context.Background(), "sess-2", userTurn("오늘 날씨 어때?"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Rejected {
		t.Fatal("out-of-scope query must be rejected")
	}
	if result.Response != rejectionMessage {
		t.Errorf("refusal must be the fixed template, got:\n%s", result.Response)
	}
	if len(executor.queries) != 0 {
		t.Error("rejected query must not reach the database")
	}
	if len(chat.requests) != 0 {
		t.Error("rejected query must not invoke the chat model")
	}
}

func TestRunRejectsOtherPolicyCategory(t *testing.T) {
	thinking := &fakeLLM{responses: []string{`{
		"lclsf_nm": "그 외 정책",
		"query_intent": "맞춤 정책 검색",
		"classification_confidence": 0.8,
		"reasoning": "문화 정책 질문",
		"extraction_confidence": 0.7
	}`}}
	p := newTestPipeline(t, thinking, &fakeLLM{}, &fakeExecutor{})

	result, err := p.Run(context.Background(), "sess-3", userTurn("문화누리카드 알려줘"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Rejected || result.Response != rejectionMessage {
		t.Errorf("non-housing/jobs policy question must get the fixed refusal")
	}
}

func TestRunAnalysisFailureReportsError(t *testing.T) {
	thinking := &fakeLLM{err: errors.New("model unavailable")}
	p := newTestPipeline(t, thinking, &fakeLLM{}, &fakeExecutor{})

	result, err := p.Run(context.Background(), "sess-4", userTurn("전세 대출"))
	if err != nil {
		t.Fatalf("Run must absorb stage failures: %v", err)
	}

	if !result.Rejected {
		t.Fatal("analysis failure routes to the refusal path")
	}
	if !strings.Contains(result.Response, "질의 분석 실패") ||
		!strings.Contains(result.Response, "model unavailable") {
		t.Errorf("error report must carry stage and cause:\n%s", result.Response)
	}
	if !strings.Contains(result.Response, "오류:") {
		t.Errorf("error report must use the failure template:\n%s", result.Response)
	}
}

func TestRunExecutionFailureReportsError(t *testing.T) {
	thinking := &fakeLLM{responses: []string{housingAnalysisJSON, testSQLJSON}}
	executor := &fakeExecutor{err: errors.New(`function similarity(text, unknown) does not exist`)}
	p := newTestPipeline(t, thinking, &fakeLLM{}, executor)

	result, err := p.Run(context.Background(), "sess-5", userTurn("전세 대출"))
	if err != nil {
		t.Fatalf("Run must absorb stage failures: %v", err)
	}

	if result.Rejected {
		t.Fatal("execution failure reports on the answer path, not the refusal path")
	}
	if !strings.Contains(result.Response, "정책 검색 중 오류가 발생했습니다") {
		t.Errorf("expected search failure prefix:\n%s", result.Response)
	}
	if !strings.Contains(result.Response, "similarity") {
		t.Errorf("expected underlying cause preserved:\n%s", result.Response)
	}
}

func TestRunGuardBlocksMutationBeforeExecution(t *testing.T) {
	thinking := &fakeLLM{responses: []string{housingAnalysisJSON, `{
		"sql_query": "DELETE FROM policies",
		"explanation": "x",
		"confidence": 0.9
	}`}}
	executor := &fakeExecutor{}
	p := newTestPipeline(t, thinking, &fakeLLM{}, executor)

	result, err := p.Run(context.Background(), "sess-6", userTurn("전세 대출"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(executor.queries) != 0 {
		t.Fatal("guarded statement must never reach the executor")
	}
	if !strings.Contains(result.Response, "정책 검색 중 오류가 발생했습니다") {
		t.Errorf("guard rejection surfaces as a search failure:\n%s", result.Response)
	}
}

func TestRunMissingUserMessage(t *testing.T) {
	p := newTestPipeline(t, &fakeLLM{}, &fakeLLM{}, &fakeExecutor{})

	result, err := p.Run(context.Background(), "sess-7", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Rejected {
		t.Fatal("empty conversation must be rejected")
	}
	if !strings.Contains(result.Response, "질의 분석 실패") {
		t.Errorf("expected analysis failure report:\n%s", result.Response)
	}
}

func TestRunSelectionFailureReportsComposition(t *testing.T) {
	// Analysis and SQL succeed; selection model call fails.
	thinking := &fakeLLM{responses: []string{housingAnalysisJSON, testSQLJSON}}
	executor := &fakeExecutor{rows: testRows("R001")}
	p := newTestPipeline(t, thinking, &fakeLLM{}, executor)

	result, err := p.Run(context.Background(), "sess-8", userTurn("전세 대출"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(result.Response, "응답 생성 중 오류가 발생했습니다") {
		t.Errorf("expected composition failure prefix:\n%s", result.Response)
	}
}
