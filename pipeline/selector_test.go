package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/youthlab/policyrag/pkg/logging"
	"github.com/youthlab/policyrag/policy"
	"github.com/youthlab/policyrag/tokens"
)

type wideCounter struct{}

func (wideCounter) Count(text string) int { return len([]rune(text)) }

func newTestSelector(t *testing.T, llm *fakeLLM, maxSelected int) *Selector {
	t.Helper()
	prompts, err := newPromptManager()
	if err != nil {
		t.Fatalf("prompt corpus: %v", err)
	}
	budgeter := tokens.NewBudgeter(wideCounter{}, 100_000)
	return NewSelector(llm, prompts, budgeter, logging.WithComponent("test"), maxSelected)
}

func testRows(nos ...string) []map[string]any {
	rows := make([]map[string]any, 0, len(nos))
	for _, no := range nos {
		rows = append(rows, map[string]any{
			"plcy_no":  no,
			"plcy_nm":  "정책 " + no,
			"lclsf_nm": "주거",
			"inq_cnt":  int64(3),
		})
	}
	return rows
}

func TestSelectDropsHallucinatedPolicies(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{
		"selected_policies": [
			{"plcy_no": "R001", "plcy_nm": "정책 R001", "plcy_expln_nm": "", "lclsf_nm": "주거", "mclsf_nm": "", "zip_cd": "전국", "inq_cnt": 3},
			{"plcy_no": "FAKE", "plcy_nm": "존재하지 않는 정책", "plcy_expln_nm": "", "lclsf_nm": "주거", "mclsf_nm": "", "zip_cd": "전국", "inq_cnt": 1},
			{"plcy_no": "R002", "plcy_nm": "정책 R002", "plcy_expln_nm": "", "lclsf_nm": "주거", "mclsf_nm": "", "zip_cd": "전국", "inq_cnt": 3}
		],
		"selection_reasoning": "조건 적합"
	}`}}
	selector := newTestSelector(t, llm, 10)

	selection, err := selector.Select(context.Background(), "전세 대출",
		&QueryAnalysis{Category: policy.CategoryHousing}, testRows("R001", "R002"))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if len(selection.SelectedPolicies) != 2 {
		t.Fatalf("expected hallucinated policy dropped, got %d policies", len(selection.SelectedPolicies))
	}
	for _, p := range selection.SelectedPolicies {
		if p.PolicyNo == "FAKE" {
			t.Fatal("hallucinated policy number surfaced")
		}
	}
	// Relevance order is the model's order, minus the dropped entry.
	if selection.SelectedPolicies[0].PolicyNo != "R001" || selection.SelectedPolicies[1].PolicyNo != "R002" {
		t.Errorf("selection order not preserved: %+v", selection.SelectedPolicies)
	}
}

func TestSelectCapsAtMaxSelected(t *testing.T) {
	var items []string
	nos := []string{"A", "B", "C", "D"}
	for _, no := range nos {
		items = append(items, `{"plcy_no": "`+no+`", "plcy_nm": "n", "plcy_expln_nm": "", "lclsf_nm": "주거", "mclsf_nm": "", "zip_cd": "전국", "inq_cnt": 0}`)
	}
	llm := &fakeLLM{responses: []string{
		`{"selected_policies": [` + strings.Join(items, ",") + `], "selection_reasoning": "r"}`,
	}}
	selector := newTestSelector(t, llm, 2)

	selection, err := selector.Select(context.Background(), "q",
		&QueryAnalysis{Category: policy.CategoryHousing}, testRows(nos...))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(selection.SelectedPolicies) != 2 {
		t.Fatalf("expected cap at 2, got %d", len(selection.SelectedPolicies))
	}
}

func TestSelectEmptyRows(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"selected_policies": [], "selection_reasoning": "검색 결과 없음"}`}}
	selector := newTestSelector(t, llm, 10)

	selection, err := selector.Select(context.Background(), "q",
		&QueryAnalysis{Category: policy.CategoryHousing}, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(selection.SelectedPolicies) != 0 {
		t.Errorf("expected empty selection, got %+v", selection.SelectedPolicies)
	}
}
