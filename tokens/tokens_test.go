package tokens

import (
	"strings"
	"testing"
)

func makeRows(n int, payload string) []map[string]any {
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{"plcy_no": i, "plcy_expln_cn": payload}
	}
	return rows
}

func TestFitRowsWithinBudget(t *testing.T) {
	b := NewBudgeter(runeCounter{}, 10_000)
	rows := makeRows(3, "주거 지원 정책")

	out, truncated, err := b.FitRows(rows)
	if err != nil {
		t.Fatalf("FitRows: %v", err)
	}
	if truncated {
		t.Error("rows within budget should not be truncated")
	}
	if strings.Count(out, "plcy_no") != 3 {
		t.Errorf("expected 3 rows serialized, got: %s", out)
	}
}

func TestFitRowsDropsTrailingRows(t *testing.T) {
	payload := strings.Repeat("지원", 200)
	rows := makeRows(10, payload)
	b := NewBudgeter(runeCounter{}, 1500)

	out, truncated, err := b.FitRows(rows)
	if err != nil {
		t.Fatalf("FitRows: %v", err)
	}
	if !truncated {
		t.Fatal("expected truncation")
	}
	if kept := strings.Count(out, "plcy_no"); kept >= 10 || kept < 1 {
		t.Errorf("expected partial row set, got %d rows", kept)
	}
	// Leading rows survive; truncation only trims the tail.
	if !strings.Contains(out, `"plcy_no":0`) {
		t.Errorf("first row should be kept, got: %s", out)
	}
}

func TestFitRowsKeepsAtLeastOneRow(t *testing.T) {
	rows := makeRows(2, strings.Repeat("정책", 500))
	b := NewBudgeter(runeCounter{}, 10)

	out, truncated, err := b.FitRows(rows)
	if err != nil {
		t.Fatalf("FitRows: %v", err)
	}
	if !truncated {
		t.Fatal("expected truncation")
	}
	if strings.Count(out, "plcy_no") != 1 {
		t.Errorf("expected exactly one row kept, got: %s", out)
	}
}

func TestFitRowsZeroBudgetDisablesTruncation(t *testing.T) {
	rows := makeRows(5, strings.Repeat("정책", 100))
	b := NewBudgeter(runeCounter{}, 0)

	_, truncated, err := b.FitRows(rows)
	if err != nil {
		t.Fatalf("FitRows: %v", err)
	}
	if truncated {
		t.Error("zero budget must disable truncation")
	}
}

func TestFitRowsEmpty(t *testing.T) {
	b := NewBudgeter(runeCounter{}, 100)
	out, truncated, err := b.FitRows(nil)
	if err != nil {
		t.Fatalf("FitRows: %v", err)
	}
	if truncated || out != "null" {
		t.Errorf("unexpected result for empty rows: %q truncated=%v", out, truncated)
	}
}
