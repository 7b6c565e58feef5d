// Package tokens bounds the serialized row sets that flow into selection and
// composition prompts. Queried policy rows carry long Korean text columns;
// without a budget a wide result set can crowd the instructions out of the
// model's context window.
package tokens

import (
	"encoding/json"

	"github.com/pkoukk/tiktoken-go"
	"github.com/youthlab/policyrag/pkg/logging"
)

// Counter measures the token length of a string.
type Counter interface {
	Count(text string) int
}

// tiktokenCounter counts with an actual BPE encoding.
type tiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// runeCounter approximates tokens from rune count. Korean text runs close to
// one token per syllable, so runes are a serviceable upper-bound stand-in.
type runeCounter struct{}

func (runeCounter) Count(text string) int {
	return len([]rune(text))
}

// NewCounter returns a Counter for the given model, falling back to a rune
// approximation when the encoding cannot be loaded (e.g. offline first run).
func NewCounter(model string) Counter {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("o200k_base")
	}
	if err != nil {
		logging.WithComponent("tokens").Warn("token encoding unavailable, using rune approximation",
			"model", model, "error", err)
		return runeCounter{}
	}
	return &tiktokenCounter{encoding: encoding}
}

// Budgeter truncates row sets to a token budget.
type Budgeter struct {
	counter Counter
	budget  int
}

// NewBudgeter creates a Budgeter with the given counter and budget. A budget
// of zero or less disables truncation.
func NewBudgeter(counter Counter, budget int) *Budgeter {
	return &Budgeter{counter: counter, budget: budget}
}

// FitRows serializes rows to JSON, dropping trailing rows until the result
// fits the budget. At least one row is always kept so the selector sees the
// best-ranked result even when a single row overruns. The bool reports
// whether truncation happened.
func (b *Budgeter) FitRows(rows []map[string]any) (string, bool, error) {
	serialized, err := marshalRows(rows)
	if err != nil {
		return "", false, err
	}
	if b.budget <= 0 || len(rows) == 0 || b.counter.Count(serialized) <= b.budget {
		return serialized, false, nil
	}

	kept := rows
	for len(kept) > 1 {
		kept = kept[:len(kept)-1]
		serialized, err = marshalRows(kept)
		if err != nil {
			return "", false, err
		}
		if b.counter.Count(serialized) <= b.budget {
			break
		}
	}
	return serialized, true, nil
}

func marshalRows(rows []map[string]any) (string, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
