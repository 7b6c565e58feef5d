package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeJSON parses a model reply into T. Providers constrained by a response
// format return bare JSON, but models occasionally wrap the payload in a
// markdown fence anyway, so strip one before decoding.
func decodeJSON[T any](raw string) (*T, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var value T
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, fmt.Errorf("failed to decode model output: %w", err)
	}
	return &value, nil
}
