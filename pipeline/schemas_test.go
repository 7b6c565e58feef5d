package pipeline

import (
	"sort"
	"testing"
)

// The structured calls are sent with strict schema enforcement, which the
// OpenAI API only accepts when every object declares additionalProperties
// false and lists all of its properties as required. Optional fields are
// expressed with null-typed unions instead of being left out of required.
func TestStructuredOutputSchemasAreStrict(t *testing.T) {
	schemas := map[string]map[string]any{
		"query_analysis":       analysisSchema,
		"sql_query_generation": sqlSchema,
		"policy_selection":     selectionSchema,
	}
	for name, schema := range schemas {
		checkStrictObject(t, name, schema)
	}
}

func checkStrictObject(t *testing.T, path string, schema map[string]any) {
	t.Helper()

	if items, ok := schema["items"].(map[string]any); ok {
		checkStrictObject(t, path+".items", items)
	}

	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return
	}

	if ap, ok := schema["additionalProperties"].(bool); !ok || ap {
		t.Errorf("%s: object schema must set additionalProperties to false", path)
	}

	required, _ := schema["required"].([]string)
	reqSet := make(map[string]bool, len(required))
	for _, r := range required {
		if !reqSet[r] {
			reqSet[r] = true
			continue
		}
		t.Errorf("%s: %q listed twice in required", path, r)
	}

	var missing []string
	for name, sub := range props {
		if !reqSet[name] {
			missing = append(missing, name)
		}
		delete(reqSet, name)
		if subMap, ok := sub.(map[string]any); ok {
			checkStrictObject(t, path+"."+name, subMap)
		}
	}
	sort.Strings(missing)
	for _, name := range missing {
		t.Errorf("%s: property %q not listed in required", path, name)
	}
	for name := range reqSet {
		t.Errorf("%s: required names unknown property %q", path, name)
	}
}
