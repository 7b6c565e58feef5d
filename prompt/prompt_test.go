package prompt

import (
	"testing"
)

func TestTemplateRender(t *testing.T) {
	tmpl, err := NewTemplate("greeting", "Hello {{.Name}}, you asked about {{.Topic}}.")
	if err != nil {
		t.Fatalf("NewTemplate failed: %v", err)
	}

	out, err := tmpl.Render(map[string]interface{}{"Name": "user", "Topic": "housing"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "Hello user, you asked about housing." {
		t.Errorf("unexpected render output: %q", out)
	}
}

func TestNewTemplateInvalid(t *testing.T) {
	if _, err := NewTemplate("bad", "{{.Unclosed"); err == nil {
		t.Errorf("expected error for invalid template")
	}
}

func TestManagerRegisterAndRender(t *testing.T) {
	m := NewManager()

	if err := m.RegisterString("q", "query: {{.Query}}"); err != nil {
		t.Fatalf("RegisterString failed: %v", err)
	}

	// Duplicate registration is rejected.
	if err := m.RegisterString("q", "other"); err == nil {
		t.Errorf("expected duplicate registration error")
	}

	out, err := m.Render("q", map[string]interface{}{"Query": "26살"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "query: 26살" {
		t.Errorf("unexpected output: %q", out)
	}

	if _, err := m.Render("missing", nil); err == nil {
		t.Errorf("expected error for missing template")
	}
}

func TestRenderMissingVariableFails(t *testing.T) {
	tmpl, err := NewTemplate("q", "query: {{.Query}}")
	if err != nil {
		t.Fatalf("NewTemplate failed: %v", err)
	}
	if _, err := tmpl.Render(map[string]interface{}{"Other": "x"}); err == nil {
		t.Errorf("expected error for unset template variable")
	}
}

func TestRenderStaticTemplateWithNilVars(t *testing.T) {
	tmpl, err := NewTemplate("fixed", "고정 지침")
	if err != nil {
		t.Fatalf("NewTemplate failed: %v", err)
	}
	out, err := tmpl.Render(nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "고정 지침" {
		t.Errorf("unexpected output: %q", out)
	}
}
