package session

import (
	"context"
	"testing"
	"time"

	"github.com/youthlab/policyrag/message"
	"github.com/youthlab/policyrag/pipeline"
)

// echoRunner answers every question with a fixed response and returns the
// conversation with the assistant turn appended, like the pipeline does.
type echoRunner struct {
	calls [][]*message.Message
}

func (e *echoRunner) Run(ctx context.Context, sessionID string, messages []*message.Message) (*pipeline.Result, error) {
	e.calls = append(e.calls, messages)
	response := "답변"
	return &pipeline.Result{
		Response: response,
		Messages: append(message.CloneMessages(messages),
			message.NewMessage(message.RoleAssistant, response)),
	}, nil
}

func TestRunAccumulatesConversation(t *testing.T) {
	runner := &echoRunner{}
	m := NewManager(runner, time.Hour)
	ctx := context.Background()

	if _, err := m.Run(ctx, "s1", "첫 번째 질문"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if _, err := m.Run(ctx, "s1", "두 번째 질문"); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	// Second call sees the full prior conversation plus the new question.
	if len(runner.calls) != 2 {
		t.Fatalf("expected 2 runner calls, got %d", len(runner.calls))
	}
	second := runner.calls[1]
	if len(second) != 3 {
		t.Fatalf("expected user+assistant+user, got %d messages", len(second))
	}
	if second[2].Content != "두 번째 질문" {
		t.Errorf("new question must be last, got %q", second[2].Content)
	}

	sess := m.Get("s1")
	if sess == nil || len(sess.Messages) != 4 {
		t.Fatalf("session should hold 4 messages, got %+v", sess)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager(&echoRunner{}, time.Hour)
	ctx := context.Background()

	m.Run(ctx, "a", "질문 A")
	m.Run(ctx, "b", "질문 B")

	if m.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", m.Len())
	}
	if sess := m.Get("a"); len(sess.Messages) != 2 {
		t.Errorf("session a polluted: %d messages", len(sess.Messages))
	}
}

func TestEmptySessionID(t *testing.T) {
	m := NewManager(&echoRunner{}, time.Hour)
	if _, err := m.Run(context.Background(), "", "질문"); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

func TestIdleSessionsExpire(t *testing.T) {
	m := NewManager(&echoRunner{}, time.Minute)
	current := time.Now()
	m.now = func() time.Time { return current }

	m.Run(context.Background(), "old", "질문")
	current = current.Add(2 * time.Minute)

	if got := m.Get("old"); got != nil {
		t.Fatal("idle session should have expired")
	}
	if m.Len() != 0 {
		t.Errorf("expected 0 sessions, got %d", m.Len())
	}
}
