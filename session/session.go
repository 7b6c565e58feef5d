// Package session tracks per-user conversations across pipeline turns so
// follow-up questions carry their context. Sessions live in memory and expire
// after a period of inactivity; durable turn history is the history package's
// job.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/youthlab/policyrag/message"
	"github.com/youthlab/policyrag/pipeline"
)

// Runner executes one pipeline turn. Satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, sessionID string, messages []*message.Message) (*pipeline.Result, error)
}

// Session is one user's conversation.
type Session struct {
	ID        string
	Messages  []*message.Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Manager owns the live sessions and runs turns through the pipeline.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	runner   Runner
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a Manager. Sessions idle longer than ttl are dropped on
// the next access; a non-positive ttl keeps sessions forever.
func NewManager(runner Runner, ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		runner:   runner,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Run appends the question to the session's conversation, executes the
// pipeline, and stores the updated conversation including the answer.
func (m *Manager) Run(ctx context.Context, sessionID, question string) (*pipeline.Result, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id cannot be empty")
	}

	m.mu.Lock()
	m.expireLocked()
	sess, ok := m.sessions[sessionID]
	if !ok {
		sess = &Session{ID: sessionID, CreatedAt: m.now()}
		m.sessions[sessionID] = sess
	}
	messages := append(message.CloneMessages(sess.Messages),
		message.NewMessage(message.RoleUser, question))
	m.mu.Unlock()

	result, err := m.runner.Run(ctx, sessionID, messages)
	if result != nil {
		m.mu.Lock()
		sess.Messages = result.Messages
		sess.UpdatedAt = m.now()
		m.mu.Unlock()
	}
	return result, err
}

// Get returns the session, or nil when it does not exist or has expired.
func (m *Manager) Get(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	return m.sessions[sessionID]
}

// Delete removes a session.
func (m *Manager) Delete(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	return len(m.sessions)
}

func (m *Manager) expireLocked() {
	if m.ttl <= 0 {
		return
	}
	cutoff := m.now().Add(-m.ttl)
	for id, sess := range m.sessions {
		last := sess.UpdatedAt
		if last.IsZero() {
			last = sess.CreatedAt
		}
		if last.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
