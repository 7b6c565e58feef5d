// Package history records completed pipeline turns for audit and follow-up
// context. Storage backends implement Store; the mongo sub-package provides
// the production implementation.
package history

import (
	"context"
	"time"
)

// Record is one completed question/answer turn.
type Record struct {
	SessionID string         `bson:"session_id" json:"session_id"`
	Query     string         `bson:"query" json:"query"`
	Response  string         `bson:"response" json:"response"`
	Category  string         `bson:"category,omitempty" json:"category,omitempty"`
	SQL       string         `bson:"sql,omitempty" json:"sql,omitempty"`
	RowCount  int            `bson:"row_count" json:"row_count"`
	Policies  []string       `bson:"policies,omitempty" json:"policies,omitempty"`
	Rejected  bool           `bson:"rejected" json:"rejected"`
	Error     string         `bson:"error,omitempty" json:"error,omitempty"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
}

// Store persists pipeline turns.
type Store interface {
	// Save persists one record.
	Save(ctx context.Context, rec *Record) error
	// Recent returns the newest records for a session, newest first.
	Recent(ctx context.Context, sessionID string, limit int) ([]*Record, error)
}

// Noop is a Store that discards everything; used when history persistence is
// not configured.
type Noop struct{}

func (Noop) Save(ctx context.Context, rec *Record) error { return nil }

func (Noop) Recent(ctx context.Context, sessionID string, limit int) ([]*Record, error) {
	return nil, nil
}
