// Package store provides read access to the policy store: a read-only query
// executor and a schema introspector that renders the queryable tables as a
// text description for prompt construction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/youthlab/policyrag/config"
)

// ResultSet holds the rows returned by one query execution.
type ResultSet struct {
	Rows     []map[string]any
	RowCount int
}

// Store wraps the policy database connection pool. Connections are acquired
// per call and released immediately so model-call latency between pipeline
// stages never holds a connection idle.
type Store struct {
	db *sql.DB
}

// New opens a connection pool against the policy database.
func New(cfg config.Postgres) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle; mainly useful for tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Execute runs exactly one statement inside a read-only transaction and
// returns the rows as field-name-keyed mappings. The read-only transaction is
// the execution-level enforcement of the SELECT-only contract: a mutating
// statement fails here even if it slipped past the guard.
func (s *Store) Execute(ctx context.Context, query string) (*ResultSet, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &ResultSet{Rows: make([]map[string]any, 0, 16)}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = v
			}
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit read-only transaction: %w", err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// Ping checks if the database connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}
