package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// introspectionQuery pulls column metadata plus comments for the queryable
// tables. Comments matter: the Korean column descriptions are what lets the
// model map user conditions onto the right columns.
const introspectionQuery = `
SELECT
    t.table_name,
    c.column_name,
    c.data_type,
    c.is_nullable,
    c.column_default,
    COALESCE(col_desc.description, '') AS column_comment,
    COALESCE(table_desc.description, '') AS table_comment
FROM information_schema.tables t
JOIN information_schema.columns c ON t.table_name = c.table_name
LEFT JOIN pg_catalog.pg_description table_desc
    ON table_desc.objoid = (SELECT oid FROM pg_catalog.pg_class WHERE relname = t.table_name)
   AND table_desc.objsubid = 0
LEFT JOIN pg_catalog.pg_description col_desc
    ON col_desc.objoid = (SELECT oid FROM pg_catalog.pg_class WHERE relname = t.table_name)
   AND col_desc.objsubid = c.ordinal_position
WHERE t.table_schema = 'public'
  AND t.table_type = 'BASE TABLE'
  AND t.table_name IN ('policies', 'policy_conditions')
ORDER BY t.table_name, c.ordinal_position`

type columnInfo struct {
	Table         string
	Column        string
	DataType      string
	Nullable      string
	Default       string
	ColumnComment string
	TableComment  string
}

// DescribeSchema introspects the policy tables and renders them as a text
// block suitable for inclusion in a prompt.
func (s *Store) DescribeSchema(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, introspectionQuery)
	if err != nil {
		return "", fmt.Errorf("schema introspection failed: %w", err)
	}
	defer rows.Close()

	var columns []columnInfo
	for rows.Next() {
		var col columnInfo
		var columnDefault sql.NullString
		if err := rows.Scan(&col.Table, &col.Column, &col.DataType, &col.Nullable,
			&columnDefault, &col.ColumnComment, &col.TableComment); err != nil {
			return "", fmt.Errorf("failed to scan schema row: %w", err)
		}
		col.Default = columnDefault.String
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating schema rows: %w", err)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("no schema information found for policy tables")
	}

	return formatSchema(columns), nil
}

// formatSchema renders introspected columns grouped per table, comments
// alongside so the query synthesizer can read them.
func formatSchema(columns []columnInfo) string {
	var sb strings.Builder
	sb.WriteString("PostgreSQL Database Schema:\n\n")

	var current string
	for _, col := range columns {
		if col.Table != current {
			if current != "" {
				sb.WriteString("\n")
			}
			current = col.Table
			sb.WriteString("Table: " + current)
			if col.TableComment != "" {
				sb.WriteString(" -- " + col.TableComment)
			}
			sb.WriteString("\n")
		}

		nullable := "NOT NULL"
		if col.Nullable == "YES" {
			nullable = "NULL"
		}
		sb.WriteString(fmt.Sprintf("  - %s: %s %s", col.Column, col.DataType, nullable))
		if col.Default != "" {
			sb.WriteString(" DEFAULT " + col.Default)
		}
		if col.ColumnComment != "" {
			sb.WriteString(" -- " + col.ColumnComment)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
