package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sqlassist/sqlassist/internal/audit"
)

const maxQuestionLength = 4000

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping audit db: %w", err)
	}
	return nil
}

func (r *Repository) Record(ctx context.Context, entry audit.Entry) error {
	if strings.TrimSpace(entry.Outcome) == "" {
		return fmt.Errorf("audit outcome is required")
	}
	question := entry.Question
	if len(question) > maxQuestionLength {
		question = question[:maxQuestionLength]
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO query_audit (trace_id, client_id, question, generated_sql, outcome, error_message, row_count, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.TraceID,
		entry.ClientID,
		question,
		entry.SQL,
		entry.Outcome,
		entry.Error,
		entry.RowCount,
		time.Duration(entry.Duration).Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT audit_id, trace_id, client_id, question, generated_sql, outcome, error_message, row_count, duration_ms, created_at
FROM query_audit
ORDER BY created_at DESC, audit_id DESC
LIMIT $1`, audit.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]audit.Entry, 0)
	for rows.Next() {
		var entry audit.Entry
		var durationMs int64
		if err := rows.Scan(
			&entry.ID,
			&entry.TraceID,
			&entry.ClientID,
			&entry.Question,
			&entry.SQL,
			&entry.Outcome,
			&entry.Error,
			&entry.RowCount,
			&durationMs,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Duration = audit.Duration(time.Duration(durationMs) * time.Millisecond)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
