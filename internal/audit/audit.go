// Package audit records every question answered over HTTP so operators can
// review what was asked and which SQL ran.
package audit

import (
	"context"
	"strconv"
	"time"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type Entry struct {
	ID        int64     `json:"id"`
	TraceID   string    `json:"trace_id"`
	ClientID  string    `json:"client_id,omitempty"`
	Question  string    `json:"question"`
	SQL       string    `json:"sql,omitempty"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	RowCount  int       `json:"row_count"`
	Duration  Duration  `json:"duration_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// Duration marshals as whole milliseconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(time.Duration(d).Milliseconds(), 10)), nil
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

type Reader interface {
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

type Log interface {
	Recorder
	Reader
}

// ClampLimit bounds a caller-supplied page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
