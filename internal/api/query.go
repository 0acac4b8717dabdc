package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sqlassist/sqlassist/internal/apperr"
	"github.com/sqlassist/sqlassist/internal/assist"
	"github.com/sqlassist/sqlassist/internal/audit"
	"github.com/sqlassist/sqlassist/internal/auth"
	"github.com/sqlassist/sqlassist/internal/observability"
)

const maxQueryBodyBytes = 64 << 10

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Success     bool            `json:"success"`
	SQL         string          `json:"sql"`
	Explanation string          `json:"explanation"`
	Columns     []string        `json:"columns"`
	Data        []assist.Record `json:"data"`
	RowCount    int             `json:"row_count"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "ASSISTANT_NOT_READY", "the assistant is not configured", false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Query) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_REQUIRED", "query is required", false, nil)
		return
	}

	start := time.Now()
	envelope, err := deps.Assistant.Ask(r.Context(), request.Query)
	recordAudit(r.Context(), deps, request.Query, envelope, err, time.Since(start))
	if err != nil {
		writeAskError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Success:     true,
		SQL:         envelope.SQL,
		Explanation: envelope.Explanation,
		Columns:     envelope.Columns,
		Data:        envelope.Data,
		RowCount:    envelope.RowCount,
	})
}

var kindStatuses = map[apperr.Kind]int{
	apperr.DisallowedOperation: http.StatusUnprocessableEntity,
	apperr.QuerySyntaxError:    http.StatusUnprocessableEntity,
	apperr.ServiceUnavailable:  http.StatusServiceUnavailable,
	apperr.ConfigurationError:  http.StatusInternalServerError,
	apperr.StoreUnavailable:    http.StatusInternalServerError,
}

func writeAskError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, assist.ErrEmptyQuestion) {
		writeError(ctx, w, http.StatusBadRequest, "QUERY_REQUIRED", "query is required", false, nil)
		return
	}

	status, code := http.StatusInternalServerError, "INTERNAL"
	if kind, ok := apperr.KindOf(err); ok {
		if known, ok := kindStatuses[kind]; ok {
			status, code = known, kind.Code()
		}
	}
	body := errorBody{
		ErrorCode: code,
		Message:   apperr.DetailOf(err),
		Retryable: apperr.Retryable(err),
		TraceID:   observability.TraceIDFromContext(ctx),
	}
	if apperr.Is(err, apperr.QuerySyntaxError) {
		body.SQL = apperr.SQLOf(err)
	}
	writeJSON(w, status, body)
}

func recordAudit(ctx context.Context, deps Dependencies, question string, envelope assist.Envelope, askErr error, elapsed time.Duration) {
	if deps.Audit == nil {
		return
	}

	entry := audit.Entry{
		TraceID:  observability.TraceIDFromContext(ctx),
		Question: question,
		SQL:      envelope.SQL,
		Outcome:  observability.OutcomeSuccess,
		RowCount: envelope.RowCount,
		Duration: audit.Duration(elapsed),
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		entry.ClientID = identity.ClientID
	}
	if askErr != nil {
		entry.Outcome = "invalid_request"
		if kind, ok := apperr.KindOf(askErr); ok {
			entry.Outcome = string(kind)
		}
		entry.SQL = apperr.SQLOf(askErr)
		entry.Error = apperr.DetailOf(askErr)
	}

	if err := deps.Audit.Record(ctx, entry); err != nil && deps.Logger != nil {
		deps.Logger.WarnContext(ctx, "audit record failed",
			slog.String("error", err.Error()),
		)
	}
}
