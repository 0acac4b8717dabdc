package api

import (
	"net/http"
	"strconv"

	"github.com/sqlassist/sqlassist/internal/apperr"
	"github.com/sqlassist/sqlassist/internal/assist"
	"github.com/sqlassist/sqlassist/internal/audit"
)

type databaseInfoResponse struct {
	Success bool `json:"success"`
	assist.DatabaseInfo
}

func handleDatabaseInfo(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Inspector == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "store inspector is not configured", false, nil)
		return
	}

	info, err := assist.DescribeDatabase(r.Context(), deps.Schema, deps.Inspector, deps.SampleRows)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "DATABASE_INFO_FAILED", "failed to read database info", apperr.Retryable(err), map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, databaseInfoResponse{Success: true, DatabaseInfo: info})
}

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Audit == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "query audit log is not configured", false, nil)
		return
	}

	limit := audit.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, map[string]any{"limit": raw})
			return
		}
		limit = audit.ClampLimit(parsed)
	}

	entries, err := deps.Audit.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FAILED", "failed to read query history", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "limit": limit})
}
