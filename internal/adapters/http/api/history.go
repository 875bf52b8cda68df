package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/domain/model"
)

// HistoryDependencies reads the audit trail.
type HistoryDependencies interface {
	History(ctx context.Context, limit int) ([]model.AuditRecord, error)
	Summary(ctx context.Context, limit int) (service.Summary, error)
}

// HistoryHandler handles audit history requests.
type HistoryHandler struct {
	deps         HistoryDependencies
	defaultLimit int
	maxLimit     int
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, defaultLimit, maxLimit int) *HistoryHandler {
	return &HistoryHandler{deps: deps, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// HandleGetHistory handles GET /v1/predictions?limit=N. Records are newest
// first.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	records, err := h.deps.History(r.Context(), limit)
	if err != nil {
		writeHistoryError(w, err)
		return
	}
	if records == nil {
		records = []model.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Limit: limit, Records: records})
}

// HandleGetSummary handles GET /v1/predictions/summary?limit=N.
func (h *HistoryHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	sum, err := h.deps.Summary(r.Context(), limit)
	if err != nil {
		writeHistoryError(w, err)
		return
	}
	if sum.Trend == nil {
		sum.Trend = []service.TrendPoint{}
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *HistoryHandler) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), h.defaultLimit, h.maxLimit)
	switch {
	case err == nil:
		return limit, true
	case errors.Is(err, ErrLimitExceeded):
		writeError(w, http.StatusBadRequest, "limit_exceeded", err)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", err)
	}
	return 0, false
}

// parseLimit reads a history page size. An empty value selects def.
func parseLimit(raw string, def, maxLimit int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, WrapKind("parse limit", ErrBadRequest, err)
	}
	if n < 0 {
		return 0, WrapKind("parse limit", ErrBadRequest, fmt.Errorf("limit %d is negative", n))
	}
	if n > maxLimit {
		return 0, WrapKind("parse limit", ErrLimitExceeded, fmt.Errorf("limit %d above %d", n, maxLimit))
	}
	return n, nil
}

func writeHistoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrNotStarted) {
		writeError(w, http.StatusServiceUnavailable, "not_started", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "persistence_error", err)
}
