package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/internal/domain/scoring"
	"github.com/okian/attrition/internal/domain/vocabulary"
	"github.com/okian/attrition/pkg/logger"
)

const maxRequestBody = 64 << 10

// PredictionDependencies scores and records one request.
type PredictionDependencies interface {
	Predict(ctx context.Context, req model.ScoringRequest) (service.Outcome, error)
}

// PredictionsHandler handles prediction requests.
type PredictionsHandler struct {
	deps   PredictionDependencies
	logger logger.Logger
}

// NewPredictionsHandler creates a new predictions handler.
func NewPredictionsHandler(deps PredictionDependencies, l logger.Logger) *PredictionsHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &PredictionsHandler{deps: deps, logger: l}
}

// HandlePostPrediction handles POST /v1/predictions. A failed audit write
// still answers 200 with recorded=false.
func (h *PredictionsHandler) HandlePostPrediction(w http.ResponseWriter, r *http.Request) {
	req, err := decodeScoringRequest(r)
	if err != nil {
		var missing *model.MissingFieldError
		if errors.As(err, &missing) {
			writeErrorDetails(w, http.StatusBadRequest, "bad_request", err, map[string]string{
				"missing": strings.Join(missing.Fields, ","),
			})
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	out, err := h.deps.Predict(r.Context(), req)
	if err != nil {
		h.writePredictError(w, r, err)
		return
	}
	if out.AuditErr != nil {
		h.logger.Warn(r.Context(), "prediction served without audit record", logger.Error(out.AuditErr))
	}
	writeJSON(w, http.StatusOK, newPredictionResponse(out))
}

func decodeScoringRequest(r *http.Request) (model.ScoringRequest, error) {
	req, err := model.DecodeRequest(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return model.ScoringRequest{}, WrapKind("decode prediction", ErrBadRequest, err)
	}
	return req, nil
}

func (h *PredictionsHandler) writePredictError(w http.ResponseWriter, r *http.Request, err error) {
	var unknown *vocabulary.UnknownCategoryError
	switch {
	case errors.As(err, &unknown):
		writeErrorDetails(w, http.StatusBadRequest, "unknown_category", err, map[string]string{
			"attribute": string(unknown.Attribute),
			"value":     unknown.Value,
		})
	case errors.Is(err, vocabulary.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, "unknown_category", err)
	case errors.Is(err, model.ErrOutOfRange):
		writeError(w, http.StatusBadRequest, "out_of_range", err)
	case errors.Is(err, scoring.ErrModelUnavailable), errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "model_unavailable", err)
	case errors.Is(err, scoring.ErrShapeMismatch):
		h.logger.Error(r.Context(), "feature shape mismatch", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "shape_mismatch", err)
	case errors.Is(err, scoring.ErrInvalidPrediction):
		h.logger.Error(r.Context(), "classifier returned an invalid prediction", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "invalid_prediction", err)
	default:
		h.logger.Error(r.Context(), "prediction failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
