// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"

	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/pkg/logger"
)

// Default history limits.
const (
	defaultHistoryLimit = 50
	defaultMaxLimit     = 1000
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PredictionDependencies
	HistoryDependencies
	VocabularyDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	predictionsHandler *PredictionsHandler
	historyHandler     *HistoryHandler
	vocabularyHandler  *VocabularyHandler

	defaultLimit int
	maxLimit     int
	logger       logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithHistoryLimits sets the default and maximum history page sizes.
func WithHistoryLimits(defaultLimit, maxLimit int) Option {
	return func(s *Server) {
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
		if defaultLimit >= 0 {
			s.defaultLimit = defaultLimit
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		defaultLimit: defaultHistoryLimit,
		maxLimit:     defaultMaxLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultLimit > s.maxLimit {
		s.defaultLimit = s.maxLimit
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}

	s.healthHandler = NewHealthHandler(statsProvider)
	s.statsHandler = NewStatsHandler(statsProvider)
	s.predictionsHandler = NewPredictionsHandler(deps, s.logger)
	s.historyHandler = NewHistoryHandler(deps, s.defaultLimit, s.maxLimit)
	s.vocabularyHandler = NewVocabularyHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /v1/predictions", MetricsMiddleware(s.predictionsHandler.HandlePostPrediction, "predictions"))
	mux.HandleFunc("GET /v1/predictions", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
	mux.HandleFunc("GET /v1/predictions/summary", MetricsMiddleware(s.historyHandler.HandleGetSummary, "summary"))
	mux.HandleFunc("GET /v1/vocabulary", MetricsMiddleware(s.vocabularyHandler.HandleGetVocabulary, "vocabulary"))
}

// Handler returns the routes wrapped with request id, tracing and access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return RequestIDMiddleware(TracingMiddleware(AccessLogMiddleware(s.logger, mux)))
}

// Response shapes shared by handlers.

type predictionResponse struct {
	Label      model.Label `json:"label"`
	Prediction string      `json:"prediction"`
	Confidence float64     `json:"confidence"`
	RecordID   *int64      `json:"record_id,omitempty"`
	Recorded   bool        `json:"recorded"`
	AuditError string      `json:"audit_error,omitempty"`
}

func newPredictionResponse(out service.Outcome) predictionResponse {
	resp := predictionResponse{
		Label:      out.Result.Label,
		Prediction: out.Result.Label.Stored(),
		Confidence: out.Result.Confidence,
		Recorded:   out.Recorded,
	}
	if out.Recorded {
		id := out.RecordID
		resp.RecordID = &id
	}
	if out.AuditErr != nil {
		resp.AuditError = out.AuditErr.Error()
	}
	return resp
}

type historyResponse struct {
	Limit   int                 `json:"limit"`
	Records []model.AuditRecord `json:"records"`
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeErrorDetails(w, status, code, err, nil)
}

func writeErrorDetails(w http.ResponseWriter, status int, code string, err error, details map[string]string) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	if rw, ok := w.(*responseWriter); ok {
		rw.errorCode = code
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, Details: details})
}
