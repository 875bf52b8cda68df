// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the operator CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/attrition/internal/adapters/repository"
	"github.com/okian/attrition/internal/domain/encoding"
	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/internal/domain/scoring"
	"github.com/okian/attrition/internal/domain/vocabulary"
	"github.com/okian/attrition/pkg/logger"
	"github.com/okian/attrition/pkg/metrics"
)

const tracerName = "github.com/okian/attrition/internal/app"

// Sentinel errors for the service lifecycle.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrStoreRequired = errors.New("audit store is required")
)

// Outcome is the result of one Predict call. The scoring Result is valid even
// when the audit write failed; AuditErr reports that failure separately.
type Outcome struct {
	Result   model.Result
	RecordID int64
	Recorded bool
	AuditErr error
}

// Service wires vocabulary, encoder, classifier and audit store together.
type Service struct {
	mu sync.RWMutex

	vocab   *vocabulary.Registry
	encoder *encoding.Encoder
	clf     scoring.Classifier
	scorer  *scoring.Service
	store   repository.Store

	tracer         trace.Tracer
	metrics        *metrics.Manager
	validateRanges bool

	started bool

	predictions   atomic.Int64
	auditFailures atomic.Int64
	rejected      atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the audit store. The service initializes it on Start and
// closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithClassifier sets the loaded classifier.
func WithClassifier(clf scoring.Classifier) Option {
	return func(s *Service) { s.clf = clf }
}

// WithVocabulary overrides the default vocabulary.
func WithVocabulary(v *vocabulary.Registry) Option {
	return func(s *Service) {
		if v != nil {
			s.vocab = v
		}
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithMetrics records to m instead of the global manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRangeValidation rejects requests outside model.Ranges before encoding.
func WithRangeValidation(enabled bool) Option {
	return func(s *Service) { s.validateRanges = enabled }
}

// New constructs a Service. Nothing is touched until Start.
func New(opts ...Option) *Service {
	s := &Service{
		tracer:  otel.Tracer(tracerName),
		metrics: metrics.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the audit store and binds the classifier. It fails with
// scoring.ErrModelUnavailable when no classifier is configured and with
// scoring.ErrShapeMismatch when the classifier disagrees with the encoder.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.vocab == nil {
		s.vocab = vocabulary.Default()
	}

	s.logger.Info(ctx, "starting scoring service...")

	scorer, err := scoring.NewService(s.clf)
	if err != nil {
		return err
	}
	if w := scorer.InputWidth(); w != encoding.Width {
		return fmt.Errorf("bind classifier: %w", &scoring.ShapeMismatchError{Want: w, Got: encoding.Width})
	}
	if err := scorer.VerifyColumns(encoding.Columns()); err != nil {
		return fmt.Errorf("bind classifier: %w", err)
	}
	if s.store == nil {
		return ErrStoreRequired
	}
	if err := s.store.Init(ctx); err != nil {
		return fmt.Errorf("initialize audit store: %w", err)
	}

	s.scorer = scorer
	s.encoder = encoding.New(s.vocab)
	s.started = true
	s.metrics.SetModelInputWidth(scorer.InputWidth())

	records, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Warn(ctx, "count audit records", logger.Error(err))
	} else {
		s.metrics.SetAuditRecords(records)
	}

	s.logger.Info(ctx, "scoring service started",
		logger.Int("input_width", scorer.InputWidth()),
		logger.String("store_state", s.store.State().String()),
		logger.Int64("records", records),
		logger.Bool("validate_ranges", s.validateRanges),
	)
	return nil
}

// Stop releases the audit store and the classifier.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping scoring service...")

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "close audit store", logger.Error(err))
		}
	}
	if closer, ok := s.clf.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn(ctx, "close classifier", logger.Error(err))
		}
	}
	s.metrics.SetModelInputWidth(0)

	s.started = false
	s.logger.Info(ctx, "scoring service stopped")
}

type components struct {
	encoder *encoding.Encoder
	scorer  *scoring.Service
	store   repository.Store
	vocab   *vocabulary.Registry
}

func (s *Service) components() (components, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return components{}, ErrNotStarted
	}
	return components{encoder: s.encoder, scorer: s.scorer, store: s.store, vocab: s.vocab}, nil
}

// Score encodes and classifies req without recording it.
func (s *Service) Score(ctx context.Context, req model.ScoringRequest) (model.Result, error) {
	c, err := s.components()
	if err != nil {
		return model.Result{}, err
	}

	ctx, span := s.tracer.Start(ctx, "attrition.score")
	defer span.End()

	start := time.Now()
	res, err := s.score(ctx, c, req)
	if err != nil {
		kind := errorKind(err)
		s.rejected.Add(1)
		s.metrics.RecordPredictionError(kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		s.logger.Debug(ctx, "scoring rejected", logger.String("kind", kind), logger.Error(err))
		return model.Result{}, err
	}

	latency := time.Since(start)
	s.metrics.RecordPrediction(string(res.Label), res.Confidence, float64(latency.Microseconds())/1000)
	span.SetAttributes(
		attribute.String("attrition.label", string(res.Label)),
		attribute.Float64("attrition.confidence", res.Confidence),
	)
	return res, nil
}

func (s *Service) score(ctx context.Context, c components, req model.ScoringRequest) (model.Result, error) {
	if s.validateRanges {
		if err := req.ValidateRanges(); err != nil {
			return model.Result{}, err
		}
	}
	vec, err := c.encoder.Encode(req)
	if err != nil {
		return model.Result{}, err
	}
	return c.scorer.Score(ctx, vec)
}

// Predict encodes, scores and records req. Encoding and scoring failures
// abort with no record written. An audit failure leaves the Result intact
// and is reported through Outcome.AuditErr.
func (s *Service) Predict(ctx context.Context, req model.ScoringRequest) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "attrition.predict")
	defer span.End()

	res, err := s.Score(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "score")
		return Outcome{}, err
	}
	s.predictions.Add(1)

	c, err := s.components()
	if err != nil {
		return Outcome{Result: res, AuditErr: err}, nil
	}

	start := time.Now()
	id, err := c.store.Append(ctx, req, res)
	if err != nil {
		s.auditFailures.Add(1)
		s.metrics.RecordAuditError("append")
		span.RecordError(err)
		s.logger.Error(ctx, "audit append failed",
			logger.String("label", string(res.Label)),
			logger.Float64("confidence", res.Confidence),
			logger.Error(err),
		)
		return Outcome{Result: res, AuditErr: err}, nil
	}
	s.metrics.RecordAuditAppend(float64(time.Since(start).Microseconds()) / 1000)
	span.SetAttributes(attribute.Int64("attrition.record_id", id))

	s.logger.Info(ctx, "prediction recorded",
		logger.Int64("record_id", id),
		logger.String("label", string(res.Label)),
		logger.Float64("confidence", res.Confidence),
	)
	return Outcome{Result: res, RecordID: id, Recorded: true}, nil
}

// History returns up to limit audit records, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]model.AuditRecord, error) {
	c, err := s.components()
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "attrition.history", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	start := time.Now()
	records, err := c.store.Recent(ctx, limit)
	if err != nil {
		s.metrics.RecordAuditError("recent")
		span.RecordError(err)
		return nil, err
	}
	s.metrics.RecordAuditRead(len(records), float64(time.Since(start).Microseconds())/1000)
	return records, nil
}

// Vocabulary returns attribute name to accepted labels, in declaration order.
func (s *Service) Vocabulary() map[string][]string {
	s.mu.RLock()
	vocab := s.vocab
	s.mu.RUnlock()
	if vocab == nil {
		vocab = vocabulary.Default()
	}

	out := make(map[string][]string, len(vocab.Attributes()))
	for _, attr := range vocab.Attributes() {
		out[string(attr)] = vocab.ValuesOf(attr)
	}
	return out
}

// Started reports whether Start has succeeded and Stop has not been called.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// StoreState reports the audit store state without touching the database.
// It is empty when no store is configured.
func (s *Service) StoreState() string {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return ""
	}
	return store.State().String()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	started := s.started
	store := s.store
	scorer := s.scorer
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        started,
		"predictions":    s.predictions.Load(),
		"auditFailures":  s.auditFailures.Load(),
		"rejected":       s.rejected.Load(),
		"validateRanges": s.validateRanges,
	}
	if store != nil {
		stats["storeState"] = store.State().String()
	}
	if started {
		stats["inputWidth"] = scorer.InputWidth()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if n, err := store.Count(ctx); err == nil {
			stats["records"] = n
			s.metrics.SetAuditRecords(n)
		}
	}
	return stats
}

// errorKind labels a scoring failure for metrics and logs.
func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, vocabulary.ErrUnknownCategory):
		return "unknown_category"
	case errors.Is(err, scoring.ErrShapeMismatch):
		return "shape_mismatch"
	case errors.Is(err, scoring.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, scoring.ErrInvalidPrediction):
		return "invalid_prediction"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
