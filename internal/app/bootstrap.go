package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/okian/attrition/internal/adapters/classifier"
	"github.com/okian/attrition/internal/adapters/repository"
	"github.com/okian/attrition/internal/config"
	"github.com/okian/attrition/pkg/logger"
)

// OpenStore opens the audit store described by cfg without initializing it.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	return repository.Open(ctx, repository.Config{
		Driver: cfg.DBDriver,
		Path:   cfg.DBPath,
		DSN:    cfg.DBDSN,
	})
}

// FromConfig loads the model bundle and opens the audit store named by cfg and
// returns an unstarted Service owning both.
func FromConfig(ctx context.Context, cfg *config.Config, l logger.Logger) (*Service, error) {
	clf, err := classifier.Open(cfg.ModelDir, classifier.WithLibraryPath(cfg.ONNXLibraryPath))
	if err != nil {
		return nil, err
	}
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		if closer, ok := clf.(io.Closer); ok {
			err = errors.Join(err, closer.Close())
		}
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	return New(
		WithLogger(l),
		WithClassifier(clf),
		WithStore(store),
		WithRangeValidation(cfg.ValidateRanges),
	), nil
}

// Release closes resources held by a Service that failed to start.
func (s *Service) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if closer, ok := s.clf.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}
