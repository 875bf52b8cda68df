package classifier

import (
	"fmt"

	"github.com/okian/attrition/internal/domain/scoring"
)

// Option applies a configuration option to Open.
type Option func(*openConfig)

type openConfig struct {
	libraryPath string
}

// WithLibraryPath pins the onnxruntime shared library location.
func WithLibraryPath(path string) Option {
	return func(c *openConfig) {
		if path != "" {
			c.libraryPath = path
		}
	}
}

// Open loads the bundle in dir. Every failure is reported as
// scoring.ErrModelUnavailable so callers can refuse to start.
func Open(dir string, opts ...Option) (scoring.Classifier, error) {
	cfg := openConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	m, err := LoadManifest(dir)
	if err != nil {
		return nil, unavailable(dir, err)
	}

	var clf scoring.Classifier
	switch m.Backend {
	case BackendLinear:
		clf, err = NewLinear(m)
	case BackendONNX:
		clf, err = NewONNX(dir, m, cfg.libraryPath)
	default:
		err = fmt.Errorf("%w: %q", ErrBackend, m.Backend)
	}
	if err != nil {
		return nil, unavailable(dir, err)
	}
	return clf, nil
}

func unavailable(dir string, err error) error {
	return fmt.Errorf("%w: load model bundle %s: %w", scoring.ErrModelUnavailable, dir, err)
}
