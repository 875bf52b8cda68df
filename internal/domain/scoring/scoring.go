// Package scoring defines the contract for turning a feature vector into a
// churn decision using a pre-fitted classifier.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/attrition/internal/domain/model"
)

// Sentinel error kinds for this package.
var (
	// ErrModelUnavailable means no classifier could be loaded. Fatal at startup.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrShapeMismatch means encoder and classifier disagree on the input layout.
	ErrShapeMismatch = errors.New("feature shape mismatch")
	// ErrInvalidPrediction means the classifier returned an unusable output.
	ErrInvalidPrediction = errors.New("invalid prediction")
)

// ShapeMismatchError carries the expected and actual vector widths.
type ShapeMismatchError struct {
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: classifier expects %d features, got %d", ErrShapeMismatch, e.Want, e.Got)
}

// Is lets callers match with errors.Is(err, ErrShapeMismatch).
func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// Prediction is the raw output of a single-sample inference.
// Probabilities are indexed by class.
type Prediction struct {
	Class         int
	Probabilities []float64
}

// Classifier is an opaque, already-fitted binary classifier.
type Classifier interface {
	// InputWidth is the number of features the model was trained on.
	InputWidth() int
	// Predict runs inference on exactly one feature vector.
	Predict(ctx context.Context, x []float64) (Prediction, error)
}

// ColumnDescriber is implemented by classifiers that ship the training column
// names alongside the model.
type ColumnDescriber interface {
	FeatureColumns() []string
}

// Service wraps a loaded classifier. It holds no mutable state and is safe
// for concurrent use as long as the classifier is.
type Service struct {
	clf   Classifier
	width int
}

// NewService binds a loaded classifier. A nil classifier means the model
// failed to load and yields ErrModelUnavailable.
func NewService(clf Classifier) (*Service, error) {
	if clf == nil {
		return nil, fmt.Errorf("scoring: %w", ErrModelUnavailable)
	}
	width := clf.InputWidth()
	if width <= 0 {
		return nil, fmt.Errorf("scoring: %w: classifier reports width %d", ErrModelUnavailable, width)
	}
	return &Service{clf: clf, width: width}, nil
}

// InputWidth returns the classifier's expected vector length.
func (s *Service) InputWidth() int {
	if s == nil {
		return 0
	}
	return s.width
}

// VerifyColumns compares the classifier's own column manifest, if it has one,
// against the encoder's column order. Classifiers without a manifest are only
// checked for width.
func (s *Service) VerifyColumns(expected []string) error {
	if s == nil || s.clf == nil {
		return fmt.Errorf("scoring: %w", ErrModelUnavailable)
	}
	if len(expected) != s.width {
		return &ShapeMismatchError{Want: s.width, Got: len(expected)}
	}
	d, ok := s.clf.(ColumnDescriber)
	if !ok {
		return nil
	}
	got := d.FeatureColumns()
	if len(got) == 0 {
		return nil
	}
	if len(got) != len(expected) {
		return fmt.Errorf("%w: model lists %d columns, encoder emits %d", ErrShapeMismatch, len(got), len(expected))
	}
	for i := range expected {
		if got[i] != expected[i] {
			return fmt.Errorf("%w: column %d is %q in the model but %q in the encoder", ErrShapeMismatch, i, got[i], expected[i])
		}
	}
	return nil
}

// Score classifies one feature vector. The vector width is a checked
// precondition; it is never truncated or padded.
func (s *Service) Score(ctx context.Context, vec model.FeatureVector) (model.Result, error) {
	if s == nil || s.clf == nil {
		return model.Result{}, fmt.Errorf("scoring: %w", ErrModelUnavailable)
	}
	if len(vec) != s.width {
		return model.Result{}, &ShapeMismatchError{Want: s.width, Got: len(vec)}
	}
	if err := ctx.Err(); err != nil {
		return model.Result{}, fmt.Errorf("context cancelled: %w", err)
	}

	pred, err := s.clf.Predict(ctx, vec)
	if err != nil {
		return model.Result{}, fmt.Errorf("scoring: predict: %w", err)
	}

	label, ok := model.LabelForClass(pred.Class)
	if !ok {
		return model.Result{}, fmt.Errorf("%w: class %d", ErrInvalidPrediction, pred.Class)
	}
	confidence, err := maxProbability(pred.Probabilities)
	if err != nil {
		return model.Result{}, err
	}

	return model.Result{Label: label, Confidence: confidence}, nil
}

func maxProbability(probs []float64) (float64, error) {
	if len(probs) == 0 {
		return 0, fmt.Errorf("%w: empty probability distribution", ErrInvalidPrediction)
	}
	best := math.Inf(-1)
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return 0, fmt.Errorf("%w: probability[%d]=%v outside [0,1]", ErrInvalidPrediction, i, p)
		}
		if p > best {
			best = p
		}
	}
	return best, nil
}
