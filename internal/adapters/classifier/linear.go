package classifier

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/attrition/internal/domain/scoring"
)

// Linear is a logistic-regression classifier evaluated in pure Go.
// It is immutable after construction.
type Linear struct {
	params  LinearParams
	columns []string
}

// NewLinear builds a Linear classifier from a validated manifest.
func NewLinear(m *Manifest) (*Linear, error) {
	if m == nil || m.Linear == nil {
		return nil, fmt.Errorf("%w: missing linear parameters", ErrManifest)
	}
	if err := m.Linear.validate(m.InputWidth); err != nil {
		return nil, err
	}
	if m.classIndex(1) < 0 || m.classIndex(0) < 0 {
		return nil, fmt.Errorf("%w: classes must be {0, 1}, got %v", ErrManifest, m.Classes)
	}
	params := LinearParams{
		Intercept:    m.Linear.Intercept,
		Coefficients: append([]float64(nil), m.Linear.Coefficients...),
		Means:        append([]float64(nil), m.Linear.Means...),
		Scales:       append([]float64(nil), m.Linear.Scales...),
	}
	return &Linear{
		params:  params,
		columns: append([]string(nil), m.FeatureColumns...),
	}, nil
}

// InputWidth implements scoring.Classifier.
func (l *Linear) InputWidth() int { return len(l.params.Coefficients) }

// FeatureColumns implements scoring.ColumnDescriber.
func (l *Linear) FeatureColumns() []string {
	return append([]string(nil), l.columns...)
}

// Predict implements scoring.Classifier.
func (l *Linear) Predict(_ context.Context, x []float64) (scoring.Prediction, error) {
	if len(x) != len(l.params.Coefficients) {
		return scoring.Prediction{}, &scoring.ShapeMismatchError{Want: len(l.params.Coefficients), Got: len(x)}
	}
	z := l.params.Intercept
	for i, w := range l.params.Coefficients {
		v := x[i]
		if len(l.params.Means) > 0 {
			v -= l.params.Means[i]
		}
		if len(l.params.Scales) > 0 {
			v /= l.params.Scales[i]
		}
		z += w * v
	}
	p1 := 1.0 / (1.0 + math.Exp(-z))

	probs := []float64{1 - p1, p1}
	class := 0
	if p1 >= 0.5 {
		class = 1
	}
	return scoring.Prediction{Class: class, Probabilities: probs}, nil
}
