// Package classifier loads pre-fitted churn models from a bundle directory
// and exposes them through scoring.Classifier.
//
// A bundle is a directory holding manifest.yaml and, for the onnx backend,
// the exported model file:
//
//	backend: onnx
//	model: churn_model.onnx
//	input_name: float_input
//	label_output: label
//	probability_output: probabilities
//	classes: [0, 1]
//	feature_columns: [Customer_Age, Gender, ...]
package classifier

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the bundle manifest's file name.
const ManifestFile = "manifest.yaml"

// Supported backends.
const (
	BackendONNX   = "onnx"
	BackendLinear = "linear"
)

// Sentinel errors for bundle loading.
var (
	ErrManifest = errors.New("invalid model manifest")
	ErrBackend  = errors.New("unsupported classifier backend")
)

// Manifest describes a model bundle.
type Manifest struct {
	Backend           string        `yaml:"backend"`
	Model             string        `yaml:"model"`
	InputName         string        `yaml:"input_name"`
	LabelOutput       string        `yaml:"label_output"`
	ProbabilityOutput string        `yaml:"probability_output"`
	Classes           []int         `yaml:"classes"`
	FeatureColumns    []string      `yaml:"feature_columns"`
	InputWidth        int           `yaml:"input_width"`
	Linear            *LinearParams `yaml:"linear"`
}

// LinearParams are the fitted parameters of a logistic regression.
// Means and Scales are optional standardization terms.
type LinearParams struct {
	Intercept    float64   `yaml:"intercept"`
	Coefficients []float64 `yaml:"coefficients"`
	Means        []float64 `yaml:"means"`
	Scales       []float64 `yaml:"scales"`
}

// LoadManifest reads and validates dir/manifest.yaml.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifest, path, err)
	}
	m.applyDefaults()
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Backend == "" {
		m.Backend = BackendONNX
	}
	if m.InputName == "" {
		m.InputName = "float_input"
	}
	if m.LabelOutput == "" {
		m.LabelOutput = "label"
	}
	if m.ProbabilityOutput == "" {
		m.ProbabilityOutput = "probabilities"
	}
	if len(m.Classes) == 0 {
		m.Classes = []int{0, 1}
	}
	if m.InputWidth == 0 {
		switch {
		case len(m.FeatureColumns) > 0:
			m.InputWidth = len(m.FeatureColumns)
		case m.Linear != nil:
			m.InputWidth = len(m.Linear.Coefficients)
		}
	}
}

func (m *Manifest) validate() error {
	if m.InputWidth <= 0 {
		return fmt.Errorf("%w: input width unknown; set input_width or feature_columns", ErrManifest)
	}
	if len(m.FeatureColumns) > 0 && len(m.FeatureColumns) != m.InputWidth {
		return fmt.Errorf("%w: %d feature columns but input_width %d", ErrManifest, len(m.FeatureColumns), m.InputWidth)
	}
	if len(m.Classes) != 2 {
		return fmt.Errorf("%w: binary classifier needs 2 classes, got %d", ErrManifest, len(m.Classes))
	}
	switch m.Backend {
	case BackendONNX:
		if m.Model == "" {
			return fmt.Errorf("%w: onnx backend needs a model file", ErrManifest)
		}
	case BackendLinear:
		if m.Linear == nil {
			return fmt.Errorf("%w: linear backend needs linear parameters", ErrManifest)
		}
		return m.Linear.validate(m.InputWidth)
	default:
		return fmt.Errorf("%w: %q", ErrBackend, m.Backend)
	}
	return nil
}

// classIndex returns the probability index holding class c.
func (m *Manifest) classIndex(c int) int {
	for i, k := range m.Classes {
		if k == c {
			return i
		}
	}
	return -1
}

func (p *LinearParams) validate(width int) error {
	if len(p.Coefficients) != width {
		return fmt.Errorf("%w: %d coefficients for %d features", ErrManifest, len(p.Coefficients), width)
	}
	if len(p.Means) != 0 && len(p.Means) != width {
		return fmt.Errorf("%w: %d means for %d features", ErrManifest, len(p.Means), width)
	}
	if len(p.Scales) != 0 && len(p.Scales) != width {
		return fmt.Errorf("%w: %d scales for %d features", ErrManifest, len(p.Scales), width)
	}
	for i, s := range p.Scales {
		if s == 0 {
			return fmt.Errorf("%w: scale[%d] is zero", ErrManifest, i)
		}
	}
	return nil
}
