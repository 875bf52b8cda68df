package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/okian/attrition/internal/domain/scoring"
)

// LibraryPathEnv overrides onnxruntime shared library discovery.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// ONNX runs an exported classifier through onnxruntime. Tensors are allocated
// once; runs are serialized because they share those buffers.
type ONNX struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	label   *ort.Tensor[int64]
	probs   *ort.Tensor[float32]

	width   int
	columns []string
	classes []int

	mu sync.Mutex
}

// NewONNX opens the model named in m from dir. libPath may be empty, in which
// case the runtime library is discovered.
func NewONNX(dir string, m *Manifest, libPath string) (*ONNX, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil manifest", ErrManifest)
	}
	if m.classIndex(0) < 0 || m.classIndex(1) < 0 {
		return nil, fmt.Errorf("%w: classes must be {0, 1}, got %v", ErrManifest, m.Classes)
	}

	modelPath := filepath.Join(dir, m.Model)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}

	if libPath == "" {
		libPath = resolveSharedLibraryPath(dir)
	}
	if libPath == "" {
		return nil, fmt.Errorf("onnxruntime shared library not found; set %s or install the runtime", LibraryPathEnv)
	}
	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(m.InputWidth)))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	label, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("allocate label tensor: %w", err)
	}
	probs, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(m.Classes))))
	if err != nil {
		_ = input.Destroy()
		_ = label.Destroy()
		return nil, fmt.Errorf("allocate probability tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{m.InputName},
		[]string{m.LabelOutput, m.ProbabilityOutput},
		[]ort.Value{input},
		[]ort.Value{label, probs},
		nil,
	)
	if err != nil {
		_ = input.Destroy()
		_ = label.Destroy()
		_ = probs.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNX{
		session: session,
		input:   input,
		label:   label,
		probs:   probs,
		width:   m.InputWidth,
		columns: append([]string(nil), m.FeatureColumns...),
		classes: append([]int(nil), m.Classes...),
	}, nil
}

// InputWidth implements scoring.Classifier.
func (o *ONNX) InputWidth() int { return o.width }

// FeatureColumns implements scoring.ColumnDescriber.
func (o *ONNX) FeatureColumns() []string {
	return append([]string(nil), o.columns...)
}

// Predict implements scoring.Classifier.
func (o *ONNX) Predict(ctx context.Context, x []float64) (scoring.Prediction, error) {
	if o == nil || o.session == nil {
		return scoring.Prediction{}, scoring.ErrModelUnavailable
	}
	if len(x) != o.width {
		return scoring.Prediction{}, &scoring.ShapeMismatchError{Want: o.width, Got: len(x)}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return scoring.Prediction{}, err
	}

	buf := o.input.GetData()
	for i, v := range x {
		buf[i] = float32(v)
	}
	if err := o.session.Run(); err != nil {
		return scoring.Prediction{}, fmt.Errorf("onnx run: %w", err)
	}

	raw := o.probs.GetData()
	out := make([]float64, len(o.classes))
	for i, class := range o.classes {
		out[class] = float64(raw[i])
	}
	return scoring.Prediction{
		Class:         int(o.label.GetData()[0]),
		Probabilities: out,
	}, nil
}

// Close releases the session and its tensors.
func (o *ONNX) Close() error {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return nil
	}
	errs := []error{o.session.Destroy()}
	o.session = nil
	for _, t := range []interface{ Destroy() error }{o.input, o.label, o.probs} {
		errs = append(errs, t.Destroy())
	}
	return errors.Join(errs...)
}

// resolveSharedLibraryPath locates a platform onnxruntime library. The
// environment variable wins; otherwise common names and directories are searched.
func resolveSharedLibraryPath(bundleDir string) string {
	if env := strings.TrimSpace(os.Getenv(LibraryPathEnv)); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.so",
		"onnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"onnxruntime.dll",
	}
	dirs := []string{
		bundleDir,
		filepath.Join(bundleDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
