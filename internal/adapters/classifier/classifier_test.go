package classifier_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/attrition/internal/adapters/classifier"
	"github.com/okian/attrition/internal/domain/encoding"
	"github.com/okian/attrition/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

const linearManifest = `
backend: linear
classes: [0, 1]
feature_columns: [a, b, c]
linear:
  intercept: -1.0
  coefficients: [1.0, 0.5, -2.0]
`

func writeBundle(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, classifier.ManifestFile), []byte(manifest), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return dir
}

func TestLoadManifest(t *testing.T) {
	Convey("Given a linear bundle", t, func() {
		dir := writeBundle(t, linearManifest)

		Convey("When loading the manifest", func() {
			m, err := classifier.LoadManifest(dir)

			Convey("Then defaults are filled in", func() {
				So(err, ShouldBeNil)
				So(m.Backend, ShouldEqual, classifier.BackendLinear)
				So(m.InputWidth, ShouldEqual, 3)
				So(m.InputName, ShouldEqual, "float_input")
				So(m.FeatureColumns, ShouldResemble, []string{"a", "b", "c"})
			})
		})
	})

	Convey("Given an onnx manifest without a model file name", t, func() {
		dir := writeBundle(t, "backend: onnx\ninput_width: 19\n")
		_, err := classifier.LoadManifest(dir)
		So(errors.Is(err, classifier.ErrManifest), ShouldBeTrue)
	})

	Convey("Given an unknown backend", t, func() {
		dir := writeBundle(t, "backend: xgboost\ninput_width: 19\n")
		_, err := classifier.LoadManifest(dir)
		So(errors.Is(err, classifier.ErrBackend), ShouldBeTrue)
	})

	Convey("Given feature columns that disagree with the width", t, func() {
		dir := writeBundle(t, "backend: onnx\nmodel: m.onnx\ninput_width: 2\nfeature_columns: [a, b, c]\n")
		_, err := classifier.LoadManifest(dir)
		So(errors.Is(err, classifier.ErrManifest), ShouldBeTrue)
	})

	Convey("Given coefficients that disagree with the width", t, func() {
		dir := writeBundle(t, "backend: linear\ninput_width: 4\nlinear:\n  coefficients: [1, 2]\n")
		_, err := classifier.LoadManifest(dir)
		So(errors.Is(err, classifier.ErrManifest), ShouldBeTrue)
	})

	Convey("Given a zero scale", t, func() {
		dir := writeBundle(t, "backend: linear\nlinear:\n  coefficients: [1, 2]\n  scales: [1, 0]\n")
		_, err := classifier.LoadManifest(dir)
		So(errors.Is(err, classifier.ErrManifest), ShouldBeTrue)
	})

	Convey("Given malformed YAML", t, func() {
		dir := writeBundle(t, "backend: [")
		_, err := classifier.LoadManifest(dir)
		So(errors.Is(err, classifier.ErrManifest), ShouldBeTrue)
	})

	Convey("Given a directory without a manifest", t, func() {
		_, err := classifier.LoadManifest(t.TempDir())
		So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
	})
}

func TestLinear_Predict(t *testing.T) {
	Convey("Given a linear classifier", t, func() {
		m, err := classifier.LoadManifest(writeBundle(t, linearManifest))
		So(err, ShouldBeNil)
		clf, err := classifier.NewLinear(m)
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When the logit is positive", func() {
			// z = -1 + 4*1 + 0 - 0 = 3
			pred, err := clf.Predict(ctx, []float64{4, 0, 0})

			Convey("Then class 1 wins with sigmoid probability", func() {
				So(err, ShouldBeNil)
				So(pred.Class, ShouldEqual, 1)
				want := 1 / (1 + math.Exp(-3))
				So(pred.Probabilities[1], ShouldAlmostEqual, want, 1e-12)
				So(pred.Probabilities[0], ShouldAlmostEqual, 1-want, 1e-12)
			})
		})

		Convey("When the logit is negative", func() {
			// z = -1 + 0 + 0 - 2 = -3
			pred, err := clf.Predict(ctx, []float64{0, 0, 1})
			So(err, ShouldBeNil)
			So(pred.Class, ShouldEqual, 0)
			So(pred.Probabilities[0], ShouldBeGreaterThan, 0.5)
		})

		Convey("When the vector has the wrong width", func() {
			_, err := clf.Predict(ctx, []float64{1, 2})
			So(errors.Is(err, scoring.ErrShapeMismatch), ShouldBeTrue)
		})

		Convey("Then it exposes its column manifest", func() {
			So(clf.InputWidth(), ShouldEqual, 3)
			So(clf.FeatureColumns(), ShouldResemble, []string{"a", "b", "c"})
		})
	})

	Convey("Given standardization terms", t, func() {
		m, err := classifier.LoadManifest(writeBundle(t, `
backend: linear
linear:
  intercept: 0
  coefficients: [2.0]
  means: [10.0]
  scales: [5.0]
`))
		So(err, ShouldBeNil)
		clf, err := classifier.NewLinear(m)
		So(err, ShouldBeNil)

		Convey("Then inputs are centred and scaled before the dot product", func() {
			// (15 - 10) / 5 * 2 = 2
			pred, err := clf.Predict(context.Background(), []float64{15})
			So(err, ShouldBeNil)
			So(pred.Probabilities[1], ShouldAlmostEqual, 1/(1+math.Exp(-2)), 1e-12)
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given a linear bundle", t, func() {
		dir := writeBundle(t, linearManifest)
		clf, err := classifier.Open(dir)

		Convey("Then it can back a scoring service", func() {
			So(err, ShouldBeNil)
			svc, err := scoring.NewService(clf)
			So(err, ShouldBeNil)
			So(svc.VerifyColumns([]string{"a", "b", "c"}), ShouldBeNil)
			So(errors.Is(svc.VerifyColumns([]string{"a", "c", "b"}), scoring.ErrShapeMismatch), ShouldBeTrue)
		})
	})

	Convey("Given a missing bundle", t, func() {
		_, err := classifier.Open(filepath.Join(t.TempDir(), "nope"))
		So(errors.Is(err, scoring.ErrModelUnavailable), ShouldBeTrue)
	})

	Convey("Given an onnx bundle whose model file is absent", t, func() {
		dir := writeBundle(t, "backend: onnx\nmodel: churn_model.onnx\ninput_width: 19\n")
		_, err := classifier.Open(dir)

		Convey("Then loading fails as ModelUnavailable", func() {
			So(errors.Is(err, scoring.ErrModelUnavailable), ShouldBeTrue)
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
		})
	})

	Convey("Given an onnx bundle without a runtime library", t, func() {
		dir := writeBundle(t, "backend: onnx\nmodel: churn_model.onnx\ninput_width: 19\n")
		So(os.WriteFile(filepath.Join(dir, "churn_model.onnx"), []byte("not a model"), 0o600), ShouldBeNil)
		_, err := classifier.Open(dir, classifier.WithLibraryPath(filepath.Join(dir, "missing", "libonnxruntime.so")))
		So(errors.Is(err, scoring.ErrModelUnavailable), ShouldBeTrue)
	})
}

func TestShippedBundle(t *testing.T) {
	Convey("Given the reference linear bundle shipped with the repository", t, func() {
		clf, err := classifier.Open(filepath.Join("..", "..", "..", "models", "reference"))
		So(err, ShouldBeNil)
		svc, err := scoring.NewService(clf)
		So(err, ShouldBeNil)

		Convey("Then its columns match the encoder exactly", func() {
			So(svc.VerifyColumns(encoding.Columns()), ShouldBeNil)
		})
	})
}
