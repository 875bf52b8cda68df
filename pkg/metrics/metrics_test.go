package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a private registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithRefreshInterval(time.Second),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then its metrics are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.RecordPrediction("Retained", 0.9, 3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_predictions_total"], ShouldBeTrue)
				So(names["test_unit_confidence"], ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

		Convey("When predictions are recorded", func() {
			m.RecordPrediction("Retained", 0.8, 1.5)
			m.RecordPrediction("Retained", 0.7, 2.5)
			m.RecordPrediction("Attrited", 0.6, 0.5)

			Convey("Then they are counted per label", func() {
				So(testutil.ToFloat64(m.predictions.WithLabelValues("Retained")), ShouldEqual, 2.0)
				So(testutil.ToFloat64(m.predictions.WithLabelValues("Attrited")), ShouldEqual, 1.0)
			})
		})

		Convey("When failures are recorded", func() {
			m.RecordPredictionError("encode")
			m.RecordAuditError("append")
			m.RecordAuditError("append")
			m.RecordHTTPError("/v1/predictions", "POST", "invalid_input")

			Convey("Then each counter reflects its kind", func() {
				So(testutil.ToFloat64(m.predictionErrors.WithLabelValues("encode")), ShouldEqual, 1.0)
				So(testutil.ToFloat64(m.auditErrors.WithLabelValues("append")), ShouldEqual, 2.0)
				So(testutil.ToFloat64(m.httpErrors.WithLabelValues("/v1/predictions", "POST", "invalid_input")), ShouldEqual, 1.0)
			})
		})

		Convey("When audit activity is recorded", func() {
			m.RecordAuditAppend(1.2)
			m.SetAuditRecords(42)
			m.SetModelInputWidth(19)

			Convey("Then gauges and counters are updated", func() {
				So(testutil.ToFloat64(m.auditAppends), ShouldEqual, 1.0)
				So(testutil.ToFloat64(m.auditRecords), ShouldEqual, 42.0)
				So(testutil.ToFloat64(m.modelInputWidth), ShouldEqual, 19.0)
			})
		})

		Convey("When HTTP requests are recorded", func() {
			m.RecordHTTPRequest("/healthz", "GET", "200", 0.3)

			Convey("Then the request counter increments", func() {
				So(testutil.ToFloat64(m.httpRequests.WithLabelValues("/healthz", "GET", "200")), ShouldEqual, 1.0)
			})
		})
	})
}

func TestRuntimeSampler(t *testing.T) {
	Convey("Given a manager with a short refresh interval", t, func() {
		m := NewManager(
			WithPrometheusRegistry(prometheus.NewRegistry()),
			WithRefreshInterval(5*time.Millisecond),
		)

		Convey("When the sampler runs until cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			m.RunRuntimeSampler(ctx)

			Convey("Then runtime gauges are populated", func() {
				So(testutil.ToFloat64(m.systemGoroutineCount), ShouldBeGreaterThan, 0)
				So(testutil.ToFloat64(m.systemMemoryUsage), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		So(Default(), ShouldNotBeNil)
		So(GetRegistry(), ShouldNotBeNil)

		Convey("Then the package helpers record without panicking", func() {
			So(func() {
				RecordPrediction("Retained", 0.9, 1)
				RecordPredictionError("shape_mismatch")
				SetModelInputWidth(19)
				RecordAuditAppend(1)
				RecordAuditRead(3, 1)
				RecordAuditError("recent")
				SetAuditRecords(3)
				RecordHTTPRequest("/v1/predictions", "POST", "200", 2)
				RecordHTTPError("/v1/predictions", "POST", "internal")
			}, ShouldNotPanic)
		})
	})
}
