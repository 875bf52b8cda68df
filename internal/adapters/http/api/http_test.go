package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/attrition/internal/adapters/http/api"
	"github.com/okian/attrition/internal/adapters/repository"
	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/internal/domain/scoring"
	"github.com/okian/attrition/internal/domain/vocabulary"
)

// Mock implementations for testing
type mockDependencies struct {
	outcome    service.Outcome
	predictErr error
	predicted  []model.ScoringRequest

	records    []model.AuditRecord
	historyErr error
	lastLimit  int
}

func (m *mockDependencies) Predict(_ context.Context, req model.ScoringRequest) (service.Outcome, error) {
	m.predicted = append(m.predicted, req)
	return m.outcome, m.predictErr
}

func (m *mockDependencies) History(_ context.Context, limit int) ([]model.AuditRecord, error) {
	m.lastLimit = limit
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	if limit < len(m.records) {
		return m.records[:limit], nil
	}
	return m.records, nil
}

func (m *mockDependencies) Summary(ctx context.Context, limit int) (service.Summary, error) {
	recs, err := m.History(ctx, limit)
	if err != nil {
		return service.Summary{}, err
	}
	return service.Summarize(recs), nil
}

func (m *mockDependencies) Vocabulary() map[string][]string {
	return map[string][]string{"gender": {"M", "F"}}
}

type mockStatsProvider struct {
	stats    map[string]interface{}
	statsHit int
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	m.statsHit++
	return m.stats
}

func (m *mockStatsProvider) Started() bool {
	started, _ := m.stats["started"].(bool)
	return started
}

func (m *mockStatsProvider) StoreState() string {
	state, _ := m.stats["storeState"].(string)
	return state
}

const validBody = `{
	"customer_age": 45, "gender": "M", "dependent_count": 3,
	"education_level": "Graduate", "marital_status": "Married",
	"income_category": "$60K - $80K", "card_category": "Blue",
	"months_on_book": 36, "total_relationship_count": 3,
	"months_inactive_12_mon": 1, "contacts_count_12_mon": 2,
	"credit_limit": 5000, "total_revolving_bal": 1500, "avg_open_to_buy": 3500,
	"total_amt_chng_q4_q1": 0.7, "total_trans_amt": 2500, "total_trans_ct": 45,
	"total_ct_chng_q4_q1": 0.8, "avg_utilization_ratio": 0.1
}`

func newHandler(deps *mockDependencies, started bool) http.Handler {
	stats := &mockStatsProvider{stats: map[string]interface{}{"started": started, "storeState": "ready"}}
	return api.NewServer(deps, stats, api.WithHistoryLimits(2, 5)).Handler()
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Routes(t *testing.T) {
	Convey("Given a started API server", t, func() {
		deps := &mockDependencies{}
		h := newHandler(deps, true)

		Convey("Then health reports ok", func() {
			w := serve(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["status"], ShouldEqual, "ok")
		})

		Convey("Then stats are served as JSON", func() {
			w := serve(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["storeState"], ShouldEqual, "ready")
		})

		Convey("Then metrics are exposed", func() {
			w := serve(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "attrition_")
		})

		Convey("Then the vocabulary is listed", func() {
			w := serve(h, http.MethodGet, "/v1/vocabulary", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"gender":["M","F"]`)
		})

		Convey("Then unknown routes are not found", func() {
			w := serve(h, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then responses carry a request id", func() {
			w := serve(h, http.MethodGet, "/healthz", "")
			So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set(api.RequestIDHeader, "req-1")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			So(rec.Header().Get(api.RequestIDHeader), ShouldEqual, "req-1")
		})
	})

	Convey("Given a started server whose stats are counted", t, func() {
		stats := &mockStatsProvider{stats: map[string]interface{}{"started": true, "storeState": "ready"}}
		h := api.NewServer(&mockDependencies{}, stats).Handler()

		Convey("When health is checked repeatedly", func() {
			for i := 0; i < 3; i++ {
				w := serve(h, http.MethodGet, "/healthz", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["store"], ShouldEqual, "ready")
			}

			Convey("Then service statistics are never collected", func() {
				So(stats.statsHit, ShouldEqual, 0)
			})
		})

		Convey("When stats are requested", func() {
			serve(h, http.MethodGet, "/stats", "")

			Convey("Then statistics are collected once", func() {
				So(stats.statsHit, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a server that has not started", t, func() {
		h := newHandler(&mockDependencies{}, false)

		Convey("Then health reports unavailable", func() {
			w := serve(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode(w)["status"], ShouldEqual, "unavailable")
		})
	})
}

func TestPredictionsHandler(t *testing.T) {
	Convey("Given a server whose dependencies retain customers", t, func() {
		deps := &mockDependencies{outcome: service.Outcome{
			Result:   model.Result{Label: model.LabelRetained, Confidence: 0.8},
			RecordID: 7,
			Recorded: true,
		}}
		h := newHandler(deps, true)

		Convey("When a valid request is posted", func() {
			w := serve(h, http.MethodPost, "/v1/predictions", validBody)

			Convey("Then the outcome and record id are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["label"], ShouldEqual, "Retained")
				So(body["prediction"], ShouldEqual, "Stay")
				So(body["confidence"], ShouldEqual, 0.8)
				So(body["record_id"], ShouldEqual, 7.0)
				So(body["recorded"], ShouldEqual, true)
				So(deps.predicted, ShouldHaveLength, 1)
				So(deps.predicted[0].IncomeCategory, ShouldEqual, "$60K - $80K")
			})
		})

		Convey("When the audit write failed", func() {
			deps.outcome = service.Outcome{
				Result:   model.Result{Label: model.LabelAttrited, Confidence: 0.6},
				AuditErr: &repository.PersistenceError{Op: "append", Err: errors.New("disk full")},
			}
			w := serve(h, http.MethodPost, "/v1/predictions", validBody)

			Convey("Then the result is still served without a record id", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["prediction"], ShouldEqual, "Exit")
				So(body["recorded"], ShouldEqual, false)
				So(body, ShouldNotContainKey, "record_id")
				So(body["audit_error"], ShouldContainSubstring, "disk full")
			})
		})

		Convey("When the body is malformed or has unknown fields", func() {
			for _, body := range []string{`{`, `{"surname":"x"}`, validBody + `{}`} {
				w := serve(h, http.MethodPost, "/v1/predictions", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "bad_request")
			}
			So(deps.predicted, ShouldBeEmpty)
		})

		Convey("When a field is omitted", func() {
			body := strings.Replace(validBody, `"credit_limit": 5000, `, "", 1)
			w := serve(h, http.MethodPost, "/v1/predictions", body)

			Convey("Then the request is rejected naming the field", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				out := decode(w)
				So(out["code"], ShouldEqual, "bad_request")
				So(out["message"], ShouldContainSubstring, "credit_limit")
				details, ok := out["details"].(map[string]interface{})
				So(ok, ShouldBeTrue)
				So(details["missing"], ShouldEqual, "credit_limit")
				So(deps.predicted, ShouldBeEmpty)
			})
		})

		Convey("When fields are null", func() {
			body := strings.Replace(validBody, `"customer_age": 45`, `"customer_age": null`, 1)
			body = strings.Replace(body, `"total_trans_ct": 45`, `"total_trans_ct": null`, 1)
			w := serve(h, http.MethodPost, "/v1/predictions", body)

			Convey("Then every null field is reported as missing", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				details, ok := decode(w)["details"].(map[string]interface{})
				So(ok, ShouldBeTrue)
				So(details["missing"], ShouldEqual, "customer_age,total_trans_ct")
				So(deps.predicted, ShouldBeEmpty)
			})
		})
	})

	Convey("Given dependencies that fail", t, func() {
		cases := []struct {
			name   string
			err    error
			status int
			code   string
		}{
			{"unknown category", &vocabulary.UnknownCategoryError{Attribute: vocabulary.Income, Value: "N/A"}, http.StatusBadRequest, "unknown_category"},
			{"out of range", model.ErrOutOfRange, http.StatusBadRequest, "out_of_range"},
			{"model unavailable", scoring.ErrModelUnavailable, http.StatusServiceUnavailable, "model_unavailable"},
			{"not started", service.ErrNotStarted, http.StatusServiceUnavailable, "model_unavailable"},
			{"shape mismatch", &scoring.ShapeMismatchError{Want: 19, Got: 18}, http.StatusInternalServerError, "shape_mismatch"},
			{"invalid prediction", scoring.ErrInvalidPrediction, http.StatusInternalServerError, "invalid_prediction"},
			{"anything else", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		}
		for _, tc := range cases {
			Convey("When the failure is "+tc.name, func() {
				h := newHandler(&mockDependencies{predictErr: tc.err}, true)
				w := serve(h, http.MethodPost, "/v1/predictions", validBody)

				Convey("Then it maps to the matching status and code", func() {
					So(w.Code, ShouldEqual, tc.status)
					So(decode(w)["code"], ShouldEqual, tc.code)
				})
			})
		}

		Convey("When the category is unknown", func() {
			h := newHandler(&mockDependencies{predictErr: &vocabulary.UnknownCategoryError{Attribute: vocabulary.Income, Value: "N/A"}}, true)
			w := serve(h, http.MethodPost, "/v1/predictions", validBody)

			Convey("Then the offending attribute and value are detailed", func() {
				details, ok := decode(w)["details"].(map[string]interface{})
				So(ok, ShouldBeTrue)
				So(details["attribute"], ShouldEqual, "income_category")
				So(details["value"], ShouldEqual, "N/A")
			})
		})
	})
}

func TestHistoryHandler(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []model.AuditRecord{
		{ID: 3, CreatedAt: at.Add(2 * time.Minute), Result: model.Result{Label: model.LabelAttrited, Confidence: 0.7}},
		{ID: 2, CreatedAt: at.Add(time.Minute), Result: model.Result{Label: model.LabelRetained, Confidence: 0.9}},
		{ID: 1, CreatedAt: at, Result: model.Result{Label: model.LabelRetained, Confidence: 0.8}},
	}

	Convey("Given a server with three recorded predictions", t, func() {
		deps := &mockDependencies{records: records}
		h := newHandler(deps, true)

		Convey("When no limit is given", func() {
			w := serve(h, http.MethodGet, "/v1/predictions", "")

			Convey("Then the configured default applies", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 2)
				body := decode(w)
				So(body["limit"], ShouldEqual, 2.0)
				recs := body["records"].([]interface{})
				So(recs, ShouldHaveLength, 2)
				So(recs[0].(map[string]interface{})["id"], ShouldEqual, 3.0)
				So(recs[0].(map[string]interface{})["prediction"], ShouldEqual, "Exit")
			})
		})

		Convey("When limit is zero", func() {
			w := serve(h, http.MethodGet, "/v1/predictions?limit=0", "")

			Convey("Then an empty list is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"records":[]`)
			})
		})

		Convey("When limit is invalid", func() {
			for _, q := range []string{"abc", "-1"} {
				w := serve(h, http.MethodGet, "/v1/predictions?limit="+q, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "bad_request")
			}
		})

		Convey("When limit is above the maximum", func() {
			w := serve(h, http.MethodGet, "/v1/predictions?limit=6", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "limit_exceeded")
		})

		Convey("When the summary is requested", func() {
			w := serve(h, http.MethodGet, "/v1/predictions/summary?limit=5", "")

			Convey("Then counts and an oldest-first trend are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["total"], ShouldEqual, 3.0)
				So(body["retained"], ShouldEqual, 2.0)
				So(body["attrited"], ShouldEqual, 1.0)
				trend := body["trend"].([]interface{})
				So(trend, ShouldHaveLength, 3)
				So(trend[0].(map[string]interface{})["id"], ShouldEqual, 1.0)
			})
		})
	})

	Convey("Given a failing audit store", t, func() {
		deps := &mockDependencies{historyErr: &repository.PersistenceError{Op: "recent", Err: errors.New("locked")}}
		h := newHandler(deps, true)

		Convey("Then history reports a persistence error", func() {
			w := serve(h, http.MethodGet, "/v1/predictions", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(w)["code"], ShouldEqual, "persistence_error")
		})

		Convey("Then a service that is not started answers 503", func() {
			deps.historyErr = service.ErrNotStarted
			w := serve(h, http.MethodGet, "/v1/predictions/summary", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}
