package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/config"
	"github.com/okian/attrition/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.New()
	cfg.ModelDir = filepath.Join("..", "models", "reference")
	cfg.DBPath = filepath.Join(t.TempDir(), "history.db")
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestMainApplication(t *testing.T) {
	convey.Convey("Given the reference configuration", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		log := logger.Nop()

		svc, err := service.FromConfig(ctx, cfg, log)
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		convey.Convey("When the HTTP server is built", func() {
			srv := newHTTPServer(cfg, svc, log)
			convey.So(srv.Addr, convey.ShouldEqual, cfg.Addr)
			convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)

			convey.Convey("Then it serves health and predictions", func() {
				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

				body := `{"customer_age":45,"gender":"F","dependent_count":2,"education_level":"College",` +
					`"marital_status":"Single","income_category":"Less than $40K","card_category":"Blue",` +
					`"months_on_book":24,"total_relationship_count":4,"months_inactive_12_mon":2,` +
					`"contacts_count_12_mon":3,"credit_limit":3000,"total_revolving_bal":800,` +
					`"avg_open_to_buy":2200,"total_amt_chng_q4_q1":0.6,"total_trans_amt":1800,` +
					`"total_trans_ct":38,"total_ct_chng_q4_q1":0.55,"avg_utilization_ratio":0.27}`
				w = httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/predictions", strings.NewReader(body)))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, `"recorded":true`)
			})

			convey.Convey("Then serve returns cleanly once the context is canceled", func() {
				runCtx, cancel := context.WithCancel(ctx)
				done := make(chan error, 1)
				go func() { done <- serve(runCtx, srv, cfg.ShutdownTimeout, log) }()
				time.Sleep(50 * time.Millisecond)
				cancel()

				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(5 * time.Second):
					t.Fatal("serve did not return after cancel")
				}
			})
		})
	})

	convey.Convey("Given a configuration pointing at a missing model bundle", t, func() {
		cfg := testConfig(t)
		cfg.ModelDir = filepath.Join(t.TempDir(), "missing")

		convey.Convey("Then the service cannot be built", func() {
			_, err := service.FromConfig(context.Background(), cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
