package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/attrition/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleRequest() model.ScoringRequest {
	return model.ScoringRequest{
		CustomerAge:            45,
		Gender:                 "M",
		DependentCount:         3,
		EducationLevel:         "Graduate",
		MaritalStatus:          "Married",
		IncomeCategory:         "$60K - $80K",
		CardCategory:           "Blue",
		MonthsOnBook:           36,
		TotalRelationshipCount: 3,
		MonthsInactive12Mon:    1,
		ContactsCount12Mon:     2,
		CreditLimit:            5000,
		TotalRevolvingBal:      1500,
		AvgOpenToBuy:           3500,
		TotalAmtChngQ4Q1:       0.7,
		TotalTransAmt:          2500,
		TotalTransCt:           45,
		TotalCtChngQ4Q1:        0.8,
		AvgUtilizationRatio:    0.1,
	}
}

func TestScoringRequest_ValidateRanges(t *testing.T) {
	Convey("Given a request inside every documented range", t, func() {
		req := sampleRequest()
		So(req.ValidateRanges(), ShouldBeNil)

		Convey("When the age is below the minimum", func() {
			req.CustomerAge = 17
			err := req.ValidateRanges()

			Convey("Then the offending field is named", func() {
				So(errors.Is(err, model.ErrOutOfRange), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "customer_age")
			})
		})

		Convey("When the utilization ratio exceeds one", func() {
			req.AvgUtilizationRatio = 1.01
			err := req.ValidateRanges()
			So(errors.Is(err, model.ErrOutOfRange), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "avg_utilization_ratio")
		})

		Convey("Then bounds are inclusive", func() {
			req.MonthsInactive12Mon = 12
			req.TotalTransCt = 0
			So(req.ValidateRanges(), ShouldBeNil)
		})
	})

	Convey("Given the range table", t, func() {
		So(len(model.Ranges()), ShouldEqual, 14)
	})
}

func TestLabel(t *testing.T) {
	Convey("Given classifier classes", t, func() {
		l, ok := model.LabelForClass(1)
		So(ok, ShouldBeTrue)
		So(l, ShouldEqual, model.LabelRetained)

		l, ok = model.LabelForClass(0)
		So(ok, ShouldBeTrue)
		So(l, ShouldEqual, model.LabelAttrited)

		_, ok = model.LabelForClass(2)
		So(ok, ShouldBeFalse)
	})

	Convey("Given stored labels", t, func() {
		So(model.LabelRetained.Stored(), ShouldEqual, "Stay")
		So(model.LabelAttrited.Stored(), ShouldEqual, "Exit")

		l, err := model.ParseStoredLabel("Stay")
		So(err, ShouldBeNil)
		So(l, ShouldEqual, model.LabelRetained)

		l, err = model.ParseStoredLabel("Attrited")
		So(err, ShouldBeNil)
		So(l, ShouldEqual, model.LabelAttrited)

		_, err = model.ParseStoredLabel("maybe")
		So(err, ShouldNotBeNil)
	})
}

func TestAuditRecord_MarshalJSON(t *testing.T) {
	Convey("Given an audit record", t, func() {
		rec := model.AuditRecord{
			ID:        7,
			CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Request:   sampleRequest(),
			Result:    model.Result{Label: model.LabelRetained, Confidence: 0.9},
		}

		Convey("When encoding to JSON", func() {
			raw, err := json.Marshal(rec)
			So(err, ShouldBeNil)

			var out map[string]any
			So(json.Unmarshal(raw, &out), ShouldBeNil)

			Convey("Then it uses the flat audit layout", func() {
				So(out["id"], ShouldEqual, 7.0)
				So(out["timestamp"], ShouldEqual, "2026-01-02T03:04:05Z")
				So(out["income_category"], ShouldEqual, "$60K - $80K")
				So(out["prediction"], ShouldEqual, "Stay")
				So(out["label"], ShouldEqual, "Retained")
				So(out["confidence"], ShouldEqual, 0.9)
			})
		})
	})
}
