// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
)

// ErrOutOfRange marks a numeric field outside its documented range.
var ErrOutOfRange = errors.New("value out of range")

// ScoringRequest is one customer profile submitted for scoring.
// JSON keys mirror the audit table column names.
type ScoringRequest struct {
	CustomerAge            int     `json:"customer_age"`
	Gender                 string  `json:"gender"`
	DependentCount         int     `json:"dependent_count"`
	EducationLevel         string  `json:"education_level"`
	MaritalStatus          string  `json:"marital_status"`
	IncomeCategory         string  `json:"income_category"`
	CardCategory           string  `json:"card_category"`
	MonthsOnBook           int     `json:"months_on_book"`
	TotalRelationshipCount int     `json:"total_relationship_count"`
	MonthsInactive12Mon    int     `json:"months_inactive_12_mon"`
	ContactsCount12Mon     int     `json:"contacts_count_12_mon"`
	CreditLimit            float64 `json:"credit_limit"`
	TotalRevolvingBal      float64 `json:"total_revolving_bal"`
	AvgOpenToBuy           float64 `json:"avg_open_to_buy"`
	TotalAmtChngQ4Q1       float64 `json:"total_amt_chng_q4_q1"`
	TotalTransAmt          float64 `json:"total_trans_amt"`
	TotalTransCt           int     `json:"total_trans_ct"`
	TotalCtChngQ4Q1        float64 `json:"total_ct_chng_q4_q1"`
	AvgUtilizationRatio    float64 `json:"avg_utilization_ratio"`
}

// Range is an inclusive numeric bound.
type Range struct {
	Field string
	Min   float64
	Max   float64
}

// Ranges returns the plausible bounds for every numeric field, in column order.
// They exist for input surfaces; the scoring pipeline does not enforce them.
func Ranges() []Range {
	return []Range{
		{"customer_age", 18, 100},
		{"dependent_count", 0, 10},
		{"months_on_book", 1, 120},
		{"total_relationship_count", 1, 6},
		{"months_inactive_12_mon", 0, 12},
		{"contacts_count_12_mon", 0, 10},
		{"credit_limit", 0, 100_000},
		{"total_revolving_bal", 0, 50_000},
		{"avg_open_to_buy", 0, 100_000},
		{"total_amt_chng_q4_q1", 0, 10},
		{"total_trans_amt", 0, 50_000},
		{"total_trans_ct", 0, 200},
		{"total_ct_chng_q4_q1", 0, 10},
		{"avg_utilization_ratio", 0, 1},
	}
}

func (r ScoringRequest) numeric() []float64 {
	return []float64{
		float64(r.CustomerAge),
		float64(r.DependentCount),
		float64(r.MonthsOnBook),
		float64(r.TotalRelationshipCount),
		float64(r.MonthsInactive12Mon),
		float64(r.ContactsCount12Mon),
		r.CreditLimit,
		r.TotalRevolvingBal,
		r.AvgOpenToBuy,
		r.TotalAmtChngQ4Q1,
		r.TotalTransAmt,
		float64(r.TotalTransCt),
		r.TotalCtChngQ4Q1,
		r.AvgUtilizationRatio,
	}
}

// ValidateRanges checks every numeric field against Ranges and reports the
// first violation.
func (r ScoringRequest) ValidateRanges() error {
	values := r.numeric()
	for i, rg := range Ranges() {
		v := values[i]
		if v < rg.Min || v > rg.Max {
			return fmt.Errorf("%w: %s=%v not in [%v, %v]", ErrOutOfRange, rg.Field, v, rg.Min, rg.Max)
		}
	}
	return nil
}
