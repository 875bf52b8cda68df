// Package encoding turns scoring requests into the fixed-order feature vector
// the churn classifier was trained on.
package encoding

import (
	"fmt"

	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/internal/domain/vocabulary"
)

// Width is the number of features the classifier consumes.
const Width = 19

// columns are the training column names. The Encoder emits values in exactly
// this order; the classifier depends on it.
var columns = [Width]string{
	"Customer_Age",
	"Gender",
	"Dependent_count",
	"Education_Level",
	"Marital_Status",
	"Income_Category",
	"Card_Category",
	"Months_on_book",
	"Total_Relationship_Count",
	"Months_Inactive_12_mon",
	"Contacts_Count_12_mon",
	"Credit_Limit",
	"Total_Revolving_Bal",
	"Avg_Open_To_Buy",
	"Total_Amt_Chng_Q4_Q1",
	"Total_Trans_Amt",
	"Total_Trans_Ct",
	"Total_Ct_Chng_Q4_Q1",
	"Avg_Utilization_Ratio",
}

// Columns returns the training column names in vector order.
func Columns() []string {
	out := make([]string, Width)
	copy(out, columns[:])
	return out
}

// Encoder is a pure function of its vocabulary registry.
type Encoder struct {
	vocab *vocabulary.Registry
}

// New creates an Encoder bound to vocab.
func New(vocab *vocabulary.Registry) *Encoder {
	return &Encoder{vocab: vocab}
}

// Encode builds the feature vector for req. It fails with an error matching
// vocabulary.ErrUnknownCategory when a categorical value is not registered.
func (e *Encoder) Encode(req model.ScoringRequest) (model.FeatureVector, error) {
	gender, err := e.code(vocabulary.Gender, req.Gender)
	if err != nil {
		return nil, err
	}
	education, err := e.code(vocabulary.Education, req.EducationLevel)
	if err != nil {
		return nil, err
	}
	marital, err := e.code(vocabulary.Marital, req.MaritalStatus)
	if err != nil {
		return nil, err
	}
	income, err := e.code(vocabulary.Income, req.IncomeCategory)
	if err != nil {
		return nil, err
	}
	card, err := e.code(vocabulary.Card, req.CardCategory)
	if err != nil {
		return nil, err
	}

	return model.FeatureVector{
		float64(req.CustomerAge),
		gender,
		float64(req.DependentCount),
		education,
		marital,
		income,
		card,
		float64(req.MonthsOnBook),
		float64(req.TotalRelationshipCount),
		float64(req.MonthsInactive12Mon),
		float64(req.ContactsCount12Mon),
		req.CreditLimit,
		req.TotalRevolvingBal,
		req.AvgOpenToBuy,
		req.TotalAmtChngQ4Q1,
		req.TotalTransAmt,
		float64(req.TotalTransCt),
		req.TotalCtChngQ4Q1,
		req.AvgUtilizationRatio,
	}, nil
}

func (e *Encoder) code(attr vocabulary.Attribute, value string) (float64, error) {
	c, err := e.vocab.CodeOf(attr, value)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", attr, err)
	}
	return float64(c), nil
}
