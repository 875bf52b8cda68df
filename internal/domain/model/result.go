package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// FeatureVector is the numeric encoding of a ScoringRequest in training column order.
type FeatureVector []float64

// Label is the binary scoring outcome.
type Label string

// Scoring outcomes. Class 1 of the classifier is Retained, class 0 is Attrited.
const (
	LabelRetained Label = "Retained"
	LabelAttrited Label = "Attrited"
)

// Values persisted in the audit table's prediction column.
const (
	storedRetained = "Stay"
	storedAttrited = "Exit"
)

// LabelForClass maps a classifier class to a Label.
func LabelForClass(class int) (Label, bool) {
	switch class {
	case 1:
		return LabelRetained, true
	case 0:
		return LabelAttrited, true
	default:
		return "", false
	}
}

// Valid reports whether l is one of the two known labels.
func (l Label) Valid() bool {
	return l == LabelRetained || l == LabelAttrited
}

// Stored returns the value written to the audit table.
func (l Label) Stored() string {
	if l == LabelRetained {
		return storedRetained
	}
	return storedAttrited
}

// ParseStoredLabel reads a label back from the audit table. Both the stored
// values and the label names are accepted.
func ParseStoredLabel(s string) (Label, error) {
	switch s {
	case storedRetained, string(LabelRetained):
		return LabelRetained, nil
	case storedAttrited, string(LabelAttrited):
		return LabelAttrited, nil
	default:
		return "", fmt.Errorf("unknown stored label %q", s)
	}
}

// Result is the classifier's decision for one request.
type Result struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// AuditRecord is one persisted scoring request and its outcome.
type AuditRecord struct {
	ID        int64          `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Request   ScoringRequest `json:"request"`
	Result    Result         `json:"result"`
}

// MarshalJSON flattens the record the way the audit table lays it out.
func (a AuditRecord) MarshalJSON() ([]byte, error) {
	type flat struct {
		ID        int64  `json:"id"`
		Timestamp string `json:"timestamp"`
		ScoringRequest
		Prediction string  `json:"prediction"`
		Label      Label   `json:"label"`
		Confidence float64 `json:"confidence"`
	}
	return json.Marshal(flat{
		ID:             a.ID,
		Timestamp:      a.CreatedAt.UTC().Format(time.RFC3339),
		ScoringRequest: a.Request,
		Prediction:     a.Result.Label.Stored(),
		Label:          a.Result.Label,
		Confidence:     a.Result.Confidence,
	})
}
