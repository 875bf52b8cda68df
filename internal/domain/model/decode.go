package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sentinel errors for request decoding.
var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrMissingField     = errors.New("missing field")
)

// MissingFieldError lists request keys that were absent or null.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, strings.Join(e.Fields, ", "))
}

// Is lets callers match with errors.Is(err, ErrMissingField).
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// FieldNames lists the JSON keys of a ScoringRequest in audit column order.
func FieldNames() []string {
	return []string{
		"customer_age",
		"gender",
		"dependent_count",
		"education_level",
		"marital_status",
		"income_category",
		"card_category",
		"months_on_book",
		"total_relationship_count",
		"months_inactive_12_mon",
		"contacts_count_12_mon",
		"credit_limit",
		"total_revolving_bal",
		"avg_open_to_buy",
		"total_amt_chng_q4_q1",
		"total_trans_amt",
		"total_trans_ct",
		"total_ct_chng_q4_q1",
		"avg_utilization_ratio",
	}
}

// DecodeRequest reads exactly one JSON object carrying every ScoringRequest
// field. Unknown keys, trailing data, and absent or null fields are rejected.
func DecodeRequest(r io.Reader) (ScoringRequest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ScoringRequest{}, fmt.Errorf("%w: read: %w", ErrMalformedRequest, err)
	}

	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return ScoringRequest{}, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	if dec.More() {
		return ScoringRequest{}, fmt.Errorf("%w: trailing data after request object", ErrMalformedRequest)
	}

	var missing []string
	for _, name := range FieldNames() {
		v, ok := raw[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return ScoringRequest{}, &MissingFieldError{Fields: missing}
	}

	var req ScoringRequest
	strict := json.NewDecoder(bytes.NewReader(data))
	strict.DisallowUnknownFields()
	if err := strict.Decode(&req); err != nil {
		return ScoringRequest{}, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	return req, nil
}
