package service

import (
	"context"
	"time"

	"github.com/okian/attrition/internal/domain/model"
)

// TrendPoint is one record's confidence in chronological order.
type TrendPoint struct {
	ID         int64       `json:"id"`
	At         time.Time   `json:"timestamp"`
	Label      model.Label `json:"label"`
	Confidence float64     `json:"confidence"`
}

// Summary aggregates the most recent audit records.
type Summary struct {
	Total          int          `json:"total"`
	Retained       int          `json:"retained"`
	Attrited       int          `json:"attrited"`
	MeanConfidence float64      `json:"mean_confidence"`
	Trend          []TrendPoint `json:"trend"`
}

// Summary reads up to limit recent records and aggregates them. The trend is
// oldest first.
func (s *Service) Summary(ctx context.Context, limit int) (Summary, error) {
	records, err := s.History(ctx, limit)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(records), nil
}

// Summarize aggregates records given newest first.
func Summarize(records []model.AuditRecord) Summary {
	sum := Summary{Total: len(records), Trend: make([]TrendPoint, len(records))}
	var total float64
	for i, rec := range records {
		switch rec.Result.Label {
		case model.LabelRetained:
			sum.Retained++
		case model.LabelAttrited:
			sum.Attrited++
		}
		total += rec.Result.Confidence
		sum.Trend[len(records)-1-i] = TrendPoint{
			ID:         rec.ID,
			At:         rec.CreatedAt,
			Label:      rec.Result.Label,
			Confidence: rec.Result.Confidence,
		}
	}
	if len(records) > 0 {
		sum.MeanConfidence = total / float64(len(records))
	}
	return sum
}
