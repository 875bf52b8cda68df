package loadgen

import (
	"context"
	"fmt"
)

// verify reads the audit trail back and checks it against subs. Other writers
// may interleave, so only records at least as new as the page's oldest entry
// are required to appear.
func verify(ctx context.Context, client *Client, cfg *Config, baseline int64, subs []Submission, stats *Stats) error {
	ids := make(map[int64]Submission, len(subs))
	for _, sub := range subs {
		if !sub.Recorded {
			continue
		}
		if sub.RecordID <= baseline {
			return fmt.Errorf("%w: record id %d not above baseline %d", ErrVerification, sub.RecordID, baseline)
		}
		if _, dup := ids[sub.RecordID]; dup {
			return fmt.Errorf("%w: record id %d assigned twice", ErrVerification, sub.RecordID)
		}
		ids[sub.RecordID] = sub
	}
	if len(ids) == 0 {
		return nil
	}

	limit := cfg.HistoryLimit
	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}
	page, err := client.History(ctx, limit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(page.Records) == 0 {
		return fmt.Errorf("%w: history is empty after %d recorded predictions", ErrVerification, len(ids))
	}
	for i := 1; i < len(page.Records); i++ {
		if page.Records[i].ID >= page.Records[i-1].ID {
			return fmt.Errorf("%w: history not newest first at position %d (%d after %d)",
				ErrVerification, i, page.Records[i].ID, page.Records[i-1].ID)
		}
	}

	seen := make(map[int64]bool, len(page.Records))
	for _, rec := range page.Records {
		seen[rec.ID] = true
		sub, ours := ids[rec.ID]
		if !ours {
			continue
		}
		if rec.Label != sub.Label || rec.Confidence != sub.Confidence {
			return fmt.Errorf("%w: record %d stored %s/%.6f but was answered %s/%.6f",
				ErrVerification, rec.ID, rec.Label, rec.Confidence, sub.Label, sub.Confidence)
		}
		stats.Verified++
	}
	oldest := page.Records[len(page.Records)-1].ID
	for id := range ids {
		if id >= oldest && !seen[id] {
			return fmt.Errorf("%w: record %d missing from history", ErrVerification, id)
		}
	}

	sum, err := client.Summary(ctx, limit)
	if err != nil {
		return fmt.Errorf("read summary: %w", err)
	}
	if sum.Total > limit || sum.Retained+sum.Attrited != sum.Total {
		return fmt.Errorf("%w: summary counts %d = %d + %d inconsistent for limit %d",
			ErrVerification, sum.Total, sum.Retained, sum.Attrited, limit)
	}
	return nil
}
