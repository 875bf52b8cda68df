package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

const progressInterval = time.Second

// ErrVerification reports an audit trail that disagrees with what was submitted.
var ErrVerification = errors.New("verification failed")

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	if log == nil {
		log = logger.Nop()
	}
	stats := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting attrition load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("requests", cfg.Requests),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	before, err := client.History(ctx, 1)
	if err != nil {
		return stats, fmt.Errorf("read baseline history: %w", err)
	}
	var baseline int64
	if len(before.Records) > 0 {
		baseline = before.Records[0].ID
	}

	profiles := NewGenerator(cfg.Seed, nil).Profiles(cfg.Requests)
	stats.Generated = len(profiles)

	subs := submit(ctx, client, cfg, profiles, stats, log)

	if err := verify(ctx, client, cfg, baseline, subs, stats); err != nil {
		return stats, err
	}

	if cfg.OutputFile != "" {
		if err := saveProfiles(cfg.OutputFile, profiles, subs); err != nil {
			log.Warn(ctx, "failed to save profiles", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats)
	return stats, nil
}

// submit posts profiles with a fixed pool of workers. Results keep input order.
func submit(ctx context.Context, client *Client, cfg *Config, profiles []model.ScoringRequest, stats *Stats, log logger.Logger) []Submission {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	results := make([]Submission, len(profiles))
	jobs := make(chan int, workers*2)

	var (
		submitted atomic.Int64
		wg        sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				sub, err := client.Predict(ctx, profiles[i])
				sub.Index = i
				if err != nil {
					sub.Err = err.Error()
				}
				results[i] = sub
				submitted.Add(1)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if cfg.Verbose {
					log.Info(ctx, "progress", logger.Int64("submitted", submitted.Load()), logger.Int("total", len(profiles)))
				}
			}
		}
	}()

feed:
	for i := range profiles {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	close(done)

	for _, sub := range results {
		switch {
		case sub.Status == 0 && sub.Err == "":
			// never sent
			continue
		case sub.Err != "":
			stats.Failed++
		case sub.Recorded:
			stats.Recorded++
		default:
			stats.Unrecorded++
		}
		stats.Submitted++
		switch sub.Label {
		case model.LabelRetained:
			stats.Retained++
		case model.LabelAttrited:
			stats.Attrited++
		}
	}
	return results
}

func saveProfiles(path string, profiles []model.ScoringRequest, subs []Submission) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	type row struct {
		Request model.ScoringRequest `json:"request"`
		Result  Submission           `json:"result"`
	}
	rows := make([]row, len(profiles))
	for i := range profiles {
		rows[i] = row{Request: profiles[i], Result: subs[i]}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, filePermission)
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("recorded", stats.Recorded),
		logger.Int("unrecorded", stats.Unrecorded),
		logger.Int("failed", stats.Failed),
		logger.Int("retained", stats.Retained),
		logger.Int("attrited", stats.Attrited),
		logger.Int("verified", stats.Verified),
		logger.Duration("duration", stats.Duration),
		logger.Float64("requestsPerSecond", perSecond))
}
