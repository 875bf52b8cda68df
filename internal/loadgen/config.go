// Package loadgen drives a running attrition service with generated customer
// profiles and checks the audit trail it leaves behind.
package loadgen

import (
	"time"

	"github.com/okian/attrition/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Requests     int           // Number of profiles to generate and submit
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	Seed         uint64        // Generator seed; 0 picks one from the clock
	HistoryLimit int           // Page size used when reading history back
	OutputFile   string        // Optional JSON dump of the generated profiles
	Verbose      bool
}

// Submission is the service's answer to one generated profile.
type Submission struct {
	Index      int         `json:"index"`
	Status     int         `json:"status"`
	Label      model.Label `json:"label"`
	Confidence float64     `json:"confidence"`
	RecordID   int64       `json:"record_id"`
	Recorded   bool        `json:"recorded"`
	Err        string      `json:"error,omitempty"`
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Recorded   int
	Unrecorded int
	Failed     int
	Retained   int
	Attrited   int
	Verified   int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
