package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/okian/attrition/internal/domain/model"
)

// Client talks to the attrition HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with the given per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type predictionBody struct {
	Label      model.Label `json:"label"`
	Confidence float64     `json:"confidence"`
	RecordID   int64       `json:"record_id"`
	Recorded   bool        `json:"recorded"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
}

// HistoryPage mirrors GET /v1/predictions.
type HistoryPage struct {
	Limit   int            `json:"limit"`
	Records []HistoryEntry `json:"records"`
}

// HistoryEntry carries the fields of a flattened audit record that a run
// checks.
type HistoryEntry struct {
	ID           int64       `json:"id"`
	Timestamp    string      `json:"timestamp"`
	CustomerAge  int         `json:"customer_age"`
	CardCategory string      `json:"card_category"`
	Label        model.Label `json:"label"`
	Confidence   float64     `json:"confidence"`
}

// SummaryPage mirrors GET /v1/predictions/summary.
type SummaryPage struct {
	Total          int     `json:"total"`
	Retained       int     `json:"retained"`
	Attrited       int     `json:"attrited"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// Health returns nil when /healthz answers 200.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// Predict posts one profile.
func (c *Client) Predict(ctx context.Context, req model.ScoringRequest) (Submission, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Submission{}, fmt.Errorf("marshal request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/v1/predictions", payload)
	if err != nil {
		return Submission{}, err
	}
	defer resp.Body.Close()

	var body predictionBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Submission{Status: resp.StatusCode}, fmt.Errorf("decode prediction: %w", err)
	}
	sub := Submission{
		Status:     resp.StatusCode,
		Label:      body.Label,
		Confidence: body.Confidence,
		RecordID:   body.RecordID,
		Recorded:   body.Recorded,
	}
	if resp.StatusCode != http.StatusOK {
		sub.Err = body.Code + ": " + body.Message
	}
	return sub, nil
}

// History reads up to limit records, newest first.
func (c *Client) History(ctx context.Context, limit int) (HistoryPage, error) {
	var page HistoryPage
	err := c.getJSON(ctx, fmt.Sprintf("/v1/predictions?limit=%d", limit), &page)
	return page, err
}

// Summary reads the aggregate over up to limit records.
func (c *Client) Summary(ctx context.Context, limit int) (SummaryPage, error) {
	var page SummaryPage
	err := c.getJSON(ctx, fmt.Sprintf("/v1/predictions/summary?limit=%d", limit), &page)
	return page, err
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", "loadgen-"+uuid.NewString())
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}
