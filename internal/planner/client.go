// Package planner consumes the backend task planner: the engine never
// computes what to work on, it only asks.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var ErrNotConfigured = errors.New("planner: no plan service configured")

const ModeNextTask = "next_task"

type Task struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Project string `json:"project"`
	Area    string `json:"area"`
}

type planResponse struct {
	NextTask *Task `json:"next_task"`
}

// Client is the requestPlan contract. NextTask returns (nil, nil) when the
// planner has nothing to suggest.
type Client interface {
	NextTask(ctx context.Context) (*Task, error)
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) NextTask(ctx context.Context) (*Task, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	endpoint := fmt.Sprintf("%s/plan?mode=%s", c.baseURL, url.QueryEscape(ModeNextTask))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("planner: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("planner: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("planner: unexpected status %d", resp.StatusCode)
	}

	var body planResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("planner: decode response: %w", err)
	}
	return body.NextTask, nil
}
