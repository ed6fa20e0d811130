package seeding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrUnexpectedStatus is returned when the service answers with a status the
// caller did not expect.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client talks JSON to the rating service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// do sends the request and decodes the body into out when the status is one
// of want. It returns the status code.
func (c *Client) do(ctx context.Context, method, path string, body, out any, want ...int) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}

	for _, code := range want {
		if resp.StatusCode != code {
			continue
		}
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
			}
		}
		return resp.StatusCode, nil
	}
	return resp.StatusCode, fmt.Errorf("%w %d from %s %s: %s", ErrUnexpectedStatus, resp.StatusCode, method, path, bytes.TrimSpace(data))
}

// Health checks that the metrics endpoint answers.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK)
	return err
}

// Register creates the initial rating for h.
func (c *Client) Register(ctx context.Context, h Horse) (ratingResponse, error) {
	var out ratingResponse
	_, err := c.do(ctx, http.MethodPost, "/ratings/calculate-initial/"+url.PathEscape(h.ID), h, &out, http.StatusCreated)
	return out, err
}

// ApplyRace posts a whole race card to the synchronous batch endpoint.
func (c *Client) ApplyRace(ctx context.Context, race Race) (batchResponse, error) {
	var out batchResponse
	body := struct {
		Results []Result `json:"results"`
	}{Results: race.Results}
	_, err := c.do(ctx, http.MethodPost, "/ratings/races/"+url.PathEscape(race.ID)+"/results", body, &out, http.StatusOK)
	return out, err
}

// Submit queues one result. It reports whether the service saw it as a
// duplicate.
func (c *Client) Submit(ctx context.Context, res Result) (bool, error) {
	var ack ackResponse
	code, err := c.do(ctx, http.MethodPost, "/events/race-results", res, &ack, http.StatusAccepted, http.StatusOK)
	if err != nil {
		return false, err
	}
	return code == http.StatusOK || ack.Duplicate, nil
}

// Rating fetches the current rating of one horse.
func (c *Client) Rating(ctx context.Context, horseID string) (ratingResponse, error) {
	var out ratingResponse
	_, err := c.do(ctx, http.MethodGet, "/ratings/horse/"+url.PathEscape(horseID), nil, &out, http.StatusOK)
	return out, err
}

// Summary fetches the population summary with the top n entries.
func (c *Client) Summary(ctx context.Context, n int) (Summary, error) {
	var out Summary
	q := url.Values{"top": []string{fmt.Sprint(n)}}
	_, err := c.do(ctx, http.MethodGet, "/ratings/statistics?"+q.Encode(), nil, &out, http.StatusOK)
	return out, err
}

func (c *Client) stats(ctx context.Context) (serviceStats, error) {
	var out serviceStats
	_, err := c.do(ctx, http.MethodGet, "/stats", nil, &out, http.StatusOK)
	return out, err
}
