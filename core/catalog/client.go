// Package catalog wraps the external music catalog API. It is a thin
// request layer: no retries, a fixed per-call timeout, and the API's own
// envelope status check.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"streamflow/logger"
	"streamflow/model"
)

// Client talks to the catalog API.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
}

// NewClient creates a catalog client with a fixed request timeout.
func NewClient(baseURL, clientID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		clientID: clientID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// envelope is the catalog API's response wrapper. Any status other than
// "success" is an error condition even on HTTP 200.
type envelope struct {
	Headers struct {
		Status           string `json:"status"`
		Code             int    `json:"code"`
		ErrorMessage     string `json:"error_message"`
		ResultsFullCount int    `json:"results_fullcount"`
	} `json:"headers"`
	Results json.RawMessage `json:"results"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, results interface{}) error {
	if c.clientID != "" {
		params.Set("client_id", c.clientID)
	}
	params.Set("format", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create catalog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("catalog request failed", logger.String("path", path), logger.ErrorField(err))
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error("catalog returned non-200",
			logger.String("path", path), logger.Int("status", resp.StatusCode))
		return fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}

	if env.Headers.Status != "success" {
		logger.Warn("catalog reported failure",
			logger.String("path", path),
			logger.Int("code", env.Headers.Code),
			logger.String("message", env.Headers.ErrorMessage))
		return fmt.Errorf("catalog error: %s (code %d)", env.Headers.ErrorMessage, env.Headers.Code)
	}

	if err := json.Unmarshal(env.Results, results); err != nil {
		return fmt.Errorf("failed to decode catalog results: %w", err)
	}
	return nil
}

// SearchTracks searches the catalog for tracks matching the query.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]model.Track, error) {
	params := url.Values{}
	params.Set("search", query)
	params.Set("limit", strconv.Itoa(normalizeLimit(limit)))

	var tracks []model.Track
	if err := c.get(ctx, "/tracks", params, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// Chart returns the current most-popular tracks.
func (c *Client) Chart(ctx context.Context, limit int) ([]model.Track, error) {
	params := url.Values{}
	params.Set("order", "popularity_total")
	params.Set("limit", strconv.Itoa(normalizeLimit(limit)))

	var tracks []model.Track
	if err := c.get(ctx, "/tracks", params, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// TrackByID fetches a single track. Returns nil when the catalog has no
// track with this id.
func (c *Client) TrackByID(ctx context.Context, id string) (*model.Track, error) {
	params := url.Values{}
	params.Set("id", id)

	var tracks []model.Track
	if err := c.get(ctx, "/tracks", params, &tracks); err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, nil
	}
	return &tracks[0], nil
}

// SearchArtists searches the catalog for artists matching the query.
func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]model.Artist, error) {
	params := url.Values{}
	params.Set("name", query)
	params.Set("limit", strconv.Itoa(normalizeLimit(limit)))

	var artists []model.Artist
	if err := c.get(ctx, "/artists", params, &artists); err != nil {
		return nil, err
	}
	return artists, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
