// Package tvdb is a minimal TVDB v4 client used for episode-to-series
// reverse lookup.
package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"overlite/internal/httputil"
)

const defaultBaseURL = "https://api4.thetvdb.com/v4"

// TVDB tokens are issued for a month; refresh a day early.
const tokenTTL = 29 * 24 * time.Hour

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func New(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    httputil.NewClient(),
		limiter: rate.NewLimiter(10, 5),
	}
}

func NewWithBaseURL(apiKey, baseURL string) *Client {
	c := New(apiKey)
	c.baseURL = baseURL
	c.limiter = rate.NewLimiter(rate.Inf, 0)
	return c
}

// bearer returns a cached login token, logging in again when the cached one
// is missing or expired.
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{"apikey": c.apiKey})
	if err != nil {
		return "", fmt.Errorf("encoding login body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("connection failed: %w", err)
	}
	defer httputil.DrainBody(resp)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return "", fmt.Errorf("reading login response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("TVDB login returned status %d: %s", resp.StatusCode, httputil.Truncate(raw, 200))
	}

	var parsed struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decoding login response: %w", err)
	}
	if parsed.Data.Token == "" {
		return "", fmt.Errorf("TVDB login returned no token")
	}

	c.token = parsed.Data.Token
	c.tokenExpiry = time.Now().Add(tokenTTL)
	return c.token, nil
}

// SeriesIDFromEpisode resolves an episode's TVDB id to its parent series
// id. Returns 0 when the episode is unknown, the API key is unset, or the
// lookup fails; reconciliation treats 0 as "did not resolve".
func (c *Client) SeriesIDFromEpisode(ctx context.Context, episodeID int64) int64 {
	if c.apiKey == "" || episodeID == 0 {
		return 0
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0
	}

	token, err := c.bearer(ctx)
	if err != nil {
		log.Printf("tvdb: login failed: %v", err)
		return 0
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/episodes/%d", c.baseURL, episodeID), nil)
	if err != nil {
		log.Printf("tvdb: creating episode request: %v", err)
		return 0
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("tvdb: episode lookup failed: %v", err)
		return 0
	}
	defer httputil.DrainBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return 0
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		log.Printf("tvdb: reading episode response: %v", err)
		return 0
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("tvdb: episode lookup returned status %d: %s", resp.StatusCode, httputil.Truncate(raw, 200))
		return 0
	}

	var parsed struct {
		Data struct {
			SeriesID int64 `json:"seriesId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Printf("tvdb: decoding episode response: %v", err)
		return 0
	}
	return parsed.Data.SeriesID
}
