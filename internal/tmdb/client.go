package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"overlite/internal/httputil"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p"
)

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func New(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    httputil.NewClient(),
		limiter: rate.NewLimiter(35, 10),
	}
}

func NewWithBaseURL(apiKey, baseURL string) *Client {
	c := New(apiKey)
	c.baseURL = baseURL
	c.limiter = rate.NewLimiter(rate.Inf, 0)
	return c
}

// ImageURL builds a TMDB CDN URL for a poster path, e.g. ImageURL("w300",
// "/abc.jpg"). Empty path yields empty string.
func ImageURL(size, posterPath string) string {
	if posterPath == "" {
		return ""
	}
	if !strings.HasPrefix(posterPath, "/") {
		posterPath = "/" + posterPath
	}
	return imageBaseURL + "/" + size + posterPath
}

func (c *Client) do(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	u := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	defer httputil.DrainBody(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("TMDB returned status %d: %s", resp.StatusCode, httputil.Truncate(body, 200))
	}

	return json.RawMessage(body), nil
}

// SearchPage is one page of search results. Result items stay loosely typed
// so the full TMDB shape passes through to the frontend with annotations
// layered on top.
type SearchPage struct {
	Page         int              `json:"page"`
	TotalPages   int              `json:"total_pages"`
	TotalResults int              `json:"total_results"`
	Results      []map[string]any `json:"results"`
}

// Search queries TMDB. mediaType narrows the endpoint ("movie" or "tv");
// anything else searches across both. Single-type endpoints omit media_type
// from their results, so it is filled back in for uniform handling.
func (c *Client) Search(ctx context.Context, query, mediaType string, page int) (*SearchPage, error) {
	path := "/search/multi"
	switch mediaType {
	case "movie":
		path = "/search/movie"
	case "tv":
		path = "/search/tv"
	}
	params := url.Values{}
	params.Set("query", query)
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}

	raw, err := c.do(ctx, path, params)
	if err != nil {
		return nil, err
	}
	var result SearchPage
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	if mediaType == "movie" || mediaType == "tv" {
		for _, item := range result.Results {
			item["media_type"] = mediaType
		}
	}
	return &result, nil
}

// ExternalIDs is the append_to_response=external_ids block.
type ExternalIDs struct {
	IMDBID string `json:"imdb_id"`
	TVDBID int64  `json:"tvdb_id"`
}

// Details is the subset of a movie or tv detail response the broker needs
// to build a request record.
type Details struct {
	ID              int64       `json:"id"`
	Title           string      `json:"title"`
	Name            string      `json:"name"`
	ReleaseDate     string      `json:"release_date"`
	FirstAirDate    string      `json:"first_air_date"`
	Overview        string      `json:"overview"`
	PosterPath      string      `json:"poster_path"`
	NumberOfSeasons int64       `json:"number_of_seasons"`
	ExternalIDs     ExternalIDs `json:"external_ids"`
}

// DisplayTitle picks the movie title or the tv name, whichever is set.
func (d *Details) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// Year extracts the release year from whichever date field is set.
func (d *Details) Year() int64 {
	date := d.ReleaseDate
	if date == "" {
		date = d.FirstAirDate
	}
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.ParseInt(date[:4], 10, 64)
	if err != nil {
		return 0
	}
	return y
}

func (c *Client) details(ctx context.Context, path string) (*Details, error) {
	params := url.Values{}
	params.Set("append_to_response", "external_ids")
	raw, err := c.do(ctx, path, params)
	if err != nil {
		return nil, err
	}
	var d Details
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decoding detail response: %w", err)
	}
	return &d, nil
}

func (c *Client) MovieDetails(ctx context.Context, id int64) (*Details, error) {
	return c.details(ctx, fmt.Sprintf("/movie/%d", id))
}

func (c *Client) TVDetails(ctx context.Context, id int64) (*Details, error) {
	return c.details(ctx, fmt.Sprintf("/tv/%d", id))
}

// Details routes by media type.
func (c *Client) Details(ctx context.Context, mediaType string, id int64) (*Details, error) {
	if mediaType == "movie" {
		return c.MovieDetails(ctx, id)
	}
	return c.TVDetails(ctx, id)
}
