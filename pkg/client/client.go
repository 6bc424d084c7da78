// Package client is a Go client for the datamart HTTP API. It covers
// semantic search, typed catalog queries, and the streaming chat endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/meridian-data/datamart/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Option configures the Client.
type Option interface {
	apply(*Client)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*Client)

func (f optionFunc) apply(c *Client) { f(c) }

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *Client) { c.apiKey = key })
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return optionFunc(func(c *Client) { c.http = h })
}

// WithTimeout sets the per-request timeout on the default HTTP client.
// Note that chat streams are long-lived; prefer context deadlines there.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *Client) { c.http.Timeout = d })
}

// Client talks to a datamart API server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o.apply(c)
	}
	return c
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("datamart: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// Search runs semantic search over the content corpus.
func (c *Client) Search(ctx context.Context, req SearchRequest) (domain.SearchResponse, error) {
	var out domain.SearchResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/search", req, &out)
	return out, err
}

// DataSourceFilter narrows a data source listing.
type DataSourceFilter struct {
	Search   string
	Type     string
	Category string
	Status   string
	Limit    int
}

// DataSourceResult carries exact matches or fuzzy suggestions, never both.
type DataSourceResult struct {
	Data        []domain.DataSourceRecord `json:"data"`
	Suggestions []domain.Suggestion       `json:"suggestions,omitempty"`
}

// DataSources lists catalog data sources. A search term that matches nothing
// exactly yields ranked fuzzy suggestions instead.
func (c *Client) DataSources(ctx context.Context, f DataSourceFilter) (DataSourceResult, error) {
	q := url.Values{}
	setIfNonEmpty(q, "search", f.Search)
	setIfNonEmpty(q, "type", f.Type)
	setIfNonEmpty(q, "category", f.Category)
	setIfNonEmpty(q, "status", f.Status)
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}

	var out DataSourceResult
	err := c.doJSON(ctx, http.MethodGet, "/v1/data-sources?"+q.Encode(), nil, &out)
	return out, err
}

// PeopleFilter narrows a people listing.
type PeopleFilter struct {
	Search     string
	Department string
	Expertise  string
	Limit      int
}

// People lists catalog people records.
func (c *Client) People(ctx context.Context, f PeopleFilter) ([]domain.PersonRecord, error) {
	q := url.Values{}
	setIfNonEmpty(q, "search", f.Search)
	setIfNonEmpty(q, "department", f.Department)
	setIfNonEmpty(q, "expertise", f.Expertise)
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}

	var out struct {
		Data []domain.PersonRecord `json:"data"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/v1/people?"+q.Encode(), nil, &out)
	return out.Data, err
}

// Health reports the server health payload. A degraded server returns the
// payload alongside an *APIError with StatusCode 503.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.doJSON(ctx, http.MethodGet, "/healthz", nil, &out)
	return out, err
}

func setIfNonEmpty(q url.Values, key, val string) {
	if val != "" {
		q.Set(key, val)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("datamart: marshal request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("datamart: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("datamart: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("datamart: decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Code = "unknown"
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
	}
	return apiErr
}
