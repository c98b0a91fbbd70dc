// Package brave is a minimal client for the Brave Web Search API.
package brave

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/aozorabiz/kaisha-intel/internal/resilience"
)

const defaultBaseURL = "https://api.search.brave.com/res/v1"

// Client performs web searches against the Brave Search API.
type Client interface {
	Search(ctx context.Context, query string, count int) ([]Result, error)
}

// Result is one web search hit.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Age         string `json:"age,omitempty"`
}

type searchResponse struct {
	Web struct {
		Results []Result `json:"results"`
	} `json:"web"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithMaxRetries sets how many times a failed search is retried.
func WithMaxRetries(n int) Option {
	return func(c *httpClient) {
		c.retry = resilience.SearchRetryConfig(n)
	}
}

// WithCountry sets the search country code (default JP).
func WithCountry(country string) Option {
	return func(c *httpClient) {
		c.country = country
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	country string
	retry   resilience.RetryConfig
	http    *http.Client
}

// NewClient creates a Brave Search API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		country: "JP",
		retry:   resilience.SearchRetryConfig(2),
		http: &http.Client{
			Timeout: 12 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search runs one web search and returns up to count results. Missing API
// key returns empty results, not an error: search enrichment is always
// optional for callers.
func (c *httpClient) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if c.apiKey == "" {
		return nil, nil
	}
	if count <= 0 {
		count = 10
	}
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]Result, error) {
		return c.searchOnce(ctx, query, count)
	})
}

func (c *httpClient) searchOnce(ctx context.Context, query string, count int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(count))
	q.Set("country", c.country)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/web/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "brave: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "brave: send request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "brave: read response"), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("brave: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "brave: unmarshal response")
	}
	return result.Web.Results, nil
}
