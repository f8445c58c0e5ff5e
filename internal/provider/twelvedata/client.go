package twelvedata

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
)

const (
	baseURL = "https://api.twelvedata.com"

	// browserUserAgent is sent because Twelve Data rejects some default
	// client identifiers.
	browserUserAgent = "Mozilla/5.0"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=twelvedata_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Twelve Data end-of-day quote API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains the query parameters sent with each request.
	query url.Values
	log   *slog.Logger
}

// ClientOption is a configuration option for the Twelve Data client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithLogger sets the logger used for upstream data warnings.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a new Twelve Data client authenticating with key.
func New(key string, options ...ClientOption) (*Client, error) {
	if key == "" {
		return nil, errors.New("twelvedata: api key is required")
	}
	var client = &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{"User-Agent": []string{browserUserAgent}},
		query:      url.Values{},
		log:        slog.Default(),
	}
	// https://twelvedata.com/docs#authentication
	client.query.Set("apikey", key)
	for _, option := range options {
		option(client)
	}
	return client, nil
}

func (c *Client) Name() string { return "twelvedata" }
