package utils

import (
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "go-sync-store"

// HTTPClient is a wrapper around the resty.Client HTTP client.
// It embeds *resty.Client to expose all of its methods directly,
// while allowing extension with additional application-specific behavior.
//
// Example usage:
//
//	client := utils.NewHTTPClient("http://localhost:8080", 30*time.Second)
//	resp, err := client.R().Get("/appdata/books")
type HTTPClient struct {
	*resty.Client
}

// NewHTTPClient creates an independent resty client bound to baseURL with
// the given request timeout. A zero timeout leaves requests unbounded.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &HTTPClient{Client: client}
}

// WithBearer sets the Authorization header sent with every request. An
// empty token removes it.
func (c *HTTPClient) WithBearer(token string) *HTTPClient {
	c.SetAuthToken(token)
	return c
}
