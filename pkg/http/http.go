package http

import (
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// RLHTTPClient is a rate limited HTTP client. Requests wait on the limiter
// before being sent, so bursts against the directory service stay smoothed
// out even when the retrying transport kicks in.
type RLHTTPClient struct {
	Client      *http.Client
	Ratelimiter *rate.Limiter
}

// Do sends an HTTP request.
func (c *RLHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.Ratelimiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return c.Client.Do(req)
}

// NewClient returns a rate limited http client with a retrying transport.
func NewClient(rl *rate.Limiter) *RLHTTPClient {
	retrying := retryablehttp.NewClient()
	retrying.Logger = nil
	return &RLHTTPClient{
		Client:      retrying.StandardClient(),
		Ratelimiter: rl,
	}
}
