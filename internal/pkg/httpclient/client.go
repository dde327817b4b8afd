package httpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// Client is a thin GET-only wrapper over fasthttp shared by the outbound adapters.
type Client struct {
	client    *fasthttp.Client
	userAgent string
	timeout   time.Duration
}

// New creates a Client. timeout bounds every request on top of any ctx deadline.
func New(userAgent string, timeout time.Duration) *Client {
	return &Client{
		client: &fasthttp.Client{
			Name:                     userAgent,
			ReadTimeout:              timeout,
			WriteTimeout:             timeout,
			MaxIdleConnDuration:      90 * time.Second,
			NoDefaultUserAgentHeader: userAgent == "",
		},
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Get fetches uri and returns a copy of the response body.
func (c *Client) Get(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if c.userAgent != "" {
		req.Header.SetUserAgent(c.userAgent)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("GET %s: %w", req.URI().Path(), err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		body := resp.Body()
		if len(body) > 256 {
			body = body[:256]
		}
		return nil, &StatusError{StatusCode: status, Body: string(body)}
	}

	return append([]byte(nil), resp.Body()...), nil
}

// CloseIdle releases idle keep-alive connections.
func (c *Client) CloseIdle() {
	c.client.CloseIdleConnections()
}
