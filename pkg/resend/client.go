// Package resend sends transactional email through the Resend API.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tenkay/filing-pipeline/internal/resilience"
)

const defaultBaseURL = "https://api.resend.com"

// Client sends one email per call.
type Client interface {
	Send(ctx context.Context, e Email) (string, error)
}

// Tag is a name/value pair attached to an email for analytics.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Email is the request body for POST /emails.
type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Tags    []Tag    `json:"tags,omitempty"`

	// IdempotencyKey is sent as a header so a retried request is not
	// delivered twice.
	IdempotencyKey string `json:"-"`
}

type sendResponse struct {
	ID string `json:"id"`
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

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Resend API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
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

// Send posts e and returns the provider message id. Throttling and server
// faults come back as *resilience.TransientError.
func (c *httpClient) Send(ctx context.Context, e Email) (string, error) {
	if len(e.To) == 0 {
		return "", eris.New("resend: no recipients")
	}

	body, err := json.Marshal(e)
	if err != nil {
		return "", eris.Wrap(err, "resend: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "resend: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if e.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", e.IdempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "resend: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "resend: read response")
	}
	if err := resilience.CheckResponse("resend", resp, respBody); err != nil {
		return "", err
	}

	var out sendResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", eris.Wrap(err, "resend: unmarshal response")
	}
	if out.ID == "" {
		return "", eris.New("resend: response has no id")
	}
	return out.ID, nil
}
