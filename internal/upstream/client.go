// Package upstream posts analysis requests to the external report-generation
// workflow. It performs exactly one HTTP call per request and never retries.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go-radiology-reporter/internal/logger"
	"go-radiology-reporter/pkg/models"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrResponseTooLarge is returned when the body exceeds the configured cap.
var ErrResponseTooLarge = errors.New("upstream response exceeds size limit")

// Analyzer is implemented by Client; the service depends on it so tests can
// substitute a fake.
type Analyzer interface {
	Analyze(ctx context.Context, req models.UpstreamRequest) (*Response, error)
}

// Response is the raw upstream reply. Any HTTP status is a Response.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// TransportError means no HTTP response was obtained.
type TransportError struct {
	Err     error
	Timeout bool
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("upstream timeout: %v", e.Err)
	}
	return fmt.Sprintf("upstream unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// statusError carries a 5xx response through the breaker so it counts as a
// failure without losing the body.
type statusError struct {
	resp *Response
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.resp.StatusCode)
}

type Options struct {
	URL                string
	AuthHeader         string
	AuthToken          string
	Timeout            time.Duration
	MaxResponseBytes   int64
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
	// OnBreakerChange is called with the new state name on every transition.
	OnBreakerChange func(state string)
}

// Client implements Analyzer over HTTP.
type Client struct {
	url        string
	authHeader string
	authToken  string
	maxBytes   int64
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = 5 * 1024 * 1024
	}
	if opts.BreakerMaxFailures == 0 {
		opts.BreakerMaxFailures = 5
	}
	if opts.BreakerOpenTimeout <= 0 {
		opts.BreakerOpenTimeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		MaxIdleConns:           20,
		MaxIdleConnsPerHost:    10,
		IdleConnTimeout:        90 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: 16 << 10,
	}

	c := &Client{
		url:        opts.URL,
		authHeader: opts.AuthHeader,
		authToken:  opts.AuthToken,
		maxBytes:   opts.MaxResponseBytes,
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Redirects surface as non-success responses.
				return http.ErrUseLastResponse
			},
		},
	}

	maxFailures := opts.BreakerMaxFailures
	onChange := opts.OnBreakerChange
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1,
		Timeout:     opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// Client-side cancellation says nothing about upstream health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state change")
			if onChange != nil {
				onChange(to.String())
			}
		},
	})
	return c
}

// BreakerState returns the current circuit breaker state name.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Analyze sends req to the workflow. It returns a *TransportError when no
// response was received, including when the circuit breaker is open.
func (c *Client) Analyze(ctx context.Context, req models.UpstreamRequest) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode upstream request: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.do(ctx, body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, &statusError{resp: resp}
		}
		return resp, nil
	})

	var se *statusError
	switch {
	case err == nil:
		return result.(*Response), nil
	case errors.As(err, &se):
		return se.resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, &TransportError{Err: err}
	}
	return nil, err
}

func (c *Client) do(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "go-radiology-reporter/1.0")
	if c.authHeader != "" && c.authToken != "" {
		httpReq.Header.Set(c.authHeader, c.authToken)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err, Timeout: isTimeout(ctx, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read upstream body: %w", err), Timeout: isTimeout(ctx, err)}
	}
	if int64(len(data)) > c.maxBytes {
		return nil, ErrResponseTooLarge
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		Duration:   time.Since(start),
	}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
