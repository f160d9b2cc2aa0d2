package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/newthinker/stocksync/internal/core"
)

// BreakerOptions configures the optional circuit breaker.
type BreakerOptions struct {
	Enabled     bool
	MaxFailures uint32
	Timeout     time.Duration
}

// ClientOptions configures a provider HTTP client.
type ClientOptions struct {
	Name      string
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	Breaker   BreakerOptions
}

// Client is the HTTP transport shared by providers. Every failure it
// returns is coded FETCH_FAILED.
type Client struct {
	name    string
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient builds a client with browser headers and an optional breaker.
func NewClient(opts ClientOptions, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Name == "" {
		opts.Name = "http"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	h := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Accept-Language", "zh-CN,zh;q=0.9")
	if opts.UserAgent != "" {
		h.SetHeader("User-Agent", opts.UserAgent)
	}
	h.SetHeaders(opts.Headers)

	c := &Client{
		name:   opts.Name,
		http:   h,
		logger: logger.Named(opts.Name),
	}

	if opts.Breaker.Enabled {
		maxFailures := opts.Breaker.MaxFailures
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        opts.Name,
			MaxRequests: 1,
			Timeout:     opts.Breaker.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}
	return c
}

// Name returns the provider name the client was built for.
func (c *Client) Name() string {
	return c.name
}

// Get issues a GET request and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, url string, query, headers map[string]string) ([]byte, error) {
	do := func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(query).
			SetHeaders(headers).
			Get(url)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode())
		}
		return resp.Body(), nil
	}

	var (
		body interface{}
		err  error
	)
	if c.breaker != nil {
		body, err = c.breaker.Execute(do)
	} else {
		body, err = do()
	}
	if err != nil {
		c.logger.Debug("request failed", zap.String("url", url), zap.Error(err))
		return nil, core.WrapError(core.ErrFetchFailed, fmt.Errorf("%s: %w", c.name, err))
	}
	return body.([]byte), nil
}

// GetJSON issues a GET request and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, query map[string]string, out any) error {
	body, err := c.Get(ctx, url, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return core.WrapError(core.ErrFetchFailed, fmt.Errorf("%s: decoding response: %w", c.name, err))
	}
	return nil
}
