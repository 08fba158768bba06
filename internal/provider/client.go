// Package provider is the single outbound HTTP path to the payment
// provider. Every call carries a bounded timeout and, when enabled, runs
// through a per-environment circuit breaker. Nothing here retries.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"monoova-gateway/internal/circuitbreaker"
	"monoova-gateway/internal/common/errors"
	commonhttp "monoova-gateway/internal/common/http"
	"monoova-gateway/internal/common/logging"
	"monoova-gateway/internal/metrics"
	"monoova-gateway/internal/models"
)

// maxResponseBytes bounds how much of a provider response is read
const maxResponseBytes = 1 << 20

// Authorizer produces the Authorization header for a call path
type Authorizer interface {
	HeaderForPath(ctx context.Context, path string, env models.Environment) (string, error)
}

// Config holds the provider client configuration
type Config struct {
	BaseURLs  map[models.Environment]string
	TokenPath string
	Timeout   time.Duration
	// Breakers is nil when circuit breaking is disabled.
	Breakers *circuitbreaker.Manager
}

// Response is a completed provider call
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// Client talks to the provider API
type Client struct {
	config     Config
	httpClient *http.Client
	auth       Authorizer
	logger     logging.Logger
}

// NewClient creates a provider client. httpClient may be nil.
func NewClient(config Config, httpClient *http.Client) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = commonhttp.NewHTTPClientWithTimeout(config.Timeout)
	}
	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "provider-client"}),
	}
}

// SetAuthorizer sets the header source used by Do. The resolver depends on
// the token manager, which depends on this client, so it is wired after construction.
func (c *Client) SetAuthorizer(auth Authorizer) {
	c.auth = auth
}

// BaseURL returns the configured base URL for env
func (c *Client) BaseURL(env models.Environment) (string, error) {
	base, ok := c.config.BaseURLs[env]
	if !ok || base == "" {
		return "", errors.ConfigError(fmt.Sprintf("no base URL configured for %s", env))
	}
	return strings.TrimRight(base, "/"), nil
}

// FetchRaw GETs path and returns the body bytes untouched
func (c *Client) FetchRaw(ctx context.Context, env models.Environment, path string) ([]byte, error) {
	resp, err := c.send(ctx, env, "key_material", http.MethodGet, path, nil, http.Header{
		"Accept": []string{"*/*"},
	})
	if err != nil {
		return nil, err
	}
	if !success(resp.StatusCode) {
		return nil, errors.FetchFailed(path, resp.StatusCode).WithContext("environment", env.String())
	}
	return resp.Body, nil
}

// PostToken requests a client-credentials token using basicHeader
func (c *Client) PostToken(ctx context.Context, env models.Environment, basicHeader string) ([]byte, error) {
	body := []byte(`{"grant_type":"client_credentials"}`)
	resp, err := c.send(ctx, env, "token", http.MethodPost, c.config.TokenPath, body, http.Header{
		"Authorization": []string{basicHeader},
		"Content-Type":  []string{"application/json"},
		"Accept":        []string{"application/json"},
	})
	if err != nil {
		return nil, err
	}
	if !success(resp.StatusCode) {
		return nil, errors.TokenFetchFailed(resp.StatusCode).WithContext("environment", env.String())
	}
	return resp.Body, nil
}

// Do sends a JSON call to path with the Authorization header chosen for that path.
// A non-2xx answer is returned together with an UPSTREAM_STATUS error.
func (c *Client) Do(ctx context.Context, env models.Environment, method, path string, payload interface{}) (*Response, error) {
	if c.auth == nil {
		return nil, errors.ConfigError("provider client has no authorizer")
	}

	header, err := c.auth.HeaderForPath(ctx, path, env)
	if err != nil {
		return nil, err
	}

	var body []byte
	if payload != nil {
		if raw, ok := payload.([]byte); ok {
			body = raw
		} else if body, err = json.Marshal(payload); err != nil {
			return nil, errors.ValidationError("request payload is not JSON encodable").WithContext("error", err.Error())
		}
	}

	headers := http.Header{
		"Authorization": []string{header},
		"Accept":        []string{"application/json"},
	}
	if body != nil {
		headers.Set("Content-Type", "application/json")
	}

	resp, err := c.send(ctx, env, "api", method, path, body, headers)
	if err != nil {
		return nil, err
	}
	if !success(resp.StatusCode) {
		return resp, errors.UpstreamStatus(method, path, resp.StatusCode).WithContext("environment", env.String())
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, env models.Environment, operation, method, path string, body []byte, headers http.Header) (*Response, error) {
	base, err := c.BaseURL(env)
	if err != nil {
		return nil, err
	}
	url := base + "/" + strings.TrimLeft(path, "/")

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var resp *Response
	call := func() error {
		var callErr error
		resp, callErr = c.execute(ctx, env, operation, method, url, body, headers)
		if callErr == nil && resp.StatusCode >= 500 {
			// Surface 5xx to the breaker; the caller still gets the response.
			return errors.UpstreamStatus(method, path, resp.StatusCode)
		}
		return callErr
	}

	if c.config.Breakers != nil {
		err = c.config.Breakers.GetOrCreate("monoova-"+env.String()).Execute(ctx, call)
		if err != nil && errors.HasCode(err, errors.CodeUpstreamStatus) && resp != nil {
			err = nil
		}
	} else {
		err = call()
		if errors.HasCode(err, errors.CodeUpstreamStatus) {
			err = nil
		}
	}
	if err != nil {
		var appErr *errors.AppError
		if !stderrors.As(err, &appErr) && commonhttp.IsTimeout(err) {
			return nil, errors.TimeoutError(operation+" request", err).WithContext("environment", env.String())
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) execute(ctx context.Context, env models.Environment, operation, method, url string, body []byte, headers http.Header) (*Response, error) {
	start := time.Now()
	defer metrics.ObserveUpstream(env.String(), operation, start)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.InternalError("failed to create request", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		if commonhttp.IsTimeout(err) {
			return nil, errors.TimeoutError(operation+" request", err).WithContext("environment", env.String())
		}
		return nil, errors.ConnectionError("provider request failed", err).WithContext("environment", env.String())
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		if commonhttp.IsTimeout(err) {
			return nil, errors.TimeoutError(operation+" response", err).WithContext("environment", env.String())
		}
		return nil, errors.ConnectionError("failed to read provider response", err)
	}

	duration := time.Since(start)
	c.logger.Debug("Provider call completed",
		logging.Field{Key: "environment", Value: env.String()},
		logging.Field{Key: "method", Value: method},
		logging.Field{Key: "url", Value: url},
		logging.Field{Key: "status", Value: httpResp.StatusCode},
		logging.Field{Key: "duration", Value: duration},
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		Duration:   duration,
	}, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}
