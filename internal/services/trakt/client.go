package trakt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/amaumene/trackarr/internal/config"
	"github.com/amaumene/trackarr/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL = "https://api.trakt.tv"
	apiVersion     = "2"
	maxRetries     = 3
)

// Client handles communication with Trakt API
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	tokenStore   TokenStore
	httpClient   *http.Client
	logger       *logrus.Logger
}

// NewClient creates a new Trakt API client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	tokenStore, err := NewFileTokenStore(cfg.TraktTokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	baseURL := cfg.TraktAPIURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL:      baseURL,
		clientID:     cfg.TraktClientID,
		clientSecret: cfg.TraktClientSecret,
		tokenStore:   tokenStore,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}, nil
}

// apiError is a non-2xx response
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.status, e.body)
}

// retryable reports whether a failed response is worth another attempt
func (e *apiError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

// response is a decoded reply plus the headers callers need for paging
type response struct {
	header http.Header
}

// doAuthedRequest refreshes the token when needed, then performs the request
func (c *Client) doAuthedRequest(ctx context.Context, method, path string, body, result interface{}) (*response, error) {
	if err := c.ensureValidToken(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure valid token: %w", err)
	}
	return c.doRequest(ctx, method, path, body, result)
}

// doRequest performs an HTTP request to Trakt API, retrying rate limits and
// server errors with exponential backoff
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) (*response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	fullURL := c.baseURL + path
	log := c.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    fullURL,
	})

	var resp *response
	operation := func() error {
		log.Debug("Making Trakt API request")

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("trakt-api-version", apiVersion)
		req.Header.Set("trakt-api-key", c.clientID)

		// Add authorization if we have a token
		if token, err := c.tokenStore.GetToken(); err == nil && token != nil {
			req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		}

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.ProviderRequests.WithLabelValues("trakt", "error").Inc()
			return fmt.Errorf("request failed: %w", err)
		}
		defer httpResp.Body.Close()
		metrics.ProviderRequests.WithLabelValues("trakt", strconv.Itoa(httpResp.StatusCode)).Inc()

		if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
			bodyBytes, _ := io.ReadAll(httpResp.Body)
			apiErr := &apiError{status: httpResp.StatusCode, body: string(bodyBytes)}
			if apiErr.retryable() {
				log.WithField("status", apiErr.status).Warn("Trakt API request failed, retrying")
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		if result != nil {
			if err := json.NewDecoder(httpResp.Body).Decode(result); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
			}
		}
		resp = &response{header: httpResp.Header}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return resp, nil
}

func isStatus(err error, status int) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.status == status
}

// ensureValidToken checks if the current token is valid and refreshes if needed
func (c *Client) ensureValidToken(ctx context.Context) error {
	token, err := c.tokenStore.GetToken()
	if err != nil {
		c.logger.Debug("No valid token found, authentication required")
		return nil
	}

	// Check if token expires within 24 hours
	if time.Until(token.ExpiresAt) < 24*time.Hour {
		c.logger.Info("Token expires soon, refreshing...")
		return c.RefreshToken(ctx)
	}

	return nil
}

// IsAuthenticated reports whether a token has been stored
func (c *Client) IsAuthenticated() bool {
	token, err := c.tokenStore.GetToken()
	return err == nil && token != nil && token.AccessToken != ""
}
