// Package textgen asks an Ollama-compatible text generation server to draft a
// timetable as a pipe table. Its output is untrusted and always validated by the caller.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrUnavailable indicates the server could not be reached.
	ErrUnavailable = errors.New("textgen: server unavailable")
	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("textgen: request timed out")
	// ErrRetryExhausted wraps the last failure once every attempt failed.
	ErrRetryExhausted = errors.New("textgen: retry attempts exhausted")
	// ErrEmptyResponse is returned when the model answered with blank text.
	ErrEmptyResponse = errors.New("textgen: empty response")
)

// Client produces free text for a prompt.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const maxRetryDelay = 2 * time.Second

// Config configures the HTTP client. RetryDelay is the wait before the first retry;
// it doubles per attempt up to two seconds.
type Config struct {
	URL        string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// HTTPClient talks to POST {URL}/api/generate with streaming disabled.
type HTTPClient struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewHTTPClient constructs an HTTPClient.
func NewHTTPClient(cfg Config, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &HTTPClient{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			},
		},
		logger: logger,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// Generate sends prompt and returns the raw response text.
func (c *HTTPClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body := generateRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{Temperature: 0.2},
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 && !c.wait(ctx, attempt) {
			break
		}
		resp, err := c.do(ctx, body)
		if err == nil {
			text := strings.TrimSpace(resp.Response)
			if text == "" {
				return "", ErrEmptyResponse
			}
			c.logger.Debug("textgen completed",
				zap.String("model", resp.Model),
				zap.Int("attempt", attempt+1),
				zap.Duration("latency", time.Since(start)))
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("textgen attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	if ctx.Err() != nil {
		return "", ErrTimeout
	}
	var opErr *net.OpError
	if errors.As(lastErr, &opErr) {
		return "", ErrUnavailable
	}
	return "", fmt.Errorf("%w: %v", ErrRetryExhausted, lastErr)
}

// wait sleeps before retry number attempt and reports false if ctx ended first.
func (c *HTTPClient) wait(ctx context.Context, attempt int) bool {
	delay := c.cfg.RetryDelay
	for i := 1; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *HTTPClient) do(ctx context.Context, body generateRequest) (*generateResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("textgen returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}
