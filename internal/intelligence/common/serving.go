package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ServingClient talks to the model-serving endpoint that hosts the optional
// biomedical token-classification model.
type ServingClient interface {
	Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error)
	Healthy(ctx context.Context) error
	Close() error
}

// PredictRequest carries the input payload for one inference call.
type PredictRequest struct {
	ModelName    string            `json:"model_name"`
	ModelVersion string            `json:"model_version,omitempty"`
	Inputs       json.RawMessage   `json:"inputs"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Validate checks that the request can be sent.
func (r *PredictRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidInput)
	}
	if r.ModelName == "" {
		return fmt.Errorf("%w: model_name is required", ErrInvalidInput)
	}
	if len(r.Inputs) == 0 {
		return fmt.Errorf("%w: inputs are required", ErrInvalidInput)
	}
	return nil
}

// PredictResponse carries the raw model outputs.
type PredictResponse struct {
	ModelName       string          `json:"model_name"`
	ModelVersion    string          `json:"model_version,omitempty"`
	Outputs         json.RawMessage `json:"outputs"`
	InferenceTimeMs int64           `json:"inference_time_ms,omitempty"`
}

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrServingUnavailable = errors.New("serving unavailable")
	ErrModelNotDeployed   = errors.New("model not deployed")
	ErrInferenceTimeout   = errors.New("inference timeout")
	ErrClientClosed       = errors.New("client closed")
)

// maxResponseBytes bounds how much of a serving response is read.
const maxResponseBytes = 8 << 20

// HTTPServingConfig configures NewHTTPServingClient.
type HTTPServingConfig struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

type httpServingClient struct {
	baseURL string
	client  *http.Client
	logger  Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewHTTPServingClient creates a ServingClient that POSTs JSON to
// {BaseURL}/v1/models/{model}:predict.
func NewHTTPServingClient(cfg HTTPServingConfig, logger Logger) (ServingClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	if logger == nil {
		logger = NewNoopLogger()
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &httpServingClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		logger:  logger,
		closed:  make(chan struct{}),
	}, nil
}

func (c *httpServingClient) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *httpServingClient) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s:predict", c.baseURL, req.ModelName)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrServingUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read predict response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrModelNotDeployed, req.ModelName)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrServingUnavailable, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("predict %s: unexpected status %d: %s", req.ModelName, resp.StatusCode, truncate(string(payload), 200))
	}

	var out PredictResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	if out.InferenceTimeMs == 0 {
		out.InferenceTimeMs = time.Since(start).Milliseconds()
	}
	c.logger.Debug("model prediction completed", "model", req.ModelName, "latency_ms", out.InferenceTimeMs)
	return &out, nil
}

func (c *httpServingClient) Healthy(ctx context.Context) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServingUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrServingUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *httpServingClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.client.CloseIdleConnections()
	})
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// MockServingClient is a ServingClient whose behaviour is supplied by tests.
type MockServingClient struct {
	PredictFunc func(ctx context.Context, req *PredictRequest) (*PredictResponse, error)
	HealthyFunc func(ctx context.Context) error
}

func NewMockServingClient() *MockServingClient {
	return &MockServingClient{}
}

func (m *MockServingClient) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, req)
	}
	return &PredictResponse{ModelName: req.ModelName, Outputs: json.RawMessage("[]")}, nil
}

func (m *MockServingClient) Healthy(ctx context.Context) error {
	if m.HealthyFunc != nil {
		return m.HealthyFunc(ctx)
	}
	return nil
}

func (m *MockServingClient) Close() error { return nil }
