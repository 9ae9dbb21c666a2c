package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FreddySam09/verbofix-backend/internal/features"
)

// Static errors for the model-serving client.
var (
	// ErrServingURLRequired is returned when the serving base URL is not provided.
	ErrServingURLRequired = errors.New("classify: serving URL is required")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("classify: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("classify: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("classify: request failed")
	// ErrMalformedPredictions is returned when the response cannot be read as one score per chunk.
	ErrMalformedPredictions = errors.New("classify: malformed predictions")
)

// ServingModel scores feature batches against a TensorFlow Serving REST
// endpoint hosting the Keras stammer model.
type ServingModel struct {
	baseURL     string
	modelName   string
	httpClient  *http.Client
	batchSize   int
	maxRetries  int
	baseBackoff time.Duration
}

// ServingOption is a function that configures a ServingModel.
type ServingOption func(*ServingModel)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ServingOption {
	return func(m *ServingModel) {
		m.httpClient = c
	}
}

// WithModelName sets the served model name.
func WithModelName(name string) ServingOption {
	return func(m *ServingModel) {
		if name != "" {
			m.modelName = name
		}
	}
}

// WithBatchSize sets how many chunks are sent per request.
func WithBatchSize(n int) ServingOption {
	return func(m *ServingModel) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ServingOption {
	return func(m *ServingModel) {
		m.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ServingOption {
	return func(m *ServingModel) {
		m.baseBackoff = d
	}
}

// NewServingModel creates a ServingModel for the server at baseURL.
func NewServingModel(baseURL string, opts ...ServingOption) (*ServingModel, error) {
	if baseURL == "" {
		return nil, ErrServingURLRequired
	}

	m := &ServingModel{
		baseURL:     strings.TrimRight(baseURL, "/"),
		modelName:   "stammer",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		batchSize:   64,
		maxRetries:  3,
		baseBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type predictRequest struct {
	Instances []features.Vector `json:"instances"`
}

type predictResponse struct {
	Predictions json.RawMessage `json:"predictions"`
	Error       string          `json:"error,omitempty"`
}

// Score implements Model.Score. Vectors are sent in batches; the response of
// each batch is flattened and must contain exactly one value per vector.
func (m *ServingModel) Score(ctx context.Context, vectors []features.Vector) ([]float64, error) {
	url := fmt.Sprintf("%s/v1/models/%s:predict", m.baseURL, m.modelName)
	out := make([]float64, 0, len(vectors))

	for start := 0; start < len(vectors); start += m.batchSize {
		end := min(start+m.batchSize, len(vectors))

		body, err := json.Marshal(predictRequest{Instances: vectors[start:end]})
		if err != nil {
			return nil, fmt.Errorf("classify: marshal request: %w", err)
		}

		var resp predictResponse
		if err := m.doRequestWithRetry(ctx, url, body, &resp); err != nil {
			return nil, err
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error)
		}

		scores, err := flattenPredictions(resp.Predictions)
		if err != nil {
			return nil, err
		}
		if len(scores) != end-start {
			return nil, fmt.Errorf("%w: got %d values for %d instances", ErrMalformedPredictions, len(scores), end-start)
		}
		out = append(out, scores...)
	}

	return out, nil
}

// flattenPredictions reads a nested JSON array of numbers in row-major order.
func flattenPredictions(raw json.RawMessage) ([]float64, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPredictions, err)
	}

	var out []float64
	var walk func(any) error
	walk = func(x any) error {
		switch t := x.(type) {
		case float64:
			out = append(out, t)
		case []any:
			for _, e := range t {
				if err := walk(e); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("%w: unexpected %T", ErrMalformedPredictions, x)
		}
		return nil
	}
	if err := walk(v); err != nil {
		return nil, err
	}
	return out, nil
}

// doRequestWithRetry performs a POST with exponential backoff retry.
func (m *ServingModel) doRequestWithRetry(ctx context.Context, url string, body []byte, result any) error {
	var lastErr error
	backoff := m.baseBackoff

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("classify: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := m.doRequest(ctx, url, body, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("classify: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (m *ServingModel) doRequest(ctx context.Context, url string, body []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("classify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("classify: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("classify: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("classify: unmarshal response: %w", err)
	}
	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

var _ Model = (*ServingModel)(nil)
