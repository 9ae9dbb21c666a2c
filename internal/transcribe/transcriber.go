// Package transcribe converts recorded speech to text.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultLanguage is the ISO 639-1 code sent with every request.
const DefaultLanguage = "en"

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// Transcriber transcribes an audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Nop is a Transcriber that always returns an empty transcript.
type Nop struct{}

// Transcribe implements Transcriber.
func (Nop) Transcribe(context.Context, string) (string, error) {
	return "", nil
}

// audioClient is the subset of *openai.Client used for transcription.
type audioClient interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Transcriber = (*OpenAITranscriber)(nil)
	_ Transcriber = Nop{}
	_ audioClient = (*openai.Client)(nil)
)

// OpenAITranscriber transcribes audio with the OpenAI transcription API.
// Transient failures are retried with exponential backoff.
type OpenAITranscriber struct {
	client     audioClient
	model      string
	language   string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Option configures an OpenAITranscriber.
type Option func(*OpenAITranscriber)

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(t *OpenAITranscriber) {
		if model != "" {
			t.model = model
		}
	}
}

// WithLanguage sets the spoken language hint.
func WithLanguage(code string) Option {
	return func(t *OpenAITranscriber) {
		t.language = code
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(t *OpenAITranscriber) {
		if n >= 0 {
			t.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, max time.Duration) Option {
	return func(t *OpenAITranscriber) {
		if base > 0 {
			t.baseDelay = base
		}
		if max > 0 {
			t.maxDelay = max
		}
	}
}

// NewOpenAITranscriber creates an OpenAITranscriber authenticated with apiKey.
func NewOpenAITranscriber(apiKey string, opts ...Option) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}
	return newOpenAITranscriber(openai.NewClient(apiKey), opts...), nil
}

func newOpenAITranscriber(client audioClient, opts ...Option) *OpenAITranscriber {
	t := &OpenAITranscriber{
		client:     client,
		model:      openai.Whisper1,
		language:   DefaultLanguage,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe implements Transcriber. The returned text is trimmed.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	req := openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatJSON,
		Language: t.language,
	}

	var lastErr error
	delay := t.baseDelay
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
			delay = min(delay*2, t.maxDelay)
		}

		resp, err := t.client.CreateTranscription(ctx, req)
		if err == nil {
			return strings.TrimSpace(resp.Text), nil
		}

		lastErr = classifyError(err)
		if !isRetryableError(lastErr) {
			return "", lastErr
		}
	}

	return "", fmt.Errorf("transcribe: max retries (%d) exceeded: %w", t.maxRetries, lastErr)
}

// classifyError maps API errors to package sentinels.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			if strings.Contains(apiErr.Message, "quota") || strings.Contains(apiErr.Message, "billing") {
				return fmt.Errorf("%s: %w", apiErr.Message, ErrQuotaExceeded)
			}
			return fmt.Errorf("%s: %w", apiErr.Message, ErrRateLimit)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrAuthFailed)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrTimeout)
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrBadRequest)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", ErrTimeout)
	}
	return err
}

// isRetryableError reports whether err is transient.
func isRetryableError(err error) bool {
	if errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable:
			return true
		}
	}
	return false
}
