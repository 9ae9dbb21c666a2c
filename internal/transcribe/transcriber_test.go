package transcribe

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockAudioClient implements audioClient for testing.
type mockAudioClient struct {
	mock.Mock
}

func (m *mockAudioClient) CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.AudioResponse), args.Error(1)
}

func apiError(status int, msg string) error {
	return &openai.APIError{HTTPStatusCode: status, Message: msg}
}

func fastTranscriber(client audioClient, opts ...Option) *OpenAITranscriber {
	opts = append([]Option{WithRetryDelays(time.Millisecond, 2*time.Millisecond)}, opts...)
	return newOpenAITranscriber(client, opts...)
}

func TestNewOpenAITranscriber(t *testing.T) {
	_, err := NewOpenAITranscriber("")
	assert.ErrorIs(t, err, ErrAPIKeyMissing)

	tr, err := NewOpenAITranscriber("sk-test", WithModel("gpt-4o-mini-transcribe"), WithMaxRetries(1))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini-transcribe", tr.model)
	assert.Equal(t, DefaultLanguage, tr.language)
	assert.Equal(t, 1, tr.maxRetries)
}

func TestTranscribe_Success(t *testing.T) {
	client := &mockAudioClient{}
	client.On("CreateTranscription", mock.Anything, mock.MatchedBy(func(req openai.AudioRequest) bool {
		return req.FilePath == "/tmp/rec.wav" && req.Model == openai.Whisper1 && req.Language == "en"
	})).Return(openai.AudioResponse{Text: "  I w-w-want to go.\n"}, nil).Once()

	text, err := fastTranscriber(client).Transcribe(context.Background(), "/tmp/rec.wav")
	require.NoError(t, err)
	assert.Equal(t, "I w-w-want to go.", text)
	client.AssertExpectations(t)
}

func TestTranscribe_RetriesTransientErrors(t *testing.T) {
	client := &mockAudioClient{}
	client.On("CreateTranscription", mock.Anything, mock.Anything).
		Return(openai.AudioResponse{}, apiError(http.StatusTooManyRequests, "slow down")).Once()
	client.On("CreateTranscription", mock.Anything, mock.Anything).
		Return(openai.AudioResponse{}, apiError(http.StatusBadGateway, "upstream")).Once()
	client.On("CreateTranscription", mock.Anything, mock.Anything).
		Return(openai.AudioResponse{Text: "hello"}, nil).Once()

	text, err := fastTranscriber(client).Transcribe(context.Background(), "a.wav")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	client.AssertNumberOfCalls(t, "CreateTranscription", 3)
}

func TestTranscribe_NonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "auth", err: apiError(http.StatusUnauthorized, "bad key"), want: ErrAuthFailed},
		{name: "quota", err: apiError(http.StatusTooManyRequests, "You exceeded your current quota"), want: ErrQuotaExceeded},
		{name: "bad request", err: apiError(http.StatusBadRequest, "unsupported file"), want: ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockAudioClient{}
			client.On("CreateTranscription", mock.Anything, mock.Anything).Return(openai.AudioResponse{}, tt.err)

			_, err := fastTranscriber(client).Transcribe(context.Background(), "a.wav")
			assert.ErrorIs(t, err, tt.want)
			client.AssertNumberOfCalls(t, "CreateTranscription", 1)
		})
	}
}

func TestTranscribe_MaxRetriesExceeded(t *testing.T) {
	client := &mockAudioClient{}
	client.On("CreateTranscription", mock.Anything, mock.Anything).
		Return(openai.AudioResponse{}, apiError(http.StatusServiceUnavailable, "down"))

	_, err := fastTranscriber(client, WithMaxRetries(2)).Transcribe(context.Background(), "a.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries (2) exceeded")
	client.AssertNumberOfCalls(t, "CreateTranscription", 3)
}

func TestTranscribe_ContextCancelledDuringBackoff(t *testing.T) {
	client := &mockAudioClient{}
	client.On("CreateTranscription", mock.Anything, mock.Anything).
		Return(openai.AudioResponse{}, apiError(http.StatusTooManyRequests, "slow down"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := newOpenAITranscriber(client, WithRetryDelays(time.Hour, time.Hour))
	_, err := tr.Transcribe(ctx, "a.wav")
	assert.ErrorIs(t, err, context.Canceled)
	client.AssertNumberOfCalls(t, "CreateTranscription", 1)
}

func TestClassifyError(t *testing.T) {
	assert.ErrorIs(t, classifyError(context.DeadlineExceeded), ErrTimeout)
	assert.ErrorIs(t, classifyError(apiError(http.StatusGatewayTimeout, "")), ErrTimeout)

	plain := errors.New("boom")
	assert.Equal(t, plain, classifyError(plain))
	assert.False(t, isRetryableError(plain))
}

func TestNop(t *testing.T) {
	text, err := Nop{}.Transcribe(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, text)
}
