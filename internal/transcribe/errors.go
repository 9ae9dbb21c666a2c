package transcribe

import "errors"

// ErrAPIKeyMissing indicates no OpenAI API key was configured.
var ErrAPIKeyMissing = errors.New("transcribe: OPENAI_API_KEY not set")

// ErrRateLimit indicates the API rate limit was exceeded (temporary, retryable).
var ErrRateLimit = errors.New("transcribe: rate limit exceeded")

// ErrQuotaExceeded indicates the API quota was exceeded (billing issue, not retryable).
var ErrQuotaExceeded = errors.New("transcribe: quota exceeded")

// ErrTimeout indicates a request timed out.
var ErrTimeout = errors.New("transcribe: request timeout")

// ErrAuthFailed indicates authentication failed (invalid key).
var ErrAuthFailed = errors.New("transcribe: authentication failed")

// ErrBadRequest indicates the API rejected the request.
var ErrBadRequest = errors.New("transcribe: bad request")
