// Package modeltransport executes streaming completions against a single
// configured OpenAI-chat-compatible model gateway (§4.4, §6 "Model
// endpoint"). Unlike a multi-provider registry, the spec treats the model
// endpoint as one opaque base_url + bearer-key completion interface — every
// model name is just a string routed through the same HTTP client.
//
// Grounded on runtime/providers: the OpenAI-compatible request/response
// shape from the teacher's (now-retired) openai.go, SSE scanning from
// sse.go, and pooled-transport/logging conventions from base_provider.go.
package modeltransport

import (
	"time"

	"github.com/hivetechs-collective/Hive-sub013/runtime/types"
)

// ModelDescriptor is one entry returned by ListModels — the model identifier
// plus the price metadata used for cost accounting.
type ModelDescriptor struct {
	ID              string
	PromptRatePer1M float64 // USD per 1M prompt tokens; 0 means unpriced
	CompletionRate  float64 // USD per 1M completion tokens; 0 means unpriced
	HasPricing      bool
}

// Chunk is one element of the lazy sequence returned by StreamCompletion,
// per §4.4: a text delta, an optional stage hint carried through for the
// caller's bookkeeping, a cumulative completion-token count when
// inferrable, and a final marker with usage.
type Chunk struct {
	Delta                string
	Stage                string
	CumulativeCompletion int
	Final                bool
	Usage                *Usage
	Err                  error
}

// Usage is the final accounting for one completion, per §4.4's cost
// formula: prompt_tokens * prompt_rate + completion_tokens * completion_rate.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	Cost             types.CostInfo
}

// Request is one completion request. Messages are provided pre-assembled
// (by the Verified Context Builder / consensus pipeline); this package does
// no prompt construction of its own.
type Request struct {
	Model       string
	Stage       string
	Messages    []types.Message
	Temperature float32
	MaxTokens   int
}

// ErrorKind is the §4.4 failure taxonomy. Auth and BadRequest are never
// retried; RateLimited and Timeout and Transport are retried up to
// max_retries with linear backoff, unless a token has already streamed.
type ErrorKind string

const (
	ErrorKindAuth        ErrorKind = "auth"
	ErrorKindRateLimited ErrorKind = "rate_limited"
	ErrorKindTimeout     ErrorKind = "timeout"
	ErrorKindTransport   ErrorKind = "transport"
	ErrorKindBadRequest  ErrorKind = "bad_request"
	ErrorKindUnknown     ErrorKind = "unknown"
)

// ModelError is a per-stage completion failure, classified by ErrorKind so
// the pipeline can decide whether to mark the stage failed outright or let
// the transport's own retry loop have already exhausted its attempts.
type ModelError struct {
	Kind   ErrorKind
	Detail string
	Cause  error
}

func (e *ModelError) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Detail + ": " + e.Cause.Error()
	}
	return string(e.Kind) + ": " + e.Detail
}

func (e *ModelError) Unwrap() error { return e.Cause }

// retryable reports whether this error kind may be retried by the transport.
func (k ErrorKind) retryable() bool {
	switch k {
	case ErrorKindRateLimited, ErrorKindTimeout, ErrorKindTransport, ErrorKindUnknown:
		return true
	default:
		return false
	}
}

// Config configures a Transport instance.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
	MaxRetries     int
	RetryDelayMs   int
	Models         []ModelDescriptor

	// RateLimitPerSecond caps outbound completion requests across all four
	// stages sharing this Transport. 0 disables client-side rate limiting
	// (the gateway's own 429s still drive the retry/backoff policy above).
	RateLimitPerSecond float64
	RateLimitBurst     int
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) retryDelay() time.Duration {
	if c.RetryDelayMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

func (c Config) maxRetries() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}
