package modeltransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hivetechs-collective/Hive-sub013/runtime/logger"
	"github.com/hivetechs-collective/Hive-sub013/runtime/providers"
	"github.com/hivetechs-collective/Hive-sub013/runtime/tokenizer"
	"github.com/hivetechs-collective/Hive-sub013/runtime/types"
)

// Transport executes streaming completions against the configured model
// gateway. One Transport instance is shared across all four pipeline
// stages; it holds no per-call state.
type Transport struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter // nil when RateLimitPerSecond is unset
}

// New builds a Transport. The HTTP client uses the teacher's pooled
// transport (connection reuse across the many per-stage calls a single
// consensus run makes) rather than a bare http.Client.
func New(cfg Config) *Transport {
	t := &Transport{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.timeout(),
			Transport: providers.NewPooledTransport(),
		},
	}
	if cfg.RateLimitPerSecond > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), burst)
	}
	return t
}

// ListModels returns the configured model descriptors, per §4.4's
// list_models() operation.
func (t *Transport) ListModels() []ModelDescriptor {
	return t.cfg.Models
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type streamDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// StreamCompletion executes one streaming completion, per §4.4. The
// returned channel is a lazy, finite, non-restartable sequence of Chunks
// terminated by exactly one Final chunk (success or error). Retries happen
// internally, before the first token is forwarded — once a token has been
// emitted to the channel, the spec forbids retrying, to preserve streaming
// determinism.
func (t *Transport) StreamCompletion(ctx context.Context, req Request) <-chan Chunk {
	out := make(chan Chunk, 16)
	go t.run(ctx, req, out)
	return out
}

func (t *Transport) run(ctx context.Context, req Request, out chan<- Chunk) {
	defer close(out)

	body := chatRequest{
		Model:       req.Model,
		Messages:    toChatMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		out <- errorChunk(req.Stage, &ModelError{Kind: ErrorKindBadRequest, Detail: "failed to encode request", Cause: err})
		return
	}

	counter := tokenizer.NewTokenCounterForModel(req.Model)
	var lastErr *ModelError
	delay := t.cfg.retryDelay()

	for attempt := 0; attempt <= t.cfg.maxRetries(); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				out <- errorChunk(req.Stage, &ModelError{Kind: ErrorKindTimeout, Detail: "context cancelled during retry", Cause: ctx.Err()})
				return
			case <-time.After(delay):
			}
			delay += t.cfg.retryDelay()
			logger.Warn("modeltransport: retrying completion", "stage", req.Stage, "attempt", attempt, "model", req.Model)
		}

		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				out <- errorChunk(req.Stage, &ModelError{Kind: ErrorKindTimeout, Detail: "rate limit wait cancelled", Cause: err})
				return
			}
		}

		streamed, modelErr := t.attempt(ctx, req, payload, counter, out)
		if modelErr == nil {
			return
		}
		lastErr = modelErr
		if streamed || !modelErr.Kind.retryable() {
			break
		}
	}

	out <- errorChunk(req.Stage, lastErr)
}

// attempt performs one HTTP round trip and forwards chunks as they arrive.
// It returns streamed=true if any token was already emitted to out, which
// forbids the caller from retrying even on a mid-stream failure.
func (t *Transport) attempt(ctx context.Context, req Request, payload []byte, counter tokenizer.TokenCounter, out chan<- Chunk) (streamed bool, modelErr *ModelError) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return false, &ModelError{Kind: ErrorKindTransport, Detail: "failed to build request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, &ModelError{Kind: ErrorKindTimeout, Detail: "request timed out", Cause: err}
		}
		return false, &ModelError{Kind: ErrorKindTransport, Detail: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, classifyStatus(resp.StatusCode, resp.Body)
	}

	return t.consumeStream(req, resp.Body, counter, out)
}

func (t *Transport) consumeStream(req Request, body io.Reader, counter tokenizer.TokenCounter, out chan<- Chunk) (streamed bool, modelErr *ModelError) {
	scanner := providers.NewSSEScanner(body)
	var heuristicCompletion, promptTokens, completionTokens int
	var haveUsage bool

	for scanner.Scan() {
		data := scanner.Data()
		if data == "[DONE]" {
			break
		}

		var delta streamDelta
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			continue
		}

		if delta.Usage != nil {
			promptTokens = delta.Usage.PromptTokens
			completionTokens = delta.Usage.CompletionTokens
			haveUsage = true
		}

		if len(delta.Choices) == 0 {
			continue
		}
		choice := delta.Choices[0]

		if text := choice.Delta.Content; text != "" {
			heuristicCompletion += counter.CountTokens(text)
			cumulative := heuristicCompletion
			if haveUsage {
				cumulative = completionTokens
			}
			out <- Chunk{Delta: text, Stage: req.Stage, CumulativeCompletion: cumulative}
			streamed = true
		}

		if choice.FinishReason != nil {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return streamed, &ModelError{Kind: ErrorKindTransport, Detail: "stream read failed", Cause: err}
	}

	// Final usage trusts the server's reported counts when present; the
	// per-chunk heuristic estimate only covers progress display when the
	// gateway never sends a usage object (§4.4 "when inferrable").
	if !haveUsage {
		completionTokens = heuristicCompletion
	}
	if promptTokens == 0 {
		promptTokens = counter.CountMultiple(messageTexts(req.Messages))
	}

	out <- Chunk{
		Stage: req.Stage,
		Final: true,
		Usage: &Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			Cost:             calculateCost(req.Model, promptTokens, completionTokens, t.cfg.Models),
		},
	}
	return streamed, nil
}

func classifyStatus(status int, body io.Reader) *ModelError {
	raw, _ := io.ReadAll(body)
	detail := fmt.Sprintf("status %d: %s", status, string(raw))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ModelError{Kind: ErrorKindAuth, Detail: detail}
	case status == http.StatusTooManyRequests:
		return &ModelError{Kind: ErrorKindRateLimited, Detail: detail}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &ModelError{Kind: ErrorKindTimeout, Detail: detail}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &ModelError{Kind: ErrorKindBadRequest, Detail: detail}
	case status >= 500:
		return &ModelError{Kind: ErrorKindTransport, Detail: detail}
	default:
		return &ModelError{Kind: ErrorKindUnknown, Detail: detail}
	}
}

func errorChunk(stage string, err *ModelError) Chunk {
	return Chunk{Stage: stage, Final: true, Err: err}
}

func toChatMessages(messages []types.Message) []chatMessage {
	out := make([]chatMessage, len(messages))
	for i, m := range messages {
		out[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func messageTexts(messages []types.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Content
	}
	return out
}
