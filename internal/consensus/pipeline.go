package consensus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/hivetechs-collective/Hive-sub013/internal/gateway"
	"github.com/hivetechs-collective/Hive-sub013/internal/modeltransport"
	"github.com/hivetechs-collective/Hive-sub013/runtime/events"
	"github.com/hivetechs-collective/Hive-sub013/runtime/logger"
	"github.com/hivetechs-collective/Hive-sub013/runtime/types"
)

// defaultMaxConcurrentRuns mirrors the teacher's DefaultPipelineRuntimeConfig
// concurrency ceiling, scaled down since a Run holds four sequential model
// calls open rather than one.
const defaultMaxConcurrentRuns = 20

// tracer emits one span per Run and one child span per stage. With no
// TracerProvider registered globally, span creation is a no-op — the same
// nil-provider fallback runtime/telemetry.Tracer uses.
var tracer = otel.Tracer("github.com/hivetechs-collective/Hive-sub013/internal/consensus")

// Config configures a Pipeline. Bus and Cache and Recorder are optional —
// a nil Bus disables internal observability events, a nil Cache skips
// answer caching, a nil Recorder skips Conversation Record persistence.
type Config struct {
	Gateway           AuthorizationClient
	Transport         ModelTransport
	ContextBuilder    ContextBuilder
	Bus               *events.EventBus
	Cache             AnswerCache
	Recorder          Recorder
	MaxConcurrentRuns int
}

// Pipeline orchestrates Runs of the four-stage consensus state machine.
// Grounded on runtime/pipeline.Pipeline: a semaphore caps concurrent
// executions, each Run gets a fresh internal execution context, and output
// is a channel closed when the Run completes.
type Pipeline struct {
	gateway        AuthorizationClient
	transport      ModelTransport
	contextBuilder ContextBuilder
	bus            *events.EventBus
	cache          AnswerCache
	recorder       Recorder
	sem            *semaphore.Weighted
}

// New builds a Pipeline from Config.
func New(cfg Config) *Pipeline {
	max := cfg.MaxConcurrentRuns
	if max <= 0 {
		max = defaultMaxConcurrentRuns
	}
	return &Pipeline{
		gateway:        cfg.Gateway,
		transport:      cfg.Transport,
		contextBuilder: cfg.ContextBuilder,
		bus:            cfg.Bus,
		cache:          cfg.Cache,
		recorder:       cfg.Recorder,
		sem:            semaphore.NewWeighted(int64(max)),
	}
}

// ErrAuthorizationDenied is returned by Run (via an Error event, not a Go
// error) when the gateway denies pre-conversation authorization. Exported
// so callers can classify the terminal Error event's Detail.
var ErrAuthorizationDenied = errors.New("authorization denied")

// Run executes one consensus Run and returns a channel of Events. The
// channel is closed when the Run reaches a terminal state. Cancelling ctx
// is observed between chunks (§4.5 "Cancellation") — the in-flight model
// stream is not forcibly torn down mid-token, but no further stage or
// completion frames are emitted once cancellation is noticed.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (<-chan Event, error) {
	if err := req.Profile.Validate(); err != nil {
		return nil, err
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("consensus: failed to acquire run slot: %w", err)
	}

	out := make(chan Event, 32)
	go func() {
		defer p.sem.Release(1)
		defer close(out)
		p.run(ctx, req, out)
	}()
	return out, nil
}

func (p *Pipeline) run(ctx context.Context, req RunRequest, out chan<- Event) {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	runID := uuid.NewString()
	emitter := events.NewEmitter(p.bus, runID, "", conversationID)
	start := time.Now()

	ctx, span := tracer.Start(ctx, "consensus.Run", trace.WithAttributes(
		attribute.String("consensus.conversation_id", conversationID),
		attribute.String("consensus.run_id", runID),
		attribute.String("consensus.profile", req.Profile.Name),
	))
	defer span.End()

	auth, err := p.gateway.RequestConversationAuthorization(ctx, req.Query)
	if err != nil {
		detail := err.Error()
		if gateway.IsUsageLimitExceeded(err) {
			detail = gateway.UsageLimitMessage(err)
		}
		out <- Event{Kind: EventError, Detail: detail}
		emitter.PipelineFailed(err, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, detail)
		return
	}

	out <- Event{Kind: EventProfileLoaded, ProfileName: req.Profile.Name, Models: req.Profile.Models}
	emitter.PipelineStarted(4)

	var (
		priorOutput string
		stages      [4]StageOutput
		totalCost   types.CostInfo
	)

	for i, stage := range stageOrder {
		select {
		case <-ctx.Done():
			return // Cancelled: no further frames, no post-conversation call.
		default:
		}

		if auth.Expired() {
			reauth, rerr := p.gateway.RequestConversationAuthorization(ctx, req.Query)
			if rerr != nil {
				err := gateway.TokenExpired()
				out <- Event{Kind: EventError, Stage: stage, Detail: err.Error()}
				emitter.PipelineFailed(err, time.Since(start))
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return
			}
			auth = reauth
		}

		model := req.Profile.Models[i]
		messages, err := p.contextBuilder.BuildStageContext(ctx, StageContextRequest{
			Stage:        stage,
			Query:        req.Query,
			History:      req.History,
			PriorOutput:  priorOutput,
			Instruction:  instructionFor(stage),
			Verification: req.Verification,
		})
		if err != nil {
			out <- Event{Kind: EventError, Stage: stage, Detail: err.Error()}
			emitter.PipelineFailed(err, time.Since(start))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}

		out <- Event{Kind: EventStageStarted, Stage: stage, Model: model}
		emitter.MiddlewareStarted(string(stage), i)
		stageStart := time.Now()

		content, cost, err := p.runStage(ctx, stage, model, req.Profile.temperatureFor(i), req.Profile.MaxTokens[i], messages, out)
		if err != nil {
			if ctx.Err() != nil {
				return // cancelled mid-stream; stream-level error is incidental
			}
			out <- Event{Kind: EventError, Stage: stage, Detail: err.Error()}
			emitter.MiddlewareFailed(string(stage), i, err, time.Since(stageStart))
			emitter.PipelineFailed(err, time.Since(start))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		if ctx.Err() != nil {
			return
		}
		emitter.MiddlewareCompleted(string(stage), i, time.Since(stageStart))

		stages[i] = StageOutput{Stage: stage, Model: model, Content: content, Cost: cost}
		totalCost.Add(&cost)
		out <- Event{
			Kind:   EventStageCompleted,
			Stage:  stage,
			Model:  model,
			Tokens: cost.InputTokens + cost.OutputTokens,
			Cost:   cost,
		}
		priorOutput = content
	}

	finalAnswer := priorOutput
	if auth.Expired() {
		if reauth, rerr := p.gateway.RequestConversationAuthorization(ctx, req.Query); rerr == nil {
			auth = reauth
		} else {
			logger.Warn("consensus: token expired before post-conversation report, re-authorization failed", "conversation_id", conversationID, "error", rerr)
		}
	}
	verification := p.gateway.ReportConversationCompletion(ctx, auth.ConversationToken, conversationID, auth.QuestionHash)
	if !verification.Verified {
		logger.Warn("consensus: post-conversation verification did not succeed", "conversation_id", conversationID)
	}

	totalTokens := totalCost.InputTokens + totalCost.OutputTokens
	out <- Event{
		Kind:        EventConsensusComplete,
		Result:      finalAnswer,
		TotalTokens: totalTokens,
		TotalCost:   totalCost.TotalCostUSD,
	}
	emitter.PipelineCompleted(time.Since(start), totalCost.TotalCostUSD, totalCost.InputTokens, totalCost.OutputTokens, 4)

	if p.cache != nil {
		key := answerCacheKey(conversationID, auth.QuestionHash)
		if err := p.cache.Store(ctx, key, []byte(finalAnswer), "hot", 0); err != nil {
			logger.Warn("consensus: failed to cache final answer", "error", err)
		}
	}
	if p.recorder != nil {
		rec := ConversationRecord{
			ConversationID: conversationID,
			QuestionHash:   auth.QuestionHash,
			Question:       req.Query,
			Answer:         finalAnswer,
			Stages:         stages,
			UserID:         auth.UserID,
			CreatedAt:      time.Now(),
		}
		if err := p.recorder.Record(ctx, rec); err != nil {
			logger.Warn("consensus: failed to persist conversation record", "error", err)
		}
	}
}

// runStage drives one model stream to completion, forwarding StreamChunk
// and StageProgress events as it goes. The transport (C4) already retries
// transient failures internally per §4.4's policy (linear backoff, no retry
// once a token has streamed); runStage does not add a second retry layer —
// the Final chunk it receives already reflects that policy's outcome.
func (p *Pipeline) runStage(
	ctx context.Context,
	stage StageName,
	model string,
	temperature float32,
	maxTokens int,
	messages []types.Message,
	out chan<- Event,
) (content string, cost types.CostInfo, err error) {
	ctx, span := tracer.Start(ctx, "consensus.stage."+string(stage), trace.WithAttributes(
		attribute.String("consensus.model", model),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var sb strings.Builder
	lastPercent := -1

	chunks := p.transport.StreamCompletion(ctx, modeltransport.Request{
		Model:       model,
		Stage:       string(stage),
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})

	for chunk := range chunks {
		select {
		case <-ctx.Done():
			return sb.String(), cost, ctx.Err()
		default:
		}

		if chunk.Delta != "" {
			sb.WriteString(chunk.Delta)
			out <- Event{Kind: EventStreamChunk, Stage: stage, Chunk: chunk.Delta}
		}

		if maxTokens > 0 && chunk.CumulativeCompletion > 0 {
			pct := clamp01(float64(chunk.CumulativeCompletion) / float64(maxTokens))
			percent := int(pct * 100)
			if percent != lastPercent {
				lastPercent = percent
				out <- Event{Kind: EventStageProgress, Stage: stage, Percentage: pct, Tokens: chunk.CumulativeCompletion}
			}
		}

		if chunk.Final {
			if chunk.Err != nil {
				return sb.String(), cost, chunk.Err
			}
			if chunk.Usage != nil {
				cost = chunk.Usage.Cost
			}
		}
	}

	return sb.String(), cost, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// answerCacheKey derives the versioned-cache key for a Run's final answer,
// per §3's "Cache Entry" key derivation (tool_or_stage_name, normalized
// input) — here the "tool" is the consensus answer itself, keyed by
// conversation and question hash so repeated identical questions within a
// conversation share a cache entry.
func answerCacheKey(conversationID, questionHash string) string {
	return "consensus_answer:" + conversationID + ":" + questionHash
}
