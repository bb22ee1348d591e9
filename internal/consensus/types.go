// Package consensus orchestrates the four-stage Generator/Refiner/
// Validator/Curator state machine against a configured model transport and
// authorization gateway, per §4.5. Grounded on runtime/pipeline/pipeline.go's
// execution-context/semaphore/shutdown/streaming-channel architecture,
// generalized from an open-ended middleware chain to exactly four fixed
// stages, and on runtime/pipeline/stage's typed-stage/channel idiom for how
// a stage reads input and streams output.
package consensus

import (
	"context"
	"time"

	"github.com/hivetechs-collective/Hive-sub013/internal/gateway"
	"github.com/hivetechs-collective/Hive-sub013/internal/modeltransport"
	"github.com/hivetechs-collective/Hive-sub013/runtime/types"
)

// StageName identifies one of the four fixed pipeline stages. Order is
// fixed: Generator, Refiner, Validator, Curator.
type StageName string

const (
	StageGenerator StageName = "Generator"
	StageRefiner   StageName = "Refiner"
	StageValidator StageName = "Validator"
	StageCurator   StageName = "Curator"
)

// stageOrder is the invariant stage sequence every Run follows.
var stageOrder = [4]StageName{StageGenerator, StageRefiner, StageValidator, StageCurator}

// Profile is a named selection policy of four model identifiers, one per
// stage, with per-stage temperature/max-token bounds (§3 "Profile").
type Profile struct {
	Name         string
	Models       [4]string
	Temperatures [4]float32 // zero entries fall back to defaultTemperatures
	MaxTokens    [4]int
}

// defaultTemperatures is the mild per-stage decrease §4.5 describes absent
// a profile override.
var defaultTemperatures = [4]float32{0.7, 0.6, 0.5, 0.4}

func (p Profile) temperatureFor(i int) float32 {
	if p.Temperatures[i] != 0 {
		return p.Temperatures[i]
	}
	return defaultTemperatures[i]
}

// Validate enforces the Profile invariant: exactly four non-empty models.
func (p Profile) Validate() error {
	for i, m := range p.Models {
		if m == "" {
			return &ProfileError{Stage: stageOrder[i], Detail: "no model configured"}
		}
	}
	return nil
}

// ProfileError reports a malformed Profile, surfaced before a Run starts.
type ProfileError struct {
	Stage  StageName
	Detail string
}

func (e *ProfileError) Error() string {
	return "consensus: invalid profile at stage " + string(e.Stage) + ": " + e.Detail
}

// StageContextRequest is what the pipeline asks the Verified Context
// Builder (C7) to assemble into a message list for one stage.
type StageContextRequest struct {
	Stage       StageName
	Query       string
	History     []types.Message
	PriorOutput string // previous stage's output; empty for Generator
	Instruction string // refinement/validator/curator instruction; empty for Generator

	// Verification carries the caller-supplied inputs C7 assembles around
	// the stage instruction (repository facts, AI-helper insights, memory,
	// semantic search, free-form repository context). Nil means "none
	// supplied"; the builder substitutes its warning block per §4.7 rule 1.
	Verification *VerificationInputs
}

// VerificationInputs is the caller-supplied subset of §4.7's assembly
// inputs — everything except the Stage itself and the temporal block,
// which C7 computes. A RunRequest carries one of these for its whole Run;
// the repository verifier and AI-helper executor that would produce it are
// out of scope (§1) here, so it is always supplied (or omitted) by the
// RunRequest's caller.
type VerificationInputs struct {
	RepositoryFacts   *RepositoryFacts
	AIHelperInsights  *AIHelperInsights
	Memory            string
	SemanticResults   []string
	RepositoryContext string
}

// RepositoryFacts are the external verifier's findings about the project
// being discussed (§4.7 input 1).
type RepositoryFacts struct {
	Name            string
	Version         string
	DependencyCount int
	ModuleCount     int
	Language        string
}

// AIHelperInsights are the AI-helper ecosystem's findings (§4.7 input 2).
type AIHelperInsights struct {
	Facts    []string
	Patterns []string
	Insights []string
	Guidance string
}

// ContextBuilder assembles the message list a stage sends to the model.
// Implemented by internal/contextbuilder (C7); the pipeline only consumes
// the interface, per the teacher's accept-interfaces convention.
type ContextBuilder interface {
	BuildStageContext(ctx context.Context, req StageContextRequest) ([]types.Message, error)
}

// AuthorizationClient is the subset of internal/gateway.Client the pipeline
// needs. Narrowed to an interface so tests can substitute a fake gateway
// without standing up an HTTP server.
type AuthorizationClient interface {
	RequestConversationAuthorization(ctx context.Context, question string) (gateway.Authorization, error)
	ReportConversationCompletion(ctx context.Context, conversationToken, conversationID, questionHash string) gateway.Verification
}

// ModelTransport is the subset of internal/modeltransport.Transport the
// pipeline needs.
type ModelTransport interface {
	StreamCompletion(ctx context.Context, req modeltransport.Request) <-chan modeltransport.Chunk
}

// Recorder persists a completed Run as a Conversation Record (§3). Grounded
// on internal/knowledge's Repository interface; the pipeline depends only
// on this narrow view of it.
type Recorder interface {
	Record(ctx context.Context, rec ConversationRecord) error
}

// AnswerCache is the subset of internal/cache.VersionedCache the pipeline
// needs to record the final answer under a versioned key (§2 data flow).
type AnswerCache interface {
	Store(ctx context.Context, key string, value []byte, level string, ttl time.Duration) error
}

// StageOutput is one stage's settled result, carried in a ConversationRecord.
type StageOutput struct {
	Stage   StageName
	Model   string
	Content string
	Cost    types.CostInfo
}

// ConversationRecord is the append-only persisted record of one successful
// Run (§3 "Conversation Record").
type ConversationRecord struct {
	ConversationID string
	QuestionHash   string // from gateway.Authorization.QuestionHash; never recomputed here
	Question       string
	Answer         string
	Stages         [4]StageOutput
	UserID         string
	CreatedAt      time.Time
}

// RunRequest starts one consensus Run.
type RunRequest struct {
	// ConversationID is used as-is if non-empty; otherwise a fresh id is
	// generated, per §4.5 step 1.
	ConversationID string
	Query          string
	History        []types.Message
	Profile        Profile

	// Verification is forwarded unchanged to every stage's
	// StageContextRequest (§4.7: "the builder does not cache across a
	// Run" — here it simply sees the same caller-supplied snapshot at
	// each stage since this pipeline has no mid-Run refresh mechanism).
	Verification *VerificationInputs
}

// Status is the terminal (or in-flight) state of a Run, per §4.5's state
// machine: Idle -> Authorizing -> Running{stage} -> Finalizing ->
// {Succeeded | Failed | Cancelled}.
type Status string

const (
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)
