// Package contextbuilder implements the Verified Context Builder (§4.7):
// deterministic assembly of per-stage context from heterogeneous,
// caller-supplied sources, guarding against downstream stages contradicting
// verified facts. Grounded on
// original_source/src/consensus/verified_context_builder.rs's
// build_verified_stage_context assembly order and
// original_source/src/consensus/temporal.rs's business/market-hours
// calendar.
package contextbuilder

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hivetechs-collective/Hive-sub013/internal/consensus"
	"github.com/hivetechs-collective/Hive-sub013/runtime/types"
)

const noFactsWarning = "WARNING: no repository verification was performed for this Run. " +
	"Exercise extreme caution with any repository-specific claims."

// Builder assembles stage context. The zero value is ready to use (UTC,
// no repository verifier — every stage gets the warning block).
type Builder struct {
	// Location is used for the temporal block's business/market-hours
	// calculation. Defaults to UTC.
	Location *time.Location
}

// New returns a Builder using loc for temporal calculations, or UTC if loc
// is nil.
func New(loc *time.Location) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{Location: loc}
}

// BuildStageContext implements consensus.ContextBuilder.
func (b *Builder) BuildStageContext(ctx context.Context, req consensus.StageContextRequest) ([]types.Message, error) {
	var blocks []string

	// 1. Repository facts (mandatory position: first, or a warning).
	blocks = append(blocks, b.repositoryFactsBlock(req))

	// 2. AI helper insights.
	if v := req.Verification; v != nil && v.AIHelperInsights != nil {
		if block := formatAIHelperInsights(*v.AIHelperInsights); block != "" {
			blocks = append(blocks, "## AI HELPER INSIGHTS\n"+block)
		}
	}

	// 3. Memory context.
	if v := req.Verification; v != nil && v.Memory != "" {
		blocks = append(blocks, "## MEMORY CONTEXT\n"+v.Memory)
	}

	// 4. Semantic search results.
	if v := req.Verification; v != nil && len(v.SemanticResults) > 0 {
		blocks = append(blocks, "## SEMANTIC SEARCH RESULTS\n"+strings.Join(v.SemanticResults, "\n"))
	}

	// 5. Temporal context.
	temporal := buildTemporalContext(time.Now(), b.location())
	blocks = append(blocks, "## TEMPORAL CONTEXT\n"+temporal.format())

	// 6. Repository free-form context.
	if v := req.Verification; v != nil && v.RepositoryContext != "" {
		blocks = append(blocks, "## REPOSITORY CONTEXT\n"+v.RepositoryContext)
	}

	// 7. Stage-specific guidance.
	if guidance := stageGuidance(req.Stage); guidance != "" {
		blocks = append(blocks, "## STAGE GUIDANCE\n"+guidance)
	}

	systemContext := strings.Join(blocks, "\n\n")

	messages := make([]types.Message, 0, len(req.History)+2)
	messages = append(messages, req.History...)
	messages = append(messages, types.Message{
		Role:    types.RoleSystem,
		Content: systemContext,
		Stage:   string(req.Stage),
	})
	messages = append(messages, types.Message{
		Role:    types.RoleUser,
		Content: b.stageInput(req),
		Stage:   string(req.Stage),
	})

	return messages, nil
}

func (b *Builder) location() *time.Location {
	if b.Location == nil {
		return time.UTC
	}
	return b.Location
}

func (b *Builder) repositoryFactsBlock(req consensus.StageContextRequest) string {
	v := req.Verification
	if v == nil || v.RepositoryFacts == nil {
		return noFactsWarning
	}
	f := v.RepositoryFacts
	return "## VERIFIED REPOSITORY FACTS\n" + f.Name + " v" + f.Version + " (" +
		strconv.Itoa(f.DependencyCount) + " dependencies, " + strconv.Itoa(f.ModuleCount) + " modules, " + f.Language + ")"
}

// stageInput is the turn the stage actually responds to: the user question
// for Generator, or the prior stage's output plus its fixed instruction for
// everything after, per §4.5 "Context between stages".
func (b *Builder) stageInput(req consensus.StageContextRequest) string {
	if req.Stage == consensus.StageGenerator {
		return req.Query
	}
	var sb strings.Builder
	sb.WriteString(req.Instruction)
	sb.WriteString("\n\nOriginal question: ")
	sb.WriteString(req.Query)
	sb.WriteString("\n\nPrevious stage output:\n")
	sb.WriteString(req.PriorOutput)
	return sb.String()
}

func formatAIHelperInsights(insights consensus.AIHelperInsights) string {
	var parts []string
	if len(insights.Facts) > 0 {
		parts = append(parts, "Relevant Facts:\n- "+strings.Join(insights.Facts, "\n- "))
	}
	if len(insights.Patterns) > 0 {
		parts = append(parts, "Patterns:\n- "+strings.Join(insights.Patterns, "\n- "))
	}
	if len(insights.Insights) > 0 {
		parts = append(parts, "Insights:\n- "+strings.Join(insights.Insights, "\n- "))
	}
	if insights.Guidance != "" {
		parts = append(parts, "Guidance: "+insights.Guidance)
	}
	return strings.Join(parts, "\n")
}
