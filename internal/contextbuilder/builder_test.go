package contextbuilder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hivetechs-collective/Hive-sub013/internal/consensus"
)

func TestBuildStageContext_NoFactsProducesWarning(t *testing.T) {
	b := New(nil)
	msgs, err := b.BuildStageContext(context.Background(), consensus.StageContextRequest{
		Stage: consensus.StageGenerator,
		Query: "what does this project do?",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Contains(t, msgs[0].Content, noFactsWarning)
	require.Equal(t, "what does this project do?", msgs[1].Content)
}

func TestBuildStageContext_RepositoryFactsFirst(t *testing.T) {
	b := New(nil)
	msgs, err := b.BuildStageContext(context.Background(), consensus.StageContextRequest{
		Stage: consensus.StageGenerator,
		Query: "explain the dependency graph",
		Verification: &consensus.VerificationInputs{
			RepositoryFacts: &consensus.RepositoryFacts{
				Name: "widget-service", Version: "2.1.0", DependencyCount: 12, ModuleCount: 5, Language: "Go",
			},
		},
	})
	require.NoError(t, err)
	systemBlock := msgs[0].Content
	require.True(t, strings.HasPrefix(systemBlock, "## VERIFIED REPOSITORY FACTS"))
	require.Contains(t, systemBlock, "widget-service v2.1.0")
	require.Contains(t, systemBlock, "12 dependencies")
}

func TestBuildStageContext_RefinerCarriesPriorOutputAndInstruction(t *testing.T) {
	b := New(nil)
	msgs, err := b.BuildStageContext(context.Background(), consensus.StageContextRequest{
		Stage:       consensus.StageRefiner,
		Query:       "explain ownership",
		PriorOutput: "ownership means exactly one owner per value",
		Instruction: "tighten this explanation",
	})
	require.NoError(t, err)
	last := msgs[len(msgs)-1].Content
	require.Contains(t, last, "tighten this explanation")
	require.Contains(t, last, "ownership means exactly one owner per value")
}

func TestBuildStageContext_AssemblyOrder(t *testing.T) {
	b := New(nil)
	req := consensus.StageContextRequest{
		Stage: consensus.StageCurator,
		Query: "q",
		Verification: &consensus.VerificationInputs{
			RepositoryFacts:  &consensus.RepositoryFacts{Name: "x", Version: "1.0.0"},
			AIHelperInsights: &consensus.AIHelperInsights{Facts: []string{"fact one"}},
			Memory:           "remembered answer",
			SemanticResults:  []string{"match one"},
		},
	}
	msgs, err := b.BuildStageContext(context.Background(), req)
	require.NoError(t, err)
	content := msgs[0].Content

	order := []string{
		"VERIFIED REPOSITORY FACTS",
		"AI HELPER INSIGHTS",
		"MEMORY CONTEXT",
		"SEMANTIC SEARCH RESULTS",
		"TEMPORAL CONTEXT",
		"STAGE GUIDANCE",
	}
	last := -1
	for _, marker := range order {
		idx := strings.Index(content, marker)
		require.Greaterf(t, idx, last, "%s out of order", marker)
		last = idx
	}
}

func TestTemporalContext_WeekendIsNotABusinessDay(t *testing.T) {
	saturday := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	tc := buildTemporalContext(saturday, time.UTC)
	require.False(t, tc.IsBusinessDay)
	require.False(t, tc.IsMarketHours)
	require.Equal(t, "Q3 2026", tc.FiscalQuarter)
}

func TestTemporalContext_WeekdayDuringMarketHours(t *testing.T) {
	wednesday := time.Date(2026, time.August, 5, 14, 0, 0, 0, time.UTC)
	tc := buildTemporalContext(wednesday, time.UTC)
	require.True(t, tc.IsBusinessDay)
	require.True(t, tc.IsMarketHours)
}

