package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hivetechs-collective/Hive-sub013/internal/consensus"
	"github.com/hivetechs-collective/Hive-sub013/internal/knowledge"
)

func TestRepository_RecordAndLookup(t *testing.T) {
	repo := New()
	ctx := context.Background()

	rec := consensus.ConversationRecord{
		ConversationID: "conv-1",
		QuestionHash:   "hash-abc",
		Question:       "explain ownership",
		Answer:         "final answer",
	}
	require.NoError(t, repo.Record(ctx, rec))

	got, err := repo.ByConversationID(ctx, "conv-1")
	require.NoError(t, err)
	require.Equal(t, "final answer", got.Answer)

	byHash, err := repo.ByQuestionHash(ctx, "hash-abc")
	require.NoError(t, err)
	require.Len(t, byHash, 1)
	require.Equal(t, "conv-1", byHash[0].ConversationID)
}

func TestRepository_ByConversationID_NotFound(t *testing.T) {
	repo := New()
	_, err := repo.ByConversationID(context.Background(), "missing")
	require.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestRepository_ByQuestionHash_MultipleConversationsSameQuestion(t *testing.T) {
	repo := New()
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, consensus.ConversationRecord{ConversationID: "conv-1", QuestionHash: "shared"}))
	require.NoError(t, repo.Record(ctx, consensus.ConversationRecord{ConversationID: "conv-2", QuestionHash: "shared"}))

	got, err := repo.ByQuestionHash(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "conv-2", got[0].ConversationID) // most recent first
}
