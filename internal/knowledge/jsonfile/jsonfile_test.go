package jsonfile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hivetechs-collective/Hive-sub013/internal/consensus"
	"github.com/hivetechs-collective/Hive-sub013/internal/knowledge"
)

func TestRepository_RecordPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	repo, err := Open(dir)
	require.NoError(t, err)

	rec := consensus.ConversationRecord{
		ConversationID: "conv-1",
		QuestionHash:   "hash-abc",
		Question:       "explain ownership",
		Answer:         "final answer",
	}
	require.NoError(t, repo.Record(context.Background(), rec))

	reopened, err := Open(dir)
	require.NoError(t, err)

	got, err := reopened.ByConversationID(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Equal(t, "final answer", got.Answer)

	byHash, err := reopened.ByQuestionHash(context.Background(), "hash-abc")
	require.NoError(t, err)
	require.Len(t, byHash, 1)
}

func TestRepository_ByConversationID_NotFound(t *testing.T) {
	repo, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = repo.ByConversationID(context.Background(), "missing")
	require.ErrorIs(t, err, knowledge.ErrNotFound)
}
