// Package knowledge provides the append-only Conversation Record store
// (§3 "Conversation Record"), repurposing runtime/persistence's Repository
// pattern from "prompt/tool repositories" to conversation records indexed
// by conversation id and by normalized question hash (§6).
package knowledge

import (
	"context"

	"github.com/hivetechs-collective/Hive-sub013/internal/consensus"
)

// Repository persists and looks up Conversation Records. Implemented by
// both a JSON file-backed store and an in-memory store (tests), matching
// runtime/persistence's json/memory backend split for PromptRepository.
type Repository interface {
	// Record implements consensus.Recorder: appends rec. Re-recording the
	// same ConversationID overwrites that record (a Run only ever
	// persists once, at Curator completion, but this keeps the method
	// total rather than erroring on a caller retry).
	Record(ctx context.Context, rec consensus.ConversationRecord) error

	// ByConversationID returns the record for a conversation, or
	// ErrNotFound if none exists.
	ByConversationID(ctx context.Context, conversationID string) (*consensus.ConversationRecord, error)

	// ByQuestionHash returns every record whose QuestionHash matches,
	// across all conversations, most recent first.
	ByQuestionHash(ctx context.Context, questionHash string) ([]consensus.ConversationRecord, error)
}

// Compile-time assertion that Repository satisfies the narrower interface
// internal/consensus.Pipeline actually depends on.
var _ consensus.Recorder = Repository(nil)
