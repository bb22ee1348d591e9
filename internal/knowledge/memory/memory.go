// Package memory provides an in-memory knowledge.Repository, for tests and
// SDK use without a filesystem dependency — the same role
// runtime/persistence/memory plays for prompts and tools.
package memory

import (
	"context"
	"sync"

	"github.com/hivetechs-collective/Hive-sub013/internal/consensus"
	"github.com/hivetechs-collective/Hive-sub013/internal/knowledge"
)

var _ knowledge.Repository = (*Repository)(nil)

// Repository stores Conversation Records in process memory, indexed by
// conversation id and by question hash.
type Repository struct {
	mu       sync.RWMutex
	byConvID map[string]consensus.ConversationRecord
	byHash   map[string][]string // question hash -> conversation ids, in insertion order
}

// New creates an empty in-memory Repository.
func New() *Repository {
	return &Repository{
		byConvID: make(map[string]consensus.ConversationRecord),
		byHash:   make(map[string][]string),
	}
}

func (r *Repository) Record(ctx context.Context, rec consensus.ConversationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byConvID[rec.ConversationID]; !exists && rec.QuestionHash != "" {
		r.byHash[rec.QuestionHash] = append(r.byHash[rec.QuestionHash], rec.ConversationID)
	}
	r.byConvID[rec.ConversationID] = rec
	return nil
}

func (r *Repository) ByConversationID(ctx context.Context, conversationID string) (*consensus.ConversationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byConvID[conversationID]
	if !ok {
		return nil, knowledge.ErrNotFound
	}
	return &rec, nil
}

func (r *Repository) ByQuestionHash(ctx context.Context, questionHash string) ([]consensus.ConversationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byHash[questionHash]
	out := make([]consensus.ConversationRecord, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if rec, ok := r.byConvID[ids[i]]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
