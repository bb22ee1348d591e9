// Package jsonfile provides a JSON file-backed knowledge.Repository, one
// file per conversation, grounded on runtime/persistence/json and
// runtime/persistence/common's file-repository conventions (directory
// scanning on load, 0o750/0o600 permissions, os.WriteFile for each save).
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hivetechs-collective/Hive-sub013/internal/consensus"
	"github.com/hivetechs-collective/Hive-sub013/internal/knowledge"
	"github.com/hivetechs-collective/Hive-sub013/runtime/logger"
)

// File permission constants, matching runtime/persistence/common's
// DirPerm/FilePerm.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

var _ knowledge.Repository = (*Repository)(nil)

// Repository stores each Conversation Record as "<conversation_id>.json"
// under basePath. A conversation-id -> question-hash index is built by
// scanning basePath once at construction and kept up to date on Record.
type Repository struct {
	basePath string

	mu        sync.RWMutex
	hashIndex map[string][]string // question hash -> conversation ids, oldest first
}

// Open scans basePath (creating it if absent) and returns a ready
// Repository.
func Open(basePath string) (*Repository, error) {
	if err := os.MkdirAll(basePath, dirPerm); err != nil {
		return nil, fmt.Errorf("knowledge: create base path %s: %w", basePath, err)
	}

	r := &Repository{basePath: basePath, hashIndex: make(map[string][]string)}
	if err := r.rebuildIndex(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) rebuildIndex() error {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return fmt.Errorf("knowledge: read base path %s: %w", r.basePath, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(r.basePath, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("knowledge: failed to read record during index rebuild", "path", path, "error", err)
			continue
		}
		var rec consensus.ConversationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			logger.Warn("knowledge: failed to parse record during index rebuild", "path", path, "error", err)
			continue
		}
		if rec.QuestionHash != "" {
			r.hashIndex[rec.QuestionHash] = append(r.hashIndex[rec.QuestionHash], rec.ConversationID)
		}
	}
	return nil
}

func (r *Repository) pathFor(conversationID string) string {
	return filepath.Join(r.basePath, conversationID+".json")
}

func (r *Repository) Record(ctx context.Context, rec consensus.ConversationRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("knowledge: marshal record: %w", err)
	}

	path := r.pathFor(rec.ConversationID)
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("knowledge: write record %s: %w", path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.QuestionHash != "" {
		r.hashIndex[rec.QuestionHash] = append(r.hashIndex[rec.QuestionHash], rec.ConversationID)
	}
	return nil
}

func (r *Repository) ByConversationID(ctx context.Context, conversationID string) (*consensus.ConversationRecord, error) {
	data, err := os.ReadFile(r.pathFor(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, knowledge.ErrNotFound
		}
		return nil, fmt.Errorf("knowledge: read record %s: %w", conversationID, err)
	}

	var rec consensus.ConversationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("knowledge: parse record %s: %w", conversationID, err)
	}
	return &rec, nil
}

func (r *Repository) ByQuestionHash(ctx context.Context, questionHash string) ([]consensus.ConversationRecord, error) {
	r.mu.RLock()
	ids := append([]string(nil), r.hashIndex[questionHash]...)
	r.mu.RUnlock()

	out := make([]consensus.ConversationRecord, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		rec, err := r.ByConversationID(ctx, ids[i])
		if err != nil {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}
