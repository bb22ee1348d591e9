package events

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileEventStore(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileEventStore(dir)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	assert.Equal(t, dir, store.dir)
}

func TestNewFileEventStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "events")

	store, err := NewFileEventStore(dir)
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileEventStore_Append(t *testing.T) {
	store, err := NewFileEventStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	event := &Event{
		Type:      EventMessageCreated,
		Timestamp: time.Now(),
		SessionID: "session-123",
		Data: &MessageCreatedData{
			Role:    "user",
			Content: "Hello, world!",
		},
	}

	err = store.Append(context.Background(), event)
	require.NoError(t, err)

	path := store.sessionPath("session-123")
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestFileEventStore_Append_RequiresSessionID(t *testing.T) {
	store, err := NewFileEventStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	event := &Event{
		Type:      EventMessageCreated,
		Timestamp: time.Now(),
	}

	err = store.Append(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session ID")
}

func TestFileEventStore_Query(t *testing.T) {
	store, err := NewFileEventStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	sessionID := "session-query-test"
	now := time.Now()

	events := []*Event{
		{Type: EventMessageCreated, Timestamp: now, SessionID: sessionID, ConversationID: "conv-1"},
		{Type: EventToolCallStarted, Timestamp: now.Add(time.Second), SessionID: sessionID, ConversationID: "conv-1"},
		{Type: EventToolCallCompleted, Timestamp: now.Add(2 * time.Second), SessionID: sessionID, ConversationID: "conv-1"},
		{Type: EventMessageCreated, Timestamp: now.Add(3 * time.Second), SessionID: sessionID, ConversationID: "conv-2"},
	}

	for _, e := range events {
		require.NoError(t, store.Append(context.Background(), e))
	}
	require.NoError(t, store.Sync())

	t.Run("all events for session", func(t *testing.T) {
		result, err := store.Query(context.Background(), &EventFilter{SessionID: sessionID})
		require.NoError(t, err)
		assert.Len(t, result, 4)
	})

	t.Run("filter by conversation", func(t *testing.T) {
		result, err := store.Query(context.Background(), &EventFilter{
			SessionID:      sessionID,
			ConversationID: "conv-1",
		})
		require.NoError(t, err)
		assert.Len(t, result, 3)
	})

	t.Run("filter by type", func(t *testing.T) {
		result, err := store.Query(context.Background(), &EventFilter{
			SessionID: sessionID,
			Types:     []EventType{EventMessageCreated},
		})
		require.NoError(t, err)
		assert.Len(t, result, 2)
	})

	t.Run("limit results", func(t *testing.T) {
		result, err := store.Query(context.Background(), &EventFilter{
			SessionID: sessionID,
			Limit:     2,
		})
		require.NoError(t, err)
		assert.Len(t, result, 2)
	})

	t.Run("non-existent session", func(t *testing.T) {
		result, err := store.Query(context.Background(), &EventFilter{SessionID: "no-such-session"})
		require.NoError(t, err)
		assert.Empty(t, result)
	})

	t.Run("requires session ID", func(t *testing.T) {
		_, err := store.Query(context.Background(), &EventFilter{})
		require.Error(t, err)
	})
}

func TestFileEventStore_QueryRaw(t *testing.T) {
	store, err := NewFileEventStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	sessionID := "session-queryraw-test"
	now := time.Now()

	events := []*Event{
		{
			Type:      EventMessageCreated,
			Timestamp: now,
			SessionID: sessionID,
			Data:      &MessageCreatedData{Role: "user", Content: "Hello"},
		},
		{
			Type:      EventMessageCreated,
			Timestamp: now.Add(time.Second),
			SessionID: sessionID,
			Data:      &MessageCreatedData{Role: "assistant", Content: "Hi there!"},
		},
	}

	for _, e := range events {
		require.NoError(t, store.Append(context.Background(), e))
	}
	require.NoError(t, store.Sync())

	t.Run("returns stored events with raw data", func(t *testing.T) {
		result, err := store.QueryRaw(context.Background(), &EventFilter{SessionID: sessionID})
		require.NoError(t, err)
		require.Len(t, result, 2)

		assert.NotEmpty(t, result[0].Event.Data)
		assert.Equal(t, "*events.MessageCreatedData", result[0].Event.DataType)

		decoded := deserializeEventData(result[0].Event.DataType, result[0].Event.RawData())
		msg, ok := decoded.(*MessageCreatedData)
		require.True(t, ok)
		assert.Equal(t, "user", msg.Role)
	})

	t.Run("non-existent session returns nil", func(t *testing.T) {
		result, err := store.QueryRaw(context.Background(), &EventFilter{SessionID: "no-such-session"})
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("requires session ID", func(t *testing.T) {
		_, err := store.QueryRaw(context.Background(), &EventFilter{})
		require.Error(t, err)
	})
}

func TestFileEventStore_Stream(t *testing.T) {
	store, err := NewFileEventStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	sessionID := "session-stream-test"

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(context.Background(), &Event{
			Type:      EventMessageCreated,
			Timestamp: time.Now(),
			SessionID: sessionID,
		}))
	}

	require.NoError(t, store.Close())

	store, err = NewFileEventStore(store.dir)
	require.NoError(t, err)
	defer store.Close()

	ch, err := store.Stream(context.Background(), sessionID)
	require.NoError(t, err)

	var count int
	for range ch {
		count++
	}
	assert.Equal(t, 5, count)
}

func TestFileEventStore_Stream_NonExistentSession(t *testing.T) {
	store, err := NewFileEventStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ch, err := store.Stream(context.Background(), "no-such-session")
	require.NoError(t, err)

	var count int
	for range ch {
		count++
	}
	assert.Equal(t, 0, count)
}

func TestFileEventStore_Stream_ContextCancellation(t *testing.T) {
	store, err := NewFileEventStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	sessionID := "session-cancel-test"

	for i := 0; i < 100; i++ {
		require.NoError(t, store.Append(context.Background(), &Event{
			Type:      EventMessageCreated,
			Timestamp: time.Now(),
			SessionID: sessionID,
		}))
	}

	require.NoError(t, store.Close())
	store, err = NewFileEventStore(store.dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := store.Stream(ctx, sessionID)
	require.NoError(t, err)

	<-ch
	<-ch
	cancel()

	for range ch {
		// drain
	}
}

func TestEventBus_WithStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileEventStore(dir)
	require.NoError(t, err)
	defer store.Close()

	bus := NewEventBus().WithStore(store)
	assert.Equal(t, store, bus.Store())

	sessionID := "session-bus-test"

	event := &Event{
		Type:      EventMessageCreated,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      &MessageCreatedData{Role: "user", Content: "test"},
	}
	bus.Publish(event)
	require.NoError(t, store.Sync())

	events, err := store.Query(context.Background(), &EventFilter{SessionID: sessionID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventMessageCreated, events[0].Type)
}

func TestEventBus_WithStore_SkipsEventsWithoutSessionID(t *testing.T) {
	store, err := NewFileEventStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	bus := NewEventBus().WithStore(store)

	event := &Event{
		Type:      EventPipelineStarted,
		Timestamp: time.Now(),
	}
	bus.Publish(event)

	time.Sleep(50 * time.Millisecond)

	entries, _ := os.ReadDir(store.dir)
	assert.Empty(t, entries)
}

func TestSerializableEvent_RawData(t *testing.T) {
	rawJSON := json.RawMessage(`{"role":"user","content":"test"}`)
	se := &SerializableEvent{
		Data:     rawJSON,
		DataType: "*events.MessageCreatedData",
	}

	result := se.RawData()
	assert.Equal(t, rawJSON, result)
}

func TestDeserializeEventData(t *testing.T) {
	tests := []struct {
		name     string
		dataType string
		data     string
		check    func(t *testing.T, result EventData)
	}{
		{
			name:     "MessageCreatedData",
			dataType: "*events.MessageCreatedData",
			data:     `{"role":"assistant","content":"Hello!"}`,
			check: func(t *testing.T, result EventData) {
				data, ok := result.(*MessageCreatedData)
				require.True(t, ok)
				assert.Equal(t, "assistant", data.Role)
				assert.Equal(t, "Hello!", data.Content)
			},
		},
		{
			name:     "ToolCallStartedData",
			dataType: "*events.ToolCallStartedData",
			data:     `{"ToolName":"get_weather","CallID":"call-1"}`,
			check: func(t *testing.T, result EventData) {
				data, ok := result.(*ToolCallStartedData)
				require.True(t, ok)
				assert.Equal(t, "get_weather", data.ToolName)
				assert.Equal(t, "call-1", data.CallID)
			},
		},
		{
			name:     "ProviderCallCompletedData",
			dataType: "*events.ProviderCallCompletedData",
			data:     `{"Provider":"openai","InputTokens":100,"OutputTokens":50}`,
			check: func(t *testing.T, result EventData) {
				data, ok := result.(*ProviderCallCompletedData)
				require.True(t, ok)
				assert.Equal(t, "openai", data.Provider)
				assert.Equal(t, 100, data.InputTokens)
				assert.Equal(t, 50, data.OutputTokens)
			},
		},
		{
			name:     "PipelineStartedData",
			dataType: "*events.PipelineStartedData",
			data:     `{"MiddlewareCount":3}`,
			check: func(t *testing.T, result EventData) {
				data, ok := result.(*PipelineStartedData)
				require.True(t, ok)
				assert.Equal(t, 3, data.MiddlewareCount)
			},
		},
		{
			name:     "MessageUpdatedData",
			dataType: "*events.MessageUpdatedData",
			data:     `{"Index":5,"LatencyMs":150}`,
			check: func(t *testing.T, result EventData) {
				data, ok := result.(*MessageUpdatedData)
				require.True(t, ok)
				assert.Equal(t, 5, data.Index)
				assert.Equal(t, int64(150), data.LatencyMs)
			},
		},
		{
			name:     "CustomEventData",
			dataType: "*events.CustomEventData",
			data:     `{"MiddlewareName":"logger","EventName":"log.info","Message":"test message"}`,
			check: func(t *testing.T, result EventData) {
				data, ok := result.(*CustomEventData)
				require.True(t, ok)
				assert.Equal(t, "logger", data.MiddlewareName)
				assert.Equal(t, "log.info", data.EventName)
				assert.Equal(t, "test message", data.Message)
			},
		},
		{
			name:     "unknown type returns nil",
			dataType: "*events.UnknownType",
			data:     `{"foo":"bar"}`,
			check: func(t *testing.T, result EventData) {
				assert.Nil(t, result)
			},
		},
		{
			name:     "invalid JSON returns nil",
			dataType: "*events.MessageCreatedData",
			data:     `{invalid json}`,
			check: func(t *testing.T, result EventData) {
				assert.Nil(t, result)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := deserializeEventData(tt.dataType, json.RawMessage(tt.data))
			tt.check(t, result)
		})
	}
}

func TestFileEventStore_Close_AlreadyClosed(t *testing.T) {
	store, err := NewFileEventStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Append(context.Background(), &Event{
		Type:      EventMessageCreated,
		Timestamp: time.Now(),
		SessionID: "sess",
	}))

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestFileEventStore_Sync_NoFiles(t *testing.T) {
	store, err := NewFileEventStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Sync())
}

func TestFileEventStore_Query_AdvancedFilters(t *testing.T) {
	store, err := NewFileEventStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	sessionID := "session-advanced"
	base := time.Now()

	events := []*Event{
		{Type: EventMessageCreated, Timestamp: base, SessionID: sessionID, RunID: "run-a"},
		{Type: EventMessageCreated, Timestamp: base.Add(time.Minute), SessionID: sessionID, RunID: "run-b"},
		{Type: EventMessageCreated, Timestamp: base.Add(2 * time.Minute), SessionID: sessionID, RunID: "run-a"},
	}
	for _, e := range events {
		require.NoError(t, store.Append(context.Background(), e))
	}
	require.NoError(t, store.Sync())

	result, err := store.Query(context.Background(), &EventFilter{
		SessionID: sessionID,
		RunID:     "run-a",
		Since:     base.Add(-time.Second),
		Until:     base.Add(90 * time.Second),
	})
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestFileEventStore_Sync_WithFiles(t *testing.T) {
	store, err := NewFileEventStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(context.Background(), &Event{
		Type:      EventMessageCreated,
		Timestamp: time.Now(),
		SessionID: "sess-sync",
	}))

	assert.NoError(t, store.Sync())
}

func TestFileEventStore_toSerializable_WithData(t *testing.T) {
	se, err := toSerializable(&Event{
		Type:      EventMessageCreated,
		Timestamp: time.Now(),
		SessionID: "sess",
		Data:      &MessageCreatedData{Role: "user", Content: "test"},
	})
	require.NoError(t, err)
	assert.Equal(t, "*events.MessageCreatedData", se.DataType)
	assert.NotEmpty(t, se.Data)
}

func TestFileEventStore_toSerializable_NilData(t *testing.T) {
	se, err := toSerializable(&Event{
		Type:      EventMessageCreated,
		Timestamp: time.Now(),
		SessionID: "sess",
	})
	require.NoError(t, err)
	assert.Empty(t, se.DataType)
	assert.Empty(t, se.Data)
}
