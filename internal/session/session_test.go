package session

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/hivetechs-collective/Hive-sub013/internal/consensus"
	"github.com/hivetechs-collective/Hive-sub013/internal/gateway"
	"github.com/hivetechs-collective/Hive-sub013/internal/modeltransport"
	"github.com/hivetechs-collective/Hive-sub013/runtime/types"
)

type fakeGateway struct{}

func (fakeGateway) RequestConversationAuthorization(ctx context.Context, question string) (gateway.Authorization, error) {
	return gateway.Authorization{ConversationToken: "tok", QuestionHash: "qh", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (fakeGateway) ReportConversationCompletion(ctx context.Context, token, conversationID, questionHash string) gateway.Verification {
	return gateway.Verification{Verified: true}
}

type fakeTransport struct{}

func (fakeTransport) StreamCompletion(ctx context.Context, req modeltransport.Request) <-chan modeltransport.Chunk {
	out := make(chan modeltransport.Chunk, 4)
	go func() {
		defer close(out)
		out <- modeltransport.Chunk{Delta: "partial " + req.Stage, Stage: req.Stage, CumulativeCompletion: 1}
		out <- modeltransport.Chunk{
			Stage: req.Stage,
			Final: true,
			Usage: &modeltransport.Usage{PromptTokens: 2, CompletionTokens: 2},
		}
	}()
	return out
}

type fakeContextBuilder struct{}

func (fakeContextBuilder) BuildStageContext(ctx context.Context, req consensus.StageContextRequest) ([]types.Message, error) {
	return []types.Message{{Role: types.RoleUser, Content: req.Query}}, nil
}

func testPipeline() *consensus.Pipeline {
	return consensus.New(consensus.Config{
		Gateway:        fakeGateway{},
		Transport:      fakeTransport{},
		ContextBuilder: fakeContextBuilder{},
	})
}

func testProfile() consensus.Profile {
	return consensus.Profile{
		Name:      "speed",
		Models:    [4]string{"gen", "ref", "val", "cur"},
		MaxTokens: [4]int{100, 100, 100, 100},
	}
}

func dialSession(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readUntilType(t *testing.T, conn *websocket.Conn, want string, timeout time.Duration) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		var frame map[string]interface{}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if frame["type"] == want {
			return frame
		}
	}
	t.Fatalf("timed out waiting for frame type %q", want)
	return nil
}

func TestSession_StartConsensus_FullSequence(t *testing.T) {
	handler := &Handler{
		Pipeline:       testPipeline(),
		ResolveProfile: func(name string) (consensus.Profile, error) { return testProfile(), nil },
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn := dialSession(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":  "start_consensus",
		"query": "explain ownership",
	}))

	readUntilType(t, conn, "profile_loaded", 2*time.Second)
	readUntilType(t, conn, "stage_started", 2*time.Second)
	frame := readUntilType(t, conn, "consensus_complete", 2*time.Second)
	if frame["total_tokens"].(float64) <= 0 {
		t.Errorf("consensus_complete.total_tokens = %v, want > 0", frame["total_tokens"])
	}
}

func TestSession_SecondStartConsensusRejectedWhileRunInProgress(t *testing.T) {
	handler := &Handler{
		Pipeline:       testPipeline(),
		ResolveProfile: func(name string) (consensus.Profile, error) { return testProfile(), nil },
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn := dialSession(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "start_consensus", "query": "q1"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "start_consensus", "query": "q2"}))

	frame := readUntilType(t, conn, "error", 2*time.Second)
	if frame["message"] != "run in progress" {
		t.Errorf("error.message = %v, want %q", frame["message"], "run in progress")
	}
}

func TestSession_UnknownFrameTypeProducesError(t *testing.T) {
	handler := &Handler{Pipeline: testPipeline()}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn := dialSession(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "bogus"}))
	readUntilType(t, conn, "error", 2*time.Second)
}
