package session

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hivetechs-collective/Hive-sub013/internal/consensus"
	"github.com/hivetechs-collective/Hive-sub013/runtime/logger"
)

// upgrader is shared across connections; CheckOrigin is left permissive
// since the session endpoint sits behind the same authorization the REST
// endpoints do, not browser same-origin policy.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades incoming HTTP requests to WebSocket sessions and serves
// each one until its connection closes.
type Handler struct {
	Pipeline       *consensus.Pipeline
	ResolveProfile ProfileResolver
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("session: websocket upgrade failed", "error", err)
		return
	}

	sess := New(conn, h.Pipeline, h.ResolveProfile)
	if err := sess.Serve(r.Context()); err != nil {
		logger.Debug("session: connection ended", "session_id", sess.ID(), "error", err)
	}
}
