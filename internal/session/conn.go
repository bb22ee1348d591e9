package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection limits, grounded on runtime/providers/internal/streaming.Conn's
// write-deadline and max-message-size defaults.
const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20 // 1MB; a session frame is never a large payload
)

// wsConn serializes writes to a single underlying connection, the
// single-writer discipline gorilla/websocket requires of every caller.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSConn(conn *websocket.Conn) *wsConn {
	conn.SetReadLimit(maxMessageSize)
	return &wsConn{conn: conn}
}

func (c *wsConn) send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: encode frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("session: set write deadline: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) receive() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) close() error {
	c.writeMu.Lock()
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, closeMsg)
	c.writeMu.Unlock()
	return c.conn.Close()
}
