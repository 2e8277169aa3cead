package relay

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a gorilla/websocket connection to the Conn interface.
type wsConn struct {
	ws *websocket.Conn
}

// dial opens a websocket connection to a relay URL (ws:// or wss://).
func dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}

func (c *wsConn) WriteJSON(v any) error {
	return c.ws.WriteJSON(v)
}

// ReadMessage blocks until a message arrives, the context is cancelled, or
// the socket errors. gorilla/websocket has no context-aware read, so a
// read deadline derived from ctx (if one is set) stands in for it.
func (c *wsConn) ReadMessage(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetReadDeadline(deadline)
	}
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
