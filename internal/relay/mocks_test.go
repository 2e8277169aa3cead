package relay

import (
	"context"
	"encoding/json"
	"sync"
)

// mockConn is an in-memory Conn double: WriteJSON records writes,
// ReadMessage drains a preloaded queue of frames.
type mockConn struct {
	mu       sync.Mutex
	writes   []any
	messages [][]byte
	readIdx  int
	closed   bool
	readErr  error
}

func newMockConn(frames ...any) *mockConn {
	c := &mockConn{}
	for _, f := range frames {
		data, _ := json.Marshal(f)
		c.messages = append(c.messages, data)
	}
	return c
}

func (c *mockConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, v)
	return nil
}

func (c *mockConn) ReadMessage(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil && c.readIdx >= len(c.messages) {
		return nil, c.readErr
	}
	if c.readIdx >= len(c.messages) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	msg := c.messages[c.readIdx]
	c.readIdx++
	return msg, nil
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func eventFrame(id, pubkey, content string, kind int) []any {
	return []any{"EVENT", "sub-1", map[string]any{
		"id": id, "pubkey": pubkey, "created_at": 1700000000, "kind": kind,
		"tags": [][]string{}, "content": content, "sig": "sig",
	}}
}

func eoseFrame() []any {
	return []any{"EOSE", "sub-1"}
}
