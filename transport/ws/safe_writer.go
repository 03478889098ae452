package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// SafeWriter serializes writes to one websocket connection.
type SafeWriter struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

func NewSafeWriter(conn *websocket.Conn) *SafeWriter {
	return &SafeWriter{conn: conn}
}

func (w *SafeWriter) WriteJSON(v any) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.WriteJSON(v)
}

func (w *SafeWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.Close()
}
