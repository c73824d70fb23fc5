package watch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport establishes push connections. It exists as an interface so the
// supervisor's state machine can be exercised against a fake transport
// without real network I/O.
type Transport interface {
	Connect(ctx context.Context, url string, headers http.Header) (Conn, error)
}

// Conn is one established push connection. ReadMessage blocks until the next
// frame arrives or the connection fails; a normal server-initiated close is
// reported as io.EOF.
type Conn interface {
	ReadMessage() ([]byte, error)
	Ping() error
	Close() error
}

// wsTransport connects over websocket. The read deadline is primed at
// connect and refreshed by each pong, so a peer that stops answering pings
// fails the read loop within pingInterval+pingTimeout.
type wsTransport struct {
	pingInterval time.Duration
	pingTimeout  time.Duration
	origin       string
}

// NewWebSocketTransport returns the production websocket transport.
func NewWebSocketTransport(pingInterval, pingTimeout time.Duration, origin string) Transport {
	return &wsTransport{
		pingInterval: pingInterval,
		pingTimeout:  pingTimeout,
		origin:       origin,
	}
}

func (t *wsTransport) Connect(ctx context.Context, url string, headers http.Header) (Conn, error) {
	if t.origin != "" {
		headers = cloneHeader(headers)
		headers.Set("Origin", t.origin)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	readTimeout := t.pingInterval + t.pingTimeout
	c := &wsConn{
		conn:         conn,
		readTimeout:  readTimeout,
		writeTimeout: t.pingTimeout,
	}
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	return c, nil
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h)+1)
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}

type wsConn struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex // serialises ping and close writes
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}
