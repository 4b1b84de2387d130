// ABOUTME: Minimal connection and dialer interfaces over gorilla/websocket
// ABOUTME: Lets tests substitute in-memory connections for real sockets

package channel

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the manager uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer establishes a channel connection.
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (Conn, error)
}

// wsDialer is the production dialer backed by gorilla/websocket.
type wsDialer struct {
	d *websocket.Dialer
}

func newWSDialer() wsDialer {
	return wsDialer{d: &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}}
}

func (w wsDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := w.d.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}
