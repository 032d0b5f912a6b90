// network/connection.go
package network

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultKeepalive is the ping cadence; the read deadline sits at twice
	// this, so a client that stops answering surfaces as a read error.
	DefaultKeepalive = 30 * time.Second

	writeWait = 10 * time.Second
)

// ErrMalformedAction reports a frame that arrived intact but did not decode.
// The connection stays usable; the caller answers with an error event.
var ErrMalformedAction = errors.New("malformed action payload")

// Connection is one client's push channel.
type Connection interface {
	WriteEvent(event interface{}) error
	ReadAction() (*Action, error)
	StartKeepalive(interval time.Duration)
	RemoteAddr() net.Addr
	Close() error
}

// WSConnection adapts a gorilla websocket to the Connection interface.
// Events travel as JSON text frames. Writes are serialized by sendMutex
// because the room actor and the hub share the socket.
type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn, done: make(chan struct{})}
}

func (c *WSConnection) WriteEvent(event interface{}) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(event)
}

func (c *WSConnection) ReadAction() (*Action, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var action Action
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, ErrMalformedAction
	}
	return &action, nil
}

func (c *WSConnection) StartKeepalive(interval time.Duration) {
	c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	})
	go c.pingLoop(interval)
}

func (c *WSConnection) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *WSConnection) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.conn.Close()
}
