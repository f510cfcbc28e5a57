package network

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	query "github.com/hanpama/genrelay/internal/query"
)

const (
	wsSubprotocol = "graphql-transport-ws"
	writeTimeout  = 10 * time.Second
)

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSLayer sends queries as single-result subscriptions over one shared
// graphql-transport-ws connection, dialed on first use and redialed after
// it drops.
type WSLayer struct {
	url  string
	opts *Options

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  uint64
	pending map[string]chan wsMessage
	closed  bool

	writeMu sync.Mutex
}

func NewWSLayer(url string, opts ...Option) *WSLayer {
	return &WSLayer{url: url, opts: buildOptions(opts), pending: map[string]chan wsMessage{}}
}

func (l *WSLayer) Send(ctx context.Context, root *query.Root) (any, error) {
	return exchange(ctx, l.opts, l.url, root, l.subscribe)
}

func (l *WSLayer) subscribe(ctx context.Context, body graphqlRequest) (*graphqlResponse, int, error) {
	conn, err := l.connect(ctx)
	if err != nil {
		return nil, 0, err
	}
	id, ch := l.register()
	defer l.unregister(id)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	if err := l.write(conn, wsMessage{ID: id, Type: "subscribe", Payload: payload}); err != nil {
		return nil, 0, err
	}

	select {
	case <-ctx.Done():
		_ = l.write(conn, wsMessage{ID: id, Type: "complete"})
		return nil, 0, ctx.Err()
	case msg, ok := <-ch:
		if !ok {
			return nil, 0, fmt.Errorf("%w: connection dropped", ErrClosed)
		}
		switch msg.Type {
		case "next":
			var out graphqlResponse
			if err := json.Unmarshal(msg.Payload, &out); err != nil {
				return nil, 0, fmt.Errorf("%w: %v", ErrProtocol, err)
			}
			return &out, 0, nil
		case "error":
			var errs []GraphQLError
			if err := json.Unmarshal(msg.Payload, &errs); err != nil {
				return nil, 0, fmt.Errorf("%w: %v", ErrProtocol, err)
			}
			return &graphqlResponse{Errors: errs}, 0, nil
		default:
			return nil, 0, fmt.Errorf("%w: operation %s completed without a result", ErrProtocol, id)
		}
	}
}

func (l *WSLayer) register() (string, chan wsMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := strconv.FormatUint(l.nextID, 10)
	ch := make(chan wsMessage, 1)
	l.pending[id] = ch
	return id, ch
}

func (l *WSLayer) unregister(id string) {
	l.mu.Lock()
	delete(l.pending, id)
	l.mu.Unlock()
}

// connect returns the live connection, dialing and completing the
// connection_init handshake when there is none.
func (l *WSLayer) connect(ctx context.Context) (*websocket.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if l.conn != nil {
		return l.conn, nil
	}

	dialer := *l.opts.Dialer
	dialer.Subprotocols = []string{wsSubprotocol}
	conn, _, err := dialer.DialContext(ctx, l.url, l.opts.Headers)
	if err != nil {
		return nil, err
	}
	if err := l.write(conn, wsMessage{Type: "connection_init", Payload: json.RawMessage(`{}`)}); err != nil {
		conn.Close()
		return nil, err
	}
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	var ack wsMessage
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, err
	}
	if ack.Type != "connection_ack" {
		conn.Close()
		return nil, fmt.Errorf("%w: expected connection_ack, got %q", ErrProtocol, ack.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})

	l.conn = conn
	go l.readLoop(conn)
	return conn, nil
}

func (l *WSLayer) readLoop(conn *websocket.Conn) {
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			l.drop(conn, err)
			return
		}
		switch msg.Type {
		case "ping":
			_ = l.write(conn, wsMessage{Type: "pong"})
		case "next", "error", "complete":
			l.mu.Lock()
			ch := l.pending[msg.ID]
			l.mu.Unlock()
			if ch != nil {
				select {
				case ch <- msg:
				default:
				}
			}
		}
	}
}

// drop forgets conn and fails every operation waiting on it.
func (l *WSLayer) drop(conn *websocket.Conn, err error) {
	l.mu.Lock()
	if l.conn == conn {
		l.conn = nil
		for id, ch := range l.pending {
			close(ch)
			delete(l.pending, id)
		}
	}
	closed := l.closed
	l.mu.Unlock()
	if !closed {
		l.opts.Logger.Debug("network: websocket connection dropped", "url", l.url, "error", err)
	}
	conn.Close()
}

func (l *WSLayer) write(conn *websocket.Conn, msg wsMessage) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

// Close closes the connection. Pending and later sends fail with ErrClosed.
func (l *WSLayer) Close() error {
	l.mu.Lock()
	l.closed = true
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return nil
	}
	l.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	l.writeMu.Unlock()
	return conn.Close()
}
