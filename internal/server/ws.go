package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsSubprotocol = "graphql-transport-ws"
	writeTimeout  = 10 * time.Second
)

// graphql-transport-ws close codes.
const (
	closeBadRequest       = 4400
	closeUnauthorized     = 4401
	closeSubprotocol      = 4406
	closeInitTimeout      = 4408
	closeSubscriberExists = 4409
	closeTooManyInits     = 4429
)

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{Subprotocols: []string{wsSubprotocol}}
	if origins := h.opt.CORS.AllowedOrigins; len(origins) > 0 {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(origins, origin)
		}
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.opt.Logger.Debug("server: websocket upgrade failed", "error", err)
		return
	}
	s := &wsSession{h: h, conn: conn, ops: map[string]context.CancelFunc{}}
	if conn.Subprotocol() != wsSubprotocol {
		s.close(closeSubprotocol, "Subprotocol not acceptable")
		conn.Close()
		return
	}
	s.serve(r.Context())
}

// wsSession is one graphql-transport-ws connection. Each subscribe message
// runs as its own operation and answers with next and complete.
type wsSession struct {
	h    *Handler
	conn *websocket.Conn

	writeMu sync.Mutex

	mu  sync.Mutex
	ops map[string]context.CancelFunc
	wg  sync.WaitGroup
}

func (s *wsSession) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer func() {
		cancel()
		s.wg.Wait()
		s.conn.Close()
	}()
	stop := context.AfterFunc(parent, func() {
		s.close(websocket.CloseGoingAway, "server shutting down")
		s.conn.Close()
	})
	defer stop()

	if !s.handshake() {
		return
	}
	for {
		var msg wsMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.h.opt.Logger.Debug("server: websocket read failed", "error", err)
			}
			return
		}
		switch msg.Type {
		case "ping":
			_ = s.write(wsMessage{Type: "pong"})
		case "pong":
		case "subscribe":
			if err := s.subscribe(ctx, msg); err != nil {
				return
			}
		case "complete":
			s.finish(msg.ID)
		case "connection_init":
			s.close(closeTooManyInits, "Too many initialisation requests")
			return
		default:
			s.close(closeBadRequest, fmt.Sprintf("Unexpected message type %q", msg.Type))
			return
		}
	}
}

// handshake waits for connection_init and acknowledges it.
func (s *wsSession) handshake() bool {
	if s.h.opt.InitTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.h.opt.InitTimeout))
	}
	var init wsMessage
	if err := s.conn.ReadJSON(&init); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			s.close(closeInitTimeout, "Connection initialisation timeout")
		}
		return false
	}
	if init.Type != "connection_init" {
		s.close(closeUnauthorized, "Unauthorized")
		return false
	}
	_ = s.conn.SetReadDeadline(time.Time{})
	return s.write(wsMessage{Type: "connection_ack"}) == nil
}

var errSessionClosed = errors.New("server: websocket session closed")

func (s *wsSession) subscribe(ctx context.Context, msg wsMessage) error {
	var req Request
	if msg.ID == "" || json.Unmarshal(msg.Payload, &req) != nil || req.Query == "" {
		s.close(closeBadRequest, "Invalid subscribe message")
		return errSessionClosed
	}

	s.mu.Lock()
	if _, exists := s.ops[msg.ID]; exists {
		s.mu.Unlock()
		s.close(closeSubscriberExists, fmt.Sprintf("Subscriber for %s already exists", msg.ID))
		return errSessionClosed
	}
	opCtx, cancel, _ := s.h.operationContext(ctx)
	s.ops[msg.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finish(msg.ID)

		res, requestError := s.h.execute(opCtx, "ws", req)
		if opCtx.Err() == context.Canceled {
			return
		}
		if requestError {
			payload, _ := json.Marshal(res.Errors)
			_ = s.write(wsMessage{ID: msg.ID, Type: "error", Payload: payload})
			return
		}
		payload, err := json.Marshal(res)
		if err != nil {
			s.h.opt.Logger.Warn("server: encode result", "id", msg.ID, "error", err)
			return
		}
		if s.write(wsMessage{ID: msg.ID, Type: "next", Payload: payload}) == nil {
			_ = s.write(wsMessage{ID: msg.ID, Type: "complete"})
		}
	}()
	return nil
}

// finish cancels the operation id and forgets it.
func (s *wsSession) finish(id string) {
	s.mu.Lock()
	cancel := s.ops[id]
	delete(s.ops, id)
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *wsSession) write(msg wsMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}

func (s *wsSession) close(code int, reason string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeTimeout))
}
