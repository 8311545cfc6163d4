package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 5 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
	// Outbound queue per session. Mission re-publishes are paced by the
	// dispatcher, so the queue only absorbs short bursts.
	sendQueueSize = 32
)

// session is one vehicle connection. The write pump is the only writer
// on the socket; everything outbound goes through the send channel.
type session struct {
	vehicleID string
	conn      *websocket.Conn
	gw        *Gateway
	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(vehicleID string, conn *websocket.Conn, gw *Gateway) *session {
	return &session{
		vehicleID: vehicleID,
		conn:      conn,
		gw:        gw,
		send:      make(chan []byte, sendQueueSize),
		closed:    make(chan struct{}),
	}
}

// enqueue hands a frame to the write pump. A full queue means the
// vehicle stopped reading; the session is torn down rather than letting
// stale commands pile up.
func (s *session) enqueue(ctx context.Context, data []byte) error {
	select {
	case s.send <- data:
		return nil
	case <-s.closed:
		return fmt.Errorf("vehicle %s is not connected", s.vehicleID)
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.close()
	return fmt.Errorf("vehicle %s send queue overflow, dropping session", s.vehicleID)
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}

// readPump reads frames until the connection dies. Runs as the only
// reader on the socket; pong handling requires it.
func (s *session) readPump() {
	defer func() {
		s.close()
		s.gw.detach(s)
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				fmt.Printf("Warning: session %s read error: %v\n", s.vehicleID, err)
			}
			return
		}
		s.gw.handleFrame(s, data)
	}
}

// writePump drains the send queue and keeps the connection alive with
// pings
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}
