// Package wsfeed implements the server side of the balance/order diff
// stream: accepting inbound subscriber connections and adapting each one
// to the domain.WsSubscriber interface the account actor pushes frames
// through.
//
// The teacher's pkg/websocket and libs/shared/websocket are both outbound,
// reconnecting dialer clients for subscribing to upstream exchange feeds —
// the opposite direction from what's needed here, so neither is reused as
// a framework. What does carry over is the narrow idea behind
// pkg/websocket/writer.go: a bounded outbound queue per connection with an
// explicit overflow policy, so one slow subscriber can never stall the
// account actor that feeds it. That idea is rebuilt here directly on
// github.com/gorilla/websocket, promoted from an indirect/transitive
// dependency to direct use since nothing else in the pack exposes a
// server-push-shaped abstraction.
package wsfeed

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"
)

// Config controls the upgrader and each connection's outbound queue.
type Config struct {
	WriteQueueCapacity int
	WriteTimeout       time.Duration
	PongTimeout        time.Duration
	PingInterval       time.Duration
}

// DefaultConfig mirrors the account actor's default wsMessagesInterval:
// a queue deep enough to hold a few diff ticks before a subscriber is
// considered unresponsive.
func DefaultConfig() Config {
	return Config{
		WriteQueueCapacity: 32,
		WriteTimeout:       5 * time.Second,
		PongTimeout:        60 * time.Second,
		PingInterval:       30 * time.Second,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Subscriber is one connected websocket client's outbound mailbox. It
// implements domain.WsSubscriber: Send enqueues without blocking, dropping
// the connection on overflow rather than ever blocking the account actor
// that calls it.
type Subscriber struct {
	conn *websocket.Conn
	cfg  Config

	out  chan []byte
	done chan struct{}

	closeOnce sync.Once
}

// Accept upgrades an inbound HTTP request to a websocket connection and
// starts its write pump. The caller is responsible for delivering the
// returned Subscriber to the right AccountActor via WsSubscribe.
func Accept(w http.ResponseWriter, r *http.Request, cfg Config) (*Subscriber, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	sub := &Subscriber{
		conn: conn,
		cfg:  cfg,
		out:  make(chan []byte, cfg.WriteQueueCapacity),
		done: make(chan struct{}),
	}
	go sub.writePump()
	go sub.readPump()
	return sub, nil
}

// Send enqueues frame for delivery without blocking. Returns false (and
// closes the connection) if the outbound queue is full — a persistently
// slow reader is treated as disconnected rather than allowed to apply
// backpressure to the account actor.
func (s *Subscriber) Send(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- frame:
		return true
	default:
		logs.Errorf("wsfeed: subscriber outbound queue full, dropping connection")
		s.close()
		return false
	}
}

// Done returns a channel closed once the subscriber has disconnected.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Subscriber) writePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	defer s.close()

	for {
		select {
		case <-s.done:
			return
		case frame, ok := <-s.out:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only exists to detect disconnects (control frames, EOF); the
// subscriber protocol is outbound-only, per spec.md §4.1.
func (s *Subscriber) readPump() {
	defer s.close()
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
