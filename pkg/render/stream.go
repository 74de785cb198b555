package render

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/picogrid/hexfleet/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 8
)

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Stream broadcasts every frame as GeoJSON to connected websocket clients.
// Slow clients miss frames rather than stall the tick loop.
type Stream struct {
	upgrader websocket.Upgrader
	log      logger.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	last    []byte
	closed  bool
	wg      sync.WaitGroup
}

// NewStream creates an empty hub. Mount it on an HTTP mux.
func NewStream(log logger.Logger) *Stream {
	return &Stream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     log.WithPrefix("stream"),
		clients: make(map[*streamClient]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the client. The most recent
// frame is sent immediately.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	c := &streamClient{conn: conn, send: make(chan []byte, sendBuffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	if s.last != nil {
		c.send <- s.last
	}
	s.wg.Add(2)
	s.mu.Unlock()

	s.log.Infof("client %s connected", r.RemoteAddr)
	go s.writePump(c)
	go s.readPump(c)
}

// Render implements Renderer.
func (s *Stream) Render(_ context.Context, f *Frame) error {
	data, err := MarshalFrame(f)
	if err != nil {
		return fmt.Errorf("stream frame %d: %w", f.Seq, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = data
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.log.Debugf("dropping frame %d for slow client", f.Seq)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (s *Stream) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client and waits for their goroutines.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for c := range s.clients {
		s.remove(c)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// remove must be called with s.mu held.
func (s *Stream) remove(c *streamClient) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
}

func (s *Stream) writePump(c *streamClient) {
	defer s.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Debugf("write failed: %v", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Stream) readPump(c *streamClient) {
	defer s.wg.Done()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	s.mu.Lock()
	s.remove(c)
	s.mu.Unlock()
}
