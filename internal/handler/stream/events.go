package stream

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"Wonderland/internal/agent"
	"Wonderland/internal/domain/models"
	"Wonderland/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

type client struct {
	send  chan models.Event
	types map[models.EventType]struct{}
}

func (c *client) wants(t models.EventType) bool {
	if len(c.types) == 0 {
		return true
	}
	_, ok := c.types[t]
	return ok
}

// EventStream fans bus events out to WebSocket clients. A slow client loses
// events rather than holding up the bus.
type EventStream struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *logger.Logger

	unregister func()
}

func NewEventStream(lgr *logger.Logger) *EventStream {
	return &EventStream{
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   lgr.With(logger.Component("event_stream")),
	}
}

// Attach subscribes the stream to bus.
func (s *EventStream) Attach(bus *agent.Bus) {
	s.unregister = bus.RegisterListener(s.Publish)
}

func (s *EventStream) Detach() {
	if s.unregister != nil {
		s.unregister()
	}
	s.mu.Lock()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
	s.mu.Unlock()
}

// Publish queues evt for every interested client without blocking.
func (s *EventStream) Publish(_ context.Context, evt models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if !c.wants(evt.Type) {
			continue
		}
		select {
		case c.send <- evt:
		default:
			s.logger.Warn("stream client lagging, event dropped", logger.String("type", string(evt.Type)))
		}
	}
}

func (s *EventStream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *EventStream) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/events", s.Serve)
}

// Serve upgrades the request. ?types=UPDATE_RATE,HEARTBEAT limits the stream.
func (s *EventStream) Serve(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logger.Error(err))
		return nil
	}

	cl := &client{send: make(chan models.Event, clientBuffer), types: parseTypes(c.QueryParam("types"))}
	s.mu.Lock()
	s.clients[cl] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("stream client connected", logger.String("remote", c.RealIP()))

	done := make(chan struct{})
	go s.readLoop(conn, done)
	s.writeLoop(conn, cl, done)

	s.mu.Lock()
	delete(s.clients, cl)
	s.mu.Unlock()
	_ = conn.Close()
	return nil
}

// readLoop drains control frames and reports when the peer goes away.
func (s *EventStream) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *EventStream) writeLoop(conn *websocket.Conn, cl *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case evt, ok := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"))
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func parseTypes(raw string) map[models.EventType]struct{} {
	if raw == "" {
		return nil
	}
	out := make(map[models.EventType]struct{})
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out[models.EventType(strings.ToUpper(t))] = struct{}{}
		}
	}
	return out
}
