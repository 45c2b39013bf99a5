package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nrelay-go/nrelay/internal/events"
)

const (
	feedQueueDepth   = 64
	feedWriteTimeout = 5 * time.Second
	feedPongWait     = 60 * time.Second
	feedPingPeriod   = feedPongWait * 9 / 10
)

var feedSeq atomic.Uint64

// feedMessage is one websocket frame of the live feed.
type feedMessage struct {
	Event   events.EventType `json:"event"`
	Source  string           `json:"source"`
	Payload interface{}      `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by CORS and the token middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedConn queues feed messages for one websocket. Messages are dropped
// when the queue is full so a slow reader never blocks the event bus.
type feedConn struct {
	ws     *websocket.Conn
	send   chan []byte
	closed atomic.Bool
}

func (f *feedConn) enqueue(b []byte) {
	if f.closed.Load() {
		return
	}
	select {
	case f.send <- b:
	default:
	}
}

func (f *feedConn) writePump(ctx context.Context) {
	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()
	defer f.ws.Close()

	for {
		select {
		case <-ctx.Done():
			f.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(feedWriteTimeout))
			return
		case msg := <-f.send:
			f.ws.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := f.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			f.ws.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := f.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and returns when the peer goes away.
func (f *feedConn) readPump() {
	f.ws.SetReadLimit(4096)
	f.ws.SetReadDeadline(time.Now().Add(feedPongWait))
	f.ws.SetPongHandler(func(string) error {
		f.ws.SetReadDeadline(time.Now().Add(feedPongWait))
		return nil
	})
	for {
		if _, _, err := f.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// handleFeed upgrades to a websocket that streams tapped packets and
// notifications until either side closes.
func (s *Server) handleFeed(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("API: feed upgrade failed")
		return
	}

	fc := &feedConn{ws: ws, send: make(chan []byte, feedQueueDepth)}
	name := fmt.Sprintf("api-feed-%d", feedSeq.Add(1))

	forward := func(ctx context.Context, ev events.Event) error {
		b, err := json.Marshal(feedMessage{Event: ev.Type, Source: ev.Source, Payload: ev.Payload})
		if err != nil {
			return fmt.Errorf("failed to encode feed message: %w", err)
		}
		fc.enqueue(b)
		return nil
	}

	feedEvents := []events.EventType{events.EventPacketTapped, events.EventNotification}
	for _, t := range feedEvents {
		s.eventBus.Subscribe(t, name, forward)
	}
	log.Debug().Str("feed", name).Msg("API: feed connected")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		fc.readPump()
		cancel()
	}()
	fc.writePump(ctx)
	cancel()

	fc.closed.Store(true)
	for _, t := range feedEvents {
		s.eventBus.Unsubscribe(t, name)
	}
	log.Debug().Str("feed", name).Msg("API: feed disconnected")
}
