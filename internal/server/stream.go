package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atikulmunna/logrelay/internal/model"
)

var keepAliveFrame = []byte(": keep-alive\n\n")

// handleStream serves GET /logs/stream/:name as Server-Sent Events: the
// current backlog first, then live entries, with a comment heartbeat after
// each idle keep-alive interval.
func (s *Server) handleStream(c *gin.Context) {
	name := c.Param("name")
	m := s.manager()

	backlog, sub := m.Subscribe(name)
	defer m.Unsubscribe(sub)

	log := s.log.With(zap.String("logger", name), zap.String("subscription", sub.ID))
	log.Debug("stream opened", zap.Int("backlog", len(backlog)))
	defer func() {
		log.Debug("stream closed", zap.Int64("dropped", sub.Dropped()))
	}()

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	w := c.Writer
	for _, entry := range backlog {
		if err := writeEvent(w, entry); err != nil {
			return
		}
	}
	w.Flush()

	ctx := c.Request.Context()
	timer := time.NewTimer(s.keepAlive)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeEvent(w, entry); err != nil {
				return
			}
			w.Flush()
		case <-timer.C:
			if _, err := w.Write(keepAliveFrame); err != nil {
				return
			}
			w.Flush()
		}
		timer.Reset(s.keepAlive)
	}
}

// writeEvent writes entry as one SSE data event.
func writeEvent(w io.Writer, entry model.LogEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const wsWriteWait = 10 * time.Second

// handleWebSocket serves GET /logs/ws/:name: the same backlog-then-live
// protocol as the SSE stream, one JSON text frame per entry, with pings on
// idle.
func (s *Server) handleWebSocket(c *gin.Context) {
	name := c.Param("name")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.String("logger", name), zap.Error(err))
		return
	}
	defer conn.Close()

	m := s.manager()
	backlog, sub := m.Subscribe(name)
	defer m.Unsubscribe(sub)

	// Read pump: detect client disconnect.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(entry model.LogEntry) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(entry)
	}

	for _, entry := range backlog {
		if err := send(entry); err != nil {
			return
		}
	}

	ctx := c.Request.Context()
	ping := time.NewTicker(s.keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case entry, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWait))
				return
			}
			if err := send(entry); err != nil {
				s.log.Debug("websocket write failed", zap.String("logger", name), zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
