package httpapi

import (
	"io"
	"net/http"
	"time"

	"fleet-platform/internal/workflow"
	"fleet-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	sseKeepAlive = 25 * time.Second
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
)

func (h Handlers) Board(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	recs, err := h.Engine.Store().List(c.Request.Context(), workflow.ViewerFilter(a))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflow.BuildBoard(recs, a))
}

// BoardStream pushes a freshly projected board on every snapshot (SSE).
func (h Handlers) BoardStream(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sub, err := h.Engine.Store().Subscribe(ctx, workflow.ViewerFilter(a))
	if err != nil {
		writeError(c, err)
		return
	}
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap, ok := <-sub.Updates():
			if !ok {
				return false
			}
			c.SSEvent("board", workflow.BuildBoard(snap, a))
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Unix())
			return true
		}
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type liveMessage struct {
	Type   string                  `json:"type"`
	Record *workflow.RequestRecord `json:"record,omitempty"`
}

// Live streams one record over a websocket: the current state first, then every
// acknowledged version. The connection closes when the record leaves the
// viewer's visibility.
func (h Handlers) Live(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id := c.Param("id")
	ctx := c.Request.Context()
	if _, err := h.Engine.Get(ctx, a, id); err != nil {
		writeError(c, err)
		return
	}
	sub, err := h.Engine.Store().Subscribe(ctx, workflow.ViewerFilter(a))
	if err != nil {
		writeError(c, err)
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.FromGin(c).Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPongWait / 2)
	defer ping.Stop()
	var sent int64
	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case snap, ok := <-sub.Updates():
			if !ok {
				return
			}
			rec, found := findVisible(snap, a, id)
			if !found {
				_ = conn.WriteJSON(liveMessage{Type: "gone"})
				return
			}
			if rec.Version == sent {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(liveMessage{Type: "record", Record: &rec}); err != nil {
				return
			}
			sent = rec.Version
		}
	}
}

func findVisible(snap []workflow.RequestRecord, a workflow.Actor, id string) (workflow.RequestRecord, bool) {
	for _, r := range snap {
		if r.ID == id && workflow.Visible(a, r) {
			return r, true
		}
	}
	return workflow.RequestRecord{}, false
}
