package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"scriptsignal/internal/log"
	"scriptsignal/pkg/signal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const defaultOutboxSize = 64

// Handlers exposes a Bus over HTTP.
type Handlers struct {
	bus        Bus
	outboxSize int
}

// NewHandlers creates the handlers. outboxSize bounds the messages buffered
// per streaming subscriber.
func NewHandlers(bus Bus, outboxSize int) *Handlers {
	if outboxSize <= 0 {
		outboxSize = defaultOutboxSize
	}
	return &Handlers{bus: bus, outboxSize: outboxSize}
}

// HandleList lists the known signals.
func (h *Handlers) HandleList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"signals": h.bus.Stats()})
}

// HandleFire fires the request body, which must be empty or valid JSON.
func (h *Handlers) HandleFire(c *gin.Context) {
	name := c.Param("name")

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload must be valid JSON"})
		return
	}

	n, err := h.bus.Fire(c.Request.Context(), name, body)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"signal": name, "listeners": n})
}

// HandleWait blocks until the signal fires. An optional timeout query
// parameter bounds the wait; without it the wait lasts as long as the
// request does.
func (h *Handlers) HandleWait(c *gin.Context) {
	name := c.Param("name")
	ctx := c.Request.Context()

	if raw := c.Query("timeout"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeout"})
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	elapsed, err := h.bus.Wait(ctx, name)
	switch {
	case errors.Is(err, context.Canceled):
		// client went away
		return
	case err != nil:
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"signal": name, "elapsedMs": elapsed.Milliseconds()})
}

// HandleWebSocket streams fires to a WebSocket client until it disconnects.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	name := c.Param("name")

	sub, err := h.bus.Subscribe(name, h.outboxSize)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade to websocket")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Reading is required to process control frames; any error means the
	// client is gone.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.bus.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case <-sub.Ready():
			for _, msg := range sub.Drain() {
				if err := conn.WriteJSON(gin.H{"type": "signal", "message": msg}); err != nil {
					log.Debug().Err(err).Str("signal", name).Msg("websocket write failed")
					return
				}
			}
		}
	}
}

// HandleSSE streams fires as server-sent events.
func (h *Handlers) HandleSSE(c *gin.Context) {
	name := c.Param("name")

	sub, err := h.bus.Subscribe(name, h.outboxSize)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-h.bus.Done():
			c.SSEvent("end", gin.H{"signal": name})
			return false
		case <-sub.Ready():
			for _, msg := range sub.Drain() {
				c.SSEvent("signal", msg)
			}
			return true
		}
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrTooManySignals):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrHubClosed), errors.Is(err, signal.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	case errors.Is(err, signal.ErrEmptyName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
