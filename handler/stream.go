package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dtgate/core/service"
)

// summaryPushInterval is how often a connected dashboard receives a fresh
// summary frame.
const summaryPushInterval = 30 * time.Second

// StreamHandler pushes environment summaries over WebSocket.
type StreamHandler struct {
	summary  *service.SummaryService
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(summary *service.SummaryService) *StreamHandler {
	return &StreamHandler{
		summary: summary,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}
}

// StreamSummary handles GET /api/stream/summary (WebSocket)
// Sends a summary frame immediately on connect, then one every push
// interval until the client disconnects.
func (h *StreamHandler) StreamSummary(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Handle WebSocket close messages
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	if !h.pushSummary(ctx, conn) {
		return
	}

	ticker := time.NewTicker(summaryPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !h.pushSummary(ctx, conn) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// pushSummary writes one summary frame. Aggregation failures are reported
// to the client without closing the stream; only write failures end it.
func (h *StreamHandler) pushSummary(ctx context.Context, conn *websocket.Conn) bool {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

	summary, err := h.summary.Get(ctx)
	if err != nil {
		if writeErr := conn.WriteJSON(gin.H{"error": err.Error()}); writeErr != nil {
			log.Printf("Summary stream write failed: %v", writeErr)
			return false
		}
		return true
	}

	if err := conn.WriteJSON(summary); err != nil {
		log.Printf("Summary stream write failed: %v", err)
		return false
	}
	return true
}
