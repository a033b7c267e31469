package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
	"github.com/yungbote/ideaforge-backend/internal/realtime"
)

type StreamHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewStreamHandler(log *logger.Logger, hub *realtime.SSEHub) *StreamHandler {
	return &StreamHandler{log: log.With("handler", "StreamHandler"), hub: hub}
}

// GET /api/ideas/:id/stream
//
// Events are hints; the client still polls GET /api/ideas/:id/research for
// the authoritative snapshot.
func (h *StreamHandler) StreamIdea(c *gin.Context) {
	id, ok := ideaIDParam(c)
	if !ok {
		return
	}
	client := h.hub.NewSSEClient()
	defer h.hub.CloseClient(client)
	h.hub.AddChannel(client, realtime.IdeaChannel(id))
	h.log.Debug("SSE stream open", "idea_id", id.String(), "client_id", client.ID.String())
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
