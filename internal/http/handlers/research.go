package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/ideaforge-backend/internal/http/response"
	"github.com/yungbote/ideaforge-backend/internal/services"
)

type ResearchHandler struct {
	ideas services.IdeaService
}

func NewResearchHandler(ideas services.IdeaService) *ResearchHandler {
	return &ResearchHandler{ideas: ideas}
}

// POST /api/ideas/:id/research
func (h *ResearchHandler) StartResearch(c *gin.Context) {
	id, ok := ideaIDParam(c)
	if !ok {
		return
	}
	run, err := h.ideas.StartResearch(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, classify(err, "start_research_failed"), "start_research_failed")
		return
	}
	response.RespondOK(c, gin.H{
		"success": true,
		"message": "Research started",
		"ideaId":  run.IdeaID,
		"runId":   run.RunID,
	})
}

// GET /api/ideas/:id/research
func (h *ResearchHandler) GetProgress(c *gin.Context) {
	id, ok := ideaIDParam(c)
	if !ok {
		return
	}
	snap, err := h.ideas.GetProgress(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, classify(err, "get_progress_failed"), "get_progress_failed")
		return
	}
	response.RespondOK(c, snap)
}
