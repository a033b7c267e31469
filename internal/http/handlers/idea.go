package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/ideaforge-backend/internal/http/response"
	"github.com/yungbote/ideaforge-backend/internal/services"
)

type IdeaHandler struct {
	ideas services.IdeaService
}

func NewIdeaHandler(ideas services.IdeaService) *IdeaHandler {
	return &IdeaHandler{ideas: ideas}
}

type createIdeaRequest struct {
	Title       string          `json:"title"`
	Content     json.RawMessage `json:"content"`
	ContentText string          `json:"contentText"`
	UserID      string          `json:"userId"`
}

// Fields are pointers so an absent key is told apart from an empty one.
type updateIdeaRequest struct {
	Title       *string         `json:"title"`
	Content     json.RawMessage `json:"content"`
	ContentText *string         `json:"contentText"`
}

// GET /api/ideas
func (h *IdeaHandler) ListIdeas(c *gin.Context) {
	params := services.ListIdeasParams{
		Search: strings.TrimSpace(c.Query("search")),
		Status: strings.TrimSpace(c.Query("status")),
	}
	if raw := strings.TrimSpace(c.Query("userId")); raw != "" {
		uid, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
			return
		}
		params.UserID = &uid
	}
	list, err := h.ideas.List(c.Request.Context(), params)
	if err != nil {
		response.RespondAPIError(c, classify(err, "list_ideas_failed"), "list_ideas_failed")
		return
	}
	response.RespondOK(c, gin.H{"ideas": list})
}

// POST /api/ideas
func (h *IdeaHandler) CreateIdea(c *gin.Context) {
	var req createIdeaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_input", fmt.Errorf("title and userId are required"))
		return
	}
	uid, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	idea, err := h.ideas.Create(c.Request.Context(), services.CreateIdeaInput{
		UserID:      uid,
		Title:       req.Title,
		Content:     req.Content,
		ContentText: req.ContentText,
	})
	if err != nil {
		response.RespondAPIError(c, classify(err, "create_idea_failed"), "create_idea_failed")
		return
	}
	response.RespondCreated(c, gin.H{"idea": idea})
}

// GET /api/ideas/:id
func (h *IdeaHandler) GetIdea(c *gin.Context) {
	id, ok := ideaIDParam(c)
	if !ok {
		return
	}
	detail, err := h.ideas.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, classify(err, "get_idea_failed"), "get_idea_failed")
		return
	}
	response.RespondOK(c, gin.H{"idea": detail})
}

// PATCH /api/ideas/:id
func (h *IdeaHandler) UpdateIdea(c *gin.Context) {
	id, ok := ideaIDParam(c)
	if !ok {
		return
	}
	var req updateIdeaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	idea, err := h.ideas.Update(c.Request.Context(), id, services.UpdateIdeaInput{
		Title:       req.Title,
		Content:     req.Content,
		ContentText: req.ContentText,
	})
	if err != nil {
		response.RespondAPIError(c, classify(err, "update_idea_failed"), "update_idea_failed")
		return
	}
	response.RespondOK(c, gin.H{"idea": idea})
}

// DELETE /api/ideas/:id
func (h *IdeaHandler) DeleteIdea(c *gin.Context) {
	id, ok := ideaIDParam(c)
	if !ok {
		return
	}
	if err := h.ideas.Delete(c.Request.Context(), id); err != nil {
		response.RespondAPIError(c, classify(err, "delete_idea_failed"), "delete_idea_failed")
		return
	}
	response.RespondOK(c, gin.H{"success": true})
}

// POST /api/results/:id/dismiss
func (h *IdeaHandler) DismissResult(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_result_id", err)
		return
	}
	if err := h.ideas.DismissResult(c.Request.Context(), id); err != nil {
		response.RespondAPIError(c, classify(err, "dismiss_result_failed"), "dismiss_result_failed")
		return
	}
	response.RespondOK(c, gin.H{"success": true})
}

func ideaIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_idea_id", err)
		return uuid.Nil, false
	}
	return id, true
}
