package handlers

import (
	"errors"
	"net/http"

	"github.com/yungbote/ideaforge-backend/internal/platform/apierr"
	"github.com/yungbote/ideaforge-backend/internal/research"
	"github.com/yungbote/ideaforge-backend/internal/services"
)

// classify maps service and research errors onto HTTP statuses.
func classify(err error, fallbackCode string) *apierr.Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, research.ErrNotFound):
		return apierr.New(http.StatusNotFound, "idea_not_found", err)
	case errors.Is(err, services.ErrResultNotFound):
		return apierr.New(http.StatusNotFound, "result_not_found", err)
	case errors.Is(err, research.ErrInsufficientContent):
		return apierr.New(http.StatusBadRequest, "insufficient_content", err)
	case errors.Is(err, services.ErrInvalidInput):
		return apierr.New(http.StatusBadRequest, "invalid_input", err)
	case errors.Is(err, research.ErrAlreadyRunning):
		return apierr.New(http.StatusConflict, "research_already_running", err)
	}
	return apierr.From(err, fallbackCode)
}
