package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ideaforge-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError writes err using the status and code of the *apierr.Error
// it wraps, or a 500 with fallbackCode when it wraps none.
func RespondAPIError(c *gin.Context, err error, fallbackCode string) {
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		ae = apierr.New(http.StatusInternalServerError, fallbackCode, err)
	}
	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	code := ae.Code
	if code == "" {
		code = fallbackCode
	}
	RespondError(c, status, code, ae.Err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
