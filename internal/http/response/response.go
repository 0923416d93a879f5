package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harmony-sds/workflow-core/internal/domain/work"
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

// RespondWorkError maps a domain error onto the wire. Unknown errors are
// reported as 500 without leaking internals beyond the message.
func RespondWorkError(c *gin.Context, err error) {
	code := work.CodeOf(err)
	RespondError(c, statusOf(code), string(code), err)
}

func statusOf(code work.ErrorCode) int {
	switch code {
	case work.CodeValidation:
		return http.StatusBadRequest
	case work.CodeNotFound:
		return http.StatusNotFound
	case work.CodeConflict:
		return http.StatusConflict
	case work.CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case work.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
