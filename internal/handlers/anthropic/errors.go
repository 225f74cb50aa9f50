package anthropic

import (
	common "gcli2api-go/internal/handlers/common"
	"github.com/gin-gonic/gin"
)

// messageError mirrors openai.chatError: a deferred HTTP response the
// caller writes once, carrying an optional raw upstream body so the
// original upstream error details pass through untouched (spec §7's
// UpstreamNonRetryable kind).
type messageError struct {
	status  int
	message string
	code    string
	body    []byte
}

func (e *messageError) write(c *gin.Context) {
	if e == nil {
		return
	}
	if len(e.body) > 0 {
		common.AbortWithUpstreamError(c, e.status, e.code, e.message, e.body)
		return
	}
	common.AbortWithError(c, e.status, e.code, e.message)
}

func newMessageError(status int, message, code string) *messageError {
	return &messageError{status: status, message: message, code: code}
}

func newMessageErrorWithBody(status int, message, code string, body []byte) *messageError {
	return &messageError{status: status, message: message, code: code, body: body}
}
