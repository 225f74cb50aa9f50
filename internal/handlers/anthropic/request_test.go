package anthropic

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestBuildMessageRequest_TranslatesBasicMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := `{"model":"claude-sonnet-4.5","max_tokens":256,"messages":[{"role":"user","content":"hello"}],"stream":false}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/v1/messages", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	req, errResp := buildMessageRequest(c)
	require.Nil(t, errResp)
	require.NotNil(t, req)
	require.Equal(t, "claude-sonnet-4.5", req.model)
	require.False(t, req.isStreaming())

	contents, ok := req.gemReq["contents"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, contents)
}

func TestBuildMessageRequest_RejectsMissingModel(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := `{"messages":[{"role":"user","content":"hello"}]}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/v1/messages", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	req, errResp := buildMessageRequest(c)
	require.Nil(t, req)
	require.NotNil(t, errResp)
	require.Equal(t, 400, errResp.status)
}

func TestBuildMessageRequest_RejectsMissingMessages(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := `{"model":"claude-sonnet-4.5"}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/v1/messages", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	req, errResp := buildMessageRequest(c)
	require.Nil(t, req)
	require.NotNil(t, errResp)
	require.Equal(t, 400, errResp.status)
}
