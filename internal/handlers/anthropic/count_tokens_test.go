package anthropic

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestCountTokens_ReturnsPositiveEstimateWithoutUpstreamCall(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{}

	body := `{"model":"claude-sonnet-4.5","messages":[{"role":"user","content":"What is the capital of France?"}]}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/v1/messages/count_tokens", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CountTokens(c)

	require.Equal(t, 200, w.Code)
	require.Contains(t, w.Body.String(), "input_tokens")
}

func TestEstimateTokens_ScalesWithTextLength(t *testing.T) {
	short := estimateTokens("hi")
	long := estimateTokens(strings.Repeat("word ", 200))
	require.Greater(t, long, short)
	require.Greater(t, short, 0)
}
