package generic

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gcli2api-go/internal/upstream"
	"github.com/stretchr/testify/require"
)

func TestGenerateHitsGenerateContentWithBearerToken(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	p := New("copilot", srv.URL, "tok-123", nil)
	resp := p.Generate(upstream.RequestContext{Body: []byte(`{}`)})
	require.NoError(t, resp.Err)
	require.NotNil(t, resp.Resp)
	defer resp.Resp.Body.Close()

	require.Equal(t, "Bearer tok-123", gotAuth)
	require.Equal(t, "/v1internal:generateContent", gotPath)
}

func TestSupportsModelDelegatesToSuppliedPredicate(t *testing.T) {
	p := New("copilot", "https://example.test", "", func(m string) bool { return m == "gpt-5" })
	require.True(t, p.SupportsModel("gpt-5"))
	require.False(t, p.SupportsModel("gemini-3-pro"))

	none := New("kiro-gateway", "https://example.test", "", nil)
	require.False(t, none.SupportsModel("anything"))
}
