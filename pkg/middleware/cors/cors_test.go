package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func perform(t *testing.T, origins []string, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Use(New(origins))
	r.GET("/papers", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/papers", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAllowsConfiguredOrigin(t *testing.T) {
	w := perform(t, []string{"https://papers.example.edu"}, http.MethodGet, "https://papers.example.edu")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://papers.example.edu", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRejectsUnknownOrigin(t *testing.T) {
	w := perform(t, []string{"https://papers.example.edu"}, http.MethodGet, "https://evil.example.com")

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflightShortCircuits(t *testing.T) {
	w := perform(t, nil, http.MethodOptions, "https://papers.example.edu")

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestExposesDownloadFilenameHeader(t *testing.T) {
	w := perform(t, nil, http.MethodGet, "https://papers.example.edu")

	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}
