package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, incomingID string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var captured string
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Use(Middleware())
	r.GET("/health", func(c *gin.Context) {
		captured = Value(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	if incomingID != "" {
		req.Header.Set("X-Request-ID", incomingID)
	}
	r.ServeHTTP(w, req)
	return w, captured
}

func TestReusesCallerRequestID(t *testing.T) {
	w, captured := serve(t, "frontend-trace-42")

	assert.Equal(t, "frontend-trace-42", captured)
	assert.Equal(t, "frontend-trace-42", w.Header().Get("X-Request-ID"))
}

func TestGeneratesIDWhenMissing(t *testing.T) {
	w, captured := serve(t, "")

	require.NotEmpty(t, captured)
	assert.Equal(t, captured, w.Header().Get("X-Request-ID"))
	_, err := uuid.Parse(captured)
	assert.NoError(t, err)
}
