package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func performRequest(inboundID string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inboundID != "" {
		req.Header.Set(HeaderRequestID, inboundID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDEchoesValidInboundID(t *testing.T) {
	id := uuid.New().String()
	w := performRequest(id)
	assert.Equal(t, id, w.Header().Get(HeaderRequestID))
}

func TestRequestIDReplacesMalformedInboundID(t *testing.T) {
	w := performRequest("not-a-uuid")
	got := w.Header().Get(HeaderRequestID)
	_, err := uuid.Parse(got)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", got)
}

func TestRequestIDGeneratedWhenAbsent(t *testing.T) {
	w := performRequest("")
	_, err := uuid.Parse(w.Header().Get(HeaderRequestID))
	assert.NoError(t, err)
}
