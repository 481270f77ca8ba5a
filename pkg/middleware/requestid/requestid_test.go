package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func run(header string) (string, string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("X-Request-ID", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return seen, w.Header().Get("X-Request-ID")
}

func TestReusesWellFormedID(t *testing.T) {
	seen, echoed := run("req-12345678")
	assert.Equal(t, "req-12345678", seen)
	assert.Equal(t, seen, echoed)
}

func TestReplacesMissingOrMalformedID(t *testing.T) {
	for _, header := range []string{"", "short", "has spaces and\nnewlines"} {
		seen, echoed := run(header)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
		assert.Equal(t, seen, echoed)
	}
}
