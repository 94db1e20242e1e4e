package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseMetaCollectsValues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ResponseMeta())
	r.GET("/x", func(c *gin.Context) {
		SetCacheHit(c, true)
		SetMeta(c, "count", 3)
		c.JSON(http.StatusOK, Meta(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, float64(3), meta["count"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestMetaWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, Meta(c))

	SetMeta(c, "count", 1)
	meta := Meta(c)
	require.NotNil(t, meta)
	assert.Equal(t, 1, meta["count"])
	assert.NotContains(t, meta, "processing_time_ms")
}
