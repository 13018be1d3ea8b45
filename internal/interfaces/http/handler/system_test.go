package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSystemHandler(t *testing.T) {
	h := NewSystemHandler("org-backend", "1.2.3")
	assert.NotNil(t, h)
	assert.False(t, h.startTime.IsZero())
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("org-backend", "1.2.3")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/system/info", nil)

	h.GetSystemInfo(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "org-backend", data["name"])
	assert.Equal(t, "1.2.3", data["version"])
	assert.NotEmpty(t, data["go_version"])
	assert.NotEmpty(t, data["uptime"])
}

func TestSystemHandler_Health(t *testing.T) {
	t.Run("healthy without checks", func(t *testing.T) {
		h := NewSystemHandler("org-backend", "dev")

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

		h.Health(c)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		data := resp.Data.(map[string]any)
		assert.Equal(t, "ok", data["status"])
	})

	t.Run("failing dependency answers 503", func(t *testing.T) {
		h := NewSystemHandler("org-backend", "dev").
			WithHealthCheck("database", func(ctx context.Context) error { return nil }).
			WithHealthCheck("redis", func(ctx context.Context) error { return errors.New("dial tcp: refused") })

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

		h.Health(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeResponse(t, w)
		assert.False(t, resp.Success)
		data := resp.Data.(map[string]any)
		assert.Equal(t, "degraded", data["status"])
		checks := data["checks"].(map[string]any)
		assert.Equal(t, "ok", checks["database"])
		assert.Equal(t, "dial tcp: refused", checks["redis"])
	})

	t.Run("details are reported without degrading status", func(t *testing.T) {
		h := NewSystemHandler("org-backend", "dev").
			WithHealthCheck("database", func(ctx context.Context) error { return nil }).
			WithHealthDetail("database_pool", func(ctx context.Context) (any, error) {
				return map[string]int{"open_connections": 3, "in_use": 1}, nil
			}).
			WithHealthDetail("broken", func(ctx context.Context) (any, error) {
				return nil, errors.New("stats unavailable")
			})

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

		h.Health(c)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "ok", data["status"])
		details := data["details"].(map[string]any)
		pool := details["database_pool"].(map[string]any)
		assert.Equal(t, float64(3), pool["open_connections"])
		assert.Equal(t, float64(1), pool["in_use"])
		assert.Equal(t, "stats unavailable", details["broken"])
	})
}
