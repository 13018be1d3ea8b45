package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	var seen string
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("reuses caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "req-abc-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-abc-123", seen)
		assert.Equal(t, "req-abc-123", w.Header().Get(RequestIDHeader))
	})

	t.Run("replaces oversized or unprintable ids", func(t *testing.T) {
		for _, bad := range []string{strings.Repeat("a", MaxRequestIDLength+1), "has space"} {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(RequestIDHeader, bad)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.NotEqual(t, bad, seen)
			_, err := uuid.Parse(seen)
			assert.NoError(t, err)
		}
	})
}

func TestEventMetadata(t *testing.T) {
	var (
		md        shared.EventMetadata
		tenant    string
		requestID string
	)
	router := gin.New()
	router.Use(RequestID(), EventMetadata())
	router.GET("/test", func(c *gin.Context) {
		md = shared.EventMetadataFromContext(c.Request.Context())
		tenant = GetTenantID(c)
		requestID = logger.GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	t.Run("correlation defaults to the request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "req-1")
		req.Header.Set(TenantHeader, "tenant-a")
		router.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "tenant-a", md.TenantID)
		assert.Equal(t, "tenant-a", tenant)
		assert.Equal(t, "req-1", md.CorrelationID)
		assert.Empty(t, md.CausationID)
		assert.Equal(t, map[string]any{"request_id": "req-1"}, md.Headers)
		assert.Equal(t, "req-1", requestID)
	})

	t.Run("caller correlation id wins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(CorrelationHeader, "workflow-9")
		router.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "workflow-9", md.CorrelationID)
		assert.Empty(t, md.TenantID)
		assert.Empty(t, tenant)
	})

	t.Run("longest accepted ids reach the event metadata", func(t *testing.T) {
		longest := strings.Repeat("r", MaxRequestIDLength)
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, longest)
		router.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, longest, md.CorrelationID)

		req = httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(CorrelationHeader, strings.Repeat("c", MaxRequestIDLength))
		router.ServeHTTP(httptest.NewRecorder(), req)
		assert.Len(t, md.CorrelationID, shared.MaxCorrelationIDLength)
	})

	t.Run("oversized correlation id falls back to the request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "req-2")
		req.Header.Set(CorrelationHeader, strings.Repeat("c", MaxRequestIDLength+1))
		router.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "req-2", md.CorrelationID)
	})

	t.Run("invalid tenant is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(TenantHeader, "tenant a; drop")
		router.ServeHTTP(httptest.NewRecorder(), req)

		require.Empty(t, md.TenantID)
	})
}

func TestIsValidTenantID(t *testing.T) {
	tests := []struct {
		tenantID string
		valid    bool
	}{
		{"tenant-a", true},
		{"00000000-0000-0000-0000-000000000001", true},
		{"acme.corp:eu_1", true},
		{"", false},
		{"with space", false},
		{"<script>", false},
		{strings.Repeat("a", MaxTenantIDLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.tenantID, func(t *testing.T) {
			assert.Equal(t, tt.valid, isValidTenantID(tt.tenantID))
		})
	}
}
