package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

func findMetricByName(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestHTTPMetrics_NilMeter(t *testing.T) {
	router := gin.New()
	router.Use(HTTPMetrics(nil))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetrics_RequestCounter(t *testing.T) {
	mp, reader := setupTestMeter(t)

	router := gin.New()
	router.Use(RequestID(), EventMetadata(), HTTPMetrics(mp.Meter("http.server")))
	router.GET("/api/v1/entities/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.POST("/api/v1/entities/:id/risk", func(c *gin.Context) {
		c.Status(http.StatusUnprocessableEntity)
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/abc", nil)
		req.Header.Set(TenantHeader, "tenant-a")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/entities/abc/risk", nil))

	m := findMetricByName(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)

	byRoute := make(map[string]metricdata.DataPoint[int64])
	for _, dp := range sum.DataPoints {
		route, _ := dp.Attributes.Value("http.route")
		byRoute[route.AsString()] = dp
	}

	get := byRoute["/api/v1/entities/:id"]
	assert.Equal(t, int64(3), get.Value)
	tenant, ok := get.Attributes.Value("tenant_id")
	require.True(t, ok)
	assert.Equal(t, "tenant-a", tenant.AsString())

	post := byRoute["/api/v1/entities/:id/risk"]
	assert.Equal(t, int64(1), post.Value)
	status, _ := post.Attributes.Value("http.status_code")
	assert.Equal(t, int64(http.StatusUnprocessableEntity), status.AsInt64())
	_, hasTenant := post.Attributes.Value("tenant_id")
	assert.False(t, hasTenant)
}

func TestHTTPMetrics_DurationAndActiveRequests(t *testing.T) {
	mp, reader := setupTestMeter(t)

	router := gin.New()
	router.Use(HTTPMetrics(mp.Meter("http.server")))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	duration := findMetricByName(t, reader, "http_server_request_duration_seconds")
	require.NotNil(t, duration)
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	active := findMetricByName(t, reader, "http_server_active_requests")
	require.NotNil(t, active)
	sum, ok := active.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(0), sum.DataPoints[0].Value)
}

func TestGetRoutePattern(t *testing.T) {
	var route string
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Next()
		route = getRoutePattern(c)
	})
	router.GET("/api/v1/entities/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/entities/42", nil))
	assert.Equal(t, "/api/v1/entities/:id", route)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, "unknown", route)
}
