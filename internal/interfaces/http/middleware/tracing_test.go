package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer sets up a test tracer provider and returns the span recorder.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(t.Context())
	})
	return sr
}

func tracedRouter(handler gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(
		RequestID(),
		EventMetadata(),
		TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "test-service"}),
		SpanAttributes(),
	)
	router.POST("/api/v1/entities/:id/risk", handler)
	return router
}

func onlySpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := sr.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func attrsOf(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false}), SpanAttributes())
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_SpanAttributes(t *testing.T) {
	sr := setupTestTracer(t)
	router := tracedRouter(func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/entities/42/risk", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	req.Header.Set(TenantHeader, "tenant-a")
	req.Header.Set(CorrelationHeader, "flow-7")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	span := onlySpan(t, sr)
	attrs := attrsOf(span)
	assert.Equal(t, "req-123", attrs["request_id"].AsString())
	assert.Equal(t, "tenant-a", attrs["tenant_id"].AsString())
	assert.Equal(t, "flow-7", attrs["correlation_id"].AsString())
	assert.NotEqual(t, codes.Error, span.Status().Code)
}

func TestTracing_ErrorResponsesMarkSpan(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			sr := setupTestTracer(t)
			router := tracedRouter(func(c *gin.Context) {
				c.Status(status)
			})

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/entities/42/risk", nil))

			span := onlySpan(t, sr)
			assert.Equal(t, codes.Error, span.Status().Code)
			if status < http.StatusInternalServerError {
				assert.Equal(t, http.StatusText(status), span.Status().Description)
			}
		})
	}
}

func TestSpanAttributes_WithNoSpan(t *testing.T) {
	router := gin.New()
	router.Use(SpanAttributes())
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "org-backend", cfg.ServiceName)
}
