package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/logger"
)

const (
	// TenantHeader names the caller's tenant
	TenantHeader = "X-Tenant-ID"
	// CorrelationHeader lets a caller join requests into one workflow
	CorrelationHeader = "X-Correlation-ID"
	// TenantIDKey is where the tenant id lives in the gin context
	TenantIDKey = "tenant_id"
	// MaxTenantIDLength bounds the tenant header
	MaxTenantIDLength = 64
)

// tenantIDPattern keeps tenant ids safe to copy into logs, spans and events
var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// EventMetadata attaches the provenance recorded on every event the request
// appends: the tenant from X-Tenant-ID and a correlation id taken from
// X-Correlation-ID, falling back to the request id. Must run after RequestID.
func EventMetadata() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := GetRequestID(c)
		md := shared.EventMetadata{
			TenantID:      tenantFromHeader(c),
			CorrelationID: requestID,
		}
		if corr := c.GetHeader(CorrelationHeader); corr != "" && len(corr) <= MaxRequestIDLength && isPrintableASCII(corr) {
			md.CorrelationID = corr
		}
		if requestID != "" {
			md = md.WithHeader("request_id", requestID)
		}
		if md.TenantID != "" {
			c.Set(TenantIDKey, md.TenantID)
		}

		ctx := shared.WithEventMetadata(c.Request.Context(), md)
		if requestID != "" {
			ctx = logger.WithRequestID(ctx, requestID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetTenantID returns the tenant set by EventMetadata, or ""
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

func tenantFromHeader(c *gin.Context) string {
	tenantID := c.GetHeader(TenantHeader)
	if !isValidTenantID(tenantID) {
		return ""
	}
	return tenantID
}

func isValidTenantID(tenantID string) bool {
	if tenantID == "" || len(tenantID) > MaxTenantIDLength {
		return false
	}
	return tenantIDPattern.MatchString(tenantID)
}
