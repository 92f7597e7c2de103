package server

import (
	"strings"

	"github.com/beaconhq/beacon/internal/auditcontext"
	environmentdomain "github.com/beaconhq/beacon/internal/environment/domain"
	organizationdomain "github.com/beaconhq/beacon/internal/organization/domain"
	"github.com/beaconhq/beacon/internal/orgcontext"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const HeaderOrg = "X-Org-ID"

// OrgContext resolves the acting organization from the X-Org-ID header,
// falling back to the default organization so single-tenant installs
// need no header at all.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader(HeaderOrg))
		if header != "" {
			orgID, err := snowflake.ParseString(header)
			if err != nil || orgID == 0 {
				AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid org id"))
				return
			}
			c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), orgID.Int64()))
			c.Next()
			return
		}

		if s.cfg.DefaultOrgID != 0 {
			c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), s.cfg.DefaultOrgID))
			c.Next()
			return
		}

		var org organizationdomain.Organization
		err := s.db.WithContext(c.Request.Context()).
			Where("is_default = ?", true).
			First(&org).Error
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), org.ID.Int64()))
		c.Next()
	}
}

// AuditContext records caller metadata for any audit entries written
// during the request.
func (s *Server) AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auditcontext.WithRequestInfo(
			c.Request.Context(),
			c.ClientIP(),
			c.Request.UserAgent(),
			strings.TrimSpace(c.GetHeader("X-Request-Id")),
		)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// EvaluateRateLimit throttles the SDK evaluate endpoint per
// environment so one noisy environment cannot starve the others. Keys
// that resolve to no environment share a single bucket; the handler
// rejects them anyway.
func (s *Server) EvaluateRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.evaluateLimiter == nil {
			c.Next()
			return
		}

		environmentKey := "unknown"
		if snapshot, ok := s.snapshotStore.ByKeyHash(environmentdomain.HashSDKKey(sdkKeyFromRequest(c))); ok {
			environmentKey = snapshot.EnvironmentKey
		}

		if !s.evaluateLimiter.Allow(c.Request.Context(), environmentKey) {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// sdkKeyFromRequest accepts the key either as a bearer token or in the
// X-SDK-Key header.
func sdkKeyFromRequest(c *gin.Context) string {
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return strings.TrimSpace(c.GetHeader("X-SDK-Key"))
}
