package api

import (
	"net/http"
	"strconv"
	"time"

	"marketplace-service/internal/service"
	"marketplace-service/internal/util"

	"github.com/gin-gonic/gin"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"

	ctxUserID   = "user_id"
	ctxUserRole = "user_role"

	RoleCustomer = "customer"
	RoleSeller   = "seller"
)

// identityMiddleware reads the caller's identity from the gateway-provided
// headers. Authentication itself happens upstream; an absent or malformed
// identity is rejected here.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader(headerUserID), 10, 64)
		if err != nil || userID <= 0 {
			respondError(c, http.StatusUnauthorized, "missing or invalid "+headerUserID+" header")
			c.Abort()
			return
		}

		role := c.GetHeader(headerUserRole)
		if role != RoleCustomer && role != RoleSeller {
			respondError(c, http.StatusUnauthorized, "missing or invalid "+headerUserRole+" header")
			c.Abort()
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxUserRole, role)
		c.Next()
	}
}

// requireRole rejects callers whose role header does not match.
func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxUserRole) != role {
			respondError(c, http.StatusForbidden, "this operation requires the "+role+" role")
			c.Abort()
			return
		}
		c.Next()
	}
}

func callerID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	switch e := err.(type) {
	case *service.ValidationError:
		if len(e.Fields) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   e.Message,
				"details": e.Fields,
			})
			return
		}
		respondError(c, http.StatusBadRequest, e.Message)
	case *service.AuthorizationError:
		respondError(c, http.StatusForbidden, e.Message)
	case *service.NotFoundError:
		respondError(c, http.StatusNotFound, e.Message)
	case *service.ConflictError:
		respondError(c, http.StatusConflict, e.Message)
	case *service.TransientError:
		respondError(c, http.StatusServiceUnavailable, "temporary failure, please retry")
	default:
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}
