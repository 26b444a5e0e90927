package main

import (
	"net/http"
	"time"

	"voice-gateway/internal/httpapi"
	"voice-gateway/internal/rbac"
	"voice-gateway/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, deps *dependencies) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if deps.db != nil {
			if err := utils.HealthCheck(c.Request.Context(), deps.db, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
				return
			}
		}
		if deps.rdb != nil {
			if err := deps.rdb.Ping(c.Request.Context()).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"voice_service": deps.Dialer.Name(),
		})
	})

	// Provider webhooks (public).
	// NOTE: This endpoint should be protected by provider signature validation in production.
	r.POST("/webhooks/voice", h.HandleWebhook)

	// Call placement mirrors the webhook surface: providers and dialer
	// integrations hit it without a bearer token.
	r.POST("/calls", h.PlaceCall)

	r.POST("/v1/auth/token", h.IssueToken)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireScope(rbac.ScopeCallsRead))
	{
		v1.GET("/calls", h.ListCalls)
		v1.GET("/calls/stats", h.CallStats)
		v1.GET("/calls/:call_id", h.GetCall)
	}
}
