package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"telecom-inbound/internal/auth"
	"telecom-inbound/internal/telephony"
	"telecom-inbound/pkg/utils"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, a *app) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), a.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Gateway webhooks. Signed by Twilio when TWILIO_AUTH_TOKEN is set.
	hooks := r.Group("/webhooks/twilio")
	hooks.Use(telephony.RequireSignature(a.cfg.Twilio.AuthToken, a.cfg.App.PublicBaseURL))
	a.webhook.Register(hooks)

	v1 := r.Group("/v1")
	v1.Use(auth.RequireServiceToken(a.auth))
	a.api.Register(v1)
}
