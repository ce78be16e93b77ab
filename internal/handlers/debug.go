package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ride-relay/internal/telemetry"
	"ride-relay/internal/ws"
)

// Snapshotter exposes the live relay state.
type Snapshotter interface {
	Snapshot() ws.Snapshot
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, hub Snapshotter, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/relay", func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.Snapshot())
	})

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), requestIDFromContext(c), participantFromRequest(c), telemetry.AuditPayload{
			Level:  "INFO",
			Action: "audit_test",
			Text:   "audit test",
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
