package routes

import (
	"github.com/PaiKingDuck555/imessage-kit-concierge/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the local ops endpoints.
func RegisterRoutes(r *gin.Engine, h *handlers.OpsHandler) {
	r.GET("/healthz", h.HealthzHandler)
	r.GET("/session", h.SessionHandler)
}
