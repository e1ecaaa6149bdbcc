package handlers

import (
	"net/http"

	"github.com/PaiKingDuck555/imessage-kit-concierge/services/gateway"
	"github.com/PaiKingDuck555/imessage-kit-concierge/utils"

	"github.com/gin-gonic/gin"
)

// OpsHandler serves the local operational surface: health of the external
// collaborators and a read-only view of the conversation session.
type OpsHandler struct {
	Snapshot func() gateway.SessionSnapshot
}

func NewOpsHandler(snapshot func() gateway.SessionSnapshot) *OpsHandler {
	return &OpsHandler{Snapshot: snapshot}
}

func (h *OpsHandler) HealthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, utils.GetHealthStatus())
}

func (h *OpsHandler) SessionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Snapshot())
}
