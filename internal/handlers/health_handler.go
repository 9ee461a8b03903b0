package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	// DiscordReady — состояние gateway-сессии бота; nil, если бот выключен
	DiscordReady func() bool
}

func NewHealthHandler(discordReady func() bool) *HealthHandler {
	return &HealthHandler{DiscordReady: discordReady}
}

// @Summary      Health check
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	discord := "disconnected"
	if h.DiscordReady != nil && h.DiscordReady() {
		discord = "connected"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"discord":   discord,
	})
}
