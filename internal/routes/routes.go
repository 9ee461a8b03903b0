package routes

import (
	"github.com/gin-gonic/gin"

	"nftverify/internal/handlers"
)

func SetupRoutes(
	r *gin.Engine,
	verifyHandler *handlers.VerifyHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {

	// ---- public API
	api := r.Group("/api")
	{
		api.GET("/check-token", verifyHandler.CheckToken)
		api.POST("/verify", verifyHandler.Verify)
		api.GET("/status/:discordId", verifyHandler.Status)
	}

	r.GET("/health", healthHandler.Health)

	// страница верификации со скриптом подключения кошелька
	r.StaticFile("/verify", "./web/index.html")
	r.StaticFile("/verify.js", "./web/verify.js")

	return r
}
