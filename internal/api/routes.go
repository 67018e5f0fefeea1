package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the gin engine with recovery, request logging and CORS
func NewRouter(handler *Handler, origins []string, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger), CORS(origins))
	SetupRoutes(router, handler)
	return router
}

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/health", handler.Health)
		api.GET("/metro-stations", handler.GetMetroStations)

		api.POST("/user/profile", handler.UpsertProfile)
		api.GET("/user/profile/:telegram_id", handler.GetProfile)

		api.POST("/properties/search", handler.SearchProperties)
		api.GET("/properties/near-metro", handler.SearchNearMetro)
		api.POST("/properties/:property_id/like", handler.LikeProperty)
		api.GET("/properties/:property_id/contact", handler.GetPropertyContact)

		api.POST("/telegram/validate", handler.ValidateTelegramData)
	}
}
