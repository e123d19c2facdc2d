package httpapi

import "github.com/gin-gonic/gin"

// NewRouter assembles the full HTTP surface. Everything except the
// health probe sits behind SendKey auth and the per-account rate limiter.
func NewRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", h.Healthz)

	authed := router.Group("/", h.RequireAuth())
	{
		authed.POST("/push", h.Push)
		authed.GET("/push", h.Push)

		authed.GET("/messages", h.ListMessages)
		authed.GET("/messages/:id", h.GetMessage)

		authed.GET("/user/sendkey", h.GetSendKey)
		authed.POST("/user/sendkey", h.RegenerateSendKey)
		authed.GET("/user/profile", h.Profile)

		authed.GET("/channels", h.ListChannels)
		authed.POST("/channels", h.CreateChannel)
		authed.GET("/channels/types", h.ChannelTypes)
		authed.PUT("/channels/:id", h.UpdateChannel)
		authed.DELETE("/channels/:id", h.DeleteChannel)
	}

	return router
}
