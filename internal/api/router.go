package api

import (
	"github.com/gin-gonic/gin"

	"github.com/potlam/cloudprint/internal/api/handlers"
	"github.com/potlam/cloudprint/internal/api/middleware"
)

// NewRouter wires the printer polling protocol and the admin API.
func NewRouter(cp *handlers.CloudPrintHandler, admin *handlers.AdminHandler, auth *middleware.AuthMiddleware) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/print/:restaurant_code", cp.PostPoll)
	r.GET("/print/:restaurant_code", cp.GetJob)
	r.DELETE("/print/:restaurant_code", cp.DeleteJob)

	api := r.Group("/api")
	{
		api.POST("/auth/setup", auth.SetupHandler)
		api.POST("/auth/login", auth.LoginHandler)
		api.POST("/auth/logout", auth.LogoutHandler)
		api.GET("/auth/status", auth.StatusHandler)

		protected := api.Group("", auth.RequireAuth())
		{
			protected.GET("/queues", admin.GetQueues)
			protected.GET("/orders", admin.ListOrders)
			protected.GET("/auth/windows", admin.GetAuthWindows)
		}
	}

	return r
}
