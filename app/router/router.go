package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hookfleet/app/handler"
	"hookfleet/app/middleware"
)

// Router Router
type Router struct {
	fleetHandler *handler.FleetHandler
}

// NewRouter creates a new Router
func NewRouter(fleetHandler *handler.FleetHandler) *Router {
	return &Router{fleetHandler: fleetHandler}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	{
		fleet := v1.Group("/fleet")
		{
			fleet.GET("/status", r.fleetHandler.Status)
			fleet.POST("/rotate", r.fleetHandler.Rotate)
			fleet.POST("/healthcheck", r.fleetHandler.HealthCheck)
		}
	}
}
