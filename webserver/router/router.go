package router

import (
	"github.com/gin-gonic/gin"

	"github.com/joinguard/joinguard/config"
	"github.com/joinguard/joinguard/service"
	"github.com/joinguard/joinguard/webserver/controller"
)

func Run(store *service.Store) error {
	controller.SetStore(store)
	engine := gin.New()
	engine.Use(gin.Recovery())
	api := engine.Group("/api")
	{
		api.GET("stats", controller.GetStats)
		api.GET("records/pending", controller.GetPending)
		api.GET("records/recent", controller.GetRecentDecisions)
		api.GET("feed/:format", controller.GetDecisionFeed)
	}
	return engine.Run(config.GetConfig().Address)
}
