package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/navid-fn/ethmetrics/internal/handler"
)

var triggerMethods = []string{http.MethodGet, http.MethodPost}

func registerDailyRoutes(router *gin.RouterGroup, dailyHandler *handler.DailyHandler) {
	daily := router.Group("/daily")
	{
		daily.Match(triggerMethods, "/fetch", dailyHandler.Fetch)
		daily.Match(triggerMethods, "/backfill", dailyHandler.Backfill)
	}
}
