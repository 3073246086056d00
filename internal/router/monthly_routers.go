package router

import (
	"github.com/gin-gonic/gin"
	"github.com/navid-fn/ethmetrics/internal/handler"
)

func registerMonthlyRoutes(router *gin.RouterGroup, monthlyHandler *handler.MonthlyHandler) {
	monthly := router.Group("/monthly")
	{
		monthly.GET("", monthlyHandler.List)
		monthly.Match(triggerMethods, "/aggregate", monthlyHandler.Aggregate)
	}
}
