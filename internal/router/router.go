package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/navid-fn/ethmetrics/internal/handler"
)

type Config struct {
	DailyHandler   *handler.DailyHandler
	MonthlyHandler *handler.MonthlyHandler
	HealthHandler  *handler.HealthHandler

	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()

	router.GET("/healthz", cfg.HealthHandler.Health)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := router.Group("/v1/")
	registerDailyRoutes(api, cfg.DailyHandler)
	registerMonthlyRoutes(api, cfg.MonthlyHandler)

	return router
}
