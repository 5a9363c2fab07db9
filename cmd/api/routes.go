package main

import (
	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/config"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/metrics"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/middleware"
)

func setupRouter(api *API, cfg *config.Config, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(api.logger),
		middleware.CORS(),
		middleware.BodyLimit(cfg.Server.MaxBodyBytes),
	)

	router.GET("/health", api.healthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/status", api.getStatus)

	writes := router.Group("/")
	if cfg.Auth.Enabled {
		writes.Use(middleware.JWTAuth(cfg.Auth.JWTSecret))
	}

	compile := []gin.HandlerFunc{}
	if limiter != nil {
		compile = append(compile, middleware.RateLimit(limiter))
	}
	compile = append(compile, api.createCompilation)

	writes.POST("/compile", compile...)
	writes.POST("/status", api.updateStatus)

	return router
}
