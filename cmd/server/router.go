package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thereayou/artem-chat/internal/handlers"
)

func APIEndpoints(r *gin.Engine, wsH *handlers.WebSocketHandler, healthH *handlers.HealthHandler) {
	r.GET("/ws", wsH.HandleWebSocket)
	// клиенты старой версии подключались к корню
	r.GET("/", wsH.HandleWebSocket)

	r.GET("/health", healthH.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
