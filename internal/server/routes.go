package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (a *Admin) registerRoutes() {
	a.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"node":   a.node,
			"mode":   a.mode,
			"uptime": time.Since(a.appeared).Round(time.Second).String(),
		})
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router.GET("/pending", func(c *gin.Context) {
		items := a.pending.Pending()
		c.JSON(http.StatusOK, gin.H{
			"count":   len(items),
			"pending": items,
		})
	})
}
