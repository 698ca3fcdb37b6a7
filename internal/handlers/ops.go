package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/metrics"
)

// Pinger 为健康检查依赖；返回 nil 表示可用。
type Pinger func(ctx context.Context) error

// RegisterOps 挂载运维端点：欢迎页、/healthz 与 /metrics。
func RegisterOps(r gin.IRoutes, service string, checks map[string]Pinger) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the " + service + " service"})
	})
	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		res := gin.H{}
		for name, ping := range checks {
			if ping == nil {
				continue
			}
			if err := ping(ctx); err != nil {
				res[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			res[name] = "ok"
		}
		res["status"] = "ok"
		if status != http.StatusOK {
			res["status"] = "degraded"
		}
		c.JSON(status, res)
	})
	r.GET("/metrics", metrics.Exposer())
}
