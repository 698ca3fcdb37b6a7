package middlewares

// 本中间件负责输出结构化访问日志，记录方法、路径、状态码、耗时、客户端 IP 与请求 ID。

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RequestLogger 输出结构化的访问日志；已认证请求附带用户名。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		dur := time.Since(start)
		fields := log.Fields{
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": dur.Milliseconds(),
			"ip":         c.ClientIP(),
		}
		if rid := RequestIDFrom(c); rid != "" {
			fields["request_id"] = rid
		}
		if p, ok := PrincipalFrom(c); ok {
			fields["user"] = p.Subject
		}
		entry := log.WithFields(fields)
		switch {
		case len(c.Errors) > 0:
			entry.WithField("errors", c.Errors.String()).Warn("request completed with errors")
		case c.Writer.Status() >= 500:
			entry.Warn("request failed")
		default:
			entry.Info("request completed")
		}
	}
}
