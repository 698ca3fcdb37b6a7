package middlewares

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
)

// apiHeaders 适用于只返回 JSON 的服务：禁止嵌入与内容嗅探，不加载任何子资源。
var apiHeaders = map[string]string{
	"X-Frame-Options":         "DENY",
	"X-Content-Type-Options":  "nosniff",
	"Referrer-Policy":         "no-referrer",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
}

// SecurityHeaders 为每个响应写入固定安全头；HSTS 仅在 HTTPS（直连或经反代）且配置开启时下发。
func SecurityHeaders(cfg config.SecurityConfig) gin.HandlerFunc {
	hsts := ""
	if cfg.HSTS.Enabled {
		hsts = "max-age=" + strconv.Itoa(cfg.HSTS.MaxAgeSeconds)
		if cfg.HSTS.IncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}
	return func(c *gin.Context) {
		for k, v := range apiHeaders {
			c.Header(k, v)
		}
		if hsts != "" && isHTTPS(c) {
			c.Header("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}

func isHTTPS(c *gin.Context) bool {
	return c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
}
