package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/services"
)

const principalKey = "principal"

// TokenVerifier 校验访问令牌；*services.TokenService 满足该接口。
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*services.Principal, error)
}

// BearerAuth 要求 Authorization: Bearer <token>，校验通过后把 Principal 写入上下文。
func BearerAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := BearerToken(c)
		if tok == "" {
			unauthorized(c, "missing bearer token")
			return
		}
		p, err := v.Verify(c.Request.Context(), tok)
		if err != nil {
			unauthorized(c, "could not validate credentials")
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// BearerToken 提取 Authorization 头中的 Bearer 令牌；缺失时返回空串。
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// PrincipalFrom 读取 BearerAuth 写入的身份。
func PrincipalFrom(c *gin.Context) (*services.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*services.Principal)
	return p, ok && p != nil
}

func unauthorized(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", `Bearer`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "detail": detail})
}
