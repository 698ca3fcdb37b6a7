package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"
)

type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RateLimit 返回限流中间件：配置了 Redis 时使用 INCR+TTL 的固定窗口（多实例共享），
// rdb 为 nil 时退化为进程内令牌桶。keyFn 用于构建请求者唯一键（如按 IP 或用户名）。
func RateLimit(rdb *redis.Client, prefix string, limit int, window time.Duration, keyFn func(*gin.Context) string) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if rdb == nil {
		return localRateLimit(limit, window, keyFn)
	}
	return redisRateLimit(rdb, prefix, limit, window, keyFn)
}

func redisRateLimit(rdb counter, prefix string, limit int, window time.Duration, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			c.Next()
			return
		}
		rkey := fmt.Sprintf("rl:%s:%s", prefix, key)
		// 第一次自增时同时设置 TTL 窗口；Redis 故障时放行
		cnt, err := rdb.Incr(c, rkey).Result()
		if err == nil && cnt == 1 {
			_ = rdb.Expire(c, rkey, window).Err()
		}
		if err == nil && cnt > int64(limit) {
			tooMany(c, window)
			return
		}
		c.Next()
	}
}

const maxLocalKeys = 10000

func localRateLimit(limit int, window time.Duration, keyFn func(*gin.Context) string) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := map[string]*rate.Limiter{}
	every := rate.Every(window / time.Duration(limit))
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			c.Next()
			return
		}
		mu.Lock()
		l, ok := buckets[key]
		if !ok {
			if len(buckets) >= maxLocalKeys {
				buckets = map[string]*rate.Limiter{}
			}
			l = rate.NewLimiter(every, limit)
			buckets[key] = l
		}
		allowed := l.Allow()
		mu.Unlock()
		if !allowed {
			tooMany(c, window)
			return
		}
		c.Next()
	}
}

func tooMany(c *gin.Context, window time.Duration) {
	c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "detail": "too many requests"})
}

// ByIP 以客户端 IP 作为限流键。
func ByIP(c *gin.Context) string { return c.ClientIP() }

// ByPrincipal 以已认证用户名作为限流键，未认证时退化为 IP。
func ByPrincipal(c *gin.Context) string {
	if p, ok := PrincipalFrom(c); ok {
		return "u:" + p.Subject
	}
	return c.ClientIP()
}
