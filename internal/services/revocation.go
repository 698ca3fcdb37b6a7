package services

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const revokedPrefix = "bl:at:"

// blacklistStore 是黑名单读写所需的 Redis 子集，*redis.Client 直接满足。
type blacklistStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RevocationService 记录已注销的访问令牌。键为 bl:at:<jti>，值为令牌主体，
// 过期时间与令牌剩余有效期一致，令牌自然失效后记录随之消失。
type RevocationService struct{ rdb blacklistStore }

// NewRevocationService 在 rdb 为 nil 时返回 nil，TokenService 据此跳过黑名单。
func NewRevocationService(rdb *redis.Client) *RevocationService {
	if rdb == nil {
		return nil
	}
	return &RevocationService{rdb: rdb}
}

// Add 拉黑 jti 直到 until；until 已过去时无需记录。
func (s *RevocationService) Add(ctx context.Context, jti, subject string, until time.Time) error {
	ttl := time.Until(until)
	if jti == "" || ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, revokedPrefix+jti, subject, ttl).Err()
}

// Contains 报告 jti 是否已注销。Redis 不可用时按未注销处理。
func (s *RevocationService) Contains(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}
	err := s.rdb.Get(ctx, revokedPrefix+jti).Err()
	return err == nil
}
