package services

import (
	"context"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
)

// TokenService 负责签发与校验 HS256 访问令牌。三个服务共享同一密钥：
// auth 服务签发，lost_found 与 auction 服务本地校验，无需回调 auth 服务。
type TokenService struct {
	secret []byte
	ttl    time.Duration
	revoke *RevocationService
	now    func() time.Time
}

func NewTokenService(cfg config.JWTConfig, revoke *RevocationService) *TokenService {
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &TokenService{secret: []byte(cfg.Secret), ttl: ttl, revoke: revoke, now: time.Now}
}

// Principal 为已校验令牌携带的身份。
type Principal struct {
	Subject   string
	JTI       string
	ExpiresAt time.Time
}

// Issue 为 subject（用户名）签发访问令牌，返回令牌、过期时间与 jti。
func (s *TokenService) Issue(subject string) (string, time.Time, string, error) {
	if subject == "" {
		return "", time.Time{}, "", errors.New("empty subject")
	}
	now := s.now()
	exp := now.Add(s.ttl)
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": exp.Unix(),
		"jti": jti,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, "", err
	}
	return signed, exp, jti, nil
}

// Revoke 将令牌 jti 拉黑直至其自然过期；未配置 Redis 时为空操作。
func (s *TokenService) Revoke(ctx context.Context, p *Principal) error {
	if s.revoke == nil || p == nil {
		return nil
	}
	if !p.ExpiresAt.After(s.now()) {
		return nil
	}
	return s.revoke.Add(ctx, p.JTI, p.Subject, p.ExpiresAt)
}
