package services

import (
	"context"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Verify 校验签名（仅接受 HS256）、过期时间与 sub，并在配置了黑名单时拦截已撤销的 jti。
func (s *TokenService) Verify(ctx context.Context, tokenStr string) (*Principal, error) {
	if tokenStr == "" {
		return nil, newError(ErrUnauthorized, "missing token")
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, newError(ErrUnauthorized, "invalid token")
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, newError(ErrUnauthorized, "invalid token")
	}
	p := &Principal{Subject: sub}
	if jti, ok := claims["jti"].(string); ok {
		p.JTI = jti
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}
	if s.revoke != nil && s.revoke.Contains(ctx, p.JTI) {
		return nil, newError(ErrUnauthorized, "token revoked")
	}
	return p, nil
}
