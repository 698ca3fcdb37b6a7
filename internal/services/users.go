package services

// 用户服务：注册与口令校验（bcrypt）。

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/storage"
)

const minPasswordLen = 6

// UserService 提供账户注册、查询与登录校验。
type UserService struct{ db *gorm.DB }

func NewUserService(db *gorm.DB) *UserService { return &UserService{db: db} }

func (s *UserService) FindByUsername(ctx context.Context, username string) (*storage.User, error) {
	var u storage.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFoundOr(err, "user")
	}
	return &u, nil
}

// CheckPassword 校验用户口令（bcrypt）。
func (s *UserService) CheckPassword(u *storage.User, password string) bool {
	if u.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// Register 创建账户；用户名已存在时返回 ErrInvalid。
func (s *UserService) Register(ctx context.Context, username, password string) (*storage.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, newError(ErrInvalid, "username and password are required")
	}
	if len(password) < minPasswordLen {
		return nil, newError(ErrInvalid, "password must be at least 6 characters")
	}
	if _, err := s.FindByUsername(ctx, username); err == nil {
		return nil, newError(ErrInvalid, "username already registered")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &storage.User{Username: username, Password: string(hash)}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate 校验用户名与口令；任一不匹配都返回同一个 ErrUnauthorized，不区分原因。
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*storage.User, error) {
	u, err := s.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(ErrUnauthorized, "incorrect username or password")
		}
		return nil, err
	}
	if !s.CheckPassword(u, password) {
		return nil, newError(ErrUnauthorized, "incorrect username or password")
	}
	return u, nil
}
