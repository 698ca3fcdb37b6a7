package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/metrics"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/middlewares"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/services"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/storage"
)

type userStore interface {
	Register(ctx context.Context, username, password string) (*storage.User, error)
	Authenticate(ctx context.Context, username, password string) (*storage.User, error)
}

type tokenIssuer interface {
	middlewares.TokenVerifier
	Issue(subject string) (string, time.Time, string, error)
	Revoke(ctx context.Context, p *services.Principal) error
}

// AuthHandler 暴露 auth 服务端点：注册、登录签发令牌、令牌校验与注销。
type AuthHandler struct {
	cfg    config.Config
	users  userStore
	tokens tokenIssuer
	rdb    *redis.Client
}

func NewAuth(cfg config.Config, users userStore, tokens tokenIssuer, rdb *redis.Client) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, tokens: tokens, rdb: rdb}
}

func (h *AuthHandler) RegisterRoutes(r gin.IRouter) {
	window := h.cfg.Limits.Window
	if window <= 0 {
		window = time.Minute
	}
	auth := middlewares.BearerAuth(h.tokens)
	r.POST("/users/register", h.register)
	r.POST("/auth/token", middlewares.RateLimit(h.rdb, "login", h.cfg.Limits.LoginPerMinute, window, middlewares.ByIP), h.token)
	r.GET("/auth/verify", auth, h.verify)
	r.POST("/auth/logout", auth, h.logout)
}

type credentials struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// register 注册账户
// @Summary      注册账户
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body body credentials true "用户名与口令（至少 6 位）"
// @Success      201 {object} map[string]interface{}
// @Failure      400 {object} map[string]string "用户名已存在或口令过短"
// @Router       /users/register [post]
func (h *AuthHandler) register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	u, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": u.ID, "username": u.Username})
}

// token 登录签发访问令牌
// @Summary      登录并签发访问令牌
// @Description  接受表单（application/x-www-form-urlencoded）或 JSON 的 username/password
// @Tags         auth
// @Accept       x-www-form-urlencoded
// @Accept       json
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Failure      401 {object} map[string]string
// @Failure      429 {object} map[string]string
// @Router       /auth/token [post]
func (h *AuthHandler) token(c *gin.Context) {
	var req credentials
	var err error
	if strings.HasPrefix(c.ContentType(), "application/json") {
		err = c.ShouldBindJSON(&req)
	} else {
		err = c.ShouldBind(&req)
	}
	if err != nil {
		validationError(c, err.Error())
		return
	}
	u, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			c.Header("WWW-Authenticate", "Bearer")
		}
		writeError(c, err)
		return
	}
	tok, exp, jti, err := h.tokens.Issue(u.Username)
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.TokensIssued.Inc()
	log.WithFields(log.Fields{"user": u.Username, "jti": jti}).Info("access token issued")
	setNoCache(c)
	c.JSON(http.StatusOK, gin.H{
		"access_token": tok,
		"token_type":   "bearer",
		"expires_in":   int(time.Until(exp).Seconds()),
	})
}

// @Summary      校验令牌并返回用户名
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]string
// @Failure      401 {object} map[string]string
// @Router       /auth/verify [get]
func (h *AuthHandler) verify(c *gin.Context) {
	p, _ := middlewares.PrincipalFrom(c)
	c.JSON(http.StatusOK, gin.H{"username": p.Subject})
}

// @Summary      注销（撤销当前令牌）
// @Tags         auth
// @Security     BearerAuth
// @Success      200 {object} map[string]string
// @Router       /auth/logout [post]
func (h *AuthHandler) logout(c *gin.Context) {
	p, _ := middlewares.PrincipalFrom(c)
	if err := h.tokens.Revoke(c.Request.Context(), p); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Token revoked"})
}
