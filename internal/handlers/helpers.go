package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/services"
)

// writeError 将服务层错误映射为 HTTP 状态码与统一的 {"error","detail"} 响应体。
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, services.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrInvalid):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, services.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, services.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, services.ErrUpstream):
		status, code = http.StatusBadGateway, "upstream_error"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		// 客户端已断开，响应不会被读取
		status, code = 499, "canceled"
	}
	detail := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("unhandled error")
		detail = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code, "detail": detail})
}

// validationError 对应请求体或查询参数不合法（422）。
func validationError(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "validation_failed", "detail": detail})
}

// pathID 解析路径中的正整数 ID；失败时已写出 422 响应。
func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		validationError(c, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryInt 读取整数查询参数；缺省返回 def。
func queryInt(c *gin.Context, name string, def int) (int, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

// queryBool 读取布尔查询参数；缺省返回 nil。
func queryBool(c *gin.Context, name string) (*bool, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, errors.New(name + " must be a boolean")
	}
	return &b, nil
}

// parseDate 接受 RFC3339 或 YYYY-MM-DD。
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", v, time.Local)
}

// setNoCache 为敏感响应添加禁止缓存的标准响应头。
func setNoCache(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
