// Package middlewares 提供三个服务共用的 gin 中间件：请求 ID、访问日志、安全响应头、
// 限流（Redis 或进程内）以及 Bearer 令牌校验。
package middlewares
