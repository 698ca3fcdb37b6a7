// Package handlers 暴露 HTTP 层接口，负责路由注册、请求校验与服务编排。
// lost_found、auction、auth 三个服务各有一个 Handler；handlers 内部聚焦输入/输出转换，
// 并委托 services 层完成业务逻辑。
package handlers
