// Package metrics 定义三个服务共享的 Prometheus 指标与 gin 采集中间件。
package metrics
