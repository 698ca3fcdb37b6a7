package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP 层：path 取路由模板（如 /lost_items/:id），未匹配的请求归入 "unmatched"。
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP 请求计数（按路由模板/方法/状态码）",
	}, []string{"path", "method", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP 请求耗时（秒）",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method"})
)

// 相似度打分：outcome 为 ok、error（传输失败或超时）或 unparseable（回复无法解析为数字）。
// 一次排序请求会产生与招领物品数量相同的 Oracle 调用。
var (
	OracleCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oracle_calls_total",
		Help: "打分 Oracle 调用计数（按结果）",
	}, []string{"outcome"})

	OracleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "oracle_call_duration_seconds",
		Help:    "单次打分 Oracle 调用耗时（秒）",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 30},
	})

	SimilarityRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "similarity_requests_total",
		Help: "相似招领物品排序请求数",
	})
)

// 业务计数
var (
	TokensIssued = promauto.NewCounter(prometheus.CounterOpts{Name: "tokens_issued_total", Help: "auth 服务签发的访问令牌数"})
	BidsPlaced   = promauto.NewCounter(prometheus.CounterOpts{Name: "bids_placed_total", Help: "成功写入的出价数"})
)

// Handler 记录每个请求的计数与耗时，需挂在路由匹配之前。
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		HTTPLatency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
		HTTPRequests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Exposer 以 Prometheus 文本格式输出默认注册表。
func Exposer() gin.HandlerFunc { return gin.WrapH(promhttp.Handler()) }
