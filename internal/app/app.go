package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/handlers"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/metrics"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/middlewares"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/utils"
)

// InitLogging 配置结构化 JSON 日志；无法识别的级别按 info 处理。
func InitLogging(level string) {
	log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	log.SetOutput(os.Stdout)
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// MustLoad 加载并校验配置，失败直接退出；addr 非空时覆盖监听地址。
func MustLoad(service, path, addr string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}
	if addr != "" {
		cfg.HTTPAddr = addr
	}
	InitLogging(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("configuration error")
	}
	log.WithFields(log.Fields{
		"service":    service,
		"env":        cfg.Env,
		"http_addr":  cfg.HTTPAddr,
		"mysql_dsn":  cfg.MySQL.DSNMasked(),
		"redis_addr": cfg.Redis.Addr,
		"jwt_secret": utils.MaskSecret(cfg.JWT.Secret),
	}).Info("configuration loaded")
	return cfg
}

// NewRouter 创建带通用中间件的 gin 引擎，并挂载运维端点。
func NewRouter(cfg config.Config, service string, checks map[string]handlers.Pinger) *gin.Engine {
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.RequestID())
	router.Use(middlewares.RequestLogger())
	router.Use(middlewares.SecurityHeaders(cfg.Security))
	router.Use(metrics.Handler())
	handlers.RegisterOps(router, service, checks)
	return router
}

// Checks 根据已初始化的依赖构造健康检查；nil 依赖不参与检查。
func Checks(db *gorm.DB, rdb *redis.Client) map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{}
	if db != nil {
		checks["mysql"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

// Serve 启动 HTTP 服务，收到 SIGINT/SIGTERM 后优雅退出。
func Serve(addr string, h http.Handler) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.WithField("addr", addr).Info("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown")
	} else {
		log.Info("server stopped")
	}
}
