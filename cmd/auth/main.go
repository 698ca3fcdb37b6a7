package main

// @title           Auth API
// @version         0.1.0
// @description     认证服务：注册账户、签发 HS256 访问令牌、校验与撤销令牌。
// @schemes         http https
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/app"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/handlers"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/services"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/storage"
)

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml/config.json")
	addr := flag.String("addr", "", "override http listen address")
	flag.Parse()

	cfg := app.MustLoad("auth", *cfgPath, *addr)

	db, err := storage.InitMySQL(cfg.MySQL, storage.AuthModels()...)
	if err != nil {
		log.WithError(err).Fatal("failed to connect mysql")
	}
	defer storage.CloseMySQL(db)

	rdb, err := storage.InitRedis(cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("failed to connect redis")
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	} else {
		log.Warn("redis disabled: logout will not revoke tokens")
	}

	tokens := services.NewTokenService(cfg.JWT, services.NewRevocationService(rdb))

	router := app.NewRouter(cfg, "auth", app.Checks(db, rdb))
	handlers.NewAuth(cfg, services.NewUserService(db), tokens, rdb).RegisterRoutes(router)

	app.Serve(cfg.HTTPAddr, router)
}
