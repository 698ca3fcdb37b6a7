package main

// @title           Lost & Found API
// @version         0.1.0
// @description     失物招领服务：分类、标签、失物与招领物品的增删改查，以及基于打分 Oracle 的相似招领物品排序。
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
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/utils"
)

// main 为 lost_found 服务入口：加载配置、初始化存储/服务、注册路由并启动 HTTP 服务。
func main() {
	cfgPath := flag.String("config", "", "path to config.yaml/config.json")
	addr := flag.String("addr", "", "override http listen address")
	flag.Parse()

	cfg := app.MustLoad("lost_found", *cfgPath, *addr)

	db, err := storage.InitMySQL(cfg.MySQL, storage.LostFoundModels()...)
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
	}

	var oracle services.Oracle = services.LexicalOracle{}
	if cfg.Oracle.Enable {
		oracle = services.NewChatOracle(cfg.Oracle)
		log.WithFields(log.Fields{"endpoint": cfg.Oracle.Endpoint, "model": cfg.Oracle.Model, "api_key": utils.MaskSecret(cfg.Oracle.APIKey)}).Info("similarity oracle enabled")
	} else {
		log.Info("similarity oracle disabled, using lexical scoring")
	}

	lost := services.NewLostItemService(db)
	found := services.NewFoundItemService(db)
	tokens := services.NewTokenService(cfg.JWT, services.NewRevocationService(rdb))

	router := app.NewRouter(cfg, "lost_found", app.Checks(db, rdb))
	handlers.NewLostFound(cfg, handlers.LostFoundDeps{
		Categories: services.NewCategoryService(db),
		Tags:       services.NewTagService(db),
		Lost:       lost,
		Found:      found,
		Ranker:     services.NewRanker(lost, found, oracle, cfg.Oracle),
		Verifier:   tokens,
	}).RegisterRoutes(router)

	app.Serve(cfg.HTTPAddr, router)
}
