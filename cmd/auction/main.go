package main

// @title           Auction API
// @version         0.1.0
// @description     拍卖服务：为失物创建拍卖、出价与结束拍卖；失物存在性通过 lost_found 服务校验。
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

	cfg := app.MustLoad("auction", *cfgPath, *addr)

	db, err := storage.InitMySQL(cfg.MySQL, storage.AuctionModels()...)
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

	var notifier services.Notifier = services.NopNotifier{}
	if cfg.Notify.Enable && rdb != nil {
		notifier = services.NewRedisNotifier(rdb, cfg.Notify.Channel)
		log.WithField("channel", cfg.Notify.Channel).Info("auction events enabled")
	}

	auctions := services.NewAuctionService(db, services.NewLostItemClient(cfg.Auction), notifier, cfg.Auction)
	tokens := services.NewTokenService(cfg.JWT, services.NewRevocationService(rdb))

	router := app.NewRouter(cfg, "auction", app.Checks(db, rdb))
	handlers.NewAuction(cfg, auctions, tokens, rdb).RegisterRoutes(router)

	app.Serve(cfg.HTTPAddr, router)
}
