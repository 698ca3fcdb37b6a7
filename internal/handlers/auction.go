package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/metrics"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/middlewares"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/services"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/storage"
)

type auctionStore interface {
	Create(ctx context.Context, in services.AuctionInput) (*storage.Auction, error)
	Get(ctx context.Context, id uint64) (*storage.Auction, error)
	List(ctx context.Context, f services.AuctionFilter) ([]storage.Auction, error)
	Close(ctx context.Context, id uint64) (*storage.Auction, error)
	PlaceBid(ctx context.Context, auctionID uint64, user string, amount float64) (*storage.Bid, error)
	ListBids(ctx context.Context, auctionID uint64) ([]storage.Bid, error)
}

// AuctionHandler 暴露 auction 服务端点。
type AuctionHandler struct {
	cfg      config.Config
	auctions auctionStore
	verifier middlewares.TokenVerifier
	rdb      *redis.Client
}

func NewAuction(cfg config.Config, auctions auctionStore, verifier middlewares.TokenVerifier, rdb *redis.Client) *AuctionHandler {
	return &AuctionHandler{cfg: cfg, auctions: auctions, verifier: verifier, rdb: rdb}
}

// RegisterRoutes 挂载拍卖与出价路由；创建、关闭与出价需要 Bearer 令牌，出价按用户限流。
func (h *AuctionHandler) RegisterRoutes(r gin.IRouter) {
	auth := middlewares.BearerAuth(h.verifier)
	window := h.cfg.Limits.Window
	if window <= 0 {
		window = time.Minute
	}
	bidLimit := middlewares.RateLimit(h.rdb, "bid", h.cfg.Limits.BidPerMinute, window, middlewares.ByPrincipal)

	g := r.Group("/auctions")
	g.GET("", h.listAuctions)
	g.GET("/:id", h.getAuction)
	g.POST("", auth, h.createAuction)
	g.POST("/:id/close", auth, h.closeAuction)
	g.GET("/:id/bids", h.listBids)
	g.POST("/:id/bids", auth, bidLimit, h.placeBid)
}

type auctionRequest struct {
	LostItemExternalID string     `json:"lost_item_external_id" binding:"required"`
	StartPrice         float64    `json:"start_price" binding:"gte=0"`
	CurrentPrice       *float64   `json:"current_price"`
	EndTime            *time.Time `json:"end_time"`
}

type bidRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// @Summary      创建拍卖
// @Description  先向 lost_found 服务确认失物存在；同一失物同时只能有一个进行中的拍卖
// @Tags         auctions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body auctionRequest true "拍卖"
// @Success      201 {object} auctionView
// @Failure      400 {object} map[string]string "失物不存在"
// @Failure      409 {object} map[string]string
// @Failure      502 {object} map[string]string
// @Router       /auctions [post]
func (h *AuctionHandler) createAuction(c *gin.Context) {
	var req auctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	a, err := h.auctions.Create(c.Request.Context(), services.AuctionInput{
		LostItemExternalID: req.LostItemExternalID,
		StartPrice:         req.StartPrice,
		CurrentPrice:       req.CurrentPrice,
		EndTime:            req.EndTime,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAuctionView(a))
}

// @Summary      拍卖列表
// @Tags         auctions
// @Produce      json
// @Param        status    query string false "状态（scheduled/finished）"
// @Param        is_active query bool   false "是否进行中"
// @Success      200 {array} auctionView
// @Router       /auctions [get]
func (h *AuctionHandler) listAuctions(c *gin.Context) {
	active, err := queryBool(c, "is_active")
	if err != nil {
		validationError(c, err.Error())
		return
	}
	list, err := h.auctions.List(c.Request.Context(), services.AuctionFilter{Status: strings.TrimSpace(c.Query("status")), IsActive: active})
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]auctionView, 0, len(list))
	for i := range list {
		out = append(out, toAuctionView(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

// @Summary      查询拍卖
// @Tags         auctions
// @Produce      json
// @Param        id path int true "拍卖 ID"
// @Success      200 {object} auctionView
// @Router       /auctions/{id} [get]
func (h *AuctionHandler) getAuction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a, err := h.auctions.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionView(a))
}

// @Summary      结束拍卖并确定赢家
// @Tags         auctions
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "拍卖 ID"
// @Success      200 {object} auctionView
// @Router       /auctions/{id}/close [post]
func (h *AuctionHandler) closeAuction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a, err := h.auctions.Close(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionView(a))
}

// placeBid 出价
// @Summary      出价（出价人取自令牌）
// @Tags         bids
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path int        true "拍卖 ID"
// @Param        body body bidRequest true "出价"
// @Success      201 {object} bidView
// @Failure      400 {object} map[string]string "拍卖未进行或金额不高于当前价"
// @Failure      404 {object} map[string]string
// @Failure      429 {object} map[string]string
// @Router       /auctions/{id}/bids [post]
func (h *AuctionHandler) placeBid(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req bidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	p, ok := middlewares.PrincipalFrom(c)
	if !ok {
		writeError(c, services.ErrUnauthorized)
		return
	}
	b, err := h.auctions.PlaceBid(c.Request.Context(), id, p.Subject, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.BidsPlaced.Inc()
	c.JSON(http.StatusCreated, toBidView(b))
}

// @Summary      出价记录
// @Tags         bids
// @Produce      json
// @Param        id path int true "拍卖 ID"
// @Success      200 {array} bidView
// @Router       /auctions/{id}/bids [get]
func (h *AuctionHandler) listBids(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	bids, err := h.auctions.ListBids(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]bidView, 0, len(bids))
	for i := range bids {
		out = append(out, toBidView(&bids[i]))
	}
	c.JSON(http.StatusOK, out)
}
