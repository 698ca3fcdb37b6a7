package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/middlewares"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/services"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/storage"
)

type categoryStore interface {
	Create(ctx context.Context, name, description string) (*storage.Category, error)
	Get(ctx context.Context, id uint64) (*storage.Category, error)
	List(ctx context.Context) ([]storage.Category, error)
	Update(ctx context.Context, id uint64, name, description *string) (*storage.Category, error)
	Delete(ctx context.Context, id uint64) error
}

type tagStore interface {
	Create(ctx context.Context, name string) (*storage.Tag, error)
	Get(ctx context.Context, id uint64) (*storage.Tag, error)
	List(ctx context.Context) ([]storage.Tag, error)
	Rename(ctx context.Context, id uint64, name string) (*storage.Tag, error)
	Delete(ctx context.Context, id uint64) error
}

type lostItemStore interface {
	Create(ctx context.Context, in services.ItemInput) (*storage.LostItem, error)
	Get(ctx context.Context, id uint64) (*storage.LostItem, error)
	List(ctx context.Context, f services.ItemFilter) ([]storage.LostItem, error)
	Update(ctx context.Context, id uint64, p services.ItemPatch) (*storage.LostItem, error)
	Delete(ctx context.Context, id uint64) error
	AttachTag(ctx context.Context, id, tagID uint64) (*storage.LostItem, error)
	DetachTag(ctx context.Context, id, tagID uint64) error
}

type foundItemStore interface {
	Create(ctx context.Context, in services.ItemInput) (*storage.FoundItem, error)
	Get(ctx context.Context, id uint64) (*storage.FoundItem, error)
	List(ctx context.Context, f services.ItemFilter) ([]storage.FoundItem, error)
	Update(ctx context.Context, id uint64, p services.ItemPatch) (*storage.FoundItem, error)
	Delete(ctx context.Context, id uint64) error
	AttachTag(ctx context.Context, id, tagID uint64) (*storage.FoundItem, error)
	DetachTag(ctx context.Context, id, tagID uint64) error
}

type matchRanker interface {
	Rank(ctx context.Context, lostID uint64, topK int) ([]services.Match, error)
}

// LostFoundHandler 暴露 lost_found 服务的全部端点：分类、标签、失物、招领与相似度排序。
type LostFoundHandler struct {
	cfg        config.Config
	categories categoryStore
	tags       tagStore
	lost       lostItemStore
	found      foundItemStore
	ranker     matchRanker
	verifier   middlewares.TokenVerifier
}

// LostFoundDeps 聚合构造 LostFoundHandler 所需的依赖。
type LostFoundDeps struct {
	Categories categoryStore
	Tags       tagStore
	Lost       lostItemStore
	Found      foundItemStore
	Ranker     matchRanker
	Verifier   middlewares.TokenVerifier
}

func NewLostFound(cfg config.Config, d LostFoundDeps) *LostFoundHandler {
	return &LostFoundHandler{cfg: cfg, categories: d.Categories, tags: d.Tags, lost: d.Lost, found: d.Found, ranker: d.Ranker, verifier: d.Verifier}
}

// RegisterRoutes 挂载路由。读接口与分类/标签接口公开；物品的写操作需要 Bearer 令牌。
func (h *LostFoundHandler) RegisterRoutes(r gin.IRouter) {
	auth := middlewares.BearerAuth(h.verifier)

	cat := r.Group("/categories")
	cat.POST("", h.createCategory)
	cat.GET("", h.listCategories)
	cat.GET("/:id", h.getCategory)
	cat.PUT("/:id", h.updateCategory)
	cat.DELETE("/:id", h.deleteCategory)

	tag := r.Group("/tags")
	tag.POST("", h.createTag)
	tag.GET("", h.listTags)
	tag.GET("/:id", h.getTag)
	tag.PUT("/:id", h.updateTag)
	tag.DELETE("/:id", h.deleteTag)

	lost := r.Group("/lost_items")
	lost.GET("", h.listLostItems)
	lost.GET("/:id", h.getLostItem)
	lost.GET("/:id/similar_found_items", h.similarFoundItems)
	lost.POST("", auth, h.createLostItem)
	lost.PUT("/:id", auth, h.updateLostItem)
	lost.DELETE("/:id", auth, h.deleteLostItem)
	lost.POST("/:id/tags", auth, h.attachLostItemTag)
	lost.DELETE("/:id/tags/:tag_id", auth, h.detachLostItemTag)

	found := r.Group("/found_items")
	found.GET("", h.listFoundItems)
	found.GET("/:id", h.getFoundItem)
	found.POST("", auth, h.createFoundItem)
	found.PUT("/:id", auth, h.updateFoundItem)
	found.DELETE("/:id", auth, h.deleteFoundItem)
	found.POST("/:id/tags", auth, h.attachFoundItemTag)
	found.DELETE("/:id/tags/:tag_id", auth, h.detachFoundItemTag)
}
