package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/services"
)

type itemRequest struct {
	CategoryID  uint64     `json:"category_id" binding:"required"`
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	LostDate    *time.Time `json:"lost_date"`
	FoundDate   *time.Time `json:"found_date"`
}

type itemPatch struct {
	CategoryID  *uint64    `json:"category_id"`
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	LostDate    *time.Time `json:"lost_date"`
	FoundDate   *time.Time `json:"found_date"`
}

func (r itemRequest) input(date *time.Time) services.ItemInput {
	return services.ItemInput{CategoryID: r.CategoryID, Name: r.Name, Description: r.Description, Location: r.Location, Date: date}
}

func (p itemPatch) patch(date *time.Time) services.ItemPatch {
	return services.ItemPatch{CategoryID: p.CategoryID, Name: p.Name, Description: p.Description, Location: p.Location, Date: date}
}

// parseItemFilter 解析列表查询参数：skip ≥ 0；limit > 0（缺省取配置值，超过上限截断）；
// category_id 可重复或逗号分隔；date_from/date_to 接受 RFC3339 或 YYYY-MM-DD。
func parseItemFilter(c *gin.Context, p config.PaginationConfig) (services.ItemFilter, error) {
	var f services.ItemFilter
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return f, err
	}
	if skip < 0 {
		return f, errors.New("skip must be >= 0")
	}
	limit, err := queryInt(c, "limit", p.DefaultLimit)
	if err != nil {
		return f, err
	}
	if limit <= 0 {
		return f, errors.New("limit must be > 0")
	}
	if p.MaxLimit > 0 && limit > p.MaxLimit {
		limit = p.MaxLimit
	}
	f.Skip, f.Limit = skip, limit

	for _, raw := range c.QueryArray("category_id") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return f, errors.New("category_id must be a list of integers")
			}
			f.CategoryIDs = append(f.CategoryIDs, id)
		}
	}
	f.Location = c.Query("location")
	for _, d := range []struct {
		name string
		dst  **time.Time
	}{{"date_from", &f.DateFrom}, {"date_to", &f.DateTo}} {
		v := strings.TrimSpace(c.Query(d.name))
		if v == "" {
			continue
		}
		t, err := parseDate(v)
		if err != nil {
			return f, errors.New(d.name + " must be a date (YYYY-MM-DD or RFC3339)")
		}
		*d.dst = &t
	}
	f.OrderBy = c.Query("order_by")
	desc, err := queryBool(c, "sort_desc")
	if err != nil {
		return f, err
	}
	f.SortDesc = desc != nil && *desc
	return f, nil
}

// createLostItem 登记失物
// @Summary      登记失物
// @Tags         lost_items
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body itemRequest true "失物"
// @Success      201 {object} lostItemView
// @Failure      404 {object} map[string]string "分类不存在"
// @Router       /lost_items [post]
func (h *LostFoundHandler) createLostItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	it, err := h.lost.Create(c.Request.Context(), req.input(req.LostDate))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toLostItemView(it))
}

// listLostItems 失物列表
// @Summary      失物列表（过滤、排序、分页）
// @Tags         lost_items
// @Produce      json
// @Param        skip        query int    false "跳过条数" default(0)
// @Param        limit       query int    false "返回条数" default(10)
// @Param        category_id query []int  false "分类 ID，可多个"
// @Param        location    query string false "地点（子串，大小写不敏感）"
// @Param        date_from   query string false "起始日期"
// @Param        date_to     query string false "截止日期"
// @Param        order_by    query string false "排序字段，逗号分隔，前缀 - 表示倒序"
// @Param        sort_desc   query bool   false "默认倒序"
// @Success      200 {array} lostItemView
// @Failure      422 {object} map[string]string
// @Router       /lost_items [get]
func (h *LostFoundHandler) listLostItems(c *gin.Context) {
	f, err := parseItemFilter(c, h.cfg.Pagination)
	if err != nil {
		validationError(c, err.Error())
		return
	}
	list, err := h.lost.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]lostItemView, 0, len(list))
	for i := range list {
		out = append(out, toLostItemView(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

// @Summary      查询失物
// @Tags         lost_items
// @Produce      json
// @Param        id path int true "失物 ID"
// @Success      200 {object} lostItemView
// @Failure      404 {object} map[string]string
// @Router       /lost_items/{id} [get]
func (h *LostFoundHandler) getLostItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	it, err := h.lost.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLostItemView(it))
}

// @Summary      更新失物（局部）
// @Tags         lost_items
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path int       true "失物 ID"
// @Param        body body itemPatch true "待更新字段"
// @Success      200 {object} lostItemView
// @Router       /lost_items/{id} [put]
func (h *LostFoundHandler) updateLostItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req itemPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	it, err := h.lost.Update(c.Request.Context(), id, req.patch(req.LostDate))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLostItemView(it))
}

// @Summary      删除失物
// @Tags         lost_items
// @Security     BearerAuth
// @Param        id path int true "失物 ID"
// @Success      200 {object} map[string]string
// @Router       /lost_items/{id} [delete]
func (h *LostFoundHandler) deleteLostItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.lost.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted"})
}

// @Summary      为失物关联标签
// @Tags         lost_items
// @Produce      json
// @Security     BearerAuth
// @Param        id     path  int true "失物 ID"
// @Param        tag_id query int true "标签 ID"
// @Success      200 {object} lostItemView
// @Router       /lost_items/{id}/tags [post]
func (h *LostFoundHandler) attachLostItemTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tagID, ok := queryTagID(c)
	if !ok {
		return
	}
	it, err := h.lost.AttachTag(c.Request.Context(), id, tagID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLostItemView(it))
}

// @Summary      解除失物与标签的关联
// @Tags         lost_items
// @Security     BearerAuth
// @Param        id     path int true "失物 ID"
// @Param        tag_id path int true "标签 ID"
// @Success      200 {object} map[string]string
// @Router       /lost_items/{id}/tags/{tag_id} [delete]
func (h *LostFoundHandler) detachLostItemTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tagID, ok := pathID(c, "tag_id")
	if !ok {
		return
	}
	if err := h.lost.DetachTag(c.Request.Context(), id, tagID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Tag detached from LostItem"})
}

// @Summary      登记招领物品
// @Tags         found_items
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body itemRequest true "招领物品"
// @Success      201 {object} foundItemView
// @Router       /found_items [post]
func (h *LostFoundHandler) createFoundItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	it, err := h.found.Create(c.Request.Context(), req.input(req.FoundDate))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toFoundItemView(it))
}

// @Summary      招领物品列表（参数同失物列表）
// @Tags         found_items
// @Produce      json
// @Success      200 {array} foundItemView
// @Router       /found_items [get]
func (h *LostFoundHandler) listFoundItems(c *gin.Context) {
	f, err := parseItemFilter(c, h.cfg.Pagination)
	if err != nil {
		validationError(c, err.Error())
		return
	}
	list, err := h.found.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]foundItemView, 0, len(list))
	for i := range list {
		out = append(out, toFoundItemView(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

// @Summary      查询招领物品
// @Tags         found_items
// @Produce      json
// @Param        id path int true "招领物品 ID"
// @Success      200 {object} foundItemView
// @Router       /found_items/{id} [get]
func (h *LostFoundHandler) getFoundItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	it, err := h.found.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFoundItemView(it))
}

// @Summary      更新招领物品（局部）
// @Tags         found_items
// @Security     BearerAuth
// @Router       /found_items/{id} [put]
func (h *LostFoundHandler) updateFoundItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req itemPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	it, err := h.found.Update(c.Request.Context(), id, req.patch(req.FoundDate))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFoundItemView(it))
}

// @Summary      删除招领物品
// @Tags         found_items
// @Security     BearerAuth
// @Router       /found_items/{id} [delete]
func (h *LostFoundHandler) deleteFoundItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.found.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted"})
}

// @Summary      为招领物品关联标签
// @Tags         found_items
// @Security     BearerAuth
// @Router       /found_items/{id}/tags [post]
func (h *LostFoundHandler) attachFoundItemTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tagID, ok := queryTagID(c)
	if !ok {
		return
	}
	it, err := h.found.AttachTag(c.Request.Context(), id, tagID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFoundItemView(it))
}

// @Summary      解除招领物品与标签的关联
// @Tags         found_items
// @Security     BearerAuth
// @Router       /found_items/{id}/tags/{tag_id} [delete]
func (h *LostFoundHandler) detachFoundItemTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tagID, ok := pathID(c, "tag_id")
	if !ok {
		return
	}
	if err := h.found.DetachTag(c.Request.Context(), id, tagID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Tag detached from FoundItem"})
}

func queryTagID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Query("tag_id"), 10, 64)
	if err != nil || id == 0 {
		validationError(c, "tag_id must be a positive integer")
		return 0, false
	}
	return id, true
}
