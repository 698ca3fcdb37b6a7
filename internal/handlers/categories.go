package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type categoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type categoryPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// createCategory 创建分类
// @Summary      创建分类
// @Tags         categories
// @Accept       json
// @Produce      json
// @Param        body body categoryRequest true "分类"
// @Success      201 {object} categoryView
// @Failure      400 {object} map[string]string
// @Router       /categories [post]
func (h *LostFoundHandler) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	cat, err := h.categories.Create(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCategoryView(cat))
}

// @Summary      分类列表
// @Tags         categories
// @Produce      json
// @Success      200 {array} categoryView
// @Router       /categories [get]
func (h *LostFoundHandler) listCategories(c *gin.Context) {
	list, err := h.categories.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]categoryView, 0, len(list))
	for i := range list {
		out = append(out, toCategoryView(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

// @Summary      查询分类
// @Tags         categories
// @Produce      json
// @Param        id path int true "分类 ID"
// @Success      200 {object} categoryView
// @Failure      404 {object} map[string]string
// @Router       /categories/{id} [get]
func (h *LostFoundHandler) getCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cat, err := h.categories.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCategoryView(cat))
}

// @Summary      更新分类（局部）
// @Tags         categories
// @Accept       json
// @Produce      json
// @Param        id   path int           true "分类 ID"
// @Param        body body categoryPatch true "待更新字段"
// @Success      200 {object} categoryView
// @Router       /categories/{id} [put]
func (h *LostFoundHandler) updateCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req categoryPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	cat, err := h.categories.Update(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCategoryView(cat))
}

// @Summary      删除分类（仍被物品引用时返回 409）
// @Tags         categories
// @Param        id path int true "分类 ID"
// @Success      200 {object} map[string]string
// @Failure      409 {object} map[string]string
// @Router       /categories/{id} [delete]
func (h *LostFoundHandler) deleteCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.categories.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Category deleted"})
}
