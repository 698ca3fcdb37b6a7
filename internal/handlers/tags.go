package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type tagRequest struct {
	Name string `json:"name" binding:"required"`
}

// @Summary      创建标签（名称唯一）
// @Tags         tags
// @Accept       json
// @Produce      json
// @Param        body body tagRequest true "标签"
// @Success      201 {object} tagView
// @Failure      400 {object} map[string]string
// @Router       /tags [post]
func (h *LostFoundHandler) createTag(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	t, err := h.tags.Create(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tagView{ID: t.ID, Name: t.Name})
}

// @Summary      标签列表
// @Tags         tags
// @Produce      json
// @Success      200 {array} tagView
// @Router       /tags [get]
func (h *LostFoundHandler) listTags(c *gin.Context) {
	list, err := h.tags.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTagViews(list))
}

// @Summary      查询标签
// @Tags         tags
// @Produce      json
// @Param        id path int true "标签 ID"
// @Success      200 {object} tagView
// @Router       /tags/{id} [get]
func (h *LostFoundHandler) getTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.tags.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tagView{ID: t.ID, Name: t.Name})
}

// @Summary      重命名标签
// @Tags         tags
// @Accept       json
// @Produce      json
// @Param        id   path int        true "标签 ID"
// @Param        body body tagRequest true "新名称"
// @Success      200 {object} tagView
// @Router       /tags/{id} [put]
func (h *LostFoundHandler) updateTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	t, err := h.tags.Rename(c.Request.Context(), id, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tagView{ID: t.ID, Name: t.Name})
}

// @Summary      删除标签（同时解除与物品的关联）
// @Tags         tags
// @Param        id path int true "标签 ID"
// @Success      200 {object} map[string]string
// @Router       /tags/{id} [delete]
func (h *LostFoundHandler) deleteTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.tags.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Tag deleted"})
}
