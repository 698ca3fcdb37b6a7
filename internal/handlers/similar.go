package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/metrics"
)

// similarFoundItems 相似招领物品
// @Summary      与失物最相似的招领物品
// @Description  对每个招领物品调用一次打分 Oracle，按 similarity_percent 倒序返回前 top_k 个
// @Tags         lost_items
// @Produce      json
// @Param        id    path  int true  "失物 ID"
// @Param        top_k query int false "返回数量" default(5)
// @Success      200 {array} matchView
// @Failure      400 {object} map[string]string "top_k 非正"
// @Failure      404 {object} map[string]string
// @Router       /lost_items/{id}/similar_found_items [get]
func (h *LostFoundHandler) similarFoundItems(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	def := h.cfg.Similarity.DefaultTopK
	if def <= 0 {
		def = 5
	}
	topK, err := queryInt(c, "top_k", def)
	if err != nil {
		validationError(c, err.Error())
		return
	}
	matches, err := h.ranker.Rank(c.Request.Context(), id, topK)
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.SimilarityRequests.Inc()
	c.JSON(http.StatusOK, toMatchViews(matches))
}
