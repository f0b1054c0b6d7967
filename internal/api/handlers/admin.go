package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/potlam/cloudprint/internal/core"
	"github.com/potlam/cloudprint/internal/db"
)

type QueueDepthsResponse struct {
	Queues map[string]int `json:"queues"`
	Total  int            `json:"total"`
}

type AuthWindowResponse struct {
	RestaurantCode string    `json:"restaurant_code"`
	ValidUntil     time.Time `json:"valid_until"`
}

type ListOrdersQuery struct {
	RestaurantCode string `form:"restaurant_code"`
	Status         string `form:"status"`
	Limit          int    `form:"limit" binding:"max=100"`
	Offset         int    `form:"offset"`
}

// AdminHandler exposes queue and order visibility for operators. All
// routes sit behind the session middleware.
type AdminHandler struct {
	queue  *core.OrderQueue
	auth   *core.AuthCache
	store  *db.Store
	logger *zap.Logger
}

func NewAdminHandler(queue *core.OrderQueue, auth *core.AuthCache, store *db.Store, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		queue:  queue,
		auth:   auth,
		store:  store,
		logger: logger,
	}
}

func (h *AdminHandler) GetQueues(c *gin.Context) {
	depths := h.queue.Depths()

	total := 0
	for _, depth := range depths {
		total += depth
	}

	c.JSON(http.StatusOK, QueueDepthsResponse{Queues: depths, Total: total})
}

func (h *AdminHandler) ListOrders(c *gin.Context) {
	var query ListOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if query.Limit <= 0 {
		query.Limit = 50
	}

	orders, err := h.store.ListOrders(c.Request.Context(), db.OrderFilter{
		RestaurantCode: query.RestaurantCode,
		Status:         query.Status,
		Limit:          query.Limit,
		Offset:         query.Offset,
	})
	if err != nil {
		h.logger.Error("failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (h *AdminHandler) GetAuthWindows(c *gin.Context) {
	windows := h.auth.ActiveWindows()

	out := make([]AuthWindowResponse, 0, len(windows))
	for code, until := range windows {
		out = append(out, AuthWindowResponse{RestaurantCode: code, ValidUntil: until})
	}

	c.JSON(http.StatusOK, gin.H{"windows": out})
}
