package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/internal/services"
	"github.com/anmilktea/storefront-api/internal/views"
	"github.com/anmilktea/storefront-api/pkg"
)

type OrderHandler struct {
	logger  *zap.Logger
	service *services.OrderService
}

func NewOrderHandler(logger *zap.Logger, svc *services.OrderService) *OrderHandler {
	return &OrderHandler{logger: logger, service: svc}
}

// RegisterRoutes registers order routes on the provided Gin group.
func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/track", h.TrackOrder)
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req views.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid request body", err))
		return
	}

	result, err := h.service.Create(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, views.APIResponse{
		Data: map[string]any{
			"orderNo":   result.OrderNo,
			"posSynced": result.PosSynced,
			"queued":    result.Queued,
		},
	})
}

func (h *OrderHandler) TrackOrder(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Query("orderNo"))
	if orderNo == "" {
		respondError(c, h.logger, pkg.NewAppError(pkg.ErrInvalidInputCode, "orderNo is required", nil))
		return
	}

	pending, ok := h.service.Track(orderNo)
	if !ok {
		respondError(c, h.logger, pkg.NewAppError(pkg.ErrRecordNotFoundCode, "order not found", pkg.ErrOrderNotFound))
		return
	}

	c.JSON(http.StatusOK, views.APIResponse{
		Data: map[string]any{
			"orderNo":    pending.Order.OrderNo,
			"status":     pending.Status,
			"retryCount": pending.RetryCount,
			"createdAt":  pending.CreatedAt,
		},
	})
}
