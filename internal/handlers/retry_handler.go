package handlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/internal/queue"
	"github.com/anmilktea/storefront-api/internal/views"
	"github.com/anmilktea/storefront-api/pkg"
)

// RetryHandler exposes the retry queue to the shop's internal tooling. Reads
// are open; the retry trigger requires the internal bearer key.
type RetryHandler struct {
	logger *zap.Logger
	queue  *queue.RetryQueue
	apiKey string
}

func NewRetryHandler(logger *zap.Logger, q *queue.RetryQueue, apiKey string) *RetryHandler {
	return &RetryHandler{logger: logger, queue: q, apiKey: apiKey}
}

func (h *RetryHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/orders/retry", h.GetPending)
	r.POST("/orders/retry", h.RetryAll)
}

func (h *RetryHandler) GetPending(c *gin.Context) {
	c.JSON(http.StatusOK, views.APIResponse{
		Data: map[string]any{
			"pendingCount": h.queue.CountPending(),
		},
	})
}

func (h *RetryHandler) RetryAll(c *gin.Context) {
	if !h.authorized(c) {
		respondError(c, h.logger, pkg.NewAppError(pkg.ErrUnauthorizedCode, "unauthorized", nil))
		return
	}

	var req views.RetryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, h.logger, pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid request body", err))
			return
		}
	}

	summary, err := h.queue.RetryAll(c.Request.Context())
	if err != nil {
		if errors.Is(err, pkg.ErrRetryInFlight) {
			respondError(c, h.logger, pkg.NewAppError(pkg.ErrConflictCode, "retry already in progress", err))
			return
		}
		respondError(c, h.logger, err)
		return
	}

	removed := 0
	if req.Cleanup {
		removed = h.queue.Cleanup()
	}

	c.JSON(http.StatusOK, views.APIResponse{
		Data: map[string]any{
			"total":   summary.Total,
			"synced":  summary.Synced,
			"failed":  summary.Failed,
			"results": summary.Results,
			"cleaned": removed,
		},
	})
}

func (h *RetryHandler) authorized(c *gin.Context) bool {
	if h.apiKey == "" {
		return false
	}
	auth := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	a := sha256.Sum256([]byte(token))
	b := sha256.Sum256([]byte(h.apiKey))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
