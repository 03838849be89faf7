package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/pkg"
	middleware "github.com/anmilktea/storefront-api/pkg/middlewares"
)

// respondError maps any error to the shared error envelope with the request's
// trace ID attached in logs.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	resp := pkg.ToErrorResponse(logger, middleware.GetTraceID(c), err)
	c.JSON(resp.Status, resp)
}
