package pkg

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var ExposeErrorDetails = false

func init() {
	if gin.DebugMode == gin.Mode() || gin.TestMode == gin.Mode() {
		ExposeErrorDetails = true
	}
}

// Reusable errors
var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderNotPending = errors.New("order is not pending")
	ErrRetryInFlight   = errors.New("retry already in progress")
)

// ErrorCode defines a standardized error code
type ErrorCode struct {
	Code    string
	Status  int
	Message string // default message
}

var (
	// Generic app
	ErrInvalidInputCode   = ErrorCode{Code: "APP_INVALID_INPUT", Status: http.StatusBadRequest, Message: "invalid input"}
	ErrServerCode         = ErrorCode{Code: "APP_INTERNAL", Status: http.StatusInternalServerError, Message: "internal server error"}
	ErrRecordNotFoundCode = ErrorCode{Code: "APP_NOT_FOUND", Status: http.StatusNotFound, Message: "record not found"}
	ErrUnauthorizedCode   = ErrorCode{Code: "APP_UNAUTHORIZED", Status: http.StatusUnauthorized, Message: "unauthorized"}
	ErrConflictCode       = ErrorCode{Code: "APP_CONFLICT", Status: http.StatusConflict, Message: "conflict"}

	// Policy violations (rate limit, CORS, method, content type)
	ErrRateLimitedCode   = ErrorCode{Code: "POLICY_RATE_LIMITED", Status: http.StatusTooManyRequests, Message: "too many requests, please try again later"}
	ErrOriginCode        = ErrorCode{Code: "POLICY_ORIGIN_DENIED", Status: http.StatusForbidden, Message: "origin not allowed"}
	ErrMethodCode        = ErrorCode{Code: "POLICY_METHOD", Status: http.StatusMethodNotAllowed, Message: "method not allowed"}
	ErrContentTypeCode   = ErrorCode{Code: "POLICY_CONTENT_TYPE", Status: http.StatusUnsupportedMediaType, Message: "unsupported content type"}

	// Security violations
	ErrIPBlockedCode      = ErrorCode{Code: "SEC_IP_BLOCKED", Status: http.StatusForbidden, Message: "access denied"}
	ErrForbiddenUACode    = ErrorCode{Code: "SEC_CLIENT_DENIED", Status: http.StatusForbidden, Message: "access denied"}
	ErrMaliciousInputCode = ErrorCode{Code: "SEC_MALICIOUS_INPUT", Status: http.StatusBadRequest, Message: "invalid request"}
	ErrBadSignatureCode   = ErrorCode{Code: "SEC_BAD_SIGNATURE", Status: http.StatusUnauthorized, Message: "invalid signature"}

	// Upstream dependency failures
	ErrUpstreamCode = ErrorCode{Code: "UPSTREAM_POS", Status: http.StatusBadGateway, Message: "upstream unavailable"}
)

type AppError struct {
	Code    ErrorCode
	Message string // public-facing message
	Cause   error  // internal cause (wrapped)
}

func (e AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}
func (e AppError) Unwrap() error { return e.Cause }

func NewAppError(code ErrorCode, msg string, cause error) error {
	return AppError{Code: code, Message: msg, Cause: cause}
}

// ErrorResponse defines the standardized error response format
type ErrorResponse struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ToErrorResponse converts an error into an ErrorResponse, logging details and optionally exposing error messages.
// If the error is not an AppError, it is converted to a generic 500 error. Internal details (upstream bodies,
// causes) never reach the client outside debug/test mode.
func ToErrorResponse(logger *zap.Logger, traceID string, err error) ErrorResponse {
	var appErr AppError
	if errors.As(err, &appErr) {
		resp := ErrorResponse{
			Status:  appErr.Code.Status,
			Code:    appErr.Code.Code,
			Message: appErr.Message,
		}
		logger.Error("application error", zap.String(TraceId, traceID), zap.Error(err))
		if ExposeErrorDetails {
			resp.Details = err.Error()
		}
		return resp
	}
	// Unknown error : 500
	resp := ErrorResponse{
		Status:  ErrServerCode.Status,
		Code:    ErrServerCode.Code,
		Message: ErrServerCode.Message,
	}
	logger.Error("application error", zap.String(TraceId, traceID), zap.Error(err))
	if ExposeErrorDetails {
		resp.Details = err.Error()
	}
	return resp
}
