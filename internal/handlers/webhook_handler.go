package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/internal/security"
	"github.com/anmilktea/storefront-api/internal/views"
	"github.com/anmilktea/storefront-api/pkg"
)

// maxWebhookBody caps the payload read; provider notifications are small.
const maxWebhookBody = 1 << 20

// WebhookSecrets carries the per-provider verification material. An empty
// secret rejects every webhook from that provider.
type WebhookSecrets struct {
	SepaySecret string
	CassoToken  string
	VNPaySecret string
}

// paymentInfo is the provider-independent view of a payment notification.
type paymentInfo struct {
	Amount        float64
	OrderRef      string
	TransactionID string
}

type WebhookHandler struct {
	logger  *zap.Logger
	secrets WebhookSecrets
	txLog   *security.TransactionLog
	healer  *security.AutoHealer
}

func NewWebhookHandler(logger *zap.Logger, secrets WebhookSecrets,
	txLog *security.TransactionLog, healer *security.AutoHealer) *WebhookHandler {
	return &WebhookHandler{logger: logger, secrets: secrets, txLog: txLog, healer: healer}
}

func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/payment", h.HandlePayment)
}

// HandlePayment verifies the provider signature, extracts the payment fields
// and records the transaction. The audit record is written before the
// response in both directions.
func (h *WebhookHandler) HandlePayment(c *gin.Context) {
	provider := strings.ToLower(c.Query("provider"))
	if provider == "" {
		provider = strings.ToLower(c.GetHeader("X-Provider"))
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, h.logger, pkg.NewAppError(pkg.ErrInvalidInputCode, "unreadable body", err))
		return
	}

	var result security.VerificationResult
	switch provider {
	case "sepay":
		// Some sepay setups ship the signature inside the payload instead
		// of the header. Those wrap the signed fields in a data member so
		// the signature is not part of the signed bytes.
		sig := c.GetHeader(pkg.HeaderSignature)
		if sig == "" {
			sig = jsonStringField(body, "signature")
		}
		result = security.VerifySepay(sepaySignedDoc(body), sig, h.secrets.SepaySecret)
	case "casso":
		// Casso carries the token in the payload; the header form covers
		// manually configured forwarders.
		token := jsonStringField(body, "secure_token")
		if token == "" {
			token = c.GetHeader("Secure-Token")
		}
		result = security.VerifyCasso(token, h.secrets.CassoToken)
	case "vnpay":
		params := parseJSONStringMap(body)
		result = security.VerifyVNPay(params, params["vnp_SecureHash"], h.secrets.VNPaySecret)
	default:
		respondError(c, h.logger, pkg.NewAppError(pkg.ErrInvalidInputCode, "unknown provider", nil))
		return
	}

	clientIP := c.ClientIP()
	if !result.Valid {
		h.txLog.Record(security.Transaction{
			Type:     security.TxWebhook,
			Status:   security.TxSuspicious,
			Provider: provider,
			ClientIP: clientIP,
			Error:    fmt.Sprintf("signature verification failed: %v", result.Err),
		})
		respondError(c, h.logger, pkg.NewAppError(pkg.ErrBadSignatureCode, "invalid signature", result.Err))
		return
	}

	info := extractPaymentInfo(provider, body)
	h.txLog.Record(security.Transaction{
		Type:     security.TxWebhook,
		Status:   security.TxSuccess,
		Amount:   info.Amount,
		Currency: "VND",
		OrderID:  info.OrderRef,
		Provider: provider,
		ClientIP: clientIP,
		Metadata: map[string]any{"transactionId": info.TransactionID},
	})

	if h.txLog.CheckSuspiciousActivity(clientIP) {
		h.healer.RecordIncident(security.IncidentSuspiciousIP, security.SeverityMedium, clientIP,
			map[string]any{"reason": "webhook transaction volume", "provider": provider})
	}

	c.JSON(http.StatusOK, views.APIResponse{
		Data: map[string]any{
			"received": true,
			"orderRef": info.OrderRef,
		},
	})
}
