package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/internal/security"
	"github.com/anmilktea/storefront-api/internal/views"
)

const blockedIPSample = 10

// SecurityHandler is the read-only monitoring projection over the auto-healer
// and the transaction log.
type SecurityHandler struct {
	logger *zap.Logger
	healer *security.AutoHealer
	store  *security.ReputationStore
	txLog  *security.TransactionLog
}

func NewSecurityHandler(logger *zap.Logger, healer *security.AutoHealer,
	store *security.ReputationStore, txLog *security.TransactionLog) *SecurityHandler {
	return &SecurityHandler{logger: logger, healer: healer, store: store, txLog: txLog}
}

func (h *SecurityHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/security/health", h.GetHealth)
}

func (h *SecurityHandler) GetHealth(c *gin.Context) {
	health := h.healer.HealthCheck()
	stats := h.healer.GetStats(24)

	blocked := h.healer.BlockedIPs()
	blocked = append(blocked, h.store.BlockedIPs()...)
	sample := blocked
	if len(sample) > blockedIPSample {
		sample = sample[:blockedIPSample]
	}

	suspicious := h.txLog.Suspicious()
	recentSuspicious := suspicious
	if len(recentSuspicious) > 5 {
		recentSuspicious = recentSuspicious[len(recentSuspicious)-5:]
	}

	c.JSON(http.StatusOK, views.APIResponse{
		Data: map[string]any{
			"status":    health.Status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"health":    health,
			"last24Hours": map[string]any{
				"totalIncidents":      stats.TotalIncidents,
				"incidentsByType":     stats.IncidentsByType,
				"incidentsBySeverity": stats.IncidentsBySeverity,
				"topAttackers":        stats.TopAttackers,
				"autoHealedCount":     stats.AutoHealedCount,
			},
			"blockedIPs": map[string]any{
				"count":  len(blocked),
				"sample": sample,
			},
			"suspiciousTransactions": map[string]any{
				"count":  len(suspicious),
				"recent": recentSuspicious,
			},
			"recommendations": recommendations(health, stats, len(blocked), len(suspicious)),
		},
	})
}

// recommendations produces rule-based operator guidance from the current
// security posture.
func recommendations(health security.Health, stats security.Stats, blockedCount, suspiciousCount int) []string {
	var recs []string
	if health.Status == security.HealthCritical {
		recs = append(recs, "Critical incidents detected in the last hour. Review incident log and consider tightening rate limits.")
	}
	if stats.IncidentsByType[string(security.IncidentSQLInjection)] > 0 {
		recs = append(recs, "SQL injection attempts observed. Verify input validation on all order fields.")
	}
	if stats.IncidentsByType[string(security.IncidentBruteForce)] > 3 {
		recs = append(recs, "Repeated brute force activity. Consider CAPTCHA on order submission.")
	}
	if blockedCount > 50 {
		recs = append(recs, "Large number of blocked IPs. Possible distributed attack; review upstream firewall rules.")
	}
	if suspiciousCount > 10 {
		recs = append(recs, "High volume of suspicious transactions. Review payment webhook sources.")
	}
	if len(recs) == 0 {
		recs = append(recs, "No action required. Security posture is normal.")
	}
	return recs
}
