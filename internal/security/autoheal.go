package security

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type IncidentType string

const (
	IncidentRateLimitExceeded IncidentType = "rate_limit_exceeded"
	IncidentSuspiciousIP      IncidentType = "suspicious_ip"
	IncidentSQLInjection      IncidentType = "sql_injection"
	IncidentXSSAttempt        IncidentType = "xss_attempt"
	IncidentCSRFAttempt       IncidentType = "csrf_attempt"
	IncidentBruteForce        IncidentType = "brute_force"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Incident is an immutable record of a detected security event and the
// mitigation applied to it.
type Incident struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Type       IncidentType   `json:"type"`
	Severity   Severity       `json:"severity"`
	ClientIP   string         `json:"clientIP"`
	Details    map[string]any `json:"details"`
	AutoHealed bool           `json:"autoHealed"`
	Action     string         `json:"action"`
}

// Stats summarizes incidents over a trailing window.
type Stats struct {
	TotalIncidents      int             `json:"totalIncidents"`
	IncidentsByType     map[string]int  `json:"incidentsByType"`
	IncidentsBySeverity map[string]int  `json:"incidentsBySeverity"`
	TopAttackers        []AttackerCount `json:"topAttackers"`
	AutoHealedCount     int             `json:"autoHealedCount"`
}

type AttackerCount struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

type Health struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message"`
	Stats   Stats        `json:"stats"`
}

// AdminNotifier receives best-effort notifications for critical incidents.
type AdminNotifier interface {
	NotifyIncident(incident Incident)
}

const maxIncidents = 1000

var incidentsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "storefront_api",
		Name:      "security_incidents_total",
		Help:      "Total number of recorded security incidents",
	},
	[]string{"type", "severity"},
)

// AutoHealer applies a per-incident-type mitigation at intake time and keeps
// a bounded log of everything it has seen. It owns its own block list,
// separate from the gate-level ReputationStore.
type AutoHealer struct {
	mu        sync.Mutex
	incidents []Incident // ring, oldest first, capped at maxIncidents

	store    *ReputationStore
	notifier AdminNotifier
	logger   *zap.Logger

	now func() time.Time
}

func NewAutoHealer(store *ReputationStore, notifier AdminNotifier, logger *zap.Logger) *AutoHealer {
	return &AutoHealer{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordIncident appends the incident to the bounded log after applying the
// auto-heal action. Critical incidents additionally trigger an async admin
// notification. The record is written before any caller can respond.
func (h *AutoHealer) RecordIncident(incidentType IncidentType, severity Severity, clientIP string, details map[string]any) Incident {
	action := h.heal(incidentType, severity, clientIP)

	incident := Incident{
		ID:         fmt.Sprintf("INC_%d_%s", h.now().UnixMilli(), shortID()),
		Timestamp:  h.now(),
		Type:       incidentType,
		Severity:   severity,
		ClientIP:   clientIP,
		Details:    details,
		AutoHealed: action != actionLogged,
		Action:     action,
	}

	h.mu.Lock()
	h.incidents = append(h.incidents, incident)
	if len(h.incidents) > maxIncidents {
		h.incidents = h.incidents[len(h.incidents)-maxIncidents:]
	}
	h.mu.Unlock()

	incidentsTotal.WithLabelValues(string(incidentType), string(severity)).Inc()
	h.logger.Warn("security incident",
		zap.String("incident_id", incident.ID),
		zap.String("type", string(incidentType)),
		zap.String("severity", string(severity)),
		zap.String(ipField, clientIP),
		zap.String("action", action))

	if severity == SeverityCritical && h.notifier != nil {
		go h.notifier.NotifyIncident(incident)
	}
	return incident
}

const (
	actionLogged      = "logged"
	actionRateLimited = "rate_limited"
	actionSuspicious  = "marked_suspicious"
)

// heal is the decision table: incident type and severity select the block
// duration applied through the reputation store.
func (h *AutoHealer) heal(incidentType IncidentType, severity Severity, clientIP string) string {
	switch incidentType {
	case IncidentBruteForce:
		if severity == SeverityHigh || severity == SeverityCritical {
			h.store.Block(clientIP, 24*time.Hour)
			return "blocked_24h"
		}
		h.store.Block(clientIP, time.Hour)
		return "blocked_1h"

	case IncidentSQLInjection, IncidentXSSAttempt:
		h.store.Block(clientIP, 7*24*time.Hour)
		return "blocked_7d"

	case IncidentSuspiciousIP:
		if h.store.RecordSuspicious(clientIP) {
			return "blocked_1h_after_3_attempts"
		}
		return actionSuspicious

	case IncidentRateLimitExceeded:
		// already enforced by the rate limiter
		return actionRateLimited

	case IncidentCSRFAttempt:
		if severity == SeverityHigh || severity == SeverityCritical {
			h.store.Block(clientIP, time.Hour)
			return "blocked_1h"
		}
		return actionLogged

	default:
		return actionLogged
	}
}

// IsBlocked reports whether the auto-healer's own block list denies the IP.
func (h *AutoHealer) IsBlocked(ip string) bool {
	return h.store.IsBlocked(ip)
}

// BlockedIPs returns the auto-healer's currently blocked IPs.
func (h *AutoHealer) BlockedIPs() []string {
	return h.store.BlockedIPs()
}

// GetStats recomputes incident statistics for the trailing window; nothing is
// aggregated persistently.
func (h *AutoHealer) GetStats(hours int) Stats {
	since := h.now().Add(-time.Duration(hours) * time.Hour)

	h.mu.Lock()
	recent := make([]Incident, 0, len(h.incidents))
	for _, inc := range h.incidents {
		if !inc.Timestamp.Before(since) {
			recent = append(recent, inc)
		}
	}
	h.mu.Unlock()

	stats := Stats{
		TotalIncidents:      len(recent),
		IncidentsByType:     make(map[string]int),
		IncidentsBySeverity: make(map[string]int),
	}
	ipCounts := make(map[string]int)

	for _, inc := range recent {
		stats.IncidentsByType[string(inc.Type)]++
		stats.IncidentsBySeverity[string(inc.Severity)]++
		ipCounts[inc.ClientIP]++
		if inc.AutoHealed {
			stats.AutoHealedCount++
		}
	}

	for ip, count := range ipCounts {
		stats.TopAttackers = append(stats.TopAttackers, AttackerCount{IP: ip, Count: count})
	}
	sort.Slice(stats.TopAttackers, func(i, j int) bool {
		if stats.TopAttackers[i].Count != stats.TopAttackers[j].Count {
			return stats.TopAttackers[i].Count > stats.TopAttackers[j].Count
		}
		return stats.TopAttackers[i].IP < stats.TopAttackers[j].IP
	})
	if len(stats.TopAttackers) > 10 {
		stats.TopAttackers = stats.TopAttackers[:10]
	}
	return stats
}

// HealthCheck derives the edge-security health from the last hour of
// incidents. It is a view over GetStats, not separate state.
func (h *AutoHealer) HealthCheck() Health {
	stats := h.GetStats(1)

	if stats.TotalIncidents == 0 {
		return Health{Status: HealthHealthy, Message: "no security incidents in the last hour", Stats: stats}
	}

	criticalCount := stats.IncidentsBySeverity[string(SeverityCritical)]
	highCount := stats.IncidentsBySeverity[string(SeverityHigh)]

	if criticalCount > 0 || highCount > 10 {
		return Health{
			Status:  HealthCritical,
			Message: fmt.Sprintf("under attack: %d critical, %d high severity incidents", criticalCount, highCount),
			Stats:   stats,
		}
	}
	if stats.TotalIncidents > 20 {
		return Health{
			Status:  HealthWarning,
			Message: fmt.Sprintf("elevated threat level: %d incidents in last hour", stats.TotalIncidents),
			Stats:   stats,
		}
	}
	return Health{
		Status:  HealthHealthy,
		Message: fmt.Sprintf("%d minor incidents handled", stats.TotalIncidents),
		Stats:   stats,
	}
}

func shortID() string {
	return uuid.New().String()[:8]
}
