package security

import (
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/pkg"
)

// EndpointPolicy binds a path prefix to a rate-limit policy.
type EndpointPolicy struct {
	Prefix string
	Limit  RateLimitConfig
}

// DefaultPolicies returns the per-endpoint rate policies. Order submission is
// the only endpoint with block escalation; read paths get soft throttling.
func DefaultPolicies() []EndpointPolicy {
	return []EndpointPolicy{
		{Prefix: "/api/orders", Limit: RateLimitConfig{MaxRequests: 5, Window: time.Minute, BlockDuration: 5 * time.Minute}},
		{Prefix: "/api/distance", Limit: RateLimitConfig{MaxRequests: 30, Window: time.Minute}},
		{Prefix: "/api/menu", Limit: RateLimitConfig{MaxRequests: 60, Window: time.Minute}},
	}
}

// GateConfig holds the request-gate tunables.
type GateConfig struct {
	AllowedOrigins []string // exact hosts or "*.suffix" wildcards
	Policies       []EndpointPolicy
}

// Known scanner user-agent signatures, matched case-insensitively.
var blockedUserAgents = []string{
	"sqlmap", "nikto", "nessus", "acunetix", "nmap", "masscan",
	"dirbuster", "gobuster", "wpscan", "metasploit",
}

// Probes for files and admin panels this service does not have. Answered
// with 404 rather than 403 to avoid confirming existence.
var sensitivePathFragments = []string{
	".env", ".git", ".htaccess", "wp-admin", "wp-login",
	"phpmyadmin", "config.php", "admin.php",
}

var staticAssetExtensions = map[string]struct{}{
	".css": {}, ".js": {}, ".map": {}, ".ico": {}, ".png": {}, ".jpg": {},
	".jpeg": {}, ".svg": {}, ".webp": {}, ".woff": {}, ".woff2": {},
}

// Gate is the ordered middleware pipeline applied to every inbound request:
// block-list, user-agent, attack patterns, rate limit, CORS, method and
// content type, sensitive paths. Every trip is recorded with the auto-healer
// before the response is written.
type Gate struct {
	cfg     GateConfig
	limiter *RateLimiter
	store   *ReputationStore
	healer  *AutoHealer
	logger  *zap.Logger
}

func NewGate(cfg GateConfig, limiter *RateLimiter, store *ReputationStore, healer *AutoHealer, logger *zap.Logger) *Gate {
	if len(cfg.Policies) == 0 {
		cfg.Policies = DefaultPolicies()
	}
	return &Gate{
		cfg:     cfg,
		limiter: limiter,
		store:   store,
		healer:  healer,
		logger:  logger,
	}
}

func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqPath := c.Request.URL.Path
		if skipGate(reqPath) {
			c.Next()
			return
		}

		ip := c.ClientIP()

		// 1. IP block check: both the gate store and the auto-healer's own
		// block list deny independently.
		if g.store.IsBlocked(ip) || g.healer.IsBlocked(ip) {
			g.deny(c, pkg.ErrIPBlockedCode)
			return
		}

		// 2. Scanner user agents
		ua := strings.ToLower(c.Request.UserAgent())
		for _, sig := range blockedUserAgents {
			if strings.Contains(ua, sig) {
				g.healer.RecordIncident(IncidentSuspiciousIP, SeverityHigh, ip, map[string]any{
					"userAgent": c.Request.UserAgent(),
					"path":      reqPath,
				})
				g.deny(c, pkg.ErrForbiddenUACode)
				return
			}
		}

		// 3. Attack patterns on the path and each query value. Values are
		// checked individually: scanning the raw joined query string would
		// trip on the "&" separator.
		if family, ok := DetectAttack(reqPath); ok {
			g.recordAttack(c, ip, family, "path", reqPath)
			return
		}
		for param, values := range c.Request.URL.Query() {
			for _, value := range values {
				if family, ok := DetectAttack(value); ok {
					g.recordAttack(c, ip, family, param, value)
					return
				}
			}
		}

		// 4. Rate limit
		if policy, ok := g.matchPolicy(reqPath); ok {
			result := g.limiter.Check(ip+":"+policy.Prefix, policy.Limit)
			if !result.Allowed {
				g.healer.RecordIncident(IncidentRateLimitExceeded, SeverityMedium, ip, map[string]any{
					"endpoint": policy.Prefix,
				})
				retryAfter := int(time.Until(result.ResetAt).Seconds() + 0.5)
				if retryAfter < 1 {
					retryAfter = 1
				}
				c.Header(pkg.HeaderRetryAfter, strconv.Itoa(retryAfter))
				g.deny(c, pkg.ErrRateLimitedCode)
				return
			}
		}

		// 5. Origin validation, cross-origin requests only
		origin := c.Request.Header.Get("Origin")
		if origin != "" && !sameOrigin(origin, c.Request.Host) {
			if !originAllowed(origin, g.cfg.AllowedOrigins) {
				g.deny(c, pkg.ErrOriginCode)
				return
			}
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		// 6. Method and content type for mutating requests
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPost:
		default:
			g.deny(c, pkg.ErrMethodCode)
			return
		}
		if c.Request.Method == http.MethodPost && c.Request.ContentLength > 0 {
			if !isJSONContentType(c.ContentType()) {
				g.deny(c, pkg.ErrContentTypeCode)
				return
			}
		}

		// 7. Sensitive path probes
		lowerPath := strings.ToLower(reqPath)
		for _, fragment := range sensitivePathFragments {
			if strings.Contains(lowerPath, fragment) {
				g.store.RecordSuspicious(ip)
				g.deny(c, pkg.ErrRecordNotFoundCode)
				return
			}
		}

		c.Next()
	}
}

func (g *Gate) recordAttack(c *gin.Context, ip string, family PatternFamily, field, value string) {
	g.healer.RecordIncident(IncidentForFamily(family), SeverityCritical, ip, map[string]any{
		"family": string(family),
		"field":  field,
		"value":  value,
		"path":   c.Request.URL.Path,
	})
	g.deny(c, pkg.ErrMaliciousInputCode)
}

func (g *Gate) deny(c *gin.Context, code pkg.ErrorCode) {
	c.AbortWithStatusJSON(code.Status, pkg.ErrorResponse{
		Code:    code.Code,
		Message: code.Message,
	})
}

func (g *Gate) matchPolicy(reqPath string) (EndpointPolicy, bool) {
	for _, policy := range g.cfg.Policies {
		if strings.HasPrefix(reqPath, policy.Prefix) {
			return policy, true
		}
	}
	return EndpointPolicy{}, false
}

func skipGate(reqPath string) bool {
	switch reqPath {
	case "/health", "/metrics", "/favicon.ico":
		return true
	}
	_, isAsset := staticAssetExtensions[strings.ToLower(path.Ext(reqPath))]
	return isAsset
}

func sameOrigin(origin, host string) bool {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
	return trimmed == host
}

func originAllowed(origin string, allowed []string) bool {
	host := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
	for _, a := range allowed {
		if a == "*" {
			return true
		}
		if suffix, ok := strings.CutPrefix(a, "*."); ok {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if origin == a || host == a {
			return true
		}
	}
	return false
}

func isJSONContentType(contentType string) bool {
	return strings.EqualFold(strings.TrimSpace(contentType), "application/json")
}
