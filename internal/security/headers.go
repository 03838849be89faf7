package security

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Security response headers, applied to every response (allowed or denied)
// before any gate check can abort the request.

var cspHeader = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self'",
	"style-src 'self' 'unsafe-inline'",
	"img-src 'self' data: https:",
	"font-src 'self' data:",
	"connect-src 'self' https://graphapi.cukcuk.vn https://*.cukcuk.vn",
	"frame-ancestors 'none'",
	"form-action 'self'",
	"base-uri 'self'",
	"object-src 'none'",
	"upgrade-insecure-requests",
}, "; ")

var permissionsPolicyHeader = strings.Join([]string{
	"accelerometer=()",
	"camera=()",
	"geolocation=(self)", // delivery-fee distance lookups
	"gyroscope=()",
	"magnetometer=()",
	"microphone=()",
	"payment=()",
	"usb=()",
}, ", ")

// Headers returns middleware that emits the fixed security header set and
// strips server-identifying headers.
func Headers() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Content-Security-Policy", cspHeader)
		h.Set("Permissions-Policy", permissionsPolicyHeader)
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		h.Del("Server")
		h.Del("X-Powered-By")
		c.Next()
	}
}
