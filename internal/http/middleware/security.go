// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, which hardens JSON responses and sets
// the cache posture per route. Order and checkout responses carry customer
// emails and hosted-checkout URLs, so shared caches must never keep them;
// the orders list still revalidates through its weak ETag.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Cache-Control values chosen by SecurityHeaders.
const (
	CachePrivateRevalidate = "private, no-cache"
	CacheNoStore           = "no-store"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	// Enable only when traffic is HTTPS end-to-end.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days when <= 0.
	HSTSMaxAge time.Duration
	// NoStore forces Cache-Control: no-store on every response.
	NoStore bool
	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
	// PrivatePrefixes get "private, no-cache" so browsers may revalidate
	// with If-None-Match but proxies never store them.
	PrivatePrefixes []string
	// NoStorePrefixes get "no-store" (e.g. the webhook endpoint).
	NoStorePrefixes []string
}

// SecurityHeaders returns a Gin middleware that adds baseline hardening
// (nosniff, DENY framing, no-referrer), optional feature policies and HSTS,
// and a Cache-Control chosen from the request path. X-Request-ID is exposed
// to browser clients when present.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if cc := cachePolicy(opt, c.Request.URL.Path); cc != "" {
			h.Set("Cache-Control", cc)
			if cc == CacheNoStore {
				h.Set("Pragma", "no-cache")
				h.Set("Expires", "0")
			}
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if h.Get("X-Request-ID") != "" {
			const hdr = "Access-Control-Expose-Headers"
			switch cur := h.Get(hdr); {
			case cur == "":
				h.Set(hdr, "X-Request-ID")
			case !strings.Contains(cur, "X-Request-ID"):
				h.Set(hdr, cur+", X-Request-ID")
			}
		}

		c.Next()
	}
}

// cachePolicy returns the Cache-Control value for path, or "" to leave the
// header unset. NoStore wins over prefixes.
func cachePolicy(opt SecurityOptions, path string) string {
	if opt.NoStore || hasAnyPrefix(path, opt.NoStorePrefixes) {
		return CacheNoStore
	}
	if hasAnyPrefix(path, opt.PrivatePrefixes) {
		return CachePrivateRevalidate
	}
	return ""
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// isHTTPS reports whether the request arrived over TLS directly or via a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
