// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements shop tenancy resolution. Every API operation is scoped
// to one storefront domain, and callers convey it through one of three
// channels depending on where the request originates:
//   - the `shop` query parameter (public widget and embed endpoints)
//   - the X-Shopify-Shop-Domain header (embedded admin app)
//   - the Referer hostname (storefront scripts that cannot set either)
//
// ShopContext normalizes and stashes the resolved domain; handlers read it
// via ShopFrom. RequireShop additionally rejects requests that carry no shop
// at all, for routes where anonymous access is meaningless.
package middleware

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderShopDomain is the canonical admin-surface header carrying the
// caller's shop domain, set by the embedded app frontend.
const HeaderShopDomain = "X-Shopify-Shop-Domain"

// ctxKeyShop stashes the resolved shop domain in the Gin context.
const ctxKeyShop = "tenant.shop"

// shopDomainRE is a conservative hostname check applied after
// normalization. It rejects schemes, paths, ports and injection attempts.
var shopDomainRE = regexp.MustCompile(`^[a-z0-9][a-z0-9\-.]{0,253}[a-z0-9]$`)

// ShopResolverOptions configures ShopContext.
type ShopResolverOptions struct {
	// QueryParam is the query key checked first. Defaults to "shop".
	QueryParam string
	// Header is checked second. Defaults to HeaderShopDomain.
	Header string
	// DomainSuffix, when non-empty, is required of Referer-derived hosts
	// (e.g. ".myshopify.com"). Query and header values are trusted as-is
	// after normalization since they come from authenticated surfaces.
	DomainSuffix string
}

// ShopFrom returns the shop domain resolved by ShopContext. The second
// return value indicates presence.
func ShopFrom(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyShop)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// NormalizeShopDomain lowercases, trims, and strips any scheme, path or port
// from a caller-supplied shop value. Returns "" when the result is not a
// plausible hostname.
func NormalizeShopDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	if !shopDomainRE.MatchString(s) {
		return ""
	}
	return s
}

// ShopContext resolves the tenant shop domain for the request and stashes it
// in the context. Resolution order: query parameter, then header, then
// Referer hostname. Absence is not an error here; RequireShop enforces
// presence where it matters.
func ShopContext(opts ShopResolverOptions) gin.HandlerFunc {
	queryParam := opts.QueryParam
	if queryParam == "" {
		queryParam = "shop"
	}
	header := opts.Header
	if header == "" {
		header = HeaderShopDomain
	}

	return func(c *gin.Context) {
		shop := NormalizeShopDomain(c.Query(queryParam))
		if shop == "" {
			shop = NormalizeShopDomain(c.GetHeader(header))
		}
		if shop == "" {
			shop = shopFromReferer(c.GetHeader("Referer"), opts.DomainSuffix)
		}
		if shop != "" {
			c.Set(ctxKeyShop, shop)
		}
		c.Next()
	}
}

// RequireShop rejects requests that reach it without a resolved shop. Mount
// it after ShopContext on admin routes.
func RequireShop() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ShopFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "missing_shop",
				"message": "shop domain required",
			})
			return
		}
		c.Next()
	}
}

// shopFromReferer extracts the hostname of a Referer URL when it matches the
// configured suffix. Referer is the least trusted channel, so the suffix
// check is mandatory when one is configured.
func shopFromReferer(referer, suffix string) string {
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := NormalizeShopDomain(u.Hostname())
	if host == "" {
		return ""
	}
	if suffix != "" && !strings.HasSuffix(host, suffix) {
		return ""
	}
	return host
}
