package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func resolveShop(t *testing.T, opts ShopResolverOptions, target string, headers map[string]string) (string, bool) {
	t.Helper()
	r := gin.New()
	r.Use(ShopContext(opts))
	var shop string
	var ok bool
	r.GET("/resolve", func(c *gin.Context) {
		shop, ok = ShopFrom(c)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(httptest.NewRecorder(), req)
	return shop, ok
}

func TestNormalizeShopDomain(t *testing.T) {
	cases := []struct{ in, want string }{
		{"acme.myshopify.com", "acme.myshopify.com"},
		{"ACME.MyShopify.COM", "acme.myshopify.com"},
		{"  acme.myshopify.com  ", "acme.myshopify.com"},
		{"https://acme.myshopify.com", "acme.myshopify.com"},
		{"https://acme.myshopify.com/admin/apps", "acme.myshopify.com"},
		{"acme.myshopify.com:443", "acme.myshopify.com"},
		{"acme.myshopify.com?x=1", "acme.myshopify.com"},
		{"", ""},
		{"   ", ""},
		{"not a domain", ""},
		{"-leadinghyphen.com", ""},
		{"trailing.com-", ""},
		{"x", ""},
	}
	for _, tc := range cases {
		if got := NormalizeShopDomain(tc.in); got != tc.want {
			t.Errorf("NormalizeShopDomain(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestShopContext_QueryWins(t *testing.T) {
	shop, ok := resolveShop(t, ShopResolverOptions{}, "/resolve?shop=query.myshopify.com", map[string]string{
		HeaderShopDomain: "header.myshopify.com",
		"Referer":        "https://referer.myshopify.com/products",
	})
	if !ok || shop != "query.myshopify.com" {
		t.Fatalf("shop = %q ok=%v, want the query value", shop, ok)
	}
}

func TestShopContext_HeaderBeforeReferer(t *testing.T) {
	shop, ok := resolveShop(t, ShopResolverOptions{}, "/resolve", map[string]string{
		HeaderShopDomain: "header.myshopify.com",
		"Referer":        "https://referer.myshopify.com/",
	})
	if !ok || shop != "header.myshopify.com" {
		t.Fatalf("shop = %q ok=%v, want the header value", shop, ok)
	}
}

func TestShopContext_RefererFallbackWithSuffix(t *testing.T) {
	opts := ShopResolverOptions{DomainSuffix: ".myshopify.com"}

	shop, ok := resolveShop(t, opts, "/resolve", map[string]string{
		"Referer": "https://acme.myshopify.com/collections/all",
	})
	if !ok || shop != "acme.myshopify.com" {
		t.Fatalf("shop = %q ok=%v, want the Referer host", shop, ok)
	}

	// A Referer outside the suffix must not resolve.
	if _, ok := resolveShop(t, opts, "/resolve", map[string]string{
		"Referer": "https://evil.example.com/",
	}); ok {
		t.Fatal("Referer outside the suffix must be ignored")
	}
}

func TestShopContext_SuffixNotAppliedToQuery(t *testing.T) {
	// Query values come from authenticated surfaces; the suffix guards
	// Referer only.
	opts := ShopResolverOptions{DomainSuffix: ".myshopify.com"}
	shop, ok := resolveShop(t, opts, "/resolve?shop=custom-domain.example.com", nil)
	if !ok || shop != "custom-domain.example.com" {
		t.Fatalf("shop = %q ok=%v", shop, ok)
	}
}

func TestShopContext_GarbageQueryFallsThrough(t *testing.T) {
	shop, ok := resolveShop(t, ShopResolverOptions{}, "/resolve?shop=%20not%20a%20domain", map[string]string{
		HeaderShopDomain: "header.myshopify.com",
	})
	if !ok || shop != "header.myshopify.com" {
		t.Fatalf("shop = %q ok=%v, want fallback to header", shop, ok)
	}
}

func TestShopContext_AbsentIsNotAnError(t *testing.T) {
	if _, ok := resolveShop(t, ShopResolverOptions{}, "/resolve", nil); ok {
		t.Fatal("no channel supplied a shop, ShopFrom must report absence")
	}
}

func TestRequireShop(t *testing.T) {
	r := gin.New()
	r.Use(ShopContext(ShopResolverOptions{}))
	r.GET("/admin", RequireShop(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Without a shop: 401 with the stable code.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["code"] != "missing_shop" {
		t.Fatalf("code = %q", body["code"])
	}

	// With a shop: passes through.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin?shop=acme.myshopify.com", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
