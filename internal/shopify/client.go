// Package shopify is a minimal read-only client for the Shopify Admin REST
// API, covering the three resources the ingestion job consumes: products,
// custom collections and pages. Paging uses since_id cursors; calls retry
// a bounded number of times on transport errors and 5xx responses.
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// accessTokenHeader carries the merchant's offline token on every call.
const accessTokenHeader = "X-Shopify-Access-Token"

// UpstreamError describes a non-2xx Admin API response.
type UpstreamError struct {
	Resource string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("shopify %s: status %d: %s", e.Resource, e.Status, e.Body)
}

// Variant is the subset of a product variant the ingestion job reads.
type Variant struct {
	ID    int64  `json:"id"`
	Price string `json:"price"`
}

// Product is the subset of an Admin API product the ingestion job reads.
type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	BodyHTML string    `json:"body_html"`
	Vendor   string    `json:"vendor"`
	Tags     string    `json:"tags"`
	Handle   string    `json:"handle"`
	Variants []Variant `json:"variants"`
}

// Collection is the subset of a custom collection the ingestion job reads.
type Collection struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	BodyHTML string `json:"body_html"`
	Handle   string `json:"handle"`
}

// Page is the subset of an online store page the ingestion job reads.
type Page struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	BodyHTML string `json:"body_html"`
	Handle   string `json:"handle"`
}

// Client talks to one Shopify Admin API version. The zero value is not
// usable; construct with New.
type Client struct {
	HTTP       *http.Client
	APIVersion string
	Retries    int

	// BaseURL overrides the per-shop host when set. Tests point it at a
	// local server; production leaves it empty.
	BaseURL string
}

// New returns a Client with the given API version and retry budget.
func New(apiVersion string, timeout time.Duration, retries int) *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: timeout},
		APIVersion: apiVersion,
		Retries:    retries,
	}
}

// Products fetches one page of products after sinceID.
func (c *Client) Products(ctx context.Context, shop, token string, sinceID int64, limit int) ([]Product, error) {
	var out struct {
		Products []Product `json:"products"`
	}
	if err := c.get(ctx, shop, token, "products", sinceID, limit, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

// Collections fetches one page of custom collections after sinceID.
func (c *Client) Collections(ctx context.Context, shop, token string, sinceID int64, limit int) ([]Collection, error) {
	var out struct {
		Collections []Collection `json:"custom_collections"`
	}
	if err := c.get(ctx, shop, token, "custom_collections", sinceID, limit, &out); err != nil {
		return nil, err
	}
	return out.Collections, nil
}

// Pages fetches one page of online store pages after sinceID.
func (c *Client) Pages(ctx context.Context, shop, token string, sinceID int64, limit int) ([]Page, error) {
	var out struct {
		Pages []Page `json:"pages"`
	}
	if err := c.get(ctx, shop, token, "pages", sinceID, limit, &out); err != nil {
		return nil, err
	}
	return out.Pages, nil
}

func (c *Client) resourceURL(shop, resource string, sinceID int64, limit int) string {
	base := c.BaseURL
	if base == "" {
		base = "https://" + shop
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if sinceID > 0 {
		q.Set("since_id", strconv.FormatInt(sinceID, 10))
	}
	return fmt.Sprintf("%s/admin/api/%s/%s.json?%s", base, c.APIVersion, resource, q.Encode())
}

// get performs one resource fetch with retries. 4xx responses are terminal;
// transport errors and 5xx responses are retried with a short backoff.
func (c *Client) get(ctx context.Context, shop, token, resource string, sinceID int64, limit int, out any) error {
	u := c.resourceURL(shop, resource, sinceID, limit)

	var lastErr error
	attempts := c.Retries + 1
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set(accessTokenHeader, token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("shop", shop).Str("resource", resource).
				Int("attempt", attempt+1).Msg("shopify request failed")
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return json.Unmarshal(body, out)
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			lastErr = &UpstreamError{Resource: resource, Status: resp.StatusCode, Body: truncate(string(body), 200)}
			continue
		default:
			return &UpstreamError{Resource: resource, Status: resp.StatusCode, Body: truncate(string(body), 200)}
		}
	}
	return lastErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
