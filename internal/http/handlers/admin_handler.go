// Merchant admin handlers.
//
// These endpoints back the embedded admin app. They live under
// /api/v1/merchant and require the X-Shopify-Shop-Domain header (enforced by
// the RequireShop middleware in the router):
//   - PUT  /merchant/widget-config   (save configuration)
//   - GET  /merchant/widget-config   (read configuration)
//   - GET  /merchant/usage           (plan and current-window usage)
//   - GET  /merchant/conversations   (paginated, ETag support)
//   - POST /merchant/ingest          (launch catalog ingestion, 202)
//   - GET  /merchant/ingest/{id}     (poll ingestion job)
//   - PUT  /merchant/plan            (bind a plan by name)
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storechat/widget-backend/internal/domain"
	"github.com/storechat/widget-backend/internal/repo"
	"github.com/storechat/widget-backend/internal/services"
)

//
// DTOs
//

// SaveWidgetConfigRequest is the JSON payload for configuration updates.
// Field names match the admin app's form model.
type SaveWidgetConfigRequest struct {
	Title          string `json:"title" example:"Support Chat"`
	Color          string `json:"color" example:"#e63946"`
	Greeting       string `json:"greeting" example:"👋 Welcome! How can we help you?"`
	Position       string `json:"position" example:"right"`
	IsActive       bool   `json:"isActive" example:"true"`
	AgentName      string `json:"agentName" example:"Assistant"`
	AgentRole      string `json:"agentRole" example:"Customer Support"`
	ResponseLength string `json:"responseLength" example:"medium"`
	Language       string `json:"language" example:"en"`
	Tone           string `json:"tone" example:"friendly"`
	Avatar         string `json:"avatar"`
	ColorScheme    string `json:"colorScheme" example:"0"`
	StartColor     string `json:"startColor" example:"#000000CF"`
	EndColor       string `json:"endColor" example:"#000000"`
	ChatBgColor    string `json:"chatBgColor" example:"#FFFFFF"`
	FontFamily     string `json:"fontFamily" example:"inter, sans-serif"`
	FontColor      string `json:"fontColor" example:"#000000CF"`
	OpenByDefault  string `json:"openByDefault" example:"1"`
	IsPulsing      bool   `json:"isPulsing" example:"false"`
}

// UsageResponse reports the bound plan and usage within the current
// UTC calendar month.
type UsageResponse struct {
	Plan          string          `json:"plan"`
	Price         int             `json:"price"`
	Limits        UsageLimits     `json:"limits"`
	Usage         repo.UsageStats `json:"usage"`
	PeriodStart   time.Time       `json:"period_start"`
	Unlimited     bool            `json:"unlimited"`
	NoPlanBinding bool            `json:"no_plan_binding,omitempty"`
}

// UsageLimits carries the bound plan's monthly caps; -1 means uncapped.
type UsageLimits struct {
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
}

// ListConversationsResponse wraps a page of conversations and pagination
// information.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// BindPlanRequest selects a plan by name for the shop.
type BindPlanRequest struct {
	Plan string `json:"plan" binding:"required" example:"starter"`
}

// IngestAcceptedResponse acknowledges a launched ingestion job.
type IngestAcceptedResponse struct {
	JobID string `json:"jobId" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

//
// Handlers
//

// SaveWidgetConfig godoc
// @ID          saveWidgetConfig
// @Summary     Save widget configuration
// @Description Validates and persists the shop's widget configuration. Invalid colors are coerced to defaults; invalid positions are rejected.
// @Tags        Merchant
// @Accept      json
// @Produce     json
//
// @Param       X-Shopify-Shop-Domain  header  string  true  "Shop domain"  example(acme.myshopify.com)
// @Param       body  body  handlers.SaveWidgetConfigRequest  true  "Configuration payload"
//
// @Success     200  {object}  domain.WidgetConfig
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid position"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing shop header"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /merchant/widget-config [put]
func (h *Handlers) SaveWidgetConfig(c *gin.Context) {
	s := requireShop(c)
	if s == "" {
		return
	}

	var req SaveWidgetConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	cfg, err := h.cfgSvc.Save(c.Request.Context(), s, services.WidgetConfigInput{
		Title:          req.Title,
		Color:          req.Color,
		Greeting:       req.Greeting,
		Position:       req.Position,
		IsActive:       req.IsActive,
		AgentName:      req.AgentName,
		AgentRole:      req.AgentRole,
		ResponseLength: req.ResponseLength,
		Language:       req.Language,
		Tone:           req.Tone,
		Avatar:         req.Avatar,
		ColorScheme:    req.ColorScheme,
		StartColor:     req.StartColor,
		EndColor:       req.EndColor,
		ChatBgColor:    req.ChatBgColor,
		FontFamily:     req.FontFamily,
		FontColor:      req.FontColor,
		OpenByDefault:  req.OpenByDefault,
		IsPulsing:      req.IsPulsing,
	})
	if err != nil {
		if err == services.ErrInvalidPosition {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "position must be left or right")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, "could not save configuration")
		return
	}
	ok(c, http.StatusOK, cfg)
}

// AdminWidgetConfig godoc
// @ID          adminWidgetConfig
// @Summary     Read widget configuration
// @Description Returns the shop's stored configuration with defaults applied; shops without a saved row receive defaults.
// @Tags        Merchant
// @Produce     json
//
// @Param       X-Shopify-Shop-Domain  header  string  true  "Shop domain"  example(acme.myshopify.com)
//
// @Success     200  {object}  domain.WidgetConfig
// @Failure     401  {object}  handlers.ErrorResponse  "Missing shop header"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /merchant/widget-config [get]
func (h *Handlers) AdminWidgetConfig(c *gin.Context) {
	s := requireShop(c)
	if s == "" {
		return
	}
	cfg, err := h.cfgSvc.Get(c.Request.Context(), s)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load configuration")
		return
	}
	ok(c, http.StatusOK, cfg)
}

// Usage godoc
// @ID          usage
// @Summary     Plan usage
// @Description Returns the bound plan and conversation/message usage within the current UTC calendar month.
// @Tags        Merchant
// @Produce     json
//
// @Param       X-Shopify-Shop-Domain  header  string  true  "Shop domain"  example(acme.myshopify.com)
//
// @Success     200  {object}  handlers.UsageResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing shop header"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /merchant/usage [get]
func (h *Handlers) Usage(c *gin.Context) {
	s := requireShop(c)
	if s == "" {
		return
	}
	ctx := c.Request.Context()

	stats, err := h.quotaSvc.Usage(ctx, s)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not compute usage")
		return
	}

	resp := UsageResponse{
		Usage:       stats,
		PeriodStart: h.quotaSvc.WindowStart(),
	}
	sp, err := repo.GetShopPlan(ctx, h.db, s)
	switch {
	case err == repo.ErrNotFound:
		resp.NoPlanBinding = true
		resp.Unlimited = true
		resp.Limits = UsageLimits{Conversations: domain.UnlimitedQuota, Messages: domain.UnlimitedQuota}
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load plan")
		return
	default:
		resp.Plan = sp.Plan.Name
		resp.Price = sp.Plan.Price
		resp.Limits = UsageLimits{Conversations: sp.Plan.MaxConversations, Messages: sp.Plan.MaxMessages}
		resp.Unlimited = sp.Plan.UnlimitedConversations() && sp.Plan.UnlimitedMessages()
	}
	ok(c, http.StatusOK, resp)
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations (paginated)
// @Description Returns a page of the shop's conversations, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Merchant
// @Produce     json
//
// @Param       X-Shopify-Shop-Domain  header  string  true   "Shop domain"                 example(acme.myshopify.com)
// @Param       If-None-Match          header  string  false  "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page                   query   int     false  "Page number"                 minimum(1) default(1)
// @Param       page_size              query   int     false  "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListConversationsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Missing shop header"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /merchant/conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	s := requireShop(c)
	if s == "" {
		return
	}
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	count, maxTS, err := repo.ConversationsStats(ctx, h.db, s)
	if err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"convos:%s:%d:%d"`, s, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.convoSvc.ListPage(ctx, s, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list conversations")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// StartIngest godoc
// @ID          startIngest
// @Summary     Launch catalog ingestion
// @Description Creates a pollable ingestion job and starts crawling the shop's products, collections and pages in the background.
// @Tags        Merchant
// @Produce     json
//
// @Param       X-Shopify-Shop-Domain  header  string  true  "Shop domain"  example(acme.myshopify.com)
//
// @Success     202  {object}  handlers.IngestAcceptedResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing shop header"
// @Failure     404  {object}  handlers.ErrorResponse  "Merchant not installed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /merchant/ingest [post]
func (h *Handlers) StartIngest(c *gin.Context) {
	s := requireShop(c)
	if s == "" {
		return
	}
	job, err := h.ingestSvc.StartJob(c.Request.Context(), s)
	if err != nil {
		if err == services.ErrMerchantNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "merchant not found or not authorized")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, "could not start ingestion")
		return
	}
	ok(c, http.StatusAccepted, IngestAcceptedResponse{JobID: job.ID})
}

// IngestStatus godoc
// @ID          ingestStatus
// @Summary     Poll an ingestion job
// @Description Returns the job row including progress counters, per-resource totals and partial-failure errors.
// @Tags        Merchant
// @Produce     json
//
// @Param       X-Shopify-Shop-Domain  header  string  true  "Shop domain"      example(acme.myshopify.com)
// @Param       id                     path    string  true  "Job ID (UUID)"    format(uuid)
//
// @Success     200  {object}  domain.IngestionJob
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Job not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /merchant/ingest/{id} [get]
func (h *Handlers) IngestStatus(c *gin.Context) {
	s := requireShop(c)
	if s == "" {
		return
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "job id must be a UUID")
		return
	}
	job, err := h.ingestSvc.Job(c.Request.Context(), id)
	if err != nil || job.Shop != s {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "job not found")
		return
	}
	ok(c, http.StatusOK, job)
}

// BindPlan godoc
// @ID          bindPlan
// @Summary     Bind a subscription plan
// @Description Binds the shop to the named plan, starting a fresh billing period at the current UTC month.
// @Tags        Merchant
// @Accept      json
// @Produce     json
//
// @Param       X-Shopify-Shop-Domain  header  string  true  "Shop domain"  example(acme.myshopify.com)
// @Param       body  body  handlers.BindPlanRequest  true  "Plan selection"
//
// @Success     200  {object}  domain.ShopPlan
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Plan not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /merchant/plan [put]
func (h *Handlers) BindPlan(c *gin.Context) {
	s := requireShop(c)
	if s == "" {
		return
	}
	ctx := c.Request.Context()

	var req BindPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Plan) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "plan required")
		return
	}

	sp, err := h.quotaSvc.BindPlan(ctx, s, req.Plan)
	if err != nil {
		if err == services.ErrPlanNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "plan not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not bind plan")
		return
	}
	ok(c, http.StatusOK, sp)
}

// ListPlans godoc
// @ID          listPlans
// @Summary     List available plans
// @Description Returns the active plan catalog ordered by price.
// @Tags        Merchant
// @Produce     json
//
// @Success     200  {array}   domain.Plan
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /merchant/plans [get]
func (h *Handlers) ListPlans(c *gin.Context) {
	plans, err := repo.ListPlans(c.Request.Context(), h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list plans")
		return
	}
	ok(c, http.StatusOK, plans)
}
