// Widget HTTP handlers.
//
// This file exposes the public storefront endpoints for widget configuration
// and conversation management:
//   - GET  /widget-config   (public configuration document, hashed)
//   - POST /widget-config   (multiplexed conversation actions)
//
// The POST endpoint is action-multiplexed: the widget sends a JSON body with
// an `action` discriminator instead of using separate routes, which keeps the
// storefront script's CORS surface to a single URL.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/domain"
	"github.com/storechat/widget-backend/internal/embed"
	"github.com/storechat/widget-backend/internal/http/middleware"
	"github.com/storechat/widget-backend/internal/services"
	"github.com/storechat/widget-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ConfigService defines widget configuration operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ConfigService interface {
	// Get returns the shop's configuration, backfilled with defaults.
	Get(ctx context.Context, shop string) (*domain.WidgetConfig, error)
	// Save validates and persists a configuration update.
	Save(ctx context.Context, shop string, in services.WidgetConfigInput) (*domain.WidgetConfig, error)
}

// ConversationAPI defines conversation lifecycle operations consumed by HTTP
// handlers.
type ConversationAPI interface {
	// Start finds or creates the conversation for (shop, sessionID).
	Start(ctx context.Context, shop, sessionID, customerEmail, customerName string) (*domain.Conversation, error)
	// AppendMessage stores one utterance in a conversation.
	AppendMessage(ctx context.Context, conversationID, role, content string, metadata domain.JSONMap) (*domain.Message, error)
	// Get returns a conversation with its messages in chronological order.
	Get(ctx context.Context, conversationID string) (*domain.Conversation, []domain.Message, error)
	// ListPage returns a page of the shop's conversations and the total count.
	ListPage(ctx context.Context, shop string, page, pageSize int) ([]domain.Conversation, int64, error)
}

// ChatResponder produces assistant replies for storefront chat turns.
type ChatResponder interface {
	Respond(ctx context.Context, shop, sessionID, message, customerEmail, customerName string) (*services.ChatReply, error)
}

// IngestRunner launches and reports on catalog ingestion jobs.
type IngestRunner interface {
	StartJob(ctx context.Context, shop string) (*domain.IngestionJob, error)
	Job(ctx context.Context, id string) (*domain.IngestionJob, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for widget delivery, conversations, chat,
// and the merchant admin surface. It depends on abstract service interfaces
// to keep transport concerns separate from business logic.
type Handlers struct {
	cfgSvc    ConfigService
	convoSvc  ConversationAPI
	replySvc  ChatResponder
	ingestSvc IngestRunner
	quotaSvc  *services.QuotaService

	// db backs admin-surface repo calls (plan binding, conversation stats
	// for ETags) that have no service-layer counterpart.
	db *gorm.DB

	appURL      string
	apiBasePath string
	embedPoll   time.Duration
}

// New constructs a Handlers instance bound to the given services. appURL and
// apiBasePath feed the embed script's self-referencing URLs; embedPoll
// controls the storefront change-detection interval.
func New(cfgSvc ConfigService, convoSvc ConversationAPI, replySvc ChatResponder, ingestSvc IngestRunner,
	quotaSvc *services.QuotaService, db *gorm.DB,
	appURL, apiBasePath string, embedPoll time.Duration) *Handlers {
	return &Handlers{
		cfgSvc:      cfgSvc,
		convoSvc:    convoSvc,
		replySvc:    replySvc,
		ingestSvc:   ingestSvc,
		quotaSvc:    quotaSvc,
		db:          db,
		appURL:      appURL,
		apiBasePath: apiBasePath,
		embedPoll:   embedPoll,
	}
}

// requireShop returns the shop domain resolved by the ShopContext middleware,
// or writes a 400 and returns "".
func requireShop(c *gin.Context) string {
	s, ok := middleware.ShopFrom(c)
	if !ok {
		fail(c, http.StatusBadRequest, ErrCodeMissingShop, services.ErrMissingShop.Error())
		return ""
	}
	return s
}

//
// DTOs
//

// WidgetActionRequest is the multiplexed JSON payload accepted by the public
// POST /widget-config endpoint. Action selects the operation; the remaining
// fields are read per action.
type WidgetActionRequest struct {
	// Action is one of create_conversation, save_message, get_conversation.
	Action string `json:"action" binding:"required" example:"create_conversation"`

	// create_conversation:
	SessionID     string `json:"sessionId,omitempty" example:"sess-5f2c1a"`
	CustomerEmail string `json:"customerEmail,omitempty" example:"jane@example.com"`
	CustomerName  string `json:"customerName,omitempty" example:"Jane"`

	// save_message and get_conversation:
	ConversationID string `json:"conversationId,omitempty" example:"141add05-4415-4938-b5a1-17e0d3171aff"`

	// save_message:
	Role    string `json:"role,omitempty" example:"user"`
	Content string `json:"content,omitempty" example:"Do you ship to Canada?"`
}

// ConversationResponse wraps a conversation with its messages.
type ConversationResponse struct {
	Conversation *domain.Conversation `json:"conversation"`
	Messages     []domain.Message     `json:"messages"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// GetWidgetConfig godoc
// @ID          getWidgetConfig
// @Summary     Public widget configuration
// @Description Returns the shop's widget configuration document including its content hash. Shops without a saved configuration receive defaults.
// @Tags        Widget
// @Produce     json
//
// @Param       shop  query  string  true  "Shop domain"  example(acme.myshopify.com)
//
// @Success     200  {object}  embed.ConfigDocument
// @Failure     400  {object}  handlers.ErrorResponse  "Missing shop"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /widget-config [get]
func (h *Handlers) GetWidgetConfig(c *gin.Context) {
	s := requireShop(c)
	if s == "" {
		return
	}

	cfg, err := h.cfgSvc.Get(c.Request.Context(), s)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load configuration")
		return
	}

	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, embed.Document(cfg, h.appURL, h.apiBasePath))
}

// WidgetAction godoc
// @ID          widgetAction
// @Summary     Widget conversation actions
// @Description Multiplexed endpoint for the storefront widget. The `action` field selects create_conversation, save_message, or get_conversation.
// @Tags        Widget
// @Accept      json
// @Produce     json
//
// @Param       shop  query  string                        true  "Shop domain"  example(acme.myshopify.com)
// @Param       body  body   handlers.WidgetActionRequest  true  "Action payload"
//
// @Success     200  {object}  handlers.ConversationResponse
// @Success     201  {object}  domain.Conversation
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.QuotaResponse  "Plan limit reached"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /widget-config [post]
func (h *Handlers) WidgetAction(c *gin.Context) {
	s := requireShop(c)
	if s == "" {
		return
	}

	var req WidgetActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	switch strings.TrimSpace(req.Action) {
	case "create_conversation":
		h.createConversation(c, s, req)
	case "save_message":
		h.saveMessage(c, req)
	case "get_conversation":
		h.getConversation(c, req)
	default:
		fail(c, http.StatusBadRequest, ErrCodeInvalidAction, "unknown action")
	}
}

func (h *Handlers) createConversation(c *gin.Context, s string, req WidgetActionRequest) {
	convo, err := h.convoSvc.Start(c.Request.Context(), s, req.SessionID, req.CustomerEmail, req.CustomerName)
	if err != nil {
		if qe, isQuota := services.AsQuotaError(err); isQuota {
			failQuota(c, qe)
			return
		}
		if err == services.ErrMissingSession {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sessionId required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not create conversation")
		return
	}
	ok(c, http.StatusCreated, convo)
}

func (h *Handlers) saveMessage(c *gin.Context, req WidgetActionRequest) {
	if _, err := uuid.Parse(req.ConversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversationId must be a UUID")
		return
	}
	msg, err := h.convoSvc.AppendMessage(c.Request.Context(), req.ConversationID, req.Role, req.Content, nil)
	if err != nil {
		if qe, isQuota := services.AsQuotaError(err); isQuota {
			failQuota(c, qe)
			return
		}
		switch err {
		case services.ErrConversationNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		case services.ErrInvalidRole, services.ErrEmptyContent, services.ErrContentTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not save message")
		}
		return
	}
	ok(c, http.StatusCreated, msg)
}

func (h *Handlers) getConversation(c *gin.Context, req WidgetActionRequest) {
	if _, err := uuid.Parse(req.ConversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversationId must be a UUID")
		return
	}
	convo, msgs, err := h.convoSvc.Get(c.Request.Context(), req.ConversationID)
	if err != nil {
		if err == services.ErrConversationNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load conversation")
		return
	}
	ok(c, http.StatusOK, ConversationResponse{Conversation: convo, Messages: msgs})
}
