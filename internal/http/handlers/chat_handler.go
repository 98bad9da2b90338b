// Chat HTTP handler.
//
// POST /chat executes one full storefront chat turn: it resolves the
// conversation for the visitor's session, stores the visitor message, and
// returns the assistant reply. Quota rejections surface as the structured
// envelope the widget renders; all other reply failures degrade to an
// apologetic fallback so the storefront never sees raw error text.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storechat/widget-backend/internal/http/middleware"
	"github.com/storechat/widget-backend/internal/services"
)

// ChatRequest is the JSON payload for one chat turn.
type ChatRequest struct {
	SessionID     string `json:"sessionId" binding:"required" example:"sess-5f2c1a"`
	Message       string `json:"message" binding:"required" example:"Do you ship to Canada?"`
	CustomerEmail string `json:"customerEmail,omitempty" example:"jane@example.com"`
	CustomerName  string `json:"customerName,omitempty" example:"Jane"`
}

// Chat godoc
// @ID          chat
// @Summary     Send a chat message
// @Description Stores the visitor message and returns the assistant reply for the session's conversation.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       shop  query  string               true  "Shop domain"  example(acme.myshopify.com)
// @Param       body  body   handlers.ChatRequest  true  "Chat payload"
//
// @Success     200  {object}  services.ChatReply
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.QuotaResponse  "Plan limit reached"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	s := requireShop(c)
	if s == "" {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sessionId and message required")
		return
	}

	reply, err := h.replySvc.Respond(c.Request.Context(), s, req.SessionID, req.Message, req.CustomerEmail, req.CustomerName)
	if err != nil {
		if qe, isQuota := services.AsQuotaError(err); isQuota {
			failQuota(c, qe)
			return
		}
		switch err {
		case services.ErrMissingSession, services.ErrEmptyContent, services.ErrContentTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Str("shop", s).Msg("chat turn failed")
		ok(c, http.StatusOK, services.ChatReply{Reply: services.FallbackReply, SessionID: req.SessionID})
		return
	}
	ok(c, http.StatusOK, reply)
}
