// Embed delivery handler.
//
// GET /embed.js serves the storefront loader script with the shop's current
// configuration inlined. The response is explicitly uncacheable at every
// layer (Cache-Control: no-store plus legacy Pragma/Expires) so that theme
// editors always receive fresh configuration, but it still carries a weak
// ETag derived from the configuration hash to let well-behaved clients
// revalidate cheaply.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storechat/widget-backend/internal/embed"
)

// EmbedScript godoc
// @ID          embedScript
// @Summary     Storefront loader script
// @Description Returns the self-contained widget loader JavaScript with the shop's configuration inlined.
// @Tags        Widget
// @Produce     text/javascript
//
// @Param       shop           query   string  true   "Shop domain"                 example(acme.myshopify.com)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/"cfg-abc123")
//
// @Success     200  {string}  string "JavaScript loader"
// @Header      200  {string}  ETag "Weak ETag derived from the configuration hash"
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Missing shop"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /embed.js [get]
func (h *Handlers) EmbedScript(c *gin.Context) {
	s := requireShop(c)
	if s == "" {
		return
	}

	cfg, err := h.cfgSvc.Get(c.Request.Context(), s)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load configuration")
		return
	}

	etag := `W/"cfg-` + embed.Hash(cfg) + `"`
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Header("ETag", etag)

	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}

	script, err := embed.BuildScript(cfg, h.appURL, h.apiBasePath, h.embedPoll)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not build script")
		return
	}
	c.Data(http.StatusOK, "text/javascript; charset=utf-8", []byte(script))
}
