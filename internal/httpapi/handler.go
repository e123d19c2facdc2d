package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/auth"
	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/channel"
	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/dispatch"
	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/history"
)

// Handler wires the HTTP surface to the core services.
type Handler struct {
	auth      *auth.Service
	engine    *dispatch.Engine
	history   *history.Store
	channels  *channel.Registry
	rateLimit int
	log       zerolog.Logger
}

func NewHandler(
	authService *auth.Service,
	engine *dispatch.Engine,
	historyStore *history.Store,
	channels *channel.Registry,
	rateLimit int,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		auth:      authService,
		engine:    engine,
		history:   historyStore,
		channels:  channels,
		rateLimit: rateLimit,
		log:       log.With().Str("component", "httpapi").Logger(),
	}
}

// ==================== push ====================

// pushRequest carries the three push fields. desp is the legacy name for
// the optional body text, kept for client compatibility.
type pushRequest struct {
	Title   string `json:"title" form:"title"`
	Desp    string `json:"desp" form:"desp"`
	Channel string `json:"channel" form:"channel"`
}

// Push handles POST /push (JSON or form body) and GET /push (query only).
// Query parameters take precedence over body fields, consistently per
// field.
func (h *Handler) Push(c *gin.Context) {
	var req pushRequest
	if c.Request.Method == http.MethodPost {
		// Tolerate an empty or non-JSON body; query params may carry
		// everything.
		_ = c.ShouldBind(&req)
	}
	if title := c.Query("title"); title != "" {
		req.Title = title
	}
	if desp := c.Query("desp"); desp != "" {
		req.Desp = desp
	}
	if ch := c.Query("channel"); ch != "" {
		req.Channel = ch
	}

	account := currentAccount(c)
	record, err := h.engine.Push(c.Request.Context(), account.ID, dispatch.Request{
		Title:     SanitizeInput(req.Title),
		Content:   SanitizeInput(req.Desp),
		ChannelID: req.Channel,
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrMissingTitle) {
			respondError(c, http.StatusBadRequest, "title is required")
			return
		}
		h.log.Error().Err(err).Str("account_id", account.ID).Msg("push failed")
		respondError(c, http.StatusInternalServerError, "internal error")
		return
	}

	respondOK(c, gin.H{
		"pushId":          record.ID,
		"deliveryResults": record.DeliveryResults,
	})
}

// ==================== history ====================

// ListMessages handles GET /messages?limit&cursor.
func (h *Handler) ListMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	cursor := c.Query("cursor")

	account := currentAccount(c)
	page, err := h.history.List(c.Request.Context(), account.ID, limit, cursor)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", account.ID).Msg("history list failed")
		respondError(c, http.StatusInternalServerError, "internal error")
		return
	}

	data := gin.H{
		"messages": page.Items,
		"hasMore":  page.HasMore,
	}
	if page.Cursor != "" {
		data["cursor"] = page.Cursor
	}
	respondOK(c, data)
}

// GetMessage handles GET /messages/:id. Records owned by other accounts
// answer exactly like missing ones.
func (h *Handler) GetMessage(c *gin.Context) {
	account := currentAccount(c)
	record, err := h.history.Get(c.Request.Context(), account.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, history.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "message not found")
			return
		}
		h.log.Error().Err(err).Str("account_id", account.ID).Msg("history get failed")
		respondError(c, http.StatusInternalServerError, "internal error")
		return
	}
	respondOK(c, record)
}

// ==================== user ====================

// GetSendKey handles GET /user/sendkey.
func (h *Handler) GetSendKey(c *gin.Context) {
	respondOK(c, gin.H{"sendKey": currentAccount(c).SendKey})
}

// RegenerateSendKey handles POST /user/sendkey. The previous key is
// invalid the moment this responds.
func (h *Handler) RegenerateSendKey(c *gin.Context) {
	account := currentAccount(c)
	newKey, err := h.auth.Regenerate(c.Request.Context(), account.ID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", account.ID).Msg("send key regeneration failed")
		respondError(c, http.StatusInternalServerError, "internal error")
		return
	}
	respondOK(c, gin.H{"sendKey": newKey})
}

// Profile handles GET /user/profile.
func (h *Handler) Profile(c *gin.Context) {
	account := currentAccount(c)
	snapshot := h.auth.Snapshot(account, h.rateLimit)

	respondOK(c, gin.H{
		"id":        account.ID,
		"createdAt": account.CreatedAt,
		"rateLimit": gin.H{
			"limit":     snapshot.Limit,
			"remaining": snapshot.Remaining,
			"resetAt":   snapshot.ResetAt.Unix(),
		},
	})
}

// ==================== misc ====================

// Healthz is the unauthenticated liveness probe.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
