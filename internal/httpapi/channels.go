package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/channel"
)

// Channel management endpoints consumed by the external admin UI. All
// credential validation is routed through the adapter contract by the
// registry; credentials are echoed back masked, never verbatim.

type createChannelRequest struct {
	Type        string            `json:"type" binding:"required"`
	Name        string            `json:"name"`
	Credentials map[string]string `json:"credentials" binding:"required"`
}

type updateChannelRequest struct {
	Name        string            `json:"name"`
	Enabled     bool              `json:"enabled"`
	Credentials map[string]string `json:"credentials"` // nil keeps the stored ones
}

// channelView is a Channel with sensitive credential values masked.
type channelView struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Name        string            `json:"name"`
	Enabled     bool              `json:"enabled"`
	Credentials map[string]string `json:"credentials"`
	CreatedAt   int64             `json:"createdAt"`
	UpdatedAt   int64             `json:"updatedAt"`
}

// ListChannels handles GET /channels.
func (h *Handler) ListChannels(c *gin.Context) {
	account := currentAccount(c)
	channels, err := h.channels.List(c.Request.Context(), account.ID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", account.ID).Msg("channel list failed")
		respondError(c, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]channelView, 0, len(channels))
	for _, ch := range channels {
		views = append(views, h.maskedView(ch))
	}
	respondOK(c, gin.H{"channels": views})
}

// CreateChannel handles POST /channels.
func (h *Handler) CreateChannel(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "type and credentials are required")
		return
	}

	account := currentAccount(c)
	ch, err := h.channels.Create(c.Request.Context(), account.ID, req.Type, req.Name, req.Credentials)
	if err != nil {
		h.respondChannelError(c, account.ID, err, "channel create failed")
		return
	}
	respondOK(c, h.maskedView(ch))
}

// UpdateChannel handles PUT /channels/:id.
func (h *Handler) UpdateChannel(c *gin.Context) {
	var req updateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "malformed channel update")
		return
	}

	account := currentAccount(c)
	ch, err := h.channels.Update(c.Request.Context(), account.ID, c.Param("id"), req.Name, req.Enabled, req.Credentials)
	if err != nil {
		h.respondChannelError(c, account.ID, err, "channel update failed")
		return
	}
	respondOK(c, h.maskedView(ch))
}

// DeleteChannel handles DELETE /channels/:id.
func (h *Handler) DeleteChannel(c *gin.Context) {
	account := currentAccount(c)
	if err := h.channels.Delete(c.Request.Context(), account.ID, c.Param("id")); err != nil {
		h.respondChannelError(c, account.ID, err, "channel delete failed")
		return
	}
	respondOK(c, gin.H{"deleted": true})
}

// ChannelTypes handles GET /channels/types: the supported adapter types
// and their credential schemas, for the admin UI to build forms from.
func (h *Handler) ChannelTypes(c *gin.Context) {
	adapters := h.channels.Adapters()

	types := make([]gin.H, 0)
	for _, channelType := range adapters.Types() {
		adapter, _ := adapters.Get(channelType)
		types = append(types, gin.H{
			"type":   channelType,
			"fields": adapter.ConfigSchema(),
		})
	}
	respondOK(c, gin.H{"types": types})
}

func (h *Handler) maskedView(ch *channel.Channel) channelView {
	var schema []channel.Field
	if adapter, ok := h.channels.Adapters().Get(ch.Type); ok {
		schema = adapter.ConfigSchema()
	}

	return channelView{
		ID:          ch.ID,
		Type:        ch.Type,
		Name:        ch.Name,
		Enabled:     ch.Enabled,
		Credentials: channel.MaskedCredentials(ch.Credentials, schema),
		CreatedAt:   ch.CreatedAt.Unix(),
		UpdatedAt:   ch.UpdatedAt.Unix(),
	}
}

func (h *Handler) respondChannelError(c *gin.Context, accountID string, err error, logMessage string) {
	switch {
	case errors.Is(err, channel.ErrUnsupportedType):
		respondError(c, http.StatusBadRequest, "unsupported channel type")
	case errors.Is(err, channel.ErrInvalidCredentials):
		respondError(c, http.StatusBadRequest, "credentials rejected")
	case errors.Is(err, channel.ErrChannelNotFound):
		respondError(c, http.StatusNotFound, "channel not found")
	default:
		h.log.Error().Err(err).Str("account_id", accountID).Msg(logMessage)
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}
