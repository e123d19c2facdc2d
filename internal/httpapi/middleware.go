package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/auth"
)

const (
	accountContextKey = "account"
	bearerPrefix      = "Bearer "

	headerRateLimit     = "X-RateLimit-Limit"
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"

	msgInvalidKey  = "invalid key"
	msgRateLimited = "rate limit exceeded"
)

// RequireAuth validates the bearer SendKey and consumes one unit of the
// account's request quota. Every failure answers the same "invalid key"
// message so the response reveals nothing about key formats or existence.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := h.auth.Validate(c.Request.Context(), bearerToken(c))
		if err != nil {
			if errors.Is(err, auth.ErrInvalidKey) {
				respondError(c, http.StatusUnauthorized, msgInvalidKey)
				return
			}
			h.log.Error().Err(err).Msg("send key validation failed")
			respondError(c, http.StatusInternalServerError, "internal error")
			return
		}

		decision, err := h.auth.CheckAndConsume(c.Request.Context(), account, h.rateLimit)
		if err != nil {
			h.log.Error().Err(err).Str("account_id", account.ID).Msg("rate limit check failed")
			respondError(c, http.StatusInternalServerError, "internal error")
			return
		}

		setRateHeaders(c, decision)

		if !decision.Allowed {
			respondErrorData(c, http.StatusTooManyRequests, msgRateLimited, gin.H{
				"limit":     decision.Limit,
				"remaining": decision.Remaining,
				"resetAt":   decision.ResetAt.Unix(),
			})
			return
		}

		c.Set(accountContextKey, account)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimPrefix(header, bearerPrefix)
	}
	return ""
}

func setRateHeaders(c *gin.Context, decision auth.Decision) {
	c.Header(headerRateLimit, strconv.Itoa(decision.Limit))
	c.Header(headerRateRemaining, strconv.Itoa(decision.Remaining))
	c.Header(headerRateReset, strconv.FormatInt(decision.ResetAt.Unix(), 10))
}

// currentAccount fetches what RequireAuth stored on the context.
func currentAccount(c *gin.Context) *auth.Account {
	value, _ := c.Get(accountContextKey)
	account, _ := value.(*auth.Account)
	return account
}
