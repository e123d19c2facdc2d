package auth

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

const sendKeyBytes = 24 // 32 chars after base64url encoding

// RateWindow is the per-account fixed-window counter. It lives inside the
// account record so its lifetime is tied to the store, not the process.
type RateWindow struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"resetAt"`
}

// Account is the unit of authentication. SendKey is the bearer secret
// presented on every push request; it is globally unique and only ever
// changes through Regenerate.
type Account struct {
	ID         string     `json:"id"`
	SendKey    string     `json:"sendKey"`
	CreatedAt  time.Time  `json:"createdAt"`
	RateWindow RateWindow `json:"rateWindow"`
}

// GenerateSendKey returns a fresh random key, 32 chars from the
// URL-safe base64 alphabet ([A-Za-z0-9_-]).
func GenerateSendKey() string {
	buf := make([]byte, sendKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
